package game

// VisionTracker accumulates each player's explored tiles. Exploration
// is union-only: tiles stay explored after the units that saw them
// move on or die. The obs grid shows live tile kinds on explored
// tiles, so "explored" means map knowledge, not current line of sight
// freshness.
type VisionTracker struct {
	size     int
	ranges   [3]int
	explored [2][]bool
	counts   [2]int
}

func NewVisionTracker(size int, ranges [3]int) *VisionTracker {
	return &VisionTracker{
		size:   size,
		ranges: ranges,
		explored: [2][]bool{
			make([]bool, size*size),
			make([]bool, size*size),
		},
	}
}

// Mark adds every tile within each live unit's vision range (Manhattan
// distance) to its owner's explored set.
func (v *VisionTracker) Mark(units *UnitRegistry) {
	for _, u := range units.units {
		r := v.ranges[u.Kind]
		for dx := -r; dx <= r; dx++ {
			rem := r - abs(dx)
			for dy := -rem; dy <= rem; dy++ {
				p := Pos{X: u.Pos.X + dx, Y: u.Pos.Y + dy}
				if p.X < 0 || p.X >= v.size || p.Y < 0 || p.Y >= v.size {
					continue
				}
				i := p.X*v.size + p.Y
				if !v.explored[u.Owner][i] {
					v.explored[u.Owner][i] = true
					v.counts[u.Owner]++
				}
			}
		}
	}
}

func (v *VisionTracker) Explored(player int, p Pos) bool {
	return v.explored[player][p.X*v.size+p.Y]
}

func (v *VisionTracker) Count(player int) int { return v.counts[player] }

func (v *VisionTracker) Percentage(player int) float64 {
	return float64(v.counts[player]) / float64(v.size*v.size)
}
