package game

// recomputeTerritory assigns each occupied tile to one player and
// refreshes the cached percentages. When units of both owners share a
// gate tile the most recently created unit present claims it, which
// falls out of the ascending id sweep.
func (g *Game) recomputeTerritory() {
	n := g.board.Size()
	owner := make([]int8, n*n)
	for i := range owner {
		owner[i] = -1
	}
	for _, id := range g.units.IDs() {
		u := g.units.Get(id)
		owner[u.Pos.X*n+u.Pos.Y] = int8(u.Owner)
	}
	g.territoryCount = [2]int{}
	for _, o := range owner {
		if o >= 0 {
			g.territoryCount[o]++
		}
	}
	total := float64(n * n)
	g.territory[0] = float64(g.territoryCount[0]) / total
	g.territory[1] = float64(g.territoryCount[1]) / total
}
