package game

// Board is the square tile grid. Tiles carry a kind and an integer
// payload: remaining energy on EnergyNode tiles, remaining boost power
// on EntanglementZone tiles, zero everywhere else. Depleted tiles keep
// their kind with payload 0.
type Board struct {
	size    int
	kinds   []TileKind
	payload []int
}

func NewBoard(size int) *Board {
	return &Board{
		size:    size,
		kinds:   make([]TileKind, size*size),
		payload: make([]int, size*size),
	}
}

func (b *Board) Size() int { return b.size }

func (b *Board) InBounds(p Pos) bool {
	return p.X >= 0 && p.X < b.size && p.Y >= 0 && p.Y < b.size
}

func (b *Board) idx(p Pos) int { return p.X*b.size + p.Y }

func (b *Board) Kind(p Pos) TileKind { return b.kinds[b.idx(p)] }

func (b *Board) Payload(p Pos) int { return b.payload[b.idx(p)] }

// Place overwrites a tile. Build actions only ever place on TileEmpty;
// setup may place anything.
func (b *Board) Place(p Pos, k TileKind, payload int) {
	invariant(payload >= 0, "tile payload %d at (%d,%d)", payload, p.X, p.Y)
	i := b.idx(p)
	b.kinds[i] = k
	b.payload[i] = payload
}

// Drain removes up to want from the tile payload and returns the
// amount actually removed. The payload floors at zero.
func (b *Board) Drain(p Pos, want int) int {
	if want <= 0 {
		return 0
	}
	i := b.idx(p)
	take := want
	if take > b.payload[i] {
		take = b.payload[i]
	}
	b.payload[i] -= take
	invariant(b.payload[i] >= 0, "tile payload %d at (%d,%d)", b.payload[i], p.X, p.Y)
	return take
}

// ExportKinds returns the grid in x-major scan order for
// serialization.
func (b *Board) ExportKinds() []TileKind {
	out := make([]TileKind, len(b.kinds))
	copy(out, b.kinds)
	return out
}
