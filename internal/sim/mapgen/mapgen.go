// Package mapgen builds seeded, point-mirrored starting boards. All
// randomness of a match is spent here: the same seed and rules always
// yield the same setup, and the engine is deterministic from there.
package mapgen

import (
	"fmt"
	"math/rand"

	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

// Pair count bounds as fractions of the board size. The min divisor is
// the larger one, so size/minDiv <= size/maxDiv.
const (
	energyMinDiv  = 4
	energyMaxDiv  = 2
	barrierMinDiv = 8
	barrierMaxDiv = 4
	decoMinDiv    = 12
	decoMaxDiv    = 6
	gateMinDiv    = 16
	gateMaxDiv    = 8
)

// Generate rolls a starting board: spawns in opposite corners, one
// scout each, and tile pairs placed in player 0's quadrant with their
// point mirrors in player 1's. Mirrored energy nodes share one payload
// so neither side is favored.
func Generate(size int, seed int64, rules tuning.Rules) (game.Setup, error) {
	if size < 6 {
		return game.Setup{}, fmt.Errorf("map size %d too small to generate (min 6)", size)
	}
	rng := rand.New(rand.NewSource(seed))

	energyPairs := pairCount(rng, size, energyMinDiv, energyMaxDiv)
	barrierPairs := pairCount(rng, size, barrierMinDiv, barrierMaxDiv)
	decoPairs := pairCount(rng, size, decoMinDiv, decoMaxDiv)
	gatePairs := pairCount(rng, size, gateMinDiv, gateMaxDiv)

	spawns := [2]game.Pos{{X: 0, Y: 0}, {X: size - 1, Y: size - 1}}

	// Player 0's placement quadrant, spawn excluded. Mirrors land in
	// the opposite quadrant, so pairs can never collide.
	cands := make([]game.Pos, 0, (size/2)*(size/2))
	for x := 0; x < size/2; x++ {
		for y := 0; y < size/2; y++ {
			if x == 0 && y == 0 {
				continue
			}
			cands = append(cands, game.Pos{X: x, Y: y})
		}
	}
	if total := energyPairs + barrierPairs + decoPairs + gatePairs; total > len(cands) {
		limit := len(cands) / 5
		if limit < 1 {
			limit = 1
		}
		energyPairs = min(energyPairs, limit)
		barrierPairs = min(barrierPairs, limit)
		decoPairs = min(decoPairs, limit)
		gatePairs = min(gatePairs, limit)
	}

	s := game.Setup{Size: size, Seed: seed, Spawns: spawns}
	place := func(n int, kind game.TileKind, payload func() int) {
		for i := 0; i < n && len(cands) > 0; i++ {
			j := rng.Intn(len(cands))
			p := cands[j]
			cands = append(cands[:j], cands[j+1:]...)
			pl := 0
			if payload != nil {
				pl = payload()
			}
			s.Tiles = append(s.Tiles,
				game.TilePlacement{Pos: p, Kind: kind, Payload: pl},
				game.TilePlacement{Pos: mirror(p, size), Kind: kind, Payload: pl},
			)
		}
	}
	place(energyPairs, game.TileEnergyNode, func() int {
		return rules.NodeMinEnergy + rng.Intn(rules.NodeMaxEnergy-rules.NodeMinEnergy+1)
	})
	place(barrierPairs, game.TileBarrier, nil)
	place(decoPairs, game.TileDecoherenceField, nil)
	place(gatePairs, game.TileQuantumGate, nil)

	s.Units = []game.UnitPlacement{
		{Owner: 0, Kind: game.UnitScout, Pos: spawns[0]},
		{Owner: 1, Kind: game.UnitScout, Pos: spawns[1]},
	}
	return s, nil
}

// pairCount draws from [max(1, size/minDiv), size/maxDiv], clamped so
// the interval is never empty on small boards.
func pairCount(rng *rand.Rand, size, minDiv, maxDiv int) int {
	lo := size / minDiv
	if lo < 1 {
		lo = 1
	}
	hi := size / maxDiv
	if hi < lo {
		hi = lo
	}
	return lo + rng.Intn(hi-lo+1)
}

// mirror reflects through the board center, mapping each corner onto
// the opposite one.
func mirror(p game.Pos, size int) game.Pos {
	return game.Pos{X: size - 1 - p.X, Y: size - 1 - p.Y}
}
