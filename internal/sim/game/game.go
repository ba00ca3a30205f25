package game

import (
	"fmt"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/tuning"
)

// PlayerState is one side's persistent match state. Unit ownership
// lives in the registry.
type PlayerState struct {
	Energy int
	Spawn  Pos
}

type TilePlacement struct {
	Pos     Pos      `json:"pos"`
	Kind    TileKind `json:"kind"`
	Payload int      `json:"payload,omitempty"`
}

type UnitPlacement struct {
	Owner int      `json:"owner"`
	Kind  UnitKind `json:"kind"`
	Pos   Pos      `json:"pos"`
}

// Setup is the complete initial board: everything a replay needs to
// reconstruct turn zero. Tiles lists non-empty tiles only.
type Setup struct {
	Size   int             `json:"size"`
	Seed   int64           `json:"seed"`
	Spawns [2]Pos          `json:"spawns"`
	Tiles  []TilePlacement `json:"tiles"`
	Units  []UnitPlacement `json:"units"`
}

// Game is the authoritative match engine. It is strictly synchronous
// and single-owner: the caller feeds both players' batches into Step
// and reads observations back. All randomness lives in map generation;
// stepping is a pure function of state and input.
type Game struct {
	rules   tuning.Rules
	board   *Board
	units   *UnitRegistry
	players [2]PlayerState
	vision  *VisionTracker

	turn   int
	done   bool
	victor int
	reason string

	territoryCount [2]int
	territory      [2]float64

	events []protocol.Event
}

// New validates the setup and builds the initial state. Unit ids are
// assigned from 1 in listed order. Vision and territory are seeded
// from the initial placements so the first observation is complete.
func New(setup Setup, rules tuning.Rules) (*Game, error) {
	if setup.Size < 2 {
		return nil, fmt.Errorf("map size %d too small", setup.Size)
	}
	board := NewBoard(setup.Size)
	for i := 0; i < 2; i++ {
		if !board.InBounds(setup.Spawns[i]) {
			return nil, fmt.Errorf("player %d spawn (%d,%d) out of bounds", i, setup.Spawns[i].X, setup.Spawns[i].Y)
		}
	}
	for _, t := range setup.Tiles {
		if !board.InBounds(t.Pos) {
			return nil, fmt.Errorf("tile (%d,%d) out of bounds", t.Pos.X, t.Pos.Y)
		}
		if !t.Kind.Valid() {
			return nil, fmt.Errorf("tile (%d,%d) kind %d unknown", t.Pos.X, t.Pos.Y, t.Kind)
		}
		if t.Payload < 0 {
			return nil, fmt.Errorf("tile (%d,%d) payload %d negative", t.Pos.X, t.Pos.Y, t.Payload)
		}
		if t.Payload > 0 && t.Kind != TileEnergyNode && t.Kind != TileEntanglementZone {
			return nil, fmt.Errorf("tile (%d,%d) kind %s cannot carry payload", t.Pos.X, t.Pos.Y, t.Kind)
		}
		board.Place(t.Pos, t.Kind, t.Payload)
	}
	units := NewUnitRegistry()
	for _, u := range setup.Units {
		if u.Owner != 0 && u.Owner != 1 {
			return nil, fmt.Errorf("unit owner %d invalid", u.Owner)
		}
		if !u.Kind.Valid() {
			return nil, fmt.Errorf("unit kind %d unknown", u.Kind)
		}
		if !board.InBounds(u.Pos) {
			return nil, fmt.Errorf("unit at (%d,%d) out of bounds", u.Pos.X, u.Pos.Y)
		}
		units.Spawn(u.Owner, u.Kind, u.Pos, rules.UnitHealth)
	}
	g := &Game{
		rules:  rules,
		board:  board,
		units:  units,
		vision: NewVisionTracker(setup.Size, exploreRanges(rules)),
		victor: -1,
	}
	g.players[0] = PlayerState{Energy: rules.InitialEnergy, Spawn: setup.Spawns[0]}
	g.players[1] = PlayerState{Energy: rules.InitialEnergy, Spawn: setup.Spawns[1]}
	g.vision.Mark(g.units)
	g.recomputeTerritory()
	return g, nil
}

// Step resolves one full turn: player 0's batch first, then player 1's,
// each in ascending unit id order. Both observations afterwards see the
// same post-turn state. Returns the turn's events, whether the match
// ended, and the victor (-1 for none or draw).
//
// Stepping a finished game is a no-op.
func (g *Game) Step(p0, p1 Batch) ([]protocol.Event, bool, int) {
	if g.done {
		return nil, true, g.victor
	}
	g.events = nil
	g.resolvePlayer(0, p0)
	g.resolvePlayer(1, p1)
	g.vision.Mark(g.units)
	g.recomputeTerritory()
	g.evaluateVictory(g.turn + 1)
	g.turn++
	return g.events, g.done, g.victor
}

func (g *Game) Turn() int      { return g.turn }
func (g *Game) Done() bool     { return g.done }
func (g *Game) Victor() int    { return g.victor }
func (g *Game) Reason() string { return g.reason }

func (g *Game) Rules() tuning.Rules { return g.rules }
func (g *Game) Board() *Board       { return g.board }
func (g *Game) Units() *UnitRegistry {
	return g.units
}

func (g *Game) Energy(player int) int      { return g.players[player].Energy }
func (g *Game) Spawn(player int) Pos       { return g.players[player].Spawn }
func (g *Game) Territory(player int) float64 {
	return g.territory[player]
}
func (g *Game) Exploration(player int) float64 { return g.vision.Percentage(player) }

func (g *Game) canAfford(player, amount int) bool {
	return g.players[player].Energy >= amount
}

func (g *Game) charge(player, amount int) {
	g.players[player].Energy -= amount
	invariant(g.players[player].Energy >= 0, "player %d energy %d", player, g.players[player].Energy)
}

func exploreRanges(r tuning.Rules) [3]int {
	return [3]int{
		UnitHarvester: r.ExploreRangeHarvester,
		UnitWarrior:   r.ExploreRangeWarrior,
		UnitScout:     r.ExploreRangeScout,
	}
}

func (g *Game) harvestRate(k UnitKind) int {
	switch k {
	case UnitHarvester:
		return g.rules.HarvestRateHarvester
	case UnitScout:
		return g.rules.HarvestRateScout
	}
	return 0
}

func (g *Game) spawnCost(k UnitKind) int {
	switch k {
	case UnitHarvester:
		return g.rules.CostHarvester
	case UnitWarrior:
		return g.rules.CostWarrior
	}
	return g.rules.CostScout
}

func (g *Game) buildCost(k TileKind) int {
	switch k {
	case TileBarrier:
		return g.rules.CostBarrier
	case TileQuantumGate:
		return g.rules.CostGate
	}
	return g.rules.CostDecoherenceField
}
