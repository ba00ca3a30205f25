package game

import (
	"testing"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/tuning"
)

func testRules() tuning.Rules {
	r := tuning.Default()
	r.MapSize = 8
	r.MaxTurns = 40
	return r
}

func testSetup(tiles []TilePlacement, units []UnitPlacement) Setup {
	return Setup{
		Size:   8,
		Seed:   1,
		Spawns: [2]Pos{{X: 0, Y: 0}, {X: 7, Y: 7}},
		Tiles:  tiles,
		Units:  units,
	}
}

func newTestGame(t *testing.T, tiles []TilePlacement, units []UnitPlacement) *Game {
	t.Helper()
	g, err := New(testSetup(tiles, units), testRules())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func act(typ, dirX, dirY, boost int) Action {
	return Action{Type: typ, DirX: dirX, DirY: dirY, Boost: boost}
}

func mustUnit(t *testing.T, g *Game, id int) *Unit {
	t.Helper()
	u := g.Units().Get(id)
	if u == nil {
		t.Fatalf("unit %d not found", id)
	}
	return u
}

func findEvent(events []protocol.Event, action string) protocol.Event {
	for _, ev := range events {
		if ev["action"] == action {
			return ev
		}
	}
	return nil
}

func countEvents(events []protocol.Event, action string) int {
	n := 0
	for _, ev := range events {
		if ev["action"] == action {
			n++
		}
	}
	return n
}
