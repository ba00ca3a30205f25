package gametest

import (
	"testing"

	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/tuning"
)

func TestCombat_ZoneBoostExtendsReachAndEndsMatch(t *testing.T) {
	rules := tuning.Default()
	setup := game.Setup{
		Size:   8,
		Seed:   9,
		Spawns: [2]game.Pos{{X: 0, Y: 0}, {X: 7, Y: 7}},
		Tiles: []game.TilePlacement{
			{Pos: game.Pos{X: 3, Y: 2}, Kind: game.TileEntanglementZone, Payload: rules.ZoneInitialPower},
		},
		Units: []game.UnitPlacement{
			{Owner: 0, Kind: game.UnitWarrior, Pos: game.Pos{X: 2, Y: 2}},
			{Owner: 1, Kind: game.UnitScout, Pos: game.Pos{X: 6, Y: 2}},
		},
	}
	h := NewHarness(t, setup, rules)

	// Unboosted, the scout is out of reach: the attack is a free miss.
	h.Order(0, 1, [4]int{7, 2, 1, 0})
	if events := h.Step(); len(eventsOf(events, "ATTACK")) != 0 {
		t.Fatalf("expected a silent miss, got %v", events)
	}
	if got := h.Obs(0).Energy[0]; got != rules.InitialEnergy {
		t.Fatalf("miss must not charge: energy %d", got)
	}

	// Step onto the zone: boost granted, drain recorded on the move.
	h.Order(0, 1, [4]int{0, 2, 1, 0})
	events := h.Step()
	moves := eventsOf(events, "MOVE")
	if len(moves) != 1 {
		t.Fatalf("expected one move event, got %v", events)
	}
	eff := effectOf(moves[0])
	if eff["boost_gained"] != true || eff["zone_drain"] != rules.ZoneBoostDrain {
		t.Fatalf("unexpected move effect: %v", eff)
	}
	u := h.Unit(0, 1)
	if !u.Boosted || u.AttacksRemaining != rules.ZoneBoostAttacks {
		t.Fatalf("boost not visible in obs: %+v", u)
	}

	// Boosted reach covers the three tiles to the scout. The hit is
	// lethal at default health and ends the match by elimination.
	h.Order(0, 1, [4]int{7, 2, 1, 0})
	events = h.Step()
	attacks := eventsOf(events, "ATTACK")
	if len(attacks) != 1 {
		t.Fatalf("expected one attack event, got %v", events)
	}
	eff = effectOf(attacks[0])
	if eff["target"] != 2 || eff["damage"] != 45 || eff["target_health"] != 0 || eff["destroyed"] != true {
		t.Fatalf("unexpected attack effect: %v", eff)
	}

	res := resultEvent(events)
	if res == nil {
		t.Fatalf("expected a result event, got %v", events)
	}
	if res["winner"] != 0 || res["reason"] != "elimination" {
		t.Fatalf("unexpected result: %v", res)
	}
	if !h.G.Done() || h.G.Victor() != 0 || h.G.Reason() != "elimination" {
		t.Fatalf("engine end state: done=%v victor=%d reason=%s", h.G.Done(), h.G.Victor(), h.G.Reason())
	}
	for p := 0; p < 2; p++ {
		if !h.Obs(p).Done {
			t.Fatalf("player %d obs not done", p)
		}
	}
	if got := h.Obs(0).Energy[0]; got != rules.InitialEnergy-rules.AttackCost {
		t.Fatalf("energy after kill = %d", got)
	}
}
