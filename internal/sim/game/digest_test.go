package game

import (
	"reflect"
	"testing"
)

func determinismSetup() Setup {
	return Setup{
		Size:   8,
		Seed:   42,
		Spawns: [2]Pos{{X: 0, Y: 0}, {X: 7, Y: 7}},
		Tiles: []TilePlacement{
			{Pos: Pos{2, 2}, Kind: TileEnergyNode, Payload: 1200},
			{Pos: Pos{5, 5}, Kind: TileEnergyNode, Payload: 1200},
			{Pos: Pos{3, 4}, Kind: TileEntanglementZone, Payload: 200},
			{Pos: Pos{2, 5}, Kind: TileQuantumGate},
			{Pos: Pos{5, 2}, Kind: TileQuantumGate},
			{Pos: Pos{4, 4}, Kind: TileBarrier},
			{Pos: Pos{1, 6}, Kind: TileDecoherenceField},
		},
		Units: []UnitPlacement{
			{Owner: 0, Kind: UnitScout, Pos: Pos{0, 0}},
			{Owner: 0, Kind: UnitWarrior, Pos: Pos{3, 3}},
			{Owner: 0, Kind: UnitHarvester, Pos: Pos{2, 2}},
			{Owner: 1, Kind: UnitScout, Pos: Pos{7, 7}},
			{Owner: 1, Kind: UnitWarrior, Pos: Pos{4, 5}},
			{Owner: 1, Kind: UnitHarvester, Pos: Pos{5, 5}},
		},
	}
}

// A scripted mid-game slice touching every action family. Individual
// orders are allowed to fail validation; both engines must fail them
// identically.
var determinismScript = []struct {
	p0, p1 Batch
}{
	{
		Batch{1: act(0, 2, 2, 0), 2: act(0, 1, 2, 0), 3: act(2, 0, 0, 0)},
		Batch{4: act(0, 0, 0, 0), 5: act(0, 1, 0, 0), 6: act(2, 0, 0, 0)},
	},
	{
		Batch{2: act(7, 2, 1, 1), 3: act(2, 0, 0, 0)},
		Batch{5: act(7, 0, 1, 0), 6: act(2, 0, 0, 0)},
	},
	{
		Batch{1: act(8, 1, 1, 0), 3: act(2, 0, 0, 0)},
		Batch{4: act(9, 1, 1, 0), 6: act(2, 0, 0, 0)},
	},
	{
		Batch{2: act(11, 1, 0, 0), 3: act(2, 1, 1, 0)},
		Batch{6: act(0, 1, 0, 0)},
	},
	{
		Batch{1: act(14, 2, 1, 0)},
		Batch{4: act(10, 1, 1, 0), 5: act(0, 1, 2, 0)},
	},
	{
		Batch{3: act(1, 1, 2, 0)},
		Batch{5: act(0, 0, 1, 0), 6: act(2, 0, 0, 0)},
	},
	{
		Batch{2: act(12, 1, 1, 0), 3: act(13, 2, 5, 0)},
		Batch{4: act(0, 1, 0, 0), 6: act(2, 0, 0, 0)},
	},
	{
		Batch{1: act(0, 1, 2, 0), 2: act(7, 1, 0, 2)},
		Batch{5: act(7, 1, 2, 3), 6: act(15, 0, 1, 0)},
	},
}

func TestDeterministicReplayAcrossEngines(t *testing.T) {
	rules := testRules()
	a, err := New(determinismSetup(), rules)
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New(determinismSetup(), rules)
	if err != nil {
		t.Fatalf("New b: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("initial digests differ")
	}

	for i, s := range determinismScript {
		evA, doneA, victorA := a.Step(s.p0, s.p1)
		evB, doneB, victorB := b.Step(s.p0, s.p1)
		if doneA != doneB || victorA != victorB {
			t.Fatalf("turn %d: outcomes diverged (%v/%d vs %v/%d)", i, doneA, victorA, doneB, victorB)
		}
		if da, db := a.Digest(), b.Digest(); da != db {
			t.Fatalf("turn %d: digests diverged\n a=%s\n b=%s", i, da, db)
		}
		if !reflect.DeepEqual(evA, evB) {
			t.Fatalf("turn %d: events diverged\n a=%v\n b=%v", i, evA, evB)
		}
		if doneA {
			break
		}
	}
}

func TestDigestMatchesForIdenticalStatesOnly(t *testing.T) {
	mk := func() *Game {
		g, err := New(determinismSetup(), testRules())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return g
	}
	g1, g2 := mk(), mk()
	if g1.Digest() != g2.Digest() {
		t.Fatalf("identical states produced different digests")
	}
	if d := g1.Digest(); d != g1.Digest() {
		t.Fatalf("digest not stable across calls")
	}

	// One diverging move is enough to split the fingerprints.
	g1.Step(Batch{1: act(0, 2, 1, 0)}, nil)
	g2.Step(Batch{1: act(0, 1, 2, 0)}, nil)
	if g1.Digest() == g2.Digest() {
		t.Fatalf("different positions share a digest")
	}
}

func TestDigestTracksHiddenState(t *testing.T) {
	g1, err := New(determinismSetup(), testRules())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g2, err := New(determinismSetup(), testRules())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Same unit positions, but only one game drains the node.
	g1.Step(Batch{3: act(2, 0, 0, 0)}, nil)
	g2.Step(nil, nil)
	if g1.Digest() == g2.Digest() {
		t.Fatalf("node payload and energy not covered by the digest")
	}
}
