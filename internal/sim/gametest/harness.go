// Package gametest drives full matches through the exported engine
// surface: set up a board by hand or from the generator, queue both
// players' orders, step, read the refreshed observations back. Tests
// here cover cross-package flows; per-mechanic cases live next to the
// engine.
package gametest

import (
	"testing"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/game"
	"quantumharvest.ai/internal/sim/mapgen"
	"quantumharvest.ai/internal/sim/tuning"
)

// Harness wraps one engine instance the way the match runtime uses it:
// wire-shaped order lists in, observations for both seats out. It never
// touches engine internals, so a passing scenario holds over the real
// transport too.
type Harness struct {
	T *testing.T
	G *game.Game

	queued [2][]protocol.OrderReq
	last   [2]protocol.ObsMsg
	events []protocol.Event
}

func NewHarness(t *testing.T, setup game.Setup, rules tuning.Rules) *Harness {
	t.Helper()
	g, err := game.New(setup, rules)
	if err != nil {
		t.Fatalf("game.New: %v", err)
	}
	h := &Harness{T: t, G: g}
	h.refreshObs()
	return h
}

// NewGeneratedHarness is like NewHarness but rolls the board from the
// map generator, as the lobby does for live matches.
func NewGeneratedHarness(t *testing.T, size int, seed int64, rules tuning.Rules) *Harness {
	t.Helper()
	setup, err := mapgen.Generate(size, seed, rules)
	if err != nil {
		t.Fatalf("mapgen.Generate: %v", err)
	}
	return NewHarness(t, setup, rules)
}

// Order queues one order for the next Step. Orders accumulate in wire
// order, so a later order for the same unit wins.
func (h *Harness) Order(player, unit int, act [4]int) {
	h.T.Helper()
	if player != 0 && player != 1 {
		h.T.Fatalf("bad player %d", player)
	}
	h.queued[player] = append(h.queued[player], protocol.OrderReq{Unit: unit, Act: act})
}

// Step resolves one turn from the queued orders and refreshes both
// observations. Returns the turn's events.
func (h *Harness) Step() []protocol.Event {
	h.T.Helper()
	p0 := game.BatchFromOrders(h.queued[0])
	p1 := game.BatchFromOrders(h.queued[1])
	h.queued[0], h.queued[1] = nil, nil
	events, _, _ := h.G.Step(p0, p1)
	h.events = events
	h.refreshObs()
	return events
}

// StepN resolves up to n turns, the first from the queued orders and
// the rest empty, stopping early when the match ends.
func (h *Harness) StepN(n int) {
	h.T.Helper()
	for i := 0; i < n; i++ {
		h.Step()
		if h.G.Done() {
			return
		}
	}
}

func (h *Harness) Obs(player int) protocol.ObsMsg { return h.last[player] }

func (h *Harness) Events() []protocol.Event { return h.events }

// Unit returns the observed unit with the given id, failing the test
// when the observer cannot see it.
func (h *Harness) Unit(player, id int) protocol.UnitObs {
	h.T.Helper()
	for _, u := range h.last[player].Units {
		if u.ID == id {
			return u
		}
	}
	h.T.Fatalf("player %d does not see unit %d; units=%v", player, id, h.last[player].Units)
	return protocol.UnitObs{}
}

// Sees reports whether the observer's last observation lists the unit.
func (h *Harness) Sees(player, id int) bool {
	for _, u := range h.last[player].Units {
		if u.ID == id {
			return true
		}
	}
	return false
}

func (h *Harness) refreshObs() {
	h.last[0] = h.G.Observe(0)
	h.last[1] = h.G.Observe(1)
}
