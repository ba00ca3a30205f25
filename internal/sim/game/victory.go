package game

import "quantumharvest.ai/internal/protocol"

// evaluateVictory runs once per completed turn. Elimination is checked
// first; simultaneous elimination is a draw. At the turn limit the
// higher total energy wins, then the larger territory count, then the
// match is drawn.
func (g *Game) evaluateVictory(completed int) {
	n0 := g.units.CountOwned(0)
	n1 := g.units.CountOwned(1)
	switch {
	case n0 == 0 && n1 == 0:
		g.finish(-1, protocol.ReasonElimination)
	case n1 == 0:
		g.finish(0, protocol.ReasonElimination)
	case n0 == 0:
		g.finish(1, protocol.ReasonElimination)
	case completed >= g.rules.MaxTurns:
		g.finishAtLimit()
	}
}

func (g *Game) finishAtLimit() {
	switch {
	case g.players[0].Energy > g.players[1].Energy:
		g.finish(0, protocol.ReasonEnergy)
	case g.players[1].Energy > g.players[0].Energy:
		g.finish(1, protocol.ReasonEnergy)
	case g.territoryCount[0] > g.territoryCount[1]:
		g.finish(0, protocol.ReasonTerritory)
	case g.territoryCount[1] > g.territoryCount[0]:
		g.finish(1, protocol.ReasonTerritory)
	default:
		g.finish(-1, protocol.ReasonDraw)
	}
}

func (g *Game) finish(victor int, reason string) {
	g.done = true
	g.victor = victor
	g.reason = reason
	g.emitResult(victor, reason)
}
