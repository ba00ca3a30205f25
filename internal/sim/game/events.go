package game

import "quantumharvest.ai/internal/protocol"

// Events are emitted only for actions that executed. They share the
// turn index of the batch that produced them; the observation carrying
// them already shows the following turn.

func posArr(p Pos) [2]int { return [2]int{p.X, p.Y} }

func (g *Game) emit(u *Unit, t ActionType, effect map[string]interface{}) {
	ev := protocol.Event{
		"type":   "ACTION",
		"turn":   g.turn,
		"player": u.Owner,
		"unit":   u.ID,
		"action": t.String(),
	}
	if len(effect) > 0 {
		ev["effect"] = effect
	}
	g.events = append(g.events, ev)
}

func (g *Game) emitResult(victor int, reason string) {
	g.events = append(g.events, protocol.Event{
		"type":   "RESULT",
		"turn":   g.turn,
		"winner": victor,
		"reason": reason,
	})
}
