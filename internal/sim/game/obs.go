package game

import "quantumharvest.ai/internal/protocol"

// Observe builds one player's fogged view of the current state. The
// grid is indexed [x][y]: -1 where unexplored, otherwise the live tile
// kind. Own units are always listed; enemy units only while standing
// on a tile the observer has explored. Energy and territory for both
// sides are public, exploration covers the observer only.
//
// MatchID and Events are the match runtime's to fill in.
func (g *Game) Observe(player int) protocol.ObsMsg {
	n := g.board.Size()
	grid := make([][]int, n)
	for x := 0; x < n; x++ {
		row := make([]int, n)
		for y := 0; y < n; y++ {
			p := Pos{X: x, Y: y}
			if g.vision.Explored(player, p) {
				row[y] = int(g.board.Kind(p))
			} else {
				row[y] = -1
			}
		}
		grid[x] = row
	}
	units := make([]protocol.UnitObs, 0, g.units.Len())
	for _, id := range g.units.IDs() {
		u := g.units.Get(id)
		if u.Owner != player && !g.vision.Explored(player, u.Pos) {
			continue
		}
		units = append(units, protocol.UnitObs{
			ID:               u.ID,
			Owner:            u.Owner,
			Kind:             int(u.Kind),
			X:                u.Pos.X,
			Y:                u.Pos.Y,
			Health:           u.Health,
			Boosted:          u.Boosted,
			AttacksRemaining: u.AttacksRemaining,
		})
	}
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Turn:            g.turn,
		Player:          player,
		Grid:            grid,
		Units:           units,
		Energy:          [2]int{g.players[0].Energy, g.players[1].Energy},
		Territory:       g.territory,
		Exploration:     g.vision.Percentage(player),
		Done:            g.done,
	}
}

// BatchFromOrders decodes the wire order list into a batch. Duplicate
// unit ids keep the last entry, matching list order on the wire.
func BatchFromOrders(orders []protocol.OrderReq) Batch {
	if len(orders) == 0 {
		return nil
	}
	b := make(Batch, len(orders))
	for _, o := range orders {
		b[o.Unit] = ActionFromVec(o.Act)
	}
	return b
}
