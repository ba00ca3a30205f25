package game

import "sort"

// Every failed validation is a silent no-op: the action is dropped,
// no energy moves, no event is emitted. Agents learn outcomes from
// the next observation.

type actionHandler func(g *Game, u *Unit, act Action)

var actionDispatch = map[ActionType]actionHandler{
	ActMove:             handleMove,
	ActQuantumMove:      handleQuantumMove,
	ActHarvest:          handleHarvest,
	ActAttack:           handleAttack,
	ActSpawnHarvester:   spawnHandler(UnitHarvester, ActSpawnHarvester),
	ActSpawnWarrior:     spawnHandler(UnitWarrior, ActSpawnWarrior),
	ActSpawnScout:       spawnHandler(UnitScout, ActSpawnScout),
	ActCreateZone:       handleCreateZone,
	ActGateHealthGain:   handleGateHealthGain,
	ActGateTeleport:     handleGateTeleport,
	ActBuildDecoherence: buildHandler(TileDecoherenceField, ActBuildDecoherence),
	ActBuildBarrier:     buildHandler(TileBarrier, ActBuildBarrier),
	ActBuildGate:        buildHandler(TileQuantumGate, ActBuildGate),
}

// resolvePlayer applies one player's batch in ascending unit id order.
// Orders for units that died earlier in the turn, or that the player
// does not own, are dropped.
func (g *Game) resolvePlayer(player int, batch Batch) {
	if len(batch) == 0 {
		return
	}
	ids := make([]int, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		u := g.units.Get(id)
		if u == nil || u.Owner != player {
			continue
		}
		h, ok := actionDispatch[ActionType(batch[id].Type)]
		if !ok {
			// Reserved and unknown action types are accepted and ignored.
			continue
		}
		h(g, u, batch[id])
	}
}

func handleMove(g *Game, u *Unit, act Action) {
	dx, dy, ok := relDir(act.DirX, act.DirY)
	if !ok {
		return
	}
	to := u.Pos.Add(dx, dy)
	if !g.board.InBounds(to) {
		return
	}
	k := g.board.Kind(to)
	if k == TileBarrier {
		return
	}
	if k != TileQuantumGate && g.units.HasEnemyAt(to, u.Owner) {
		return
	}
	from := u.Pos
	g.units.Relocate(u, to)
	eff := map[string]interface{}{"from": posArr(from), "to": posArr(to)}
	g.arriveInto(u, eff)
	g.emit(u, ActMove, eff)
}

func handleQuantumMove(g *Game, u *Unit, act Action) {
	dx, dy, ok := relDir(act.DirX, act.DirY)
	if !ok {
		return
	}
	cost := g.rules.QuantumMoveCost
	if !g.canAfford(u.Owner, cost) {
		return
	}
	to := u.Pos.Add(dx, dy)
	if !g.board.InBounds(to) {
		return
	}
	// Barriers do not block quantum movement; the unit may land on one.
	if g.board.Kind(to) != TileQuantumGate && g.units.HasEnemyAt(to, u.Owner) {
		return
	}
	g.charge(u.Owner, cost)
	from := u.Pos
	g.units.Relocate(u, to)
	eff := map[string]interface{}{"from": posArr(from), "to": posArr(to), "cost": cost}
	g.arriveInto(u, eff)
	g.emit(u, ActQuantumMove, eff)
}

// arriveInto applies tile arrival effects after any relocation and
// records them in the effect map. Entanglement boost requires a
// Warrior, no active boost, and power left in the zone; the drain is
// capped by the remaining power. Decoherence clears any boost.
func (g *Game) arriveInto(u *Unit, eff map[string]interface{}) {
	switch g.board.Kind(u.Pos) {
	case TileEntanglementZone:
		if u.Kind == UnitWarrior && !u.Boosted && g.board.Payload(u.Pos) > 0 {
			drained := g.board.Drain(u.Pos, g.rules.ZoneBoostDrain)
			u.GrantBoost(g.rules.ZoneBoostAttacks)
			eff["boost_gained"] = true
			eff["zone_drain"] = drained
		}
	case TileDecoherenceField:
		if u.Boosted {
			u.ClearBoost()
			eff["boost_cleared"] = true
		}
	}
}

func handleHarvest(g *Game, u *Unit, act Action) {
	if g.board.Kind(u.Pos) != TileEnergyNode {
		return
	}
	rate := g.harvestRate(u.Kind)
	if rate <= 0 || g.board.Payload(u.Pos) == 0 {
		return
	}
	take := g.board.Drain(u.Pos, rate)
	g.players[u.Owner].Energy += take
	g.emit(u, ActHarvest, map[string]interface{}{
		"pos":       posArr(u.Pos),
		"amount":    take,
		"remaining": g.board.Payload(u.Pos),
	})
}

// spawnHandler builds the handler for one spawn action. Only Scouts
// spawn, always at the owner's spawn point. Friendly stacking there is
// fine; an enemy unit or a barrier on the spawn tile blocks it.
func spawnHandler(kind UnitKind, t ActionType) actionHandler {
	return func(g *Game, u *Unit, act Action) {
		if u.Kind != UnitScout {
			return
		}
		cost := g.spawnCost(kind)
		if !g.canAfford(u.Owner, cost) {
			return
		}
		at := g.players[u.Owner].Spawn
		if g.board.Kind(at) == TileBarrier {
			return
		}
		if g.units.HasEnemyAt(at, u.Owner) {
			return
		}
		g.charge(u.Owner, cost)
		nu := g.units.Spawn(u.Owner, kind, at, g.rules.UnitHealth)
		g.emit(u, t, map[string]interface{}{
			"unit": nu.ID,
			"kind": int(kind),
			"pos":  posArr(at),
			"cost": cost,
		})
	}
}

func handleCreateZone(g *Game, u *Unit, act Action) {
	if u.Kind != UnitWarrior && u.Kind != UnitScout {
		return
	}
	cost := g.rules.CostEntanglementZone
	if !g.canAfford(u.Owner, cost) {
		return
	}
	to, ok := g.adjacentTarget(u, act)
	if !ok || g.board.Kind(to) != TileEmpty {
		return
	}
	g.charge(u.Owner, cost)
	g.board.Place(to, TileEntanglementZone, g.rules.ZoneInitialPower)
	g.emit(u, ActCreateZone, map[string]interface{}{
		"pos":   posArr(to),
		"power": g.rules.ZoneInitialPower,
		"cost":  cost,
	})
}

func handleGateHealthGain(g *Game, u *Unit, act Action) {
	if g.board.Kind(u.Pos) != TileQuantumGate {
		return
	}
	cost := g.rules.GateHealCost
	if !g.canAfford(u.Owner, cost) {
		return
	}
	g.charge(u.Owner, cost)
	before := u.Health
	u.Health += g.rules.GateHealAmount
	if u.Health > g.rules.UnitMaxHealth {
		u.Health = g.rules.UnitMaxHealth
	}
	g.emit(u, ActGateHealthGain, map[string]interface{}{
		"amount": u.Health - before,
		"health": u.Health,
		"cost":   cost,
	})
}

// handleGateTeleport is the one action whose direction fields carry raw
// board coordinates instead of the 0|1|2 relative encoding. Both ends
// must be gates.
func handleGateTeleport(g *Game, u *Unit, act Action) {
	if g.board.Kind(u.Pos) != TileQuantumGate {
		return
	}
	cost := g.rules.GateTeleportCost
	if !g.canAfford(u.Owner, cost) {
		return
	}
	to := Pos{X: act.DirX, Y: act.DirY}
	if !g.board.InBounds(to) || g.board.Kind(to) != TileQuantumGate {
		return
	}
	g.charge(u.Owner, cost)
	from := u.Pos
	g.units.Relocate(u, to)
	g.emit(u, ActGateTeleport, map[string]interface{}{
		"from": posArr(from),
		"to":   posArr(to),
		"cost": cost,
	})
}

func buildHandler(kind TileKind, t ActionType) actionHandler {
	return func(g *Game, u *Unit, act Action) {
		cost := g.buildCost(kind)
		if !g.canAfford(u.Owner, cost) {
			return
		}
		to, ok := g.adjacentTarget(u, act)
		if !ok || g.board.Kind(to) != TileEmpty {
			return
		}
		g.charge(u.Owner, cost)
		g.board.Place(to, kind, 0)
		g.emit(u, t, map[string]interface{}{
			"pos":  posArr(to),
			"tile": int(kind),
			"cost": cost,
		})
	}
}

// adjacentTarget decodes a relative direction that must name one of
// the unit's eight neighbors. The unit's own tile is not a build
// target.
func (g *Game) adjacentTarget(u *Unit, act Action) (Pos, bool) {
	dx, dy, ok := relDir(act.DirX, act.DirY)
	if !ok || (dx == 0 && dy == 0) {
		return Pos{}, false
	}
	to := u.Pos.Add(dx, dy)
	if !g.board.InBounds(to) {
		return Pos{}, false
	}
	return to, true
}
