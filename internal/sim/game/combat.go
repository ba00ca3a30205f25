package game

import "quantumharvest.ai/internal/sim/tuning"

// handleAttack resolves a Warrior's line attack. The scan walks the
// direction one tile at a time out to the attack range (extended while
// boosted) and stops at the first tile holding any enemy, or at a
// barrier, or at the board edge. Enemy occupancy is checked before the
// barrier, so an enemy standing on a barrier tile is still a target.
//
// The energy cost, base plus the chosen boost, is charged only when a
// target is actually hit. A miss is free and emits nothing.
func handleAttack(g *Game, u *Unit, act Action) {
	if u.Kind != UnitWarrior {
		return
	}
	if act.Boost < 0 || act.Boost > 4 {
		return
	}
	dx, dy, ok := relDir(act.DirX, act.DirY)
	if !ok || (dx == 0 && dy == 0) {
		return
	}
	cost := g.rules.AttackCost + act.Boost
	if !g.canAfford(u.Owner, cost) {
		return
	}
	reach := g.rules.AttackRange
	if u.Boosted {
		reach = g.rules.BoostedRange
	}
	target := g.scanTarget(u, dx, dy, reach)
	if target == nil {
		return
	}
	g.charge(u.Owner, cost)
	dmg := attackDamage(g.rules, act.Boost, u.Boosted)
	left := g.units.ApplyDamage(target, dmg)
	u.ConsumeAttack()
	eff := map[string]interface{}{
		"target":        target.ID,
		"damage":        dmg,
		"target_health": left,
		"cost":          cost,
	}
	if left == 0 {
		eff["destroyed"] = true
	}
	g.emit(u, ActAttack, eff)
}

func (g *Game) scanTarget(u *Unit, dx, dy, reach int) *Unit {
	pos := u.Pos
	for i := 0; i < reach; i++ {
		pos = pos.Add(dx, dy)
		if !g.board.InBounds(pos) {
			return nil
		}
		if t := g.pickTarget(pos, u.Owner); t != nil {
			return t
		}
		if g.board.Kind(pos) == TileBarrier {
			return nil
		}
	}
	return nil
}

// pickTarget selects among stacked enemies on one tile: wounded units
// and high-priority kinds score higher, ties go to the lowest id.
func (g *Game) pickTarget(p Pos, attacker int) *Unit {
	var best *Unit
	bestScore := 0
	for _, id := range g.units.At(p) {
		c := g.units.Get(id)
		if c.Owner == attacker {
			continue
		}
		score := (100 - c.Health) + combatPriority[c.Kind]*50
		if best == nil || score > bestScore || (score == bestScore && c.ID < best.ID) {
			best, bestScore = c, score
		}
	}
	return best
}

// attackDamage is 2x base, scaled by 20% per boost point, then 1.5x
// while range-boosted. With the default base of 15 every combination
// is integral: 30+6b unboosted, 45+9b boosted.
func attackDamage(r tuning.Rules, boost int, rangeBoosted bool) int {
	dmg := 2 * r.BaseDamage * (5 + boost) / 5
	if rangeBoosted {
		dmg = dmg * 3 / 2
	}
	return dmg
}
