package main

import (
	"math/rand"

	"quantumharvest.ai/internal/protocol"
	"quantumharvest.ai/internal/sim/tuning"
)

// Unit kinds and action types as they appear on the wire.
const (
	kindHarvester = 0
	kindWarrior   = 1
	kindScout     = 2

	actMove           = 0
	actHarvest        = 2
	actAttack         = 7
	actSpawnHarvester = 8
	actSpawnWarrior   = 9
)

// Obs grid tile kinds (-1 = unexplored).
const (
	tileEnergyNode = 1
	tileBarrier    = 2
)

// Budget knobs: keep enough banked that a lost Harvester can be
// replaced, and only field Warriors once the economy is running.
const (
	maxHarvesters  = 5
	maxWarriors    = 3
	harvestReserve = 20
	warriorReserve = 50
)

// bot is a baseline scripted agent: Harvesters park on energy nodes,
// the Scout explores and keeps new units coming, Warriors push toward
// the enemy spawn and attack on contact. Tie-breaking goes through the
// seeded rng, so a run is reproducible end to end.
type bot struct {
	rules  tuning.Rules
	rng    *rand.Rand
	player int
	size   int

	// Nodes this bot has drained to zero; not worth walking to.
	deadNodes map[[2]int]bool
}

func (b *bot) welcome(w protocol.WelcomeMsg) {
	b.player = w.Player
	b.size = w.MatchParams.MapSize
	b.deadNodes = make(map[[2]int]bool)
}

func (b *bot) plan(obs *protocol.ObsMsg) protocol.ActMsg {
	b.noteEvents(obs)

	orders := make([]protocol.OrderReq, 0, len(obs.Units))
	for _, u := range obs.Units {
		if u.Owner != b.player {
			continue
		}
		var act [4]int
		var ok bool
		switch u.Kind {
		case kindHarvester:
			act, ok = b.harvesterAct(obs, u)
		case kindWarrior:
			act, ok = b.warriorAct(obs, u)
		case kindScout:
			act, ok = b.scoutAct(obs, u)
		}
		if ok {
			orders = append(orders, protocol.OrderReq{Unit: u.ID, Act: act})
		}
	}
	return protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		MatchID:         obs.MatchID,
		Turn:            obs.Turn,
		Orders:          orders,
	}
}

// noteEvents watches this bot's own harvest results and marks nodes
// drained to zero.
func (b *bot) noteEvents(obs *protocol.ObsMsg) {
	for _, ev := range obs.Events {
		if action, _ := ev["action"].(string); action != "HARVEST" {
			continue
		}
		eff, _ := ev["effect"].(map[string]interface{})
		if eff == nil {
			continue
		}
		if rem, ok := eff["remaining"].(float64); !ok || rem > 0 {
			continue
		}
		pos, _ := eff["pos"].([]interface{})
		if len(pos) != 2 {
			continue
		}
		x, _ := pos[0].(float64)
		y, _ := pos[1].(float64)
		b.deadNodes[[2]int{int(x), int(y)}] = true
	}
}

func (b *bot) harvesterAct(obs *protocol.ObsMsg, u protocol.UnitObs) ([4]int, bool) {
	if tileAt(obs, u.X, u.Y) == tileEnergyNode && !b.deadNodes[[2]int{u.X, u.Y}] {
		return [4]int{actHarvest, 1, 1, 0}, true
	}
	if tx, ty, ok := b.nearestLiveNode(obs, u); ok {
		return b.stepToward(obs, u, tx, ty)
	}
	return b.exploreStep(obs, u)
}

func (b *bot) warriorAct(obs *protocol.ObsMsg, u protocol.UnitObs) ([4]int, bool) {
	// Attack on contact.
	for _, e := range obs.Units {
		if e.Owner == b.player {
			continue
		}
		dx, dy := e.X-u.X, e.Y-u.Y
		if dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1 && (dx != 0 || dy != 0) {
			return [4]int{actAttack, dx + 1, dy + 1, 0}, true
		}
	}
	tx, ty := b.enemySpawn()
	return b.stepToward(obs, u, tx, ty)
}

func (b *bot) scoutAct(obs *protocol.ObsMsg, u protocol.UnitObs) ([4]int, bool) {
	energy := obs.Energy[b.player]
	harvesters := b.countOwn(obs, kindHarvester)
	warriors := b.countOwn(obs, kindWarrior)

	if harvesters < maxHarvesters && energy >= b.rules.CostHarvester+harvestReserve {
		return [4]int{actSpawnHarvester, 1, 1, 0}, true
	}
	if warriors < maxWarriors && energy >= b.rules.CostWarrior+warriorReserve {
		return [4]int{actSpawnWarrior, 1, 1, 0}, true
	}
	return b.exploreStep(obs, u)
}

func (b *bot) countOwn(obs *protocol.ObsMsg, kind int) int {
	n := 0
	for _, u := range obs.Units {
		if u.Owner == b.player && u.Kind == kind {
			n++
		}
	}
	return n
}

func (b *bot) enemySpawn() (int, int) {
	if b.player == 0 {
		return b.size - 1, b.size - 1
	}
	return 0, 0
}

// nearestLiveNode scans the explored grid for the closest energy node
// not yet drained dry, breaking distance ties with the rng.
func (b *bot) nearestLiveNode(obs *protocol.ObsMsg, u protocol.UnitObs) (int, int, bool) {
	return b.nearestWhere(obs, u, func(x, y, kind int) bool {
		return kind == tileEnergyNode && !b.deadNodes[[2]int{x, y}]
	})
}

// exploreStep walks toward the closest unexplored cell; once the map is
// fully known it drifts toward the enemy spawn.
func (b *bot) exploreStep(obs *protocol.ObsMsg, u protocol.UnitObs) ([4]int, bool) {
	if tx, ty, ok := b.nearestWhere(obs, u, func(x, y, kind int) bool {
		return kind == -1
	}); ok {
		return b.stepToward(obs, u, tx, ty)
	}
	tx, ty := b.enemySpawn()
	return b.stepToward(obs, u, tx, ty)
}

func (b *bot) nearestWhere(obs *protocol.ObsMsg, u protocol.UnitObs, want func(x, y, kind int) bool) (int, int, bool) {
	best := -1
	var ties [][2]int
	for x := range obs.Grid {
		for y := range obs.Grid[x] {
			if !want(x, y, obs.Grid[x][y]) {
				continue
			}
			d := abs(x-u.X) + abs(y-u.Y)
			switch {
			case best == -1 || d < best:
				best = d
				ties = ties[:0]
				ties = append(ties, [2]int{x, y})
			case d == best:
				ties = append(ties, [2]int{x, y})
			}
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	p := ties[b.rng.Intn(len(ties))]
	return p[0], p[1], true
}

// stepToward emits one move toward (tx, ty). When the direct step is
// blocked it sidesteps through a random passable neighbor, never
// straight backwards.
func (b *bot) stepToward(obs *protocol.ObsMsg, u protocol.UnitObs, tx, ty int) ([4]int, bool) {
	dx, dy := sign(tx-u.X), sign(ty-u.Y)
	if dx == 0 && dy == 0 {
		return [4]int{}, false
	}
	if b.passable(obs, u.X+dx, u.Y+dy) {
		return [4]int{actMove, dx + 1, dy + 1, 0}, true
	}
	dirs := neighborDirs()
	b.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	for _, d := range dirs {
		if d[0] == -dx && d[1] == -dy {
			continue
		}
		if b.passable(obs, u.X+d[0], u.Y+d[1]) {
			return [4]int{actMove, d[0] + 1, d[1] + 1, 0}, true
		}
	}
	return [4]int{}, false
}

// passable treats unexplored cells as walkable; if one turns out to be
// a barrier the engine drops the move and the next obs shows why.
func (b *bot) passable(obs *protocol.ObsMsg, x, y int) bool {
	if x < 0 || y < 0 || x >= len(obs.Grid) || y >= len(obs.Grid) {
		return false
	}
	if obs.Grid[x][y] == tileBarrier {
		return false
	}
	for _, e := range obs.Units {
		if e.Owner != b.player && e.X == x && e.Y == y {
			return false
		}
	}
	return true
}

func tileAt(obs *protocol.ObsMsg, x, y int) int {
	if x < 0 || y < 0 || x >= len(obs.Grid) || y >= len(obs.Grid) {
		return -1
	}
	return obs.Grid[x][y]
}

func neighborDirs() [][2]int {
	return [][2]int{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
