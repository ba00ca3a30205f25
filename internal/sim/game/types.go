package game

import "fmt"

// TileKind values are wire-visible (obs grid entries 0..5).
type TileKind int8

const (
	TileEmpty            TileKind = 0
	TileEnergyNode       TileKind = 1
	TileBarrier          TileKind = 2
	TileEntanglementZone TileKind = 3
	TileDecoherenceField TileKind = 4
	TileQuantumGate      TileKind = 5
)

func (k TileKind) Valid() bool { return k >= TileEmpty && k <= TileQuantumGate }

func (k TileKind) String() string {
	switch k {
	case TileEmpty:
		return "EMPTY"
	case TileEnergyNode:
		return "ENERGY_NODE"
	case TileBarrier:
		return "BARRIER"
	case TileEntanglementZone:
		return "ENTANGLEMENT_ZONE"
	case TileDecoherenceField:
		return "DECOHERENCE_FIELD"
	case TileQuantumGate:
		return "QUANTUM_GATE"
	}
	return fmt.Sprintf("TILE_%d", int(k))
}

// UnitKind values are wire-visible (obs unit rows).
type UnitKind int8

const (
	UnitHarvester UnitKind = 0
	UnitWarrior   UnitKind = 1
	UnitScout     UnitKind = 2
)

func (k UnitKind) Valid() bool { return k >= UnitHarvester && k <= UnitScout }

func (k UnitKind) String() string {
	switch k {
	case UnitHarvester:
		return "HARVESTER"
	case UnitWarrior:
		return "WARRIOR"
	case UnitScout:
		return "SCOUT"
	}
	return fmt.Sprintf("UNIT_%d", int(k))
}

// combatPriority weights target selection: Harvester 3, Scout 2, Warrior 1.
var combatPriority = [3]int{UnitHarvester: 3, UnitWarrior: 1, UnitScout: 2}

// ActionType is the first field of the 4-int action vector. Types 3..6
// are reserved no-ops: accepted and ignored, never rejected.
type ActionType int

const (
	ActMove                 ActionType = 0
	ActQuantumMove          ActionType = 1
	ActHarvest              ActionType = 2
	ActAttack               ActionType = 7
	ActSpawnHarvester       ActionType = 8
	ActSpawnWarrior         ActionType = 9
	ActSpawnScout           ActionType = 10
	ActCreateZone           ActionType = 11
	ActGateHealthGain       ActionType = 12
	ActGateTeleport         ActionType = 13
	ActBuildDecoherence     ActionType = 14
	ActBuildBarrier         ActionType = 15
	ActBuildGate            ActionType = 16
)

func (t ActionType) String() string {
	switch t {
	case ActMove:
		return "MOVE"
	case ActQuantumMove:
		return "QUANTUM_MOVE"
	case ActHarvest:
		return "HARVEST"
	case ActAttack:
		return "ATTACK"
	case ActSpawnHarvester:
		return "SPAWN_HARVESTER"
	case ActSpawnWarrior:
		return "SPAWN_WARRIOR"
	case ActSpawnScout:
		return "SPAWN_SCOUT"
	case ActCreateZone:
		return "CREATE_ENTANGLEMENT_ZONE"
	case ActGateHealthGain:
		return "GATE_HEALTH_GAIN"
	case ActGateTeleport:
		return "GATE_TELEPORT"
	case ActBuildDecoherence:
		return "BUILD_DECOHERENCE_FIELD"
	case ActBuildBarrier:
		return "BUILD_BARRIER"
	case ActBuildGate:
		return "BUILD_QUANTUM_GATE"
	}
	return fmt.Sprintf("ACTION_%d", int(t))
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Pos) Add(dx, dy int) Pos { return Pos{X: p.X + dx, Y: p.Y + dy} }

func Manhattan(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Action is one decoded order: the raw 4-int vector
// [type, dirX, dirY, energyBoost]. Direction fields keep their wire
// encoding (0|1|2 relative, raw absolute for gate teleport); handlers
// decode per action type.
type Action struct {
	Type  int
	DirX  int
	DirY  int
	Boost int
}

func ActionFromVec(v [4]int) Action {
	return Action{Type: v[0], DirX: v[1], DirY: v[2], Boost: v[3]}
}

func (a Action) Vec() [4]int { return [4]int{a.Type, a.DirX, a.DirY, a.Boost} }

// relDir decodes the 0|1|2 wire encoding to an offset in -1..1.
// ok is false for values outside the encoding; such orders are
// structural no-ops.
func relDir(dirX, dirY int) (dx, dy int, ok bool) {
	if dirX < 0 || dirX > 2 || dirY < 0 || dirY > 2 {
		return 0, 0, false
	}
	return dirX - 1, dirY - 1, true
}

// Batch maps unit id to its order for one player's turn.
type Batch map[int]Action

// invariant aborts on engine defects. Validation failures never reach
// here; a trip means state went negative through engine logic.
func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("engine invariant: "+format, args...))
	}
}
