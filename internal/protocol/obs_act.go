package protocol

// OBS (server -> client): one player's fog-filtered view of the match
// after a fully resolved turn. Both seats receive their own OBS built
// from the same post-turn state.
type ObsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Turn            int    `json:"turn"`
	Player          int    `json:"player"`

	// Grid rows indexed [x][y]; -1 means unexplored, otherwise the tile
	// kind 0..5.
	Grid [][]int `json:"grid"`

	Units []UnitObs `json:"units"`

	// Both players' energy totals are mutually visible.
	Energy    [2]int     `json:"energy"`
	Territory [2]float64 `json:"territory"`

	// The observer's own exploration percentage.
	Exploration float64 `json:"exploration"`

	// Events of the turn that produced this state, in resolution order.
	Events []Event `json:"events"`

	Done bool `json:"done,omitempty"`
}

type UnitObs struct {
	ID               int  `json:"id"`
	Owner            int  `json:"owner"`
	Kind             int  `json:"kind"` // 0 Harvester, 1 Warrior, 2 Scout
	X                int  `json:"x"`
	Y                int  `json:"y"`
	Health           int  `json:"health"`
	Boosted          bool `json:"boosted"`
	AttacksRemaining int  `json:"attacks_remaining"`
}

// ACT (client -> server): a full batch of orders for the given turn.
// Orders for the same unit id are a mapping; the last entry wins.
type ActMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	MatchID         string     `json:"match_id"`
	Turn            int        `json:"turn"`
	Orders          []OrderReq `json:"orders"`
}

// OrderReq pairs a unit id with its 4-field action vector
// [type, dirX, dirY, energyBoost]. dirX/dirY are the 0|1|2 relative
// encoding for every action except gate teleport, which reads them as
// absolute board coordinates.
type OrderReq struct {
	Unit int    `json:"unit"`
	Act  [4]int `json:"act"`
}

type Event map[string]interface{}
