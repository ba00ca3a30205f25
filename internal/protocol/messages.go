package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`

	// Optional: join a specific match (second seat or spectator).
	MatchID string `json:"match_id,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	MatchID         string      `json:"match_id"`
	Player          int         `json:"player"` // assigned seat, 0 or 1
	MatchParams     MatchParams `json:"match_params"`
	RulesDigest     string      `json:"rules_digest"`
}

type MatchParams struct {
	MapSize       int   `json:"map_size"`
	MaxTurns      int   `json:"max_turns"`
	TurnTimeoutMs int   `json:"turn_timeout_ms"`
	Seed          int64 `json:"seed"`
}

// Result reasons carried by ResultMsg and RESULT events.
const (
	ReasonElimination = "elimination"
	ReasonEnergy      = "energy"
	ReasonTerritory   = "territory"
	ReasonDraw        = "draw"
	ReasonForfeit     = "forfeit"
)

// RESULT (server -> client), final message of a match.
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Turns           int    `json:"turns"`
	Winner          int    `json:"winner"` // 0 or 1, -1 for a draw
	Reason          string `json:"reason"`
	Digest          string `json:"digest"` // final state digest
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}
