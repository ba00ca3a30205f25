package observerproto

import "quantumharvest.ai/internal/protocol"

// Version is the spectator protocol version (separate from the agent WS
// protocol).
const Version = "0.1"

const (
	TypeSnapshot = "MATCH_SNAPSHOT"
	TypeUpdate   = "MATCH_UPDATE"
)

// Server -> Client. Sent once when a spectator attaches: the full,
// fog-free state of the match.
//
// Encoding "RLE" means: decode Grid from base64 to (kind, run_len)
// varint pairs and expand to Size*Size tile kinds in x-major scan order
// (x outer, y inner).
type SnapshotMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Turn            int    `json:"turn"`

	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Grid     string `json:"grid"`

	Units     []protocol.UnitObs `json:"units"`
	Energy    [2]int             `json:"energy"`
	Territory [2]float64         `json:"territory"`

	Done bool `json:"done,omitempty"`
}

// Server -> Client. Sent after every resolved turn.
type UpdateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	MatchID         string `json:"match_id"`
	Turn            int    `json:"turn"`

	Energy    [2]int     `json:"energy"`
	Territory [2]float64 `json:"territory"`
	Digest    string     `json:"digest"`

	Units  []protocol.UnitObs `json:"units"`
	Events []protocol.Event   `json:"events,omitempty"`

	// Set on the final update. Winner stays -1 until there is one.
	Done   bool   `json:"done,omitempty"`
	Winner int    `json:"winner"`
	Reason string `json:"reason,omitempty"`
}
