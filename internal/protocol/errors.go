package protocol

// Error codes surface only at the transport layer. Inside the engine an
// illegal action is a silent no-op by contract, never an error.
const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Match routing/state.
	ErrMatchNotFound = "E_MATCH_NOT_FOUND"
	ErrMatchFull     = "E_MATCH_FULL"
	ErrMatchOver     = "E_MATCH_OVER"
	ErrBadTurn       = "E_BAD_TURN"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrMatchNotFound:   {},
	ErrMatchFull:       {},
	ErrMatchOver:       {},
	ErrBadTurn:         {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
