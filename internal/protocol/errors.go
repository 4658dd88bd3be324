package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Session inbox is full; the action was not queued.
	ErrSessionBusy = "E_SESSION_BUSY"

	// Rule/action layer.
	ErrBadRequest        = "E_BAD_REQUEST"
	ErrInvalidPlacement  = "E_INVALID_PLACEMENT"
	ErrInsufficientFunds = "E_INSUFFICIENT_FUNDS"
	ErrInvalidTarget     = "E_INVALID_TARGET"
	ErrInternal          = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:   {},
	ErrSessionBusy:       {},
	ErrBadRequest:        {},
	ErrInvalidPlacement:  {},
	ErrInsufficientFunds: {},
	ErrInvalidTarget:     {},
	ErrInternal:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
