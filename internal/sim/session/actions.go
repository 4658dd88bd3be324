package session

import (
	"errors"
	"fmt"
	"strings"

	"blockremental/internal/protocol"
)

type ActionKind string

const (
	ActionPlace   ActionKind = protocol.ActPlace
	ActionUpgrade ActionKind = protocol.ActUpgrade
)

// Action is one player purchase, applied at the next update tick in receive order.
type Action struct {
	ID      string     `json:"id"`
	Kind    ActionKind `json:"kind"`
	X       int        `json:"x,omitempty"`
	Y       int        `json:"y,omitempty"`
	Block   string     `json:"block,omitempty"`
	Upgrade string     `json:"upgrade,omitempty"`
}

type ActionResult struct {
	ActionID string `json:"action_id"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

var (
	ErrInvalidPlacement  = errors.New("invalid placement")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnknownBlock      = errors.New("unknown block")
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
	ErrGridAtCapacity    = errors.New("grid at capacity")
	ErrBadAction         = errors.New("bad action")
	ErrBusy              = errors.New("session busy")
)

// ErrorCode maps a session error onto its wire code. A nil error maps to "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPlacement):
		return protocol.ErrInvalidPlacement
	case errors.Is(err, ErrInsufficientFunds):
		return protocol.ErrInsufficientFunds
	case errors.Is(err, ErrGridAtCapacity):
		return protocol.ErrInvalidTarget
	case errors.Is(err, ErrBusy):
		return protocol.ErrSessionBusy
	case errors.Is(err, ErrUnknownBlock), errors.Is(err, ErrUnknownUpgrade), errors.Is(err, ErrBadAction):
		return protocol.ErrBadRequest
	default:
		return protocol.ErrInternal
	}
}

// ActionFromMsg converts a wire ACT into a session action.
func ActionFromMsg(m protocol.ActMsg) (Action, error) {
	a := Action{
		ID:      m.ID,
		Kind:    ActionKind(strings.ToUpper(strings.TrimSpace(m.Kind))),
		X:       m.X,
		Y:       m.Y,
		Block:   strings.ToUpper(strings.TrimSpace(m.Block)),
		Upgrade: strings.ToUpper(strings.TrimSpace(m.Upgrade)),
	}
	if a.ID == "" {
		return a, fmt.Errorf("%w: missing id", ErrBadAction)
	}
	switch a.Kind {
	case ActionPlace:
		if a.Block == "" {
			return a, fmt.Errorf("%w: PLACE needs block", ErrBadAction)
		}
	case ActionUpgrade:
		if a.Upgrade == "" {
			return a, fmt.Errorf("%w: UPGRADE needs upgrade", ErrBadAction)
		}
	default:
		return a, fmt.Errorf("%w: unknown kind %q", ErrBadAction, m.Kind)
	}
	return a, nil
}

func resultFor(a Action, err error) ActionResult {
	r := ActionResult{ActionID: a.ID, Accepted: err == nil}
	if err != nil {
		r.Code = ErrorCode(err)
		r.Message = err.Error()
	}
	return r
}
