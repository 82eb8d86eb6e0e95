package domain

import "errors"

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrDuplicateChain  = errors.New("active chain already exists for symbol and side")
	ErrNotFound        = errors.New("chain not found")
	ErrCapExceeded     = errors.New("chain exposure cap exceeded")
	ErrPersistence     = errors.New("persistence failure")
	ErrGateway         = errors.New("order gateway failure")
	ErrChainClosed     = errors.New("chain is not active")
	ErrVersionConflict = errors.New("chain snapshot version conflict")
)

// GateDecision is the result of a risk or trend check. A denial is a normal
// outcome, not an error.
type GateDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func Allow() GateDecision {
	return GateDecision{Allowed: true}
}

func Deny(reason, detail string) GateDecision {
	return GateDecision{Reason: reason, Detail: detail}
}
