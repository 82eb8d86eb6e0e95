package domain

import "fmt"

type OutcomeKind string

const (
	OutcomeProfitClose OutcomeKind = "profit_close"
	OutcomeLossClose   OutcomeKind = "loss_close"
	OutcomeManualClose OutcomeKind = "manual_close"
	OutcomeStopHunted  OutcomeKind = "stop_hunted"
)

// TradeOutcome is the closed set of ways a trade can end. Only the variants
// declared in this file implement it.
type TradeOutcome interface {
	Kind() OutcomeKind
	tradeOutcome()
}

// ProfitClose is a close at the profit target.
type ProfitClose struct{}

// LossClose is a losing close that was not a stop-out.
type LossClose struct{}

// ManualClose is a close requested by the operator.
type ManualClose struct{}

// StopHunted is a close by the stop-loss order.
type StopHunted struct{}

func (ProfitClose) Kind() OutcomeKind { return OutcomeProfitClose }
func (LossClose) Kind() OutcomeKind   { return OutcomeLossClose }
func (ManualClose) Kind() OutcomeKind { return OutcomeManualClose }
func (StopHunted) Kind() OutcomeKind  { return OutcomeStopHunted }

func (ProfitClose) tradeOutcome() {}
func (LossClose) tradeOutcome()   {}
func (ManualClose) tradeOutcome() {}
func (StopHunted) tradeOutcome()  {}

// Outcome maps a persisted kind back to its variant.
func (k OutcomeKind) Outcome() (TradeOutcome, error) {
	switch k {
	case OutcomeProfitClose:
		return ProfitClose{}, nil
	case OutcomeLossClose:
		return LossClose{}, nil
	case OutcomeManualClose:
		return ManualClose{}, nil
	case OutcomeStopHunted:
		return StopHunted{}, nil
	}
	return nil, fmt.Errorf("unknown trade outcome %q: %w", k, ErrConfiguration)
}
