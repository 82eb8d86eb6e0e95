package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

// TriggerDecision is NONE when Fire is false.
type TriggerDecision struct {
	Fire    bool
	Trigger domain.TriggerType
	Reason  string
}

func none(reason string) TriggerDecision {
	return TriggerDecision{Reason: reason}
}

// familyFor maps a trade outcome to the only trigger family that may act on it.
func familyFor(outcome domain.TradeOutcome) domain.TriggerType {
	switch outcome.(type) {
	case domain.StopHunted:
		return domain.TriggerSLHunt
	case domain.ProfitClose:
		return domain.TriggerTPContinuation
	case domain.ManualClose:
		return domain.TriggerExitContinuation
	case domain.LossClose:
		return domain.TriggerNone
	}
	return domain.TriggerNone
}

// precheck rejects trades outside the family, outside the window, or quotes
// older than the close.
func precheck(family domain.TriggerType, trade domain.ClosedTrade, quote domain.PriceQuote, cfg domain.TriggerConfig, now time.Time) (TriggerDecision, bool) {
	if !cfg.Enabled {
		return none("disabled"), false
	}
	if familyFor(trade.Outcome) != family {
		return none("outcome not handled"), false
	}
	if now.Sub(trade.ClosedAt) > cfg.Window() {
		return none("window elapsed"), false
	}
	if !quote.Timestamp.IsZero() && quote.Timestamp.Before(trade.ClosedAt) {
		return none("quote older than close"), false
	}
	return TriggerDecision{}, true
}

// movedBeyond reports whether price has moved at least offset past ref in the
// favorable direction for side.
func movedBeyond(side domain.Side, price, ref, offset decimal.Decimal) bool {
	if side == domain.SideShort {
		return price.LessThanOrEqual(ref.Sub(offset))
	}
	return price.GreaterThanOrEqual(ref.Add(offset))
}

// EvaluateTPContinuation fires when price keeps moving in the trade's favor
// past the profit-target exit by at least the detection offset.
func EvaluateTPContinuation(trade domain.ClosedTrade, quote domain.PriceQuote, cfg domain.TriggerConfig, now time.Time) TriggerDecision {
	if d, ok := precheck(domain.TriggerTPContinuation, trade, quote, cfg, now); !ok {
		return d
	}
	price := quote.Mid()
	if !movedBeyond(trade.Side, price, trade.ExitPrice, cfg.DetectionOffset) {
		return none("no continuation")
	}
	return TriggerDecision{
		Fire:    true,
		Trigger: domain.TriggerTPContinuation,
		Reason:  fmt.Sprintf("price %s continued past exit %s by %s", price, trade.ExitPrice, cfg.DetectionOffset),
	}
}

// EvaluateSLHunt fires when a stopped-out trade's price recovers back through
// the trade entry by at least the detection offset.
func EvaluateSLHunt(trade domain.ClosedTrade, quote domain.PriceQuote, cfg domain.TriggerConfig, now time.Time) TriggerDecision {
	if d, ok := precheck(domain.TriggerSLHunt, trade, quote, cfg, now); !ok {
		return d
	}
	price := quote.Mid()
	if !movedBeyond(trade.Side, price, trade.EntryPrice, cfg.DetectionOffset) {
		return none("no recovery")
	}
	return TriggerDecision{
		Fire:    true,
		Trigger: domain.TriggerSLHunt,
		Reason:  fmt.Sprintf("price %s recovered through entry %s by %s", price, trade.EntryPrice, cfg.DetectionOffset),
	}
}

// EvaluateExitContinuation fires when price keeps moving favorably after a
// manual close.
func EvaluateExitContinuation(trade domain.ClosedTrade, quote domain.PriceQuote, cfg domain.TriggerConfig, now time.Time) TriggerDecision {
	if d, ok := precheck(domain.TriggerExitContinuation, trade, quote, cfg, now); !ok {
		return d
	}
	price := quote.Mid()
	if !movedBeyond(trade.Side, price, trade.ExitPrice, cfg.DetectionOffset) {
		return none("no continuation")
	}
	return TriggerDecision{
		Fire:    true,
		Trigger: domain.TriggerExitContinuation,
		Reason:  fmt.Sprintf("price %s continued past manual exit %s by %s", price, trade.ExitPrice, cfg.DetectionOffset),
	}
}

type evaluateFunc func(domain.ClosedTrade, domain.PriceQuote, domain.TriggerConfig, time.Time) TriggerDecision

var families = map[domain.TriggerType]evaluateFunc{
	domain.TriggerSLHunt:           EvaluateSLHunt,
	domain.TriggerTPContinuation:   EvaluateTPContinuation,
	domain.TriggerExitContinuation: EvaluateExitContinuation,
}

// TriggerEvaluator runs the three families in priority order and enforces a
// cooldown per (symbol, side, trigger).
type TriggerEvaluator struct {
	cfg domain.TriggerSet

	mu       sync.Mutex
	lastFire map[string]time.Time
}

func NewTriggerEvaluator(cfg domain.TriggerSet) *TriggerEvaluator {
	return &TriggerEvaluator{
		cfg:      cfg,
		lastFire: make(map[string]time.Time),
	}
}

func cooldownKey(symbol string, side domain.Side, trigger domain.TriggerType) string {
	return symbol + "|" + string(side) + "|" + string(trigger)
}

// Evaluate returns at most one fire for the trade. A fire that is accepted
// starts that family's cooldown; a family still cooling down is skipped so
// the next family in priority order can act.
func (e *TriggerEvaluator) Evaluate(trade domain.ClosedTrade, quote domain.PriceQuote, now time.Time) TriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := none("no trigger")
	for _, t := range domain.TriggerPriority {
		cfg := e.cfg.For(t)
		d := families[t](trade, quote, cfg, now)
		if !d.Fire {
			continue
		}
		key := cooldownKey(trade.Symbol, trade.Side, t)
		if last, ok := e.lastFire[key]; ok && now.Sub(last) < cfg.Cooldown() {
			result = none(fmt.Sprintf("%s cooling down", t))
			continue
		}
		e.lastFire[key] = now
		return d
	}
	return result
}

// Applicable reports whether any enabled family can act on the outcome.
func (e *TriggerEvaluator) Applicable(outcome domain.TradeOutcome) bool {
	t := familyFor(outcome)
	return t != domain.TriggerNone && e.cfg.For(t).Enabled
}

// Window is how long after a close with the given outcome a trigger may fire.
// Outcomes with no enabled family get the smallest enabled window.
func (e *TriggerEvaluator) Window(outcome domain.TradeOutcome) time.Duration {
	if cfg := e.cfg.For(familyFor(outcome)); cfg.Enabled {
		return cfg.Window()
	}
	var smallest time.Duration
	for _, t := range domain.TriggerPriority {
		cfg := e.cfg.For(t)
		if !cfg.Enabled {
			continue
		}
		if smallest == 0 || cfg.Window() < smallest {
			smallest = cfg.Window()
		}
	}
	return smallest
}
