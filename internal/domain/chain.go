package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChainStatus string

const (
	ChainActive    ChainStatus = "ACTIVE"
	ChainCompleted ChainStatus = "COMPLETED"
	ChainStopped   ChainStatus = "STOPPED"
)

type TriggerType string

const (
	TriggerNone             TriggerType = ""
	TriggerSLHunt           TriggerType = "sl_hunt_recovery"
	TriggerTPContinuation   TriggerType = "tp_continuation"
	TriggerExitContinuation TriggerType = "exit_continuation"
)

// TriggerPriority lists trigger families from highest to lowest priority.
var TriggerPriority = []TriggerType{TriggerSLHunt, TriggerTPContinuation, TriggerExitContinuation}

// Stop reasons retained on the chain record.
const (
	StopRiskDenied         = "risk_denied"
	StopTrendDenied        = "trend_denied"
	StopGatewayFailure     = "gateway_failure"
	StopPersistenceFailure = "persistence_failure"
	StopDisqualifyingLoss  = "disqualifying_loss"
	StopManual             = "manual_stop"
	StopExposureCap        = "exposure_cap"
	StopConfiguration      = "configuration_error"
	StopWindowExpired      = "trigger_window_expired"
	StopOrderUnconfirmed   = "order_unconfirmed"
)

// UnexpectedStop reports whether a stop reason comes from a failure rather
// than a normal decision.
func UnexpectedStop(reason string) bool {
	switch reason {
	case StopGatewayFailure, StopPersistenceFailure, StopConfiguration, StopOrderUnconfirmed:
		return true
	}
	return false
}

// Chain is a bounded sequence of re-entry positions on one symbol and side.
type Chain struct {
	ID             string              `json:"id"`
	Symbol         string              `json:"symbol"`
	Side           Side                `json:"side"`
	OriginTradeRef string              `json:"origin_trade_ref"`
	Status         ChainStatus         `json:"status"`
	CurrentLevel   int                 `json:"current_level"`
	MaxLevel       int                 `json:"max_level"`
	Multipliers    []decimal.Decimal   `json:"multipliers"`
	SLReductions   []decimal.Decimal   `json:"sl_reductions"`
	BaseLot        decimal.NullDecimal `json:"base_lot"`
	TotalProfit    decimal.Decimal     `json:"total_profit"`
	Levels         []LevelRecord       `json:"levels"`
	Pending        *PendingReentry     `json:"pending,omitempty"`
	LastTrigger    TriggerType         `json:"last_trigger"`
	StopReason     string              `json:"stop_reason,omitempty"`
	StopDetail     string              `json:"stop_detail,omitempty"`
	NeedsReconcile bool                `json:"needs_reconcile"`
	Version        int64               `json:"version"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func PairKey(symbol string, side Side) string {
	return symbol + "|" + string(side)
}

func (c *Chain) PairKey() string {
	return PairKey(c.Symbol, c.Side)
}

func (c *Chain) IsTerminal() bool {
	return c.Status == ChainCompleted || c.Status == ChainStopped
}

// OpenLevel returns the level currently in the market, if any.
func (c *Chain) OpenLevel() *LevelRecord {
	if len(c.Levels) == 0 {
		return nil
	}
	last := &c.Levels[len(c.Levels)-1]
	if last.IsClosed() {
		return nil
	}
	return last
}

// RealizedProfit sums the pnl of every closed level.
func (c *Chain) RealizedProfit() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Levels {
		if l.IsClosed() {
			total = total.Add(l.PnL)
		}
	}
	return total
}

// CumulativeLots sums the lot size of every level the chain has opened.
func (c *Chain) CumulativeLots() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Levels {
		total = total.Add(l.LotSize)
	}
	return total
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c *Chain) Clone() *Chain {
	if c == nil {
		return nil
	}
	out := *c
	out.Multipliers = append([]decimal.Decimal(nil), c.Multipliers...)
	out.SLReductions = append([]decimal.Decimal(nil), c.SLReductions...)
	out.Levels = make([]LevelRecord, len(c.Levels))
	for i, l := range c.Levels {
		if l.ClosedAt != nil {
			t := *l.ClosedAt
			l.ClosedAt = &t
		}
		out.Levels[i] = l
	}
	if c.Pending != nil {
		p := *c.Pending
		out.Pending = &p
	}
	return &out
}
