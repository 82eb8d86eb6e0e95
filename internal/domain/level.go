package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LevelRecord is one position opened by a chain.
type LevelRecord struct {
	Index       int             `json:"level_index"`
	LotSize     decimal.Decimal `json:"lot_size"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopPrice   decimal.Decimal `json:"stop_price"`
	TargetPrice decimal.Decimal `json:"target_price"`
	Trigger     TriggerType     `json:"trigger"`
	OrderRef    string          `json:"order_ref,omitempty"`
	OpenedAt    time.Time       `json:"opened_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	PnL         decimal.Decimal `json:"pnl"`
	Outcome     OutcomeKind     `json:"outcome,omitempty"`
}

func (l LevelRecord) IsClosed() bool {
	return l.ClosedAt != nil
}

// PendingReentry is the closed level a chain is waiting to re-enter after.
type PendingReentry struct {
	TradeRef   string          `json:"trade_ref"`
	Outcome    OutcomeKind     `json:"outcome"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	ClosedAt   time.Time       `json:"closed_at"`
}
