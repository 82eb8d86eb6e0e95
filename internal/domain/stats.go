package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventKind string

const (
	EventChainCreated   EventKind = "chain_created"
	EventLevelOpened    EventKind = "level_opened"
	EventLevelClosed    EventKind = "level_closed"
	EventChainCompleted EventKind = "chain_completed"
	EventChainStopped   EventKind = "chain_stopped"
	EventReentryDenied  EventKind = "reentry_denied"
)

// ChainEvent is handed to the Notifier on every lifecycle change.
type ChainEvent struct {
	Kind       EventKind       `json:"kind"`
	ChainID    string          `json:"chain_id,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Level      int             `json:"level"`
	Trigger    TriggerType     `json:"trigger,omitempty"`
	LotSize    decimal.Decimal `json:"lot_size"`
	PnL        decimal.Decimal `json:"pnl"`
	Reason     string          `json:"reason,omitempty"`
	Detail     string          `json:"detail,omitempty"`
	Unexpected bool            `json:"unexpected"`
	At         time.Time       `json:"at"`
}

// ChainStats summarizes every chain known to the registry.
type ChainStats struct {
	Active         int                 `json:"active"`
	Completed      int                 `json:"completed"`
	Stopped        int                 `json:"stopped"`
	NeedsReconcile int                 `json:"needs_reconcile"`
	LevelsOpened   int                 `json:"levels_opened"`
	TotalProfit    decimal.Decimal     `json:"total_profit"`
	ByTrigger      map[TriggerType]int `json:"by_trigger"`
	StopReasons    map[string]int      `json:"stop_reasons"`
}
