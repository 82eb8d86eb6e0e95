package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// RiskSnapshotProvider supplies the account-wide risk state.
type RiskSnapshotProvider interface {
	GetSnapshot(ctx context.Context, account string) (RiskSnapshot, error)
}

// TrendProvider judges whether side agrees with the prevailing trend.
type TrendProvider interface {
	GetAlignment(ctx context.Context, symbol, timeframe string, side Side) (bool, error)
}

// PriceProvider returns the latest quote for a symbol.
type PriceProvider interface {
	GetCurrentPrice(ctx context.Context, symbol string) (PriceQuote, error)
}

type OrderRequest struct {
	ClientID    string
	Symbol      string
	Side        Side
	Lot         decimal.Decimal
	StopPrice   decimal.Decimal
	TargetPrice decimal.Decimal
}

type OrderRef struct {
	ID     string
	Symbol string
	Side   Side
	Lot    decimal.Decimal
}

// OrderGateway places and closes orders on the broker.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderRef, error)
	CloseOrder(ctx context.Context, ref OrderRef) error
}

// ChainRepository stores full chain snapshots. SaveChain must reject a
// snapshot whose Version is not exactly one above the stored version with
// ErrVersionConflict.
type ChainRepository interface {
	SaveChain(ctx context.Context, chain *Chain) error
	LoadChain(ctx context.Context, id string) (*Chain, error)
	LoadActiveChains(ctx context.Context) ([]*Chain, error)
	ListChains(ctx context.Context) ([]*Chain, error)
	Close() error
}

// Notifier receives chain lifecycle events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, event ChainEvent)
}
