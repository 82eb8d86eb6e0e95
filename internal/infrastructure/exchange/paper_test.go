package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

type staticPrices map[string]domain.PriceQuote

func (s staticPrices) GetCurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	q, ok := s[symbol]
	if !ok {
		return domain.PriceQuote{}, assert.AnError
	}
	return q, nil
}

func TestPaperGateway(t *testing.T) {
	prices := staticPrices{"EURUSD": {Symbol: "EURUSD", Bid: decimal.RequireFromString("1.1"), Ask: decimal.RequireFromString("1.1002"), Timestamp: time.Now()}}
	g := NewPaperGateway(prices, zap.NewNop())
	ctx := context.Background()

	ref, err := g.PlaceOrder(ctx, domain.OrderRequest{ClientID: "c-L0", Symbol: "EURUSD", Side: domain.SideLong, Lot: decimal.RequireFromString("0.1")})
	require.NoError(t, err)
	assert.Equal(t, "paper-1", ref.ID)
	assert.Equal(t, 1, g.Open())

	require.NoError(t, g.CloseOrder(ctx, ref))
	assert.Zero(t, g.Open())
	assert.ErrorIs(t, g.CloseOrder(ctx, ref), domain.ErrGateway)

	_, err = g.PlaceOrder(ctx, domain.OrderRequest{Symbol: "GBPUSD", Side: domain.SideLong})
	assert.ErrorIs(t, err, domain.ErrGateway)
}
