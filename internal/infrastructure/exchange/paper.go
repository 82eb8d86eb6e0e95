package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

type paperPosition struct {
	ref       domain.OrderRef
	fillPrice decimal.Decimal
}

// PaperGateway fills orders at the latest quote without touching the broker.
type PaperGateway struct {
	prices domain.PriceProvider
	logger *zap.Logger

	mu        sync.Mutex
	seq       int
	positions map[string]paperPosition
}

func NewPaperGateway(prices domain.PriceProvider, logger *zap.Logger) *PaperGateway {
	return &PaperGateway{
		prices:    prices,
		logger:    logger,
		positions: make(map[string]paperPosition),
	}
}

func (p *PaperGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderRef, error) {
	q, err := p.prices.GetCurrentPrice(ctx, req.Symbol)
	if err != nil {
		return domain.OrderRef{}, fmt.Errorf("%w: paper fill for %s: %v", domain.ErrGateway, req.Symbol, err)
	}
	fill := q.EntryFor(req.Side)

	p.mu.Lock()
	p.seq++
	ref := domain.OrderRef{ID: fmt.Sprintf("paper-%d", p.seq), Symbol: req.Symbol, Side: req.Side, Lot: req.Lot}
	p.positions[ref.ID] = paperPosition{ref: ref, fillPrice: fill}
	p.mu.Unlock()

	p.logger.Info("Paper order filled",
		zap.String("order_id", ref.ID),
		zap.String("client_id", req.ClientID),
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.String("qty", req.Lot.String()),
		zap.String("price", fill.String()))
	return ref, nil
}

func (p *PaperGateway) CloseOrder(ctx context.Context, ref domain.OrderRef) error {
	p.mu.Lock()
	_, ok := p.positions[ref.ID]
	delete(p.positions, ref.ID)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: unknown paper order %s", domain.ErrGateway, ref.ID)
	}
	p.logger.Info("Paper position closed", zap.String("order_id", ref.ID), zap.String("symbol", ref.Symbol))
	return nil
}

// Open returns the number of paper positions still open.
func (p *PaperGateway) Open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.positions)
}
