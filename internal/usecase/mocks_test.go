package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

var errBoom = errors.New("boom")

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ds(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = d(v)
	}
	return out
}

// memRepo is an in-memory ChainRepository with the same version rule as the
// real stores.
type memRepo struct {
	mu        sync.Mutex
	chains    map[string]*domain.Chain
	saves     int
	failSaves int // remaining SaveChain calls that fail
	failAll   bool
}

func newMemRepo() *memRepo {
	return &memRepo{chains: make(map[string]*domain.Chain)}
}

func (r *memRepo) SaveChain(ctx context.Context, c *domain.Chain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.failAll {
		return errBoom
	}
	if r.failSaves > 0 {
		r.failSaves--
		return errBoom
	}
	var stored int64
	if prev, ok := r.chains[c.ID]; ok {
		stored = prev.Version
	}
	if c.Version != stored+1 {
		return fmt.Errorf("chain %s at %d, got %d: %w", c.ID, stored, c.Version, domain.ErrVersionConflict)
	}
	r.chains[c.ID] = c.Clone()
	return nil
}

func (r *memRepo) LoadChain(ctx context.Context, id string) (*domain.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *memRepo) LoadActiveChains(ctx context.Context) ([]*domain.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Chain
	for _, c := range r.chains {
		if c.Status == domain.ChainActive {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (r *memRepo) ListChains(ctx context.Context) ([]*domain.Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Chain
	for _, c := range r.chains {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (r *memRepo) Close() error { return nil }

type fakeGateway struct {
	mu       sync.Mutex
	placed   []domain.OrderRequest
	closed   []domain.OrderRef
	placeErr error
	closeErr error
	onPlace  func(req domain.OrderRequest)
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderRef, error) {
	if g.onPlace != nil {
		g.onPlace(req)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeErr != nil {
		return domain.OrderRef{}, g.placeErr
	}
	g.placed = append(g.placed, req)
	return domain.OrderRef{ID: "ord-" + req.ClientID, Symbol: req.Symbol, Side: req.Side, Lot: req.Lot}, nil
}

func (g *fakeGateway) CloseOrder(ctx context.Context, ref domain.OrderRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, ref)
	return g.closeErr
}

func (g *fakeGateway) closedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.closed)
}

func (g *fakeGateway) placedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.placed)
}

type fakeRisk struct {
	snap domain.RiskSnapshot
	err  error
}

func (f *fakeRisk) GetSnapshot(ctx context.Context, account string) (domain.RiskSnapshot, error) {
	return f.snap, f.err
}

type fakeTrend struct {
	aligned bool
	err     error
}

func (f *fakeTrend) GetAlignment(ctx context.Context, symbol, timeframe string, side domain.Side) (bool, error) {
	return f.aligned, f.err
}

type fakePrices struct {
	mu     sync.Mutex
	quotes map[string]domain.PriceQuote
	calls  map[string]int
}

func newFakePrices() *fakePrices {
	return &fakePrices{quotes: make(map[string]domain.PriceQuote), calls: make(map[string]int)}
}

func (p *fakePrices) set(symbol, bid, ask string, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = domain.PriceQuote{Symbol: symbol, Bid: d(bid), Ask: d(ask), Timestamp: at}
}

func (p *fakePrices) GetCurrentPrice(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[symbol]++
	q, ok := p.quotes[symbol]
	if !ok {
		return domain.PriceQuote{}, fmt.Errorf("no quote for %s", symbol)
	}
	return q, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ChainEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, e domain.ChainEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) kinds() []domain.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventKind, len(n.events))
	for i, e := range n.events {
		out[i] = e.Kind
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(dur)
}

func testChainConfig() domain.ChainConfig {
	return domain.ChainConfig{
		MaxLevel:     4,
		Multipliers:  ds("1", "2", "4", "8", "16"),
		SLReductions: ds("0", "0.1", "0.25", "0.4", "0.5"),
	}
}

func testSizing() domain.SizingConfig {
	return domain.SizingConfig{
		LotStep:      d("0.01"),
		MinLot:       d("0.01"),
		PipSize:      d("0.0001"),
		BaseStopPips: d("100"),
		RewardRatio:  d("1.5"),
		ContractSize: d("100000"),
	}
}

func testTiers() domain.RiskCapsConfig {
	tiers := domain.RiskCapsConfig{Tiers: []domain.RiskTier{
		{Name: "small", MinBalance: d("0"), BaseLot: d("0.10"), DailyLossCap: d("500"), LifetimeLossCap: d("5000")},
		{Name: "large", MinBalance: d("50000"), BaseLot: d("1"), DailyLossCap: d("5000"), LifetimeLossCap: d("50000")},
	}}
	if err := tiers.Validate(); err != nil {
		panic(err)
	}
	return tiers
}

func testTriggers() domain.TriggerSet {
	cfg := domain.TriggerConfig{Enabled: true, CooldownSeconds: 60, DetectionOffset: d("0.0005"), RecoveryWindowMinutes: 30}
	return domain.TriggerSet{TPContinuation: cfg, SLHunt: cfg, ExitContinuation: cfg}
}
