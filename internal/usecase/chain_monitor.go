package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type MonitorConfig struct {
	Interval time.Duration
	Workers  int
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{Interval: 10 * time.Second, Workers: 8}
}

// ChainMonitor periodically evaluates every ACTIVE chain and pre-chain watch.
// Prices are fetched once per symbol per tick. Work for different chains runs
// on a bounded pool; writes to the same chain stay serialized by the registry.
type ChainMonitor struct {
	service *ReentryService
	prices  domain.PriceProvider
	cfg     MonitorConfig
	logger  *zap.Logger
}

func NewChainMonitor(service *ReentryService, prices domain.PriceProvider, cfg MonitorConfig, logger *zap.Logger) *ChainMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorConfig().Interval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &ChainMonitor{service: service, prices: prices, cfg: cfg, logger: logger}
}

// Run ticks until ctx is cancelled.
func (m *ChainMonitor) Run(ctx context.Context) {
	m.logger.Info("Starting chain monitor",
		zap.Duration("interval", m.cfg.Interval), zap.Int("workers", m.cfg.Workers))
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Chain monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one evaluation pass and waits for it to finish.
func (m *ChainMonitor) Tick(ctx context.Context) {
	chains := m.service.ListActiveChains()
	watches := m.service.Watches()
	if len(chains) == 0 && len(watches) == 0 {
		return
	}

	quotes := m.fetchQuotes(ctx, symbolsOf(chains, watches))

	var g errgroup.Group
	g.SetLimit(m.cfg.Workers)
	for _, c := range chains {
		quote, ok := quotes[c.Symbol]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := m.service.EvaluateChain(ctx, c, quote); err != nil {
				m.logger.Error("Chain evaluation failed",
					zap.String("chain_id", c.ID),
					zap.String("symbol", c.Symbol),
					zap.Int("level", c.CurrentLevel),
					zap.Error(err))
			}
			return nil
		})
	}
	for _, w := range watches {
		quote, ok := quotes[w.Symbol]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := m.service.EvaluateWatch(ctx, w, quote); err != nil {
				m.logger.Error("Watch evaluation failed",
					zap.String("ref", w.Ref), zap.String("symbol", w.Symbol), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (m *ChainMonitor) fetchQuotes(ctx context.Context, symbols []string) map[string]domain.PriceQuote {
	var (
		mu     sync.Mutex
		quotes = make(map[string]domain.PriceQuote, len(symbols))
		g      errgroup.Group
	)
	g.SetLimit(m.cfg.Workers)
	for _, symbol := range symbols {
		g.Go(func() error {
			q, err := m.prices.GetCurrentPrice(ctx, symbol)
			if err != nil {
				m.logger.Warn("Price unavailable, skipping symbol this tick",
					zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			quotes[symbol] = q
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return quotes
}

func symbolsOf(chains []*domain.Chain, watches []domain.ClosedTrade) []string {
	seen := make(map[string]bool)
	for _, c := range chains {
		seen[c.Symbol] = true
	}
	for _, w := range watches {
		seen[w.Symbol] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
