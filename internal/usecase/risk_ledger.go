package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

// ChainLister is the part of ChainRegistry the risk ledger reads.
type ChainLister interface {
	ListAll(ctx context.Context) ([]*domain.Chain, error)
}

// LedgerRiskProvider builds risk snapshots from persisted level history.
// Losses are summed per closed level; the tier is chosen from the starting
// balance plus lifetime net pnl.
type LedgerRiskProvider struct {
	chains  ChainLister
	tiers   domain.RiskCapsConfig
	balance decimal.Decimal
	paused  atomic.Bool
	timeNow func() time.Time
}

func NewLedgerRiskProvider(chains ChainLister, tiers domain.RiskCapsConfig, balance decimal.Decimal) *LedgerRiskProvider {
	return &LedgerRiskProvider{
		chains:  chains,
		tiers:   tiers,
		balance: balance,
		timeNow: time.Now,
	}
}

func (p *LedgerRiskProvider) SetPaused(paused bool) {
	p.paused.Store(paused)
}

func (p *LedgerRiskProvider) GetSnapshot(ctx context.Context, account string) (domain.RiskSnapshot, error) {
	chains, err := p.chains.ListAll(ctx)
	if err != nil {
		return domain.RiskSnapshot{}, fmt.Errorf("risk snapshot for %s: %w", account, err)
	}

	dayStart := p.timeNow().UTC().Truncate(24 * time.Hour)
	daily, lifetime, net := decimal.Zero, decimal.Zero, decimal.Zero
	for _, c := range chains {
		for _, l := range c.Levels {
			if !l.IsClosed() {
				continue
			}
			net = net.Add(l.PnL)
			if !l.PnL.IsNegative() {
				continue
			}
			loss := l.PnL.Neg()
			lifetime = lifetime.Add(loss)
			if !l.ClosedAt.Before(dayStart) {
				daily = daily.Add(loss)
			}
		}
	}

	tier := p.tiers.TierFor(p.balance.Add(net))
	return domain.RiskSnapshot{
		Account:      account,
		DailyLoss:    daily,
		LifetimeLoss: lifetime,
		Tier:         tier.Name,
		Caps: domain.RiskCaps{
			DailyLossCap:    tier.DailyLossCap,
			LifetimeLossCap: tier.LifetimeLossCap,
		},
		Paused: p.paused.Load(),
	}, nil
}
