package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

// TrendGate asks the trend collaborator whether a re-entry agrees with the
// prevailing trend. It allows everything when disabled.
type TrendGate struct {
	provider domain.TrendProvider
	cfg      domain.TrendConfig
	logger   *zap.Logger
}

func NewTrendGate(provider domain.TrendProvider, cfg domain.TrendConfig, logger *zap.Logger) *TrendGate {
	return &TrendGate{provider: provider, cfg: cfg, logger: logger}
}

func (g *TrendGate) Enabled() bool {
	return g.cfg.Enabled && g.provider != nil
}

func (g *TrendGate) Authorize(ctx context.Context, symbol string, side domain.Side) domain.GateDecision {
	if !g.Enabled() {
		return domain.Allow()
	}
	aligned, err := g.provider.GetAlignment(ctx, symbol, g.cfg.Timeframe, side)
	if err != nil {
		g.logger.Warn("Trend alignment unavailable",
			zap.String("symbol", symbol), zap.String("side", string(side)), zap.Error(err))
		return domain.Deny(TrendReasonUnavailable, err.Error())
	}
	if !aligned {
		return domain.Deny(TrendReasonMisaligned,
			fmt.Sprintf("%s %s against %s trend", symbol, side, g.cfg.Timeframe))
	}
	return domain.Allow()
}
