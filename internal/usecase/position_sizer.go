package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

// SizingResult is the candidate next level.
type SizingResult struct {
	Level        int
	LotSize      decimal.Decimal
	StopPips     decimal.Decimal
	StopDistance decimal.Decimal
	EntryPrice   decimal.Decimal
	StopPrice    decimal.Decimal
	TargetPrice  decimal.Decimal
}

// PotentialLoss is what the level loses if its stop is hit.
func (r SizingResult) PotentialLoss(contractSize decimal.Decimal) decimal.Decimal {
	return r.LotSize.Mul(r.StopDistance).Mul(contractSize)
}

// Record turns the result into the level record that will be opened.
func (r SizingResult) Record() domain.LevelRecord {
	return domain.LevelRecord{
		Index:       r.Level,
		LotSize:     r.LotSize,
		EntryPrice:  r.EntryPrice,
		StopPrice:   r.StopPrice,
		TargetPrice: r.TargetPrice,
	}
}

type PositionSizer struct {
	cfg   domain.SizingConfig
	tiers domain.RiskCapsConfig
}

func NewPositionSizer(cfg domain.SizingConfig, tiers domain.RiskCapsConfig) *PositionSizer {
	return &PositionSizer{cfg: cfg, tiers: tiers}
}

// RoundToStep rounds lot to the nearest multiple of step, halves rounding up.
func RoundToStep(lot, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return lot
	}
	return lot.Div(step).Round(0).Mul(step)
}

// Compute sizes level next of chain for a fill at entry.
func (s *PositionSizer) Compute(chain *domain.Chain, next int, risk domain.RiskSnapshot, entry decimal.Decimal) (SizingResult, error) {
	if next < 0 || next > chain.MaxLevel {
		return SizingResult{}, fmt.Errorf("level %d outside [0,%d]: %w", next, chain.MaxLevel, domain.ErrConfiguration)
	}
	if next >= len(chain.Multipliers) || next >= len(chain.SLReductions) {
		return SizingResult{}, fmt.Errorf("no multiplier or sl reduction for level %d: %w", next, domain.ErrConfiguration)
	}
	if !entry.IsPositive() {
		return SizingResult{}, fmt.Errorf("entry price %s must be > 0: %w", entry, domain.ErrConfiguration)
	}

	baseLot := chain.BaseLot.Decimal
	if !chain.BaseLot.Valid {
		tier, ok := s.tiers.Tier(risk.Tier)
		if !ok {
			return SizingResult{}, fmt.Errorf("unknown risk tier %q: %w", risk.Tier, domain.ErrConfiguration)
		}
		baseLot = tier.BaseLot
	}

	lot := RoundToStep(baseLot.Mul(chain.Multipliers[next]), s.cfg.LotStep)
	if !lot.IsPositive() || lot.LessThan(s.cfg.MinLot) {
		return SizingResult{}, fmt.Errorf("lot %s below minimum %s: %w", lot, s.cfg.MinLot, domain.ErrConfiguration)
	}

	stopPips := s.cfg.BaseStopPips.Mul(decimal.NewFromInt(1).Sub(chain.SLReductions[next]))
	if !stopPips.IsPositive() {
		return SizingResult{}, fmt.Errorf("stop distance %s pips is not positive: %w", stopPips, domain.ErrConfiguration)
	}
	distance := stopPips.Mul(s.cfg.PipSize)

	sign := chain.Side.Sign()
	stop := entry.Sub(distance.Mul(sign))
	target := entry.Add(distance.Mul(s.cfg.RewardRatio).Mul(sign))
	if !stop.IsPositive() || !target.IsPositive() {
		return SizingResult{}, fmt.Errorf("stop %s or target %s not positive: %w", stop, target, domain.ErrConfiguration)
	}

	if s.cfg.MaxExposureLots.IsPositive() {
		exposure := chain.CumulativeLots().Add(lot)
		if exposure.GreaterThan(s.cfg.MaxExposureLots) {
			return SizingResult{}, fmt.Errorf("exposure %s lots exceeds %s: %w", exposure, s.cfg.MaxExposureLots, domain.ErrCapExceeded)
		}
	}

	return SizingResult{
		Level:        next,
		LotSize:      lot,
		StopPips:     stopPips,
		StopDistance: distance,
		EntryPrice:   entry,
		StopPrice:    stop,
		TargetPrice:  target,
	}, nil
}
