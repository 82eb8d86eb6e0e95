package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TriggerConfig configures one trigger family.
type TriggerConfig struct {
	Enabled               bool            `json:"enabled" yaml:"enabled"`
	CooldownSeconds       int             `json:"cooldown_seconds" yaml:"cooldown_seconds"`
	DetectionOffset       decimal.Decimal `json:"detection_offset" yaml:"detection_offset"`
	RecoveryWindowMinutes int             `json:"recovery_window_minutes" yaml:"recovery_window_minutes"`
}

func (c TriggerConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

func (c TriggerConfig) Window() time.Duration {
	return time.Duration(c.RecoveryWindowMinutes) * time.Minute
}

func (c TriggerConfig) Validate(name string) error {
	if c.CooldownSeconds < 0 {
		return fmt.Errorf("%s: cooldown_seconds must be >= 0: %w", name, ErrConfiguration)
	}
	if c.DetectionOffset.IsNegative() {
		return fmt.Errorf("%s: detection_offset must be >= 0: %w", name, ErrConfiguration)
	}
	if c.Enabled && c.RecoveryWindowMinutes <= 0 {
		return fmt.Errorf("%s: recovery_window_minutes must be > 0: %w", name, ErrConfiguration)
	}
	return nil
}

// TriggerSet holds the three trigger families.
type TriggerSet struct {
	TPContinuation   TriggerConfig `yaml:"tp_continuation"`
	SLHunt           TriggerConfig `yaml:"sl_hunt"`
	ExitContinuation TriggerConfig `yaml:"exit_continuation"`
}

func (s TriggerSet) For(t TriggerType) TriggerConfig {
	switch t {
	case TriggerTPContinuation:
		return s.TPContinuation
	case TriggerSLHunt:
		return s.SLHunt
	case TriggerExitContinuation:
		return s.ExitContinuation
	}
	return TriggerConfig{}
}

func (s TriggerSet) Validate() error {
	for _, t := range TriggerPriority {
		if err := s.For(t).Validate(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// SizingConfig configures lot and stop computation.
type SizingConfig struct {
	LotStep         decimal.Decimal `yaml:"lot_step"`
	MinLot          decimal.Decimal `yaml:"min_lot"`
	PipSize         decimal.Decimal `yaml:"pip_size"`
	BaseStopPips    decimal.Decimal `yaml:"base_stop_pips"`
	RewardRatio     decimal.Decimal `yaml:"reward_ratio"`
	ContractSize    decimal.Decimal `yaml:"contract_size"`
	MaxExposureLots decimal.Decimal `yaml:"max_exposure_lots"`
}

func (c SizingConfig) Validate() error {
	if !c.LotStep.IsPositive() {
		return fmt.Errorf("sizing: lot_step must be > 0: %w", ErrConfiguration)
	}
	if !c.PipSize.IsPositive() {
		return fmt.Errorf("sizing: pip_size must be > 0: %w", ErrConfiguration)
	}
	if !c.BaseStopPips.IsPositive() {
		return fmt.Errorf("sizing: base_stop_pips must be > 0: %w", ErrConfiguration)
	}
	if !c.RewardRatio.IsPositive() {
		return fmt.Errorf("sizing: reward_ratio must be > 0: %w", ErrConfiguration)
	}
	if !c.ContractSize.IsPositive() {
		return fmt.Errorf("sizing: contract_size must be > 0: %w", ErrConfiguration)
	}
	if c.MinLot.IsNegative() || c.MaxExposureLots.IsNegative() {
		return fmt.Errorf("sizing: min_lot and max_exposure_lots must be >= 0: %w", ErrConfiguration)
	}
	return nil
}

// RiskTier is an account-balance bracket with its default size and loss limits.
type RiskTier struct {
	Name            string          `yaml:"name"`
	MinBalance      decimal.Decimal `yaml:"min_balance"`
	BaseLot         decimal.Decimal `yaml:"base_lot"`
	DailyLossCap    decimal.Decimal `yaml:"daily_loss_cap"`
	LifetimeLossCap decimal.Decimal `yaml:"lifetime_loss_cap"`
}

type RiskCapsConfig struct {
	Tiers []RiskTier `yaml:"tiers"`
}

// Validate also sorts tiers by ascending minimum balance.
func (c *RiskCapsConfig) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("risk: at least one tier is required: %w", ErrConfiguration)
	}
	seen := make(map[string]bool)
	for _, t := range c.Tiers {
		if t.Name == "" || seen[t.Name] {
			return fmt.Errorf("risk: tier names must be unique and non-empty: %w", ErrConfiguration)
		}
		seen[t.Name] = true
		if !t.BaseLot.IsPositive() {
			return fmt.Errorf("risk: tier %s base_lot must be > 0: %w", t.Name, ErrConfiguration)
		}
		if t.DailyLossCap.IsNegative() || t.LifetimeLossCap.IsNegative() {
			return fmt.Errorf("risk: tier %s caps must be >= 0: %w", t.Name, ErrConfiguration)
		}
	}
	sort.SliceStable(c.Tiers, func(i, j int) bool {
		return c.Tiers[i].MinBalance.LessThan(c.Tiers[j].MinBalance)
	})
	return nil
}

// TierFor returns the highest tier whose minimum balance is covered.
func (c RiskCapsConfig) TierFor(balance decimal.Decimal) RiskTier {
	tier := c.Tiers[0]
	for _, t := range c.Tiers {
		if balance.GreaterThanOrEqual(t.MinBalance) {
			tier = t
		}
	}
	return tier
}

func (c RiskCapsConfig) Tier(name string) (RiskTier, bool) {
	for _, t := range c.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return RiskTier{}, false
}

// ChainConfig is the template applied to new chains.
type ChainConfig struct {
	MaxLevel     int                 `yaml:"max_level"`
	Multipliers  []decimal.Decimal   `yaml:"multipliers"`
	SLReductions []decimal.Decimal   `yaml:"sl_reductions"`
	AllowOverlap bool                `yaml:"allow_overlap"`
	BaseLot      decimal.NullDecimal `yaml:"-"`
}

func (c ChainConfig) Validate() error {
	if c.MaxLevel < 0 {
		return fmt.Errorf("chain: max_level must be >= 0: %w", ErrConfiguration)
	}
	if len(c.Multipliers) < c.MaxLevel+1 {
		return fmt.Errorf("chain: need %d multipliers, have %d: %w", c.MaxLevel+1, len(c.Multipliers), ErrConfiguration)
	}
	if len(c.SLReductions) < c.MaxLevel+1 {
		return fmt.Errorf("chain: need %d sl_reductions, have %d: %w", c.MaxLevel+1, len(c.SLReductions), ErrConfiguration)
	}
	for i, m := range c.Multipliers {
		if !m.IsPositive() {
			return fmt.Errorf("chain: multipliers[%d] must be > 0: %w", i, ErrConfiguration)
		}
	}
	one := decimal.NewFromInt(1)
	for i, r := range c.SLReductions {
		if r.IsNegative() || r.GreaterThanOrEqual(one) {
			return fmt.Errorf("chain: sl_reductions[%d]=%s must be in [0,1): %w", i, r, ErrConfiguration)
		}
	}
	if c.BaseLot.Valid && !c.BaseLot.Decimal.IsPositive() {
		return fmt.Errorf("chain: base lot override must be > 0: %w", ErrConfiguration)
	}
	return nil
}

type TrendConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Timeframe string `yaml:"timeframe"`
}

func (c TrendConfig) Validate() error {
	if c.Enabled && c.Timeframe == "" {
		return fmt.Errorf("trend: timeframe is required when enabled: %w", ErrConfiguration)
	}
	return nil
}
