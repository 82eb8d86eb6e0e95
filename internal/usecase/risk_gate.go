package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

const (
	RiskReasonPaused       = "account_paused"
	RiskReasonLifetimeCap  = "lifetime_loss_cap"
	RiskReasonDailyCap     = "daily_loss_cap"
	TrendReasonMisaligned  = "trend_misaligned"
	TrendReasonUnavailable = "trend_unavailable"
)

// CandidateLevel is the level a chain wants to open next.
type CandidateLevel struct {
	ChainID       string
	Symbol        string
	Side          domain.Side
	Level         int
	LotSize       decimal.Decimal
	PotentialLoss decimal.Decimal
}

// RiskGate checks account-wide caps. A zero cap disables that check.
type RiskGate struct{}

func NewRiskGate() *RiskGate {
	return &RiskGate{}
}

func (g *RiskGate) Authorize(c CandidateLevel, snap domain.RiskSnapshot) domain.GateDecision {
	if snap.Paused {
		return domain.Deny(RiskReasonPaused, "account is paused")
	}
	if cap := snap.Caps.LifetimeLossCap; cap.IsPositive() && snap.LifetimeLoss.GreaterThanOrEqual(cap) {
		return domain.Deny(RiskReasonLifetimeCap,
			fmt.Sprintf("lifetime loss %s at or above cap %s", snap.LifetimeLoss, cap))
	}
	if cap := snap.Caps.DailyLossCap; cap.IsPositive() {
		projected := snap.DailyLoss.Add(c.PotentialLoss)
		if projected.GreaterThan(cap) {
			return domain.Deny(RiskReasonDailyCap,
				fmt.Sprintf("projected daily loss %s exceeds cap %s", projected, cap))
		}
	}
	return domain.Allow()
}
