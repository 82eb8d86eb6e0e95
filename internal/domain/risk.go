package domain

import "github.com/shopspring/decimal"

type RiskCaps struct {
	DailyLossCap    decimal.Decimal `json:"daily_loss_cap"`
	LifetimeLossCap decimal.Decimal `json:"lifetime_loss_cap"`
}

// RiskSnapshot is the account risk state supplied from outside the chain core.
// Losses are positive amounts.
type RiskSnapshot struct {
	Account      string          `json:"account"`
	DailyLoss    decimal.Decimal `json:"daily_loss"`
	LifetimeLoss decimal.Decimal `json:"lifetime_loss"`
	Tier         string          `json:"tier"`
	Caps         RiskCaps        `json:"caps"`
	Paused       bool            `json:"is_paused"`
}
