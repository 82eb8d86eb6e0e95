package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide accepts LONG/SHORT as well as the exchange spellings Buy/Sell.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LONG", "BUY":
		return SideLong, nil
	case "SHORT", "SELL":
		return SideShort, nil
	}
	return "", fmt.Errorf("invalid side %q: %w", s, ErrConfiguration)
}

// Sign is +1 for long and -1 for short.
func (s Side) Sign() decimal.Decimal {
	if s == SideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// ClosedTrade is a position that has just been closed, either the trade that
// may originate a chain or one of a chain's levels.
type ClosedTrade struct {
	Ref        string          `json:"ref"`
	ChainID    string          `json:"chain_id,omitempty"`
	Symbol     string          `json:"symbol"`
	Side       Side            `json:"side"`
	Lot        decimal.Decimal `json:"lot"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	PnL        decimal.Decimal `json:"pnl"`
	Outcome    TradeOutcome    `json:"-"`
	ClosedAt   time.Time       `json:"closed_at"`
}

// PnLFor returns the realized pnl of a position of lot size opened at entry and closed at exit.
func PnLFor(side Side, lot, entry, exit, contractSize decimal.Decimal) decimal.Decimal {
	return exit.Sub(entry).Mul(lot).Mul(contractSize).Mul(side.Sign())
}
