package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the top of book for a symbol.
type PriceQuote struct {
	Symbol    string          `json:"symbol"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp time.Time       `json:"timestamp"`
}

var two = decimal.NewFromInt(2)

func (q PriceQuote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(two)
}

// EntryFor is the price a new position on side would fill at.
func (q PriceQuote) EntryFor(side Side) decimal.Decimal {
	if side == SideShort {
		return q.Bid
	}
	return q.Ask
}

// ExitFor is the price an open position on side would close at.
func (q PriceQuote) ExitFor(side Side) decimal.Decimal {
	if side == SideShort {
		return q.Ask
	}
	return q.Bid
}

type Candle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}
