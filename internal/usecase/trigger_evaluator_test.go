package usecase_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"github.com/vitos/crypto_reentry_chain/internal/usecase"
)

var closeTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func quoteAt(mid string, at time.Time) domain.PriceQuote {
	m := d(mid)
	spread := d("0.0001")
	return domain.PriceQuote{Symbol: "EURUSD", Bid: m.Sub(spread), Ask: m.Add(spread), Timestamp: at}
}

func closed(side domain.Side, outcome domain.TradeOutcome, entry, exit string) domain.ClosedTrade {
	return domain.ClosedTrade{
		Ref:        "t-1",
		Symbol:     "EURUSD",
		Side:       side,
		Lot:        d("0.1"),
		EntryPrice: d(entry),
		ExitPrice:  d(exit),
		Outcome:    outcome,
		ClosedAt:   closeTime,
	}
}

func TestTPContinuation(t *testing.T) {
	cfg := testTriggers().TPContinuation
	now := closeTime.Add(5 * time.Minute)

	tests := []struct {
		name  string
		trade domain.ClosedTrade
		mid   string
		fire  bool
	}{
		{"long continues past exit", closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050"), "1.1056", true},
		{"long exactly at offset", closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050"), "1.1055", true},
		{"long not far enough", closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050"), "1.1052", false},
		{"short continues down", closed(domain.SideShort, domain.ProfitClose{}, "1.1000", "1.0950"), "1.0940", true},
		{"short moving against", closed(domain.SideShort, domain.ProfitClose{}, "1.1000", "1.0950"), "1.0960", false},
		{"stop-out is not tp family", closed(domain.SideLong, domain.StopHunted{}, "1.1000", "1.0950"), "1.2000", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := usecase.EvaluateTPContinuation(tt.trade, quoteAt(tt.mid, now), cfg, now)
			assert.Equal(t, tt.fire, got.Fire, got.Reason)
			if tt.fire {
				assert.Equal(t, domain.TriggerTPContinuation, got.Trigger)
			}
		})
	}
}

func TestSLHuntRecovery(t *testing.T) {
	cfg := testTriggers().SLHunt
	now := closeTime.Add(time.Minute)

	long := closed(domain.SideLong, domain.StopHunted{}, "1.1000", "1.0900")
	assert.False(t, usecase.EvaluateSLHunt(long, quoteAt("1.0990", now), cfg, now).Fire)
	assert.True(t, usecase.EvaluateSLHunt(long, quoteAt("1.1006", now), cfg, now).Fire)

	short := closed(domain.SideShort, domain.StopHunted{}, "1.1000", "1.1100")
	assert.True(t, usecase.EvaluateSLHunt(short, quoteAt("1.0990", now), cfg, now).Fire)
	assert.False(t, usecase.EvaluateSLHunt(short, quoteAt("1.1010", now), cfg, now).Fire)
}

func TestExitContinuation(t *testing.T) {
	cfg := testTriggers().ExitContinuation
	now := closeTime.Add(time.Minute)
	trade := closed(domain.SideLong, domain.ManualClose{}, "1.1000", "1.1020")

	assert.True(t, usecase.EvaluateExitContinuation(trade, quoteAt("1.1030", now), cfg, now).Fire)
	assert.False(t, usecase.EvaluateExitContinuation(trade, quoteAt("1.1021", now), cfg, now).Fire)
	assert.False(t, usecase.EvaluateTPContinuation(trade, quoteAt("1.1030", now), cfg, now).Fire)
}

func TestTriggerPrechecks(t *testing.T) {
	cfg := testTriggers().TPContinuation
	trade := closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050")

	late := closeTime.Add(31 * time.Minute)
	assert.False(t, usecase.EvaluateTPContinuation(trade, quoteAt("1.2000", late), cfg, late).Fire, "outside window")

	now := closeTime.Add(time.Minute)
	stale := quoteAt("1.2000", closeTime.Add(-time.Second))
	assert.False(t, usecase.EvaluateTPContinuation(trade, stale, cfg, now).Fire, "quote older than close")

	disabled := cfg
	disabled.Enabled = false
	assert.False(t, usecase.EvaluateTPContinuation(trade, quoteAt("1.2000", now), disabled, now).Fire)
}

func TestLossCloseNeverTriggers(t *testing.T) {
	e := usecase.NewTriggerEvaluator(testTriggers())
	now := closeTime.Add(time.Minute)
	trade := closed(domain.SideLong, domain.LossClose{}, "1.1000", "1.0950")

	assert.False(t, e.Applicable(trade.Outcome))
	assert.False(t, e.Evaluate(trade, quoteAt("1.3000", now), now).Fire)
}

func TestEvaluatorCooldown(t *testing.T) {
	e := usecase.NewTriggerEvaluator(testTriggers())
	trade := closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050")
	now := closeTime.Add(time.Minute)

	first := e.Evaluate(trade, quoteAt("1.1100", now), now)
	assert.True(t, first.Fire)

	now = now.Add(30 * time.Second)
	second := e.Evaluate(trade, quoteAt("1.1100", now), now)
	assert.False(t, second.Fire)
	assert.Contains(t, second.Reason, "cooling down")

	now = now.Add(31 * time.Second)
	assert.True(t, e.Evaluate(trade, quoteAt("1.1100", now), now).Fire)
}

func TestEvaluatorCooldownIsPerTrigger(t *testing.T) {
	e := usecase.NewTriggerEvaluator(testTriggers())
	now := closeTime.Add(time.Minute)

	tp := closed(domain.SideLong, domain.ProfitClose{}, "1.1000", "1.1050")
	a := assert.New(t)
	a.True(e.Evaluate(tp, quoteAt("1.1100", now), now).Fire)

	hunted := closed(domain.SideLong, domain.StopHunted{}, "1.1000", "1.0900")
	got := e.Evaluate(hunted, quoteAt("1.1100", now), now)
	a.True(got.Fire)
	a.Equal(domain.TriggerSLHunt, got.Trigger)

	other := tp
	other.Side = domain.SideShort
	other.ExitPrice = d("1.0950")
	a.True(e.Evaluate(other, quoteAt("1.0900", now), now).Fire, "other side has its own cooldown")
}

func TestEvaluatorWindowFallback(t *testing.T) {
	set := testTriggers()
	set.ExitContinuation.Enabled = false
	set.SLHunt.RecoveryWindowMinutes = 10
	e := usecase.NewTriggerEvaluator(set)

	assert.Equal(t, 30*time.Minute, e.Window(domain.ProfitClose{}))
	assert.Equal(t, 10*time.Minute, e.Window(domain.ManualClose{}))
}
