package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

// gathered returns sample values keyed by metric name and joined label values.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "|" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				out[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[key] = m.GetGauge().GetValue()
			}
		}
	}
	return out
}

func TestMetrics_Notify(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	ctx := context.Background()

	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventChainCreated, ChainID: "a"})
	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventChainCreated, ChainID: "b"})
	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventLevelOpened, ChainID: "a", Trigger: domain.TriggerSLHunt})
	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventChainCompleted, ChainID: "a", PnL: decimal.NewFromInt(40)})
	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventChainStopped, ChainID: "b", Reason: domain.StopGatewayFailure, Unexpected: true, PnL: decimal.NewFromInt(-15)})
	m.Notify(ctx, domain.ChainEvent{Kind: domain.EventReentryDenied, Reason: domain.StopRiskDenied})

	got := gathered(t, reg)
	assert.Equal(t, 0.0, got["reentry_chains_active"])
	assert.Equal(t, 2.0, got["reentry_chain_events_total|chain_created"])
	assert.Equal(t, 1.0, got["reentry_levels_opened_total|sl_hunt_recovery"])
	assert.Equal(t, 1.0, got["reentry_chain_stops_total|gateway_failure|true"])
	assert.Equal(t, 1.0, got["reentry_denials_total|risk_denied"])
	assert.Equal(t, 25.0, got["reentry_realized_pnl"])
}

func TestMetrics_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_Sync(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.Sync(domain.ChainStats{Active: 3})
	assert.Equal(t, 3.0, gathered(t, reg)["reentry_chains_active"])
}
