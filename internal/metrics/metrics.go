// Package metrics exposes chain lifecycle counters to Prometheus:
//
//	reentry_chains_active                   active chains (gauge)
//	reentry_chain_events_total{kind}        lifecycle events by kind
//	reentry_levels_opened_total{trigger}    levels opened by trigger family
//	reentry_chain_stops_total{reason,unexpected}
//	reentry_denials_total{reason}           level-0 gate denials
//	reentry_realized_pnl                    realized pnl of finished chains
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitos/crypto_reentry_chain/internal/domain"
)

type Metrics struct {
	ActiveChains prometheus.Gauge
	Events       *prometheus.CounterVec
	LevelsOpened *prometheus.CounterVec
	Stops        *prometheus.CounterVec
	Denials      *prometheus.CounterVec
	RealizedPnL  prometheus.Gauge
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ActiveChains: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reentry_chains_active",
			Help: "Chains currently ACTIVE",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reentry_chain_events_total",
			Help: "Chain lifecycle events by kind",
		}, []string{"kind"}),
		LevelsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reentry_levels_opened_total",
			Help: "Levels opened by trigger family",
		}, []string{"trigger"}),
		Stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reentry_chain_stops_total",
			Help: "Chains stopped, split by reason",
		}, []string{"reason", "unexpected"}),
		Denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reentry_denials_total",
			Help: "Re-entries denied before a chain was created",
		}, []string{"reason"}),
		RealizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reentry_realized_pnl",
			Help: "Realized pnl summed over completed and stopped chains",
		}),
	}
	for _, c := range []prometheus.Collector{m.ActiveChains, m.Events, m.LevelsOpened, m.Stops, m.Denials, m.RealizedPnL} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Notify implements domain.Notifier.
func (m *Metrics) Notify(ctx context.Context, event domain.ChainEvent) {
	m.Events.WithLabelValues(string(event.Kind)).Inc()
	switch event.Kind {
	case domain.EventChainCreated:
		m.ActiveChains.Inc()
	case domain.EventLevelOpened:
		m.LevelsOpened.WithLabelValues(string(event.Trigger)).Inc()
	case domain.EventChainCompleted:
		m.ActiveChains.Dec()
		m.RealizedPnL.Add(event.PnL.InexactFloat64())
	case domain.EventChainStopped:
		m.ActiveChains.Dec()
		m.RealizedPnL.Add(event.PnL.InexactFloat64())
		m.Stops.WithLabelValues(event.Reason, strconv.FormatBool(event.Unexpected)).Inc()
	case domain.EventReentryDenied:
		m.Denials.WithLabelValues(event.Reason).Inc()
	}
}

// Sync resets the active gauge from stats, used after rehydration.
func (m *Metrics) Sync(stats domain.ChainStats) {
	m.ActiveChains.Set(float64(stats.Active))
}
