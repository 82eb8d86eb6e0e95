package notifier

import (
	"context"

	"github.com/vitos/crypto_reentry_chain/internal/domain"
	"go.uber.org/zap"
)

// LogNotifier writes every chain event to the structured log. Unexpected
// stops are logged at error level.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event domain.ChainEvent) {
	fields := []zap.Field{
		zap.String("event", string(event.Kind)),
		zap.String("chain_id", event.ChainID),
		zap.String("symbol", event.Symbol),
		zap.String("side", string(event.Side)),
		zap.Int("level", event.Level),
		zap.Time("at", event.At),
	}
	if event.Trigger != domain.TriggerNone {
		fields = append(fields, zap.String("trigger", string(event.Trigger)))
	}
	if !event.LotSize.IsZero() {
		fields = append(fields, zap.String("lot_size", event.LotSize.String()))
	}
	if event.Kind == domain.EventLevelClosed || event.Kind == domain.EventChainCompleted || event.Kind == domain.EventChainStopped {
		fields = append(fields, zap.String("pnl", event.PnL.String()))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason), zap.String("detail", event.Detail))
	}

	switch {
	case event.Unexpected:
		n.logger.Error("Chain event", fields...)
	case event.Kind == domain.EventReentryDenied || event.Kind == domain.EventChainStopped:
		n.logger.Warn("Chain event", fields...)
	default:
		n.logger.Info("Chain event", fields...)
	}
}

// Multi fans an event out to several notifiers in order.
type Multi []domain.Notifier

func NewMulti(notifiers ...domain.Notifier) Multi {
	out := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m Multi) Notify(ctx context.Context, event domain.ChainEvent) {
	for _, n := range m {
		n.Notify(ctx, event)
	}
}
