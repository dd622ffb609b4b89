package delivery

import (
	"context"

	"oracle/internal/domain/report"
	"oracle/internal/metrics"
	"oracle/pkg/logger"
)

// Notifier delivers a finished report to one channel. Delivery is
// best-effort: a failed channel is logged and counted, never propagated
// back into the generation run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rec *report.Record) error
}

// Fanout delivers to every configured channel
type Fanout struct {
	notifiers []Notifier
	log       *logger.Logger
}

// NewFanout creates a fan-out deliverer
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		log:       logger.Get().With("component", "delivery"),
	}
}

// Deliver pushes the record to every channel, continuing past failures
func (f *Fanout) Deliver(ctx context.Context, rec *report.Record) {
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, rec); err != nil {
			f.log.Errorw("Delivery failed",
				"channel", n.Name(), "report_type", rec.Type, "report_date", rec.Date, "error", err)
			metrics.DeliveryNotifications.WithLabelValues(n.Name(), "error").Inc()
			continue
		}
		metrics.DeliveryNotifications.WithLabelValues(n.Name(), "sent").Inc()
	}
}
