package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"oracle/internal/adapters/kafka"
	"oracle/internal/domain/report"
)

// ReportEvent is the wire format for report lifecycle notifications
type ReportEvent struct {
	ID          uuid.UUID     `json:"id"`
	Type        report.Type   `json:"type"`
	Date        string        `json:"date"`
	Attempt     int           `json:"attempt"`
	Status      report.Status `json:"status"`
	Regime      string        `json:"regime,omitempty"`
	TradeCount  int           `json:"trade_count"`
	RunError    string        `json:"run_error,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// KafkaNotifier publishes report lifecycle events for downstream consumers
type KafkaNotifier struct {
	producer *kafka.Producer
}

// NewKafkaNotifier creates a kafka-backed notifier
func NewKafkaNotifier(producer *kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

// Name implements Notifier
func (n *KafkaNotifier) Name() string { return "kafka" }

// Notify implements Notifier
func (n *KafkaNotifier) Notify(ctx context.Context, rec *report.Record) error {
	event := ReportEvent{
		ID:          rec.ID,
		Type:        rec.Type,
		Date:        rec.Date,
		Attempt:     rec.Attempt,
		Status:      rec.Status,
		RunError:    rec.RunError,
		GeneratedAt: rec.GeneratedAt,
	}

	topic := kafka.TopicReportCompleted
	if rec.Status != report.StatusComplete {
		topic = kafka.TopicReportFailed
	} else {
		event.Regime = rec.Payload.Regime.Label
		event.TradeCount = len(rec.Payload.ValidTrades())
	}

	key := fmt.Sprintf("%s:%s", rec.Type, rec.Date)
	return n.producer.Publish(ctx, topic, key, event)
}
