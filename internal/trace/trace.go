package trace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"oracle/pkg/logger"
)

// Phase of an agent or run within a trace
type Phase string

const (
	PhaseStart  Phase = "start"
	PhaseFinish Phase = "finish"
)

// Event is one structured trace record emitted by the pipeline.
// Every agent emits a start and a finish event per run.
type Event struct {
	RunID      uuid.UUID
	ReportType string
	ReportDate string
	Agent      string // empty for run-level events
	Phase      Phase
	Outcome    string
	Error      string
	Attempts   int
	At         time.Time
	DurationMs int64
}

// Recorder consumes trace events. Recording must never block or fail a run.
type Recorder interface {
	Record(ctx context.Context, ev Event)
	Flush(ctx context.Context) error
}

// ZapRecorder writes trace events to the structured log
type ZapRecorder struct {
	log *logger.Logger
}

// NewZapRecorder creates a log-backed trace recorder
func NewZapRecorder() *ZapRecorder {
	return &ZapRecorder{log: logger.Get().With("component", "trace")}
}

// Record implements Recorder
func (r *ZapRecorder) Record(ctx context.Context, ev Event) {
	fields := []interface{}{
		"run_id", ev.RunID.String(),
		"report_type", ev.ReportType,
		"report_date", ev.ReportDate,
		"phase", string(ev.Phase),
	}
	if ev.Agent != "" {
		fields = append(fields, "agent", ev.Agent)
	}
	if ev.Phase == PhaseFinish {
		fields = append(fields, "outcome", ev.Outcome, "attempts", ev.Attempts, "duration_ms", ev.DurationMs)
	}
	if ev.Error != "" {
		fields = append(fields, "error", ev.Error)
	}
	r.log.Infow("trace", fields...)
}

// Flush implements Recorder
func (r *ZapRecorder) Flush(ctx context.Context) error {
	return nil
}

// Multi fans events out to several recorders
type Multi struct {
	recorders []Recorder
}

// NewMulti creates a fan-out recorder
func NewMulti(recorders ...Recorder) *Multi {
	return &Multi{recorders: recorders}
}

// Record implements Recorder
func (m *Multi) Record(ctx context.Context, ev Event) {
	for _, r := range m.recorders {
		r.Record(ctx, ev)
	}
}

// Flush implements Recorder
func (m *Multi) Flush(ctx context.Context) error {
	var lastErr error
	for _, r := range m.recorders {
		if err := r.Flush(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Nop discards all events; used in tests
type Nop struct{}

// Record implements Recorder
func (Nop) Record(ctx context.Context, ev Event) {}

// Flush implements Recorder
func (Nop) Flush(ctx context.Context) error { return nil }
