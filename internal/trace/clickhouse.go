package trace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"oracle/internal/adapters/config"
	"oracle/pkg/logger"
)

const (
	traceTable        = "agent_traces"
	traceBatchSize    = 200
	traceFlushPeriod  = 5 * time.Second
	traceInsertColumn = `INSERT INTO agent_traces
		(run_id, report_type, report_date, agent, phase, outcome, error, attempts, at, duration_ms)`
)

// ClickHouseRecorder buffers trace events and flushes them in batches.
// Single-row inserts are inefficient in ClickHouse, so events accumulate
// until the batch size or flush period is reached.
type ClickHouseRecorder struct {
	conn driver.Conn
	log  *logger.Logger

	mu     sync.Mutex
	buffer []Event

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewClickHouseRecorder connects to ClickHouse and starts the flush loop
func NewClickHouseRecorder(cfg config.ClickHouseConfig) (*ClickHouseRecorder, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	r := &ClickHouseRecorder{
		conn:   conn,
		log:    logger.Get().With("component", "trace_clickhouse"),
		buffer: make([]Event, 0, traceBatchSize),
		stopCh: make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r, nil
}

// Record implements Recorder. Never blocks on the network.
func (r *ClickHouseRecorder) Record(ctx context.Context, ev Event) {
	r.mu.Lock()
	r.buffer = append(r.buffer, ev)
	full := len(r.buffer) >= traceBatchSize
	r.mu.Unlock()

	if full {
		if err := r.Flush(context.Background()); err != nil {
			r.log.Warnf("Trace batch flush failed: %v", err)
		}
	}
}

func (r *ClickHouseRecorder) flushLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(traceFlushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Flush(context.Background()); err != nil {
				r.log.Warnf("Trace periodic flush failed: %v", err)
			}
		}
	}
}

// Flush writes the buffered events as a single batch insert
func (r *ClickHouseRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if len(r.buffer) == 0 {
		r.mu.Unlock()
		return nil
	}
	events := r.buffer
	r.buffer = make([]Event, 0, traceBatchSize)
	r.mu.Unlock()

	batch, err := r.conn.PrepareBatch(ctx, traceInsertColumn)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if err := batch.Append(
			ev.RunID.String(),
			ev.ReportType,
			ev.ReportDate,
			ev.Agent,
			string(ev.Phase),
			ev.Outcome,
			ev.Error,
			int32(ev.Attempts),
			ev.At,
			ev.DurationMs,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}

// Close flushes remaining events and stops the flush loop
func (r *ClickHouseRecorder) Close() error {
	close(r.stopCh)
	r.wg.Wait()

	if err := r.Flush(context.Background()); err != nil {
		r.log.Warnf("Final trace flush failed: %v", err)
	}
	return r.conn.Close()
}
