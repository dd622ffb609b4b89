package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"oracle/internal/domain/report"
	"oracle/pkg/errors"
)

// ReportRepository is an in-memory report store. It backs tests and
// deployments without Postgres, and implements the same idempotency and
// supersede semantics as the SQL store.
type ReportRepository struct {
	mu      sync.Mutex
	records map[reportKey][]report.Record // attempts in insertion order
}

type reportKey struct {
	typ  report.Type
	date string
}

// NewReportRepository creates an empty in-memory store
func NewReportRepository() *ReportRepository {
	return &ReportRepository{records: make(map[reportKey][]report.Record)}
}

// Get implements report.Repository
func (r *ReportRepository) Get(ctx context.Context, typ report.Type, date string) (*report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempts := r.records[reportKey{typ, date}]
	if len(attempts) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "report %s %s", typ, date)
	}

	// Latest complete attempt wins; otherwise the latest attempt of any status.
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Status == report.StatusComplete {
			rec := attempts[i]
			return &rec, nil
		}
	}
	rec := attempts[len(attempts)-1]
	return &rec, nil
}

// GetAttempt implements report.Repository
func (r *ReportRepository) GetAttempt(ctx context.Context, typ report.Type, date string, attempt int) (*report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records[reportKey{typ, date}] {
		if rec.Attempt == attempt {
			out := rec
			return &out, nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "report %s %s attempt %d", typ, date, attempt)
}

// ListRecent implements report.Repository
func (r *ReportRepository) ListRecent(ctx context.Context, typ report.Type, limit int) ([]report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []report.Record
	for key, attempts := range r.records {
		if key.typ != typ || len(attempts) == 0 {
			continue
		}
		out = append(out, current(attempts))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// current returns the record Get would: latest complete, else latest attempt
func current(attempts []report.Record) report.Record {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Status == report.StatusComplete {
			return attempts[i]
		}
	}
	return attempts[len(attempts)-1]
}

// Put implements report.Repository
func (r *ReportRepository) Put(ctx context.Context, typ report.Type, date string, payload report.ResearchPayload, force bool) (*report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reportKey{typ, date}
	attempts := r.records[key]

	if !force {
		for i := len(attempts) - 1; i >= 0; i-- {
			if attempts[i].Status == report.StatusComplete {
				rec := attempts[i]
				return &rec, nil
			}
		}
	}

	rec := report.Record{
		ID:          uuid.New(),
		Type:        typ,
		Date:        date,
		Attempt:     nextAttempt(attempts),
		Status:      report.StatusComplete,
		GeneratedAt: time.Now().UTC(),
		Payload:     payload,
	}
	r.records[key] = append(attempts, rec)
	return &rec, nil
}

// PutFailed implements report.Repository
func (r *ReportRepository) PutFailed(ctx context.Context, typ report.Type, date string, runErr string) (*report.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := reportKey{typ, date}
	attempts := r.records[key]

	rec := report.Record{
		ID:          uuid.New(),
		Type:        typ,
		Date:        date,
		Attempt:     nextAttempt(attempts),
		Status:      report.StatusFailed,
		GeneratedAt: time.Now().UTC(),
		RunError:    runErr,
	}
	r.records[key] = append(attempts, rec)
	return &rec, nil
}

func nextAttempt(attempts []report.Record) int {
	max := 0
	for _, rec := range attempts {
		if rec.Attempt > max {
			max = rec.Attempt
		}
	}
	return max + 1
}
