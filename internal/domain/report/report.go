package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies a report family. Each type has its own agent graph,
// schedule entry and run lock.
type Type string

const (
	TypePremarket  Type = "premarket"
	TypePostmarket Type = "postmarket"
	TypeWeekly     Type = "weekly"
)

// Status is the terminal state of a generation run
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Record is one persisted report attempt. Identity is (type, date, attempt);
// at most one complete record per (type, date) is current at any time, older
// attempts are kept for audit.
type Record struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Type        Type            `db:"report_type" json:"type"`
	Date        string          `db:"report_date" json:"date"` // YYYY-MM-DD in the schedule timezone
	Attempt     int             `db:"attempt" json:"attempt"`
	Status      Status          `db:"status" json:"status"`
	GeneratedAt time.Time       `db:"generated_at" json:"generated_at"`
	Payload     ResearchPayload `db:"payload" json:"payload"`
	RunError    string          `db:"run_error" json:"run_error,omitempty"`
}

// Complete reports whether this record carries a usable payload
func (r *Record) Complete() bool {
	return r != nil && r.Status == StatusComplete
}

// Repository is the report store contract.
//
// Put is idempotent: if a complete record already exists for (type, date) and
// force is false, the existing record is returned unchanged. With force the
// prior record is superseded (kept, attempt incremented). Concurrent writes to
// the same key are serialized by the implementation regardless of the run-lock
// discipline upstream.
type Repository interface {
	// Get returns the current record for (type, date): the latest complete
	// attempt if one exists, otherwise the latest attempt of any status.
	Get(ctx context.Context, typ Type, date string) (*Record, error)

	// GetAttempt returns a specific attempt, including superseded ones.
	GetAttempt(ctx context.Context, typ Type, date string, attempt int) (*Record, error)

	// ListRecent returns up to limit records of the given type, most recent
	// report date first. Only current attempts are listed.
	ListRecent(ctx context.Context, typ Type, limit int) ([]Record, error)

	// Put persists a complete payload for (type, date).
	Put(ctx context.Context, typ Type, date string, payload ResearchPayload, force bool) (*Record, error)

	// PutFailed records a terminally failed run. It never supersedes an
	// existing complete record.
	PutFailed(ctx context.Context, typ Type, date string, runErr string) (*Record, error)
}

// DateFormat is the canonical report date layout
const DateFormat = "2006-01-02"

// DateOf formats t as a report date
func DateOf(t time.Time) string {
	return t.Format(DateFormat)
}
