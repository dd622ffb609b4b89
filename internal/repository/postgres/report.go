package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"oracle/internal/domain/report"
	"oracle/pkg/errors"
)

// Compile-time check
var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository implements report.Repository using sqlx.
//
// Writers serialize per (report_type, report_date) via SELECT ... FOR UPDATE
// inside a transaction, so idempotency holds even when two runs race past the
// run-lock discipline upstream.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Get retrieves the current record for (typ, date): the latest complete
// attempt if one exists, otherwise the latest attempt of any status
func (r *ReportRepository) Get(ctx context.Context, typ report.Type, date string) (*report.Record, error) {
	var rec report.Record

	query := `
		SELECT * FROM reports
		WHERE report_type = $1 AND report_date = $2
		ORDER BY (status = 'complete') DESC, attempt DESC
		LIMIT 1`

	err := r.db.GetContext(ctx, &rec, query, typ, date)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "report %s %s", typ, date)
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// GetAttempt retrieves a specific attempt, including superseded ones
func (r *ReportRepository) GetAttempt(ctx context.Context, typ report.Type, date string, attempt int) (*report.Record, error) {
	var rec report.Record

	query := `
		SELECT * FROM reports
		WHERE report_type = $1 AND report_date = $2 AND attempt = $3`

	err := r.db.GetContext(ctx, &rec, query, typ, date, attempt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "report %s %s attempt %d", typ, date, attempt)
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ListRecent retrieves up to limit current records of the given type,
// most recent report date first
func (r *ReportRepository) ListRecent(ctx context.Context, typ report.Type, limit int) ([]report.Record, error) {
	var records []report.Record

	query := `
		SELECT DISTINCT ON (report_date) *
		FROM reports
		WHERE report_type = $1
		ORDER BY report_date DESC, (status = 'complete') DESC, attempt DESC
		LIMIT $2`

	err := r.db.SelectContext(ctx, &records, query, typ, limit)
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Put persists a complete payload for (typ, date). Without force an existing
// complete record short-circuits the write and is returned unchanged; with
// force a new attempt supersedes it, keeping the prior row for audit.
func (r *ReportRepository) Put(ctx context.Context, typ report.Type, date string, payload report.ResearchPayload, force bool) (*report.Record, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	existing, maxAttempt, err := lockKey(ctx, tx, typ, date)
	if err != nil {
		return nil, err
	}

	if !force && existing != nil {
		return existing, tx.Commit()
	}

	rec := report.Record{
		ID:          uuid.New(),
		Type:        typ,
		Date:        date,
		Attempt:     maxAttempt + 1,
		Status:      report.StatusComplete,
		GeneratedAt: time.Now().UTC(),
		Payload:     payload,
	}
	if err := insertRecord(ctx, tx, &rec); err != nil {
		return nil, err
	}

	return &rec, tx.Commit()
}

// PutFailed records a terminally failed run as a new attempt. It never
// replaces a complete record: Get keeps preferring the complete attempt.
func (r *ReportRepository) PutFailed(ctx context.Context, typ report.Type, date string, runErr string) (*report.Record, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, maxAttempt, err := lockKey(ctx, tx, typ, date)
	if err != nil {
		return nil, err
	}

	rec := report.Record{
		ID:          uuid.New(),
		Type:        typ,
		Date:        date,
		Attempt:     maxAttempt + 1,
		Status:      report.StatusFailed,
		GeneratedAt: time.Now().UTC(),
		RunError:    runErr,
	}
	if err := insertRecord(ctx, tx, &rec); err != nil {
		return nil, err
	}

	return &rec, tx.Commit()
}

// lockKey locks every attempt row for (typ, date) and returns the latest
// complete record (nil if none) and the highest attempt number
func lockKey(ctx context.Context, tx *sqlx.Tx, typ report.Type, date string) (*report.Record, int, error) {
	var rows []report.Record

	query := `
		SELECT * FROM reports
		WHERE report_type = $1 AND report_date = $2
		ORDER BY attempt
		FOR UPDATE`

	if err := tx.SelectContext(ctx, &rows, query, typ, date); err != nil {
		return nil, 0, err
	}

	var complete *report.Record
	maxAttempt := 0
	for i := range rows {
		if rows[i].Attempt > maxAttempt {
			maxAttempt = rows[i].Attempt
		}
		if rows[i].Status == report.StatusComplete {
			complete = &rows[i]
		}
	}
	return complete, maxAttempt, nil
}

func insertRecord(ctx context.Context, tx *sqlx.Tx, rec *report.Record) error {
	query := `
		INSERT INTO reports (
			id, report_type, report_date, attempt, status,
			generated_at, payload, run_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.ExecContext(ctx, query,
		rec.ID, rec.Type, rec.Date, rec.Attempt, rec.Status,
		rec.GeneratedAt, rec.Payload, rec.RunError,
	)
	return err
}
