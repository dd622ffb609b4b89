package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/domain/report"
	"oracle/internal/testsupport"
	"oracle/pkg/errors"
)

// newTestRepo connects to the test database and scopes the test to its
// report dates, deleting their rows before and after. The repository manages
// its own transactions, so the usual rollback isolation does not apply here.
func newTestRepo(t *testing.T, dates ...string) *ReportRepository {
	t.Helper()
	helper := testsupport.NewTestPostgres(t)
	helper.Rollback()

	db := helper.DB()
	cleanup := func() {
		for _, date := range dates {
			_, _ = db.Exec(`DELETE FROM reports WHERE report_date = $1`, date)
		}
	}
	cleanup()
	t.Cleanup(cleanup)

	return NewReportRepository(db)
}

func TestReportRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t, "2099-01-01")

	_, err := repo.Get(context.Background(), report.TypePremarket, "2099-01-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReportRepository_PutRoundTrip(t *testing.T) {
	const date = "2099-01-02"
	repo := newTestRepo(t, date)
	ctx := context.Background()

	payload := testsupport.ValidPayload("integration round trip")
	rec, err := repo.Put(ctx, report.TypePremarket, date, payload, false)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Attempt)
	assert.Equal(t, report.StatusComplete, rec.Status)

	got, err := repo.Get(ctx, report.TypePremarket, date)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "integration round trip", got.Payload.ExecutiveSummary)
	assert.Equal(t, payload.Trades, got.Payload.Trades)
}

func TestReportRepository_PutIdempotent(t *testing.T) {
	const date = "2099-01-03"
	repo := newTestRepo(t, date)
	ctx := context.Background()

	first, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload("first"), false)
	require.NoError(t, err)

	second, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload("second"), false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "first", second.Payload.ExecutiveSummary)
}

func TestReportRepository_ForceCreatesNewAttempt(t *testing.T) {
	const date = "2099-01-04"
	repo := newTestRepo(t, date)
	ctx := context.Background()

	_, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload("v1"), false)
	require.NoError(t, err)

	forced, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload("v2"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Attempt)

	current, err := repo.Get(ctx, report.TypePremarket, date)
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Payload.ExecutiveSummary)

	prior, err := repo.GetAttempt(ctx, report.TypePremarket, date, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", prior.Payload.ExecutiveSummary)
}

func TestReportRepository_FailureNeverSupersedesComplete(t *testing.T) {
	const date = "2099-01-05"
	repo := newTestRepo(t, date)
	ctx := context.Background()

	_, err := repo.Put(ctx, report.TypePostmarket, date, testsupport.ValidPayload("good"), false)
	require.NoError(t, err)

	failed, err := repo.PutFailed(ctx, report.TypePostmarket, date, "synthesis timeout")
	require.NoError(t, err)
	assert.Equal(t, 2, failed.Attempt)

	current, err := repo.Get(ctx, report.TypePostmarket, date)
	require.NoError(t, err)
	assert.Equal(t, report.StatusComplete, current.Status)
}

func TestReportRepository_GetFallsBackToFailure(t *testing.T) {
	const date = "2099-01-06"
	repo := newTestRepo(t, date)
	ctx := context.Background()

	_, err := repo.PutFailed(ctx, report.TypeWeekly, date, "all agents failed")
	require.NoError(t, err)

	current, err := repo.Get(ctx, report.TypeWeekly, date)
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, current.Status)
	assert.Equal(t, "all agents failed", current.RunError)
}

func TestReportRepository_ListRecent(t *testing.T) {
	dates := []string{"2099-02-01", "2099-02-02", "2099-02-03"}
	repo := newTestRepo(t, dates...)
	ctx := context.Background()

	for _, date := range dates {
		_, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload(date), false)
		require.NoError(t, err)
	}
	// a forced rerun on the middle date: only the current attempt is listed
	_, err := repo.Put(ctx, report.TypePremarket, "2099-02-02", testsupport.ValidPayload("rerun"), true)
	require.NoError(t, err)

	records, err := repo.ListRecent(ctx, report.TypePremarket, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2099-02-03", records[0].Date)
	assert.Equal(t, "2099-02-02", records[1].Date)
	assert.Equal(t, 2, records[1].Attempt)
	assert.Equal(t, "rerun", records[1].Payload.ExecutiveSummary)
}

func TestReportRepository_GetAttemptMissing(t *testing.T) {
	const date = "2099-01-07"
	repo := newTestRepo(t, date)

	_, err := repo.GetAttempt(context.Background(), report.TypePremarket, date, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
