package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/domain/report"
	"oracle/internal/testsupport"
	"oracle/pkg/errors"
)

func TestReportRepository_GetMissing(t *testing.T) {
	repo := NewReportRepository()

	_, err := repo.Get(context.Background(), report.TypePremarket, "2026-08-24")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReportRepository_PutIsIdempotent(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	first, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("first"), false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Attempt)

	second, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("second"), false)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "repeat put must return the existing record")
	assert.Equal(t, "first", second.Payload.ExecutiveSummary)
}

func TestReportRepository_ForceSupersedesAndKeepsHistory(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	_, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("v1"), false)
	require.NoError(t, err)

	forced, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("v2"), true)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Attempt)

	current, err := repo.Get(ctx, report.TypePremarket, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Payload.ExecutiveSummary)

	prior, err := repo.GetAttempt(ctx, report.TypePremarket, "2026-08-24", 1)
	require.NoError(t, err)
	assert.Equal(t, "v1", prior.Payload.ExecutiveSummary)
	assert.Equal(t, report.StatusComplete, prior.Status)
}

func TestReportRepository_GetPrefersCompleteOverLaterFailure(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	_, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("good"), false)
	require.NoError(t, err)

	failed, err := repo.PutFailed(ctx, report.TypePremarket, "2026-08-24", "synthesis timeout")
	require.NoError(t, err)
	assert.Equal(t, 2, failed.Attempt)

	current, err := repo.Get(ctx, report.TypePremarket, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, report.StatusComplete, current.Status)
	assert.Equal(t, "good", current.Payload.ExecutiveSummary)
}

func TestReportRepository_GetFallsBackToLatestFailure(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	_, err := repo.PutFailed(ctx, report.TypePremarket, "2026-08-24", "first failure")
	require.NoError(t, err)
	_, err = repo.PutFailed(ctx, report.TypePremarket, "2026-08-24", "second failure")
	require.NoError(t, err)

	current, err := repo.Get(ctx, report.TypePremarket, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, current.Status)
	assert.Equal(t, "second failure", current.RunError)
	assert.Equal(t, 2, current.Attempt)
}

func TestReportRepository_CompleteAfterFailureBecomesCurrent(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	_, err := repo.PutFailed(ctx, report.TypePremarket, "2026-08-24", "transient")
	require.NoError(t, err)

	rec, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("recovered"), false)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Attempt)

	current, err := repo.Get(ctx, report.TypePremarket, "2026-08-24")
	require.NoError(t, err)
	assert.Equal(t, report.StatusComplete, current.Status)
}

func TestReportRepository_ListRecent(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	for _, date := range []string{"2026-08-20", "2026-08-21", "2026-08-22"} {
		_, err := repo.Put(ctx, report.TypePremarket, date, testsupport.ValidPayload(date), false)
		require.NoError(t, err)
	}
	// other type must not leak into the listing
	_, err := repo.Put(ctx, report.TypeWeekly, "2026-08-23", testsupport.ValidPayload("weekly"), false)
	require.NoError(t, err)

	records, err := repo.ListRecent(ctx, report.TypePremarket, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-08-22", records[0].Date)
	assert.Equal(t, "2026-08-21", records[1].Date)
}

func TestReportRepository_TypesAreIndependent(t *testing.T) {
	repo := NewReportRepository()
	ctx := context.Background()

	_, err := repo.Put(ctx, report.TypePremarket, "2026-08-24", testsupport.ValidPayload("pre"), false)
	require.NoError(t, err)

	_, err = repo.Get(ctx, report.TypePostmarket, "2026-08-24")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
