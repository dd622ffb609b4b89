package delivery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/domain/report"
	"oracle/internal/testsupport"
	"oracle/pkg/errors"
)

func sampleRecord(summary string) *report.Record {
	return &report.Record{
		Type:        report.TypePremarket,
		Date:        "2026-08-24",
		Attempt:     1,
		Status:      report.StatusComplete,
		GeneratedAt: time.Now().UTC(),
		Payload:     testsupport.ValidPayload(summary),
	}
}

func TestFileWriter_WritesReport(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", w.Name())

	require.NoError(t, w.Notify(context.Background(), sampleRecord("first version")))

	path := filepath.Join(dir, "2026-08-24_premarket.md")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first version")

	// no temp file left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestFileWriter_RerunOverwrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewFileWriter(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Notify(ctx, sampleRecord("first version")))

	rerun := sampleRecord("forced rerun")
	rerun.Attempt = 2
	require.NoError(t, w.Notify(ctx, rerun))

	data, err := os.ReadFile(filepath.Join(dir, "2026-08-24_premarket.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "forced rerun")
	assert.NotContains(t, string(data), "first version")
}

func TestFileWriter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	_, err := NewFileWriter(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

// countingNotifier records calls; fails when failErr is set
type countingNotifier struct {
	name    string
	calls   int
	failErr error
}

func (n *countingNotifier) Name() string { return n.name }

func (n *countingNotifier) Notify(ctx context.Context, rec *report.Record) error {
	n.calls++
	return n.failErr
}

func TestFanout_ContinuesPastFailures(t *testing.T) {
	broken := &countingNotifier{name: "broken", failErr: errors.ErrProviderUnavailable}
	healthy := &countingNotifier{name: "healthy"}

	fanout := NewFanout(broken, healthy)
	fanout.Deliver(context.Background(), sampleRecord("summary"))

	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, healthy.calls, "a failed channel must not block the rest")
}

func TestFanout_EmptyIsNoop(t *testing.T) {
	NewFanout().Deliver(context.Background(), sampleRecord("summary"))
}
