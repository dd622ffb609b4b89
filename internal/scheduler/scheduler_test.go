package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/pkg/errors"
)

type generatorCall struct {
	Type  report.Type
	Date  string
	Force bool
}

// recordingGenerator captures Generate calls; err is returned to every caller
type recordingGenerator struct {
	mu    sync.Mutex
	calls []generatorCall
	err   error
}

func (g *recordingGenerator) Generate(ctx context.Context, typ report.Type, date string, force bool) (*report.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, generatorCall{Type: typ, Date: date, Force: force})
	if g.err != nil {
		return nil, g.err
	}
	return &report.Record{Type: typ, Date: date, Status: report.StatusComplete}, nil
}

func (g *recordingGenerator) snapshot() []generatorCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]generatorCall(nil), g.calls...)
}

func testSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Timezone:       "America/New_York",
		PremarketTime:  "06:30",
		PostmarketTime: "16:30",
		WeeklyTime:     "17:00",
		WeeklyDay:      "Sunday",
		WeeklyEnabled:  true,
	}
}

func newTestScheduler(t *testing.T, gen Generator) *Scheduler {
	t.Helper()
	s, err := New(testSchedulerConfig(), gen)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsBadTimezone(t *testing.T) {
	cfg := testSchedulerConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := New(cfg, &recordingGenerator{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestScheduler_FiresTriggerExactlyOnce(t *testing.T) {
	gen := &recordingGenerator{}
	s := newTestScheduler(t, gen)

	// window straddles the 06:30 premarket trigger by one second each side
	before := time.Date(2026, 8, 24, 6, 29, 59, 0, s.loc)
	after := time.Date(2026, 8, 24, 6, 30, 1, 0, s.loc)

	s.lastEval = before
	s.now = func() time.Time { return after }
	s.evaluate(context.Background())
	s.wg.Wait()

	calls := gen.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, report.TypePremarket, calls[0].Type)
	assert.Equal(t, "2026-08-24", calls[0].Date)
	assert.False(t, calls[0].Force, "scheduled runs never force regeneration")

	// the immediately following window must not refire the same trigger
	s.now = func() time.Time { return after.Add(time.Second) }
	s.evaluate(context.Background())
	s.wg.Wait()
	assert.Len(t, gen.snapshot(), 1)
}

func TestScheduler_NoCatchUpBeforeStart(t *testing.T) {
	gen := &recordingGenerator{}
	s := newTestScheduler(t, gen)

	// process comes up at 07:00, half an hour after the premarket trigger:
	// the missed trigger is gone, nothing fires until 16:30
	s.lastEval = time.Date(2026, 8, 24, 7, 0, 0, 0, s.loc)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 7, 0, 1, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()

	assert.Empty(t, gen.snapshot())
}

func TestScheduler_StalledWindowStillFiresMissedTrigger(t *testing.T) {
	gen := &recordingGenerator{}
	s := newTestScheduler(t, gen)

	// evaluation stalled from 16:00 to 18:00 while running: the 16:30
	// postmarket trigger inside the window fires once on the next pass
	s.lastEval = time.Date(2026, 8, 24, 16, 0, 0, 0, s.loc)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 18, 0, 0, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()

	calls := gen.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, report.TypePostmarket, calls[0].Type)
}

func TestScheduler_WeeklyFiresOnConfiguredDay(t *testing.T) {
	gen := &recordingGenerator{}
	s := newTestScheduler(t, gen)

	// Sunday 2026-08-30 17:00 is both the weekly trigger and no daily trigger
	s.lastEval = time.Date(2026, 8, 30, 16, 59, 59, 0, s.loc)
	s.now = func() time.Time { return time.Date(2026, 8, 30, 17, 0, 1, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()

	calls := gen.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, report.TypeWeekly, calls[0].Type)
	assert.Equal(t, "2026-08-30", calls[0].Date)
}

func TestScheduler_LockedRunIsSkippedNotQueued(t *testing.T) {
	gen := &recordingGenerator{err: errors.ErrRunInProgress}
	s := newTestScheduler(t, gen)

	s.lastEval = time.Date(2026, 8, 24, 6, 29, 59, 0, s.loc)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 6, 30, 1, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()

	// the trigger was consumed despite the skip; it is not retried
	assert.Len(t, gen.snapshot(), 1)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 6, 30, 2, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()
	assert.Len(t, gen.snapshot(), 1)
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	s := newTestScheduler(t, &recordingGenerator{})

	assert.Equal(t, StateStopped, s.Status().State)
	require.Error(t, s.Stop(), "stop before start must fail")

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StateIdle, s.Status().State)
	require.Error(t, s.Start(context.Background()), "double start must fail")

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.Status().State)

	// restart after stop is allowed
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop())
}

func TestScheduler_Status(t *testing.T) {
	s := newTestScheduler(t, &recordingGenerator{})
	s.now = func() time.Time { return time.Date(2026, 8, 24, 5, 0, 0, 0, s.loc) } // Monday 05:00

	st := s.Status()
	assert.Equal(t, "America/New_York", st.Timezone)
	assert.Empty(t, st.Running)
	assert.Len(t, st.Entries, 3)

	require.Contains(t, st.NextRuns, report.TypePremarket)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 30, 0, 0, s.loc), st.NextRuns[report.TypePremarket])
	assert.Equal(t, time.Date(2026, 8, 24, 16, 30, 0, 0, s.loc), st.NextRuns[report.TypePostmarket])
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, s.loc), st.NextRuns[report.TypeWeekly])
}

func TestScheduler_StatusReportsRunningRun(t *testing.T) {
	gen := &blockingGenerator{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScheduler(t, gen)

	firedAt := time.Date(2026, 8, 24, 6, 30, 1, 0, s.loc)
	s.lastEval = firedAt.Add(-2 * time.Second)
	s.now = func() time.Time { return firedAt }
	s.evaluate(context.Background())

	<-gen.started
	st := s.Status()
	assert.Equal(t, StateRunning, st.State)
	require.Contains(t, st.Running, report.TypePremarket)
	assert.Equal(t, firedAt, st.Running[report.TypePremarket])

	close(gen.release)
	s.wg.Wait()

	st = s.Status()
	assert.Empty(t, st.Running)
}

// blockingGenerator holds the run open until released so Status can be
// observed mid-run
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, typ report.Type, date string, force bool) (*report.Record, error) {
	close(g.started)
	<-g.release
	return &report.Record{Type: typ, Date: date, Status: report.StatusComplete}, nil
}

func TestScheduler_RunPanicDoesNotKillScheduler(t *testing.T) {
	s := newTestScheduler(t, panicGenerator{})

	s.lastEval = time.Date(2026, 8, 24, 6, 29, 59, 0, s.loc)
	s.now = func() time.Time { return time.Date(2026, 8, 24, 6, 30, 1, 0, s.loc) }
	s.evaluate(context.Background())
	s.wg.Wait()

	// scheduler still evaluates after the panic and is back to idle accounting
	assert.Equal(t, 0, s.inFlight)
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, report.Type, string, bool) (*report.Record, error) {
	panic("boom")
}
