package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/pkg/errors"
)

func newYorkTime(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestEntry_NextAfterSameDay(t *testing.T) {
	loc := newYorkTime(t)
	entry := Entry{Type: report.TypePremarket, Hour: 6, Minute: 30}

	now := time.Date(2026, 8, 24, 5, 0, 0, 0, loc) // Monday 05:00
	next := entry.nextAfter(now, loc)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 30, 0, 0, loc), next)
}

func TestEntry_NextAfterRollsToNextDay(t *testing.T) {
	loc := newYorkTime(t)
	entry := Entry{Type: report.TypePremarket, Hour: 6, Minute: 30}

	now := time.Date(2026, 8, 24, 6, 30, 0, 0, loc) // exactly at trigger: strictly after
	next := entry.nextAfter(now, loc)
	assert.Equal(t, time.Date(2026, 8, 25, 6, 30, 0, 0, loc), next)
}

func TestEntry_NextAfterWeekday(t *testing.T) {
	loc := newYorkTime(t)
	sunday := time.Sunday
	entry := Entry{Type: report.TypeWeekly, Hour: 17, Minute: 0, Weekday: &sunday}

	now := time.Date(2026, 8, 24, 12, 0, 0, 0, loc) // Monday
	next := entry.nextAfter(now, loc)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, loc), next)
	assert.Equal(t, time.Sunday, next.Weekday())
}

func TestEntry_NextAfterWeekdaySameDayLater(t *testing.T) {
	loc := newYorkTime(t)
	sunday := time.Sunday
	entry := Entry{Type: report.TypeWeekly, Hour: 17, Minute: 0, Weekday: &sunday}

	now := time.Date(2026, 8, 30, 9, 0, 0, 0, loc) // Sunday morning
	next := entry.nextAfter(now, loc)
	assert.Equal(t, time.Date(2026, 8, 30, 17, 0, 0, 0, loc), next)

	// past the trigger on Sunday evening: a full week out
	evening := time.Date(2026, 8, 30, 18, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 9, 6, 17, 0, 0, 0, loc), entry.nextAfter(evening, loc))
}

func TestEntry_DueBetween(t *testing.T) {
	loc := newYorkTime(t)
	entry := Entry{Type: report.TypePremarket, Hour: 6, Minute: 30}

	from := time.Date(2026, 8, 24, 6, 29, 59, 0, loc)
	to := time.Date(2026, 8, 24, 6, 30, 1, 0, loc)

	trigger, due := entry.dueBetween(from, to, loc)
	require.True(t, due)
	assert.Equal(t, time.Date(2026, 8, 24, 6, 30, 0, 0, loc), trigger)

	// the next window must not fire the same trigger again
	_, due = entry.dueBetween(to, to.Add(time.Second), loc)
	assert.False(t, due)
}

func TestEntry_DueBetweenInclusiveUpperBound(t *testing.T) {
	loc := newYorkTime(t)
	entry := Entry{Type: report.TypePremarket, Hour: 6, Minute: 30}

	from := time.Date(2026, 8, 24, 6, 29, 0, 0, loc)
	to := time.Date(2026, 8, 24, 6, 30, 0, 0, loc)

	trigger, due := entry.dueBetween(from, to, loc)
	require.True(t, due)
	assert.Equal(t, to, trigger)
}

func TestEntry_DueBetweenWideWindowFiresOnce(t *testing.T) {
	// process asleep across the trigger: the trigger still fires exactly once
	loc := newYorkTime(t)
	entry := Entry{Type: report.TypePostmarket, Hour: 16, Minute: 30}

	from := time.Date(2026, 8, 24, 16, 0, 0, 0, loc)
	to := time.Date(2026, 8, 24, 18, 0, 0, 0, loc)

	trigger, due := entry.dueBetween(from, to, loc)
	require.True(t, due)
	assert.Equal(t, time.Date(2026, 8, 24, 16, 30, 0, 0, loc), trigger)
}

func TestBuildEntries(t *testing.T) {
	cfg := config.SchedulerConfig{
		Timezone:       "America/New_York",
		PremarketTime:  "06:30",
		PostmarketTime: "16:30",
		WeeklyTime:     "17:00",
		WeeklyDay:      "Sunday",
		WeeklyEnabled:  true,
	}

	entries, err := BuildEntries(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, report.TypePremarket, entries[0].Type)
	assert.Equal(t, 6, entries[0].Hour)
	assert.Equal(t, 30, entries[0].Minute)
	assert.Nil(t, entries[0].Weekday)

	assert.Equal(t, report.TypePostmarket, entries[1].Type)
	assert.Equal(t, 16, entries[1].Hour)

	assert.Equal(t, report.TypeWeekly, entries[2].Type)
	require.NotNil(t, entries[2].Weekday)
	assert.Equal(t, time.Sunday, *entries[2].Weekday)
}

func TestBuildEntries_WeeklyDisabled(t *testing.T) {
	cfg := config.SchedulerConfig{
		PremarketTime:  "06:30",
		PostmarketTime: "16:30",
		WeeklyEnabled:  false,
	}

	entries, err := BuildEntries(cfg)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBuildEntries_BadClock(t *testing.T) {
	cfg := config.SchedulerConfig{
		PremarketTime:  "25:00",
		PostmarketTime: "16:30",
	}

	_, err := BuildEntries(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestParseClock(t *testing.T) {
	h, m, err := parseClock("06:30")
	require.NoError(t, err)
	assert.Equal(t, 6, h)
	assert.Equal(t, 30, m)

	for _, bad := range []string{"", "630", "6:61", "-1:00", "aa:bb"} {
		_, _, err := parseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseWeekday(t *testing.T) {
	d, err := parseWeekday("sunday")
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, d)

	_, err = parseWeekday("Someday")
	assert.Error(t, err)
}
