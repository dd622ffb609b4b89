package scheduler

import (
	"fmt"
	"strings"
	"time"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/pkg/errors"
)

// Entry is one schedule line: generate a report type at a wall-clock time,
// daily or on a fixed weekday. Times are evaluated in the schedule timezone,
// never host local time.
type Entry struct {
	Type    report.Type
	Hour    int
	Minute  int
	Weekday *time.Weekday // nil means every day
}

// String renders the entry for logs
func (e Entry) String() string {
	day := "daily"
	if e.Weekday != nil {
		day = e.Weekday.String()
	}
	return fmt.Sprintf("%s %02d:%02d (%s)", e.Type, e.Hour, e.Minute, day)
}

// nextAfter returns the first trigger instant strictly after t in loc
func (e Entry) nextAfter(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), e.Hour, e.Minute, 0, 0, loc)

	for !candidate.After(t) || (e.Weekday != nil && candidate.Weekday() != *e.Weekday) {
		candidate = candidate.AddDate(0, 0, 1)
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), e.Hour, e.Minute, 0, 0, loc)
	}
	return candidate
}

// dueBetween returns the trigger instant in (from, to] if there is one.
// A window that skips past a trigger entirely (process asleep, clock jump)
// still fires it once; triggers before Start's window never fire.
func (e Entry) dueBetween(from, to time.Time, loc *time.Location) (time.Time, bool) {
	next := e.nextAfter(from, loc)
	if !next.After(to) {
		return next, true
	}
	return time.Time{}, false
}

// parseClock parses "HH:MM"
func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "clock time %q", s)
	}
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "clock time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidInput, "clock time %q out of range", s)
	}
	return hour, minute, nil
}

// parseWeekday maps an English weekday name
func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, nil
		}
	}
	return 0, errors.Wrapf(errors.ErrInvalidInput, "weekday %q", s)
}

// BuildEntries derives the schedule from config: premarket and postmarket
// daily, plus the optional weekly review.
func BuildEntries(cfg config.SchedulerConfig) ([]Entry, error) {
	var entries []Entry

	preH, preM, err := parseClock(cfg.PremarketTime)
	if err != nil {
		return nil, errors.Wrap(err, "premarket time")
	}
	entries = append(entries, Entry{Type: report.TypePremarket, Hour: preH, Minute: preM})

	postH, postM, err := parseClock(cfg.PostmarketTime)
	if err != nil {
		return nil, errors.Wrap(err, "postmarket time")
	}
	entries = append(entries, Entry{Type: report.TypePostmarket, Hour: postH, Minute: postM})

	if cfg.WeeklyEnabled {
		weekH, weekM, err := parseClock(cfg.WeeklyTime)
		if err != nil {
			return nil, errors.Wrap(err, "weekly time")
		}
		day, err := parseWeekday(cfg.WeeklyDay)
		if err != nil {
			return nil, errors.Wrap(err, "weekly day")
		}
		entries = append(entries, Entry{Type: report.TypeWeekly, Hour: weekH, Minute: weekM, Weekday: &day})
	}

	return entries, nil
}
