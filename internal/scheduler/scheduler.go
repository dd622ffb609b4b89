package scheduler

import (
	"context"
	"sync"
	"time"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/internal/metrics"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Generator runs one report generation. Satisfied by the research service.
type Generator interface {
	Generate(ctx context.Context, typ report.Type, date string, force bool) (*report.Record, error)
}

// State of the scheduler
type State string

const (
	StateStopped State = "stopped"
	StateIdle    State = "idle"
	StateRunning State = "running"
)

const tickInterval = time.Second

// Scheduler fires report generation at configured wall-clock times.
//
// The loop evaluates triggers once per second against the schedule timezone.
// Each trigger fires at most once; a report type whose run lock is held is
// skipped and logged, never queued. Missed triggers from before Start are
// not replayed.
type Scheduler struct {
	entries   []Entry
	loc       *time.Location
	generator Generator

	// injectable clock for tests
	now func() time.Time

	mu       sync.Mutex
	state    State
	inFlight int
	running  map[report.Type]time.Time
	lastEval time.Time
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	log *logger.Logger
}

// New builds a scheduler from config. Fails on an invalid timezone or
// schedule so misconfiguration surfaces at startup.
func New(cfg config.SchedulerConfig, generator Generator) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "timezone %q: %v", cfg.Timezone, err)
	}

	entries, err := BuildEntries(cfg)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		entries:   entries,
		loc:       loc,
		generator: generator,
		now:       time.Now,
		state:     StateStopped,
		running:   make(map[report.Type]time.Time),
		log:       logger.Get().With("component", "scheduler"),
	}, nil
}

// Start launches the evaluation loop. Idempotent start is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateIdle
	s.lastEval = s.now()
	s.mu.Unlock()

	metrics.SchedulerState.Set(1)
	for _, e := range s.entries {
		s.log.Infow("Schedule entry active", "entry", e.String(), "next", e.nextAfter(s.now(), s.loc))
	}

	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// Stop halts trigger evaluation and waits for in-flight runs to return.
// Agents not yet started are no longer launched; a started agent call and
// any synthesis in flight finish on their own timeouts and still persist.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping scheduler...")
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	metrics.SchedulerState.Set(0)
	s.log.Info("Scheduler stopped")
	return nil
}

// Status is a point-in-time view of the scheduler. Running maps each report
// type with a run in flight to the time its trigger fired.
type Status struct {
	State    State                     `json:"state"`
	Timezone string                    `json:"timezone"`
	Running  map[report.Type]time.Time `json:"running,omitempty"`
	NextRuns map[report.Type]time.Time `json:"next_runs"`
	Entries  []string                  `json:"entries"`
}

// Status reports the current state, the in-flight runs and the next trigger
// per report type
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	state := s.state
	running := make(map[report.Type]time.Time, len(s.running))
	for typ, startedAt := range s.running {
		running[typ] = startedAt
	}
	s.mu.Unlock()

	now := s.now()
	next := make(map[report.Type]time.Time, len(s.entries))
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.String())
		t := e.nextAfter(now, s.loc)
		if existing, ok := next[e.Type]; !ok || t.Before(existing) {
			next[e.Type] = t
		}
	}

	return Status{
		State:    state,
		Timezone: s.loc.String(),
		Running:  running,
		NextRuns: next,
		Entries:  names,
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluate(ctx)
		}
	}
}

// evaluate fires every entry whose trigger fell inside the window since the
// previous evaluation
func (s *Scheduler) evaluate(ctx context.Context) {
	s.mu.Lock()
	from := s.lastEval
	to := s.now()
	s.lastEval = to
	s.mu.Unlock()

	for _, entry := range s.entries {
		trigger, due := entry.dueBetween(from, to, s.loc)
		if !due {
			continue
		}
		s.fire(ctx, entry, trigger)
	}
}

// fire launches one generation run for a trigger
func (s *Scheduler) fire(ctx context.Context, entry Entry, trigger time.Time) {
	date := report.DateOf(trigger.In(s.loc))
	log := s.log.With("report_type", entry.Type, "report_date", date)

	log.Infow("Schedule trigger fired", "trigger", trigger)

	s.mu.Lock()
	s.inFlight++
	s.state = StateRunning
	s.running[entry.Type] = s.now()
	s.mu.Unlock()
	metrics.SchedulerState.Set(2)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finishRun(entry.Type)
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("Scheduled run panicked", "panic", r)
			}
		}()

		start := time.Now()
		_, err := s.generator.Generate(ctx, entry.Type, date, false)
		switch {
		case err == nil:
			metrics.SchedulerTriggers.WithLabelValues(string(entry.Type), "run").Inc()
			log.Infow("Scheduled run finished", "duration", time.Since(start))
		case errors.Is(err, errors.ErrRunInProgress):
			metrics.SchedulerTriggers.WithLabelValues(string(entry.Type), "skip_locked").Inc()
			log.Warnw("Trigger skipped, run already in progress")
		default:
			metrics.SchedulerTriggers.WithLabelValues(string(entry.Type), "run").Inc()
			log.Errorw("Scheduled run failed", "error", err, "duration", time.Since(start))
		}
	}()
}

func (s *Scheduler) finishRun(typ report.Type) {
	s.mu.Lock()
	delete(s.running, typ)
	s.inFlight--
	if s.inFlight == 0 && s.state == StateRunning {
		s.state = StateIdle
		metrics.SchedulerState.Set(1)
	}
	s.mu.Unlock()
}
