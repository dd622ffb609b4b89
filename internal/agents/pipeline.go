package agents

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"oracle/internal/adapters/config"
	"oracle/internal/domain/report"
	"oracle/internal/metrics"
	"oracle/internal/trace"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

// Synthesizer turns the aggregated agent results of one run into the final
// structured payload. Defined here, on the consumer side, so synthesis
// implementations depend on this package and not the other way around.
type Synthesizer interface {
	Synthesize(ctx context.Context, runCtx *Context) (*report.ResearchPayload, error)
}

// Pipeline executes one report generation run: all agents of the report
// type's graph, concurrently where the DAG allows, then exactly one
// synthesis call over whatever results came back.
type Pipeline struct {
	registry *Registry
	synth    Synthesizer
	store    report.Repository
	recorder trace.Recorder
	tracker  errors.Tracker
	cfg      config.PipelineConfig
	log      *logger.Logger
}

// NewPipeline assembles the run engine
func NewPipeline(
	registry *Registry,
	synth Synthesizer,
	store report.Repository,
	recorder trace.Recorder,
	tracker errors.Tracker,
	cfg config.PipelineConfig,
) *Pipeline {
	return &Pipeline{
		registry: registry,
		synth:    synth,
		store:    store,
		recorder: recorder,
		tracker:  tracker,
		cfg:      cfg,
		log:      logger.Get().With("component", "pipeline"),
	}
}

// Run generates the report of the given type for the given date.
//
// Unless force is set, an existing complete record for (typ, date) short-
// circuits the run and is returned as-is. Agent failures never abort the run:
// synthesis always receives the aggregated context, even when every agent
// failed. A synthesis failure is terminal and is recorded in the store.
func (p *Pipeline) Run(ctx context.Context, typ report.Type, date string, force bool) (*report.Record, error) {
	graph, err := p.registry.Graph(typ)
	if err != nil {
		return nil, err
	}

	if !force {
		existing, err := p.store.Get(ctx, typ, date)
		if err == nil && existing.Complete() {
			p.log.Infow("Report already exists, skipping run",
				"report_type", typ, "report_date", date, "attempt", existing.Attempt)
			metrics.PipelineRuns.WithLabelValues(string(typ), "skipped_existing").Inc()
			return existing, nil
		}
		if err != nil && !errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Wrap(err, "idempotency pre-check")
		}
	}

	runID := uuid.New()
	runCtx := NewContext(runID, typ, date)
	log := p.log.With("run_id", runID.String(), "report_type", string(typ), "report_date", date)

	log.Infow("Pipeline run started", "agents", graph.Size(), "force", force)
	p.recorder.Record(ctx, trace.Event{
		RunID:      runID,
		ReportType: string(typ),
		ReportDate: date,
		Phase:      trace.PhaseStart,
		At:         runCtx.StartedAt,
	})

	agentCtx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	p.executeAgents(agentCtx, graph, runCtx)
	runCtx.Seal()

	log.Infow("Agent phase finished",
		"succeeded", runCtx.Succeeded(), "total", graph.Size(),
		"data_quality_issues", len(runCtx.DataQualityIssues()))

	// Synthesis gets its own timeout detached from the run context: a pipeline
	// deadline spent entirely on agents must still yield one synthesis attempt,
	// and a scheduler shutdown must not cancel it mid-call.
	record, err := p.synthesize(context.WithoutCancel(ctx), runCtx, force)

	finishedAt := time.Now().UTC()
	outcome := "complete"
	errText := ""
	if err != nil {
		outcome = "failed"
		errText = err.Error()
	}
	p.recorder.Record(ctx, trace.Event{
		RunID:      runID,
		ReportType: string(typ),
		ReportDate: date,
		Phase:      trace.PhaseFinish,
		Outcome:    outcome,
		Error:      errText,
		At:         finishedAt,
		DurationMs: finishedAt.Sub(runCtx.StartedAt).Milliseconds(),
	})
	metrics.PipelineRuns.WithLabelValues(string(typ), outcome).Inc()
	metrics.PipelineDuration.WithLabelValues(string(typ)).Observe(finishedAt.Sub(runCtx.StartedAt).Seconds())

	if err != nil {
		log.Errorw("Pipeline run failed", "error", err)
		_ = p.tracker.CaptureError(ctx, err, map[string]string{
			"run_id":      runID.String(),
			"report_type": string(typ),
			"report_date": date,
		})
		return record, err
	}

	log.Infow("Pipeline run complete", "attempt", record.Attempt, "duration", finishedAt.Sub(runCtx.StartedAt))
	return record, nil
}

// executeAgents runs the whole graph: an agent launches as soon as its direct
// dependencies are terminal, bounded by the concurrency semaphore. Returns
// once every agent has a terminal result in runCtx.
func (p *Pipeline) executeAgents(ctx context.Context, graph *Graph, runCtx *Context) {
	sem := semaphore.NewWeighted(int64(p.cfg.MaxConcurrentAgents))
	results := make(chan Result)

	finished := make(map[string]Result, graph.Size())
	inFlight := make(map[string]bool)

	for len(finished) < graph.Size() {
		if ctx.Err() == nil {
			for _, name := range graph.Ready(finished, inFlight) {
				inFlight[name] = true
				deps := depResults(graph.Agent(name).Spec(), finished)
				go p.runAgent(ctx, sem, graph.Agent(name), deps, runCtx, results)
			}
		}

		if len(inFlight) > 0 {
			res := <-results
			delete(inFlight, res.Agent)
			finished[res.Agent] = res
			runCtx.Put(res)
			continue
		}

		if ctx.Err() != nil {
			// Deadline hit with agents still unlaunched: mark them failed so
			// the context is complete and synthesis can disclose them.
			for _, a := range graph.Agents() {
				name := a.Spec().Name
				if _, done := finished[name]; done {
					continue
				}
				now := time.Now().UTC()
				res := Result{
					Agent:      name,
					Outcome:    OutcomeFailed,
					Err:        errors.Wrapf(errors.ErrTimeout, "pipeline deadline before agent %s started", name),
					ErrText:    "pipeline deadline exceeded before start",
					StartedAt:  now,
					FinishedAt: now,
				}
				finished[name] = res
				runCtx.Put(res)
				p.recordAgentFinish(ctx, runCtx, res)
			}
			return
		}
	}
}

// depResults snapshots the terminal results of an agent's direct dependencies
func depResults(spec Spec, finished map[string]Result) map[string]Result {
	deps := make(map[string]Result, len(spec.DependsOn))
	for _, dep := range spec.DependsOn {
		deps[dep] = finished[dep]
	}
	return deps
}

// runAgent executes one agent with its per-attempt timeout and retry budget,
// and always delivers exactly one terminal Result on the channel.
func (p *Pipeline) runAgent(ctx context.Context, sem *semaphore.Weighted, agent Agent, deps map[string]Result, runCtx *Context, out chan<- Result) {
	spec := agent.Spec()

	if err := sem.Acquire(ctx, 1); err != nil {
		now := time.Now().UTC()
		res := Result{
			Agent:      spec.Name,
			Outcome:    OutcomeFailed,
			Err:        errors.Wrapf(errors.ErrTimeout, "pipeline deadline before agent %s started", spec.Name),
			ErrText:    "pipeline deadline exceeded before start",
			StartedAt:  now,
			FinishedAt: now,
		}
		p.recordAgentFinish(ctx, runCtx, res)
		out <- res
		return
	}
	defer sem.Release(1)

	startedAt := time.Now().UTC()
	p.recorder.Record(ctx, trace.Event{
		RunID:      runCtx.RunID,
		ReportType: string(runCtx.ReportType),
		ReportDate: runCtx.Date,
		Agent:      spec.Name,
		Phase:      trace.PhaseStart,
		At:         startedAt,
	})

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = p.cfg.AgentTimeout
	}
	retries := spec.Retries
	if retries < 0 {
		retries = p.cfg.AgentRetries
	}

	var finding *Finding
	var err error
	attempts := 0

	// A started attempt is never preempted by run cancellation: it completes
	// or hits its own timeout. Cancellation takes effect between attempts and
	// at launch boundaries only.
	attemptBase := context.WithoutCancel(ctx)
	for attempt := 0; attempt <= retries; attempt++ {
		attempts++
		attemptCtx, cancel := context.WithTimeout(attemptBase, timeout)
		finding, err = p.invoke(attemptCtx, agent, deps)
		cancel()

		if err == nil {
			break
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrapf(errors.ErrTimeout, "agent %s attempt %d timed out after %s", spec.Name, attempts, timeout)
		}
		if ctx.Err() != nil || attempt == retries || !errors.IsRetryable(err) {
			break
		}

		metrics.AgentRetries.WithLabelValues(spec.Name).Inc()
		delay := p.backoff(attempt)
		p.log.Warnw("Agent attempt failed, retrying",
			"agent", spec.Name, "attempt", attempts, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = errors.Wrapf(errors.ErrTimeout, "agent %s canceled during retry backoff", spec.Name)
			attempt = retries
		}
	}

	res := Result{
		Agent:      spec.Name,
		Attempts:   attempts,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	switch {
	case err != nil:
		res.Outcome = OutcomeFailed
		res.Err = err
		res.ErrText = err.Error()
	case len(finding.Caveats) > 0:
		res.Outcome = OutcomeDegraded
		res.Data = finding.Data
		res.Caveats = finding.Caveats
		res.Sources = finding.Sources
	default:
		res.Outcome = OutcomeSuccess
		res.Data = finding.Data
		res.Sources = finding.Sources
	}

	p.recordAgentFinish(ctx, runCtx, res)
	out <- res
}

// invoke calls the agent, converting a panic into an error so one bad agent
// cannot take down the run
func (p *Pipeline) invoke(ctx context.Context, agent Agent, deps map[string]Result) (finding *Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("Agent panicked",
				"agent", agent.Spec().Name, "panic", r, "stack", string(debug.Stack()))
			finding = nil
			err = errors.Newf("agent %s panicked: %v", agent.Spec().Name, r)
		}
	}()

	finding, err = agent.Analyze(ctx, deps)
	if err != nil {
		return nil, err
	}
	if finding == nil {
		return nil, errors.Newf("agent %s returned no finding and no error", agent.Spec().Name)
	}
	return finding, nil
}

func (p *Pipeline) recordAgentFinish(ctx context.Context, runCtx *Context, res Result) {
	p.recorder.Record(ctx, trace.Event{
		RunID:      runCtx.RunID,
		ReportType: string(runCtx.ReportType),
		ReportDate: runCtx.Date,
		Agent:      res.Agent,
		Phase:      trace.PhaseFinish,
		Outcome:    string(res.Outcome),
		Error:      res.ErrText,
		Attempts:   res.Attempts,
		At:         res.FinishedAt,
		DurationMs: res.FinishedAt.Sub(res.StartedAt).Milliseconds(),
	})
	metrics.AgentExecutions.WithLabelValues(res.Agent, string(res.Outcome)).Inc()
	metrics.AgentDuration.WithLabelValues(res.Agent).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// backoff returns the exponential retry delay for the given zero-based attempt
func (p *Pipeline) backoff(attempt int) time.Duration {
	delay := p.cfg.RetryBaseDelay << uint(attempt)
	if delay > p.cfg.RetryMaxDelay || delay <= 0 {
		delay = p.cfg.RetryMaxDelay
	}
	return delay
}

// synthesize runs exactly one synthesis call over the sealed context and
// persists the outcome, success or failure
func (p *Pipeline) synthesize(ctx context.Context, runCtx *Context, force bool) (*report.Record, error) {
	synthCtx, cancel := context.WithTimeout(ctx, p.cfg.SynthesisTimeout)
	defer cancel()

	typ := string(runCtx.ReportType)
	start := time.Now()

	payload, err := p.synth.Synthesize(synthCtx, runCtx)
	metrics.SynthesisDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errors.ErrSynthesisTimeout):
			err = errors.Wrapf(errors.ErrSynthesisTimeout, "synthesis for %s %s", typ, runCtx.Date)
			metrics.SynthesisCalls.WithLabelValues(typ, "timeout").Inc()
		case errors.Is(err, errors.ErrSchemaInvalid):
			metrics.SynthesisCalls.WithLabelValues(typ, "schema_invalid").Inc()
		default:
			metrics.SynthesisCalls.WithLabelValues(typ, "error").Inc()
		}

		rec, putErr := p.store.PutFailed(ctx, runCtx.ReportType, runCtx.Date, err.Error())
		if putErr != nil {
			p.log.Errorw("Failed to record failed run", "error", putErr)
			return nil, errors.Wrapf(err, "run failed and failure record not persisted: %v", putErr)
		}
		metrics.StoreWrites.WithLabelValues(typ, "failed_recorded").Inc()
		return rec, err
	}
	metrics.SynthesisCalls.WithLabelValues(typ, "success").Inc()

	// The pipeline, not the model, owns the data quality disclosure and the
	// source attribution: they come from observed agent outcomes.
	payload.DataQualityIssues = runCtx.DataQualityIssues()
	payload.Sources = mergeSources(payload.Sources, runCtx.Sources())

	rec, err := p.store.Put(ctx, runCtx.ReportType, runCtx.Date, *payload, force)
	if err != nil {
		return nil, errors.Wrap(err, "persist report")
	}
	switch {
	case rec.Attempt > 1:
		metrics.StoreWrites.WithLabelValues(typ, "superseded").Inc()
	default:
		metrics.StoreWrites.WithLabelValues(typ, "created").Inc()
	}
	return rec, nil
}

func mergeSources(synthesized, observed []string) []string {
	seen := make(map[string]struct{}, len(synthesized)+len(observed))
	out := make([]string, 0, len(synthesized)+len(observed))
	for _, src := range append(observed, synthesized...) {
		if src == "" {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}
