package agents

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"oracle/internal/domain/report"
)

// Context is the aggregated state of one pipeline run: every agent's terminal
// result keyed by agent name. It is built incrementally by the pipeline's
// collector goroutine and is read-only once handed to the synthesis step.
// One Context exists per run and is discarded when the run's record persists.
type Context struct {
	RunID      uuid.UUID
	ReportType report.Type
	Date       string
	StartedAt  time.Time

	results map[string]Result
	sealed  bool
}

// NewContext creates the context for a single run
func NewContext(runID uuid.UUID, typ report.Type, date string) *Context {
	return &Context{
		RunID:      runID,
		ReportType: typ,
		Date:       date,
		StartedAt:  time.Now().UTC(),
		results:    make(map[string]Result),
	}
}

// Put records an agent's terminal result. Panics if called after Seal:
// mutation after the synthesis handoff is a programming error.
func (c *Context) Put(res Result) {
	if c.sealed {
		panic("agents: context mutated after seal")
	}
	c.results[res.Agent] = res
}

// Seal marks the context read-only before the synthesis handoff
func (c *Context) Seal() {
	c.sealed = true
}

// Result returns the terminal result for an agent
func (c *Context) Result(name string) (Result, bool) {
	res, ok := c.results[name]
	return res, ok
}

// Results returns all results keyed by agent name. The returned map is a copy.
func (c *Context) Results() map[string]Result {
	out := make(map[string]Result, len(c.results))
	for k, v := range c.results {
		out[k] = v
	}
	return out
}

// Succeeded returns the number of agents with a Success outcome
func (c *Context) Succeeded() int {
	n := 0
	for _, res := range c.results {
		if res.Outcome == OutcomeSuccess {
			n++
		}
	}
	return n
}

// DataQualityIssues summarizes every Degraded and Failed result so the final
// report can disclose data quality. No failure is silently dropped.
func (c *Context) DataQualityIssues() []string {
	var issues []string
	for _, name := range c.sortedNames() {
		res := c.results[name]
		switch res.Outcome {
		case OutcomeFailed:
			issues = append(issues, fmt.Sprintf("%s: failed (%s)", name, res.ErrText))
		case OutcomeDegraded:
			for _, caveat := range res.Caveats {
				issues = append(issues, fmt.Sprintf("%s: %s", name, caveat))
			}
		}
	}
	return issues
}

// Sources returns the deduplicated source attributions of all findings
func (c *Context) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range c.sortedNames() {
		for _, src := range c.results[name].Sources {
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}

func (c *Context) sortedNames() []string {
	names := make([]string, 0, len(c.results))
	for name := range c.results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
