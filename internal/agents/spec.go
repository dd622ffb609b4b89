package agents

import (
	"context"
	"time"
)

// Outcome tags an agent result
type Outcome string

const (
	// OutcomeSuccess means the agent produced a full finding
	OutcomeSuccess Outcome = "success"

	// OutcomeDegraded means the agent produced a finding despite missing or
	// failed upstream data, annotated with the reason
	OutcomeDegraded Outcome = "degraded"

	// OutcomeFailed means the agent exhausted its retry budget
	OutcomeFailed Outcome = "failed"
)

// Spec declares an agent's identity, dependencies and execution budget.
// Specs are configuration: loaded at startup and immutable afterwards.
type Spec struct {
	Name      string
	DependsOn []string
	Timeout   time.Duration
	Retries   int
}

// Finding is the structured output of one agent invocation. Non-empty Caveats
// mark the result Degraded: the agent ran, but notes missing upstream data or
// partially failed fetches.
type Finding struct {
	Data    interface{}
	Caveats []string
	Sources []string
}

// Result is the terminal record of one agent within a single pipeline run.
// It is owned by that run and never shared across runs.
type Result struct {
	Agent      string      `json:"agent"`
	Outcome    Outcome     `json:"outcome"`
	Data       interface{} `json:"data,omitempty"`
	Caveats    []string    `json:"caveats,omitempty"`
	Sources    []string    `json:"sources,omitempty"`
	Err        error       `json:"-"`
	ErrText    string      `json:"error,omitempty"`
	Attempts   int         `json:"attempts"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Terminal reports whether the result represents a finished agent.
// Every Result produced by the pipeline is terminal; the zero value is not.
func (r Result) Terminal() bool {
	return r.Outcome != ""
}

// Failed reports whether the agent failed outright
func (r Result) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// Agent is a named unit of work that calls one or more data providers and
// returns a structured finding or fails. Dependencies' results are passed in
// deps; a dependency that failed upstream is present with OutcomeFailed and no
// payload, and the agent is expected to degrade rather than fail.
type Agent interface {
	Spec() Spec
	Analyze(ctx context.Context, deps map[string]Result) (*Finding, error)
}
