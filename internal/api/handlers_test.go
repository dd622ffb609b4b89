package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle/internal/adapters/config"
	"oracle/internal/adapters/errors/noop"
	"oracle/internal/agents"
	"oracle/internal/delivery"
	"oracle/internal/domain/report"
	"oracle/internal/repository/memory"
	"oracle/internal/runlock"
	"oracle/internal/scheduler"
	"oracle/internal/services/research"
	"oracle/internal/testsupport"
	"oracle/internal/trace"
)

// fixedAgent returns a canned finding for API-level tests
type fixedAgent struct {
	name string
}

func (a fixedAgent) Spec() agents.Spec {
	return agents.Spec{Name: a.name, Timeout: time.Second}
}

func (a fixedAgent) Analyze(ctx context.Context, deps map[string]agents.Result) (*agents.Finding, error) {
	return &agents.Finding{Data: "data from " + a.name, Sources: []string{a.name}}, nil
}

// fixedSynth produces a fresh valid payload for every run
type fixedSynth struct{}

func (fixedSynth) Synthesize(ctx context.Context, runCtx *agents.Context) (*report.ResearchPayload, error) {
	p := testsupport.ValidPayload("synthesized for " + runCtx.Date)
	return &p, nil
}

type testEnv struct {
	server *Server
	store  report.Repository
	lock   *runlock.Local
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewReportRepository()

	registry := agents.NewRegistry()
	agentList := []agents.Agent{fixedAgent{name: "macro_economist"}, fixedAgent{name: "flow_analyst"}}
	for _, typ := range []report.Type{report.TypePremarket, report.TypePostmarket, report.TypeWeekly} {
		require.NoError(t, registry.Register(typ, agentList))
	}

	pipeCfg := config.PipelineConfig{
		MaxConcurrentAgents: 2,
		Deadline:            5 * time.Second,
		AgentTimeout:        time.Second,
		AgentRetries:        0,
		RetryBaseDelay:      time.Millisecond,
		RetryMaxDelay:       time.Millisecond,
		SynthesisTimeout:    time.Second,
	}
	pipeline := agents.NewPipeline(registry, fixedSynth{}, store, trace.Nop{}, noop.New(), pipeCfg)

	lock := runlock.NewLocal()
	svc := research.NewService(pipeline, lock, time.Minute, delivery.NewFanout())

	sched, err := scheduler.New(config.SchedulerConfig{
		Timezone:       "America/New_York",
		PremarketTime:  "06:30",
		PostmarketTime: "16:30",
	}, svc)
	require.NoError(t, err)

	server := New(ServerConfig{
		Port:      0,
		Store:     store,
		Research:  svc,
		Scheduler: sched,
		Version:   "test",
	})

	return &testEnv{server: server, store: store, lock: lock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestGetReport_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/reports/premarket/2026-08-24", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReport_BadType(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/reports/quarterly/2026-08-24", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReport_BadDate(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/reports/premarket/yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateThenGet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decodeBody[report.Record](t, w)
	assert.Equal(t, report.TypePremarket, rec.Type)
	assert.Equal(t, report.StatusComplete, rec.Status)
	assert.Equal(t, 1, rec.Attempt)

	w = env.do(t, http.MethodGet, "/v1/reports/premarket/2026-08-24", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody[report.Record](t, w)
	assert.Equal(t, rec.ID, got.ID)
}

func TestGenerate_IdempotentWithoutForce(t *testing.T) {
	env := newTestEnv(t)

	first := decodeBody[report.Record](t, env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", nil))
	second := decodeBody[report.Record](t, env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", nil))

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.Attempt)
}

func TestGenerate_ForceCreatesNewAttempt(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", nil)
	w := env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", map[string]bool{"force": true})
	require.Equal(t, http.StatusOK, w.Code)
	rec := decodeBody[report.Record](t, w)
	assert.Equal(t, 2, rec.Attempt)

	// the superseded attempt stays readable
	w = env.do(t, http.MethodGet, "/v1/reports/premarket/2026-08-24?attempt=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	prior := decodeBody[report.Record](t, w)
	assert.Equal(t, 1, prior.Attempt)
}

func TestGenerate_ConflictWhileLocked(t *testing.T) {
	env := newTestEnv(t)

	held, err := env.lock.Acquire(context.Background(), "run:premarket", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	w := env.do(t, http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// other types are not blocked
	w = env.do(t, http.MethodPost, "/v1/reports/weekly/2026-08-24/generate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_BadBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/reports/premarket/2026-08-24/generate", bytes.NewBufferString("{not json"))
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports(t *testing.T) {
	env := newTestEnv(t)

	for _, date := range []string{"2026-08-20", "2026-08-21", "2026-08-22"} {
		w := env.do(t, http.MethodPost, "/v1/reports/postmarket/"+date+"/generate", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/v1/reports/postmarket?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decodeBody[[]report.Record](t, w)
	require.Len(t, records, 2)
	assert.Equal(t, "2026-08-22", records[0].Date)

	w = env.do(t, http.MethodGet, "/v1/reports/postmarket?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListReports_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/reports/weekly", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String())
}

func TestSchedulerEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/scheduler/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody[scheduler.Status](t, w)
	assert.Equal(t, scheduler.StateStopped, status.State)
	assert.Equal(t, "America/New_York", status.Timezone)

	w = env.do(t, http.MethodPost, "/v1/scheduler/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/scheduler/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/v1/scheduler/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/v1/scheduler/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
