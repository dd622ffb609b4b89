package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"oracle/internal/domain/report"
	"oracle/internal/scheduler"
	"oracle/internal/services/research"
	"oracle/pkg/errors"
	"oracle/pkg/logger"
)

var validTypes = map[report.Type]bool{
	report.TypePremarket:  true,
	report.TypePostmarket: true,
	report.TypeWeekly:     true,
}

type handlers struct {
	store     report.Repository
	research  *research.Service
	scheduler *scheduler.Scheduler
	version   string
	log       *logger.Logger
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// GET /v1/reports/{type}?limit=N
func (h *handlers) handleListReports(w http.ResponseWriter, r *http.Request) {
	typ, ok := parseType(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 100")
			return
		}
		limit = n
	}

	records, err := h.store.ListRecent(r.Context(), typ, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if records == nil {
		records = []report.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GET /v1/reports/{type}/{date}?attempt=N
func (h *handlers) handleGetReport(w http.ResponseWriter, r *http.Request) {
	typ, ok := parseType(w, r)
	if !ok {
		return
	}
	date, ok := parseDate(w, r)
	if !ok {
		return
	}

	var rec *report.Record
	var err error
	if raw := r.URL.Query().Get("attempt"); raw != "" {
		attempt, convErr := strconv.Atoi(raw)
		if convErr != nil || attempt < 1 {
			writeError(w, http.StatusBadRequest, "attempt must be a positive integer")
			return
		}
		rec, err = h.store.GetAttempt(r.Context(), typ, date, attempt)
	} else {
		rec, err = h.store.Get(r.Context(), typ, date)
	}

	if errors.Is(err, errors.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type generateRequest struct {
	Force bool `json:"force"`
}

// POST /v1/reports/{type}/{date}/generate
func (h *handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	typ, ok := parseType(w, r)
	if !ok {
		return
	}
	date, ok := parseDate(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	rec, err := h.research.Generate(r.Context(), typ, date, req.Force)
	switch {
	case errors.Is(err, errors.ErrRunInProgress):
		writeError(w, http.StatusConflict, "a run for this report type is already in progress")
		return
	case errors.Is(err, errors.ErrUnknownReportType):
		writeError(w, http.StatusBadRequest, "unknown report type")
		return
	case err != nil:
		// The failed record, when one was persisted, rides along with the error
		if rec != nil {
			writeJSON(w, http.StatusBadGateway, rec)
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *handlers) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *handlers) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	// The scheduler loop must outlive this request
	if err := h.scheduler.Start(context.Background()); err != nil {
		writeError(w, http.StatusConflict, "scheduler already started")
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *handlers) handleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.Stop(); err != nil {
		writeError(w, http.StatusConflict, "scheduler not started")
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.log.Errorw("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseType(w http.ResponseWriter, r *http.Request) (report.Type, bool) {
	typ := report.Type(r.PathValue("type"))
	if !validTypes[typ] {
		writeError(w, http.StatusBadRequest, "unknown report type")
		return "", false
	}
	return typ, true
}

func parseDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.PathValue("date")
	if _, err := time.Parse(report.DateFormat, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return "", false
	}
	return date, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
