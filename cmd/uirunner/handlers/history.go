package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
)

// HistoryHandler serves recorded runs and their results.
type HistoryHandler struct {
	store  history.Store
	logger logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(store history.Store, log logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: log,
	}
}

// ListRuns handles listing runs, newest first.
func (h *HistoryHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	respondJSON(w, http.StatusOK, NewPaginatedResponse(runs, len(runs), limit, offset))
}

// GetRun handles fetching a single run.
func (h *HistoryHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "run")
	if !ok {
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ListResults handles listing results, either of one run (run_id) or of
// one test across runs (test).
func (h *HistoryHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if name := q.Get("test"); name != "" {
		limit, _, err := parsePagination(r)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		results, err := h.store.ListByTest(r.Context(), name, limit)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to list results")
			return
		}
		respondJSON(w, http.StatusOK, NewPaginatedResponse(results, len(results), limit, 0))
		return
	}

	runID, err := uuid.Parse(q.Get("run_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "run_id or test is required; run_id must be a valid UUID")
		return
	}
	results, err := h.store.ListResults(r.Context(), runID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	respondJSON(w, http.StatusOK, NewPaginatedResponse(results, len(results), len(results), 0))
}
