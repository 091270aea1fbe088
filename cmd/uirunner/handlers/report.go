package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

// ReportHandler serves report artifacts from a store.
type ReportHandler struct {
	store  storage.Store
	logger logger.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(store storage.Store, log logger.Logger) *ReportHandler {
	return &ReportHandler{
		store:  store,
		logger: log,
	}
}

// ReportEntry describes one report in a listing.
type ReportEntry struct {
	storage.Object
	URL string `json:"url"`
}

func isReport(path string) bool {
	name := path[strings.LastIndex(path, "/")+1:]
	return strings.HasPrefix(name, report.FilePrefix) && strings.HasSuffix(name, report.FileSuffix)
}

// List handles listing reports, newest first.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	objects, err := h.store.List(r.Context(), "")
	if err != nil {
		h.logger.Error(r.Context(), "failed to list reports", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	entries := []ReportEntry{}
	for _, o := range objects {
		if isReport(o.Path) {
			entries = append(entries, ReportEntry{Object: o, URL: "/reports/" + o.Path})
		}
	}

	total := len(entries)
	start, end := offset, offset+limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	respondJSON(w, http.StatusOK, NewPaginatedResponse(entries[start:end], total, limit, offset))
}

// Get handles downloading a single artifact.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	rc, err := h.store.Open(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileNotFound):
			respondError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, storage.ErrInvalidPath):
			respondError(w, http.StatusBadRequest, "invalid report name")
		default:
			h.logger.Error(r.Context(), "failed to open report", map[string]interface{}{
				"error": err.Error(),
				"name":  name,
			})
			respondError(w, http.StatusInternalServerError, "failed to open report")
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", storage.ContentType(name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "failed to stream report", map[string]interface{}{
			"error": err.Error(),
			"name":  name,
		})
	}
}
