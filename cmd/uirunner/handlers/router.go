package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

// RouterOptions select what the server exposes. A nil History or Metrics
// leaves the corresponding routes out.
type RouterOptions struct {
	Reports storage.Store
	History history.Store
	Metrics *prometheus.Registry
	Logger  logger.Logger
}

// NewRouter wires every route.
func NewRouter(opts RouterOptions) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)

	reportHandler := NewReportHandler(opts.Reports, opts.Logger)
	router.HandleFunc("/api/v1/reports", reportHandler.List).Methods(http.MethodGet)
	router.HandleFunc("/reports/{name:.+}", reportHandler.Get).Methods(http.MethodGet)

	if opts.History != nil {
		historyHandler := NewHistoryHandler(opts.History, opts.Logger)
		router.HandleFunc("/api/v1/runs", historyHandler.ListRuns).Methods(http.MethodGet)
		router.HandleFunc("/api/v1/runs/{id}", historyHandler.GetRun).Methods(http.MethodGet)
		router.HandleFunc("/api/v1/results", historyHandler.ListResults).Methods(http.MethodGet)
	}

	if opts.Metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
