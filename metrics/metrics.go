// Package metrics records harness activity as prometheus metrics. A nil
// *Collector is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
)

const Namespace = "uirunner"

// Values of the kind label on errors_total.
const (
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindNoElement   = "no_element"
	KindStale       = "stale"
	KindIntercepted = "intercepted"
	KindUnsupported = "unsupported"
	KindConfig      = "config"
	KindOther       = "other"
)

// Collector owns a registry and the metrics registered on it.
type Collector struct {
	registry *prometheus.Registry

	sessionsCreated   *prometheus.CounterVec
	sessionsDestroyed *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	clickFallbacks    *prometheus.CounterVec
	waitTimeouts      *prometheus.CounterVec
	testsTotal        *prometheus.CounterVec
	testDuration      prometheus.Histogram
	notifications     *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// New creates a Collector with its own registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_created_total",
			Help:      "Browser sessions created",
		}, []string{"browser"}),
		sessionsDestroyed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_destroyed_total",
			Help:      "Browser sessions destroyed",
		}, []string{"browser"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Browser sessions currently open",
		}),
		clickFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "click_fallbacks_total",
			Help:      "Script click fallbacks after an intercepted click",
		}, []string{"result"}),
		waitTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "wait_timeouts_total",
			Help:      "Wait conditions that were never satisfied",
		}, []string{"condition"}),
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "tests_total",
			Help:      "Tests finished by final status",
		}, []string{"status"}),
		testDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "test_duration_seconds",
			Help:      "Duration of tests",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notifications_total",
			Help:      "Report notifications by result",
		}, []string{"result"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Count of errors by operation and kind",
		}, []string{"op", "kind"}),
	}
}

// Registry exposes the underlying registry for serving or gathering.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) SessionCreated(browser string) {
	if c == nil {
		return
	}
	c.sessionsCreated.WithLabelValues(browser).Inc()
	c.sessionsActive.Inc()
}

func (c *Collector) SessionDestroyed(browser string) {
	if c == nil {
		return
	}
	c.sessionsDestroyed.WithLabelValues(browser).Inc()
	c.sessionsActive.Dec()
}

// ClickFallback records one script click fallback and whether it worked.
func (c *Collector) ClickFallback(ok bool) {
	if c == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	c.clickFallbacks.WithLabelValues(result).Inc()
}

func (c *Collector) WaitTimeout(condition string) {
	if c == nil {
		return
	}
	c.waitTimeouts.WithLabelValues(condition).Inc()
}

// TestFinished records a test's final status and how long it ran.
func (c *Collector) TestFinished(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.testsTotal.WithLabelValues(status).Inc()
	c.testDuration.Observe(d.Seconds())
}

func (c *Collector) Notification(result string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(result).Inc()
}

// ErrorKind maps err onto one of the fixed kind label values.
func ErrorKind(err error) string {
	var timeout interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &timeout) && timeout.Timeout():
		return KindTimeout
	case errors.Is(err, browser.ErrNoSuchElement), errors.Is(err, browser.ErrNoAlert):
		return KindNoElement
	case errors.Is(err, browser.ErrStaleElement):
		return KindStale
	case errors.Is(err, browser.ErrClickIntercepted):
		return KindIntercepted
	case errors.Is(err, browser.ErrUnsupportedBrowser):
		return KindUnsupported
	case errors.Is(err, config.ErrConfig):
		return KindConfig
	}
	return KindOther
}

// RecordError counts err under op, classified by ErrorKind.
func (c *Collector) RecordError(op string, err error) {
	if c == nil || err == nil {
		return
	}
	c.errorsTotal.WithLabelValues(op, ErrorKind(err)).Inc()
}

// WriteToTextfile writes the current values in the node exporter textfile format.
func (c *Collector) WriteToTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
