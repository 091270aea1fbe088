// Package session owns the browser sessions of concurrently running test
// workers. Each worker gets at most one live session at a time.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
)

// Registry maps workers to their sessions, creating them on first use.
type Registry struct {
	factory Factory
	kind    browser.Kind
	kindErr error
	opts    browser.Options
	logger  logger.Logger
	metrics *metrics.Collector

	store *Store
	group singleflight.Group
}

// NewRegistry reads the browser settings from cfg once. An unsupported
// browser name is reported by Get, when a session is first requested.
func NewRegistry(cfg *config.Config, factory Factory, log logger.Logger, m *metrics.Collector) (*Registry, error) {
	name, err := cfg.Browser()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		factory: factory,
		logger:  log,
		metrics: m,
		store:   NewStore(),
	}

	r.kind, r.kindErr = browser.ParseKind(name)
	if r.kindErr != nil {
		return r, nil
	}

	r.opts, err = OptionsFor(r.kind, cfg)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Kind returns the configured browser engine.
func (r *Registry) Kind() browser.Kind { return r.kind }

// Get returns the session owned by worker, creating it if needed.
// Concurrent calls for the same worker create a single driver.
func (r *Registry) Get(ctx context.Context, worker WorkerID) (*Session, error) {
	if s, err := r.store.Get(worker); err == nil {
		return s, nil
	}
	if r.kindErr != nil {
		return nil, r.kindErr
	}

	v, err, _ := r.group.Do(string(worker), func() (interface{}, error) {
		if s, err := r.store.Get(worker); err == nil {
			return s, nil
		}
		return r.create(ctx, worker)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) create(ctx context.Context, worker WorkerID) (*Session, error) {
	opts := r.opts
	opts.Args = append([]string(nil), r.opts.Args...)

	drv, err := r.factory.NewDriver(ctx, r.kind, opts)
	if err != nil {
		r.metrics.RecordError("session_create", err)
		return nil, fmt.Errorf("failed to create %s session for worker %s: %w", r.kind, worker, err)
	}

	s := &Session{
		ID:        uuid.New(),
		Worker:    worker,
		Kind:      r.kind,
		Driver:    drv,
		Options:   opts,
		CreatedAt: time.Now(),
	}
	r.store.Set(s)
	r.metrics.SessionCreated(r.kind.String())

	r.logger.Info(ctx, "session created", map[string]interface{}{
		"session_id": s.ID.String(),
		"worker":     string(worker),
		"browser":    r.kind.String(),
		"headless":   opts.Headless,
	})
	return s, nil
}

// Destroy quits the worker's browser and forgets the session. It is a
// no-op for workers without a session. Quit failures are logged only.
func (r *Registry) Destroy(ctx context.Context, worker WorkerID) {
	s, ok := r.store.Take(worker)
	if !ok {
		return
	}
	if err := r.quit(ctx, s); err != nil {
		r.logger.Warn(ctx, "failed to quit browser", map[string]interface{}{
			"session_id": s.ID.String(),
			"worker":     string(worker),
			"error":      err.Error(),
		})
	}
}

// DestroyAll quits every remaining session and returns the combined
// quit failures.
func (r *Registry) DestroyAll(ctx context.Context) error {
	var result *multierror.Error
	for _, s := range r.store.TakeAll() {
		if err := r.quit(ctx, s); err != nil {
			result = multierror.Append(result, fmt.Errorf("worker %s: %w", s.Worker, err))
		}
	}
	return result.ErrorOrNil()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return r.store.Len() }

func (r *Registry) quit(ctx context.Context, s *Session) error {
	err := s.Driver.Quit(ctx)
	r.metrics.SessionDestroyed(s.Kind.String())
	if err != nil {
		r.metrics.RecordError("session_quit", err)
		return err
	}
	r.logger.Info(ctx, "session destroyed", map[string]interface{}{
		"session_id": s.ID.String(),
		"worker":     string(s.Worker),
	})
	return nil
}
