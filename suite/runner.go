package suite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc/pool"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/interaction"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/notify"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

// Options carry the collaborators of a Runner. Registry and Reports are
// required; the rest are optional.
type Options struct {
	Registry   *session.Registry
	Reports    *report.Manager
	Dispatcher *notify.Dispatcher
	History    history.Store
	Artifacts  storage.Store
	Metrics    *metrics.Collector
	Logger     logger.Logger
}

// Outcome is the final result of one test after retries.
type Outcome struct {
	Name     string
	Status   report.Status
	Attempts int
	Err      error

	index int
}

// Summary describes a finished run.
type Summary struct {
	RunID      uuid.UUID
	ReportPath string
	Outcomes   []Outcome
	Counts     map[report.Status]int
	Notified   bool
	Started    time.Time
	Ended      time.Time
}

// Failed reports whether any test ended in failure.
func (s *Summary) Failed() bool { return s.Counts[report.StatusFail] > 0 }

// Runner executes tests with a bounded number of workers.
type Runner struct {
	cfg                 *config.Config
	appURL              string
	browserName         string
	workers             int
	retries             int
	screenshotOnFailure bool
	metricsTextfile     string
	pageSettings        interaction.Settings

	registry   *session.Registry
	reports    *report.Manager
	dispatcher *notify.Dispatcher
	history    history.Store
	artifacts  storage.Store
	metrics    *metrics.Collector
	logger     logger.Logger
}

// NewRunner reads the suite settings from cfg.
func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if opts.Registry == nil || opts.Reports == nil {
		return nil, fmt.Errorf("suite: registry and report manager are required")
	}

	appURL, err := cfg.AppURL()
	if err != nil {
		return nil, err
	}
	browserName, err := cfg.Browser()
	if err != nil {
		return nil, err
	}
	workers, err := cfg.Workers()
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	retries, err := cfg.RetryCount()
	if err != nil {
		return nil, err
	}
	if retries < 0 {
		retries = 0
	}
	shotOnFailure, err := cfg.ScreenshotOnFailure()
	if err != nil {
		return nil, err
	}
	settings, err := interaction.SettingsFrom(cfg)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	if shotOnFailure {
		shots, err := storage.NewLocalStore(cfg.ScreenshotFolder())
		if err != nil {
			return nil, fmt.Errorf("failed to create screenshot folder: %w", err)
		}
		settings.Screenshots = shots
	}
	settings.Metrics = opts.Metrics
	settings.Logger = log

	return &Runner{
		cfg:                 cfg,
		appURL:              appURL,
		browserName:         browserName,
		workers:             workers,
		retries:             retries,
		screenshotOnFailure: shotOnFailure,
		metricsTextfile:     cfg.GetOr(config.KeyMetricsTextfile, ""),
		pageSettings:        settings,
		registry:            opts.Registry,
		reports:             opts.Reports,
		dispatcher:          opts.Dispatcher,
		history:             opts.History,
		artifacts:           opts.Artifacts,
		metrics:             opts.Metrics,
		logger:              log,
	}, nil
}

// Run executes tests and then flushes, publishes and notifies. The returned
// error covers suite-level failures only; test failures are in the Summary.
func (r *Runner) Run(ctx context.Context, tests []Test) (*Summary, error) {
	summary := &Summary{RunID: uuid.New(), Started: time.Now()}

	if err := r.reports.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize report: %w", err)
	}
	summary.ReportPath = r.reports.ArtifactPath()

	r.logger.Info(ctx, "suite started", map[string]interface{}{
		"run_id":  summary.RunID.String(),
		"tests":   len(tests),
		"workers": r.workers,
		"browser": r.browserName,
	})

	tokens := make(chan session.WorkerID, r.workers)
	for i := 1; i <= r.workers; i++ {
		tokens <- session.WorkerID(fmt.Sprintf("worker-%d", i))
	}

	p := pool.NewWithResults[Outcome]().
		WithMaxGoroutines(r.workers).
		WithContext(ctx)
	for i, test := range tests {
		p.Go(func(ctx context.Context) (Outcome, error) {
			var worker session.WorkerID
			select {
			case worker = <-tokens:
			case <-ctx.Done():
				return Outcome{Name: test.Name, Status: report.StatusSkip, Err: ctx.Err(), index: i}, nil
			}
			defer func() { tokens <- worker }()

			out := r.runWithRetries(ctx, worker, test)
			out.index = i
			return out, nil
		})
	}
	outcomes, _ := p.Wait()

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].index < outcomes[b].index })
	summary.Outcomes = outcomes
	summary.Counts = map[report.Status]int{}
	for _, o := range outcomes {
		summary.Counts[o.Status]++
	}

	err := r.afterSuite(ctx, summary)
	summary.Ended = time.Now()
	return summary, err
}

func (r *Runner) runWithRetries(ctx context.Context, worker session.WorkerID, test Test) Outcome {
	var out Outcome
	for attempt := 0; attempt <= r.retries; attempt++ {
		out = r.runOne(ctx, worker, test, attempt)
		out.Attempts = attempt + 1
		if out.Status != report.StatusFail || ctx.Err() != nil {
			break
		}
		if attempt < r.retries {
			r.logger.Warn(ctx, "retrying failed test", map[string]interface{}{
				"test":    test.Name,
				"worker":  string(worker),
				"attempt": attempt + 1,
				"error":   fmt.Sprint(out.Err),
			})
		}
	}
	return out
}

// runOne performs one attempt of test on worker, from report creation to
// browser teardown.
func (r *Runner) runOne(ctx context.Context, worker session.WorkerID, test Test, attempt int) Outcome {
	started := time.Now()
	out := Outcome{Name: test.Name}

	var (
		tc  *report.TestContext
		err error
	)
	if attempt == 0 {
		tc, err = r.reports.CreateTest(worker, test.Name, test.Description)
	} else {
		tc, err = r.reports.CreateRetry(worker, test.Name, test.Description, attempt+1)
	}
	if err != nil {
		out.Status, out.Err = report.StatusFail, err
		return out
	}
	defer r.reports.RemoveTest(worker)

	log := r.logger.WithFields(map[string]interface{}{
		"test":    tc.DisplayName(),
		"worker":  string(worker),
		"attempt": attempt + 1,
	})

	var page *interaction.Page
	defer func() {
		r.noteReport(ctx, worker, r.reports.LogInfo(worker, "Closing browser"))
		r.registry.Destroy(context.WithoutCancel(ctx), worker)
	}()

	err = func() error {
		r.noteReport(ctx, worker, r.reports.LogInfo(worker, "Initializing WebDriver: "+r.browserName))
		sess, err := r.registry.Get(ctx, worker)
		if err != nil {
			return err
		}
		page = interaction.NewPage(sess.Driver, r.pageSettings)

		r.noteReport(ctx, worker, r.reports.LogInfo(worker, "Navigating to application URL: "+r.appURL))
		if err := page.Navigate(ctx, r.appURL); err != nil {
			return err
		}

		return runBody(ctx, test, &T{
			Worker:  worker,
			Session: sess,
			Page:    page,
			Config:  r.cfg,
			AppURL:  r.appURL,
			reports: r.reports,
		})
	}()

	switch {
	case err == nil:
		out.Status = report.StatusPass
		r.noteReport(ctx, worker, r.reports.LogPass(worker, "Test Passed Successfully"))
	case errors.Is(err, ErrSkip):
		out.Status, out.Err = report.StatusSkip, err
		r.noteReport(ctx, worker, r.reports.LogSkip(worker, "Test Skipped: "+skipReason(err)))
	default:
		out.Status, out.Err = report.StatusFail, err
		r.noteReport(ctx, worker, r.reports.LogFail(worker, "Test Failed: "+err.Error()))
		if r.screenshotOnFailure && page != nil {
			r.captureFailure(ctx, worker, page, test.Name)
		}
	}

	elapsed := time.Since(started)
	r.metrics.TestFinished(out.Status.String(), elapsed)
	log.Info(ctx, "test finished", map[string]interface{}{
		"status":   out.Status.String(),
		"duration": elapsed.String(),
	})
	return out
}

func (r *Runner) captureFailure(ctx context.Context, worker session.WorkerID, page *interaction.Page, testName string) {
	path, err := page.Screenshot(context.WithoutCancel(ctx), testName)
	if err != nil {
		r.noteReport(ctx, worker, r.reports.LogWarning(worker, "Failed to capture screenshot: "+err.Error()))
		return
	}
	r.noteReport(ctx, worker, r.reports.AddScreenshot(worker, path))
	r.noteReport(ctx, worker, r.reports.LogInfo(worker, "Screenshot captured at: "+path))
}

// noteReport logs a failed report write. The test outcome is unaffected.
func (r *Runner) noteReport(ctx context.Context, worker session.WorkerID, err error) {
	if err == nil {
		return
	}
	r.logger.Warn(ctx, "failed to write report entry", map[string]interface{}{
		"worker": string(worker),
		"error":  err.Error(),
	})
}

func runBody(ctx context.Context, test Test, t *T) (err error) {
	if test.Run == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
		}
	}()
	return test.Run(ctx, t)
}

// afterSuite flushes the report and hands it to the optional sinks. Every
// step runs; failures are combined.
func (r *Runner) afterSuite(ctx context.Context, summary *Summary) error {
	ctx = context.WithoutCancel(ctx)
	var result *multierror.Error

	if err := r.reports.Flush(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	if r.artifacts != nil {
		if err := r.publish(ctx, summary.ReportPath); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to publish artifacts: %w", err))
		}
	}

	if r.history != nil {
		run := &history.Run{
			ID:          summary.RunID,
			Application: r.cfg.AppName(),
			Environment: r.cfg.Environment(),
			Browser:     r.browserName,
			ReportPath:  summary.ReportPath,
			StartedAt:   summary.Started,
			EndedAt:     time.Now(),
		}
		if err := r.history.Record(ctx, run, history.ResultsFrom(run.ID, r.reports.Tests())); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to record history: %w", err))
		}
	}

	if r.dispatcher != nil {
		sent, err := r.dispatcher.NotifyLatest(ctx, filepath.Dir(summary.ReportPath))
		if err != nil {
			r.logger.Warn(ctx, "report notification failed", map[string]interface{}{"error": err.Error()})
		}
		summary.Notified = sent
	}

	if err := r.registry.DestroyAll(ctx); err != nil {
		r.logger.Warn(ctx, "failed to close remaining sessions", map[string]interface{}{"error": err.Error()})
	}

	if err := r.metrics.WriteToTextfile(r.metricsTextfile); err != nil {
		result = multierror.Append(result, err)
	}

	r.logger.Info(ctx, "suite finished", map[string]interface{}{
		"run_id":  summary.RunID.String(),
		"report":  summary.ReportPath,
		"passed":  summary.Counts[report.StatusPass],
		"failed":  summary.Counts[report.StatusFail],
		"skipped": summary.Counts[report.StatusSkip],
	})
	return result.ErrorOrNil()
}

// publish copies the report and every attached screenshot into the
// artifact store, keyed relative to their parent folders.
func (r *Runner) publish(ctx context.Context, reportPath string) error {
	var result *multierror.Error
	if err := storage.Publish(ctx, r.artifacts, filepath.Dir(filepath.Dir(reportPath)), reportPath); err != nil {
		result = multierror.Append(result, err)
	}

	var shots []string
	for _, t := range r.reports.Tests() {
		shots = append(shots, t.Screenshots()...)
	}
	if len(shots) > 0 && r.pageSettings.Screenshots != nil {
		root := filepath.Dir(r.pageSettings.Screenshots.BaseDir())
		if err := storage.Publish(ctx, r.artifacts, root, shots...); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
