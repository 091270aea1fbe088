// Package report collects the outcome of every test in a run into one shared
// aggregate and renders it as a single HTML artifact.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

const (
	// FilePrefix and FileSuffix bound every report artifact name.
	FilePrefix = "TestReport_"
	FileSuffix = ".html"

	fileTimeLayout    = "2006-01-02_15-04-05"
	displayTimeLayout = "Jan 02, 2006 15:04:05"
)

// Metadata describes the run the report was produced for.
type Metadata struct {
	Title       string
	ReportName  string
	Application string
	Environment string
	Browser     string
	OS          string
	User        string
}

// MetadataFrom reads run metadata from cfg and the host.
func MetadataFrom(cfg *config.Config) Metadata {
	return Metadata{
		Title:       cfg.ReportTitle(),
		ReportName:  cfg.ReportName(),
		Application: cfg.AppName(),
		Environment: cfg.Environment(),
		Browser:     cfg.GetOr(config.KeyBrowser, "unknown"),
		OS:          runtime.GOOS,
		User:        currentUser(),
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}

// Aggregate is the single report shared by every worker of a run.
type Aggregate struct {
	Metadata
	Started time.Time
	Path    string

	tests []*TestContext
}

// Manager owns the aggregate and the binding of workers to their current
// test. It is safe for concurrent use.
type Manager struct {
	folder string
	meta   Metadata
	logger logger.Logger
	now    func() time.Time
	tmpl   *template.Template

	mu    sync.Mutex
	store *storage.LocalStore
	agg   *Aggregate
	bound map[session.WorkerID]*TestContext
}

// NewManager creates a manager writing reports into folder.
func NewManager(folder string, meta Metadata, log logger.Logger) (*Manager, error) {
	if folder == "" {
		return nil, fmt.Errorf("%w: %s is empty", config.ErrConfig, config.KeyReportFolder)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	tmpl, err := template.New("report.html.tmpl").Funcs(template.FuncMap{
		"stamp": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(displayTimeLayout)
		},
		"clock":    func(t time.Time) string { return t.Format("15:04:05") },
		"duration": duration,
	}).ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Manager{
		folder: folder,
		meta:   meta,
		logger: log,
		now:    time.Now,
		tmpl:   tmpl,
		bound:  map[session.WorkerID]*TestContext{},
	}, nil
}

// NewManagerFromConfig builds a manager from the report keys in cfg.
func NewManagerFromConfig(cfg *config.Config, log logger.Logger) (*Manager, error) {
	folder, err := cfg.ReportFolder()
	if err != nil {
		return nil, err
	}
	return NewManager(folder, MetadataFrom(cfg), log)
}

// Init creates the aggregate and the report directory. Only the first call
// has an effect.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agg != nil {
		return nil
	}

	store, err := storage.NewLocalStore(m.folder)
	if err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	started := m.now()
	name := FilePrefix + started.Format(fileTimeLayout) + FileSuffix
	m.store = store
	m.agg = &Aggregate{
		Metadata: m.meta,
		Started:  started,
		Path:     filepath.Join(store.BaseDir(), name),
	}
	m.logger.Info(context.Background(), "report initialized", map[string]interface{}{"path": m.agg.Path})
	return nil
}

// Initialized reports whether Init has run.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agg != nil
}

// ArtifactPath returns the report file path, or "" before Init.
func (m *Manager) ArtifactPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agg == nil {
		return ""
	}
	return m.agg.Path
}

// CreateTest appends a new test to the aggregate and binds it to worker.
func (m *Manager) CreateTest(worker session.WorkerID, name, description string) (*TestContext, error) {
	return m.create(worker, name, description, 1)
}

// CreateRetry is CreateTest for a repeated attempt of name. Earlier
// attempts of the same test stay in the report but drop out of the counts.
func (m *Manager) CreateRetry(worker session.WorkerID, name, description string, attempt int) (*TestContext, error) {
	if attempt < 2 {
		return nil, &UsageError{Op: "create retry", Worker: worker, Reason: fmt.Sprintf("attempt %d is not a retry", attempt)}
	}
	return m.create(worker, name, description, attempt)
}

func (m *Manager) create(worker session.WorkerID, name, description string, attempt int) (*TestContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agg == nil {
		return nil, &UsageError{Op: "create test", Worker: worker, Reason: "report not initialized"}
	}
	if cur, ok := m.bound[worker]; ok {
		return nil, &UsageError{Op: "create test", Worker: worker, Reason: fmt.Sprintf("test %q is still bound", cur.DisplayName())}
	}

	if attempt > 1 {
		for _, prev := range m.agg.tests {
			if prev.Name == name && prev.Attempt < attempt {
				prev.markRetried()
			}
		}
	}

	t := &TestContext{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Worker:      worker,
		Attempt:     attempt,
		started:     m.now(),
	}
	m.agg.tests = append(m.agg.tests, t)
	m.bound[worker] = t
	return t, nil
}

// Current returns the test bound to worker.
func (m *Manager) Current(worker session.WorkerID) (*TestContext, error) {
	return m.current("current test", worker)
}

func (m *Manager) current(op string, worker session.WorkerID) (*TestContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.bound[worker]
	if !ok {
		return nil, &UsageError{Op: op, Worker: worker, Reason: "no test bound"}
	}
	return t, nil
}

func (m *Manager) log(worker session.WorkerID, status Status, msg string) error {
	t, err := m.current("log "+status.String(), worker)
	if err != nil {
		return err
	}
	t.log(m.now(), status, msg)
	return nil
}

func (m *Manager) LogInfo(worker session.WorkerID, msg string) error {
	return m.log(worker, StatusInfo, msg)
}

func (m *Manager) LogPass(worker session.WorkerID, msg string) error {
	return m.log(worker, StatusPass, msg)
}

func (m *Manager) LogFail(worker session.WorkerID, msg string) error {
	return m.log(worker, StatusFail, msg)
}

func (m *Manager) LogSkip(worker session.WorkerID, msg string) error {
	return m.log(worker, StatusSkip, msg)
}

func (m *Manager) LogWarning(worker session.WorkerID, msg string) error {
	return m.log(worker, StatusWarning, msg)
}

// AddScreenshot attaches the image at path to the worker's test. A file
// that cannot be read is recorded as a warning entry.
func (m *Manager) AddScreenshot(worker session.WorkerID, path string) error {
	t, err := m.current("add screenshot", worker)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		t.log(m.now(), StatusWarning, "Failed to attach screenshot: "+err.Error())
		m.logger.Warn(context.Background(), "failed to attach screenshot", map[string]interface{}{
			"worker": string(worker),
			"path":   path,
			"error":  err.Error(),
		})
		return nil
	}
	t.attach(path)
	return nil
}

// RemoveTest unbinds the worker's test. The test stays in the report.
func (m *Manager) RemoveTest(worker session.WorkerID) {
	m.mu.Lock()
	t, ok := m.bound[worker]
	delete(m.bound, worker)
	m.mu.Unlock()
	if ok {
		t.finish(m.now())
	}
}

// Tests returns the tests in creation order.
func (m *Manager) Tests() []*TestContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agg == nil {
		return nil
	}
	return append([]*TestContext(nil), m.agg.tests...)
}

// Summary counts tests by final status. Retried attempts are left out so
// each test counts once.
func (m *Manager) Summary() map[Status]int {
	counts := map[Status]int{}
	for _, t := range m.Tests() {
		if !t.Retried() {
			counts[t.Status()]++
		}
	}
	return counts
}

// Flush renders the aggregate to its artifact path. It is a no-op before
// Init and may be called any number of times.
func (m *Manager) Flush(ctx context.Context) error {
	m.mu.Lock()
	agg := m.agg
	store := m.store
	var tests []*TestContext
	if agg != nil {
		tests = append(tests, agg.tests...)
	}
	m.mu.Unlock()

	if agg == nil {
		return nil
	}

	view := newReportView(agg, tests, m.now())
	var buf bytes.Buffer
	if err := m.tmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := store.Put(ctx, filepath.Base(agg.Path), &buf); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	m.logger.Info(ctx, "report flushed", map[string]interface{}{
		"path":  agg.Path,
		"tests": len(tests),
	})
	return nil
}

func duration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
