package suite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/browsertest"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/notify"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/testutil"
)

type fakeBrowsers struct {
	mu      sync.Mutex
	drivers []*browsertest.Driver
	err     error
	active  int32
	peak    int32
}

func (f *fakeBrowsers) NewDriver(ctx context.Context, kind browser.Kind, opts browser.Options) (browser.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	d := browsertest.NewDriver(kind, opts)
	f.mu.Lock()
	f.drivers = append(f.drivers, d)
	f.mu.Unlock()

	n := atomic.AddInt32(&f.active, 1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	return &trackedDriver{Driver: d, f: f}, nil
}

func (f *fakeBrowsers) all() []*browsertest.Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*browsertest.Driver(nil), f.drivers...)
}

type trackedDriver struct {
	*browsertest.Driver
	f *fakeBrowsers
}

func (d *trackedDriver) Quit(ctx context.Context) error {
	atomic.AddInt32(&d.f.active, -1)
	return d.Driver.Quit(ctx)
}

type fixture struct {
	base     string
	cfg      *config.Config
	browsers *fakeBrowsers
	registry *session.Registry
	reports  *report.Manager
	log      *logger.TestLogger
	metrics  *metrics.Collector
}

func newFixture(t *testing.T, extra map[string]string) *fixture {
	t.Helper()
	base := t.TempDir()
	values := map[string]string{
		"app.url":              "http://shop.local/",
		"browser":              "chrome",
		"headless":             "true",
		"explicit.wait":        "1",
		"wait.poll.interval":   "10",
		"extent.report.folder": filepath.Join(base, "reports"),
		"screenshot.folder":    filepath.Join(base, "screenshots"),
		"retry.count":          "0",
		"suite.workers":        "2",
	}
	for k, v := range extra {
		values[k] = v
	}
	cfg := config.New(values)

	f := &fixture{
		base:     base,
		cfg:      cfg,
		browsers: &fakeBrowsers{},
		log:      logger.NewTestLogger(),
		metrics:  metrics.New(),
	}

	var err error
	f.registry, err = session.NewRegistry(cfg, f.browsers, f.log, f.metrics)
	require.NoError(t, err)
	f.reports, err = report.NewManagerFromConfig(cfg, f.log)
	require.NoError(t, err)
	return f
}

func (f *fixture) runner(t *testing.T, opts Options) *Runner {
	t.Helper()
	opts.Registry = f.registry
	opts.Reports = f.reports
	opts.Metrics = f.metrics
	opts.Logger = f.log
	r, err := NewRunner(f.cfg, opts)
	require.NoError(t, err)
	return r
}

func messages(tc *report.TestContext) []string {
	var out []string
	for _, e := range tc.Entries() {
		out = append(out, e.Message)
	}
	return out
}

func testByName(t *testing.T, m *report.Manager, name string) *report.TestContext {
	t.Helper()
	for _, tc := range m.Tests() {
		if tc.DisplayName() == name {
			return tc
		}
	}
	t.Fatalf("test %q not in report", name)
	return nil
}

func TestRunner_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	r := f.runner(t, Options{})

	tests := []Test{
		{Name: "passes", Run: func(ctx context.Context, t *T) error { return t.Log("step one") }},
		{Name: "fails", Run: func(ctx context.Context, t *T) error { return errors.New("total mismatch") }},
		{Name: "skips", Run: func(ctx context.Context, t *T) error { return Skip("feature flag off") }},
	}

	summary, err := r.Run(context.Background(), tests)
	require.NoError(t, err)

	require.Len(t, summary.Outcomes, 3)
	assert.Equal(t, "passes", summary.Outcomes[0].Name)
	assert.Equal(t, report.StatusPass, summary.Outcomes[0].Status)
	assert.Equal(t, report.StatusFail, summary.Outcomes[1].Status)
	assert.Equal(t, report.StatusSkip, summary.Outcomes[2].Status)
	assert.ErrorIs(t, summary.Outcomes[2].Err, ErrSkip)
	assert.True(t, summary.Failed())
	assert.Equal(t, 1, summary.Counts[report.StatusPass])

	assert.Equal(t, []string{
		"Initializing WebDriver: chrome",
		"Navigating to application URL: http://shop.local/",
		"step one",
		"Test Passed Successfully",
		"Closing browser",
	}, messages(testByName(t, f.reports, "passes")))

	failed := testByName(t, f.reports, "fails")
	msgs := messages(failed)
	assert.Contains(t, msgs, "Test Failed: total mismatch")
	require.Len(t, failed.Screenshots(), 1)
	shot := failed.Screenshots()[0]
	assert.True(t, strings.HasPrefix(filepath.Base(shot), "fails_"))
	assert.FileExists(t, shot)
	assert.Contains(t, msgs, "Screenshot captured at: "+shot)
	assert.Equal(t, "Closing browser", msgs[len(msgs)-1])

	assert.Contains(t, messages(testByName(t, f.reports, "skips")), "Test Skipped: feature flag off")

	for _, d := range f.browsers.all() {
		assert.Equal(t, 1, d.Quits())
		assert.Equal(t, "http://shop.local/", mustURL(t, d))
	}
	assert.Len(t, f.browsers.all(), 3, "every test gets a fresh browser")
	assert.Zero(t, f.registry.Len())

	assert.FileExists(t, summary.ReportPath)
	assert.False(t, summary.Notified)
}

func mustURL(t *testing.T, d *browsertest.Driver) string {
	t.Helper()
	u, err := d.CurrentURL(context.Background())
	require.NoError(t, err)
	return u
}

func TestRunner_Retries(t *testing.T) {
	f := newFixture(t, map[string]string{"retry.count": "2"})
	r := f.runner(t, Options{})

	var calls int32
	tests := []Test{
		{Name: "flaky", Run: func(ctx context.Context, t *T) error {
			if atomic.AddInt32(&calls, 1) == 1 {
				return errors.New("first attempt fails")
			}
			return nil
		}},
		{Name: "broken", Run: func(ctx context.Context, t *T) error { return errors.New("always") }},
	}

	summary, err := r.Run(context.Background(), tests)
	require.NoError(t, err)

	assert.Equal(t, report.StatusPass, summary.Outcomes[0].Status)
	assert.Equal(t, 2, summary.Outcomes[0].Attempts)
	assert.Equal(t, report.StatusFail, summary.Outcomes[1].Status)
	assert.Equal(t, 3, summary.Outcomes[1].Attempts)

	assert.Equal(t, report.StatusFail, testByName(t, f.reports, "flaky").Status())
	assert.Equal(t, report.StatusPass, testByName(t, f.reports, "flaky (retry 1)").Status())
	testByName(t, f.reports, "broken (retry 2)")
	assert.Len(t, f.reports.Tests(), 5)

	assert.True(t, testByName(t, f.reports, "flaky").Retried())
	assert.False(t, testByName(t, f.reports, "flaky (retry 1)").Retried())
	assert.True(t, testByName(t, f.reports, "broken (retry 1)").Retried())
	assert.Equal(t, map[report.Status]int{report.StatusPass: 1, report.StatusFail: 1}, f.reports.Summary())
}

func TestRunner_ReportWriteFailuresAreLogged(t *testing.T) {
	f := newFixture(t, nil)
	r := f.runner(t, Options{})

	r.noteReport(context.Background(), "worker-9", nil)
	assert.Empty(t, f.log.Messages("warn"))

	r.noteReport(context.Background(), "worker-9", f.reports.LogInfo("worker-9", "nobody is listening"))
	r.noteReport(context.Background(), "worker-9", f.reports.AddScreenshot("worker-9", "shot.png"))
	assert.Equal(t, []string{"failed to write report entry", "failed to write report entry"}, f.log.Messages("warn"))
	for _, e := range f.log.Entries() {
		if e.Level == "warn" {
			assert.Equal(t, "worker-9", e.Fields["worker"])
			assert.Contains(t, e.Fields["error"], "no test bound")
		}
	}
}

func TestRunner_NormalRunWritesEveryReportEntry(t *testing.T) {
	f := newFixture(t, nil)
	r := f.runner(t, Options{})

	_, err := r.Run(context.Background(), []Test{
		{Name: "ok"},
		{Name: "bad", Run: func(ctx context.Context, t *T) error { return errors.New("boom") }},
	})
	require.NoError(t, err)
	assert.NotContains(t, f.log.Messages("warn"), "failed to write report entry")
}

func TestRunner_PanicIsFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"screenshot.on.failure": "false"})
	r := f.runner(t, Options{})

	summary, err := r.Run(context.Background(), []Test{
		{Name: "panics", Run: func(ctx context.Context, t *T) error { panic("boom") }},
	})
	require.NoError(t, err)
	assert.Equal(t, report.StatusFail, summary.Outcomes[0].Status)
	assert.Contains(t, summary.Outcomes[0].Err.Error(), "panic: boom")
	assert.Empty(t, testByName(t, f.reports, "panics").Screenshots())
}

func TestRunner_SessionFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.browsers.err = errors.New("chrome not installed")
	r := f.runner(t, Options{})

	summary, err := r.Run(context.Background(), []Test{{Name: "never runs"}})
	require.NoError(t, err)
	assert.Equal(t, report.StatusFail, summary.Outcomes[0].Status)

	tc := testByName(t, f.reports, "never runs")
	msgs := messages(tc)
	assert.Equal(t, "Initializing WebDriver: chrome", msgs[0])
	assert.Contains(t, msgs[1], "chrome not installed")
	assert.Equal(t, "Closing browser", msgs[len(msgs)-1])
	assert.Empty(t, tc.Screenshots())
}

func TestRunner_WorkersBoundSessions(t *testing.T) {
	f := newFixture(t, map[string]string{"suite.workers": "2"})
	r := f.runner(t, Options{})

	var tests []Test
	for i := 0; i < 8; i++ {
		tests = append(tests, Test{Name: "t" + string(rune('a'+i)), Run: func(ctx context.Context, t *T) error {
			return t.Log("worker " + string(t.Worker))
		}})
	}

	summary, err := r.Run(context.Background(), tests)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Counts[report.StatusPass])
	assert.LessOrEqual(t, atomic.LoadInt32(&f.browsers.peak), int32(2))

	for _, tc := range f.reports.Tests() {
		assert.Contains(t, []session.WorkerID{"worker-1", "worker-2"}, tc.Worker)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	r := f.runner(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx, []Test{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		assert.NotEqual(t, report.StatusPass, o.Status)
	}
	assert.FileExists(t, summary.ReportPath)
}

func TestRunner_AfterSuiteSinks(t *testing.T) {
	textfile := filepath.Join(t.TempDir(), "uirunner.prom")
	f := newFixture(t, map[string]string{"metrics.textfile": textfile})

	db := testutil.SetupTestDB(t)
	require.NoError(t, history.Migrate(db, history.DriverSQLite))
	store := history.NewSQLStore(db, f.log)

	artifacts, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dispatcher, err := notify.NewDispatcherFromConfig(f.cfg, nil, f.log, f.metrics)
	require.NoError(t, err)

	r := f.runner(t, Options{History: store, Artifacts: artifacts, Dispatcher: dispatcher})
	summary, err := r.Run(context.Background(), []Test{
		{Name: "passes"},
		{Name: "fails", Run: func(ctx context.Context, t *T) error { return errors.New("nope") }},
	})
	require.NoError(t, err)
	ctx := context.Background()

	run, err := store.GetRun(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, summary.ReportPath, run.ReportPath)

	results, err := store.ListResults(ctx, summary.RunID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	ok, err := artifacts.Exists(ctx, "reports/"+filepath.Base(summary.ReportPath))
	require.NoError(t, err)
	assert.True(t, ok)
	shots, err := artifacts.List(ctx, "screenshots/")
	require.NoError(t, err)
	assert.Len(t, shots, 1)

	assert.False(t, summary.Notified, "email disabled by default")

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `uirunner_tests_total{status="fail"} 1`)
}

type recordingTransport struct {
	mu   sync.Mutex
	sent []*notify.Message
}

func (rt *recordingTransport) Send(ctx context.Context, msg *notify.Message) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.sent = append(rt.sent, msg)
	return nil
}

func TestRunner_EmailsNewestReport(t *testing.T) {
	f := newFixture(t, map[string]string{
		"email.enabled":    "true",
		"email.smtp.host":  "smtp.local",
		"email.username":   "qa@shop.local",
		"email.recipients": "team@shop.local",
	})

	folder := filepath.Join(f.base, "reports")
	require.NoError(t, os.MkdirAll(folder, 0755))
	stale := filepath.Join(folder, "TestReport_2020-01-01_00-00-00.html")
	require.NoError(t, os.WriteFile(stale, []byte("<html></html>"), 0644))
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	transport := &recordingTransport{}
	dispatcher, err := notify.NewDispatcherFromConfig(f.cfg, transport, f.log, f.metrics)
	require.NoError(t, err)

	r := f.runner(t, Options{Dispatcher: dispatcher})
	summary, err := r.Run(context.Background(), []Test{{Name: "passes"}})
	require.NoError(t, err)

	assert.True(t, summary.Notified)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, summary.ReportPath, transport.sent[0].Attachment)
	assert.NotEqual(t, stale, transport.sent[0].Attachment)
}

func TestNewRunner_Config(t *testing.T) {
	f := newFixture(t, nil)

	_, err := NewRunner(f.cfg, Options{})
	assert.Error(t, err)

	cfg := config.New(map[string]string{"browser": "chrome"})
	_, err = NewRunner(cfg, Options{Registry: f.registry, Reports: f.reports})
	assert.ErrorIs(t, err, config.ErrConfig)

	cfg = config.New(map[string]string{"app.url": "http://x", "browser": "chrome", "retry.count": "many"})
	_, err = NewRunner(cfg, Options{Registry: f.registry, Reports: f.reports})
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestSmoke(t *testing.T) {
	f := newFixture(t, nil)
	r := f.runner(t, Options{})

	summary, err := r.Run(context.Background(), Smoke())
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		assert.Equal(t, report.StatusPass, o.Status, o.Name)
	}
	assert.Contains(t, messages(testByName(t, f.reports, "Application loads")), "Page title: Test Page")
}
