package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
)

var testMeta = Metadata{
	Title:       "Automation Report",
	ReportName:  "Test Results",
	Application: "React Shopping Cart",
	Environment: "QA",
	Browser:     "chrome",
	OS:          "linux",
	User:        "ci",
}

func newTestManager(t *testing.T) (*Manager, *logger.TestLogger) {
	t.Helper()
	log := logger.NewTestLogger()
	m, err := NewManager(t.TempDir(), testMeta, log)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	return m, log
}

func readReport(t *testing.T, path string) *goquery.Document {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func TestNewManager_RequiresFolder(t *testing.T) {
	_, err := NewManager("", testMeta, nil)
	assert.ErrorIs(t, err, config.ErrConfig)

	_, err = NewManagerFromConfig(config.New(map[string]string{}), nil)
	assert.ErrorIs(t, err, config.ErrConfig)
}

func TestManager_InitOnce(t *testing.T) {
	m, _ := newTestManager(t)
	calls := 0
	m.now = func() time.Time {
		calls++
		return time.Date(2024, 3, 5, 14, 7, 9+calls, 0, time.UTC)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Init())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, "TestReport_2024-03-05_14-07-10.html", filepath.Base(m.ArtifactPath()))
	assert.True(t, m.Initialized())
}

func TestManager_UsageErrors(t *testing.T) {
	m, _ := newTestManager(t)
	w := session.WorkerID("w1")

	_, err := m.CreateTest(w, "login", "")
	assert.ErrorIs(t, err, ErrReportUsage, "create before init")

	require.NoError(t, m.Init())

	assert.ErrorIs(t, m.LogInfo(w, "hello"), ErrReportUsage, "log before create")
	assert.ErrorIs(t, m.AddScreenshot(w, "x.png"), ErrReportUsage)

	_, err = m.CreateTest(w, "login", "")
	require.NoError(t, err)
	_, err = m.CreateTest(w, "checkout", "")
	assert.ErrorIs(t, err, ErrReportUsage, "create twice")

	m.RemoveTest(w)
	assert.ErrorIs(t, m.LogPass(w, "late"), ErrReportUsage, "log after remove")

	var usage *UsageError
	require.ErrorAs(t, m.LogPass(w, "late"), &usage)
	assert.Equal(t, w, usage.Worker)

	_, err = m.CreateTest(w, "checkout", "")
	assert.NoError(t, err, "create after remove")
}

func TestManager_WorkersAreIsolated(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Init())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		w := session.WorkerID("w" + string(rune('a'+i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.CreateTest(w, "test-"+string(w), ""); !assert.NoError(t, err) {
				return
			}
			for j := 0; j < 20; j++ {
				assert.NoError(t, m.LogInfo(w, "step"))
			}
			assert.NoError(t, m.LogPass(w, "done"))
			m.RemoveTest(w)
		}()
	}
	wg.Wait()

	tests := m.Tests()
	require.Len(t, tests, 8)
	for _, tc := range tests {
		assert.Len(t, tc.Entries(), 21)
		assert.Equal(t, StatusPass, tc.Status())
		assert.Equal(t, "test-"+string(tc.Worker), tc.Name)
	}
}

func TestTestContext_SeverityWins(t *testing.T) {
	tests := []struct {
		name string
		logs []Status
		want Status
	}{
		{name: "info only", logs: []Status{StatusInfo}, want: StatusInfo},
		{name: "pass", logs: []Status{StatusInfo, StatusPass}, want: StatusPass},
		{name: "warning over pass", logs: []Status{StatusPass, StatusWarning}, want: StatusWarning},
		{name: "skip over warning", logs: []Status{StatusWarning, StatusSkip}, want: StatusSkip},
		{name: "fail over everything", logs: []Status{StatusFail, StatusPass, StatusSkip}, want: StatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &TestContext{}
			for _, s := range tt.logs {
				tc.log(time.Now(), s, s.String())
			}
			assert.Equal(t, tt.want, tc.Status())
			assert.Equal(t, tt.want.String(), tc.LastMessage())
		})
	}
}

func TestManager_AddScreenshot(t *testing.T) {
	m, log := newTestManager(t)
	require.NoError(t, m.Init())
	w := session.WorkerID("w1")
	tc, err := m.CreateTest(w, "cart", "")
	require.NoError(t, err)

	shot := filepath.Join(t.TempDir(), "cart.png")
	require.NoError(t, os.WriteFile(shot, []byte("png"), 0644))
	require.NoError(t, m.AddScreenshot(w, shot))
	assert.Equal(t, []string{shot}, tc.Screenshots())

	require.NoError(t, m.AddScreenshot(w, filepath.Join(t.TempDir(), "missing.png")))
	assert.Len(t, tc.Screenshots(), 1)
	entries := tc.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusWarning, entries[0].Status)
	assert.True(t, strings.HasPrefix(entries[0].Message, "Failed to attach screenshot: "))
	assert.Len(t, log.Messages("warn"), 1)
}

func TestManager_FlushBeforeInit(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Flush(context.Background()))
	assert.Empty(t, m.ArtifactPath())

	entries, err := os.ReadDir(m.folder)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManager_FlushWithoutTests(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Init())
	require.NoError(t, m.Flush(context.Background()))

	doc := readReport(t, m.ArtifactPath())
	assert.Equal(t, "Automation Report", doc.Find("#title").Text())
	assert.Equal(t, "Test Results", doc.Find("#report-name").Text())
	assert.Equal(t, "0", doc.Find("#summary td.total").Text())
	assert.Equal(t, 0, doc.Find("section.test").Length())
	assert.Equal(t, 1, doc.Find("p.empty").Length())
}

func TestManager_FlushIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Init())
	ctx := context.Background()

	w := session.WorkerID("w1")
	_, err := m.CreateTest(w, "Add product to cart", "adds one item")
	require.NoError(t, err)
	require.NoError(t, m.LogInfo(w, "Navigating to application URL: http://shop.local"))
	require.NoError(t, m.LogFail(w, "Test Failed: button not clickable"))
	m.RemoveTest(w)

	require.NoError(t, m.Flush(ctx))
	first, err := os.ReadFile(m.ArtifactPath())
	require.NoError(t, err)

	require.NoError(t, m.Flush(ctx))
	second, err := os.ReadFile(m.ArtifactPath())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	doc := readReport(t, m.ArtifactPath())
	section := doc.Find("section.test")
	require.Equal(t, 1, section.Length())
	assert.True(t, section.HasClass("status-fail"))
	assert.Equal(t, "w1", section.AttrOr("data-worker", ""))
	assert.Equal(t, "adds one item", section.Find("p.desc").Text())
	assert.Equal(t, 2, section.Find("tr.entry").Length())
	assert.Equal(t, "1", doc.Find("#summary td.count-fail").Text())

	files, err := os.ReadDir(m.folder)
	require.NoError(t, err)
	assert.Len(t, files, 1, "no temporary files left behind")
}

func TestManager_SummaryAndSystemInfo(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Init())

	for name, status := range map[string]Status{"a": StatusPass, "b": StatusFail, "c": StatusSkip, "d": StatusPass} {
		w := session.WorkerID(name)
		_, err := m.CreateTest(w, name, "")
		require.NoError(t, err)
		require.NoError(t, m.log(w, status, "outcome"))
		m.RemoveTest(w)
	}

	assert.Equal(t, map[Status]int{StatusPass: 2, StatusFail: 1, StatusSkip: 1}, m.Summary())

	require.NoError(t, m.Flush(context.Background()))
	doc := readReport(t, m.ArtifactPath())
	info := map[string]string{}
	doc.Find("#system-info tr").Each(func(_ int, s *goquery.Selection) {
		info[s.Find("th").Text()] = s.Find("td").Text()
	})
	assert.Equal(t, "React Shopping Cart", info["Application"])
	assert.Equal(t, "QA", info["Environment"])
	assert.Equal(t, "chrome", info["Browser"])
	assert.Equal(t, "Mar 05, 2024 14:07:09", info["Started"])
}

func TestManager_RetriesCountOnce(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Init())
	w := session.WorkerID("w1")

	_, err := m.CreateRetry(w, "checkout", "", 1)
	var usage *UsageError
	assert.ErrorAs(t, err, &usage)

	run := func(attempt int, status Status) *TestContext {
		var tc *TestContext
		if attempt == 1 {
			tc, err = m.CreateTest(w, "checkout", "pays for the cart")
		} else {
			tc, err = m.CreateRetry(w, "checkout", "pays for the cart", attempt)
		}
		require.NoError(t, err)
		require.NoError(t, m.log(w, status, "outcome"))
		m.RemoveTest(w)
		return tc
	}
	first := run(1, StatusFail)
	second := run(2, StatusPass)

	assert.Equal(t, "checkout", first.DisplayName())
	assert.Equal(t, "checkout (retry 1)", second.DisplayName())
	assert.True(t, first.Retried())
	assert.False(t, second.Retried())
	assert.Equal(t, map[Status]int{StatusPass: 1}, m.Summary())

	require.NoError(t, m.Flush(context.Background()))
	doc := readReport(t, m.ArtifactPath())
	sections := doc.Find("section.test")
	require.Equal(t, 2, sections.Length())
	assert.True(t, sections.Eq(0).HasClass("retried"))
	assert.False(t, sections.Eq(1).HasClass("retried"))
	assert.Contains(t, sections.Eq(1).Find("h3").Text(), "checkout (retry 1)")
	assert.Equal(t, "1", doc.Find("#summary td.total").Text())
	assert.Equal(t, "1", doc.Find("#summary td.count-pass").Text())
	assert.Equal(t, "0", doc.Find("#summary td.count-fail").Text())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{StatusInfo, StatusPass, StatusWarning, StatusSkip, StatusFail} {
		got, ok := ParseStatus(strings.ToUpper(s.String()))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseStatus("flaky")
	assert.False(t, ok)
}
