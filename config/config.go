package config

import (
	"strconv"
	"strings"
	"time"
)

// Configuration keys.
const (
	KeyAppURL              = "app.url"
	KeyAppName             = "app.name"
	KeyAppEnv              = "app.env"
	KeyBrowser             = "browser"
	KeyHeadless            = "headless"
	KeyMaximize            = "maximize"
	KeyImplicitWait        = "implicit.wait"
	KeyExplicitWait        = "explicit.wait"
	KeyPageLoadTimeout     = "page.load.timeout"
	KeyPollInterval        = "wait.poll.interval"
	KeyScreenshotOnFailure = "screenshot.on.failure"
	KeyScreenshotFolder    = "screenshot.folder"
	KeyReportFolder        = "extent.report.folder"
	KeyReportTitle         = "report.title"
	KeyReportName          = "report.name"
	KeyRetryCount          = "retry.count"
	KeyEmailEnabled        = "email.enabled"
	KeyLogLevel            = "log.level"
	KeyLogFormat           = "log.format"
	KeyWorkers             = "suite.workers"
	KeyGeckoDriverURL      = "gecko.driver.url"
	KeyChromeBinary        = "chrome.binary"
	KeyEdgeBinary          = "edge.binary"
	KeyStorageType         = "storage.type"
	KeyS3Bucket            = "storage.s3.bucket"
	KeyS3Region            = "storage.s3.region"
	KeyHistoryEnabled      = "history.enabled"
	KeyHistoryDriver       = "history.driver"
	KeyHistoryDSN          = "history.dsn"
	KeyMetricsTextfile     = "metrics.textfile"
	KeyServerAddress       = "server.address"
)

// Config is an immutable set of settings. It is safe for concurrent use
// without locking because nothing mutates it after construction.
type Config struct {
	values map[string]string
}

// New builds a Config from the given key/value pairs. Keys are matched
// case-insensitively.
func New(values map[string]string) *Config {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[strings.ToLower(k)] = v
	}
	return &Config{values: copied}
}

// Get returns the value for key, or a config error if it is not set.
func (c *Config) Get(key string) (string, error) {
	v, ok := c.values[strings.ToLower(key)]
	if !ok {
		return "", &Error{Key: key, Err: errMissing}
	}
	return v, nil
}

// GetOr returns the value for key, or def if it is not set.
func (c *Config) GetOr(key, def string) string {
	if v, ok := c.values[strings.ToLower(key)]; ok {
		return v
	}
	return def
}

// Has reports whether key is set.
func (c *Config) Has(key string) bool {
	_, ok := c.values[strings.ToLower(key)]
	return ok
}

// Len returns the number of settings held.
func (c *Config) Len() int {
	return len(c.values)
}

// Bool parses key as a case-insensitive true/false value.
func (c *Config) Bool(key string, def bool) (bool, error) {
	raw, ok := c.values[strings.ToLower(key)]
	if !ok {
		return def, nil
	}
	return parseBool(key, raw)
}

// Int parses key as a base-10 integer.
func (c *Config) Int(key string, def int) (int, error) {
	raw, ok := c.values[strings.ToLower(key)]
	if !ok {
		return def, nil
	}
	return parseInt(key, raw)
}

// Seconds parses key as a whole number of seconds.
func (c *Config) Seconds(key string, def int) (time.Duration, error) {
	n, err := c.Int(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

// List splits a comma separated value, dropping empty items.
func (c *Config) List(key string) []string {
	raw := c.GetOr(key, "")
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBool(key, raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, &Error{Key: key, Value: raw, Err: errNotBool}
	}
}

func parseInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &Error{Key: key, Value: raw, Err: errNotInteger}
	}
	return n, nil
}

// AppURL returns the application under test.
func (c *Config) AppURL() (string, error) { return c.Get(KeyAppURL) }

// Browser returns the configured browser name in lower case.
func (c *Config) Browser() (string, error) {
	v, err := c.Get(KeyBrowser)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(v)), nil
}

func (c *Config) Headless() (bool, error) { return c.Bool(KeyHeadless, false) }

func (c *Config) Maximize() (bool, error) { return c.Bool(KeyMaximize, true) }

func (c *Config) ImplicitWait() (time.Duration, error) { return c.Seconds(KeyImplicitWait, 10) }

func (c *Config) ExplicitWait() (time.Duration, error) { return c.Seconds(KeyExplicitWait, 20) }

func (c *Config) PageLoadTimeout() (time.Duration, error) { return c.Seconds(KeyPageLoadTimeout, 30) }

// PollInterval is the explicit wait polling interval, in milliseconds.
func (c *Config) PollInterval() (time.Duration, error) {
	n, err := c.Int(KeyPollInterval, 250)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func (c *Config) ScreenshotOnFailure() (bool, error) { return c.Bool(KeyScreenshotOnFailure, true) }

func (c *Config) ScreenshotFolder() string {
	return c.GetOr(KeyScreenshotFolder, "test-output/screenshots")
}

func (c *Config) ReportFolder() (string, error) { return c.Get(KeyReportFolder) }

func (c *Config) RetryCount() (int, error) { return c.Int(KeyRetryCount, 1) }

func (c *Config) EmailEnabled() (bool, error) { return c.Bool(KeyEmailEnabled, false) }

func (c *Config) AppName() string { return c.GetOr(KeyAppName, "React Shopping Cart") }

func (c *Config) Environment() string { return c.GetOr(KeyAppEnv, "QA") }

func (c *Config) ReportTitle() string { return c.GetOr(KeyReportTitle, "Automation Report") }

func (c *Config) ReportName() string { return c.GetOr(KeyReportName, "Test Results") }

func (c *Config) Workers() (int, error) { return c.Int(KeyWorkers, 2) }

func (c *Config) HistoryEnabled() (bool, error) { return c.Bool(KeyHistoryEnabled, false) }

func (c *Config) ServerAddress() string { return c.GetOr(KeyServerAddress, ":8090") }
