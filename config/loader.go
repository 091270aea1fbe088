package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable overrides, so
// "email.smtp.host" can be overridden by UIRUNNER_EMAIL_SMTP_HOST.
const EnvPrefix = "UIRUNNER"

// knownKeys are bound to environment variables even when the settings
// file does not mention them.
var knownKeys = []string{
	KeyAppURL, KeyAppName, KeyAppEnv, KeyBrowser, KeyHeadless, KeyMaximize,
	KeyImplicitWait, KeyExplicitWait, KeyPageLoadTimeout, KeyPollInterval,
	KeyScreenshotOnFailure, KeyScreenshotFolder, KeyReportFolder,
	KeyReportTitle, KeyReportName, KeyRetryCount, KeyEmailEnabled,
	KeyLogLevel, KeyLogFormat, KeyWorkers, KeyGeckoDriverURL, KeyChromeBinary,
	KeyEdgeBinary, KeyStorageType, KeyS3Bucket, KeyS3Region, KeyHistoryEnabled,
	KeyHistoryDriver, KeyHistoryDSN, KeyMetricsTextfile, KeyServerAddress,
	"email.smtp.host", "email.smtp.port", "email.username", "email.password",
	"email.smtp.username", "email.smtp.password", "email.recipients", "email.subject",
}

// Loader loads the settings source at most once, however many goroutines
// ask for it.
type Loader struct {
	path string
	read func(path string) (map[string]string, error)

	once sync.Once
	cfg  *Config
	err  error
}

// NewLoader creates a loader for the settings file at path. Supported
// formats follow the file extension: .properties, .yaml, .json, .toml.
func NewLoader(path string) *Loader {
	return &Loader{path: path, read: readFile}
}

// Load returns the process configuration, reading the source on first use.
func (l *Loader) Load() (*Config, error) {
	l.once.Do(func() {
		values, err := l.read(l.path)
		if err != nil {
			l.err = err
			return
		}
		l.cfg = New(values)
	})
	return l.cfg, l.err
}

// Load reads the settings file at path into an immutable Config.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

func readFile(path string) (map[string]string, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("properties")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range knownKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, &Error{Key: key, Err: err}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, &Error{Err: fmt.Errorf("failed to read config file: %w", err)}
		}
		// No file found in the search paths; environment only
	}

	values := make(map[string]string)
	for _, key := range v.AllKeys() {
		if !v.IsSet(key) {
			continue
		}
		values[key] = v.GetString(key)
	}
	return values, nil
}
