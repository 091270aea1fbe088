// Package notify emails the run report to a list of recipients.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
)

//go:embed templates/email.html.tmpl
var templateFS embed.FS

var bodyTemplate = template.Must(template.ParseFS(templateFS, "templates/email.html.tmpl"))

const (
	KeySMTPHost     = "email.smtp.host"
	KeySMTPPort     = "email.smtp.port"
	KeyUsername     = "email.username"
	KeyPassword     = "email.password"
	KeySMTPUsername = "email.smtp.username"
	KeySMTPPassword = "email.smtp.password"
	KeyRecipients   = "email.recipients"
	KeySubject      = "email.subject"

	DefaultPort    = 587
	DefaultSubject = "Test Execution Report"

	subjectTimeLayout = "2006-01-02 15:04:05"
	bodyTimeLayout    = "Monday, January 02, 2006 at 15:04:05"
)

// Message is a single email ready for delivery.
type Message struct {
	From       string
	To         []string
	Subject    string
	HTMLBody   string
	Attachment string
}

// Transport delivers messages.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Settings holds the email configuration.
type Settings struct {
	Enabled    bool
	SMTP       SMTPSettings
	Recipients []string
	Subject    string

	Application string
	Environment string
	Browser     string
}

// SettingsFrom reads the email keys from cfg. Only email.enabled and
// email.smtp.port are parsed strictly here; missing delivery settings are
// reported when a send is attempted.
func SettingsFrom(cfg *config.Config) (Settings, error) {
	enabled, err := cfg.EmailEnabled()
	if err != nil {
		return Settings{}, err
	}
	port, err := cfg.Int(KeySMTPPort, DefaultPort)
	if err != nil {
		return Settings{}, err
	}

	username := cfg.GetOr(KeyUsername, cfg.GetOr(KeySMTPUsername, ""))
	password := cfg.GetOr(KeyPassword, cfg.GetOr(KeySMTPPassword, ""))

	return Settings{
		Enabled: enabled,
		SMTP: SMTPSettings{
			Host:     cfg.GetOr(KeySMTPHost, ""),
			Port:     port,
			Username: username,
			Password: password,
		},
		Recipients:  cfg.List(KeyRecipients),
		Subject:     cfg.GetOr(KeySubject, DefaultSubject),
		Application: cfg.AppName(),
		Environment: cfg.Environment(),
		Browser:     cfg.GetOr(config.KeyBrowser, "unknown"),
	}, nil
}

func (s Settings) validate() error {
	switch {
	case s.SMTP.Host == "":
		return fmt.Errorf("%s is not set", KeySMTPHost)
	case s.SMTP.Username == "":
		return fmt.Errorf("%s is not set", KeyUsername)
	case len(s.Recipients) == 0:
		return fmt.Errorf("%s is empty", KeyRecipients)
	}
	return nil
}

// Dispatcher sends the report notification when email is enabled.
type Dispatcher struct {
	settings  Settings
	transport Transport
	logger    logger.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// NewDispatcher creates a dispatcher. A nil transport means SMTP with the
// configured settings.
func NewDispatcher(settings Settings, transport Transport, log logger.Logger, m *metrics.Collector) *Dispatcher {
	if transport == nil {
		transport = NewSMTPTransport(settings.SMTP)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Dispatcher{
		settings:  settings,
		transport: transport,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// NewDispatcherFromConfig reads Settings from cfg and creates a dispatcher.
func NewDispatcherFromConfig(cfg *config.Config, transport Transport, log logger.Logger, m *metrics.Collector) (*Dispatcher, error) {
	settings, err := SettingsFrom(cfg)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(settings, transport, log, m), nil
}

// Enabled reports whether email delivery is switched on.
func (d *Dispatcher) Enabled() bool { return d.settings.Enabled }

// SendEmailWithReport emails the report at reportPath. It returns false
// without error when email is disabled. The report is attached only if it
// exists.
func (d *Dispatcher) SendEmailWithReport(ctx context.Context, reportPath string) (bool, error) {
	if !d.settings.Enabled {
		d.logger.Info(ctx, "email reporting is disabled", nil)
		d.metrics.Notification("disabled")
		return false, nil
	}

	msg, err := d.Message(reportPath)
	if err != nil {
		return false, d.fail(ctx, &TransportError{Op: "build message", Err: err})
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			te = &TransportError{Op: "send email", Err: err}
		}
		return false, d.fail(ctx, te)
	}

	d.logger.Info(ctx, "email sent", map[string]interface{}{
		"recipients": msg.To,
		"attached":   msg.Attachment != "",
	})
	d.metrics.Notification("sent")
	return true, nil
}

func (d *Dispatcher) fail(ctx context.Context, err *TransportError) error {
	d.logger.Error(ctx, "failed to send email", map[string]interface{}{"error": err.Error()})
	d.metrics.Notification("failed")
	return err
}

// NotifyLatest emails the newest report found in dir.
func (d *Dispatcher) NotifyLatest(ctx context.Context, dir string) (bool, error) {
	if !d.settings.Enabled {
		return d.SendEmailWithReport(ctx, "")
	}
	path, err := LatestReport(dir)
	if err != nil {
		return false, err
	}
	return d.SendEmailWithReport(ctx, path)
}

type bodyData struct {
	Executed    string
	Application string
	Environment string
	Browser     string
	Report      string
	Attached    bool
}

// Message builds the notification for reportPath.
func (d *Dispatcher) Message(reportPath string) (*Message, error) {
	if err := d.settings.validate(); err != nil {
		return nil, err
	}

	now := d.now()
	msg := &Message{
		From:    d.settings.SMTP.Username,
		To:      append([]string(nil), d.settings.Recipients...),
		Subject: d.settings.Subject + " - " + now.Format(subjectTimeLayout),
	}
	if reportPath != "" {
		if info, err := os.Stat(reportPath); err == nil && !info.IsDir() {
			msg.Attachment = reportPath
		}
	}

	var buf bytes.Buffer
	err := bodyTemplate.Execute(&buf, bodyData{
		Executed:    now.Format(bodyTimeLayout),
		Application: d.settings.Application,
		Environment: d.settings.Environment,
		Browser:     d.settings.Browser,
		Report:      filepath.Base(reportPath),
		Attached:    msg.Attachment != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render email body: %w", err)
	}
	msg.HTMLBody = buf.String()
	return msg, nil
}
