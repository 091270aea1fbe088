package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPSettings locates and authenticates against the mail server.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPTransport sends messages over SMTP with mandatory STARTTLS and
// SMTP authentication.
type SMTPTransport struct {
	settings SMTPSettings
	options  []mail.Option
}

// NewSMTPTransport creates a transport for settings. Extra client options
// are applied after the defaults.
func NewSMTPTransport(settings SMTPSettings, opts ...mail.Option) *SMTPTransport {
	return &SMTPTransport{settings: settings, options: opts}
}

func (t *SMTPTransport) clientOptions() []mail.Option {
	port := t.settings.Port
	if port == 0 {
		port = DefaultPort
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.settings.Username),
		mail.WithPassword(t.settings.Password),
	}
	return append(opts, t.options...)
}

// Send delivers msg.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return &TransportError{Op: "build message", Err: err}
	}

	client, err := mail.NewClient(t.settings.Host, t.clientOptions()...)
	if err != nil {
		return &TransportError{Op: "create smtp client", Err: err}
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return &TransportError{Op: "send email", Err: err}
	}
	return nil
}

func buildMsg(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	if msg.Attachment != "" {
		m.AttachFile(msg.Attachment)
	}
	return m, nil
}
