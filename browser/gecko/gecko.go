// Package gecko drives Firefox through a running geckodriver using the
// W3C WebDriver protocol.
package gecko

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
)

// DefaultURL is where geckodriver listens unless configured otherwise.
const DefaultURL = "http://localhost:4444"

// elementKey identifies element references in WebDriver payloads.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// Driver is a browser.Driver backed by a WebDriver session.
type Driver struct {
	httpClient *http.Client
	baseURL    string
	sessionID  string
	opts       browser.Options
}

// Capabilities builds the new session payload for opts.
func Capabilities(opts browser.Options) map[string]interface{} {
	args := append([]string{}, opts.Args...)
	if opts.Headless && !opts.HasArg("-headless") {
		args = append(args, "-headless")
	}

	prefs := map[string]interface{}{}
	for k, v := range opts.Prefs {
		prefs[k] = v
	}

	firefox := map[string]interface{}{
		"args":  args,
		"prefs": prefs,
	}
	if opts.Binary != "" {
		firefox["binary"] = opts.Binary
	}

	return map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"browserName":         "firefox",
				"acceptInsecureCerts": true,
				"moz:firefoxOptions":  firefox,
			},
		},
	}
}

// New opens a session against the WebDriver endpoint in opts.RemoteURL.
func New(ctx context.Context, opts browser.Options) (*Driver, error) {
	baseURL := DefaultURL
	if opts.RemoteURL != "" {
		baseURL = strings.TrimRight(opts.RemoteURL, "/")
	}

	d := &Driver{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    baseURL,
		opts:       opts,
	}

	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := d.call(ctx, http.MethodPost, d.baseURL+"/session", Capabilities(opts), &created); err != nil {
		return nil, fmt.Errorf("gecko: failed to create session: %w", err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("gecko: failed to create session: empty session id")
	}
	d.sessionID = created.SessionID

	timeouts := map[string]interface{}{
		"implicit": opts.ImplicitWait.Milliseconds(),
	}
	if opts.PageLoadTimeout > 0 {
		timeouts["pageLoad"] = opts.PageLoadTimeout.Milliseconds()
	}
	if err := d.session(ctx, http.MethodPost, "/timeouts", timeouts, nil); err != nil {
		d.Quit(ctx)
		return nil, fmt.Errorf("gecko: failed to set timeouts: %w", err)
	}

	var err error
	switch {
	case opts.Headless:
		err = d.session(ctx, http.MethodPost, "/window/rect", map[string]int{"width": 1920, "height": 1080}, nil)
	case opts.Maximize:
		err = d.session(ctx, http.MethodPost, "/window/maximize", map[string]interface{}{}, nil)
	}
	if err != nil {
		d.Quit(ctx)
		return nil, fmt.Errorf("gecko: failed to size window: %w", err)
	}

	return d, nil
}

// SessionID returns the WebDriver session identifier.
func (d *Driver) SessionID() string { return d.sessionID }

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorKinds maps WebDriver error codes onto the browser error kinds.
var errorKinds = map[string]error{
	"no such element":           browser.ErrNoSuchElement,
	"stale element reference":   browser.ErrStaleElement,
	"element click intercepted": browser.ErrClickIntercepted,
	"no such alert":             browser.ErrNoAlert,
}

func (d *Driver) call(ctx context.Context, method, url string, body, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var we wireError
		if err := json.Unmarshal(envelope.Value, &we); err != nil || we.Error == "" {
			return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(raw))
		}
		if kind, ok := errorKinds[we.Error]; ok {
			return fmt.Errorf("%w: %s", kind, we.Message)
		}
		return fmt.Errorf("%s: %s", we.Error, we.Message)
	}

	if out == nil || len(envelope.Value) == 0 || string(envelope.Value) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (d *Driver) session(ctx context.Context, method, path string, body, out interface{}) error {
	return d.call(ctx, method, d.baseURL+"/session/"+d.sessionID+path, body, out)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.session(ctx, http.MethodPost, "/url", map[string]string{"url": url}, nil); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.session(ctx, http.MethodGet, "/title", nil, &title)
	return title, err
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.session(ctx, http.MethodGet, "/url", nil, &url)
	return url, err
}

// query translates a locator into a WebDriver strategy. WebDriver has no
// id strategy so ids are sent as CSS.
func query(loc browser.Locator) (using, value string) {
	if loc.By == browser.ByID {
		sel, _ := loc.CSSSelector()
		return string(browser.ByCSS), sel
	}
	return string(loc.By), loc.Value
}

func (d *Driver) FindElement(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	using, value := query(loc)

	var ref map[string]string
	if err := d.session(ctx, http.MethodPost, "/element", map[string]string{"using": using, "value": value}, &ref); err != nil {
		return nil, err
	}
	id, ok := ref[elementKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
	}
	return &element{d: d, id: id}, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	wireArgs := make([]interface{}, len(args))
	for i, a := range args {
		if el, ok := a.(*element); ok {
			wireArgs[i] = map[string]string{elementKey: el.id}
			continue
		}
		wireArgs[i] = a
	}

	var out interface{}
	err := d.session(ctx, http.MethodPost, "/execute/sync", map[string]interface{}{"script": script, "args": wireArgs}, &out)
	if err != nil {
		return nil, err
	}
	if ref, ok := out.(map[string]interface{}); ok {
		if id, ok := ref[elementKey].(string); ok {
			return &element{d: d, id: id}, nil
		}
	}
	return out, nil
}

func (d *Driver) AlertText(ctx context.Context) (string, error) {
	var text string
	err := d.session(ctx, http.MethodGet, "/alert/text", nil, &text)
	return text, err
}

func (d *Driver) AcceptAlert(ctx context.Context) error {
	return d.session(ctx, http.MethodPost, "/alert/accept", map[string]interface{}{}, nil)
}

func (d *Driver) DismissAlert(ctx context.Context) error {
	return d.session(ctx, http.MethodPost, "/alert/dismiss", map[string]interface{}{}, nil)
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var encoded string
	if err := d.session(ctx, http.MethodGet, "/screenshot", nil, &encoded); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	png, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return png, nil
}

func (d *Driver) Quit(ctx context.Context) error {
	if d.sessionID == "" {
		return nil
	}
	return d.session(ctx, http.MethodDelete, "", nil, nil)
}

type element struct {
	d  *Driver
	id string
}

func (e *element) path(suffix string) string {
	return "/element/" + e.id + suffix
}

func (e *element) Click(ctx context.Context) error {
	return e.d.session(ctx, http.MethodPost, e.path("/click"), map[string]interface{}{}, nil)
}

func (e *element) Clear(ctx context.Context) error {
	return e.d.session(ctx, http.MethodPost, e.path("/clear"), map[string]interface{}{}, nil)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.d.session(ctx, http.MethodPost, e.path("/value"), map[string]string{"text": text}, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.d.session(ctx, http.MethodGet, e.path("/text"), nil, &text)
	return text, err
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	var shown bool
	err := e.d.session(ctx, http.MethodGet, e.path("/displayed"), nil, &shown)
	return shown, err
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.d.session(ctx, http.MethodGet, e.path("/enabled"), nil, &enabled)
	return enabled, err
}
