// Package browsertest provides a scripted in-memory browser.Driver for
// exercising the harness without launching a real browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
)

// ScriptCall records one ExecuteScript invocation.
type ScriptCall struct {
	Script string
	Args   []interface{}
}

// Element is a scripted element. Fields may be changed by tests between
// calls; access from the driver is serialized by the owning Driver.
type Element struct {
	Locator browser.Locator

	// AppearAfter is the number of lookups that report the element missing
	// before it becomes present.
	AppearAfter int
	Displayed   bool
	Enabled     bool
	Value       string
	Content     string

	// ClickErrs are returned by successive native clicks; once exhausted,
	// clicks succeed.
	ClickErrs []error

	lookups int
	clicks  int
	d       *Driver
}

// Driver is a scripted browser.Driver.
type Driver struct {
	mu sync.Mutex

	Kind    browser.Kind
	Options browser.Options

	elements  map[browser.Locator]*Element
	url       string
	title     string
	alert     *string
	accepted  int
	dismissed int
	scripts   []ScriptCall
	shot      []byte

	// ScriptErr is returned by ExecuteScript when set.
	ScriptErr error
	// QuitErr is returned by Quit when set.
	QuitErr   error

	quits int
}

// NewDriver creates an empty scripted driver.
func NewDriver(kind browser.Kind, opts browser.Options) *Driver {
	return &Driver{
		Kind:     kind,
		Options:  opts,
		elements: make(map[browser.Locator]*Element),
		title:    "Test Page",
		shot:     []byte("\x89PNG\r\n\x1a\nfake"),
	}
}

// AddElement registers a visible, enabled element at loc.
func (d *Driver) AddElement(loc browser.Locator, text string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := &Element{Locator: loc, Displayed: true, Enabled: true, Content: text, d: d}
	d.elements[loc] = el
	return el
}

// RemoveElement detaches the element at loc.
func (d *Driver) RemoveElement(loc browser.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, loc)
}

// OpenAlert shows an alert with the given text.
func (d *Driver) OpenAlert(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alert = &text
}

// SetTitle sets the page title.
func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// Scripts returns the recorded ExecuteScript calls.
func (d *Driver) Scripts() []ScriptCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ScriptCall, len(d.scripts))
	copy(out, d.scripts)
	return out
}

// Quits returns how many times Quit was called.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// AlertsAccepted returns how many alerts were accepted.
func (d *Driver) AlertsAccepted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.accepted
}

// AlertsDismissed returns how many alerts were dismissed.
func (d *Driver) AlertsDismissed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dismissed
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.url = url
	return ctx.Err()
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) FindElement(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.elements[loc]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
	}
	el.lookups++
	if el.lookups <= el.AppearAfter {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
	}
	return el, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts = append(d.scripts, ScriptCall{Script: script, Args: args})
	if d.ScriptErr != nil {
		return nil, d.ScriptErr
	}
	return nil, nil
}

func (d *Driver) AlertText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alert == nil {
		return "", browser.ErrNoAlert
	}
	return *d.alert, nil
}

func (d *Driver) AcceptAlert(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alert == nil {
		return browser.ErrNoAlert
	}
	d.alert = nil
	d.accepted++
	return nil
}

func (d *Driver) DismissAlert(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.alert == nil {
		return browser.ErrNoAlert
	}
	d.alert = nil
	d.dismissed++
	return nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.shot...), nil
}

func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	return d.QuitErr
}

// SetDisplayed changes the element's visibility.
func (e *Element) SetDisplayed(v bool) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.Displayed = v
}

// SetEnabled changes whether the element accepts input.
func (e *Element) SetEnabled(v bool) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.Enabled = v
}

// SetClickErrs scripts the results of the next native clicks.
func (e *Element) SetClickErrs(errs ...error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.ClickErrs = errs
}

// CurrentValue returns the text typed into the element.
func (e *Element) CurrentValue() string {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.Value
}

// Clicks returns how many native clicks were attempted.
func (e *Element) Clicks() int {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.clicks
}

// Lookups returns how many times the element was located.
func (e *Element) Lookups() int {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.lookups
}

func (e *Element) Click(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.clicks++
	if len(e.ClickErrs) > 0 {
		err := e.ClickErrs[0]
		e.ClickErrs = e.ClickErrs[1:]
		return err
	}
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.Value = ""
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	e.Value += text
	return nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.Content, nil
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.Displayed, nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	return e.Enabled, nil
}
