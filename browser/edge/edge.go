// Package edge drives Microsoft Edge over the DevTools protocol using rod.
package edge

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/internal/js"
)

// binaries are the executable names Edge is installed under.
var binaries = []string{"microsoft-edge", "microsoft-edge-stable", "msedge"}

// ErrBinaryNotFound is returned when no Edge executable can be located.
var ErrBinaryNotFound = errors.New("edge binary not found")

// Driver is a browser.Driver backed by a rod page.
type Driver struct {
	opts     browser.Options
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	mu     sync.Mutex
	dialog *proto.PageJavascriptDialogOpening
}

// Binary resolves the Edge executable, preferring opts.Binary.
func Binary(opts browser.Options) (string, error) {
	if opts.Binary != "" {
		return opts.Binary, nil
	}
	for _, name := range binaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", ErrBinaryNotFound
}

// Launcher builds the process launcher for opts.
func Launcher(bin string, opts browser.Options) *launcher.Launcher {
	l := launcher.New().Bin(bin).Headless(opts.Headless).Leakless(false)
	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "headless" {
			continue
		}
		if hasValue {
			l = l.Set(flags.Flag(name), value)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	if opts.Headless {
		l = l.Set(flags.Flag("window-size"), "1920,1080")
	}
	return l
}

// New launches Edge and opens a blank page.
func New(ctx context.Context, opts browser.Options) (*Driver, error) {
	bin, err := Binary(opts)
	if err != nil {
		return nil, err
	}

	l := Launcher(bin, opts)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch edge: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to edge: %w", err)
	}

	p, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		b.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	d := &Driver{opts: opts, launcher: l, browser: b, page: p.Context(context.Background())}

	go d.page.EachEvent(
		func(e *proto.PageJavascriptDialogOpening) { d.setDialog(e) },
		func(e *proto.PageJavascriptDialogClosed) { d.setDialog(nil) },
	)()

	if opts.Maximize && !opts.Headless {
		if err := d.maximize(); err != nil {
			d.Quit(ctx)
			return nil, err
		}
	}

	return d, nil
}

func (d *Driver) maximize() error {
	win, err := proto.BrowserGetWindowForTarget{}.Call(d.page)
	if err != nil {
		return fmt.Errorf("failed to look up window: %w", err)
	}
	err = proto.BrowserSetWindowBounds{
		WindowID: win.WindowID,
		Bounds:   &proto.BrowserBounds{WindowState: proto.BrowserWindowStateMaximized},
	}.Call(d.page)
	if err != nil {
		return fmt.Errorf("failed to maximize window: %w", err)
	}
	return nil
}

func (d *Driver) setDialog(e *proto.PageJavascriptDialogOpening) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialog = e
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if d.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.PageLoadTimeout)
		defer cancel()
	}
	p := d.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, classify(err))
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, classify(err))
	}
	return nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", classify(err)
	}
	return info.Title, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", classify(err)
	}
	return info.URL, nil
}

func (d *Driver) FindElement(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	var (
		el  *rod.Element
		err error
	)

	if d.opts.ImplicitWait <= 0 {
		var found bool
		if sel, ok := loc.CSSSelector(); ok {
			found, el, err = d.page.Context(ctx).Has(sel)
		} else {
			found, el, err = d.page.Context(ctx).HasX(loc.Value)
		}
		if err == nil && !found {
			err = fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, d.opts.ImplicitWait)
		defer cancel()
		p := d.page.Context(waitCtx)
		if sel, ok := loc.CSSSelector(); ok {
			el, err = p.Element(sel)
		} else {
			el, err = p.ElementX(loc.Value)
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
		}
	}

	if err != nil {
		return nil, classify(err)
	}
	return &element{el: el}, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	var (
		res *proto.RuntimeRemoteObject
		err error
	)

	if len(args) > 0 {
		if el, ok := args[0].(*element); ok {
			res, err = el.el.Context(ctx).Eval(js.OnElement(script), args[1:]...)
			if err != nil {
				return nil, classify(err)
			}
			return res.Value.Val(), nil
		}
	}

	res, err = d.page.Context(ctx).Eval(js.Standalone(script), args...)
	if err != nil {
		return nil, classify(err)
	}
	return res.Value.Val(), nil
}

func (d *Driver) AlertText(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialog == nil {
		return "", browser.ErrNoAlert
	}
	return d.dialog.Message, nil
}

func (d *Driver) handleDialog(ctx context.Context, accept bool) error {
	if _, err := d.AlertText(ctx); err != nil {
		return err
	}
	if err := (proto.PageHandleJavaScriptDialog{Accept: accept}).Call(d.page.Context(ctx)); err != nil {
		return fmt.Errorf("failed to handle dialog: %w", classify(err))
	}
	d.setDialog(nil)
	return nil
}

func (d *Driver) AcceptAlert(ctx context.Context) error { return d.handleDialog(ctx, true) }

func (d *Driver) DismissAlert(ctx context.Context) error { return d.handleDialog(ctx, false) }

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	png, err := d.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", classify(err))
	}
	return png, nil
}

func (d *Driver) Quit(ctx context.Context) error {
	err := d.browser.Close()
	d.launcher.Kill()
	d.launcher.Cleanup()
	return err
}

// classify maps protocol failures onto the browser error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Could not find node"),
		strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Cannot find context with specified id"),
		strings.Contains(msg, "Node is detached"):
		return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
	case strings.Contains(msg, "No dialog is showing"):
		return fmt.Errorf("%w: %v", browser.ErrNoAlert, err)
	default:
		return err
	}
}

type element struct {
	el *rod.Element
}

func (e *element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return classify(err)
	}

	res, err := el.Eval(js.InterceptedBy)
	if err != nil {
		return classify(err)
	}
	if blocker := res.Value.Str(); blocker != "" {
		return fmt.Errorf("%w: click would be received by %s", browser.ErrClickIntercepted, blocker)
	}

	return classify(el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *element) Clear(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(js.Clear)
	return classify(err)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return classify(e.el.Context(ctx).Input(text))
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, classify(err)
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	visible, err := e.el.Context(ctx).Visible()
	return visible, classify(err)
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	disabled, err := e.el.Context(ctx).Disabled()
	return !disabled, classify(err)
}
