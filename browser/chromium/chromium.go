// Package chromium drives Chrome and Chromium over the DevTools protocol
// using chromedp.
package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/internal/js"
)

// Driver is a browser.Driver backed by a chromedp tab.
type Driver struct {
	opts browser.Options

	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	mu     sync.Mutex
	dialog *page.EventJavascriptDialogOpening
}

// AllocatorOptions translates launch settings into chromedp allocator options.
func AllocatorOptions(opts browser.Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	if opts.Headless {
		out = append(out, chromedp.Flag("headless", "new"), chromedp.WindowSize(1920, 1080))
	} else {
		out = append(out, chromedp.Flag("headless", false))
		if opts.Maximize {
			out = append(out, chromedp.Flag("start-maximized", true))
		}
	}

	for _, arg := range opts.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "headless" {
			continue
		}
		if hasValue {
			out = append(out, chromedp.Flag(name, value))
		} else {
			out = append(out, chromedp.Flag(name, true))
		}
	}

	if opts.Binary != "" {
		out = append(out, chromedp.ExecPath(opts.Binary))
	}
	return out
}

// New launches a browser and opens its first tab. The browser outlives ctx;
// it is released by Quit.
func New(ctx context.Context, opts browser.Options) (*Driver, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(opts)...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	d := &Driver{
		opts:        opts,
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}

	chromedp.ListenTarget(tab, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			d.setDialog(e)
		case *page.EventJavascriptDialogClosed:
			d.setDialog(nil)
		}
	})

	// The first Run starts the browser and must use the tab context itself.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tab) }()
	select {
	case err := <-started:
		if err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("failed to start chromium: %w", err)
		}
	case <-ctx.Done():
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chromium: %w", ctx.Err())
	}

	return d, nil
}

// Options returns the launch settings the driver was created with.
func (d *Driver) Options() browser.Options { return d.opts }

func (d *Driver) setDialog(e *page.EventJavascriptDialogOpening) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialog = e
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.tab)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		// the linked cancel can win the race against the deadline
		return ctx.Err()
	}
	return classify(err)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if d.opts.PageLoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.PageLoadTimeout)
		defer cancel()
	}
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, chromedp.Title(&title))
	return title, err
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := d.run(ctx, chromedp.Location(&url))
	return url, err
}

func query(loc browser.Locator) (string, chromedp.QueryOption) {
	switch loc.By {
	case browser.ByXPath:
		return loc.Value, chromedp.BySearch
	case browser.ByID:
		return loc.Value, chromedp.ByID
	default:
		return loc.Value, chromedp.ByQuery
	}
}

func (d *Driver) FindElement(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	sel, by := query(loc)
	var nodes []*cdp.Node

	if d.opts.ImplicitWait <= 0 {
		if err := d.run(ctx, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0))); err != nil {
			return nil, err
		}
	} else {
		waitCtx, cancel := context.WithTimeout(ctx, d.opts.ImplicitWait)
		defer cancel()
		err := d.run(waitCtx, chromedp.Nodes(sel, &nodes, by))
		if err != nil && (ctx.Err() != nil || !errors.Is(err, context.DeadlineExceeded)) {
			return nil, err
		}
	}

	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, loc)
	}
	return &element{d: d, node: nodes[0]}, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	var raw []byte

	if len(args) > 0 {
		if el, ok := args[0].(*element); ok {
			if err := el.call(ctx, js.OnElement(script), &raw, args[1:]...); err != nil {
				return nil, err
			}
			return decode(raw)
		}
	}

	if args == nil {
		args = []interface{}{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode script arguments: %w", err)
	}
	if err := d.run(ctx, chromedp.Evaluate(js.Evaluate(script, string(argsJSON)), &raw)); err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw []byte) (interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode script result: %w", err)
	}
	return out, nil
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
	if err := d.run(ctx, page.HandleJavaScriptDialog(accept)); err != nil {
		return fmt.Errorf("failed to handle dialog: %w", err)
	}
	d.setDialog(nil)
	return nil
}

func (d *Driver) AcceptAlert(ctx context.Context) error { return d.handleDialog(ctx, true) }

func (d *Driver) DismissAlert(ctx context.Context) error { return d.handleDialog(ctx, false) }

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) Quit(ctx context.Context) error {
	defer d.cancelAlloc()
	defer d.cancelTab()
	return chromedp.Cancel(d.tab)
}

// classify maps protocol failures onto the browser error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Could not find node"),
		strings.Contains(msg, "Node is detached"):
		return fmt.Errorf("%w: %v", browser.ErrStaleElement, err)
	case strings.Contains(msg, "No dialog is showing"):
		return fmt.Errorf("%w: %v", browser.ErrNoAlert, err)
	default:
		return err
	}
}

type element struct {
	d    *Driver
	node *cdp.Node
}

// onObject targets a function call at a resolved remote object.
func onObject(id runtime.RemoteObjectID) chromedp.CallOption {
	return func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
		return p.WithObjectID(id)
	}
}

// callOnNode runs fn with the node as this.
func callOnNode(nodeID cdp.NodeID, fn string, res interface{}, args ...interface{}) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(nodeID).Do(ctx)
		if err != nil {
			return err
		}
		if err := chromedp.CallFunctionOn(fn, res, onObject(obj.ObjectID), args...).Do(ctx); err != nil {
			return err
		}
		// fails once the page navigated away, which is fine
		_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		return nil
	})
}

func (e *element) call(ctx context.Context, fn string, res interface{}, args ...interface{}) error {
	return e.d.run(ctx, callOnNode(e.node.NodeID, fn, res, args...))
}

func (e *element) Click(ctx context.Context) error {
	if err := e.d.run(ctx, dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID)); err != nil {
		return err
	}

	var blocker string
	if err := e.call(ctx, js.InterceptedBy, &blocker); err != nil {
		return err
	}
	if blocker != "" {
		return fmt.Errorf("%w: click would be received by %s", browser.ErrClickIntercepted, blocker)
	}

	return e.d.run(ctx, chromedp.MouseClickNode(e.node))
}

func (e *element) Clear(ctx context.Context) error {
	return e.call(ctx, js.Clear, nil)
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.d.run(ctx, chromedp.SendKeys([]cdp.NodeID{e.node.NodeID}, text, chromedp.ByNodeID))
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	err := e.call(ctx, js.Text, &text)
	return text, err
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	var visible bool
	err := e.call(ctx, js.Displayed, &visible)
	return visible, err
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, js.Enabled, &enabled)
	return enabled, err
}
