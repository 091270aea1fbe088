// Package interaction performs waits and user actions against a browser
// session. Page objects hold a *Page and express their flows through it.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

const (
	scriptClick  = "arguments[0].click();"
	scriptScroll = "arguments[0].scrollIntoView(true);"
)

// Wait conditions.
const (
	Present   = "present"
	Visible   = "visible"
	Clickable = "clickable"
	AlertOpen = "open"
)

// Settings control a Page's waits and side outputs.
type Settings struct {
	// Timeout bounds every wait.
	Timeout time.Duration
	// PollInterval is the delay between condition checks.
	PollInterval time.Duration

	Screenshots *storage.LocalStore
	Metrics     *metrics.Collector
	Logger      logger.Logger
}

// SettingsFrom reads the wait settings from cfg.
func SettingsFrom(cfg *config.Config) (Settings, error) {
	timeout, err := cfg.ExplicitWait()
	if err != nil {
		return Settings{}, err
	}
	interval, err := cfg.PollInterval()
	if err != nil {
		return Settings{}, err
	}
	return Settings{Timeout: timeout, PollInterval: interval}, nil
}

// Page wraps a driver with bounded waits and resilient actions.
type Page struct {
	driver   browser.Driver
	timeout  time.Duration
	interval time.Duration
	shots    *storage.LocalStore
	metrics  *metrics.Collector
	logger   logger.Logger
	now      func() time.Time
}

// NewPage creates a Page over driver.
func NewPage(driver browser.Driver, s Settings) *Page {
	if s.Timeout <= 0 {
		s.Timeout = 20 * time.Second
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 250 * time.Millisecond
	}
	log := s.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Page{
		driver:   driver,
		timeout:  s.Timeout,
		interval: s.PollInterval,
		shots:    s.Screenshots,
		metrics:  s.Metrics,
		logger:   log,
		now:      time.Now,
	}
}

// Driver returns the underlying driver.
func (p *Page) Driver() browser.Driver { return p.driver }

func retryable(err error) bool {
	return errors.Is(err, browser.ErrNoSuchElement) ||
		errors.Is(err, browser.ErrStaleElement) ||
		errors.Is(err, browser.ErrNoAlert) ||
		errors.Is(err, errNotReady) ||
		errors.Is(err, context.DeadlineExceeded)
}

// poll runs check until it succeeds, fails permanently, or the page
// timeout expires.
func (p *Page) poll(ctx context.Context, loc browser.Locator, condition string, check func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var last error
	permanent := false
	op := func() error {
		err := check(ctx)
		if err == nil {
			return nil
		}
		last = err
		if retryable(err) || ctx.Err() != nil {
			return err
		}
		permanent = true
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.NewConstantBackOff(p.interval), ctx))
	if err == nil {
		return nil
	}
	if permanent {
		return fmt.Errorf("failed waiting for %s to be %s: %w", loc, condition, last)
	}
	p.metrics.WaitTimeout(condition)
	return &LocatorTimeoutError{Locator: loc, Condition: condition, Timeout: p.timeout, Err: last}
}

func (p *Page) waitFor(ctx context.Context, loc browser.Locator, condition string, ready func(ctx context.Context, el browser.Element) (bool, error)) (browser.Element, error) {
	var found browser.Element
	err := p.poll(ctx, loc, condition, func(ctx context.Context) error {
		el, err := p.driver.FindElement(ctx, loc)
		if err != nil {
			return err
		}
		if ready != nil {
			ok, err := ready(ctx, el)
			if err != nil {
				return err
			}
			if !ok {
				return errNotReady
			}
		}
		found = el
		return nil
	})
	return found, err
}

// WaitPresent waits until loc matches an element in the document.
func (p *Page) WaitPresent(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	return p.waitFor(ctx, loc, Present, nil)
}

// WaitVisible waits until loc matches a displayed element.
func (p *Page) WaitVisible(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	return p.waitFor(ctx, loc, Visible, func(ctx context.Context, el browser.Element) (bool, error) {
		return el.IsDisplayed(ctx)
	})
}

// WaitClickable waits until loc matches a displayed and enabled element.
func (p *Page) WaitClickable(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	return p.waitFor(ctx, loc, Clickable, func(ctx context.Context, el browser.Element) (bool, error) {
		shown, err := el.IsDisplayed(ctx)
		if err != nil || !shown {
			return false, err
		}
		return el.IsEnabled(ctx)
	})
}

// WaitAlert waits for an alert and returns its text.
func (p *Page) WaitAlert(ctx context.Context) (string, error) {
	var text string
	err := p.poll(ctx, browser.Locator{}, AlertOpen, func(ctx context.Context) error {
		t, err := p.driver.AlertText(ctx)
		if err != nil {
			return err
		}
		text = t
		return nil
	})
	return text, err
}

// Click waits for loc to be clickable and clicks it. When another element
// intercepts the click, the element is located again and clicked once by
// script. A failed fallback is reported as a LocatorTimeoutError.
func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	el, err := p.WaitClickable(ctx, loc)
	if err != nil {
		return err
	}

	err = el.Click(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, browser.ErrClickIntercepted) {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}

	p.logger.Warn(ctx, "click intercepted, clicking by script", map[string]interface{}{
		"locator": loc.String(),
		"error":   err.Error(),
	})

	if err := p.clickByScript(ctx, loc); err != nil {
		p.metrics.ClickFallback(false)
		return &LocatorTimeoutError{Locator: loc, Condition: Clickable, Timeout: p.timeout, Err: err}
	}
	p.metrics.ClickFallback(true)
	return nil
}

func (p *Page) clickByScript(ctx context.Context, loc browser.Locator) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	el, err := p.driver.FindElement(ctx, loc)
	if err != nil {
		return err
	}
	_, err = p.driver.ExecuteScript(ctx, scriptClick, el)
	return err
}

// EnterText waits for loc to be visible, clears it and types text.
func (p *Page) EnterText(ctx context.Context, loc browser.Locator, text string) error {
	el, err := p.WaitVisible(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear %s: %w", loc, err)
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("failed to type into %s: %w", loc, err)
	}
	return nil
}

// Text waits for loc to be visible and returns its text.
func (p *Page) Text(ctx context.Context, loc browser.Locator) (string, error) {
	el, err := p.WaitVisible(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", loc, err)
	}
	return text, nil
}

// IsDisplayed reports whether loc currently matches a displayed element.
// It does not wait beyond the driver's implicit wait, and any lookup
// failure counts as not displayed.
func (p *Page) IsDisplayed(ctx context.Context, loc browser.Locator) bool {
	el, err := p.driver.FindElement(ctx, loc)
	if err != nil {
		return false
	}
	shown, err := el.IsDisplayed(ctx)
	return err == nil && shown
}

// ScrollIntoView scrolls the element matched by loc to the top of the viewport.
func (p *Page) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	el, err := p.WaitPresent(ctx, loc)
	if err != nil {
		return err
	}
	if _, err := p.driver.ExecuteScript(ctx, scriptScroll, el); err != nil {
		return fmt.Errorf("failed to scroll to %s: %w", loc, err)
	}
	return nil
}

// AcceptAlert waits for an alert and accepts it.
func (p *Page) AcceptAlert(ctx context.Context) error {
	if _, err := p.WaitAlert(ctx); err != nil {
		return err
	}
	if err := p.driver.AcceptAlert(ctx); err != nil {
		return fmt.Errorf("failed to accept alert: %w", err)
	}
	return nil
}

// DismissAlert waits for an alert and dismisses it.
func (p *Page) DismissAlert(ctx context.Context) error {
	if _, err := p.WaitAlert(ctx); err != nil {
		return err
	}
	if err := p.driver.DismissAlert(ctx); err != nil {
		return fmt.Errorf("failed to dismiss alert: %w", err)
	}
	return nil
}

// AlertText waits for an alert and returns its message.
func (p *Page) AlertText(ctx context.Context) (string, error) {
	return p.WaitAlert(ctx)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.driver.Navigate(ctx, url)
}

func (p *Page) Title(ctx context.Context) (string, error) {
	title, err := p.driver.Title(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read page title: %w", err)
	}
	return title, nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	url, err := p.driver.CurrentURL(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read current url: %w", err)
	}
	return url, nil
}
