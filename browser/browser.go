// Package browser defines the driver abstraction the harness orchestrates:
// locating elements, dispatching input, executing injected script and
// handling alerts. Engine specific implementations live in subpackages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnsupportedBrowser is returned for browser names outside the supported engines.
	ErrUnsupportedBrowser = errors.New("unsupported browser")

	// ErrNoSuchElement is returned when a locator matches nothing.
	ErrNoSuchElement = errors.New("no such element")

	// ErrStaleElement is returned when an element is no longer attached to the document.
	ErrStaleElement = errors.New("stale element reference")

	// ErrClickIntercepted is returned when another element would receive the click.
	ErrClickIntercepted = errors.New("element click intercepted")

	// ErrNoAlert is returned when no alert is open.
	ErrNoAlert = errors.New("no such alert")
)

// Kind enumerates the supported browser engines.
type Kind int

const (
	// KindChromium covers Chrome and Chromium.
	KindChromium Kind = iota + 1
	// KindGecko covers Firefox.
	KindGecko
	// KindEdge covers Microsoft Edge.
	KindEdge
)

func (k Kind) String() string {
	switch k {
	case KindChromium:
		return "chrome"
	case KindGecko:
		return "firefox"
	case KindEdge:
		return "edge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind maps a configured browser name to its engine.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome", "chromium":
		return KindChromium, nil
	case "firefox", "gecko":
		return KindGecko, nil
	case "edge", "msedge", "webkit":
		return KindEdge, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedBrowser, name)
	}
}

// Options are the launch settings applied when a driver is created.
type Options struct {
	Headless        bool
	Args            []string
	Prefs           map[string]interface{}
	ImplicitWait    time.Duration
	PageLoadTimeout time.Duration
	Maximize        bool

	// Binary overrides the browser executable.
	Binary string
	// RemoteURL is the WebDriver endpoint for engines driven over HTTP.
	RemoteURL string
}

// HasArg reports whether arg was passed to the browser.
func (o Options) HasArg(arg string) bool {
	for _, a := range o.Args {
		if a == arg {
			return true
		}
	}
	return false
}

// StabilityArgs are the flags passed to every chromium-based browser.
var StabilityArgs = []string{
	"--disable-notifications",
	"--disable-popup-blocking",
	"--remote-allow-origins=*",
	"--disable-dev-shm-usage",
	"--no-sandbox",
	"--disable-extensions",
	"--disable-gpu",
	"--disable-infobars",
}

// StabilityPrefs are the preferences passed to gecko browsers.
var StabilityPrefs = map[string]interface{}{
	"dom.webnotifications.enabled": false,
	"dom.disable_open_during_load": false,
	"dom.push.enabled":             false,
	"extensions.enabledScopes":     0,
	"layers.acceleration.disabled": true,
}

// Driver is one live browser instance.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)

	// FindElement returns the first element matching loc, waiting at most
	// the implicit wait. It returns ErrNoSuchElement when nothing matches.
	FindElement(ctx context.Context, loc Locator) (Element, error)

	// ExecuteScript runs script as a function body. Arguments are exposed
	// through the arguments object; Element arguments are passed as DOM nodes.
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error)

	// AlertText returns the message of the open alert, or ErrNoAlert.
	AlertText(ctx context.Context) (string, error)
	AcceptAlert(ctx context.Context) error
	DismissAlert(ctx context.Context) error

	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)

	// Quit closes the browser and releases its resources.
	Quit(ctx context.Context) error
}

// Element is a handle to one DOM element.
type Element interface {
	// Click dispatches a native click. It returns ErrClickIntercepted when
	// another element sits on top of the target's click point.
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Text(ctx context.Context) (string, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
}
