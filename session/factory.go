package session

import (
	"context"
	"fmt"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/chromium"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/edge"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser/gecko"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
)

// Factory creates browser drivers.
type Factory interface {
	NewDriver(ctx context.Context, kind browser.Kind, opts browser.Options) (browser.Driver, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, kind browser.Kind, opts browser.Options) (browser.Driver, error)

func (f FactoryFunc) NewDriver(ctx context.Context, kind browser.Kind, opts browser.Options) (browser.Driver, error) {
	return f(ctx, kind, opts)
}

// DefaultFactory launches real browsers through the engine packages.
var DefaultFactory Factory = FactoryFunc(newDriver)

func newDriver(ctx context.Context, kind browser.Kind, opts browser.Options) (browser.Driver, error) {
	switch kind {
	case browser.KindChromium:
		d, err := chromium.New(ctx, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case browser.KindGecko:
		d, err := gecko.New(ctx, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	case browser.KindEdge:
		d, err := edge.New(ctx, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %s", browser.ErrUnsupportedBrowser, kind)
	}
}

// OptionsFor derives the launch options for kind from cfg.
func OptionsFor(kind browser.Kind, cfg *config.Config) (browser.Options, error) {
	var (
		opts browser.Options
		err  error
	)

	if opts.Headless, err = cfg.Headless(); err != nil {
		return opts, err
	}
	if opts.Maximize, err = cfg.Maximize(); err != nil {
		return opts, err
	}
	if opts.ImplicitWait, err = cfg.ImplicitWait(); err != nil {
		return opts, err
	}
	if opts.PageLoadTimeout, err = cfg.PageLoadTimeout(); err != nil {
		return opts, err
	}

	switch kind {
	case browser.KindChromium, browser.KindEdge:
		opts.Args = append([]string{}, browser.StabilityArgs...)
		if opts.Headless {
			opts.Args = append(opts.Args, "--headless=new")
		}
		if kind == browser.KindChromium {
			opts.Binary = cfg.GetOr(config.KeyChromeBinary, "")
		} else {
			opts.Binary = cfg.GetOr(config.KeyEdgeBinary, "")
		}
	case browser.KindGecko:
		opts.Prefs = make(map[string]interface{}, len(browser.StabilityPrefs))
		for k, v := range browser.StabilityPrefs {
			opts.Prefs[k] = v
		}
		if opts.Headless {
			opts.Args = []string{"-headless"}
		}
		opts.RemoteURL = cfg.GetOr(config.KeyGeckoDriverURL, gecko.DefaultURL)
	default:
		return opts, fmt.Errorf("%w: %s", browser.ErrUnsupportedBrowser, kind)
	}

	return opts, nil
}
