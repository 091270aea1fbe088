package suite

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Smoke returns checks that hold for any reachable application: the page
// has a title and the browser ended up on the configured host.
func Smoke() []Test {
	return []Test{
		{
			Name:        "Application loads",
			Description: "The application URL renders a page with a title",
			Run: func(ctx context.Context, t *T) error {
				title, err := t.Page.Title(ctx)
				if err != nil {
					return err
				}
				if strings.TrimSpace(title) == "" {
					return fmt.Errorf("page title is empty")
				}
				return t.Log("Page title: " + title)
			},
		},
		{
			Name:        "Application URL",
			Description: "The browser stays on the configured host after loading",
			Run: func(ctx context.Context, t *T) error {
				want, err := url.Parse(t.AppURL)
				if err != nil {
					return Skip("application URL is not a valid URL: " + err.Error())
				}
				current, err := t.Page.CurrentURL(ctx)
				if err != nil {
					return err
				}
				got, err := url.Parse(current)
				if err != nil {
					return fmt.Errorf("browser reported an invalid URL %q: %w", current, err)
				}
				if got.Host != want.Host {
					return fmt.Errorf("expected host %s, browser is on %s", want.Host, got.Host)
				}
				return t.Log("Current URL: " + current)
			},
		},
	}
}
