package interaction

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SanitizeName replaces every character that is not a letter or digit.
func SanitizeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// Screenshot captures the viewport as {name}_{yyyyMMdd_HHmmss}.png in the
// screenshot store and returns its absolute path. A second capture within
// the same second gets a _2, _3, ... suffix instead of overwriting.
func (p *Page) Screenshot(ctx context.Context, testName string) (string, error) {
	if p.shots == nil {
		return "", ErrNoScreenshotStore
	}
	stem := SanitizeName(testName) + "_" + p.now().Format("20060102_150405")
	file := stem + ".png"
	for n := 2; ; n++ {
		taken, err := p.shots.Exists(ctx, file)
		if err != nil {
			return "", fmt.Errorf("failed to check screenshot name: %w", err)
		}
		if !taken {
			break
		}
		file = fmt.Sprintf("%s_%d.png", stem, n)
	}
	return p.capture(ctx, file)
}

// ScreenshotAs captures the viewport as {name}.png.
func (p *Page) ScreenshotAs(ctx context.Context, name string) (string, error) {
	return p.capture(ctx, name+".png")
}

func (p *Page) capture(ctx context.Context, file string) (string, error) {
	if p.shots == nil {
		return "", ErrNoScreenshotStore
	}

	png, err := p.driver.Screenshot(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := p.shots.Put(ctx, file, bytes.NewReader(png)); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	return p.shots.Locate(ctx, file)
}
