// Package browser captures rendered HTML with headless Chromium.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/ulle78/DeepMSI/internal/artifactserver"
)

// ErrNotInstalled is returned when the playwright driver or Chromium is missing.
var ErrNotInstalled = errors.New("playwright not installed. Run: deepmsi install-browser")

const (
	DefaultScaleFactor   = 2.0
	DefaultViewportWidth = 1024
	defaultTimeout       = 30 * time.Second
	pageFile             = "report.html"
)

// Capturer rasterizes one element of an HTML document into a PNG.
type Capturer interface {
	Capture(ctx context.Context, html []byte, selector string) ([]byte, error)
}

// Options configures a Chromium capture.
type Options struct {
	ScaleFactor   float64
	ViewportWidth int
	Timeout       time.Duration
}

// Chromium is the playwright-backed Capturer.
type Chromium struct {
	opts Options
}

// NewChromium returns a Capturer using opts, filling zero values with defaults.
func NewChromium(opts Options) *Chromium {
	if opts.ScaleFactor <= 0 {
		opts.ScaleFactor = DefaultScaleFactor
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Chromium{opts: opts}
}

// Capture serves html on a loopback port, opens it and screenshots selector.
func (c *Chromium) Capture(ctx context.Context, html []byte, selector string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsAvailable() {
		return nil, ErrNotInstalled
	}

	srv, err := artifactserver.Start(html, pageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}
	defer srv.Stop()

	png, err := c.screenshot(ctx, srv.URL(pageFile), selector)
	if err != nil {
		return nil, fmt.Errorf("failed to capture snapshot: %w", err)
	}
	return png, nil
}

func (c *Chromium) screenshot(ctx context.Context, url, selector string) ([]byte, error) {
	timeout := c.timeout(ctx)

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	defer browser.Close()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		DeviceScaleFactor: playwright.Float(c.opts.ScaleFactor),
		Viewport: &playwright.Size{
			Width:  c.opts.ViewportWidth,
			Height: c.opts.ViewportWidth * 4 / 3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	if _, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(ms(timeout)),
	}); err != nil {
		return nil, fmt.Errorf("could not navigate: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	png, err := page.Locator(selector).Screenshot(playwright.LocatorScreenshotOptions{
		Type:    playwright.ScreenshotTypePng,
		Timeout: playwright.Float(ms(timeout)),
	})
	if err != nil {
		return nil, fmt.Errorf("could not screenshot %s: %w", selector, err)
	}
	return png, nil
}

func (c *Chromium) timeout(ctx context.Context) time.Duration {
	t := c.opts.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < t {
			t = left
		}
	}
	if t < time.Second {
		t = time.Second
	}
	return t
}

func ms(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

// Install downloads the playwright driver and Chromium.
func Install() error {
	return playwright.Install(&playwright.RunOptions{
		Browsers: []string{"chromium"},
	})
}

// IsAvailable checks if playwright browsers are installed.
func IsAvailable() bool {
	pw, err := playwright.Run()
	if err != nil {
		return false
	}
	pw.Stop()
	return true
}
