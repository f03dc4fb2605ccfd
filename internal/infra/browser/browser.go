// Package browser adapts Playwright-driven Chromium to the engine contract
// the instance pool manages. One Engine corresponds to one browser process;
// pages are opened in per-call browser contexts so a reset can wipe all
// accumulated session state without restarting the process.
package browser

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"orderpilot/internal/infra/browserpool"
)

// Config holds launch parameters for new browser instances.
type Config struct {
	// Headless controls whether browsers run without a display.
	// Default: true
	Headless bool

	// LaunchTimeout bounds a single browser launch.
	// Default: 30 seconds
	LaunchTimeout time.Duration

	// StepTimeout is the default timeout applied to page interactions.
	// Default: 10 seconds
	StepTimeout time.Duration

	// ViewportWidth and ViewportHeight size new pages.
	// Default: 1280x800
	ViewportWidth  int
	ViewportHeight int

	// Args is passed through to the Chromium command line.
	Args []string
}

// DefaultConfig returns launch parameters suitable for the admin console
// workflow.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		LaunchTimeout:  30 * time.Second,
		StepTimeout:    10 * time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

// Launcher starts Chromium processes through a shared Playwright driver.
// It implements browserpool.Launcher.
type Launcher struct {
	cfg Config

	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

// NewLauncher creates a launcher with the given launch parameters.
// Start must be called before the first Launch.
func NewLauncher(cfg Config) *Launcher {
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}
	return &Launcher{cfg: cfg}
}

// Start installs browser binaries if needed and boots the Playwright driver.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("start playwright driver: %w", err)
	}

	l.pw = pw
	l.initialized = true
	return nil
}

// Launch implements browserpool.Launcher by starting a Chromium process.
func (l *Launcher) Launch(ctx context.Context) (browserpool.Engine, error) {
	l.mu.Lock()
	pw := l.pw
	initialized := l.initialized
	l.mu.Unlock()

	if !initialized {
		return nil, fmt.Errorf("launcher not started")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := float64(l.cfg.LaunchTimeout.Milliseconds())
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.cfg.Headless),
		Timeout:  playwright.Float(timeout),
		Args:     l.cfg.Args,
	})
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	return &Chrome{browser: b, cfg: l.cfg}, nil
}

// Close stops the Playwright driver. Browsers launched from it must be
// closed first by the pool's shutdown.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.initialized = false
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright driver: %w", err)
	}
	return nil
}

// Chrome is a live Chromium process managed by the pool.
type Chrome struct {
	browser playwright.Browser
	cfg     Config
}

// Connected reports whether the underlying browser process is still attached.
func (c *Chrome) Connected() bool {
	return c.browser.IsConnected()
}

// NewPage opens a page in a fresh browser context.
func (c *Chrome) NewPage() (playwright.Page, error) {
	bctx, err := c.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  c.cfg.ViewportWidth,
			Height: c.cfg.ViewportHeight,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	page.SetDefaultTimeout(float64(c.cfg.StepTimeout.Milliseconds()))
	return page, nil
}

// Reset closes every browser context the instance accumulated, returning the
// process to a clean reusable condition.
func (c *Chrome) Reset(_ context.Context) error {
	var firstErr error
	for _, bctx := range c.browser.Contexts() {
		if err := bctx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close browser context: %w", err)
		}
	}
	return firstErr
}

// Close terminates the browser process.
func (c *Chrome) Close(_ context.Context) error {
	if err := c.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
