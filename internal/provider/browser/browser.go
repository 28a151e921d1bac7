// Package browser owns headless Chrome sessions for adapters that scrape
// JavaScript-rendered pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/chromedp/chromedp"

	"github.com/justestif/artist-pulse/internal/provider"
)

// ErrDisabled is returned when browser scraping is turned off in config.
var ErrDisabled = errors.New("headless browser disabled")

// Config controls the Chrome allocator.
type Config struct {
	Enabled     bool
	ExecPath    string // empty uses chromedp's lookup
	MaxSessions int
}

// Browser hands out isolated tabs, each backed by its own Chrome process.
type Browser struct {
	enabled bool
	sem     chan struct{}
	active  atomic.Int32

	newAllocator func(ctx context.Context) (context.Context, context.CancelFunc)
	newTab       func(ctx context.Context) (context.Context, context.CancelFunc)
}

// New creates a Browser from cfg.
func New(cfg Config) *Browser {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 2
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(provider.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	return &Browser{
		enabled: cfg.Enabled,
		sem:     make(chan struct{}, cfg.MaxSessions),
		newAllocator: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return chromedp.NewExecAllocator(ctx, opts...)
		},
		newTab: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return chromedp.NewContext(ctx)
		},
	}
}

// Session runs fn in a fresh tab. The tab and its Chrome process are
// released when Session returns, whether fn succeeds, fails, times out or
// panics.
func (b *Browser) Session(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.enabled {
		return ErrDisabled
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-b.sem }()

	b.active.Add(1)
	defer b.active.Add(-1)

	allocCtx, cancelAlloc := b.newAllocator(ctx)
	defer cancelAlloc()

	tabCtx, cancelTab := b.newTab(allocCtx)
	defer cancelTab()

	return fn(tabCtx)
}

// Active returns the number of open sessions.
func (b *Browser) Active() int {
	return int(b.active.Load())
}

// RenderHTML navigates to pageURL, waits until waitSelector is visible and
// returns the rendered document.
func (b *Browser) RenderHTML(ctx context.Context, pageURL, waitSelector string) (string, error) {
	var doc string
	err := b.Session(ctx, func(ctx context.Context) error {
		return chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
			chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
		)
	})
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", pageURL, err)
	}
	return doc, nil
}
