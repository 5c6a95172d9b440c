package scrapers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BrowserConfig holds the settings for driving the signed-in browser.
type BrowserConfig struct {
	// URL is opened when a session starts; empty keeps the current page.
	URL string
	// Host is the site the current page must belong to before exporting.
	Host string
	// RemoteURL attaches to an already running Chrome (its DevTools
	// websocket or http endpoint) instead of launching one.
	RemoteURL string
	// ProfileDir keeps cookies between launches so the user stays signed in.
	ProfileDir string
	Headless   bool
	// PageTimeout bounds the wait for the first purchase to appear.
	PageTimeout time.Duration
	// InteractionsPerSecond caps clicks on the page; zero disables the cap.
	InteractionsPerSecond float64
}

// Session is a browser that can be prepared, pointed at the purchase
// history and released.
type Session interface {
	// Initialize starts or attaches to the browser.
	Initialize() error
	// Open navigates to the configured URL and waits until containers
	// matched by selector are present.
	Open(ctx context.Context, selector string) error
	// Close releases the browser.
	Close() error
}

// WithSession runs fn against a freshly initialized and opened session and
// closes it afterwards.
func WithSession[S Session](ctx context.Context, s S, selector string, fn func(S) error) error {
	defer s.Close()

	if err := s.Initialize(); err != nil {
		return err
	}
	if err := s.Open(ctx, selector); err != nil {
		return err
	}
	return fn(s)
}

// BaseScraper holds the chromedp contexts shared by browser sessions.
type BaseScraper struct {
	Ctx         context.Context
	Cancel      context.CancelFunc
	AllocCancel context.CancelFunc
	Config      *BrowserConfig
	Logger      *zap.SugaredLogger
}

// Close cancels the tab and allocator contexts.
func (b *BaseScraper) Close() error {
	if b.Cancel != nil {
		b.Cancel()
	}
	if b.AllocCancel != nil {
		b.AllocCancel()
	}
	return nil
}
