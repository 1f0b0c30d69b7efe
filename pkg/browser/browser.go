// Package browser captures live pages through Chrome: layout, visibility,
// open shadow roots and same-origin frames are serialized into a
// dom.Snapshot, and captured elements can be scrolled into view later.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dtnitsch/web-locator/pkg/dom"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"
)

// ErrNotCaptured is returned when a node has no live counterpart.
var ErrNotCaptured = errors.New("browser: node was not captured")

// Config configures live capture.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome.
	RemoteURL string
	Headless  bool
	Timeout   time.Duration
	Width     int
	Height    int
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 800
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Capturer owns one Chrome connection and the page last captured.
type Capturer struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

// New returns a Capturer. Chrome starts on the first Capture.
func New(cfg Config) *Capturer {
	cfg.defaults()
	return &Capturer{cfg: cfg}
}

// Capture navigates to pageURL and snapshots the rendered page.
func (c *Capturer) Capture(ctx context.Context, pageURL string) (*dom.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(); err != nil {
		return nil, err
	}
	if c.page != nil {
		c.page.Close()
		c.page = nil
	}

	page, err := stealth.Page(c.browser)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.Width,
		Height:            c.cfg.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		c.cfg.Logger.Warn("browser: set viewport failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		c.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	res, err := page.Context(navCtx).Eval(captureScript)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: capture %s: %w", pageURL, err)
	}

	var snap dom.Snapshot
	if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: decode snapshot: %w", err)
	}
	c.page = page
	c.cfg.Logger.Info("browser: captured page", "url", snap.URL, "scroll_height", snap.ScrollHeight)
	return &snap, nil
}

// Scroller returns a scroll-into-view hook for a document built from the
// last capture.
func (c *Capturer) Scroller(doc *dom.Document) *Scroller {
	return &Scroller{c: c, doc: doc}
}

// Close shuts Chrome down.
func (c *Capturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page != nil {
		c.page.Close()
		c.page = nil
	}
	if c.browser != nil {
		c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return nil
}

func (c *Capturer) connect() error {
	if c.browser != nil {
		return nil
	}

	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(c.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		c.lnch = l
		c.cfg.Logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		c.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		c.cfg.Logger.Warn("browser: ignore cert errors failed", "error", err)
	}
	c.browser = b
	return nil
}

// Scroller scrolls captured elements into view in the live page.
type Scroller struct {
	c   *Capturer
	doc *dom.Document
}

// ScrollIntoView scrolls the live counterpart of n into view.
func (s *Scroller) ScrollIntoView(n *html.Node) error {
	idx, ok := s.doc.CaptureIndex(n)
	if !ok {
		return ErrNotCaptured
	}

	s.c.mu.Lock()
	page := s.c.page
	s.c.mu.Unlock()
	if page == nil {
		return ErrNotCaptured
	}

	res, err := page.Timeout(s.c.cfg.Timeout).Eval(scrollScript, idx)
	if err != nil {
		return fmt.Errorf("browser: scroll into view: %w", err)
	}
	if !res.Value.Bool() {
		return ErrNotCaptured
	}
	return nil
}
