// Package headless renders listing pages in headless Chrome before they are parsed.
//
// The catalog listing filters programs client-side, so a rendered DOM can carry items
// that a plain GET does not.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

const (
	defaultNavigationTimeout = 45 * time.Second
	defaultWaitSelector      = "body"
	defaultSettle            = 500 * time.Millisecond
)

// Config controls the renderer.
type Config struct {
	// MaxParallel caps concurrent renders; zero means unbounded.
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitSelector is awaited before the DOM is captured.
	WaitSelector string
	// Settle is an extra pause after WaitSelector appears so client-side filters can run.
	Settle time.Duration
}

// page is the DOM snapshot of one navigation.
type page struct {
	html   string
	url    string
	status int
}

type renderFunc func(ctx context.Context, request catalog.FetchRequest) (page, error)

// Renderer implements catalog.Fetcher by rendering each URL in a fresh browser tab.
type Renderer struct {
	cfg    Config
	slots  *semaphore.Weighted
	render renderFunc

	allocator   context.Context
	allocCancel context.CancelFunc
}

// New builds a chromedp-backed renderer. Chrome is launched on the first render.
func New(cfg Config) (*Renderer, error) {
	r, err := newRenderer(cfg, nil)
	if err != nil {
		return nil, err
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	r.allocator, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.render = r.renderChrome
	return r, nil
}

func newRenderer(cfg Config, render renderFunc) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = defaultWaitSelector
	}
	if cfg.Settle <= 0 {
		cfg.Settle = defaultSettle
	}
	r := &Renderer{cfg: cfg, render: render, allocCancel: func() {}}
	if cfg.MaxParallel > 0 {
		r.slots = semaphore.NewWeighted(int64(cfg.MaxParallel))
	}
	return r, nil
}

// Close shuts down the browser.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Fetch renders request.URL and returns the DOM as the response body.
// The status is that of the top-level document, or 200 when Chrome reported none.
func (r *Renderer) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	if r.slots != nil {
		if err := r.slots.Acquire(ctx, 1); err != nil {
			return catalog.FetchResponse{}, fmt.Errorf("wait for render slot: %w", err)
		}
		defer r.slots.Release(1)
	}

	start := time.Now()
	p, err := r.render(ctx, request)
	if err != nil {
		return catalog.FetchResponse{}, fmt.Errorf("render %s: %w", request.URL, err)
	}
	if p.url == "" {
		p.url = request.URL
	}
	if p.status == 0 {
		p.status = http.StatusOK
	}
	return catalog.FetchResponse{
		URL:        p.url,
		StatusCode: p.status,
		Headers:    http.Header{"Content-Type": {"text/html; charset=utf-8"}},
		Body:       []byte(p.html),
		Duration:   time.Since(start),
	}, nil
}

func (r *Renderer) renderChrome(ctx context.Context, request catalog.FetchRequest) (page, error) {
	tabCtx, closeTab := chromedp.NewContext(r.allocator)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, r.cfg.NavigationTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		status int
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		resp, ok := ev.(*network.EventResponseReceived)
		if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
			return
		}
		mu.Lock()
		status = int(resp.Response.Status)
		mu.Unlock()
	})

	var p page
	err := chromedp.Run(tabCtx,
		r.setup(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(r.cfg.WaitSelector, chromedp.ByQuery),
		chromedp.Sleep(r.cfg.Settle),
		chromedp.Location(&p.url),
		chromedp.OuterHTML("html", &p.html, chromedp.ByQuery),
	)
	if err != nil {
		return page{}, fmt.Errorf("chromedp run: %w", err)
	}
	mu.Lock()
	p.status = status
	mu.Unlock()
	return p, nil
}

func (r *Renderer) setup(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if extra := networkHeaders(headers); len(extra) > 0 {
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// networkHeaders folds repeated values into one comma-separated header, as HTTP allows.
func networkHeaders(h http.Header) network.Headers {
	out := network.Headers{}
	for key, values := range h {
		if len(values) > 0 {
			out[key] = strings.Join(values, ", ")
		}
	}
	return out
}
