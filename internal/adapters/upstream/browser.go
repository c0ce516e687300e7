package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"

	"xdownloader/pkg/log"
)

// BrowserConfig selects how Chrome is obtained.
type BrowserConfig struct {
	// ExecPath overrides the local Chrome binary.
	ExecPath string
	// RemoteURL connects to an already running Chrome over CDP instead of
	// starting one.
	RemoteURL string
	// Tabs bounds concurrent navigations. Defaults to 1.
	Tabs int
}

// BrowserPool manages a single Chrome process and lets a bounded number of
// tabs run at once. It implements Doer for upstreams that sit behind a
// browser challenge: the response body is the rendered page text.
type BrowserPool struct {
	cfg    BrowserConfig
	ctx    context.Context
	cancel context.CancelFunc
	opts   []chromedp.ExecAllocatorOption

	mu   sync.Mutex
	tabs *tabGate
}

// NewBrowserPool starts Chrome (or connects to it) and returns the pool.
func NewBrowserPool(cfg BrowserConfig, options ...chromedp.ExecAllocatorOption) (*BrowserPool, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("no-first-run", true),
	)
	opts = append(opts, options...)

	if cfg.ExecPath != "" {
		log.GlobalInfo("browser pool using custom chrome path", "path", cfg.ExecPath)
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	bp := &BrowserPool{
		cfg:  cfg,
		opts: opts,
		tabs: newTabGate(cfg.Tabs),
	}
	if err := bp.start(); err != nil {
		return nil, err
	}
	return bp, nil
}

// start initializes or restarts the Chrome connection.
func (bp *BrowserPool) start() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.cancel != nil {
		bp.cancel()
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if bp.cfg.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), bp.cfg.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), bp.opts...)
	}
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	// Force Chrome startup
	if err := chromedp.Run(ctx); err != nil {
		ctxCancel()
		allocCancel()
		return fmt.Errorf("start chrome: %w", err)
	}

	bp.ctx = ctx
	bp.cancel = func() {
		ctxCancel()
		allocCancel()
	}

	log.GlobalInfo("browser pool chrome started", "remote", bp.cfg.RemoteURL != "")
	return nil
}

// WithTab runs fn in a fresh tab once a slot is free. Cancelling ctx aborts
// the wait and closes the tab.
func (bp *BrowserPool) WithTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	if err := bp.tabs.acquire(ctx); err != nil {
		return err
	}
	defer bp.tabs.release()

	tabCtx, tabCancel, err := bp.acquireTab()
	if err != nil {
		return err
	}
	defer tabCancel()

	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	return fn(tabCtx)
}

// acquireTab creates a tab and restarts Chrome once if the tab is dead.
func (bp *BrowserPool) acquireTab() (context.Context, context.CancelFunc, error) {
	bp.mu.Lock()
	tabCtx, tabCancel := chromedp.NewContext(bp.ctx)
	bp.mu.Unlock()

	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()

		log.GlobalWarn("browser pool tab failed, restarting chrome", "error", err)

		if restartErr := bp.start(); restartErr != nil {
			return nil, nil, restartErr
		}

		bp.mu.Lock()
		tabCtx, tabCancel = chromedp.NewContext(bp.ctx)
		bp.mu.Unlock()
	}

	return tabCtx, tabCancel, nil
}

// Do navigates to req.URL and returns the page text as a 200 response.
// Only GET is supported.
func (bp *BrowserPool) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return nil, fmt.Errorf("browser transport: method %s not supported", req.Method)
	}

	var text string
	err := bp.WithTab(req.Context(), func(tabCtx context.Context) error {
		return chromedp.Run(tabCtx,
			chromedp.Navigate(req.URL.String()),
			chromedp.Text("body", &text, chromedp.ByQuery),
		)
	})
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("browser transport: %w", err)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(strings.NewReader(text)),
		ContentLength: int64(len(text)),
		Request:       req,
	}, nil
}

// Close shuts down the browser completely.
func (bp *BrowserPool) Close() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.cancel != nil {
		bp.cancel()
		bp.cancel = nil
		log.GlobalInfo("browser pool chrome stopped")
	}
}

// tabGate is a counting semaphore that honours context cancellation.
type tabGate struct {
	slots chan struct{}
}

func newTabGate(n int) *tabGate {
	if n < 1 {
		n = 1
	}
	return &tabGate{slots: make(chan struct{}, n)}
}

func (g *tabGate) acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *tabGate) release() {
	<-g.slots
}

func (g *tabGate) capacity() int {
	return cap(g.slots)
}
