// Package browser implements the page-loading backends adapters extract from.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

// DefaultNavigationTimeout bounds one page load up to network idle.
const DefaultNavigationTimeout = 60 * time.Second

// ChromeOptions configures the headless Chrome allocator.
type ChromeOptions struct {
	Headless          bool
	ExecPath          string
	NavigationTimeout time.Duration
}

// ChromeBrowser renders pages in headless Chrome through the DevTools protocol. All pages
// are tabs of one browser process.
type ChromeBrowser struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
	timeout     time.Duration

	mu      sync.Mutex
	started bool
}

var _ ports.Browser = (*ChromeBrowser)(nil)

// NewChromeBrowser prepares the allocator and the browser context; the process is
// launched by the first NewPage.
func NewChromeBrowser(parent context.Context, opts ChromeOptions) *ChromeBrowser {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	timeout := opts.NavigationTimeout
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	return &ChromeBrowser{
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     timeout,
	}
}

// start launches Chrome on the browser context once; tabs derived before that would
// each get a process of their own.
func (b *ChromeBrowser) start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return nil
	}
	if err := chromedp.Run(b.browserCtx); err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}
	b.started = true
	return nil
}

// NewPage opens an isolated tab in the shared browser.
func (b *ChromeBrowser) NewPage(ctx context.Context) (ports.Page, error) {
	if err := b.start(); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{ctx: tabCtx, cancel: cancel, timeout: b.timeout, headers: map[string]string{}}

	chromedp.ListenTarget(tabCtx, p.onEvent)
	if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		p.mu.Lock()
		p.frameID = cdp.FrameID(c.Target.TargetID)
		p.mu.Unlock()
	}
	return p, nil
}

// Close shuts Chrome down.
func (b *ChromeBrowser) Close() error {
	b.cancel()
	b.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	userAgent string
	headers   map[string]string

	mu      sync.Mutex
	frameID cdp.FrameID
	idle    chan struct{}
}

// mainFrameIdle reports whether ev is the networkIdle lifecycle event of the main frame.
// Iframes emit their own lifecycle events.
func mainFrameIdle(ev any, main cdp.FrameID) bool {
	e, ok := ev.(*page.EventLifecycleEvent)
	return ok && main != "" && e.Name == "networkIdle" && e.FrameID == main
}

func (p *chromePage) onEvent(ev any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !mainFrameIdle(ev, p.frameID) {
		return
	}
	if p.idle != nil {
		close(p.idle)
		p.idle = nil
	}
}

func (p *chromePage) SetUserAgent(ua string) {
	p.userAgent = ua
}

func (p *chromePage) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		p.headers[k] = v
	}
}

func (p *chromePage) Goto(ctx context.Context, url string) error {
	idle := make(chan struct{})
	p.mu.Lock()
	p.idle = idle
	p.mu.Unlock()

	navCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	setup := []chromedp.Action{network.Enable()}
	if len(p.headers) > 0 {
		h := network.Headers{}
		for k, v := range p.headers {
			h[k] = v
		}
		setup = append(setup, network.SetExtraHTTPHeaders(h))
	}
	if p.userAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(p.userAgent))
	}
	if err := chromedp.Run(navCtx, setup...); err != nil {
		return p.navigationError(navCtx, err)
	}

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		return p.navigationError(navCtx, err)
	}
	if resp != nil && resp.Status != 200 {
		return fmt.Errorf("%w: %s returned %d", domain.ErrNavigation, url, resp.Status)
	}

	select {
	case <-idle:
		return nil
	case <-navCtx.Done():
		return p.navigationError(navCtx, navCtx.Err())
	}
}

func (p *chromePage) navigationError(navCtx context.Context, err error) error {
	if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout after %s: %w", domain.ErrNavigation, p.timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%w: %w", domain.ErrNavigation, err)
}

func (p *chromePage) Content(ctx context.Context) ([]byte, error) {
	readCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(readCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}
	return []byte(html), nil
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
