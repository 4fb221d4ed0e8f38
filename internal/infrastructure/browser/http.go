package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

const maxBodyBytes = 8 << 20

// HTTPBrowser fetches pages with a plain HTTP client. It runs no scripts, so it only
// serves sites whose articles are server-rendered.
type HTTPBrowser struct {
	client  *http.Client
	timeout time.Duration
}

var _ ports.Browser = (*HTTPBrowser)(nil)

// NewHTTPBrowser wires an HTTP client; timeout bounds each navigation.
func NewHTTPBrowser(client *http.Client, timeout time.Duration) *HTTPBrowser {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultNavigationTimeout
	}
	return &HTTPBrowser{client: client, timeout: timeout}
}

// NewPage opens a fresh page with no shared state.
func (b *HTTPBrowser) NewPage(ctx context.Context) (ports.Page, error) {
	return &httpPage{client: b.client, timeout: b.timeout, headers: map[string]string{}}, nil
}

// Close is a no-op; the client is owned by the caller.
func (b *HTTPBrowser) Close() error {
	return nil
}

type httpPage struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	headers   map[string]string
	body      []byte
}

func (p *httpPage) SetUserAgent(ua string) {
	p.userAgent = ua
}

func (p *httpPage) SetHeaders(headers map[string]string) {
	for k, v := range headers {
		p.headers[k] = v
	}
}

func (p *httpPage) Goto(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: timeout after %s: %w", domain.ErrNavigation, p.timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("%w: %w", domain.ErrNavigation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", domain.ErrNavigation, url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", domain.ErrNavigation, err)
	}
	p.body = body
	return nil
}

func (p *httpPage) Content(ctx context.Context) ([]byte, error) {
	if p.body == nil {
		return nil, errors.New("page has not been navigated")
	}
	return p.body, nil
}

func (p *httpPage) Close() error {
	p.body = nil
	return nil
}
