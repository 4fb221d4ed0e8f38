package scanner

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"KiddoNews/internal/domain"
)

// Adapter captures a single site implementation (ynet, maariv, etc.).
type Adapter interface {
	Name() string
	// Hosts lists the hostnames this adapter owns; subdomains match too.
	Hosts() []string
	// ListArticles returns stubs from the listing page, or domain.ErrListingUnsupported.
	ListArticles(ctx context.Context) ([]domain.Draft, error)
	ExtractArticle(ctx context.Context, url string) (domain.Draft, error)
}

// Registry maps adapter names and hostnames to their implementations.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
	byHost   map[string]Adapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Adapter{}, byHost: map[string]Adapter{}}
}

// Register adds or replaces an adapter implementation.
func (r *Registry) Register(adapter Adapter) {
	if r.byName == nil {
		r.byName = map[string]Adapter{}
	}
	if r.byHost == nil {
		r.byHost = map[string]Adapter{}
	}

	if _, ok := r.byName[adapter.Name()]; ok {
		for i, a := range r.adapters {
			if a.Name() == adapter.Name() {
				r.adapters = append(r.adapters[:i], r.adapters[i+1:]...)
				break
			}
		}
	}
	r.adapters = append(r.adapters, adapter)
	r.byName[adapter.Name()] = adapter
	for _, host := range adapter.Hosts() {
		r.byHost[NormalizeHost(host)] = adapter
	}
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if adapter, ok := r.byName[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("adapter %s is not registered", name)
}

// Route returns the adapter owning rawURL's host. Parent domains are tried in turn so
// "news.walla.co.il" routes to the adapter registered for "walla.co.il".
func (r *Registry) Route(rawURL string) (Adapter, bool) {
	host := HostOf(rawURL)
	for host != "" {
		if adapter, ok := r.byHost[host]; ok {
			return adapter, true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return nil, false
}

// Adapters returns the registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// HostOf extracts the normalized hostname of rawURL, or "" when it has none.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return NormalizeHost(parsed.Hostname())
}

// NormalizeHost lowercases host and drops a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	return strings.TrimPrefix(host, "www.")
}

// MatchesHost reports whether host equals pattern or is a subdomain of it.
func MatchesHost(host, pattern string) bool {
	host, pattern = NormalizeHost(host), NormalizeHost(pattern)
	if host == "" || pattern == "" {
		return false
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
