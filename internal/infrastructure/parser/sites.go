package parser

import (
	"fmt"

	"KiddoNews/internal/config"
	"KiddoNews/internal/scanner"
)

// Adapter kinds accepted in the sites configuration.
const (
	AdapterYnet   = config.AdapterYnet
	AdapterMaariv = config.AdapterMaariv
	AdapterWalla  = config.AdapterWalla
)

// NewRegistry builds one adapter per enabled configured site. Every adapter gets its own
// politeness gate from deps.Interval.
func NewRegistry(sites []config.SiteConfig, deps Deps) (*scanner.Registry, error) {
	registry := scanner.NewRegistry()

	for _, site := range sites {
		if !site.IsEnabled() {
			continue
		}

		var adapter scanner.Adapter
		switch site.Adapter {
		case AdapterYnet:
			adapter = NewYnetAdapter(deps, site.ListingURL)
		case AdapterMaariv:
			adapter = NewMaarivAdapter(deps, site.ListingURL)
		case AdapterWalla:
			adapter = NewWallaAdapter(deps)
		default:
			return nil, fmt.Errorf("site %s: unknown adapter %q", site.Name, site.Adapter)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("register adapter", "site", site.Name, "adapter", site.Adapter, "hosts", adapter.Hosts())
		}
		registry.Register(adapter)
	}

	return registry, nil
}
