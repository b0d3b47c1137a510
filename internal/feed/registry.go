package feed

import (
	"strings"

	"github.com/stockbar/quotebar/internal/interfaces"
)

// DefaultPriority is the provider order used when configuration does not
// supply one. Providers missing from a configured list are appended in this
// order, so a resolved priority list is never empty by construction.
var DefaultPriority = []string{"yahoo", "finnhub", "alphavantage", "stooq"}

// Registry holds the constructed provider clients keyed by name.
type Registry struct {
	providers map[string]interfaces.Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]interfaces.Provider)}
}

// Register adds a provider under its lowercased name, replacing any earlier
// registration of the same name.
func (r *Registry) Register(p interfaces.Provider) {
	name := strings.ToLower(p.Name())
	if _, ok := r.providers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (interfaces.Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names returns the registered provider names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Resolve turns a configured priority list into providers. Names are
// de-duplicated, unknown names are reported rather than failing, and every
// registered provider missing from the list is appended afterwards.
func (r *Registry) Resolve(priority []string) ([]interfaces.Provider, []string) {
	var providers []interfaces.Provider
	var unknown []string
	seen := make(map[string]bool)

	take := func(name string, reportUnknown bool) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		if p, ok := r.providers[name]; ok {
			providers = append(providers, p)
		} else if reportUnknown {
			unknown = append(unknown, name)
		}
	}

	for _, name := range priority {
		take(name, true)
	}
	for _, name := range DefaultPriority {
		take(name, false)
	}
	for _, name := range r.order {
		take(name, false)
	}

	return providers, unknown
}

// Exact resolves a priority list without appending the remaining providers.
// Used for per-request source overrides, where the caller has deliberately
// restricted the chain.
func (r *Registry) Exact(priority []string) ([]interfaces.Provider, []string) {
	var providers []interfaces.Provider
	var unknown []string
	seen := make(map[string]bool)

	for _, name := range priority {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if p, ok := r.providers[name]; ok {
			providers = append(providers, p)
		} else {
			unknown = append(unknown, name)
		}
	}

	return providers, unknown
}
