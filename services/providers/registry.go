package providers

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// RegisterProvider registers a provider instance
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := normalizeName(provider.Name())
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}
	r.providers[name] = provider
	return nil
}

// GetProvider retrieves a provider by name
func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[normalizeName(name)]
	if !exists {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// Ordered returns the configured providers in the given priority order.
// Unknown names, duplicates and providers without credentials are skipped.
func (r *Registry) Ordered(priority []string) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(priority))
	ordered := make([]Provider, 0, len(priority))
	for _, name := range priority {
		name = normalizeName(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		provider, ok := r.providers[name]
		if !ok || !provider.Configured() {
			continue
		}
		ordered = append(ordered, provider)
	}
	return ordered
}

// Unknown returns the names in priority that are not registered.
func (r *Registry) Unknown(priority []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var unknown []string
	for _, name := range priority {
		if _, ok := r.providers[normalizeName(name)]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
