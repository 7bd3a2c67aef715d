package fsbox

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps schemes to backends. Backends are registered during startup;
// lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register binds scheme to backend. It fails with ErrDuplicateScheme if the
// scheme is taken.
func (r *Registry) Register(scheme string, backend Backend) error {
	if !ValidScheme(scheme) {
		return fmt.Errorf("%w: bad scheme %q", ErrInvalidAddress, scheme)
	}
	if backend == nil {
		return fmt.Errorf("fsbox: nil backend for scheme %q", scheme)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[scheme]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateScheme, scheme)
	}
	r.backends[scheme] = backend
	return nil
}

// Lookup returns the backend registered for scheme. Schemes are case
// insensitive.
func (r *Registry) Lookup(scheme string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[strings.ToLower(scheme)]
	return b, ok
}

// Resolve parses address and returns the backend for its scheme.
func (r *Registry) Resolve(address string) (Backend, Address, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, Address{}, err
	}
	b, ok := r.Lookup(addr.Scheme)
	if !ok {
		return nil, addr, fmt.Errorf("%w: %q", ErrUnknownScheme, addr.Scheme)
	}
	return b, addr, nil
}

// Schemes returns the registered schemes, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
