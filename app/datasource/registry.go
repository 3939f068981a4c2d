package datasource

import (
	"sort"
	"sync"
)

// Registry holds the services data sources can be built from.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry returns a registry holding svcs.
func NewRegistry(svcs ...Service) *Registry {
	r := &Registry{services: make(map[string]Service)}
	for _, s := range svcs {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing a service with the same name.
func (r *Registry) Register(s Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.Name()] = s
}

// Lookup returns the service registered under name.
func (r *Registry) Lookup(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[name]
	return s, ok
}

// Services lists registered service names in sorted order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.services))
	for n := range r.services {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
