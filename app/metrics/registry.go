package metrics

import (
	"sync"
	"time"
)

// Plugin receives every query observation in addition to the built-in
// Prometheus collectors.
type Plugin interface {
	OnQuery(name string, d time.Duration, cacheHit bool, err error)
}

var (
	mu      sync.RWMutex
	plugins []Plugin
)

// Reset removes all registered plugins. Primarily used in tests.
func Reset() {
	mu.Lock()
	plugins = nil
	mu.Unlock()
}

// Register adds a metrics plugin.
func Register(p Plugin) {
	mu.Lock()
	plugins = append(plugins, p)
	mu.Unlock()
}

func notify(name string, d time.Duration, hit bool, err error) {
	mu.RLock()
	ps := append([]Plugin(nil), plugins...)
	mu.RUnlock()
	for _, p := range ps {
		p.OnQuery(name, d, hit, err)
	}
}
