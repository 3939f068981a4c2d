// Package secrets resolves credential references of the form prefix:id
// through registered plugins.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Plugin fetches a secret value for a given identifier.
type Plugin interface {
	Prefix() string
	Load(ctx context.Context, id string) (string, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Plugin)
)

// CacheTTL bounds how long a resolved secret is reused. Zero disables caching.
var CacheTTL = 5 * time.Minute

type cachedSecret struct {
	value   string
	expires time.Time
}

var (
	cacheMu sync.Mutex
	cache   = make(map[string]cachedSecret)
)

// Register adds a secret plugin for a prefix.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Prefix()] = p
}

// Prefixes lists the registered plugin prefixes.
func Prefixes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for p := range registry {
		out = append(out, p)
	}
	return out
}

func split(ref string) (Plugin, string, error) {
	prefix, id, ok := strings.Cut(ref, ":")
	if !ok || id == "" {
		return nil, "", fmt.Errorf("invalid secret reference: %s", ref)
	}
	mu.RLock()
	p, found := registry[prefix]
	mu.RUnlock()
	if !found {
		return nil, "", fmt.Errorf("unknown secret source: %s", prefix)
	}
	return p, id, nil
}

// IsReference reports whether s looks like a reference to a registered
// plugin rather than a literal value.
func IsReference(s string) bool {
	_, _, err := split(s)
	return err == nil
}

// ValidateSecret checks that the reference uses a known prefix.
func ValidateSecret(ref string) error {
	_, _, err := split(ref)
	return err
}

// LoadSecret resolves a secret reference using the registered plugins.
func LoadSecret(ctx context.Context, ref string) (string, error) {
	p, id, err := split(ref)
	if err != nil {
		return "", err
	}

	if CacheTTL > 0 {
		cacheMu.Lock()
		c, ok := cache[ref]
		cacheMu.Unlock()
		if ok && time.Now().Before(c.expires) {
			return c.value, nil
		}
	}

	val, err := p.Load(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load secret %s: %w", p.Prefix(), err)
	}

	if CacheTTL > 0 {
		cacheMu.Lock()
		cache[ref] = cachedSecret{value: val, expires: time.Now().Add(CacheTTL)}
		cacheMu.Unlock()
	}
	return val, nil
}

// ClearCache drops every cached secret.
func ClearCache() {
	cacheMu.Lock()
	cache = make(map[string]cachedSecret)
	cacheMu.Unlock()
}
