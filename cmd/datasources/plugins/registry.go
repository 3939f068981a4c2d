package plugins

import (
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// Builder declares its flags on fs and returns a function that builds the
// entry once the flags are parsed.
type Builder func(fs *pflag.FlagSet) func() (Entry, error)

var registry = map[string]Builder{}

// Register adds a plugin builder to the registry.
func Register(name string, b Builder) { registry[strings.ToLower(name)] = b }

// Get retrieves a registered builder by name.
func Get(name string) Builder { return registry[strings.ToLower(name)] }

// List returns the registered plugin names in sorted order.
func List() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// pairs splits key=value flag values.
func pairs(vals []string) (map[string]string, error) {
	out := make(map[string]string, len(vals))
	for _, v := range vals {
		k, val, ok := strings.Cut(v, "=")
		if !ok || k == "" {
			return nil, &FlagError{Value: v, Want: "key=value"}
		}
		out[k] = val
	}
	return out, nil
}

// FlagError reports a malformed flag value.
type FlagError struct {
	Value string
	Want  string
}

func (e *FlagError) Error() string {
	return "invalid value " + e.Value + ", want " + e.Want
}
