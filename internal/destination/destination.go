// Package destination turns logical batch filenames into writable handles and
// retrievable URLs.
//
// Backends register a constructor under a kind at init time; callers obtain a
// Factory via New without importing backend details.
package destination

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// Factory opens batch files and reports where they can be retrieved from.
type Factory interface {
	// Open returns a writer for name. The caller closes it exactly once.
	Open(ctx context.Context, name string) (io.WriteCloser, error)
	// URL returns the retrievable address of name.
	URL(name string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	// Kind selects the backend, e.g. "local" or "memory".
	Kind string `json:"kind" yaml:"kind"`
	// Root is the base directory all names are resolved against.
	Root string `json:"root" yaml:"root"`
	// Create makes missing parent directories on Open.
	Create bool `json:"create" yaml:"create"`
}

// Constructor builds a Factory for one backend kind.
type Constructor func(ctx context.Context, cfg Config) (Factory, error)

var (
	mu           sync.RWMutex
	constructors = map[string]Constructor{}
)

// Register registers (or replaces) the constructor for kind.
func Register(kind string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()
	constructors[kind] = c
}

// New builds the Factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Factory, error) {
	mu.RLock()
	c, ok := constructors[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported destination.kind=%s", cfg.Kind)
	}
	return c(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(constructors))
	for k := range constructors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
