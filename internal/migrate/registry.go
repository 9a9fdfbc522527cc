package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/contract/internal/legacy"
	"github.com/roach88/contract/internal/store"
)

// Handler is the code behind a native migration unit. It manages its own
// store transaction.
type Handler func(ctx context.Context, st *store.Store) error

// Registry maps fixed keys to native handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler. Registering a key twice is an error.
func (r *Registry) Register(key string, h Handler) error {
	if key == "" {
		return fmt.Errorf("register handler: empty key")
	}
	if h == nil {
		return fmt.Errorf("register handler %q: nil handler", key)
	}
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("register handler %q: already registered", key)
	}
	r.handlers[key] = h
	return nil
}

// Lookup returns the handler registered under key.
func (r *Registry) Lookup(key string) (Handler, bool) {
	h, ok := r.handlers[key]
	return h, ok
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultRegistry returns a registry holding every built-in native handler.
// A nil logger or clock keeps the handler defaults.
func DefaultRegistry(logger *slog.Logger, now func() time.Time) *Registry {
	var opts []legacy.Option
	if logger != nil {
		opts = append(opts, legacy.WithLogger(logger))
	}
	if now != nil {
		opts = append(opts, legacy.WithClock(now))
	}

	r := NewRegistry()
	transformer := legacy.New(opts...)
	if err := r.Register(legacy.HandlerKey, transformer.Handler); err != nil {
		panic(err) // keys above are constants
	}
	return r
}
