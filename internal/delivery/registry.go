// internal/delivery/registry.go
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/user/freightbot/internal/types"
)

// ErrNoHandler is returned when no handler matches a target's scheme.
var ErrNoHandler = errors.New("no delivery handler")

// Handler delivers a notification to address, the part of the target
// after its scheme prefix.
type Handler func(ctx context.Context, address string, n *types.Notification) error

// Registry routes notifications to the handler registered for the target
// prefix (e.g. "telegram:", "sms:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Prefixes returns the registered prefixes in sorted order.
func (r *Registry) Prefixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for p := range r.handlers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a handler exists for target.
func (r *Registry) Supports(target string) bool {
	_, _, ok := r.lookup(target)
	return ok
}

func (r *Registry) lookup(target string) (Handler, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(target, prefix) {
			return handler, strings.TrimPrefix(target, prefix), true
		}
	}
	return nil, "", false
}

// Deliver finds the handler matching the target prefix and calls it.
// Returns ErrNoHandler if no handler is registered for the prefix.
func (r *Registry) Deliver(ctx context.Context, target string, n *types.Notification) error {
	handler, address, ok := r.lookup(target)
	if !ok {
		return fmt.Errorf("%w for target: %s", ErrNoHandler, target)
	}
	return handler(ctx, address, n)
}
