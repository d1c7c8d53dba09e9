// Package registry isolates protocol-factory discovery (§6.3) behind a
// string-id lookup, so the core never parses a dotted identifier or reaches
// into a plugin loader itself — drivers self-register from their own
// init(), the way the teacher's bootstrap packages register queue-handler
// functions by name (components/consumer/internal/bootstrap/consumer.go).
package registry

import (
	"fmt"
	"sync"

	"github.com/savannahghi/idrclient/internal/protocol"
)

// Factory builds one or more protocols when invoked. A factory is called at
// most once per run (§6.3).
type Factory func() ([]*protocol.ETLProtocol, error)

// Registry maps opaque protocol-factory identifiers to Factory values.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register associates id with f. Re-registering the same id overwrites the
// previous factory (last registration wins, matching a plain map).
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[id] = f
}

// Resolve looks up the factory registered for id.
func (r *Registry) Resolve(id string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("registry: no protocol factory registered for %q", id)
	}

	return f, nil
}

// Build resolves and invokes the factory for every id in ids, in order,
// concatenating their results.
func (r *Registry) Build(ids []string) ([]*protocol.ETLProtocol, error) {
	var protocols []*protocol.ETLProtocol

	for _, id := range ids {
		f, err := r.Resolve(id)
		if err != nil {
			return nil, err
		}

		built, err := f()
		if err != nil {
			return nil, fmt.Errorf("registry: factory %q failed: %w", id, err)
		}

		protocols = append(protocols, built...)
	}

	return protocols, nil
}

// defaultRegistry is the process-wide Registry driver packages self-register
// into from their own init(). cli.New wraps it so a plain `import _
// ".../drivers/xyz"` in main is enough to make a protocol factory available
// to the CLI, without main itself knowing which drivers exist.
var defaultRegistry = New() //nolint:gochecknoglobals

// Default returns the process-wide Registry.
func Default() *Registry {
	return defaultRegistry
}
