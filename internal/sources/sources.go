// Package sources adapts a query.Source into an initial *table.Table
// (spec §4.6). Each source kind registers its own Adapter, the way
// internal/introspect's dialect packages register themselves against
// core.Dialect in the teacher repo; the dispatcher here is the same
// registry-plus-RWMutex shape as internal/introspect/introspect.go.
package sources

import (
	"context"
	"fmt"
	"sync"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

// Adapter turns one source occurrence into a Table.
type Adapter interface {
	Load(ctx context.Context, src query.Source, env *Environment) (*table.Table, error)
}

// Environment supplies state an adapter cannot derive from the Source
// value alone: named tables already available to the caller (e.g. a
// workbook region extracted upstream) and the results of queries that
// have already run earlier in a dependency-ordered execution, for
// SourceTable and SourceQueryRef respectively.
type Environment struct {
	Tables       map[string]*table.Table
	QueryResults map[string]*table.Table
}

var (
	mu       sync.RWMutex
	registry = make(map[query.SourceKind]Adapter)
)

// Register associates an Adapter with a SourceKind. Adapters call this
// from an init() function, one package per source kind.
func Register(kind query.SourceKind, a Adapter) {
	mu.Lock()
	defer mu.Unlock()
	registry[kind] = a
}

// Load dispatches src to its registered Adapter.
func Load(ctx context.Context, src query.Source, env *Environment) (*table.Table, error) {
	mu.RLock()
	a, ok := registry[src.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sources: no adapter registered for source kind %q", src.Kind)
	}
	return a.Load(ctx, src, env)
}
