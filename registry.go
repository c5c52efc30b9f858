package xrecord

import (
	"context"
	"sync"
)

// Registry hands out one Schema per type name, introspecting each table at
// most once for the life of the registry. Concurrent first lookups of the
// same type share a single catalog query. Failed introspections are not
// remembered, so a corrected table is picked up by the next call.
type Registry struct {
	q    Querier
	opts []Option

	mu      sync.Mutex // serializes introspection
	schemas sync.Map   // type name -> *Schema
}

// NewRegistry returns a Registry that introspects through q. The options
// apply to every schema it defines.
func NewRegistry(q Querier, opts ...Option) *Registry {
	return &Registry{q: q, opts: opts}
}

// Schema returns the cached schema for typeName, defining it on first use.
// Per-call options are appended to the registry's and only take effect when
// this call is the one that defines the schema.
func (r *Registry) Schema(ctx context.Context, typeName string, opts ...Option) (*Schema, error) {
	if v, ok := r.schemas.Load(typeName); ok {
		return v.(*Schema), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.schemas.Load(typeName); ok {
		return v.(*Schema), nil
	}

	all := append(append([]Option(nil), r.opts...), opts...)
	s, err := Define(ctx, r.q, typeName, all...)
	if err != nil {
		return nil, err
	}
	r.schemas.Store(typeName, s)
	return s, nil
}

// Forget drops the cached schema for typeName so the next Schema call
// introspects the table again.
func (r *Registry) Forget(typeName string) { r.schemas.Delete(typeName) }
