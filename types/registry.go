package types

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownType is returned when a TypeID does not resolve within
	// the registry snapshot.
	ErrUnknownType = errors.New("types: unknown type id")

	// ErrIncompleteRegistry is returned at construction time when a
	// descriptor references an id that is absent from the snapshot.
	ErrIncompleteRegistry = errors.New("types: registry references missing type id")
)

// Registry is an immutable, indexed collection of type descriptors.
// Construction validates that every id referenced by any descriptor
// resolves within the same snapshot; after NewRegistry returns, the
// registry is read-only and safe for unsynchronized concurrent reads.
type Registry struct {
	entries map[TypeID]*Type
}

// NewRegistry builds a registry from the given entries and validates
// referential completeness. The entries map is copied; later mutation
// of the argument does not affect the registry.
func NewRegistry(entries map[TypeID]Type) (*Registry, error) {
	reg := &Registry{entries: make(map[TypeID]*Type, len(entries))}
	for id := range entries {
		t := entries[id]
		reg.entries[id] = &t
	}

	// Deterministic validation order keeps the first-reported error
	// stable across runs.
	ids := make([]TypeID, 0, len(reg.entries))
	for id := range reg.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		for _, ref := range references(reg.entries[id].Def) {
			if _, ok := reg.entries[ref]; !ok {
				return nil, fmt.Errorf("%w: type %d references %d", ErrIncompleteRegistry, id, ref)
			}
		}
	}
	return reg, nil
}

// Resolve returns the descriptor for the given id.
func (r *Registry) Resolve(id TypeID) (*Type, error) {
	t, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, id)
	}
	return t, nil
}

// Has reports whether the id resolves in this snapshot.
func (r *Registry) Has(id TypeID) bool {
	_, ok := r.entries[id]
	return ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.entries)
}

// IDs returns every registered id in ascending order.
func (r *Registry) IDs() []TypeID {
	ids := make([]TypeID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
