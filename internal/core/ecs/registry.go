package ecs

import "reflect"

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
// Stores are kept in registration order so bulk operations are deterministic.
type Registry struct {
	stores []Removable
	byType map[reflect.Type]Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 16),
		byType: make(map[reflect.Type]Removable, 16),
	}
}

// Register adds a component store to the registry. Registering a second
// store for the same type is ignored.
func (r *Registry) Register(store Removable) {
	if _, ok := r.byType[store.Type()]; ok {
		return
	}
	r.byType[store.Type()] = store
	r.stores = append(r.stores, store)
}

func (r *Registry) lookup(t reflect.Type) (Removable, bool) {
	s, ok := r.byType[t]
	return s, ok
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Drop(id)
	}
}

// TypesOf lists the component types present on id.
func (r *Registry) TypesOf(id EntityID) []reflect.Type {
	var out []reflect.Type
	for _, s := range r.stores {
		if s.Has(id) {
			out = append(out, s.Type())
		}
	}
	return out
}

// storeFor returns the store for T, creating and registering it on first use.
func storeFor[T any](r *Registry) *Store[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if s, ok := r.lookup(t); ok {
		return s.(*Store[T])
	}
	s := NewStore[T]()
	r.Register(s)
	return s
}
