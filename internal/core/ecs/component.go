package ecs

import "reflect"

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Drop(id EntityID) bool
	Has(id EntityID) bool
	Len() int
	Type() reflect.Type
}

// Store is a sparse set of *T keyed by entity index. The stored handle's
// generation gates every read, so a later occupant of a slot never sees
// data belonging to its predecessor.
type Store[T any] struct {
	sparse  map[uint32]int
	ids     []EntityID
	data    []*T
	seq     []uint64
	nextSeq uint64
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		sparse: make(map[uint32]int, 256),
		ids:    make([]EntityID, 0, 256),
		data:   make([]*T, 0, 256),
		seq:    make([]uint64, 0, 256),
	}
}

// Set inserts or replaces the component for id. A replacement keeps the
// original insertion sequence.
func (s *Store[T]) Set(id EntityID, c *T) {
	if i, ok := s.sparse[id.Index()]; ok {
		if s.ids[i] == id {
			s.data[i] = c
			return
		}
		// left behind by a previous occupant of the slot
		s.removeAt(i)
	}
	s.sparse[id.Index()] = len(s.ids)
	s.ids = append(s.ids, id)
	s.data = append(s.data, c)
	s.seq = append(s.seq, s.nextSeq)
	s.nextSeq++
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	i, ok := s.sparse[id.Index()]
	if !ok || s.ids[i] != id {
		return nil, false
	}
	return s.data[i], true
}

// Remove deletes and returns the component for id.
func (s *Store[T]) Remove(id EntityID) (*T, bool) {
	i, ok := s.sparse[id.Index()]
	if !ok || s.ids[i] != id {
		return nil, false
	}
	c := s.data[i]
	s.removeAt(i)
	return c, true
}

func (s *Store[T]) Drop(id EntityID) bool {
	_, ok := s.Remove(id)
	return ok
}

func (s *Store[T]) removeAt(i int) {
	last := len(s.ids) - 1
	delete(s.sparse, s.ids[i].Index())
	if i != last {
		s.ids[i] = s.ids[last]
		s.data[i] = s.data[last]
		s.seq[i] = s.seq[last]
		s.sparse[s.ids[i].Index()] = i
	}
	s.data[last] = nil
	s.ids = s.ids[:last]
	s.data = s.data[:last]
	s.seq = s.seq[:last]
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.Get(id)
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.ids)
}

func (s *Store[T]) Type() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Sequence returns the insertion sequence number of id's component.
// Smaller numbers were inserted earlier.
func (s *Store[T]) Sequence(id EntityID) (uint64, bool) {
	i, ok := s.sparse[id.Index()]
	if !ok || s.ids[i] != id {
		return 0, false
	}
	return s.seq[i], true
}

// Each visits components in dense order, which depends only on the sequence
// of mutations applied to the store.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i := 0; i < len(s.ids); i++ {
		fn(s.ids[i], s.data[i])
	}
}

// IDs returns a copy of the entity handles in dense order.
func (s *Store[T]) IDs() []EntityID {
	out := make([]EntityID, len(s.ids))
	copy(out, s.ids)
	return out
}
