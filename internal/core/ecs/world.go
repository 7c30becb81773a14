package ecs

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrStaleEntity is returned when a handle does not name a live entity,
// either because it was never spawned or because its slot was recycled.
var ErrStaleEntity = errors.New("stale or unknown entity")

func staleErr(id EntityID) error {
	return fmt.Errorf("%w: %s", ErrStaleEntity, id)
}

// World is the top-level ECS container. It owns the entity pool, the component
// registry, and a deferred destruction queue flushed by the cleanup system.
type World struct {
	pool         *EntityPool
	registry     *Registry
	destroyQueue []EntityID
	iterating    int
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Spawn creates an entity with no components.
func (w *World) Spawn() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Check returns a wrapped ErrStaleEntity when id is not alive.
func (w *World) Check(id EntityID) error {
	if !w.pool.Alive(id) {
		return staleErr(id)
	}
	return nil
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// Entities returns all live entities in ascending index order.
func (w *World) Entities() []EntityID {
	out := make([]EntityID, 0, w.pool.Len())
	w.pool.Each(func(id EntityID) bool {
		out = append(out, id)
		return true
	})
	return out
}

// ComponentTypes lists the component types attached to id.
func (w *World) ComponentTypes(id EntityID) []reflect.Type {
	if !w.Alive(id) {
		return nil
	}
	return w.registry.TypesOf(id)
}

// Despawn destroys id. Children are orphaned and become roots. While a query
// is running the despawn is queued and applied by FlushDestroyQueue.
func (w *World) Despawn(id EntityID) error {
	if !w.pool.Alive(id) {
		return staleErr(id)
	}
	if w.iterating > 0 {
		w.MarkForDestruction(id)
		return nil
	}
	w.destroy(id)
	return nil
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending reports how many despawns are queued.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue destroys all queued entities and clears their components.
// Handles already dead by the time of the flush are skipped.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.pool.Alive(id) {
			w.destroy(id)
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// Clear despawns every entity. Handles issued before the call become stale.
func (w *World) Clear() {
	for _, id := range w.Entities() {
		w.registry.RemoveAll(id)
		w.pool.Destroy(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}

func (w *World) destroy(id EntityID) {
	w.detach(id)
	if ch, ok := Get[Children](w, id); ok {
		for _, c := range ch.Entities {
			Remove[Parent](w, c)
		}
	}
	w.registry.RemoveAll(id)
	w.pool.Destroy(id)
}

// Add attaches c to id, replacing any existing T.
func Add[T any](w *World, id EntityID, c T) error {
	if !w.pool.Alive(id) {
		return staleErr(id)
	}
	storeFor[T](w.registry).Set(id, &c)
	return nil
}

// Get returns id's T, or false when the entity is stale or has no T.
// The pointer is writable and stays valid until T is removed or replaced.
func Get[T any](w *World, id EntityID) (*T, bool) {
	if !w.pool.Alive(id) {
		return nil, false
	}
	return storeFor[T](w.registry).Get(id)
}

func Has[T any](w *World, id EntityID) bool {
	_, ok := Get[T](w, id)
	return ok
}

// Remove detaches and returns id's T.
func Remove[T any](w *World, id EntityID) (T, bool) {
	var zero T
	if !w.pool.Alive(id) {
		return zero, false
	}
	c, ok := storeFor[T](w.registry).Remove(id)
	if !ok {
		return zero, false
	}
	return *c, true
}

// StoreOf exposes the raw store for T.
func StoreOf[T any](w *World) *Store[T] {
	return storeFor[T](w.registry)
}
