package ecs

// Queries visit entities in the dense order of the smallest participating
// store. Despawn calls made from inside a callback are deferred until
// FlushDestroyQueue.

func (w *World) beginIter() { w.iterating++ }
func (w *World) endIter()   { w.iterating-- }

// Each visits every entity with an A.
func Each[A any](w *World, fn func(EntityID, *A)) {
	sa := storeFor[A](w.registry)
	w.beginIter()
	defer w.endIter()
	for _, id := range sa.IDs() {
		if a, ok := sa.Get(id); ok {
			fn(id, a)
		}
	}
}

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](w *World, fn func(EntityID, *A, *B)) {
	sa, sb := storeFor[A](w.registry), storeFor[B](w.registry)
	w.beginIter()
	defer w.endIter()
	ids := sa.IDs()
	if sb.Len() < sa.Len() {
		ids = sb.IDs()
	}
	for _, id := range ids {
		a, ok := sa.Get(id)
		if !ok {
			continue
		}
		if b, ok := sb.Get(id); ok {
			fn(id, a, b)
		}
	}
}

// Each3 iterates over entities that have components A, B, and C.
func Each3[A, B, C any](w *World, fn func(EntityID, *A, *B, *C)) {
	sa, sb, sc := storeFor[A](w.registry), storeFor[B](w.registry), storeFor[C](w.registry)
	w.beginIter()
	defer w.endIter()
	// Iterate the smallest store
	ids := sa.IDs()
	if sb.Len() < len(ids) {
		ids = sb.IDs()
	}
	if sc.Len() < len(ids) {
		ids = sc.IDs()
	}
	for _, id := range ids {
		a, ok := sa.Get(id)
		if !ok {
			continue
		}
		b, ok := sb.Get(id)
		if !ok {
			continue
		}
		if c, ok := sc.Get(id); ok {
			fn(id, a, b, c)
		}
	}
}

// With returns the entities carrying an A, in store order.
func With[A any](w *World) []EntityID {
	return storeFor[A](w.registry).IDs()
}
