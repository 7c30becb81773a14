package ecs

import (
	"errors"
	"fmt"
)

// ErrWouldCycle is returned when a parent change would make an entity its own ancestor.
var ErrWouldCycle = errors.New("hierarchy change would create a cycle")

// Parent points at the entity that owns this one in the hierarchy.
type Parent struct {
	Entity EntityID
}

// Children lists direct children in order. Every listed child carries a
// Parent pointing back here.
type Children struct {
	Entities []EntityID
}

// SetParent moves child under parent. Validation happens before any
// component is touched, so a failed call leaves the hierarchy as it was.
func SetParent(w *World, child, parent EntityID) error {
	if err := w.Check(child); err != nil {
		return err
	}
	if err := w.Check(parent); err != nil {
		return err
	}
	if child == parent {
		return fmt.Errorf("%w: %s cannot parent itself", ErrWouldCycle, child)
	}
	if cur, ok := ParentOf(w, child); ok && cur == parent {
		return nil
	}
	limit := w.Len() + 1
	for at, steps := parent, 0; steps < limit; steps++ {
		p, ok := ParentOf(w, at)
		if !ok {
			break
		}
		if p == child {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrWouldCycle, child, parent)
		}
		at = p
	}

	w.detach(child)
	ch, ok := Get[Children](w, parent)
	if !ok {
		storeFor[Children](w.registry).Set(parent, &Children{})
		ch, _ = Get[Children](w, parent)
	}
	ch.Entities = append(ch.Entities, child)
	storeFor[Parent](w.registry).Set(child, &Parent{Entity: parent})
	return nil
}

// AddChild is SetParent with the arguments in parent-first order.
func AddChild(w *World, parent, child EntityID) error {
	return SetParent(w, child, parent)
}

// RemoveParent makes child a root. Roots are left alone.
func RemoveParent(w *World, child EntityID) error {
	if err := w.Check(child); err != nil {
		return err
	}
	w.detach(child)
	return nil
}

// detach unlinks child from its parent's Children and drops its Parent.
func (w *World) detach(child EntityID) {
	p, ok := Remove[Parent](w, child)
	if !ok {
		return
	}
	ch, ok := Get[Children](w, p.Entity)
	if !ok {
		return
	}
	for i, c := range ch.Entities {
		if c == child {
			ch.Entities = append(ch.Entities[:i], ch.Entities[i+1:]...)
			break
		}
	}
	if len(ch.Entities) == 0 {
		Remove[Children](w, p.Entity)
	}
}

// ParentOf returns id's parent if it has a live one.
func ParentOf(w *World, id EntityID) (EntityID, bool) {
	p, ok := Get[Parent](w, id)
	if !ok || !w.Alive(p.Entity) {
		return Nil, false
	}
	return p.Entity, true
}

// ChildrenOf returns a copy of id's live children in order.
func ChildrenOf(w *World, id EntityID) []EntityID {
	ch, ok := Get[Children](w, id)
	if !ok {
		return nil
	}
	out := make([]EntityID, 0, len(ch.Entities))
	for _, c := range ch.Entities {
		if w.Alive(c) {
			out = append(out, c)
		}
	}
	return out
}

// Roots returns live entities without a parent, in index order.
func Roots(w *World) []EntityID {
	var out []EntityID
	for _, id := range w.Entities() {
		if _, ok := ParentOf(w, id); !ok {
			out = append(out, id)
		}
	}
	return out
}

// IterDescendants walks root's subtree depth-first in pre-order, excluding
// root itself. Returning false from fn stops the walk.
func IterDescendants(w *World, root EntityID, fn func(EntityID) bool) {
	stack := reversed(ChildrenOf(w, root))
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			return
		}
		stack = append(stack, reversed(ChildrenOf(w, id))...)
	}
}

// Descendants collects IterDescendants into a slice.
func Descendants(w *World, root EntityID) []EntityID {
	var out []EntityID
	IterDescendants(w, root, func(id EntityID) bool {
		out = append(out, id)
		return true
	})
	return out
}

// DespawnRecursive despawns id together with its whole subtree.
func DespawnRecursive(w *World, id EntityID) error {
	if err := w.Check(id); err != nil {
		return err
	}
	all := append(Descendants(w, id), id)
	for i := len(all) - 1; i >= 0; i-- {
		if err := w.Despawn(all[i]); err != nil {
			return err
		}
	}
	return nil
}

func reversed(ids []EntityID) []EntityID {
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids
}
