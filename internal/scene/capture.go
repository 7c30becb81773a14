package scene

import (
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
)

// DocumentID is the key an entity is written under: its runtime handle bits.
// Restore relies on the same rule to match live entities to document nodes.
func DocumentID(id ecs.EntityID) uint64 { return uint64(id) }

// FromWorld captures every root entity and its subtree.
func FromWorld(w *ecs.World, reg *asset.Registry, name string) *Scene {
	s := &Scene{Name: name, Entities: []SerializedEntity{}}
	for _, root := range ecs.Roots(w) {
		s.Entities = append(s.Entities, serializeEntity(w, reg, root))
	}
	return s
}

func serializeEntity(w *ecs.World, reg *asset.Registry, id ecs.EntityID) SerializedEntity {
	out := SerializedEntity{ID: DocumentID(id), Components: Capture(w, reg, id)}
	for _, c := range ecs.ChildrenOf(w, id) {
		out.Children = append(out.Children, serializeEntity(w, reg, c))
	}
	return out
}

// Capture serializes the known components present on id.
func Capture(w *ecs.World, reg *asset.Registry, id ecs.EntityID) Components {
	var c Components
	if n, ok := ecs.Get[component.Name](w, id); ok {
		s := string(*n)
		c.Name = &s
	}
	if t, ok := ecs.Get[component.Transform](w, id); ok {
		c.Transform = serializeTransform(*t)
	}
	if sp, ok := ecs.Get[component.Sprite](w, id); ok {
		out := &SerializedSprite{
			TextureID: sp.Texture,
			Size:      sp.Size,
			Color:     sp.Color,
			FlipX:     sp.FlipX,
			FlipY:     sp.FlipY,
		}
		if reg != nil && sp.Texture != 0 {
			if p, ok := reg.PathOf(sp.Texture); ok {
				out.TexturePath = p
			}
		}
		c.Sprite = out
	}
	if s, ok := ecs.Get[component.Script](w, id); ok {
		c.Script = serializeScript(*s)
	}
	if e, ok := ecs.Get[component.Enabled](w, id); ok {
		b := bool(*e)
		c.Enabled = &b
	}
	if m, ok := ecs.Get[component.Mesh](w, id); ok {
		c.Mesh = &SerializedMesh{Path: m.Path, Primitive: m.Primitive}
	}
	if m, ok := ecs.Get[component.Material](w, id); ok {
		c.Material = serializeMaterial(*m)
	}
	if cam, ok := ecs.Get[component.Camera](w, id); ok {
		c.Camera = serializeCamera(*cam)
	}
	if l, ok := ecs.Get[component.Light](w, id); ok {
		c.Light = serializeLight(*l)
	}
	return c
}
