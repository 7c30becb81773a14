package scene

import (
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/zap"
)

// SpawnInto creates fresh entities for the whole document, preserving the
// parent/child structure and child order. The returned map goes from
// document id to the new handle.
func (s *Scene) SpawnInto(w *ecs.World, loader asset.Loader, log *zap.Logger) map[uint64]ecs.EntityID {
	if log == nil {
		log = zap.NewNop()
	}
	a := &applier{w: w, loader: loader, log: log}
	out := make(map[uint64]ecs.EntityID, s.Count())
	var spawn func(se *SerializedEntity, parent ecs.EntityID)
	spawn = func(se *SerializedEntity, parent ecs.EntityID) {
		id := w.Spawn()
		out[se.ID] = id
		// spawn mode never fails: unresolvable sprites are dropped with a warning
		_ = a.apply(id, &se.Components, modeSpawn)
		if parent != ecs.Nil {
			_ = ecs.AddChild(w, parent, id)
		}
		for i := range se.Children {
			spawn(&se.Children[i], id)
		}
	}
	for i := range s.Entities {
		spawn(&s.Entities[i], ecs.Nil)
	}
	return out
}

// Instantiate spawns a single root entity carrying c. Sprites whose texture
// cannot be resolved are dropped as in SpawnInto.
func Instantiate(w *ecs.World, loader asset.Loader, c Components, log *zap.Logger) ecs.EntityID {
	if log == nil {
		log = zap.NewNop()
	}
	a := &applier{w: w, loader: loader, log: log}
	id := w.Spawn()
	_ = a.apply(id, &c, modeSpawn)
	return id
}
