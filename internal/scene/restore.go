package scene

import (
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RestoreInto reconciles the live world to the document in place. Entities
// whose handle bits match a document id keep their handle and have their
// components overwritten; live entities unknown to the document are
// despawned; document entities with no live match are spawned fresh.
// Finally the hierarchy is rebuilt to match the document.
func (s *Scene) RestoreInto(w *ecs.World, loader asset.Loader, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	a := &applier{w: w, loader: loader, log: log}
	docByID := s.Index()

	var stale []ecs.EntityID
	for _, id := range w.Entities() {
		if _, ok := docByID[DocumentID(id)]; !ok {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		_ = w.Despawn(id)
	}

	var errs error
	live := make(map[uint64]ecs.EntityID, len(docByID))
	s.Walk(func(se *SerializedEntity, _ *SerializedEntity) {
		if _, done := live[se.ID]; done {
			return
		}
		id := ecs.EntityID(se.ID)
		if w.Alive(id) {
			errs = multierr.Append(errs, a.apply(id, &se.Components, modeRestore))
		} else {
			id = w.Spawn()
			log.Warn("entity missing at restore, spawned with a new handle",
				zap.Uint64("doc_id", se.ID), zap.Stringer("entity", id))
			errs = multierr.Append(errs, a.apply(id, &se.Components, modeSpawn))
		}
		live[se.ID] = id
	})

	for _, id := range live {
		ecs.Remove[ecs.Parent](w, id)
		ecs.Remove[ecs.Children](w, id)
	}
	s.Walk(func(se *SerializedEntity, parent *SerializedEntity) {
		if parent == nil {
			return
		}
		errs = multierr.Append(errs, ecs.AddChild(w, live[parent.ID], live[se.ID]))
	})
	return errs
}
