package scene

import (
	"time"

	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/zap"
)

// Snapshot is the scene captured when play mode starts.
type Snapshot struct {
	Scene   *Scene
	TakenAt time.Time
	index   map[uint64]*SerializedEntity
}

// EnterPlay captures the world for a later ExitPlay.
func EnterPlay(w *ecs.World, reg *asset.Registry, name string) *Snapshot {
	sc := FromWorld(w, reg, name)
	return &Snapshot{Scene: sc, TakenAt: time.Now(), index: sc.Index()}
}

// Contains reports whether id will survive restoring this snapshot.
func (s *Snapshot) Contains(id ecs.EntityID) bool {
	_, ok := s.index[DocumentID(id)]
	return ok
}

// ExitPlay restores the world captured by EnterPlay in place.
func ExitPlay(w *ecs.World, loader asset.Loader, snap *Snapshot, log *zap.Logger) error {
	return snap.Scene.RestoreInto(w, loader, log)
}
