package event

import "github.com/stagehand/editor/internal/core/ecs"

// ModeChanged is emitted when the editor moves between edit, playing and paused.
type ModeChanged struct {
	From string
	To   string
}

type EntitySpawned struct {
	Entity   ecs.EntityID
	Template string
}

type EntityDespawned struct {
	Entity    ecs.EntityID
	Recursive bool
}

type ComponentChanged struct {
	Entity  ecs.EntityID
	Kind    string
	Removed bool
}

type HierarchyChanged struct {
	Child  ecs.EntityID
	Parent ecs.EntityID // ecs.Nil when the child became a root
}

type ScriptReloaded struct {
	Path string
}

type SceneSaved struct {
	Path     string
	Revision string
}

type SceneLoaded struct {
	Path     string
	Entities int
}
