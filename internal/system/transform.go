package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
	coresys "github.com/stagehand/editor/internal/core/system"
)

// TransformSystem recomputes GlobalTransform for every entity with a
// Transform by walking the hierarchy from its roots.
type TransformSystem struct {
	after []string
}

func NewTransformSystem(after ...string) *TransformSystem {
	return &TransformSystem{after: after}
}

func (s *TransformSystem) Name() string           { return "transform_propagate" }
func (s *TransformSystem) Dependencies() []string { return s.after }
func (s *TransformSystem) FixedTimestep() bool    { return false }

func (s *TransformSystem) Execute(ctx *coresys.Context, _ time.Duration) error {
	Propagate(ctx.World)
	return nil
}

// Propagate writes GlobalTransform for the whole world. An entity without a
// Transform passes its parent's matrix through unchanged.
func Propagate(w *ecs.World) {
	for _, root := range ecs.Roots(w) {
		propagate(w, root, mgl32.Ident4())
	}
}

func propagate(w *ecs.World, id ecs.EntityID, parent mgl32.Mat4) {
	m := parent
	if t, ok := ecs.Get[component.Transform](w, id); ok {
		m = parent.Mul4(t.Matrix())
		if g, ok := ecs.Get[component.GlobalTransform](w, id); ok {
			g.Matrix = m
		} else {
			_ = ecs.Add(w, id, component.GlobalTransform{Matrix: m})
		}
	}
	for _, c := range ecs.ChildrenOf(w, id) {
		propagate(w, c, m)
	}
}
