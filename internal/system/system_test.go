package system

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stagehand/editor/internal/core/event"
	coresys "github.com/stagehand/editor/internal/core/system"
	"github.com/stretchr/testify/require"
)

func TestPropagate(t *testing.T) {
	w := ecs.NewWorld()
	root := w.Spawn()
	require.NoError(t, ecs.Add(w, root, component.At(10, 20)))
	mid := w.Spawn()
	require.NoError(t, ecs.SetParent(w, mid, root))
	leaf := w.Spawn()
	require.NoError(t, ecs.Add(w, leaf, component.At(1, 2)))
	require.NoError(t, ecs.SetParent(w, leaf, mid))

	Propagate(w)

	g, ok := ecs.Get[component.GlobalTransform](w, leaf)
	require.True(t, ok)
	require.True(t, g.Position().ApproxEqual(mgl32.Vec3{11, 22, 0}))
	require.False(t, ecs.Has[component.GlobalTransform](w, mid))

	tr, _ := ecs.Get[component.Transform](w, root)
	tr.Position = mgl32.Vec3{0, 0, 0}
	Propagate(w)
	require.True(t, g.Position().ApproxEqual(mgl32.Vec3{1, 2, 0}))
}

func TestCleanupFlushesDeferred(t *testing.T) {
	w := ecs.NewWorld()
	a := w.Spawn()
	w.MarkForDestruction(a)
	require.True(t, w.Alive(a))

	s := NewCleanupSystem("transform_propagate")
	require.Equal(t, []string{"transform_propagate"}, s.Dependencies())
	require.NoError(t, s.Execute(&coresys.Context{World: w}, time.Millisecond))
	require.False(t, w.Alive(a))
}

func TestEventDispatch(t *testing.T) {
	bus := event.NewBus()
	var got []event.ModeChanged
	event.Subscribe(bus, func(e event.ModeChanged) { got = append(got, e) })
	event.Emit(bus, event.ModeChanged{From: "edit", To: "playing"})

	s := NewEventDispatchSystem(bus)
	ctx := &coresys.Context{World: ecs.NewWorld()}
	require.NoError(t, s.Execute(ctx, 0))
	require.Len(t, got, 1)
	require.NoError(t, s.Execute(ctx, 0))
	require.Len(t, got, 1)
}

func TestBuiltinsResolve(t *testing.T) {
	s := coresys.NewScheduler(10*time.Millisecond, 0, nil, nil)
	s.Register(NewEventDispatchSystem(event.NewBus()))
	s.Register(NewTransformSystem("event_dispatch"))
	s.Register(NewCleanupSystem("transform_propagate"))
	require.NoError(t, s.Resolve())
	require.Equal(t, []string{"event_dispatch", "transform_propagate", "cleanup"}, s.VariableOrder())
}
