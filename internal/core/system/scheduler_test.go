package system

import (
	"errors"
	"testing"
	"time"

	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
}

func (r *recorder) sys(name string, fixed bool, deps ...string) *Func {
	return &Func{
		SystemName: name,
		After:      deps,
		Fixed:      fixed,
		Fn: func(*Context, time.Duration) error {
			r.calls = append(r.calls, name)
			return nil
		},
	}
}

func newCtx() *Context { return &Context{World: ecs.NewWorld()} }

func TestScheduler(t *testing.T) {
	t.Run("ZeroSystems", func(t *testing.T) {
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		require.False(t, s.Resolved())
		require.NoError(t, s.ExecuteFixed(newCtx(), time.Millisecond))
		require.NoError(t, s.ExecuteVariable(newCtx(), time.Millisecond))
		require.True(t, s.Resolved())
	})

	t.Run("DependencyOrdering", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		s.Register(r.sys("S_A", true))
		s.Register(r.sys("S_B", true, "S_A"))
		s.Register(r.sys("S_C", true, "S_B"))
		s.Register(r.sys("S_D", true, "S_A"))
		require.NoError(t, s.Resolve())

		order := s.FixedOrder()
		require.Len(t, order, 4)
		require.Equal(t, "S_A", order[0])
		require.Equal(t, "S_C", order[3])
		require.ElementsMatch(t, []string{"S_B", "S_D"}, order[1:3])
		require.Equal(t, []string{"S_A", "S_B", "S_D", "S_C"}, order)

		require.NoError(t, s.ExecuteFixed(newCtx(), time.Millisecond))
		require.Equal(t, order, r.calls)
	})

	t.Run("TiesKeepInsertionOrder", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		for _, n := range []string{"z", "a", "m"} {
			s.Register(r.sys(n, false))
		}
		require.NoError(t, s.Resolve())
		require.Equal(t, []string{"z", "a", "m"}, s.VariableOrder())
	})

	t.Run("MissingDependency", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		s.Register(r.sys("render", false, "camera"))
		err := s.Resolve()
		require.ErrorIs(t, err, ErrSystemNotFound)
		require.Contains(t, err.Error(), `"render"`)
		require.Contains(t, err.Error(), `"camera"`)
		require.False(t, s.Resolved())
	})

	t.Run("SelfDependencyIsCycle", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		s.Register(r.sys("loop", true, "loop"))
		require.ErrorIs(t, s.Resolve(), ErrDependencyCycle)
	})

	t.Run("Cycle", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		s.Register(r.sys("a", false, "c"))
		s.Register(r.sys("b", false, "a"))
		s.Register(r.sys("c", false, "b"))
		s.Register(r.sys("free", false))
		err := s.Resolve()
		require.ErrorIs(t, err, ErrDependencyCycle)
		require.NotContains(t, err.Error(), "free")
	})

	t.Run("BucketsAreSeparateGraphs", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		s.Register(r.sys("physics", true))
		s.Register(r.sys("render", false, "physics"))
		require.ErrorIs(t, s.Resolve(), ErrSystemNotFound)
	})

	t.Run("BrokenBucketDoesNotBlockOther", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		s.Register(r.sys("physics", true))
		s.Register(r.sys("loop", false, "loop"))

		require.NoError(t, s.ExecuteFixed(newCtx(), time.Millisecond))
		require.Equal(t, []string{"physics"}, r.calls)
		require.ErrorIs(t, s.ExecuteVariable(newCtx(), time.Millisecond), ErrDependencyCycle)
		require.False(t, s.Resolved())

		steps, err := s.Tick(newCtx(), 20*time.Millisecond, true)
		require.Equal(t, 2, steps)
		require.ErrorIs(t, err, ErrDependencyCycle)
		require.Equal(t, []string{"physics", "physics", "physics"}, r.calls)
	})

	t.Run("RegisterInvalidates", func(t *testing.T) {
		var r recorder
		s := NewScheduler(0, 0, nil, nil)
		s.Register(r.sys("a", false))
		require.NoError(t, s.Resolve())
		require.True(t, s.Resolved())
		s.Register(r.sys("b", false))
		require.False(t, s.Resolved())
		require.NoError(t, s.ExecuteVariable(newCtx(), 0))
		require.True(t, s.Resolved())
		require.Equal(t, []string{"a", "b"}, r.calls)
	})

	t.Run("FailureAbortsBucket", func(t *testing.T) {
		var r recorder
		boom := errors.New("boom")
		sink := console.NewSink(10)
		s := NewScheduler(0, 0, sink, nil)
		s.Register(r.sys("first", false))
		s.Register(&Func{SystemName: "bad", After: []string{"first"}, Fn: func(*Context, time.Duration) error { return boom }})
		s.Register(r.sys("last", false, "bad"))

		err := s.ExecuteVariable(newCtx(), 0)
		require.ErrorIs(t, err, boom)
		var execErr *ExecutionError
		require.True(t, errors.As(err, &execErr))
		require.Equal(t, "bad", execErr.System)
		require.Equal(t, []string{"first"}, r.calls)

		msgs := sink.Drain()
		require.Len(t, msgs, 1)
		require.Equal(t, console.LevelError, msgs[0].Level)
	})

	t.Run("TickAccumulates", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		s.Register(r.sys("fixed", true))
		s.Register(r.sys("var", false))
		ctx := newCtx()

		n, err := s.Tick(ctx, 25*time.Millisecond, true)
		require.NoError(t, err)
		require.Equal(t, 2, n)
		n, err = s.Tick(ctx, 5*time.Millisecond, true)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, []string{"fixed", "fixed", "var", "fixed", "var"}, r.calls)
	})

	t.Run("TickWithoutFixed", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		s.Register(r.sys("fixed", true))
		s.Register(r.sys("var", false))
		n, err := s.Tick(newCtx(), time.Second, false)
		require.NoError(t, err)
		require.Zero(t, n)
		require.Equal(t, []string{"var"}, r.calls)
	})

	t.Run("TickCapsSteps", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 3, nil, nil)
		s.Register(r.sys("fixed", true))
		n, err := s.Tick(newCtx(), time.Second, true)
		require.NoError(t, err)
		require.Equal(t, 3, n)
		n, _ = s.Tick(newCtx(), 0, true)
		require.Zero(t, n)
	})

	t.Run("FixedFailureStillRunsVariable", func(t *testing.T) {
		var r recorder
		s := NewScheduler(10*time.Millisecond, 0, nil, nil)
		s.Register(&Func{SystemName: "bad", Fixed: true, Fn: func(*Context, time.Duration) error { return errors.New("x") }})
		s.Register(r.sys("var", false))
		n, err := s.Tick(newCtx(), 30*time.Millisecond, true)
		require.Error(t, err)
		require.Equal(t, 1, n)
		require.Equal(t, []string{"var"}, r.calls)
	})
}
