package ecs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type position struct{ X, Y float32 }
type velocity struct{ X, Y float32 }
type tag struct{}

func TestWorld(t *testing.T) {
	t.Run("SpawnReturnsUniqueLiveHandles", func(t *testing.T) {
		w := NewWorld()
		seen := map[EntityID]bool{}
		for i := 0; i < 100; i++ {
			id := w.Spawn()
			require.False(t, id.IsZero())
			require.False(t, seen[id])
			seen[id] = true
		}
		require.Equal(t, 100, w.Len())
	})

	t.Run("StaleHandleNeverSeesNextOccupant", func(t *testing.T) {
		w := NewWorld()
		a := w.Spawn()
		require.NoError(t, Add(w, a, position{X: 1}))
		require.NoError(t, w.Despawn(a))

		b := w.Spawn()
		require.Equal(t, a.Index(), b.Index())
		require.NotEqual(t, a, b)
		require.NoError(t, Add(w, b, position{X: 2}))

		_, ok := Get[position](w, a)
		require.False(t, ok)
		p, ok := Get[position](w, b)
		require.True(t, ok)
		require.Equal(t, float32(2), p.X)

		require.ErrorIs(t, Add(w, a, velocity{}), ErrStaleEntity)
		require.ErrorIs(t, w.Despawn(a), ErrStaleEntity)
	})

	t.Run("AddReplaces", func(t *testing.T) {
		w := NewWorld()
		e := w.Spawn()
		require.NoError(t, Add(w, e, position{X: 1}))
		require.NoError(t, Add(w, e, position{X: 5}))
		p, ok := Get[position](w, e)
		require.True(t, ok)
		require.Equal(t, float32(5), p.X)
		require.Equal(t, 1, StoreOf[position](w).Len())
	})

	t.Run("GetMutWritesThrough", func(t *testing.T) {
		w := NewWorld()
		e := w.Spawn()
		require.NoError(t, Add(w, e, position{}))
		p, _ := Get[position](w, e)
		p.Y = 9
		q, _ := Get[position](w, e)
		require.Equal(t, float32(9), q.Y)
	})

	t.Run("RemoveReturnsValue", func(t *testing.T) {
		w := NewWorld()
		e := w.Spawn()
		require.NoError(t, Add(w, e, velocity{X: 3}))
		v, ok := Remove[velocity](w, e)
		require.True(t, ok)
		require.Equal(t, float32(3), v.X)
		_, ok = Remove[velocity](w, e)
		require.False(t, ok)
		require.False(t, Has[velocity](w, e))
	})

	t.Run("DespawnClearsAllComponents", func(t *testing.T) {
		w := NewWorld()
		e := w.Spawn()
		require.NoError(t, Add(w, e, position{}))
		require.NoError(t, Add(w, e, velocity{}))
		require.Len(t, w.ComponentTypes(e), 2)
		require.NoError(t, w.Despawn(e))
		require.Equal(t, 0, StoreOf[position](w).Len())
		require.Equal(t, 0, StoreOf[velocity](w).Len())
		require.Nil(t, w.ComponentTypes(e))
	})

	t.Run("EntitiesInIndexOrder", func(t *testing.T) {
		w := NewWorld()
		a, b, c := w.Spawn(), w.Spawn(), w.Spawn()
		require.NoError(t, w.Despawn(b))
		require.Equal(t, []EntityID{a, c}, w.Entities())
		d := w.Spawn()
		require.Equal(t, []EntityID{a, d, c}, w.Entities())
	})

	t.Run("Clear", func(t *testing.T) {
		w := NewWorld()
		a := w.Spawn()
		require.NoError(t, Add(w, a, tag{}))
		w.Clear()
		require.Equal(t, 0, w.Len())
		require.False(t, w.Alive(a))
		require.Equal(t, 0, StoreOf[tag](w).Len())
	})
}

func TestQuery(t *testing.T) {
	t.Run("DeterministicOrder", func(t *testing.T) {
		build := func() []EntityID {
			w := NewWorld()
			var ids []EntityID
			for i := 0; i < 20; i++ {
				e := w.Spawn()
				ids = append(ids, e)
				require.NoError(t, Add(w, e, position{X: float32(i)}))
				if i%3 == 0 {
					require.NoError(t, Add(w, e, velocity{}))
				}
			}
			require.NoError(t, w.Despawn(ids[4]))
			Remove[position](w, ids[7])

			var out []EntityID
			Each2(w, func(id EntityID, _ *position, _ *velocity) { out = append(out, id) })
			Each(w, func(id EntityID, _ *position) { out = append(out, id) })
			return out
		}
		require.Equal(t, build(), build())
	})

	t.Run("Each3MatchesConjunction", func(t *testing.T) {
		w := NewWorld()
		a, b := w.Spawn(), w.Spawn()
		for _, e := range []EntityID{a, b} {
			require.NoError(t, Add(w, e, position{}))
			require.NoError(t, Add(w, e, velocity{}))
		}
		require.NoError(t, Add(w, b, tag{}))
		var hits []EntityID
		Each3(w, func(id EntityID, _ *position, _ *velocity, _ *tag) { hits = append(hits, id) })
		require.Equal(t, []EntityID{b}, hits)
	})

	t.Run("DespawnDuringIterationIsDeferred", func(t *testing.T) {
		w := NewWorld()
		var ids []EntityID
		for i := 0; i < 5; i++ {
			e := w.Spawn()
			ids = append(ids, e)
			require.NoError(t, Add(w, e, position{}))
		}
		visited := 0
		Each(w, func(id EntityID, _ *position) {
			visited++
			require.NoError(t, w.Despawn(id))
		})
		require.Equal(t, 5, visited)
		require.Equal(t, 5, w.Len())
		require.Equal(t, 5, w.Pending())
		require.Equal(t, 5, w.FlushDestroyQueue())
		require.Equal(t, 0, w.Len())
	})
}
