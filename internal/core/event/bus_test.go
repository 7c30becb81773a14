package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBus(t *testing.T) {
	t.Run("DeliveredAfterSwap", func(t *testing.T) {
		b := NewBus()
		var got []string
		Subscribe(b, func(ev ScriptReloaded) { got = append(got, ev.Path) })

		Emit(b, ScriptReloaded{Path: "scripts/a.lua"})
		require.Equal(t, 0, b.DispatchAll())
		require.Equal(t, 1, b.Pending())

		b.SwapBuffers()
		require.Equal(t, 1, b.DispatchAll())
		require.Equal(t, []string{"scripts/a.lua"}, got)

		b.SwapBuffers()
		require.Equal(t, 0, b.DispatchAll())
		require.Len(t, got, 1)
	})

	t.Run("TypesAreIsolated", func(t *testing.T) {
		b := NewBus()
		saved, loaded := 0, 0
		Subscribe(b, func(SceneSaved) { saved++ })
		Subscribe(b, func(SceneLoaded) { loaded++ })
		Emit(b, SceneSaved{Path: "a"})
		Emit(b, SceneSaved{Path: "b"})
		b.SwapBuffers()
		b.DispatchAll()
		require.Equal(t, 2, saved)
		require.Zero(t, loaded)
	})
}
