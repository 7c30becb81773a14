package console

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func texts(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Text
	}
	return out
}

func TestSink(t *testing.T) {
	t.Run("FIFO", func(t *testing.T) {
		s := NewSink(4)
		s.Push(LevelInfo, "a.lua", "one")
		s.Push(LevelError, "", "two")
		msgs := s.Drain()
		require.Equal(t, []string{"one", "two"}, texts(msgs))
		require.Equal(t, "a.lua", msgs[0].ScriptPath)
		require.Equal(t, LevelError, msgs[1].Level)
		require.False(t, msgs[0].Timestamp.IsZero())
		require.Equal(t, 0, s.Len())
	})

	t.Run("OverflowDropsOldest", func(t *testing.T) {
		s := NewSink(3)
		for i := 0; i < 5; i++ {
			s.Infof("m%d", i)
		}
		require.Equal(t, uint64(2), s.Dropped())
		require.Equal(t, []string{"m2", "m3", "m4"}, texts(s.Drain()))
	})

	t.Run("DrainReleasesMessages", func(t *testing.T) {
		s := NewSink(3)
		for i := 0; i < 4; i++ {
			s.Infof("m%d", i)
		}
		require.Equal(t, []string{"m1", "m2", "m3"}, texts(s.Drain()))
		for i, m := range s.buf {
			require.Equal(t, Message{}, m, "slot %d", i)
		}
		s.Infof("next")
		require.Equal(t, []string{"next"}, texts(s.Drain()))
	})

	t.Run("TailDoesNotConsume", func(t *testing.T) {
		s := NewSink(10)
		for i := 0; i < 4; i++ {
			s.Infof("m%d", i)
		}
		require.Equal(t, []string{"m2", "m3"}, texts(s.Tail(2)))
		require.Equal(t, 4, s.Len())
		require.Len(t, s.Tail(0), 4)
	})

	t.Run("ResizeKeepsNewest", func(t *testing.T) {
		s := NewSink(5)
		for i := 0; i < 5; i++ {
			s.Infof("m%d", i)
		}
		s.Resize(2)
		require.Equal(t, 2, s.Capacity())
		require.Equal(t, []string{"m3", "m4"}, texts(s.Drain()))
	})

	t.Run("ConcurrentPush", func(t *testing.T) {
		s := NewSink(100)
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					s.Push(LevelDebug, "", fmt.Sprintf("%d-%d", g, i))
				}
			}(g)
		}
		wg.Wait()
		require.Equal(t, 100, s.Len())
		require.Equal(t, uint64(300), s.Dropped())
	})

	t.Run("DefaultIsShared", func(t *testing.T) {
		require.Same(t, Default(), Default())
		require.Equal(t, DefaultCapacity, Default().Capacity())
	})

	t.Run("LevelText", func(t *testing.T) {
		var l Level
		require.NoError(t, l.UnmarshalText([]byte("warning")))
		require.Equal(t, LevelWarn, l)
		require.Error(t, l.UnmarshalText([]byte("loud")))
	})
}
