package asset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("SequentialFromOne", func(t *testing.T) {
		r := NewRegistry()
		require.Equal(t, AssetID(1), r.Register("sprites/a.png"))
		require.Equal(t, AssetID(2), r.Register("sprites/b.png"))
		require.Equal(t, AssetID(1), r.Register("./sprites/a.png"))
		p, ok := r.PathOf(2)
		require.True(t, ok)
		require.Equal(t, "sprites/b.png", p)
	})

	t.Run("RegisterAsConflicts", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.RegisterAs("sprites/p.png", 7))
		require.Error(t, r.RegisterAs("sprites/q.png", 7))
		require.Error(t, r.RegisterAs("sprites/p.png", 8))
		require.Equal(t, AssetID(8), r.Register("sprites/q.png"))
	})

	t.Run("SaveLoad", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "assets", "registry.json")
		r := NewRegistry()
		r.Register("a.png")
		require.NoError(t, r.RegisterAs("b.png", 5))
		require.NoError(t, r.Save(file))

		back, err := LoadRegistry(file)
		require.NoError(t, err)
		require.Equal(t, []string{"a.png", "b.png"}, back.Paths())
		require.Equal(t, AssetID(6), back.Register("c.png"))
	})

	t.Run("MissingFileIsEmpty", func(t *testing.T) {
		r, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		require.Zero(t, r.Len())
	})
}

func TestResolveTexture(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterAs("sprites/p.png", 7))
	l := NewRegistryLoader(r)

	id, err := ResolveTexture(l, "sprites/p.png", 0)
	require.NoError(t, err)
	require.Equal(t, AssetID(7), id)

	id, err = ResolveTexture(l, "sprites/moved.png", 7)
	require.NoError(t, err)
	require.Equal(t, AssetID(7), id)

	_, err = ResolveTexture(l, "sprites/moved.png", 99)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = ResolveTexture(l, "", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sprites"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sprites", "p.png"), []byte("png"), 0o644))

	r := NewRegistry()
	l := NewFileLoader(dir, r)
	id, err := l.LoadTexture("sprites/p.png")
	require.NoError(t, err)
	require.Equal(t, AssetID(1), id)
	fp, ok := l.Fingerprint(id)
	require.True(t, ok)
	require.NotZero(t, fp)

	_, err = l.LoadTexture("sprites/missing.png")
	require.ErrorIs(t, err, ErrNotFound)

	got, err := l.LoadTextureByID(id)
	require.NoError(t, err)
	require.Equal(t, id, got)

	require.NoError(t, os.Remove(filepath.Join(dir, "sprites", "p.png")))
	_, err = l.LoadTextureByID(id)
	require.Error(t, err)
}
