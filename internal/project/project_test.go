package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndOpen(t *testing.T) {
	root := t.TempDir()
	p, err := Create(root, "demo")
	require.NoError(t, err)
	require.DirExists(t, p.ScenesDir())
	require.DirExists(t, p.ScriptsDir())
	require.DirExists(t, p.AssetsDir())

	p.Manifest.DefaultScene = "main"
	require.NoError(t, p.Save())

	q, err := Open(root)
	require.NoError(t, err)
	require.Equal(t, "demo", q.Manifest.Name)
	require.Equal(t, filepath.Join(q.ScenesDir(), "main.json"), q.DefaultScenePath())
	require.Equal(t, ".lua", q.ScriptExtension())
}

func TestOpenMissingManifest(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNoManifest)
}

func TestOpenOrCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "game")
	require.NoError(t, os.MkdirAll(root, 0o755))
	p, err := OpenOrCreate(root)
	require.NoError(t, err)
	require.Equal(t, "game", p.Manifest.Name)
	require.FileExists(t, filepath.Join(root, ManifestFile))
}

func TestScenePath(t *testing.T) {
	p := &Project{Root: "/proj"}
	require.Equal(t, filepath.Join("/proj", "scenes", "a.json"), p.ScenePath("a"))
	require.Equal(t, filepath.Join("/proj", "scenes", "b.json"), p.ScenePath("scenes/b.json"))
	require.Equal(t, "/abs/c.json", p.ScenePath("/abs/c.json"))

	p.Manifest.ScriptExtension = "ts"
	require.Equal(t, ".ts", p.ScriptExtension())
}

func TestScenes(t *testing.T) {
	p, err := Create(t.TempDir(), "x")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(p.ScenesDir(), "one.json"), []byte("{}"), 0o644))
	names, err := p.Scenes()
	require.NoError(t, err)
	require.Equal(t, []string{"one.json"}, names)
}
