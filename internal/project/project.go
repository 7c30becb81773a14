// Package project locates the files of an editor project on disk.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ManifestFile = "project.json"

// ErrNoManifest is returned when a directory has no project.json.
var ErrNoManifest = errors.New("project manifest not found")

// Manifest is the project.json document.
type Manifest struct {
	Name            string `json:"name"`
	DefaultScene    string `json:"default_scene,omitempty"`
	ScriptExtension string `json:"script_extension,omitempty"`
}

// Project is an opened project rooted at Root.
type Project struct {
	Root     string
	Manifest Manifest
}

// Open reads the manifest in root.
func Open(root string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(abs, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, abs)
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	if m.Name == "" {
		m.Name = filepath.Base(abs)
	}
	return &Project{Root: abs, Manifest: m}, nil
}

// Create lays out a new project with its standard directories. An existing
// manifest is left alone.
func Create(root, name string) (*Project, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	p := &Project{Root: abs, Manifest: Manifest{Name: name, ScriptExtension: ".lua"}}
	for _, dir := range []string{p.ScenesDir(), p.ScriptsDir(), p.AssetsDir(), p.TemplatesDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(filepath.Join(abs, ManifestFile)); err == nil {
		return Open(abs)
	}
	if err := p.Save(); err != nil {
		return nil, err
	}
	return p, nil
}

// OpenOrCreate opens root, creating a project named after the directory when
// it has no manifest yet.
func OpenOrCreate(root string) (*Project, error) {
	p, err := Open(root)
	if errors.Is(err, ErrNoManifest) {
		abs, aerr := filepath.Abs(root)
		if aerr != nil {
			return nil, aerr
		}
		return Create(abs, filepath.Base(abs))
	}
	return p, err
}

func (p *Project) Save() error {
	raw, err := json.MarshalIndent(p.Manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.Root, ManifestFile), append(raw, '\n'), 0o644)
}

func (p *Project) ScenesDir() string    { return filepath.Join(p.Root, "scenes") }
func (p *Project) ScriptsDir() string   { return filepath.Join(p.Root, "scripts") }
func (p *Project) AssetsDir() string    { return filepath.Join(p.Root, "assets") }
func (p *Project) TemplatesDir() string { return filepath.Join(p.Root, "templates") }

// RegistryPath is where the asset registry is persisted.
func (p *Project) RegistryPath() string { return filepath.Join(p.AssetsDir(), "registry.json") }

// ScriptExtension returns the manifest hint with a leading dot, ".lua" when unset.
func (p *Project) ScriptExtension() string {
	ext := p.Manifest.ScriptExtension
	if ext == "" {
		return ".lua"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// ScenePath resolves a scene name or relative path inside scenes/. Absolute
// paths are returned unchanged.
func (p *Project) ScenePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	if strings.HasPrefix(filepath.ToSlash(name), "scenes/") {
		return filepath.Join(p.Root, name)
	}
	return filepath.Join(p.ScenesDir(), name)
}

// DefaultScenePath is the scene opened at startup, or "" when none is set.
func (p *Project) DefaultScenePath() string {
	if p.Manifest.DefaultScene == "" {
		return ""
	}
	return p.ScenePath(p.Manifest.DefaultScene)
}

// Scenes lists scene files relative to scenes/.
func (p *Project) Scenes() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.ScenesDir(), "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Base(m))
	}
	return out, nil
}
