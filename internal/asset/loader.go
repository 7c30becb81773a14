package asset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ErrNotFound reports a texture that cannot be located by path or id.
var ErrNotFound = errors.New("asset not found")

// Loader resolves texture references to registered ids.
type Loader interface {
	LoadTexture(path string) (AssetID, error)
	LoadTextureByID(id AssetID) (AssetID, error)
}

// ResolveTexture tries path first and falls back to id. Both attempts
// failing returns an error that wraps both causes.
func ResolveTexture(l Loader, path string, id AssetID) (AssetID, error) {
	var pathErr error
	if path != "" {
		got, err := l.LoadTexture(path)
		if err == nil {
			return got, nil
		}
		pathErr = err
	}
	if id != 0 {
		got, err := l.LoadTextureByID(id)
		if err == nil {
			return got, nil
		}
		return 0, errors.Join(pathErr, err)
	}
	if pathErr != nil {
		return 0, pathErr
	}
	return 0, fmt.Errorf("%w: empty texture reference", ErrNotFound)
}

// RegistryLoader resolves textures purely against a registry. Useful when
// the files themselves are not needed, such as in tests and offline tools.
type RegistryLoader struct {
	Registry *Registry
}

func NewRegistryLoader(r *Registry) *RegistryLoader {
	return &RegistryLoader{Registry: r}
}

func (l *RegistryLoader) LoadTexture(path string) (AssetID, error) {
	if id, ok := l.Registry.ID(path); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
}

func (l *RegistryLoader) LoadTextureByID(id AssetID) (AssetID, error) {
	if _, ok := l.Registry.PathOf(id); ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
}

// FileLoader loads textures from the project's assets directory, registering
// new paths as they are seen and remembering a content fingerprint per id.
type FileLoader struct {
	root     string
	registry *Registry

	mu           sync.Mutex
	fingerprints map[AssetID]uint64
}

func NewFileLoader(root string, r *Registry) *FileLoader {
	return &FileLoader{root: root, registry: r, fingerprints: make(map[AssetID]uint64)}
}

func (l *FileLoader) Registry() *Registry { return l.registry }

func (l *FileLoader) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

func (l *FileLoader) LoadTexture(path string) (AssetID, error) {
	raw, err := os.ReadFile(l.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("load texture %s: %w", path, err)
	}
	id := l.registry.Register(path)
	l.remember(id, raw)
	return id, nil
}

func (l *FileLoader) LoadTextureByID(id AssetID) (AssetID, error) {
	path, ok := l.registry.PathOf(id)
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	raw, err := os.ReadFile(l.abs(path))
	if err != nil {
		return 0, fmt.Errorf("load texture %d (%s): %w", id, path, err)
	}
	l.remember(id, raw)
	return id, nil
}

func (l *FileLoader) remember(id AssetID, raw []byte) {
	l.mu.Lock()
	l.fingerprints[id] = xxhash.Sum64(raw)
	l.mu.Unlock()
}

// Fingerprint returns the xxhash of the last loaded content of id.
func (l *FileLoader) Fingerprint(id AssetID) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fp, ok := l.fingerprints[id]
	return fp, ok
}
