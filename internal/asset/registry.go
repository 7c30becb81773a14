// Package asset maps asset paths to stable runtime ids and loads textures
// through them.
package asset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// AssetID identifies a registered asset. Zero means no asset.
type AssetID uint64

// Registry assigns sequential ids, starting at 1, to asset paths.
type Registry struct {
	mu       sync.RWMutex
	pathToID map[string]AssetID
	idToPath map[AssetID]string
	nextID   AssetID
}

func NewRegistry() *Registry {
	return &Registry{
		pathToID: make(map[string]AssetID),
		idToPath: make(map[AssetID]string),
		nextID:   1,
	}
}

// NormalizePath turns a path into the registry key form: forward slashes,
// cleaned, no leading "./".
func NormalizePath(p string) string {
	return strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "./")
}

// Register returns path's id, assigning the next one if it is new.
func (r *Registry) Register(path string) AssetID {
	key := NormalizePath(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.pathToID[key]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.pathToID[key] = id
	r.idToPath[id] = key
	return id
}

// RegisterAs binds path to a specific id. It fails if either side is
// already bound to something else.
func (r *Registry) RegisterAs(path string, id AssetID) error {
	if id == 0 {
		return fmt.Errorf("register %s: zero asset id", path)
	}
	key := NormalizePath(path)
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.pathToID[key]; ok && cur != id {
		return fmt.Errorf("register %s: already bound to id %d", key, cur)
	}
	if cur, ok := r.idToPath[id]; ok && cur != key {
		return fmt.Errorf("register %s: id %d already bound to %s", key, id, cur)
	}
	r.pathToID[key] = id
	r.idToPath[id] = key
	if id >= r.nextID {
		r.nextID = id + 1
	}
	return nil
}

func (r *Registry) ID(path string) (AssetID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pathToID[NormalizePath(path)]
	return id, ok
}

// PathOf resolves an id back to its path.
func (r *Registry) PathOf(id AssetID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.idToPath[id]
	return p, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pathToID)
}

// Paths returns registered paths sorted by id.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]AssetID, 0, len(r.idToPath))
	for id := range r.idToPath {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = r.idToPath[id]
	}
	return out
}

type registryFile struct {
	PathToID map[string]AssetID `json:"path_to_id"`
	NextID   AssetID            `json:"next_id"`
}

// LoadRegistry reads a registry file. A missing file yields an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read asset registry: %w", err)
	}
	var f registryFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse asset registry %s: %w", path, err)
	}
	for p, id := range f.PathToID {
		if err := r.RegisterAs(p, id); err != nil {
			return nil, fmt.Errorf("asset registry %s: %w", path, err)
		}
	}
	if f.NextID > r.nextID {
		r.nextID = f.NextID
	}
	return r, nil
}

// Save writes the registry as JSON, creating parent directories.
func (r *Registry) Save(path string) error {
	r.mu.RLock()
	f := registryFile{PathToID: make(map[string]AssetID, len(r.pathToID)), NextID: r.nextID}
	for p, id := range r.pathToID {
		f.PathToID[p] = id
	}
	r.mu.RUnlock()

	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write asset registry: %w", err)
	}
	return nil
}
