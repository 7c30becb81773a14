package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marshal renders the document as indented JSON.
func (s *Scene) Marshal() ([]byte, error) {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scene %q: %w", s.Name, err)
	}
	return append(raw, '\n'), nil
}

// Parse decodes a document. Unknown component keys are ignored.
func Parse(raw []byte) (*Scene, error) {
	var s Scene
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if s.Entities == nil {
		s.Entities = []SerializedEntity{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the document to path, creating parent directories.
func (s *Scene) Save(path string) error {
	raw, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a document from path.
func Load(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
