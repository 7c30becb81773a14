package editor

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stagehand/editor/internal/scene"
	"gopkg.in/yaml.v3"
)

//go:embed templates/default.yaml
var builtinTemplates embed.FS

// ErrUnknownTemplate is returned by Spawn for a template name that is not loaded.
var ErrUnknownTemplate = errors.New("unknown template")

// TemplateEntry is one template as written in YAML. Components use the
// scene document keys and shapes.
type TemplateEntry struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Components  map[string]any `yaml:"components"`
}

// Template is a parsed, ready-to-spawn entry.
type Template struct {
	Name        string
	Description string
	Components  scene.Components
}

// TemplateTable maps template names to their components.
type TemplateTable struct {
	templates map[string]*Template
}

// LoadTemplates reads the built-in templates and then every *.yaml file in
// dir, whose entries replace built-ins of the same name. A missing dir is
// not an error.
func LoadTemplates(dir string) (*TemplateTable, error) {
	t := &TemplateTable{templates: make(map[string]*Template)}
	raw, err := builtinTemplates.ReadFile("templates/default.yaml")
	if err != nil {
		return nil, err
	}
	if err := t.add(raw, "builtin"); err != nil {
		return nil, err
	}
	if dir == "" {
		return t, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", f, err)
		}
		if err := t.add(raw, f); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *TemplateTable) add(raw []byte, source string) error {
	var entries []TemplateEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse templates %s: %w", source, err)
	}
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("parse templates %s: entry without a name", source)
		}
		c, err := ComponentsFromYAML(e.Components)
		if err != nil {
			return fmt.Errorf("template %q in %s: %w", e.Name, source, err)
		}
		t.templates[e.Name] = &Template{Name: e.Name, Description: e.Description, Components: c}
	}
	return nil
}

// ComponentsFromYAML converts a decoded YAML mapping into scene components by
// way of their JSON form. Unknown kinds are rejected.
func ComponentsFromYAML(m map[string]any) (scene.Components, error) {
	var c scene.Components
	for k := range m {
		if !scene.IsKnownKind(k) {
			return c, fmt.Errorf("%w: %q", scene.ErrUnknownKind, k)
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, err
	}
	return c, nil
}

// Get returns the template by name.
func (t *TemplateTable) Get(name string) (*Template, error) {
	tpl, ok := t.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return tpl, nil
}

// Names lists template names in sorted order.
func (t *TemplateTable) Names() []string {
	out := make([]string, 0, len(t.templates))
	for n := range t.templates {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (t *TemplateTable) Count() int {
	return len(t.templates)
}
