package scene

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/zap"
)

// Accessor reads and writes components by kind name using their document
// JSON form. It backs both remote SetComponent commands and the script facade.
type Accessor struct {
	World  *ecs.World
	Assets *asset.Registry
	Loader asset.Loader
	Log    *zap.Logger
}

func NewAccessor(w *ecs.World, reg *asset.Registry, loader asset.Loader, log *zap.Logger) *Accessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accessor{World: w, Assets: reg, Loader: loader, Log: log}
}

func (a *Accessor) fields(id ecs.EntityID) (map[string]json.RawMessage, error) {
	if err := a.World.Check(id); err != nil {
		return nil, err
	}
	c := Capture(a.World, a.Assets, id)
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Components returns all known components on id in document form.
func (a *Accessor) Components(id ecs.EntityID) (Components, error) {
	if err := a.World.Check(id); err != nil {
		return Components{}, err
	}
	return Capture(a.World, a.Assets, id), nil
}

// Read returns the JSON form of one component. ok is false when the entity
// lacks it.
func (a *Accessor) Read(id ecs.EntityID, kind string) (json.RawMessage, bool, error) {
	if !IsKnownKind(kind) {
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	m, err := a.fields(id)
	if err != nil {
		return nil, false, err
	}
	raw, ok := m[kind]
	return raw, ok, nil
}

// Write sets one component from JSON. An object value is merged key by key
// over the current value so callers can change single fields; a null value
// removes the component.
func (a *Accessor) Write(id ecs.EntityID, kind string, value json.RawMessage) error {
	if !IsKnownKind(kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := a.World.Check(id); err != nil {
		return err
	}
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		removeKind(a.World, id, kind)
		return nil
	}

	merged := value
	if cur, ok, err := a.Read(id, kind); err != nil {
		return err
	} else if ok {
		merged, err = mergeJSON(cur, value)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}

	doc, err := json.Marshal(map[string]json.RawMessage{kind: merged})
	if err != nil {
		return err
	}
	var c Components
	if err := json.Unmarshal(doc, &c); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	ap := &applier{w: a.World, loader: a.Loader, log: a.Log}
	return ap.applyKind(id, kind, &c, modeSet)
}

// Remove detaches one component by kind name.
func (a *Accessor) Remove(id ecs.EntityID, kind string) (bool, error) {
	if !IsKnownKind(kind) {
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err := a.World.Check(id); err != nil {
		return false, err
	}
	return removeKind(a.World, id, kind), nil
}

// Has reports whether id carries kind.
func (a *Accessor) Has(id ecs.EntityID, kind string) (bool, error) {
	if err := a.World.Check(id); err != nil {
		return false, err
	}
	return hasKind(a.World, id, kind)
}

// FindByName returns the first live entity, by index, whose Name equals name.
func (a *Accessor) FindByName(name string) (ecs.EntityID, bool) {
	for _, id := range a.World.Entities() {
		if n, ok := ecs.Get[component.Name](a.World, id); ok && string(*n) == name {
			return id, true
		}
	}
	return ecs.Nil, false
}

// Query lists live entities carrying kind in index order.
func (a *Accessor) Query(kind string) ([]ecs.EntityID, error) {
	if !IsKnownKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	var out []ecs.EntityID
	for _, id := range a.World.Entities() {
		if ok, _ := hasKind(a.World, id, kind); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// mergeJSON overlays patch on base when both are objects. Anything else
// replaces base outright.
func mergeJSON(base, patch json.RawMessage) (json.RawMessage, error) {
	var b, p map[string]json.RawMessage
	if json.Unmarshal(base, &b) != nil || json.Unmarshal(patch, &p) != nil || b == nil || p == nil {
		return patch, nil
	}
	for k, v := range p {
		b[k] = v
	}
	return json.Marshal(b)
}
