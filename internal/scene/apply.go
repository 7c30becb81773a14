package scene

import (
	"errors"
	"fmt"

	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/zap"
)

// ErrUnknownKind is returned for component kind names the serializer does not know.
var ErrUnknownKind = errors.New("unknown component kind")

// ErrTexture wraps a sprite whose texture could not be resolved by path or id.
var ErrTexture = errors.New("texture unavailable")

type applyMode int

const (
	// modeSpawn sets what the document has and drops unresolvable sprites.
	modeSpawn applyMode = iota
	// modeRestore also removes kinds the document lacks and keeps the live
	// sprite when the texture cannot be resolved.
	modeRestore
	// modeSet fails on an unresolvable sprite.
	modeSet
)

type applier struct {
	w      *ecs.World
	loader asset.Loader
	log    *zap.Logger
}

func (a *applier) apply(id ecs.EntityID, c *Components, mode applyMode) error {
	for _, kind := range Kinds {
		if err := a.applyKind(id, kind, c, mode); err != nil {
			return err
		}
	}
	return nil
}

// applyKind writes one kind from c onto id. An absent kind is removed only in
// restore mode.
func (a *applier) applyKind(id ecs.EntityID, kind string, c *Components, mode applyMode) error {
	w := a.w
	switch kind {
	case "Name":
		if c.Name != nil {
			return ecs.Add(w, id, component.Name(*c.Name))
		}
	case "Transform":
		if c.Transform != nil {
			return ecs.Add(w, id, c.Transform.value())
		}
	case "Sprite":
		if c.Sprite != nil {
			return a.applySprite(id, c.Sprite, mode)
		}
	case "Script":
		if c.Script != nil {
			return ecs.Add(w, id, c.Script.value())
		}
	case "Enabled":
		if c.Enabled != nil {
			return ecs.Add(w, id, component.Enabled(*c.Enabled))
		}
	case "Mesh":
		if c.Mesh != nil {
			return ecs.Add(w, id, component.Mesh{Path: c.Mesh.Path, Primitive: c.Mesh.Primitive})
		}
	case "Material":
		if c.Material != nil {
			return ecs.Add(w, id, c.Material.value())
		}
	case "Camera":
		if c.Camera != nil {
			return ecs.Add(w, id, c.Camera.value())
		}
	case "Light":
		if c.Light != nil {
			return ecs.Add(w, id, c.Light.value())
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if mode == modeRestore {
		removeKind(w, id, kind)
	}
	return nil
}

func (a *applier) applySprite(id ecs.EntityID, s *SerializedSprite, mode applyMode) error {
	sprite := component.Sprite{Size: s.Size, Color: s.Color, FlipX: s.FlipX, FlipY: s.FlipY}
	if s.TexturePath != "" || s.TextureID != 0 {
		tex, err := asset.ResolveTexture(a.loader, s.TexturePath, s.TextureID)
		if err != nil {
			switch mode {
			case modeSpawn:
				a.log.Warn("sprite texture unavailable, sprite omitted",
					zap.Stringer("entity", id), zap.String("path", s.TexturePath),
					zap.Uint64("texture_id", uint64(s.TextureID)), zap.Error(err))
				return nil
			case modeRestore:
				if ecs.Has[component.Sprite](a.w, id) {
					a.log.Warn("sprite texture unavailable, keeping current sprite",
						zap.Stringer("entity", id), zap.String("path", s.TexturePath), zap.Error(err))
				} else {
					a.log.Warn("sprite texture unavailable, sprite omitted",
						zap.Stringer("entity", id), zap.String("path", s.TexturePath), zap.Error(err))
				}
				return nil
			default:
				return fmt.Errorf("%w: %s: %v", ErrTexture, s.TexturePath, err)
			}
		}
		sprite.Texture = tex
	}
	return ecs.Add(a.w, id, sprite)
}

func hasKind(w *ecs.World, id ecs.EntityID, kind string) (bool, error) {
	switch kind {
	case "Name":
		return ecs.Has[component.Name](w, id), nil
	case "Transform":
		return ecs.Has[component.Transform](w, id), nil
	case "Sprite":
		return ecs.Has[component.Sprite](w, id), nil
	case "Script":
		return ecs.Has[component.Script](w, id), nil
	case "Enabled":
		return ecs.Has[component.Enabled](w, id), nil
	case "Mesh":
		return ecs.Has[component.Mesh](w, id), nil
	case "Material":
		return ecs.Has[component.Material](w, id), nil
	case "Camera":
		return ecs.Has[component.Camera](w, id), nil
	case "Light":
		return ecs.Has[component.Light](w, id), nil
	}
	return false, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

func removeKind(w *ecs.World, id ecs.EntityID, kind string) bool {
	var ok bool
	switch kind {
	case "Name":
		_, ok = ecs.Remove[component.Name](w, id)
	case "Transform":
		_, ok = ecs.Remove[component.Transform](w, id)
	case "Sprite":
		_, ok = ecs.Remove[component.Sprite](w, id)
	case "Script":
		_, ok = ecs.Remove[component.Script](w, id)
	case "Enabled":
		_, ok = ecs.Remove[component.Enabled](w, id)
	case "Mesh":
		_, ok = ecs.Remove[component.Mesh](w, id)
	case "Material":
		_, ok = ecs.Remove[component.Material](w, id)
	case "Camera":
		_, ok = ecs.Remove[component.Camera](w, id)
	case "Light":
		_, ok = ecs.Remove[component.Light](w, id)
	}
	return ok
}

// IsKnownKind reports whether kind is one of Kinds.
func IsKnownKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
