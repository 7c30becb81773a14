// Package scene converts between a live world and portable scene documents.
package scene

import (
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/component"
)

// Scene is a portable tree of entities. Only roots sit at the top level.
type Scene struct {
	Name     string             `json:"name"`
	Entities []SerializedEntity `json:"entities"`
}

// SerializedEntity is one document node. ID cross-references entities
// within a document and has no meaning to a fresh world.
type SerializedEntity struct {
	ID         uint64             `json:"id"`
	Components Components         `json:"components"`
	Children   []SerializedEntity `json:"children,omitempty"`
}

// Components holds one optional field per known kind. A nil field means the
// component is absent.
type Components struct {
	Name      *string              `json:"Name,omitempty"`
	Transform *SerializedTransform `json:"Transform,omitempty"`
	Sprite    *SerializedSprite    `json:"Sprite,omitempty"`
	Script    *SerializedScript    `json:"Script,omitempty"`
	Enabled   *bool                `json:"Enabled,omitempty"`
	Mesh      *SerializedMesh      `json:"Mesh,omitempty"`
	Material  *SerializedMaterial  `json:"Material,omitempty"`
	Camera    *SerializedCamera    `json:"Camera,omitempty"`
	Light     *SerializedLight     `json:"Light,omitempty"`
}

// Kinds lists the known component kinds in serialization order.
var Kinds = []string{"Name", "Transform", "Sprite", "Script", "Enabled", "Mesh", "Material", "Camera", "Light"}

// Walk visits every entity of the document in pre-order. parent is nil for roots.
func (s *Scene) Walk(fn func(e *SerializedEntity, parent *SerializedEntity)) {
	var visit func(list []SerializedEntity, parent *SerializedEntity)
	visit = func(list []SerializedEntity, parent *SerializedEntity) {
		for i := range list {
			fn(&list[i], parent)
			visit(list[i].Children, &list[i])
		}
	}
	visit(s.Entities, nil)
}

// Count returns the number of entities including descendants.
func (s *Scene) Count() int {
	n := 0
	s.Walk(func(*SerializedEntity, *SerializedEntity) { n++ })
	return n
}

// Index maps document ids to their nodes, descendants included.
func (s *Scene) Index() map[uint64]*SerializedEntity {
	out := make(map[uint64]*SerializedEntity)
	s.Walk(func(e *SerializedEntity, _ *SerializedEntity) { out[e.ID] = e })
	return out
}

// Validate reports duplicate ids, which would make restore ambiguous.
func (s *Scene) Validate() error {
	seen := make(map[uint64]bool)
	var err error
	s.Walk(func(e *SerializedEntity, _ *SerializedEntity) {
		if err == nil && seen[e.ID] {
			err = fmt.Errorf("duplicate entity id %d", e.ID)
		}
		seen[e.ID] = true
	})
	return err
}

type SerializedTransform struct {
	Position []float32 `json:"position"`
	Rotation Rotation  `json:"rotation"`
	Scale    []float32 `json:"scale"`
}

// Rotation is written as a bare number when only the Z angle is set, which
// is the common 2D case, and as [x, y, z] otherwise.
type Rotation mgl32.Vec3

func (r Rotation) MarshalJSON() ([]byte, error) {
	if r[0] == 0 && r[1] == 0 {
		return json.Marshal(r[2])
	}
	return json.Marshal([3]float32(r))
}

func (r *Rotation) UnmarshalJSON(b []byte) error {
	var z float32
	if err := json.Unmarshal(b, &z); err == nil {
		*r = Rotation{0, 0, z}
		return nil
	}
	var v []float32
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("rotation: %w", err)
	}
	switch len(v) {
	case 1:
		*r = Rotation{0, 0, v[0]}
	case 3:
		*r = Rotation{v[0], v[1], v[2]}
	default:
		return fmt.Errorf("rotation: want number or 3 elements, got %d", len(v))
	}
	return nil
}

type SerializedSprite struct {
	TexturePath string        `json:"texture_path,omitempty"`
	TextureID   asset.AssetID `json:"texture_id,omitempty"`
	Size        [2]float32    `json:"size"`
	Color       [4]float32    `json:"color"`
	FlipX       bool          `json:"flip_x"`
	FlipY       bool          `json:"flip_y"`
}

type SerializedScript struct {
	Path            string         `json:"path"`
	AdditionalPaths []string       `json:"additional_paths,omitempty"`
	Enabled         *bool          `json:"enabled,omitempty"`
	ExecutionOrder  int32          `json:"execution_order"`
	Properties      map[string]any `json:"properties"`
}

type SerializedMesh struct {
	Path      string `json:"path,omitempty"`
	Primitive string `json:"primitive,omitempty"`
}

type SerializedMaterial struct {
	Color     [4]float32 `json:"color"`
	Shader    string     `json:"shader,omitempty"`
	Metallic  float32    `json:"metallic"`
	Roughness float32    `json:"roughness"`
}

type SerializedCamera struct {
	Projection component.Projection `json:"projection"`
	FOV        float32              `json:"fov,omitempty"`
	OrthoSize  float32              `json:"ortho_size,omitempty"`
	Near       float32              `json:"near"`
	Far        float32              `json:"far"`
	Primary    bool                 `json:"primary"`
}

type SerializedLight struct {
	Kind      component.LightKind `json:"kind"`
	Color     [3]float32          `json:"color"`
	Intensity float32             `json:"intensity"`
	Range     float32             `json:"range,omitempty"`
}

// vec emits two elements when z holds its default, three otherwise.
func vec(v mgl32.Vec3, defZ float32) []float32 {
	if v.Z() == defZ {
		return []float32{v.X(), v.Y()}
	}
	return []float32{v.X(), v.Y(), v.Z()}
}

// vec3 widens a 0-3 element slice, filling gaps with def.
func vec3(v []float32, def float32) mgl32.Vec3 {
	out := mgl32.Vec3{def, def, def}
	for i := 0; i < len(v) && i < 3; i++ {
		out[i] = v[i]
	}
	return out
}

func serializeTransform(t component.Transform) *SerializedTransform {
	return &SerializedTransform{
		Position: vec(t.Position, 0),
		Rotation: Rotation(t.Rotation),
		Scale:    vec(t.Scale, 1),
	}
}

func (s *SerializedTransform) value() component.Transform {
	return component.Transform{
		Position: vec3(s.Position, 0),
		Rotation: mgl32.Vec3(s.Rotation),
		Scale:    vec3(s.Scale, 1),
	}
}

func serializeScript(s component.Script) *SerializedScript {
	out := &SerializedScript{
		ExecutionOrder: s.ExecutionOrder,
		Properties:     component.CloneProperties(s.Properties),
	}
	if len(s.Paths) > 0 {
		out.Path = s.Paths[0]
		if len(s.Paths) > 1 {
			out.AdditionalPaths = append([]string(nil), s.Paths[1:]...)
		}
	}
	if !s.Enabled {
		f := false
		out.Enabled = &f
	}
	if out.Properties == nil {
		out.Properties = map[string]any{}
	}
	return out
}

func (s *SerializedScript) value() component.Script {
	out := component.Script{
		Enabled:        s.Enabled == nil || *s.Enabled,
		ExecutionOrder: s.ExecutionOrder,
		Properties:     component.CloneProperties(s.Properties),
	}
	if s.Path != "" {
		out.Paths = append(out.Paths, s.Path)
	}
	out.Paths = append(out.Paths, s.AdditionalPaths...)
	return out
}

func serializeMaterial(m component.Material) *SerializedMaterial {
	return &SerializedMaterial{Color: m.Color, Shader: m.Shader, Metallic: m.Metallic, Roughness: m.Roughness}
}

func (m *SerializedMaterial) value() component.Material {
	return component.Material{Color: m.Color, Shader: m.Shader, Metallic: m.Metallic, Roughness: m.Roughness}
}

func serializeCamera(c component.Camera) *SerializedCamera {
	return &SerializedCamera{
		Projection: c.Projection, FOV: c.FOV, OrthoSize: c.OrthoSize,
		Near: c.Near, Far: c.Far, Primary: c.Primary,
	}
}

func (c *SerializedCamera) value() component.Camera {
	return component.Camera{
		Projection: c.Projection, FOV: c.FOV, OrthoSize: c.OrthoSize,
		Near: c.Near, Far: c.Far, Primary: c.Primary,
	}
}

func serializeLight(l component.Light) *SerializedLight {
	return &SerializedLight{Kind: l.Kind, Color: l.Color, Intensity: l.Intensity, Range: l.Range}
}

func (l *SerializedLight) value() component.Light {
	return component.Light{Kind: l.Kind, Color: l.Color, Intensity: l.Intensity, Range: l.Range}
}
