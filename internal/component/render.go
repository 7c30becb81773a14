package component

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stagehand/editor/internal/asset"
)

// Render-intent payloads. The core stores them; drawing is someone else's job.

type Sprite struct {
	Texture asset.AssetID
	Size    mgl32.Vec2
	Color   mgl32.Vec4
	FlipX   bool
	FlipY   bool
}

// NewSprite returns an untinted sprite of the given size.
func NewSprite(tex asset.AssetID, w, h float32) Sprite {
	return Sprite{Texture: tex, Size: mgl32.Vec2{w, h}, Color: mgl32.Vec4{1, 1, 1, 1}}
}

type Mesh struct {
	Path      string
	Primitive string // "cube", "plane", "sphere" when Path is empty
}

type Material struct {
	Color     mgl32.Vec4
	Shader    string
	Metallic  float32
	Roughness float32
}

type Projection string

const (
	Orthographic Projection = "orthographic"
	Perspective  Projection = "perspective"
)

type Camera struct {
	Projection Projection
	FOV        float32 // radians, perspective only
	OrthoSize  float32 // half height, orthographic only
	Near       float32
	Far        float32
	Primary    bool
}

type LightKind string

const (
	Directional LightKind = "directional"
	PointLight  LightKind = "point"
	SpotLight   LightKind = "spot"
)

type Light struct {
	Kind      LightKind
	Color     mgl32.Vec3
	Intensity float32
	Range     float32
}
