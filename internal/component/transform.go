package component

import "github.com/go-gl/mathgl/mgl32"

// Transform is the local placement of an entity relative to its parent.
// Rotation holds Euler angles in radians, applied X then Y then Z.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

// NewTransform returns the identity transform.
func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

// At returns an identity transform moved to (x, y).
func At(x, y float32) Transform {
	t := NewTransform()
	t.Position = mgl32.Vec3{x, y, 0}
	return t
}

// Matrix composes translation, rotation and scale.
func (t Transform) Matrix() mgl32.Mat4 {
	rot := mgl32.HomogRotate3DZ(t.Rotation.Z()).
		Mul4(mgl32.HomogRotate3DY(t.Rotation.Y())).
		Mul4(mgl32.HomogRotate3DX(t.Rotation.X()))
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(rot).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}

// GlobalTransform is the world-space matrix derived from the Transform chain.
// It is recomputed every frame and never serialized.
type GlobalTransform struct {
	Matrix mgl32.Mat4
}

func (g GlobalTransform) Position() mgl32.Vec3 {
	return g.Matrix.Col(3).Vec3()
}
