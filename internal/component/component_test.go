package component

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestTransformMatrix(t *testing.T) {
	tr := At(10, 20)
	tr.Scale = mgl32.Vec3{2, 2, 1}
	tr.Rotation = mgl32.Vec3{0, 0, math.Pi / 2}

	p := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	require.InDelta(t, 10, p.X(), 1e-4)
	require.InDelta(t, 22, p.Y(), 1e-4)

	g := GlobalTransform{Matrix: tr.Matrix()}
	require.True(t, g.Position().ApproxEqual(mgl32.Vec3{10, 20, 0}))
}

func TestScriptClone(t *testing.T) {
	s := NewScript("scripts/a.lua")
	s.Properties = map[string]any{"speed": 3.0, "path": []any{1.0, map[string]any{"x": 1.0}}}
	c := s.Clone()
	c.Paths[0] = "scripts/b.lua"
	c.Properties["path"].([]any)[1].(map[string]any)["x"] = 9.0

	require.Equal(t, "scripts/a.lua", s.Paths[0])
	require.Equal(t, 1.0, s.Properties["path"].([]any)[1].(map[string]any)["x"])
	require.True(t, s.Enabled)
}
