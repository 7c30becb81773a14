package scene

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stretchr/testify/require"
)

// buildTree makes root R{Name, Transform} with children C1 (sprite on asset 7) and C2.
func buildTree(t *testing.T) (*ecs.World, *asset.Registry, ecs.EntityID, ecs.EntityID, ecs.EntityID) {
	t.Helper()
	w := ecs.NewWorld()
	reg := asset.NewRegistry()
	require.NoError(t, reg.RegisterAs("sprites/p.png", 7))

	r, c1, c2 := w.Spawn(), w.Spawn(), w.Spawn()
	require.NoError(t, ecs.Add(w, r, component.Name("R")))
	require.NoError(t, ecs.Add(w, r, component.At(10, 20)))
	require.NoError(t, ecs.Add(w, c1, component.Name("C1")))
	require.NoError(t, ecs.Add(w, c1, component.NewSprite(7, 32, 32)))
	require.NoError(t, ecs.Add(w, c2, component.Name("C2")))
	s := component.NewScript("scripts/mover.lua")
	s.ExecutionOrder = 3
	s.Properties = map[string]any{"speed": 2.5}
	require.NoError(t, ecs.Add(w, c2, s))
	require.NoError(t, ecs.AddChild(w, r, c1))
	require.NoError(t, ecs.AddChild(w, r, c2))
	return w, reg, r, c1, c2
}

// stripIDs zeroes document ids so two documents can be compared up to renaming.
func stripIDs(s *Scene) *Scene {
	raw, _ := json.Marshal(s)
	var out Scene
	_ = json.Unmarshal(raw, &out)
	out.Walk(func(e *SerializedEntity, _ *SerializedEntity) { e.ID = 0 })
	return &out
}

func TestRoundtrip(t *testing.T) {
	w, reg, _, _, _ := buildTree(t)
	doc := FromWorld(w, reg, "main")
	require.Len(t, doc.Entities, 1)
	require.Len(t, doc.Entities[0].Children, 2)

	raw, err := doc.Marshal()
	require.NoError(t, err)
	parsed, err := Parse(raw)
	require.NoError(t, err)

	w2 := ecs.NewWorld()
	ids := parsed.SpawnInto(w2, asset.NewRegistryLoader(reg), nil)
	require.Len(t, ids, 3)

	roots := ecs.Roots(w2)
	require.Len(t, roots, 1)
	kids := ecs.ChildrenOf(w2, roots[0])
	require.Len(t, kids, 2)
	n, _ := ecs.Get[component.Name](w2, kids[0])
	require.Equal(t, component.Name("C1"), *n)
	sp, ok := ecs.Get[component.Sprite](w2, kids[0])
	require.True(t, ok)
	require.Equal(t, asset.AssetID(7), sp.Texture)
	tr, _ := ecs.Get[component.Transform](w2, roots[0])
	require.Equal(t, mgl32.Vec3{10, 20, 0}, tr.Position)

	require.Equal(t, stripIDs(doc), stripIDs(FromWorld(w2, reg, "main")))
}

func TestDocumentFormat(t *testing.T) {
	w, reg, _, _, _ := buildTree(t)
	raw, err := FromWorld(w, reg, "main").Marshal()
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	root := generic["entities"].([]any)[0].(map[string]any)
	comps := root["components"].(map[string]any)
	require.Equal(t, "R", comps["Name"])
	tr := comps["Transform"].(map[string]any)
	require.Equal(t, []any{10.0, 20.0}, tr["position"])
	require.Equal(t, 0.0, tr["rotation"])
	require.NotContains(t, comps, "Sprite")

	child := root["children"].([]any)[0].(map[string]any)
	require.NotContains(t, child, "children")
	sprite := child["components"].(map[string]any)["Sprite"].(map[string]any)
	require.Equal(t, "sprites/p.png", sprite["texture_path"])
	require.Equal(t, 7.0, sprite["texture_id"])
}

func TestParse(t *testing.T) {
	t.Run("UnknownKeysIgnored", func(t *testing.T) {
		s, err := Parse([]byte(`{"name":"x","entities":[{"id":1,"components":{"Name":"a","Physics":{"mass":3}}}]}`))
		require.NoError(t, err)
		require.Equal(t, "a", *s.Entities[0].Components.Name)
	})

	t.Run("RotationForms", func(t *testing.T) {
		s, err := Parse([]byte(`{"name":"x","entities":[
			{"id":1,"components":{"Transform":{"position":[1,2,3],"rotation":0.5,"scale":[2,2]}}},
			{"id":2,"components":{"Transform":{"position":[0,0],"rotation":[0.1,0.2,0.3],"scale":[1,1]}}}]}`))
		require.NoError(t, err)
		w := ecs.NewWorld()
		ids := s.SpawnInto(w, asset.NewRegistryLoader(asset.NewRegistry()), nil)
		a, _ := ecs.Get[component.Transform](w, ids[1])
		require.Equal(t, mgl32.Vec3{1, 2, 3}, a.Position)
		require.Equal(t, mgl32.Vec3{0, 0, 0.5}, a.Rotation)
		require.Equal(t, mgl32.Vec3{2, 2, 1}, a.Scale)
		b, _ := ecs.Get[component.Transform](w, ids[2])
		require.Equal(t, mgl32.Vec3{0.1, 0.2, 0.3}, b.Rotation)
	})

	t.Run("DuplicateIDs", func(t *testing.T) {
		_, err := Parse([]byte(`{"name":"x","entities":[{"id":1,"components":{}},{"id":1,"components":{}}]}`))
		require.Error(t, err)
	})

	t.Run("SaveLoad", func(t *testing.T) {
		w, reg, _, _, _ := buildTree(t)
		path := filepath.Join(t.TempDir(), "scenes", "main.json")
		doc := FromWorld(w, reg, "main")
		require.NoError(t, doc.Save(path))
		back, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, stripIDs(doc), stripIDs(back))
	})
}

func TestTextureFallback(t *testing.T) {
	reg := asset.NewRegistry()
	require.NoError(t, reg.RegisterAs("sprites/p.png", 7))
	loader := asset.NewRegistryLoader(reg)

	t.Run("SpawnFallsBackToID", func(t *testing.T) {
		doc := &Scene{Entities: []SerializedEntity{{ID: 1, Components: Components{
			Sprite: &SerializedSprite{TexturePath: "sprites/moved.png", TextureID: 7},
		}}}}
		w := ecs.NewWorld()
		ids := doc.SpawnInto(w, loader, nil)
		sp, ok := ecs.Get[component.Sprite](w, ids[1])
		require.True(t, ok)
		require.Equal(t, asset.AssetID(7), sp.Texture)
	})

	t.Run("SpawnOmitsSpriteWhenBothFail", func(t *testing.T) {
		doc := &Scene{Entities: []SerializedEntity{{ID: 1, Components: Components{
			Sprite: &SerializedSprite{TexturePath: "gone.png", TextureID: 99},
		}}}}
		w := ecs.NewWorld()
		ids := doc.SpawnInto(w, loader, nil)
		require.True(t, w.Alive(ids[1]))
		require.False(t, ecs.Has[component.Sprite](w, ids[1]))
	})

	t.Run("RestoreKeepsSpriteWhenBothFail", func(t *testing.T) {
		w := ecs.NewWorld()
		e := w.Spawn()
		require.NoError(t, ecs.Add(w, e, component.NewSprite(7, 4, 4)))
		doc := &Scene{Entities: []SerializedEntity{{ID: DocumentID(e), Components: Components{
			Sprite: &SerializedSprite{TexturePath: "gone.png", TextureID: 99, Size: [2]float32{1, 1}},
		}}}}
		require.NoError(t, doc.RestoreInto(w, loader, nil))
		sp, ok := ecs.Get[component.Sprite](w, e)
		require.True(t, ok)
		require.Equal(t, asset.AssetID(7), sp.Texture)
		require.Equal(t, mgl32.Vec2{4, 4}, sp.Size)
	})
}

func TestPlayRestore(t *testing.T) {
	t.Run("HandlesAndValuesSurvive", func(t *testing.T) {
		w, reg, r, c1, c2 := buildTree(t)
		loader := asset.NewRegistryLoader(reg)
		snap := EnterPlay(w, reg, "main")

		tr, _ := ecs.Get[component.Transform](w, r)
		tr.Position = mgl32.Vec3{10, 5, 0}
		ecs.Remove[component.Sprite](w, c1)
		require.NoError(t, ecs.Add(w, c1, component.Enabled(false)))
		require.NoError(t, ecs.RemoveParent(w, c2))
		extra := w.Spawn()
		require.False(t, snap.Contains(extra))
		require.True(t, snap.Contains(c1))

		require.NoError(t, ExitPlay(w, loader, snap, nil))

		for _, id := range []ecs.EntityID{r, c1, c2} {
			require.True(t, w.Alive(id))
		}
		require.False(t, w.Alive(extra))
		tr, _ = ecs.Get[component.Transform](w, r)
		require.Equal(t, mgl32.Vec3{10, 20, 0}, tr.Position)
		require.True(t, ecs.Has[component.Sprite](w, c1))
		require.False(t, ecs.Has[component.Enabled](w, c1))
		require.Equal(t, []ecs.EntityID{c1, c2}, ecs.ChildrenOf(w, r))
		require.Equal(t, snap.Scene, FromWorld(w, reg, "main"))
	})

	t.Run("DespawnedEntityRespawned", func(t *testing.T) {
		w, reg, r, c1, _ := buildTree(t)
		snap := EnterPlay(w, reg, "main")
		require.NoError(t, w.Despawn(c1))
		require.NoError(t, ExitPlay(w, asset.NewRegistryLoader(reg), snap, nil))

		kids := ecs.ChildrenOf(w, r)
		require.Len(t, kids, 2)
		require.NotEqual(t, c1, kids[0])
		n, _ := ecs.Get[component.Name](w, kids[0])
		require.Equal(t, component.Name("C1"), *n)
		require.Equal(t, stripIDs(snap.Scene), stripIDs(FromWorld(w, reg, "main")))
	})
}

func TestAccessor(t *testing.T) {
	w, reg, r, c1, _ := buildTree(t)
	a := NewAccessor(w, reg, asset.NewRegistryLoader(reg), nil)

	t.Run("ReadWriteMerge", func(t *testing.T) {
		require.NoError(t, a.Write(r, "Transform", json.RawMessage(`{"position":[1,2]}`)))
		tr, _ := ecs.Get[component.Transform](w, r)
		require.Equal(t, mgl32.Vec3{1, 2, 0}, tr.Position)
		require.Equal(t, mgl32.Vec3{1, 1, 1}, tr.Scale)

		raw, ok, err := a.Read(r, "Transform")
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"position":[1,2],"rotation":0,"scale":[1,1]}`, string(raw))
	})

	t.Run("NullRemoves", func(t *testing.T) {
		require.NoError(t, a.Write(r, "Name", json.RawMessage(`null`)))
		_, ok, err := a.Read(r, "Name")
		require.NoError(t, err)
		require.False(t, ok)
		require.NoError(t, a.Write(r, "Name", json.RawMessage(`"R"`)))
	})

	t.Run("SpriteTextureMustResolve", func(t *testing.T) {
		err := a.Write(c1, "Sprite", json.RawMessage(`{"texture_path":"missing.png","texture_id":0}`))
		require.ErrorIs(t, err, ErrTexture)
	})

	t.Run("Errors", func(t *testing.T) {
		_, _, err := a.Read(r, "Physics")
		require.ErrorIs(t, err, ErrUnknownKind)
		require.ErrorIs(t, a.Write(ecs.NewEntityID(99, 1), "Name", json.RawMessage(`"x"`)), ecs.ErrStaleEntity)
	})

	t.Run("FindAndQuery", func(t *testing.T) {
		id, ok := a.FindByName("C1")
		require.True(t, ok)
		require.Equal(t, c1, id)
		ids, err := a.Query("Sprite")
		require.NoError(t, err)
		require.Equal(t, []ecs.EntityID{c1}, ids)
	})
}
