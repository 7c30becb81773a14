package scripting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stretchr/testify/require"
)

// mapBridge stores raw component JSON per entity and kind.
type mapBridge struct {
	data  map[ecs.EntityID]map[string]json.RawMessage
	names map[string]ecs.EntityID
}

func newMapBridge() *mapBridge {
	return &mapBridge{data: make(map[ecs.EntityID]map[string]json.RawMessage), names: make(map[string]ecs.EntityID)}
}

func (m *mapBridge) Read(id ecs.EntityID, kind string) (json.RawMessage, bool, error) {
	raw, ok := m.data[id][kind]
	return raw, ok, nil
}

func (m *mapBridge) Write(id ecs.EntityID, kind string, value json.RawMessage) error {
	if m.data[id] == nil {
		m.data[id] = make(map[string]json.RawMessage)
	}
	m.data[id][kind] = value
	return nil
}

func (m *mapBridge) Remove(id ecs.EntityID, kind string) (bool, error) {
	_, ok := m.data[id][kind]
	delete(m.data[id], kind)
	return ok, nil
}

func (m *mapBridge) Has(id ecs.EntityID, kind string) (bool, error) {
	_, ok := m.data[id][kind]
	return ok, nil
}

func (m *mapBridge) FindByName(name string) (ecs.EntityID, bool) {
	id, ok := m.names[name]
	return id, ok
}

func (m *mapBridge) Query(kind string) ([]ecs.EntityID, error) {
	var out []ecs.EntityID
	for id, kinds := range m.data {
		if _, ok := kinds[kind]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

const counterScript = `
local Counter = {}

function Counter:init()
  self.count = self.properties.start or 0
  console.log("init", self.count)
end

function Counter:update(dt)
  self.count = self.count + 1
  engine.set("Name", "tick" .. self.count)
end

function Counter:destroy()
  console.warn("bye")
end

return Counter
`

func newTestLua(t *testing.T) (*LuaBackend, *mapBridge, *console.Sink) {
	t.Helper()
	bridge := newMapBridge()
	sink := console.NewSink(32)
	b, err := NewLuaBackend(bridge, sink, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b, bridge, sink
}

func TestLuaLifecycle(t *testing.T) {
	b, bridge, sink := newTestLua(t)
	owner := ecs.NewEntityID(3, 1)

	require.NoError(t, b.Load(1, "counter.lua", counterScript, owner, map[string]any{"start": 10.0}))
	require.True(t, b.Bound(1))
	require.NoError(t, b.Call(1, PhaseInit, 0))
	require.NoError(t, b.Call(1, PhaseUpdate, 16*time.Millisecond))
	require.NoError(t, b.Call(1, PhaseUpdate, 16*time.Millisecond))

	require.JSONEq(t, `"tick12"`, string(bridge.data[owner]["Name"]))

	require.NoError(t, b.Call(1, PhaseDestroy, 0))
	msgs := sink.Drain()
	require.Len(t, msgs, 2)
	require.Equal(t, "init 10", msgs[0].Text)
	require.Equal(t, "counter.lua", msgs[0].ScriptPath)
	require.Equal(t, console.LevelWarn, msgs[1].Level)

	b.Release(1)
	require.False(t, b.Bound(1))
	require.Error(t, b.Call(1, PhaseUpdate, 0))
}

func TestLuaGlobalClass(t *testing.T) {
	b, _, _ := newTestLua(t)
	src := `
Mover = {}
function Mover:update(dt) self.moved = true end
`
	require.NoError(t, b.Load(1, "mover.lua", src, ecs.NewEntityID(0, 1), nil))
	require.NoError(t, b.Load(2, "mover.lua", src, ecs.NewEntityID(1, 1), nil))
	require.NotNil(t, b.Global("Mover"))

	b.ReleaseClasses("mover.lua")
	require.Nil(t, b.Global("Mover"))
}

func TestLuaMissingMethodIsNoop(t *testing.T) {
	b, _, _ := newTestLua(t)
	require.NoError(t, b.Load(1, "a.lua", `return { update = function(self) end }`, ecs.NewEntityID(0, 1), nil))
	require.NoError(t, b.Call(1, PhaseInit, 0))
	require.NoError(t, b.Call(1, PhaseDestroy, 0))
}

func TestLuaErrors(t *testing.T) {
	b, _, _ := newTestLua(t)

	err := b.Compile("bad.lua", "local x = = 1")
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "bad.lua", cerr.Path)

	err = b.Load(1, "noclass.lua", "local x = 1", ecs.NewEntityID(0, 1), nil)
	require.ErrorAs(t, err, &cerr)

	require.NoError(t, b.Load(2, "raise.lua", `return { update = function(self) error("kaput") end }`, ecs.NewEntityID(0, 1), nil))
	err = b.Call(2, PhaseUpdate, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaput")
}

func TestLuaResetDropsState(t *testing.T) {
	b, _, _ := newTestLua(t)
	require.NoError(t, b.Load(1, "a.lua", `Leak = 1; return { init = function() end }`, ecs.NewEntityID(0, 1), nil))
	require.Equal(t, 1.0, b.Global("Leak"))

	require.NoError(t, b.Reset())
	require.False(t, b.Bound(1))
	require.Nil(t, b.Global("Leak"))
	require.Equal(t, float64(APIVersion), b.Global("API_VERSION"))
}

func TestLuaEngineFacade(t *testing.T) {
	b, bridge, _ := newTestLua(t)
	self := ecs.NewEntityID(0, 1)
	other := ecs.NewEntityID(1, 1)
	bridge.names["target"] = other
	require.NoError(t, bridge.Write(other, "Transform", json.RawMessage(`{"position":[1,2]}`)))

	src := `
return {
  init = function(self)
    local t = engine.find("target")
    local tr = engine.get("Transform", t)
    engine.set("Transform", { position = { tr.position[1] + 1, tr.position[2] } })
    self.same = engine.entity() == self.entity
    self.has = engine.has("Transform", t)
    self.count = #engine.query("Transform")
  end
}`
	require.NoError(t, b.Load(1, "f.lua", src, self, nil))
	require.NoError(t, b.Call(1, PhaseInit, 0))

	inst := b.Global(InstanceGlobal(1)).(map[string]any)
	require.Equal(t, true, inst["same"])
	require.Equal(t, true, inst["has"])
	require.Equal(t, 2.0, inst["count"])
	require.JSONEq(t, `{"position":[2,2]}`, string(bridge.data[self]["Transform"]))
}

func TestDecodeSourceStripsBOM(t *testing.T) {
	src, err := decodeSource([]byte("\xef\xbb\xbfreturn {}"))
	require.NoError(t, err)
	require.Equal(t, "return {}", src)
}
