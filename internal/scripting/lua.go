package scripting

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"
)

// APIVersion is published to scripts as the global API_VERSION.
const APIVersion = 1

type luaInstance struct {
	path  string
	owner ecs.EntityID
}

// LuaBackend runs scripts on a single gopher-lua state. Scripts return (or
// declare as a global) a class table whose init, update and destroy methods
// are called with the instance as self.
// Single-goroutine access only (frame thread).
type LuaBackend struct {
	vm        *lua.LState
	bridge    Bridge
	sink      *console.Sink
	scriptDir string
	log       *zap.Logger

	instances map[uint32]luaInstance
	classes   map[string][]string
	current   *luaInstance
}

// NewLuaBackend creates a back end with a fresh state. bridge may be nil,
// in which case the engine facade raises on every call.
func NewLuaBackend(bridge Bridge, sink *console.Sink, scriptDir string, log *zap.Logger) (*LuaBackend, error) {
	if sink == nil {
		sink = console.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	b := &LuaBackend{bridge: bridge, sink: sink, scriptDir: scriptDir, log: log}
	if err := b.Reset(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *LuaBackend) Reset() error {
	if b.vm != nil {
		b.vm.Close()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))
	b.vm = vm
	b.instances = make(map[uint32]luaInstance)
	b.classes = make(map[string][]string)
	b.current = nil

	b.installConsole()
	b.installEngine()
	if b.scriptDir != "" {
		if pkg, ok := vm.GetGlobal("package").(*lua.LTable); ok {
			dir := filepath.ToSlash(b.scriptDir)
			pkg.RawSetString("path", lua.LString(dir+"/?.lua;"+dir+"/?/init.lua"))
		}
	}
	b.log.Debug("lua state initialized")
	return nil
}

func (b *LuaBackend) Close() {
	if b.vm != nil {
		b.vm.Close()
		b.vm = nil
	}
}

func (b *LuaBackend) Compile(path, source string) error {
	chunk, err := parse.Parse(strings.NewReader(source), path)
	if err != nil {
		return &CompileError{Path: path, Details: err.Error()}
	}
	if _, err := lua.Compile(chunk, path); err != nil {
		return &CompileError{Path: path, Details: err.Error()}
	}
	return nil
}

func (b *LuaBackend) Load(id uint32, path, source string, owner ecs.EntityID, props map[string]any) error {
	vm := b.vm
	before := b.globalNames()

	fn, err := vm.Load(strings.NewReader(source), path)
	if err != nil {
		return &CompileError{Path: path, Details: err.Error()}
	}
	info := luaInstance{path: path, owner: owner}
	b.current = &info
	err = vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	})
	b.current = nil
	if err != nil {
		return &CompileError{Path: path, Details: err.Error()}
	}
	ret := vm.Get(-1)
	vm.Pop(1)

	var introduced []string
	for name := range b.globalNames() {
		if !before[name] {
			introduced = append(introduced, name)
		}
	}
	sort.Strings(introduced)
	b.classes[path] = mergeNames(b.classes[path], introduced)

	class, ok := ret.(*lua.LTable)
	if !ok {
		for _, name := range b.classes[path] {
			if t, isTable := vm.GetGlobal(name).(*lua.LTable); isTable && isClass(t) {
				class, ok = t, true
				break
			}
		}
	}
	if !ok {
		return &CompileError{Path: path, Details: "script does not declare a class"}
	}

	inst := vm.NewTable()
	meta := vm.NewTable()
	meta.RawSetString("__index", class)
	vm.SetMetatable(inst, meta)
	inst.RawSetString("entity", entityValue(owner))
	inst.RawSetString("properties", toLua(vm, propsValue(props)))
	inst.RawSetString("script_path", lua.LString(path))
	vm.SetGlobal(InstanceGlobal(id), inst)
	b.instances[id] = info
	return nil
}

func (b *LuaBackend) Call(id uint32, phase Phase, dt time.Duration) error {
	vm := b.vm
	inst, ok := vm.GetGlobal(InstanceGlobal(id)).(*lua.LTable)
	if !ok {
		return fmt.Errorf("instance %d is not bound", id)
	}
	fn := vm.GetField(inst, phase.String())
	if fn == lua.LNil {
		return nil
	}
	info := b.instances[id]
	b.current = &info
	defer func() { b.current = nil }()

	args := []lua.LValue{inst}
	if phase == PhaseUpdate {
		args = append(args, lua.LNumber(dt.Seconds()))
	}
	return vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, args...)
}

func (b *LuaBackend) Release(id uint32) {
	b.vm.SetGlobal(InstanceGlobal(id), lua.LNil)
	delete(b.instances, id)
}

func (b *LuaBackend) ReleaseClasses(path string) {
	for _, name := range b.classes[path] {
		b.vm.SetGlobal(name, lua.LNil)
	}
	delete(b.classes, path)
	pkg, ok := b.vm.GetGlobal("package").(*lua.LTable)
	if !ok {
		return
	}
	if loaded, ok := pkg.RawGetString("loaded").(*lua.LTable); ok {
		mod := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		loaded.RawSetString(mod, lua.LNil)
	}
}

func (b *LuaBackend) Collect() {
	fn := b.vm.GetGlobal("collectgarbage")
	if fn == lua.LNil {
		return
	}
	if err := b.vm.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
		b.log.Debug("collectgarbage failed", zap.Error(err))
	}
}

// Bound reports whether an instance global exists for id.
func (b *LuaBackend) Bound(id uint32) bool {
	return b.vm.GetGlobal(InstanceGlobal(id)) != lua.LNil
}

// Global exposes a global value, mostly for tests and diagnostics.
func (b *LuaBackend) Global(name string) any {
	return fromLua(b.vm.GetGlobal(name))
}

func (b *LuaBackend) globalNames() map[string]bool {
	out := make(map[string]bool)
	b.vm.G.Global.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			out[string(s)] = true
		}
	})
	return out
}

func isClass(t *lua.LTable) bool {
	for _, m := range []string{"init", "update", "destroy"} {
		if _, ok := t.RawGetString(m).(*lua.LFunction); ok {
			return true
		}
	}
	return false
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, n := range append(append([]string(nil), a...), b...) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func propsValue(props map[string]any) any {
	if props == nil {
		return map[string]any{}
	}
	// round-trip through JSON so scripts never alias the component's map
	raw, err := json.Marshal(props)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if json.Unmarshal(raw, &out) != nil {
		return map[string]any{}
	}
	return out
}

func entityValue(id ecs.EntityID) lua.LValue {
	return lua.LNumber(float64(uint64(id)))
}
