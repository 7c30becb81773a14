package scripting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

var errNoBridge = errors.New("engine facade is not connected to a world")

func (b *LuaBackend) installConsole() {
	vm := b.vm
	tbl := vm.NewTable()
	for name, level := range map[string]console.Level{
		"log":   console.LevelInfo,
		"info":  console.LevelInfo,
		"debug": console.LevelDebug,
		"warn":  console.LevelWarn,
		"error": console.LevelError,
	} {
		tbl.RawSetString(name, vm.NewFunction(b.consoleFn(level)))
	}
	vm.SetGlobal("console", tbl)
	vm.SetGlobal("print", vm.NewFunction(b.consoleFn(console.LevelInfo)))
}

func (b *LuaBackend) consoleFn(level console.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		path := ""
		if b.current != nil {
			path = b.current.path
		}
		msg := strings.Join(parts, " ")
		b.sink.Push(level, path, msg)
		b.log.Debug("script console", zap.String("script", path), zap.Stringer("level", level), zap.String("msg", msg))
		return 0
	}
}

func (b *LuaBackend) installEngine() {
	vm := b.vm
	tbl := vm.NewTable()
	fns := map[string]lua.LGFunction{
		"entity": b.apiEntity,
		"get":    b.apiGet,
		"set":    b.apiSet,
		"has":    b.apiHas,
		"remove": b.apiRemove,
		"find":   b.apiFind,
		"query":  b.apiQuery,
	}
	for name, fn := range fns {
		tbl.RawSetString(name, vm.NewFunction(fn))
	}
	vm.SetGlobal("engine", tbl)
}

// target resolves the optional entity argument at position n, defaulting
// to the entity of the running instance.
func (b *LuaBackend) target(L *lua.LState, n int) ecs.EntityID {
	if L.GetTop() >= n && L.Get(n) != lua.LNil {
		return ecs.EntityID(uint64(L.CheckNumber(n)))
	}
	if b.current == nil {
		L.RaiseError("no current entity")
	}
	return b.current.owner
}

func (b *LuaBackend) checkBridge(L *lua.LState) {
	if b.bridge == nil {
		L.RaiseError("%s", errNoBridge.Error())
	}
}

func (b *LuaBackend) apiEntity(L *lua.LState) int {
	if b.current == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(entityValue(b.current.owner))
	return 1
}

func (b *LuaBackend) apiGet(L *lua.LState) int {
	b.checkBridge(L)
	kind := L.CheckString(1)
	raw, ok, err := b.bridge.Read(b.target(L, 2), kind)
	if err != nil {
		L.RaiseError("engine.get(%q): %v", kind, err)
	}
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		L.RaiseError("engine.get(%q): %v", kind, err)
	}
	L.Push(toLua(L, v))
	return 1
}

func (b *LuaBackend) apiSet(L *lua.LState) int {
	b.checkBridge(L)
	kind := L.CheckString(1)
	raw, err := json.Marshal(fromLua(L.Get(2)))
	if err != nil {
		L.RaiseError("engine.set(%q): %v", kind, err)
	}
	if err := b.bridge.Write(b.target(L, 3), kind, raw); err != nil {
		L.RaiseError("engine.set(%q): %v", kind, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (b *LuaBackend) apiHas(L *lua.LState) int {
	b.checkBridge(L)
	kind := L.CheckString(1)
	ok, err := b.bridge.Has(b.target(L, 2), kind)
	if err != nil {
		L.RaiseError("engine.has(%q): %v", kind, err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (b *LuaBackend) apiRemove(L *lua.LState) int {
	b.checkBridge(L)
	kind := L.CheckString(1)
	ok, err := b.bridge.Remove(b.target(L, 2), kind)
	if err != nil {
		L.RaiseError("engine.remove(%q): %v", kind, err)
	}
	L.Push(lua.LBool(ok))
	return 1
}

func (b *LuaBackend) apiFind(L *lua.LState) int {
	b.checkBridge(L)
	id, ok := b.bridge.FindByName(L.CheckString(1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(entityValue(id))
	return 1
}

func (b *LuaBackend) apiQuery(L *lua.LState) int {
	b.checkBridge(L)
	kind := L.CheckString(1)
	ids, err := b.bridge.Query(kind)
	if err != nil {
		L.RaiseError("engine.query(%q): %v", kind, err)
	}
	out := L.NewTable()
	for _, id := range ids {
		out.Append(entityValue(id))
	}
	L.Push(out)
	return 1
}

// toLua converts JSON-shaped Go values into Lua values.
func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case float64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case int:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []any:
		t := L.NewTable()
		for _, e := range x {
			t.Append(toLua(L, e))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, e := range x {
			t.RawSetString(k, toLua(L, e))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

// fromLua converts a Lua value into a JSON-shaped Go value. Tables with only
// a 1..n sequence become slices; anything else becomes a map.
func fromLua(v lua.LValue) any {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case *lua.LTable:
		n := x.MaxN()
		count := 0
		x.ForEach(func(lua.LValue, lua.LValue) { count++ })
		if n > 0 && n == count {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(x.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any, count)
		x.ForEach(func(k, val lua.LValue) {
			out[k.String()] = fromLua(val)
		})
		return out
	}
	return v.String()
}
