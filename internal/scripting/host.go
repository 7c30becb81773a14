package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"go.uber.org/zap"
)

// Instance is one live script object bound to an entity.
type Instance struct {
	ScriptID              uint32 `json:"script_id"`
	Path                  string `json:"script_path"`
	Initialized           bool   `json:"initialized"`
	CompilationSuccessful bool   `json:"compilation_successful"`
	LastError             string `json:"last_error,omitempty"`
}

// Host owns the script instance lifecycle: init on first sight, update each
// fixed tick, destroy on removal, and teardown on reload. Script ids are
// never reused, and once an id is in the dead set it is never invoked again.
type Host struct {
	backend    Backend
	root       string
	flushDelay time.Duration
	sink       *console.Sink
	log        *zap.Logger
	sleep      func(time.Duration)

	initialized map[ecs.EntityID]struct{}
	instances   map[ecs.EntityID][]*Instance
	paths       map[ecs.EntityID][]string
	dead        map[uint32]struct{}
	nextID      uint32
	coldStart   bool
}

type Option func(*Host)

// WithFlushDelay waits before reading a source so editors that save in
// several writes have finished.
func WithFlushDelay(d time.Duration) Option { return func(h *Host) { h.flushDelay = d } }

func WithConsole(s *console.Sink) Option { return func(h *Host) { h.sink = s } }

func WithLogger(l *zap.Logger) Option { return func(h *Host) { h.log = l } }

// NewHost creates a host resolving relative script paths against root.
func NewHost(backend Backend, root string, opts ...Option) *Host {
	h := &Host{
		backend:     backend,
		root:        root,
		sink:        console.Default(),
		log:         zap.NewNop(),
		sleep:       time.Sleep,
		initialized: make(map[ecs.EntityID]struct{}),
		instances:   make(map[ecs.EntityID][]*Instance),
		paths:       make(map[ecs.EntityID][]string),
		dead:        make(map[uint32]struct{}),
		nextID:      1,
		coldStart:   true,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Host) Backend() Backend { return h.backend }

// Abs resolves a script path against the project root.
func (h *Host) Abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(h.root, filepath.FromSlash(path))
}

// Key returns the comparison form of a script path, relative to the root
// when possible.
func (h *Host) Key(path string) string {
	if filepath.IsAbs(path) && h.root != "" {
		if rel, err := filepath.Rel(h.root, path); err == nil && !filepath.IsAbs(rel) && rel != ".." && !startsWithDotDot(rel) {
			return normalize(rel)
		}
	}
	return normalize(path)
}

func startsWithDotDot(p string) bool {
	return len(p) >= 3 && p[:3] == ".."+string(filepath.Separator)
}

// Exists reports whether the script file is present on disk.
func (h *Host) Exists(path string) bool {
	st, err := os.Stat(h.Abs(path))
	return err == nil && !st.IsDir()
}

type scriptEntry struct {
	id    ecs.EntityID
	order int32
	seq   uint64
}

// Update runs one fixed tick for every entity with an enabled Script.
// Entities run by ascending execution order, ties by component insertion
// order. Script failures are recorded on the instance and reported; they do
// not stop other scripts.
func (h *Host) Update(w *ecs.World, dt time.Duration) error {
	store := ecs.StoreOf[component.Script](w)
	var entries []scriptEntry
	store.Each(func(id ecs.EntityID, s *component.Script) {
		if !s.Enabled {
			return
		}
		if en, ok := ecs.Get[component.Enabled](w, id); ok && !bool(*en) {
			return
		}
		seq, _ := store.Sequence(id)
		entries = append(entries, scriptEntry{id: id, order: s.ExecutionOrder, seq: seq})
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].seq < entries[j].seq
	})

	var resetErr error
	for _, en := range entries {
		if !w.Alive(en.id) {
			continue
		}
		if err := h.process(w, en.id, dt); err != nil {
			resetErr = err
		}
	}

	h.sweep(w)
	return resetErr
}

func (h *Host) process(w *ecs.World, e ecs.EntityID, dt time.Duration) error {
	sc, ok := ecs.Get[component.Script](w, e)
	if !ok {
		return nil
	}

	for _, p := range append([]string(nil), sc.Paths...) {
		if !h.Exists(p) {
			h.log.Warn("script file missing, detaching", zap.Stringer("entity", e), zap.String("path", p))
			h.sink.Push(console.LevelWarn, p, fmt.Sprintf("script file missing, removed from entity %s", e))
			h.removePath(e, sc, p)
		}
	}
	if len(sc.Paths) == 0 {
		if h.tracked(e) {
			h.teardown(e, false)
		}
		return nil
	}

	if rec, ok := h.paths[e]; ok && !samePaths(rec, sc.Paths) {
		h.log.Debug("script list changed", zap.Stringer("entity", e))
		h.teardown(e, true)
	}
	h.paths[e] = append([]string(nil), sc.Paths...)

	var err error
	if _, isInit := h.initialized[e]; !isInit {
		// a cold host resets the back end before the first entity it initializes
		if h.coldStart {
			err = h.ReinitializeBackend()
			h.coldStart = false
			h.paths[e] = append([]string(nil), sc.Paths...)
		}
		h.initEntity(w, e, sc)
	}
	h.updateEntity(w, e, dt)
	return err
}

func (h *Host) initEntity(w *ecs.World, e ecs.EntityID, sc *component.Script) {
	list := make([]*Instance, 0, len(sc.Paths))
	props := component.CloneProperties(sc.Properties)
	for _, p := range sc.Paths {
		inst := &Instance{ScriptID: h.nextID, Path: p}
		h.nextID++
		list = append(list, inst)

		src, err := h.readSource(p)
		if err != nil {
			inst.LastError = err.Error()
			h.report(inst, err)
			continue
		}
		if err := h.backend.Load(inst.ScriptID, p, src, e, props); err != nil {
			inst.LastError = err.Error()
			h.report(inst, err)
			continue
		}
		inst.CompilationSuccessful = true
		// set before init runs so a failing init is not retried every tick
		inst.Initialized = true
		if err := h.backend.Call(inst.ScriptID, PhaseInit, 0); err != nil {
			perr := &PhaseError{Phase: PhaseInit, ScriptID: inst.ScriptID, Path: p, Err: err}
			inst.LastError = perr.Error()
			h.report(inst, perr)
		}
		if !w.Alive(e) {
			break
		}
	}
	h.instances[e] = list
	h.initialized[e] = struct{}{}
}

func (h *Host) updateEntity(w *ecs.World, e ecs.EntityID, dt time.Duration) {
	for _, inst := range append([]*Instance(nil), h.instances[e]...) {
		if !w.Alive(e) {
			return
		}
		if h.IsDead(inst.ScriptID) {
			continue
		}
		if !inst.Initialized || !inst.CompilationSuccessful {
			continue
		}
		if err := h.backend.Call(inst.ScriptID, PhaseUpdate, dt); err != nil {
			perr := &PhaseError{Phase: PhaseUpdate, ScriptID: inst.ScriptID, Path: inst.Path, Err: err}
			inst.LastError = perr.Error()
			h.report(inst, perr)
		}
	}
}

// sweep tears down entities that were despawned or lost their Script.
func (h *Host) sweep(w *ecs.World) {
	collected := false
	for _, e := range h.trackedEntities() {
		if w.Alive(e) && ecs.Has[component.Script](w, e) {
			continue
		}
		h.teardown(e, false)
		collected = true
	}
	if collected {
		h.backend.Collect()
	}
}

// retire calls destroy on an initialized instance at most once and puts
// its id into the dead set.
func (h *Host) retire(inst *Instance) {
	if h.IsDead(inst.ScriptID) {
		return
	}
	if inst.Initialized {
		if err := h.backend.Call(inst.ScriptID, PhaseDestroy, 0); err != nil {
			perr := &PhaseError{Phase: PhaseDestroy, ScriptID: inst.ScriptID, Path: inst.Path, Err: err}
			h.report(inst, perr)
		}
	}
	h.dead[inst.ScriptID] = struct{}{}
	h.backend.Release(inst.ScriptID)
}

func (h *Host) teardown(e ecs.EntityID, releaseClasses bool) {
	for _, inst := range h.instances[e] {
		h.retire(inst)
		if releaseClasses {
			h.backend.ReleaseClasses(inst.Path)
		}
	}
	delete(h.instances, e)
	delete(h.initialized, e)
	delete(h.paths, e)
}

// removePath detaches one script from e, destroying only its instance.
func (h *Host) removePath(e ecs.EntityID, sc *component.Script, path string) {
	key := h.Key(path)
	for i, p := range sc.Paths {
		if h.Key(p) == key {
			sc.Paths = append(sc.Paths[:i:i], sc.Paths[i+1:]...)
			break
		}
	}
	if list, ok := h.instances[e]; ok {
		for i, inst := range list {
			if h.Key(inst.Path) == key {
				h.retire(inst)
				h.instances[e] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
	if rec, ok := h.paths[e]; ok {
		for i, p := range rec {
			if h.Key(p) == key {
				h.paths[e] = append(rec[:i:i], rec[i+1:]...)
				break
			}
		}
	}
	if len(sc.Paths) == 0 {
		h.teardown(e, false)
	}
}

// RemoveScript detaches path from e's Script component. Only that instance
// is destroyed; the rest keep running. The component stays even when empty.
func (h *Host) RemoveScript(w *ecs.World, e ecs.EntityID, path string) error {
	if err := w.Check(e); err != nil {
		return err
	}
	sc, ok := ecs.Get[component.Script](w, e)
	if !ok {
		return fmt.Errorf("%w: entity %s has no scripts", ErrScriptNotFound, e)
	}
	key := h.Key(path)
	found := false
	for _, p := range sc.Paths {
		if h.Key(p) == key {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s is not attached to %s", ErrScriptNotFound, path, e)
	}
	h.removePath(e, sc, path)
	return nil
}

// InvalidateScriptCache retires every instance compiled from path and
// resets the back end. Because the reset discards all compiled modules,
// instances of other scripts are retired too and re-initialize from disk on
// the next tick. It returns the entities that referenced path.
func (h *Host) InvalidateScriptCache(path string) ([]ecs.EntityID, error) {
	key := h.Key(path)
	var affected []ecs.EntityID
	for _, e := range h.trackedEntities() {
		hit := false
		for _, inst := range h.instances[e] {
			if h.Key(inst.Path) == key {
				inst.CompilationSuccessful = false
				h.retire(inst)
				hit = true
			}
		}
		if hit {
			affected = append(affected, e)
			delete(h.instances, e)
			delete(h.initialized, e)
			delete(h.paths, e)
		}
	}
	h.log.Info("script cache invalidated", zap.String("path", key), zap.Int("entities", len(affected)))
	return affected, h.ReinitializeBackend()
}

// ReinitializeBackend retires all remaining instances and gives the back
// end a fresh module and global context.
func (h *Host) ReinitializeBackend() error {
	h.retireAll()
	if err := h.backend.Reset(); err != nil {
		return fmt.Errorf("reset script back end: %w", err)
	}
	return nil
}

// Reset retires every instance. The next Update treats its first entity as
// a cold start and re-initializes the back end before compiling anything.
func (h *Host) Reset() {
	h.retireAll()
	h.coldStart = true
}

func (h *Host) retireAll() {
	for _, e := range h.trackedEntities() {
		for _, inst := range h.instances[e] {
			h.retire(inst)
		}
	}
	h.instances = make(map[ecs.EntityID][]*Instance)
	h.initialized = make(map[ecs.EntityID]struct{})
	h.paths = make(map[ecs.EntityID][]string)
}

// Check compiles the file at path without running it.
func (h *Host) Check(path string) error {
	src, err := ReadSource(h.Abs(path))
	if err != nil {
		return err
	}
	return h.backend.Compile(h.Key(path), src)
}

func (h *Host) readSource(path string) (string, error) {
	if h.flushDelay > 0 {
		h.sleep(h.flushDelay)
	}
	return ReadSource(h.Abs(path))
}

func (h *Host) report(inst *Instance, err error) {
	var cerr *CompileError
	var perr *PhaseError
	switch {
	case errors.As(err, &cerr):
		h.log.Warn("script compile failed", zap.String("path", inst.Path), zap.Uint32("script", inst.ScriptID), zap.String("details", cerr.Details))
	case errors.As(err, &perr):
		h.log.Warn("script error", zap.String("path", inst.Path), zap.Uint32("script", inst.ScriptID), zap.Stringer("phase", perr.Phase), zap.Error(perr.Err))
	default:
		h.log.Warn("script failed", zap.String("path", inst.Path), zap.Uint32("script", inst.ScriptID), zap.Error(err))
	}
	h.sink.Push(console.LevelError, inst.Path, err.Error())
}

func (h *Host) tracked(e ecs.EntityID) bool {
	_, a := h.instances[e]
	_, b := h.initialized[e]
	_, c := h.paths[e]
	return a || b || c
}

func (h *Host) trackedEntities() []ecs.EntityID {
	set := make(map[ecs.EntityID]struct{}, len(h.instances)+len(h.paths))
	for e := range h.instances {
		set[e] = struct{}{}
	}
	for e := range h.initialized {
		set[e] = struct{}{}
	}
	for e := range h.paths {
		set[e] = struct{}{}
	}
	out := make([]ecs.EntityID, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsDead reports whether id is in the kill set.
func (h *Host) IsDead(id uint32) bool {
	_, ok := h.dead[id]
	return ok
}

// DeadScripts returns the kill set in ascending order.
func (h *Host) DeadScripts() []uint32 {
	out := make([]uint32, 0, len(h.dead))
	for id := range h.dead {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (h *Host) IsInitialized(e ecs.EntityID) bool {
	_, ok := h.initialized[e]
	return ok
}

// Instances returns copies of e's instances in path order.
func (h *Host) Instances(e ecs.EntityID) []Instance {
	out := make([]Instance, 0, len(h.instances[e]))
	for _, inst := range h.instances[e] {
		out = append(out, *inst)
	}
	return out
}

// EntityScripts pairs an entity with its instances for reporting.
type EntityScripts struct {
	Entity    ecs.EntityID `json:"entity"`
	Instances []Instance   `json:"instances"`
}

// Report lists every entity with instances, in handle order.
func (h *Host) Report() []EntityScripts {
	var out []EntityScripts
	for _, e := range h.trackedEntities() {
		if list := h.Instances(e); len(list) > 0 {
			out = append(out, EntityScripts{Entity: e, Instances: list})
		}
	}
	return out
}

// NextScriptID is the id the next compiled instance will receive.
func (h *Host) NextScriptID() uint32 { return h.nextID }

func samePaths(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalize(a[i]) != normalize(b[i]) {
			return false
		}
	}
	return true
}
