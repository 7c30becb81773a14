package editor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stagehand/editor/internal/component"
	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stagehand/editor/internal/core/event"
	"github.com/stagehand/editor/internal/scene"
	"github.com/stagehand/editor/internal/scripting"
	"go.uber.org/zap"
)

const revisionTimeout = 5 * time.Second

// Execute applies cmd immediately. Failures come back as a typed error in
// the response and are also written to the console.
func (e *Editor) Execute(cmd Command) Response {
	data, err := e.dispatch(cmd)
	if err != nil {
		e.log.Debug("command failed", zap.String("action", cmd.Action()), zap.Error(err))
		e.sink.Push(console.LevelError, "", fmt.Sprintf("%s: %v", cmd.Action(), err))
		return failure(err)
	}
	return success(data)
}

func (e *Editor) dispatch(cmd Command) (any, error) {
	switch c := deref(cmd).(type) {
	case Play:
		return nil, e.play()
	case Pause:
		return nil, e.transition(ModePlaying, ModePaused)
	case Resume:
		return nil, e.transition(ModePaused, ModePlaying)
	case Stop:
		return nil, e.stop()
	case Spawn:
		return e.spawn(c)
	case Despawn:
		return nil, e.despawn(c)
	case SetComponent:
		return nil, e.setComponent(c)
	case RemoveComponent:
		return e.removeComponent(c)
	case SetParent:
		if err := ecs.SetParent(e.world, c.Child, c.Parent); err != nil {
			return nil, err
		}
		event.Emit(e.bus, event.HierarchyChanged{Child: c.Child, Parent: c.Parent})
		return nil, nil
	case ClearParent:
		if err := ecs.RemoveParent(e.world, c.Entity); err != nil {
			return nil, err
		}
		event.Emit(e.bus, event.HierarchyChanged{Child: c.Entity, Parent: ecs.Nil})
		return nil, nil
	case AddScript:
		return nil, e.addScript(c)
	case RemoveScript:
		if err := e.host.RemoveScript(e.world, c.Entity, c.Path); err != nil {
			return nil, err
		}
		event.Emit(e.bus, event.ComponentChanged{Entity: c.Entity, Kind: "Script"})
		return nil, nil
	case ReloadScript:
		return e.reloadScript(c.Path)
	case Save:
		return e.save(c.Path)
	case Load:
		return e.load(c.Path)
	case Select:
		if c.Entity != ecs.Nil {
			if err := e.world.Check(c.Entity); err != nil {
				return nil, err
			}
		}
		e.selection = c.Entity
		return nil, nil
	case GetState:
		return e.State(), nil
	case GetEntities:
		return e.entities(), nil
	case GetEntity:
		return e.entity(c.Entity)
	case GetLogs:
		if c.Drain {
			return e.sink.Drain(), nil
		}
		limit := c.Limit
		if limit <= 0 {
			limit = e.sink.Capacity()
		}
		return e.sink.Tail(limit), nil
	case GetScripts:
		return ScriptsReport{Entities: e.host.Report(), Dead: e.host.DeadScripts(), NextID: e.host.NextScriptID()}, nil
	case GetRevisions:
		return e.listRevisions(c)
	case GetTemplates:
		return e.templates.Names(), nil
	case Ping:
		return "pong", nil
	}
	return nil, fmt.Errorf("%w: unsupported command %T", ErrInvalidCommand, cmd)
}

func (e *Editor) setMode(to Mode) {
	from := e.mode
	e.mode = to
	event.Emit(e.bus, event.ModeChanged{From: from.String(), To: to.String()})
	e.log.Info("mode changed", zap.Stringer("from", from), zap.Stringer("to", to))
}

func (e *Editor) transition(from, to Mode) error {
	if e.mode != from {
		return fmt.Errorf("%w: cannot go from %s to %s", ErrInvalidState, e.mode, to)
	}
	e.setMode(to)
	e.sink.Infof("%s", to)
	return nil
}

// play snapshots the world and resets scripts so they initialize from disk.
func (e *Editor) play() error {
	if e.mode != ModeEdit {
		return fmt.Errorf("%w: already %s", ErrInvalidState, e.mode)
	}
	e.snapshot = scene.EnterPlay(e.world, e.assets, e.sceneName)
	e.host.Reset()
	e.scheduler.ResetAccumulator()
	e.setMode(ModePlaying)
	e.sink.Infof("playing %s (%d entities captured)", e.sceneName, e.snapshot.Scene.Count())
	return nil
}

// stop tears down scripts, then restores the snapshot in place so handles
// taken before Play stay valid.
func (e *Editor) stop() error {
	if e.mode == ModeEdit {
		return fmt.Errorf("%w: not playing", ErrInvalidState)
	}
	e.host.Reset()
	e.world.FlushDestroyQueue()
	snap := e.snapshot
	if snap != nil {
		if err := scene.ExitPlay(e.world, e.loader, snap, e.log.Named("restore")); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		if e.selection != ecs.Nil && (!snap.Contains(e.selection) || !e.world.Alive(e.selection)) {
			e.selection = ecs.Nil
		}
	}
	e.snapshot = nil
	e.scheduler.ResetAccumulator()
	e.setMode(ModeEdit)
	e.sink.Infof("stopped")
	return nil
}

func (e *Editor) spawn(c Spawn) (ecs.EntityID, error) {
	tpl, err := e.templates.Get(c.Template)
	if err != nil {
		return ecs.Nil, err
	}
	if c.Parent != ecs.Nil {
		if err := e.world.Check(c.Parent); err != nil {
			return ecs.Nil, err
		}
	}
	id := scene.Instantiate(e.world, e.loader, tpl.Components, e.log.Named("spawn"))
	if c.Name != "" {
		if err := ecs.Add(e.world, id, component.Name(c.Name)); err != nil {
			return ecs.Nil, err
		}
	}
	if c.Parent != ecs.Nil {
		if err := ecs.SetParent(e.world, id, c.Parent); err != nil {
			return ecs.Nil, err
		}
	}
	event.Emit(e.bus, event.EntitySpawned{Entity: id, Template: c.Template})
	return id, nil
}

func (e *Editor) despawn(c Despawn) error {
	var err error
	if c.Recursive {
		err = ecs.DespawnRecursive(e.world, c.Entity)
	} else {
		err = e.world.Despawn(c.Entity)
	}
	if err != nil {
		return err
	}
	if e.selection != ecs.Nil && !e.world.Alive(e.selection) {
		e.selection = ecs.Nil
	}
	event.Emit(e.bus, event.EntityDespawned{Entity: c.Entity, Recursive: c.Recursive})
	return nil
}

func (e *Editor) setComponent(c SetComponent) error {
	if err := e.accessor.Write(c.Entity, c.Kind, c.Value); err != nil {
		return err
	}
	has, _ := e.accessor.Has(c.Entity, c.Kind)
	event.Emit(e.bus, event.ComponentChanged{Entity: c.Entity, Kind: c.Kind, Removed: !has})
	return nil
}

func (e *Editor) removeComponent(c RemoveComponent) (bool, error) {
	removed, err := e.accessor.Remove(c.Entity, c.Kind)
	if err != nil {
		return false, err
	}
	if removed {
		event.Emit(e.bus, event.ComponentChanged{Entity: c.Entity, Kind: c.Kind, Removed: true})
	}
	return removed, nil
}

func (e *Editor) addScript(c AddScript) error {
	if err := e.world.Check(c.Entity); err != nil {
		return err
	}
	if !e.host.Exists(c.Path) {
		return fmt.Errorf("%w: %s", scripting.ErrScriptNotFound, c.Path)
	}
	key := e.host.Key(c.Path)
	if sc, ok := ecs.Get[component.Script](e.world, c.Entity); ok {
		for _, p := range sc.Paths {
			if e.host.Key(p) == key {
				return nil
			}
		}
		sc.Paths = append(sc.Paths, key)
	} else if err := ecs.Add(e.world, c.Entity, component.NewScript(key)); err != nil {
		return err
	}
	event.Emit(e.bus, event.ComponentChanged{Entity: c.Entity, Kind: "Script"})
	return nil
}

// reloadScript invalidates every instance of path. A source that no longer
// compiles is still invalidated so stale code stops running; the compile
// error is returned and recorded on the new instances at the next tick.
func (e *Editor) reloadScript(path string) (any, error) {
	if !e.host.Exists(path) {
		return nil, fmt.Errorf("%w: %s", scripting.ErrScriptNotFound, path)
	}
	checkErr := e.host.Check(path)
	affected, err := e.host.InvalidateScriptCache(path)
	if err != nil {
		return nil, err
	}
	event.Emit(e.bus, event.ScriptReloaded{Path: e.host.Key(path)})
	if checkErr != nil {
		return nil, checkErr
	}
	e.sink.Push(console.LevelInfo, e.host.Key(path), fmt.Sprintf("reloaded (%d entities)", len(affected)))
	return affected, nil
}

// SaveResult describes a completed Save.
type SaveResult struct {
	Path     string `json:"path"`
	Entities int    `json:"entities"`
	Revision string `json:"revision,omitempty"`
}

// save writes the current scene. While playing, the snapshot taken at Play is
// written so runtime changes never leak into the file.
func (e *Editor) save(path string) (SaveResult, error) {
	path, err := e.resolveScene(path)
	if err != nil {
		return SaveResult{}, err
	}
	var doc *scene.Scene
	if e.snapshot != nil {
		doc = e.snapshot.Scene
	} else {
		doc = scene.FromWorld(e.world, e.assets, e.sceneName)
	}
	raw, err := doc.Marshal()
	if err != nil {
		return SaveResult{}, err
	}
	if err := doc.Save(path); err != nil {
		return SaveResult{}, ioError(path, err)
	}
	if e.project != nil {
		if err := e.assets.Save(e.project.RegistryPath()); err != nil {
			return SaveResult{}, ioError(e.project.RegistryPath(), err)
		}
	}

	res := SaveResult{Path: path, Entities: doc.Count()}
	if e.revisions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), revisionTimeout)
		rev, created, err := e.revisions.SaveRevision(ctx, e.relScene(path), doc.Name, res.Entities, raw)
		cancel()
		if err != nil {
			e.log.Warn("scene revision not recorded", zap.String("path", path), zap.Error(err))
		} else {
			res.Revision = rev.ID.String()
			if !created {
				e.log.Debug("scene unchanged since last revision", zap.String("path", path))
			}
		}
	}
	e.scenePath = path
	event.Emit(e.bus, event.SceneSaved{Path: path, Revision: res.Revision})
	e.sink.Infof("saved %s", path)
	return res, nil
}

// load replaces the world with a scene file. Only allowed while editing.
func (e *Editor) load(path string) (int, error) {
	if e.mode != ModeEdit {
		return 0, fmt.Errorf("%w: stop before loading a scene", ErrInvalidState)
	}
	path, err := e.resolveScene(path)
	if err != nil {
		return 0, err
	}
	doc, err := scene.Load(path)
	if err != nil {
		return 0, ioError(path, err)
	}
	e.host.Reset()
	e.world.Clear()
	doc.SpawnInto(e.world, e.loader, e.log.Named("load"))
	e.selection = ecs.Nil
	e.scenePath = path
	if doc.Name != "" {
		e.sceneName = doc.Name
	}
	n := e.world.Len()
	event.Emit(e.bus, event.SceneLoaded{Path: path, Entities: n})
	e.sink.Infof("loaded %s (%d entities)", path, n)
	return n, nil
}

func (e *Editor) resolveScene(path string) (string, error) {
	if path == "" {
		path = e.scenePath
	}
	if path == "" {
		return "", fmt.Errorf("%w: no scene path", ErrInvalidCommand)
	}
	if e.project != nil {
		return e.project.ScenePath(path), nil
	}
	return path, nil
}

// relScene is the revision key of a scene file: relative to the project root
// when there is one.
func (e *Editor) relScene(path string) string {
	if e.project == nil {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(e.project.Root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func (e *Editor) listRevisions(c GetRevisions) (any, error) {
	if e.revisions == nil {
		return nil, fmt.Errorf("%w: revision history is disabled", ErrInvalidState)
	}
	path, err := e.resolveScene(c.Path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), revisionTimeout)
	defer cancel()
	revs, err := e.revisions.List(ctx, e.relScene(path), c.Limit)
	if err != nil {
		return nil, ioError(path, err)
	}
	return revs, nil
}

// State is the GetState payload.
type State struct {
	Mode      Mode         `json:"mode"`
	Scene     string       `json:"scene"`
	ScenePath string       `json:"scene_path,omitempty"`
	Selection ecs.EntityID `json:"selection,omitempty"`
	Entities  int          `json:"entities"`
	Frame     uint64       `json:"frame"`
	FixedTick uint64       `json:"fixed_tick"`
}

func (e *Editor) State() State {
	return State{
		Mode:      e.mode,
		Scene:     e.sceneName,
		ScenePath: e.scenePath,
		Selection: e.selection,
		Entities:  e.world.Len(),
		Frame:     e.sysCtx.Frame,
		FixedTick: e.sysCtx.FixedTick,
	}
}

// EntitySummary is one row of GetEntities.
type EntitySummary struct {
	ID       ecs.EntityID   `json:"id"`
	Name     string         `json:"name,omitempty"`
	Parent   ecs.EntityID   `json:"parent,omitempty"`
	Children []ecs.EntityID `json:"children,omitempty"`
}

func (e *Editor) entities() []EntitySummary {
	ids := e.world.Entities()
	out := make([]EntitySummary, 0, len(ids))
	for _, id := range ids {
		s := EntitySummary{ID: id, Children: ecs.ChildrenOf(e.world, id)}
		if n, ok := ecs.Get[component.Name](e.world, id); ok {
			s.Name = string(*n)
		}
		if p, ok := ecs.ParentOf(e.world, id); ok {
			s.Parent = p
		}
		out = append(out, s)
	}
	return out
}

// EntityDetail is the GetEntity payload.
type EntityDetail struct {
	EntitySummary
	Components scene.Components     `json:"components"`
	Scripts    []scripting.Instance `json:"scripts,omitempty"`
}

func (e *Editor) entity(id ecs.EntityID) (EntityDetail, error) {
	c, err := e.accessor.Components(id)
	if err != nil {
		return EntityDetail{}, err
	}
	d := EntityDetail{
		EntitySummary: EntitySummary{ID: id, Children: ecs.ChildrenOf(e.world, id)},
		Components:    c,
		Scripts:       e.host.Instances(id),
	}
	if c.Name != nil {
		d.Name = *c.Name
	}
	if p, ok := ecs.ParentOf(e.world, id); ok {
		d.Parent = p
	}
	return d, nil
}

// ScriptsReport is the GetScripts payload.
type ScriptsReport struct {
	Entities []scripting.EntityScripts `json:"entities"`
	Dead     []uint32                  `json:"dead_scripts"`
	NextID   uint32                    `json:"next_script_id"`
}

// IsNotExist reports whether err is an IOError for a missing file.
func IsNotExist(err error) bool {
	var ioerr *IOError
	return errors.As(err, &ioerr) && errors.Is(ioerr.Err, os.ErrNotExist)
}
