// Package editor is the command port of the editor runtime: it owns the play
// mode state machine and applies commands to the world on the frame thread.
package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/stagehand/editor/internal/asset"
	"github.com/stagehand/editor/internal/console"
	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stagehand/editor/internal/core/event"
	coresys "github.com/stagehand/editor/internal/core/system"
	"github.com/stagehand/editor/internal/persist"
	"github.com/stagehand/editor/internal/project"
	"github.com/stagehand/editor/internal/scene"
	"github.com/stagehand/editor/internal/scripting"
	"go.uber.org/zap"
)

// Mode is the play state of the editor.
type Mode int

const (
	ModeEdit Mode = iota
	ModePlaying
	ModePaused
)

func (m Mode) String() string {
	switch m {
	case ModeEdit:
		return "edit"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// RevisionStore records scene saves. persist.SceneRepo implements it.
type RevisionStore interface {
	SaveRevision(ctx context.Context, path, name string, entities int, content []byte) (persist.Revision, bool, error)
	List(ctx context.Context, path string, limit int) ([]persist.Revision, error)
}

// Deps is everything the editor drives. World, Scheduler and Host are
// required; the rest fall back to defaults.
type Deps struct {
	World     *ecs.World
	Assets    *asset.Registry
	Loader    asset.Loader
	Scheduler *coresys.Scheduler
	Host      *scripting.Host
	Bus       *event.Bus
	Console   *console.Sink
	Project   *project.Project
	Templates *TemplateTable
	Revisions RevisionStore
	Log       *zap.Logger
	QueueSize int
}

type request struct {
	cmd   Command
	reply chan Response
}

// Editor applies commands and advances frames. Every method except Submit
// and Post must be called from the frame goroutine.
type Editor struct {
	world     *ecs.World
	assets    *asset.Registry
	loader    asset.Loader
	accessor  *scene.Accessor
	scheduler *coresys.Scheduler
	host      *scripting.Host
	bus       *event.Bus
	sink      *console.Sink
	project   *project.Project
	templates *TemplateTable
	revisions RevisionStore
	log       *zap.Logger

	sysCtx    *coresys.Context
	inbox     chan request
	mode      Mode
	snapshot  *scene.Snapshot
	selection ecs.EntityID
	scenePath string
	sceneName string
}

func New(d Deps) (*Editor, error) {
	if d.World == nil || d.Scheduler == nil || d.Host == nil {
		return nil, fmt.Errorf("editor: world, scheduler and script host are required")
	}
	if d.Assets == nil {
		d.Assets = asset.NewRegistry()
	}
	if d.Loader == nil {
		d.Loader = asset.NewRegistryLoader(d.Assets)
	}
	if d.Bus == nil {
		d.Bus = event.NewBus()
	}
	if d.Console == nil {
		d.Console = console.Default()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Templates == nil {
		t, err := LoadTemplates("")
		if err != nil {
			return nil, err
		}
		d.Templates = t
	}
	if d.QueueSize <= 0 {
		d.QueueSize = 256
	}
	return &Editor{
		world:     d.World,
		assets:    d.Assets,
		loader:    d.Loader,
		accessor:  scene.NewAccessor(d.World, d.Assets, d.Loader, d.Log.Named("accessor")),
		scheduler: d.Scheduler,
		host:      d.Host,
		bus:       d.Bus,
		sink:      d.Console,
		project:   d.Project,
		templates: d.Templates,
		revisions: d.Revisions,
		log:       d.Log,
		sysCtx:    &coresys.Context{World: d.World},
		inbox:     make(chan request, d.QueueSize),
		sceneName: "untitled",
	}, nil
}

func (e *Editor) Mode() Mode                    { return e.mode }
func (e *Editor) World() *ecs.World             { return e.world }
func (e *Editor) Accessor() *scene.Accessor     { return e.accessor }
func (e *Editor) Bus() *event.Bus               { return e.bus }
func (e *Editor) Selection() ecs.EntityID       { return e.selection }
func (e *Editor) Snapshot() *scene.Snapshot     { return e.snapshot }
func (e *Editor) ScenePath() string             { return e.scenePath }
func (e *Editor) Templates() *TemplateTable     { return e.templates }
func (e *Editor) Scheduler() *coresys.Scheduler { return e.scheduler }

// SetScene names the current scene without loading anything.
func (e *Editor) SetScene(path, name string) {
	e.scenePath = path
	if name != "" {
		e.sceneName = name
	}
}

// Submit queues cmd for the frame goroutine and waits for its response.
func (e *Editor) Submit(ctx context.Context, cmd Command) (Response, error) {
	req := request{cmd: cmd, reply: make(chan Response, 1)}
	select {
	case e.inbox <- req:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Post queues cmd without waiting. It returns false when the queue is full.
func (e *Editor) Post(cmd Command) bool {
	select {
	case e.inbox <- request{cmd: cmd}:
		return true
	default:
		return false
	}
}

// DrainCommands executes every queued command.
func (e *Editor) DrainCommands() int {
	n := 0
	for {
		select {
		case req := <-e.inbox:
			resp := e.Execute(req.cmd)
			if req.reply != nil {
				req.reply <- resp
			}
			n++
		default:
			return n
		}
	}
}

// Step runs one frame: queued commands, then fixed steps while playing, then
// the variable bucket.
func (e *Editor) Step(frameDt time.Duration) error {
	e.DrainCommands()
	_, err := e.scheduler.Tick(e.sysCtx, frameDt, e.mode == ModePlaying)
	return err
}

// Run steps the editor every tick until ctx is cancelled. Frame time is
// measured, not assumed.
func (e *Editor) Run(ctx context.Context, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			e.log.Info("frame loop stopped")
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			if err := e.Step(dt); err != nil {
				e.log.Debug("frame failed", zap.Error(err))
			}
		}
	}
}

// Close tears down every script instance.
func (e *Editor) Close() {
	e.host.Reset()
}
