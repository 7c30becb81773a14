package system

import (
	"time"

	"github.com/stagehand/editor/internal/core/ecs"
)

// System is the interface every scheduled unit implements. Dependencies name
// other systems in the same bucket that must run first.
type System interface {
	Name() string
	Dependencies() []string
	FixedTimestep() bool
	Execute(ctx *Context, dt time.Duration) error
}

// Context is handed to every system for the duration of one Execute call.
type Context struct {
	World *ecs.World
	// Frame counts variable passes, FixedTick counts fixed passes.
	Frame     uint64
	FixedTick uint64
}

// Func adapts a plain function into a System.
type Func struct {
	SystemName string
	After      []string
	Fixed      bool
	Fn         func(ctx *Context, dt time.Duration) error
}

func (f *Func) Name() string           { return f.SystemName }
func (f *Func) Dependencies() []string { return f.After }
func (f *Func) FixedTimestep() bool    { return f.Fixed }

func (f *Func) Execute(ctx *Context, dt time.Duration) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx, dt)
}
