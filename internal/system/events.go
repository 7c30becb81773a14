package system

import (
	"time"

	"github.com/stagehand/editor/internal/core/event"
	coresys "github.com/stagehand/editor/internal/core/system"
)

// EventDispatchSystem swaps the bus buffers and delivers last frame's events.
// It runs first in the variable pass.
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Name() string           { return "event_dispatch" }
func (s *EventDispatchSystem) Dependencies() []string { return nil }
func (s *EventDispatchSystem) FixedTimestep() bool    { return false }

func (s *EventDispatchSystem) Execute(_ *coresys.Context, _ time.Duration) error {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
	return nil
}
