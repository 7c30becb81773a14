package system

import (
	"time"

	coresys "github.com/stagehand/editor/internal/core/system"
	"github.com/stagehand/editor/internal/scripting"
)

// ScriptSystem drives the script host once per fixed tick.
type ScriptSystem struct {
	host *scripting.Host
}

func NewScriptSystem(host *scripting.Host) *ScriptSystem {
	return &ScriptSystem{host: host}
}

func (s *ScriptSystem) Name() string           { return "script_update" }
func (s *ScriptSystem) Dependencies() []string { return nil }
func (s *ScriptSystem) FixedTimestep() bool    { return true }

func (s *ScriptSystem) Execute(ctx *coresys.Context, dt time.Duration) error {
	return s.host.Update(ctx.World, dt)
}
