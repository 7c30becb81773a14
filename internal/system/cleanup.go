package system

import (
	"time"

	coresys "github.com/stagehand/editor/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at the end of
// the variable pass, after every system that may have despawned mid-query.
type CleanupSystem struct {
	after []string
}

// NewCleanupSystem runs after the named systems.
func NewCleanupSystem(after ...string) *CleanupSystem {
	return &CleanupSystem{after: after}
}

func (s *CleanupSystem) Name() string           { return "cleanup" }
func (s *CleanupSystem) Dependencies() []string { return s.after }
func (s *CleanupSystem) FixedTimestep() bool    { return false }

func (s *CleanupSystem) Execute(ctx *coresys.Context, _ time.Duration) error {
	ctx.World.FlushDestroyQueue()
	return nil
}
