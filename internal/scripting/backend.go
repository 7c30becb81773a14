// Package scripting runs per-entity script instances through a pluggable
// compile-and-invoke back end.
package scripting

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stagehand/editor/internal/core/ecs"
)

// ErrScriptNotFound reports a script path that does not exist on disk or is
// not attached to the entity in question.
var ErrScriptNotFound = errors.New("script not found")

// Phase names a script entry point.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseUpdate
	PhaseDestroy
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseUpdate:
		return "update"
	case PhaseDestroy:
		return "destroy"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// CompileError is a source that failed to compile or to evaluate its
// top-level chunk.
type CompileError struct {
	Path    string
	Details string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Path, e.Details)
}

// PhaseError is an error raised from inside init, update or destroy.
type PhaseError struct {
	Phase    Phase
	ScriptID uint32
	Path     string
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s (script %d): %v", e.Phase, e.Path, e.ScriptID, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Backend compiles sources and drives instances. Every instance is bound
// under InstanceGlobal(id) so it can be released by name.
type Backend interface {
	// Compile checks source without evaluating it.
	Compile(path, source string) error
	// Load evaluates source, instantiates the class it declares and binds
	// the instance to owner.
	Load(id uint32, path, source string, owner ecs.EntityID, props map[string]any) error
	// Call invokes an entry point. A missing method is not an error.
	Call(id uint32, phase Phase, dt time.Duration) error
	// Release drops the instance binding.
	Release(id uint32)
	// ReleaseClasses drops globals the source at path introduced.
	ReleaseClasses(path string)
	// Reset discards every module and global and reinstalls the host API.
	Reset() error
	// Collect asks the back end to reclaim unreachable objects.
	Collect()
	Close()
}

// InstanceGlobal is the global name an instance is bound under.
func InstanceGlobal(id uint32) string {
	return fmt.Sprintf("instance_%d", id)
}

// Bridge gives scripts access to the world. scene.Accessor implements it.
type Bridge interface {
	Read(id ecs.EntityID, kind string) (json.RawMessage, bool, error)
	Write(id ecs.EntityID, kind string, value json.RawMessage) error
	Remove(id ecs.EntityID, kind string) (bool, error)
	Has(id ecs.EntityID, kind string) (bool, error)
	FindByName(name string) (ecs.EntityID, bool)
	Query(kind string) ([]ecs.EntityID, error)
}
