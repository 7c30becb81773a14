package editor

import (
	"errors"
	"fmt"

	"github.com/stagehand/editor/internal/core/ecs"
	"github.com/stagehand/editor/internal/scene"
	"github.com/stagehand/editor/internal/scripting"
)

// ErrInvalidState is returned for commands the current play mode does not allow.
var ErrInvalidState = errors.New("invalid state")

// ErrorKind classifies a failed command for remote callers.
type ErrorKind string

const (
	KindStaleHandle      ErrorKind = "stale_handle"
	KindCycleDetected    ErrorKind = "cycle_detected"
	KindScriptNotFound   ErrorKind = "script_not_found"
	KindCompileFailed    ErrorKind = "compile_failed"
	KindIO               ErrorKind = "io_error"
	KindInvalidState     ErrorKind = "invalid_state"
	KindInvalidCommand   ErrorKind = "invalid_command"
	KindUnknownTemplate  ErrorKind = "unknown_template"
	KindUnknownComponent ErrorKind = "unknown_component"
	KindInternal         ErrorKind = "internal"
)

// IOError is a scene or script file that could not be read or written.
type IOError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioError(path string, err error) *IOError {
	return &IOError{Path: path, Reason: err.Error(), Err: err}
}

// Classify maps an error returned by Execute onto its ErrorKind.
func Classify(err error) ErrorKind {
	var cerr *scripting.CompileError
	var ioerr *IOError
	switch {
	case errors.Is(err, ecs.ErrStaleEntity):
		return KindStaleHandle
	case errors.Is(err, ecs.ErrWouldCycle):
		return KindCycleDetected
	case errors.As(err, &cerr):
		return KindCompileFailed
	case errors.Is(err, scripting.ErrScriptNotFound):
		return KindScriptNotFound
	case errors.As(err, &ioerr):
		return KindIO
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidCommand):
		return KindInvalidCommand
	case errors.Is(err, ErrUnknownTemplate):
		return KindUnknownTemplate
	case errors.Is(err, scene.ErrUnknownKind):
		return KindUnknownComponent
	}
	return KindInternal
}

// ErrorInfo is the wire form of a failed command.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Path    string    `json:"path,omitempty"`
	Details string    `json:"details,omitempty"`
}

// Response is the result of one command. Err keeps the original error for
// in-process callers and is not serialized.
type Response struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorInfo `json:"error,omitempty"`
	Err   error      `json:"-"`
}

func success(data any) Response {
	return Response{OK: true, Data: data}
}

func failure(err error) Response {
	info := &ErrorInfo{Kind: Classify(err), Message: err.Error()}
	var cerr *scripting.CompileError
	var ioerr *IOError
	if errors.As(err, &cerr) {
		info.Path = cerr.Path
		info.Details = cerr.Details
	}
	if errors.As(err, &ioerr) {
		info.Path = ioerr.Path
		info.Details = ioerr.Reason
	}
	return Response{Error: info, Err: err}
}
