package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stagehand/editor/internal/core/ecs"
)

// ErrInvalidCommand is returned for malformed or unknown commands.
var ErrInvalidCommand = errors.New("invalid command")

// Command is one editor request. Commands are plain data; Editor.Execute
// interprets them on the frame thread.
type Command interface {
	Action() string
}

type (
	Play   struct{}
	Pause  struct{}
	Resume struct{}
	Stop   struct{}

	// Spawn instantiates a template. Parent, when set, becomes the new
	// entity's parent.
	Spawn struct {
		Template string       `json:"template"`
		Name     string       `json:"name,omitempty"`
		Parent   ecs.EntityID `json:"parent,omitempty"`
	}

	// Despawn removes an entity. Children are orphaned unless Recursive.
	Despawn struct {
		Entity    ecs.EntityID `json:"entity"`
		Recursive bool         `json:"recursive,omitempty"`
	}

	// SetComponent writes one component kind. Object values are merged into
	// the current value; null removes the component.
	SetComponent struct {
		Entity ecs.EntityID    `json:"entity"`
		Kind   string          `json:"kind"`
		Value  json.RawMessage `json:"value"`
	}

	RemoveComponent struct {
		Entity ecs.EntityID `json:"entity"`
		Kind   string       `json:"kind"`
	}

	SetParent struct {
		Child  ecs.EntityID `json:"child"`
		Parent ecs.EntityID `json:"parent"`
	}

	ClearParent struct {
		Entity ecs.EntityID `json:"entity"`
	}

	AddScript struct {
		Entity ecs.EntityID `json:"entity"`
		Path   string       `json:"path"`
	}

	RemoveScript struct {
		Entity ecs.EntityID `json:"entity"`
		Path   string       `json:"path"`
	}

	ReloadScript struct {
		Path string `json:"path"`
	}

	// Save writes the scene. An empty Path means the current scene file.
	Save struct {
		Path string `json:"path,omitempty"`
	}

	Load struct {
		Path string `json:"path"`
	}

	// Select changes the selection. ecs.Nil clears it.
	Select struct {
		Entity ecs.EntityID `json:"entity"`
	}

	GetState    struct{}
	GetEntities struct{}

	GetEntity struct {
		Entity ecs.EntityID `json:"entity"`
	}

	// GetLogs returns the last Limit console messages, or takes all of them
	// when Drain is set.
	GetLogs struct {
		Limit int  `json:"limit,omitempty"`
		Drain bool `json:"drain,omitempty"`
	}

	GetScripts struct{}

	GetRevisions struct {
		Path  string `json:"path,omitempty"`
		Limit int    `json:"limit,omitempty"`
	}

	GetTemplates struct{}

	Ping struct{}
)

func (Play) Action() string            { return "play" }
func (Pause) Action() string           { return "pause" }
func (Resume) Action() string          { return "resume" }
func (Stop) Action() string            { return "stop" }
func (Spawn) Action() string           { return "spawn" }
func (Despawn) Action() string         { return "despawn" }
func (SetComponent) Action() string    { return "set_component" }
func (RemoveComponent) Action() string { return "remove_component" }
func (SetParent) Action() string       { return "set_parent" }
func (ClearParent) Action() string     { return "clear_parent" }
func (AddScript) Action() string       { return "add_script" }
func (RemoveScript) Action() string    { return "remove_script" }
func (ReloadScript) Action() string    { return "reload_script" }
func (Save) Action() string            { return "save" }
func (Load) Action() string            { return "load" }
func (Select) Action() string          { return "select" }
func (GetState) Action() string        { return "get_state" }
func (GetEntities) Action() string     { return "get_entities" }
func (GetEntity) Action() string       { return "get_entity" }
func (GetLogs) Action() string         { return "get_logs" }
func (GetScripts) Action() string      { return "get_scripts" }
func (GetRevisions) Action() string    { return "get_revisions" }
func (GetTemplates) Action() string    { return "get_templates" }
func (Ping) Action() string            { return "ping" }

var decoders = map[string]func() Command{
	"play":             func() Command { return &Play{} },
	"pause":            func() Command { return &Pause{} },
	"resume":           func() Command { return &Resume{} },
	"stop":             func() Command { return &Stop{} },
	"spawn":            func() Command { return &Spawn{} },
	"despawn":          func() Command { return &Despawn{} },
	"set_component":    func() Command { return &SetComponent{} },
	"remove_component": func() Command { return &RemoveComponent{} },
	"set_parent":       func() Command { return &SetParent{} },
	"clear_parent":     func() Command { return &ClearParent{} },
	"add_script":       func() Command { return &AddScript{} },
	"remove_script":    func() Command { return &RemoveScript{} },
	"reload_script":    func() Command { return &ReloadScript{} },
	"save":             func() Command { return &Save{} },
	"load":             func() Command { return &Load{} },
	"select":           func() Command { return &Select{} },
	"get_state":        func() Command { return &GetState{} },
	"get_entities":     func() Command { return &GetEntities{} },
	"get_entity":       func() Command { return &GetEntity{} },
	"get_logs":         func() Command { return &GetLogs{} },
	"get_scripts":      func() Command { return &GetScripts{} },
	"get_revisions":    func() Command { return &GetRevisions{} },
	"get_templates":    func() Command { return &GetTemplates{} },
	"ping":             func() Command { return &Ping{} },
}

// DecodeCommand parses a JSON object whose "action" field names the command.
// The remaining fields fill the command struct.
func DecodeCommand(raw []byte) (Command, error) {
	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	mk, ok := decoders[env.Action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidCommand, env.Action)
	}
	ptr := mk()
	if err := json.Unmarshal(raw, ptr); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, env.Action, err)
	}
	return deref(ptr), nil
}

// deref turns the decoder's pointer into the value form Execute switches on.
func deref(c Command) Command {
	switch v := c.(type) {
	case *Play:
		return *v
	case *Pause:
		return *v
	case *Resume:
		return *v
	case *Stop:
		return *v
	case *Spawn:
		return *v
	case *Despawn:
		return *v
	case *SetComponent:
		return *v
	case *RemoveComponent:
		return *v
	case *SetParent:
		return *v
	case *ClearParent:
		return *v
	case *AddScript:
		return *v
	case *RemoveScript:
		return *v
	case *ReloadScript:
		return *v
	case *Save:
		return *v
	case *Load:
		return *v
	case *Select:
		return *v
	case *GetState:
		return *v
	case *GetEntities:
		return *v
	case *GetEntity:
		return *v
	case *GetLogs:
		return *v
	case *GetScripts:
		return *v
	case *GetRevisions:
		return *v
	case *GetTemplates:
		return *v
	case *Ping:
		return *v
	}
	return c
}
