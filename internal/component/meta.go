package component

// Name is a human-readable label. Names are not unique.
type Name string

// Enabled gates whether systems process the entity. Entities without it
// count as enabled.
type Enabled bool

// Script attaches one or more script sources to an entity. Instances run in
// the order of Paths.
type Script struct {
	Paths          []string
	Enabled        bool
	ExecutionOrder int32
	Properties     map[string]any
}

// NewScript returns an enabled script component for paths.
func NewScript(paths ...string) Script {
	return Script{Paths: append([]string(nil), paths...), Enabled: true}
}

// Clone deep-copies the path list and property bag.
func (s Script) Clone() Script {
	out := s
	out.Paths = append([]string(nil), s.Paths...)
	out.Properties = CloneProperties(s.Properties)
	return out
}

// CloneProperties deep-copies a JSON-shaped property bag.
func CloneProperties(p map[string]any) map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneProperties(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = cloneValue(x[i])
		}
		return out
	}
	return v
}
