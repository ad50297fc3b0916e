package tools

import (
	"encoding/json"
	"fmt"
)

// Field describes one parameter of a tool.
type Field struct {
	Name        string
	Type        string // JSON schema type: "string", "array", "object"
	Description string
	Required    bool

	// Items is set for array fields and names the element type.
	Items string
	// AdditionalValues is set for object fields whose values share one type
	// (e.g. a path→content map).
	AdditionalValues string
}

// Definition describes a callable tool exposed to the model.
type Definition struct {
	Name        string
	Description string
	Fields      []Field
}

// UnknownToolError reports an action call naming a tool that is not in the
// registry. It halts automatic processing of the current turn but is never
// silently dropped.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// Registry is the fixed, ordered set of tool definitions. It is immutable
// after construction; adapters and the workflow engine receive it explicitly.
type Registry struct {
	defs   []Definition
	byName map[string]int
}

// NewRegistry builds a registry from the given definitions. Duplicate names
// are a programming error.
func NewRegistry(defs []Definition) (*Registry, error) {
	byName := make(map[string]int, len(defs))
	for i, def := range defs {
		if _, dup := byName[def.Name]; dup {
			return nil, fmt.Errorf("duplicate tool definition %q", def.Name)
		}
		byName[def.Name] = i
	}
	return &Registry{defs: defs, byName: byName}, nil
}

// Definitions returns the tools in registration order. Callers must not
// mutate the returned slice.
func (r *Registry) Definitions() []Definition {
	return r.defs
}

// Lookup returns the definition for name, or UnknownToolError.
func (r *Registry) Lookup(name string) (Definition, error) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, &UnknownToolError{Name: name}
	}
	return r.defs[i], nil
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	return len(r.defs)
}

// ParameterSchema renders the tool's parameters as a JSON schema object,
// the shape every backend variant starts from before renaming its envelope.
func (d Definition) ParameterSchema() json.RawMessage {
	properties := make(map[string]any, len(d.Fields))
	required := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		prop := map[string]any{"type": f.Type}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if f.Items != "" {
			prop["items"] = map[string]any{"type": f.Items}
		}
		if f.AdditionalValues != "" {
			prop["additionalProperties"] = map[string]any{"type": f.AdditionalValues}
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return raw
}
