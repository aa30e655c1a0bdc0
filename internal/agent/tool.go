package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Tool is a structured-output schema the model is forced to fill in.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"` // JSON Schema
}

// ToolHandler validates and normalizes the model's tool input into the
// JSON the extractor decodes.
type ToolHandler func(ctx context.Context, input map[string]any) (string, error)

type registeredTool struct {
	tool    Tool
	handler ToolHandler
}

// ToolRegistry holds an agent's tools in registration order. Agents
// register their tools once at construction, so it is not synchronized.
type ToolRegistry struct {
	entries []registeredTool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{}
}

func (r *ToolRegistry) find(name string) (registeredTool, bool) {
	i := slices.IndexFunc(r.entries, func(e registeredTool) bool { return e.tool.Name == name })
	if i < 0 {
		return registeredTool{}, false
	}
	return r.entries[i], true
}

// Register adds a tool. Names must be unique and handlers non-nil.
func (r *ToolRegistry) Register(tool Tool, handler ToolHandler) error {
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}
	if _, exists := r.find(tool.Name); exists {
		return fmt.Errorf("tool already registered: %s", tool.Name)
	}
	r.entries = append(r.entries, registeredTool{tool: tool, handler: handler})
	return nil
}

// MustRegister is Register for package-level tool wiring.
func (r *ToolRegistry) MustRegister(tool Tool, handler ToolHandler) {
	if err := r.Register(tool, handler); err != nil {
		panic(err)
	}
}

// Execute runs the handler of the named tool.
func (r *ToolRegistry) Execute(ctx context.Context, name string, input map[string]any) (string, error) {
	entry, ok := r.find(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return entry.handler(ctx, input)
}

func (r *ToolRegistry) Tools() []Tool {
	tools := make([]Tool, len(r.entries))
	for i, e := range r.entries {
		tools[i] = e.tool
	}
	return tools
}

// Property is one field of a tool input schema.
type Property map[string]any

func String(description string) Property {
	return Property{"type": "string", "description": description}
}

func Integer(description string) Property {
	return Property{"type": "integer", "description": description}
}

func Boolean(description string) Property {
	return Property{"type": "boolean", "description": description}
}

// Enum is a string restricted to values.
func Enum(description string, values ...string) Property {
	return Property{"type": "string", "description": description, "enum": values}
}

func ArrayOf(description string, items Property) Property {
	return Property{"type": "array", "description": description, "items": items}
}

// ObjectSchema builds an object input schema. It panics when a required
// name has no property, which only happens with a miswired tool.
func ObjectSchema(properties map[string]Property, required ...string) map[string]any {
	for _, name := range required {
		if _, ok := properties[name]; !ok {
			panic(fmt.Sprintf("required property %q is not defined", name))
		}
	}
	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringInput reads a trimmed string field from tool input
func StringInput(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func BoolInput(input map[string]any, key string) bool {
	v, _ := input[key].(bool)
	return v
}

// IntInput reads an integer field. JSON numbers decode as float64.
func IntInput(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// StringSliceInput reads a list of non-empty strings, dropping other items.
func StringSliceInput(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
