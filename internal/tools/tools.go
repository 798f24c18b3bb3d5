package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler is the function signature for tool handlers
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Parameter describes a tool parameter
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // string, integer, number, boolean, array, object
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool represents a callable tool/function
type Tool struct {
	Name        string
	Description string
	Parameters  []Parameter
	Handler     Handler
}

// Registry manages available tools
type Registry struct {
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a tool with this exact name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// List returns all registered tools, sorted by name for stable output.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

func (t *Tool) schemaProperties() (map[string]any, []string) {
	properties := make(map[string]any)
	required := make([]string, 0)

	for _, p := range t.Parameters {
		prop := map[string]any{
			"type": p.Type,
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}
	return properties, required
}

// ToFunctionDeclaration converts the tool to Gemini's function declaration format
func (t *Tool) ToFunctionDeclaration() map[string]any {
	properties, required := t.schemaProperties()

	decl := map[string]any{
		"name":        t.Name,
		"description": t.Description,
	}
	if len(properties) > 0 {
		decl["parameters"] = map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}
	}
	return decl
}

// ToOllamaSchema converts the tool to the OpenAI-style function schema that
// Ollama's chat API accepts
func (t *Tool) ToOllamaSchema() map[string]any {
	properties, required := t.schemaProperties()

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// PromptLine renders the tool as a one-line text menu entry for models
// without native tool support.
func (t *Tool) PromptLine() string {
	args := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		args = append(args, fmt.Sprintf("%s: %s", p.Name, p.Type))
	}
	return fmt.Sprintf("- %s(%s): %s", t.Name, strings.Join(args, ", "), t.Description)
}

// FunctionDeclarations returns all tools in Gemini declaration format
func (r *Registry) FunctionDeclarations() []map[string]any {
	decls := make([]map[string]any, 0)
	for _, t := range r.List() {
		decls = append(decls, t.ToFunctionDeclaration())
	}
	return decls
}

// OllamaSchemas returns all tools in Ollama's function schema format
func (r *Registry) OllamaSchemas() []map[string]any {
	schemas := make([]map[string]any, 0)
	for _, t := range r.List() {
		schemas = append(schemas, t.ToOllamaSchema())
	}
	return schemas
}

// PromptMenu renders the full text tool menu plus the single-JSON-object
// reply instruction used when a model lacks native tool calling.
func (r *Registry) PromptMenu() string {
	var b strings.Builder
	b.WriteString("You have access to the following tools:\n")
	for _, t := range r.List() {
		b.WriteString(t.PromptLine())
		b.WriteString("\n")
	}
	b.WriteString("\nTo use a tool, reply with only a single JSON object of the form ")
	b.WriteString(`{"name": "<tool name>", "args": {...}}`)
	b.WriteString(" and nothing else. If no tool is needed, answer normally.")
	return b.String()
}

// StringArg extracts a string argument, tolerating missing keys.
func StringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// ErrorPayload renders an error as the JSON object tool results use for
// failures.
func ErrorPayload(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
