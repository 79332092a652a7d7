// Package tools implements the ToolRegistry and built-in tools of spec.md
// §4.9, grounded directly on the teacher's mcp.Tool{Name,Description,
// InputSchema} + ToolHandler registry shape (internal/mcp/tools.go,
// internal/mcp/server.go in the original tree) — only the registry shape is
// reused, not the stdio JSON-RPC transport.
package tools

import (
	"encoding/json"
	"fmt"
)

// Metadata describes a tool for inclusion in the agent's tool manifest.
type Metadata struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Handler executes a tool given its JSON argument string, returning the
// tool's plain-text result (or an "ERROR: ..." string on failure, per
// spec.md §4.9/§4.10's user-readable-string contract).
type Handler func(argsJSON string) string

// Tool pairs a tool's metadata with its execution handler.
type Tool struct {
	Metadata Metadata
	Execute  Handler
}

// Registry maps tool name to Tool.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Metadata.Name]; !exists {
		r.order = append(r.order, t.Metadata.Name)
	}
	r.tools[t.Metadata.Name] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Manifest returns every tool's Metadata, in registration order, for the
// agent loop's JSON tool manifest (spec.md §4.11 step 1).
func (r *Registry) Manifest() []Metadata {
	out := make([]Metadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Metadata)
	}
	return out
}

// Dispatch executes the named tool with projectID injected into args before
// execution (spec.md §4.9's "argument injection" contract), so tools always
// resolve paths against the correct project root regardless of what the LLM
// supplied.
func (r *Registry) Dispatch(name, argsJSON, projectID string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("tools: unknown tool %q", name)
	}
	injected, err := injectProjectID(argsJSON, projectID)
	if err != nil {
		return "", fmt.Errorf("tools: invalid arguments for %s: %w", name, err)
	}
	return t.Execute(injected), nil
}

func injectProjectID(argsJSON, projectID string) (string, error) {
	var m map[string]interface{}
	if argsJSON == "" {
		m = map[string]interface{}{}
	} else if err := json.Unmarshal([]byte(argsJSON), &m); err != nil {
		return "", err
	}
	m["project_id"] = projectID
	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
