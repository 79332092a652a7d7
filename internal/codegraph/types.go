// Package codegraph holds the shared value types that flow between the
// graph, vector index, sync, and retrieval layers. Keeping them in one leaf
// package avoids import cycles between internal/graph, internal/vectorindex,
// and internal/sync.
package codegraph

import "fmt"

// NodeType is the syntactic unit kind a CodeNode represents.
type NodeType string

const (
	NodeFile      NodeType = "file"
	NodeFunction  NodeType = "function"
	NodeClass     NodeType = "class"
	NodeCodeBlock NodeType = "code_block"
	NodeMethod    NodeType = "method"
)

// EmbeddingDimension is the fixed embedding length required once a node is indexed.
const EmbeddingDimension = 768

// CodeNode is a syntactic unit: a file, function, class, or brace-delimited block.
type CodeNode struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	FilePath string   `json:"file_path"`
	Content  string   `json:"content"`

	Dependencies []string  `json:"dependencies"`
	Embedding    []float32 `json:"embedding,omitempty"`

	Weights map[string]float64 `json:"weights,omitempty"`

	AISummary      string   `json:"ai_summary,omitempty"`
	AIQualityScore *float64 `json:"ai_quality_score,omitempty"`
}

// NodeID formats the canonical `<relative_path>[::<symbol_name>]` identifier.
func NodeID(filePath, symbolName string) string {
	if symbolName == "" {
		return filePath
	}
	return fmt.Sprintf("%s::%s", filePath, symbolName)
}

// StructuralWeight returns the node's structural weight, defaulting to 0.5
// when absent (per spec.md §4.8 scoring step).
func (n *CodeNode) StructuralWeight() float64 {
	if n.Weights == nil {
		return 0.5
	}
	if w, ok := n.Weights["structural"]; ok {
		return w
	}
	return 0.5
}

// HasEmbedding reports whether the node carries a usable embedding vector.
func (n *CodeNode) HasEmbedding() bool {
	return len(n.Embedding) == EmbeddingDimension
}

// ManifestEntry maps a relative path to its content hash ("<size>-<mtime>").
type ManifestEntry struct {
	RelativePath string `json:"relative_path"`
	ContentHash  string `json:"content_hash"`
}

// Manifest is the full rel_path -> hash table used to detect file changes.
type Manifest map[string]string

// Config is a Project's persisted configuration (config.json).
type Config struct {
	LocalPath         string   `json:"local_path"`
	StoragePath       string   `json:"storage_path,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions"`
	IgnoredPaths      []string `json:"ignored_paths"`
	IncludedPaths     []string `json:"included_paths"`
	IsActive          bool     `json:"is_active"`
	Status            string   `json:"status"`
}

// RetrievalResult is one scored/ranked candidate returned by the retrieval engine.
type RetrievalResult struct {
	Node       *CodeNode `json:"node"`
	GraphScore float64   `json:"graph_score"`
	FinalScore float64   `json:"final_score"`
	Distance   uint32    `json:"distance"`
}

// ActionKind tags the variant of an AgentAction.
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionFinal    ActionKind = "final"
	ActionInvalid  ActionKind = "invalid"
)

// AgentAction is the parsed form of the LLM's per-step JSON response.
type AgentAction struct {
	Kind       ActionKind             `json:"kind"`
	ToolName   string                 `json:"tool,omitempty"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Answer     string                 `json:"answer,omitempty"`
}

// MissionType distinguishes a user-driven agent mission from a background
// "ghost" run (e.g. stress-test simulation).
type MissionType string

const (
	MissionAgent MissionType = "AGENT"
	MissionGhost MissionType = "GHOST"
)

// MissionLog is one entry in the InteractionLog ring buffer.
type MissionLog struct {
	Timestamp        int64       `json:"timestamp"`
	ProjectID        string      `json:"project_id"`
	Type             MissionType `json:"type"`
	UserQuery        string      `json:"user_query"`
	FullPrompt       string      `json:"full_prompt"`
	AIResponse       string      `json:"ai_response"`
	DurationMs       int64       `json:"duration_ms"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	VectorSnapshot   []float32   `json:"vector_snapshot,omitempty"`
}
