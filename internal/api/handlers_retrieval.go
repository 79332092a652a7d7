package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"codeintel/internal/codegraph"
	"codeintel/internal/retrieval"
)

const (
	queryCacheTTLSeconds    = 60
	viewCacheTTLSeconds     = 300
	negativeCacheTTLSeconds = 120
)

// cacheKey hashes the parts identifying one cacheable request so keys stay
// a fixed, short length regardless of prompt size.
func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// handleRetrieveContextCandidates handles POST /retrieve-context-candidates:
// {project_id, prompt} -> {candidates}, the first half of spec.md §4.8's
// pipeline, stopping short of generation.
func (s *Server) handleRetrieveContextCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ProjectID string `json:"project_id"`
		Prompt    string `json:"prompt"`
		MaxNodes  int    `json:"max_nodes,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" || body.Prompt == "" {
		BadRequest(w, "body must be {project_id, prompt}")
		return
	}

	state, ok := s.Registry.Get(body.ProjectID)
	if !ok {
		NotFound(w, "project not registered: "+body.ProjectID)
		return
	}

	key := cacheKey("retrieve-context-candidates", body.ProjectID, body.Prompt, fmt.Sprint(body.MaxNodes))
	if s.Cache != nil {
		if cached, ok, _ := s.Cache.GetQueryCache(key, body.ProjectID); ok {
			w.Header().Set("X-Cache", "hit")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(cached))
			return
		}
		if entry, _ := s.Cache.GetNegativeCache(key, body.ProjectID); entry != nil {
			WriteError(w, fmt.Errorf("%s", entry.ErrorMessage), http.StatusBadGateway)
			return
		}
	}

	embedding, err := s.LLM.GenerateEmbedding(r.Context(), body.Prompt)
	if err != nil {
		if s.Cache != nil {
			_ = s.Cache.SetNegativeCache(key, body.ProjectID, "embedding_error", err.Error(), negativeCacheTTLSeconds)
		}
		WriteError(w, err, http.StatusBadGateway)
		return
	}

	opts := retrieval.DefaultOptions()
	if body.MaxNodes > 0 {
		opts.MaxNodes = body.MaxNodes
	}
	candidates := state.Retrieval.Retrieve(embedding, opts)

	response := map[string]interface{}{
		"project_id": body.ProjectID,
		"candidates": candidates,
	}
	if s.Cache != nil {
		if data, err := json.Marshal(response); err == nil {
			_ = s.Cache.SetQueryCache(key, body.ProjectID, string(data), queryCacheTTLSeconds)
		}
	}

	WriteJSON(w, response, http.StatusOK)
}

// handleGenerateCodeSuggestion handles POST /generate-code-suggestion:
// {project_id, prompt, active_file_path?, active_file_content?} ->
// {suggestion}, spec.md §4.8's full pipeline through generate_text_elite.
func (s *Server) handleGenerateCodeSuggestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ProjectID         string `json:"project_id"`
		Prompt            string `json:"prompt"`
		ActiveFilePath    string `json:"active_file_path,omitempty"`
		ActiveFileContent string `json:"active_file_content,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" || body.Prompt == "" {
		BadRequest(w, "body must be {project_id, prompt, active_file_path?, active_file_content?}")
		return
	}

	state, ok := s.Registry.Get(body.ProjectID)
	if !ok {
		NotFound(w, "project not registered: "+body.ProjectID)
		return
	}

	embedding, err := s.LLM.GenerateEmbedding(r.Context(), body.Prompt)
	if err != nil {
		WriteError(w, err, http.StatusBadGateway)
		return
	}

	viewKey := cacheKey("generate-code-suggestion:view", body.ProjectID, body.Prompt)
	var contextBlock string
	var viewCached bool
	if s.Cache != nil {
		if cached, ok, _ := s.Cache.GetViewCache(viewKey, body.ProjectID); ok {
			contextBlock = cached
			viewCached = true
		}
	}
	if !viewCached {
		candidates := state.Retrieval.Retrieve(embedding, retrieval.DefaultOptions())
		contextBlock = retrieval.BuildHierarchicalContext(candidates, 120_000)
		if s.Cache != nil {
			_ = s.Cache.SetViewCache(viewKey, body.ProjectID, contextBlock, viewCacheTTLSeconds)
		}
	}
	if body.ActiveFilePath != "" {
		contextBlock = "# ACTIVE FILE: " + body.ActiveFilePath + "\n" + body.ActiveFileContent + "\n\n" + contextBlock
	}

	prompt := "MISSION:\n" + body.Prompt + "\n\nCONTEXT:\n" + contextBlock
	result, err := s.LLM.GenerateTextElite(r.Context(), prompt)
	if err != nil {
		WriteError(w, err, http.StatusBadGateway)
		return
	}

	if s.InterLog != nil {
		s.InterLog.Append(codegraph.MissionLog{
			ProjectID:        body.ProjectID,
			Type:             codegraph.MissionAgent,
			UserQuery:        body.Prompt,
			FullPrompt:       prompt,
			AIResponse:       result.Text,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			TotalTokens:      result.TotalTokens,
		})
	}

	WriteJSON(w, map[string]interface{}{
		"project_id": body.ProjectID,
		"suggestion": result.Text,
	}, http.StatusOK)
}

// handleComplete handles POST /complete: {prefix} -> {completion}, the
// low-latency autocomplete contract distinct from generate-code-suggestion.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Prefix string `json:"prefix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Prefix == "" {
		BadRequest(w, "body must be {prefix}")
		return
	}

	completion := s.LLM.GenerateAutocomplete(r.Context(), body.Prefix)
	WriteJSON(w, map[string]interface{}{"completion": completion}, http.StatusOK)
}

// handleGetDependencySubgraph handles POST /get-dependency-subgraph:
// {project_id, node_id} -> {nodes, edges, raw_dependencies}, a one-hop
// expansion read directly off the GraphStore (no scoring involved).
func (s *Server) handleGetDependencySubgraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ProjectID string `json:"project_id"`
		NodeID    string `json:"node_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProjectID == "" || body.NodeID == "" {
		BadRequest(w, "body must be {project_id, node_id}")
		return
	}

	state, ok := s.Registry.Get(body.ProjectID)
	if !ok {
		NotFound(w, "project not registered: "+body.ProjectID)
		return
	}

	root, ok := state.Store.Get(body.NodeID)
	if !ok {
		NotFound(w, "node not found: "+body.NodeID)
		return
	}

	nodes := []*codegraph.CodeNode{root}
	edges := make([]map[string]string, 0, len(root.Dependencies))
	for _, dep := range root.Dependencies {
		target, ok := state.Store.GetByName(dep)
		if !ok {
			continue
		}
		nodes = append(nodes, target)
		edges = append(edges, map[string]string{"from": root.ID, "to": target.ID})
	}

	WriteJSON(w, map[string]interface{}{
		"nodes":            nodes,
		"edges":            edges,
		"raw_dependencies": root.Dependencies,
	}, http.StatusOK)
}
