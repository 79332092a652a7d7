package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"codeintel/internal/agent"
	"codeintel/internal/retrieval"
)

// sseWriter adapts an agent.EventWriter onto a flushing http.ResponseWriter,
// framing each Event as one `data: <json>\n\n` record per the SSE wire
// format spec.md §6's agent-streaming note describes.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) Write(ev agent.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "data: %s\n\n", data)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// handleAgentStream handles GET /agent/stream?project_id=...&prompt=...,
// running one bounded agent mission (spec.md §4.11) and streaming its
// {STARTUP, THOUGHT, TOOL_EXEC, AST_SCAN, FINAL, ERROR} events as SSE.
func (s *Server) handleAgentStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	projectID := query.Get("project_id")
	prompt := query.Get("prompt")
	if projectID == "" || prompt == "" {
		BadRequest(w, "query must include project_id and prompt")
		return
	}

	state, ok := s.Registry.Get(projectID)
	if !ok {
		NotFound(w, "project not registered: "+projectID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, "streaming unsupported by this connection", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	embedding, err := s.LLM.GenerateEmbedding(r.Context(), prompt)
	var contextBlock string
	if err == nil {
		candidates := state.Retrieval.Retrieve(embedding, retrieval.DefaultOptions())
		contextBlock = retrieval.BuildTMapContext(candidates)
	}

	writer := &sseWriter{w: w, flusher: flusher}
	loop := s.newLoop(state)
	loop.Run(r.Context(), projectID, prompt, contextBlock, writer)
}
