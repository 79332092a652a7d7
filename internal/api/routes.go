package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers every endpoint of spec.md §6.
func (s *Server) registerRoutes() {
	s.router.HandleFunc("/sync/register/", s.handleSyncRegister)
	s.router.HandleFunc("/sync/run/", s.handleSyncRun)
	s.router.HandleFunc("/sync/file/", s.handleSyncFile)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.HandleFunc("/retrieve-context-candidates", s.handleRetrieveContextCandidates)
	s.router.HandleFunc("/generate-code-suggestion", s.handleGenerateCodeSuggestion)
	s.router.HandleFunc("/complete", s.handleComplete)
	s.router.HandleFunc("/get-dependency-subgraph", s.handleGetDependencySubgraph)

	s.router.HandleFunc("/api/admin/telemetry", s.handleAdminTelemetry)
	s.router.HandleFunc("/api/admin/agent_trace", s.handleAdminAgentTrace)
	s.router.HandleFunc("/admin/refresh-keys", s.handleAdminRefreshKeys)

	s.router.HandleFunc("/agent/stream", s.handleAgentStream)

	s.router.HandleFunc("/jobs", s.handleListJobs)
	s.router.HandleFunc("/jobs/", s.handleJobRoutes)

	s.router.HandleFunc("/", s.handleRoot)
}

// handleRoot lists every registered endpoint, mirroring the teacher's root
// discovery response.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"name": "codeintel HTTP API",
		"endpoints": []string{
			"POST /sync/register/:project_id - register a project (body is Config)",
			"POST /sync/run/:project_id - start a background full sync",
			"POST /sync/file/:project_id - incremental single-file sync",
			"POST /retrieve-context-candidates - {project_id, prompt} -> {candidates}",
			"POST /generate-code-suggestion - {project_id, prompt, active_file_path?, active_file_content?} -> {suggestion}",
			"POST /complete - {prefix} -> {completion}",
			"POST /get-dependency-subgraph - {project_id, node_id} -> {nodes, edges, raw_dependencies}",
			"GET /metrics - Prometheus text exposition of process/LLM gauges",
			"GET /api/admin/telemetry - current metrics and recent logs snapshot",
			"GET /api/admin/agent_trace - recent trace entries",
			"POST /admin/refresh-keys - reload credentials",
			"GET /agent/stream - SSE agent mission stream",
			"GET /jobs - list background jobs",
			"GET /jobs/:id - job status",
			"POST /jobs/:id/cancel - cancel a job",
		},
	}

	WriteJSON(w, response, http.StatusOK)
}
