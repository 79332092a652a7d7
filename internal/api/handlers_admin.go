package api

import "net/http"

// handleAdminTelemetry handles GET /api/admin/telemetry: the latest process
// snapshot plus the most recent interaction log entries, spec.md §4.13's
// operator-facing view.
func (s *Server) handleAdminTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var snapshot interface{}
	if s.Collector != nil {
		snapshot = s.Collector.Latest()
	}
	var interactions interface{}
	if s.InterLog != nil {
		interactions = s.InterLog.Snapshot()
	}

	var jobStats map[string]interface{}
	if s.Jobs != nil {
		jobStats = s.Jobs.Stats()
	}

	var cacheStats map[string]interface{}
	if s.Cache != nil {
		cacheStats, _ = s.Cache.GetCacheStats()
	}

	WriteJSON(w, map[string]interface{}{
		"snapshot":     snapshot,
		"interactions": interactions,
		"jobs":         jobStats,
		"cache":        cacheStats,
	}, http.StatusOK)
}

// handleAdminAgentTrace handles GET /api/admin/agent_trace: the recent
// TOOL_EXEC/phase trace entries recorded by every agent.Loop mission.
func (s *Server) handleAdminAgentTrace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var trace interface{}
	if s.Trace != nil {
		trace = s.Trace.Snapshot()
	}
	WriteJSON(w, map[string]interface{}{"trace": trace}, http.StatusOK)
}

// handleAdminRefreshKeys handles POST /admin/refresh-keys: rereads the
// credentials file in place, per spec.md §4.1's hot-reload note.
func (s *Server) handleAdminRefreshKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Credentials == nil {
		InternalError(w, "no credentials pool configured", nil)
		return
	}
	if err := s.Credentials.Refresh(); err != nil {
		InternalError(w, "failed to refresh credentials", err)
		return
	}
	WriteJSON(w, map[string]interface{}{"status": "refreshed", "active_keys": s.Credentials.ActiveKeyCount()}, http.StatusOK)
}
