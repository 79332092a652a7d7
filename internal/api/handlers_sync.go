package api

import (
	"encoding/json"
	"net/http"

	"codeintel/internal/codegraph"
	"codeintel/internal/jobs"
)

// handleSyncRegister handles POST /sync/register/<project_id>: the body is
// a Config, and the project's storage directory + in-memory state are
// created (or reopened if already present on disk).
func (s *Server) handleSyncRegister(w http.ResponseWriter, r *http.Request) {
	projectID := GetPathParam(r.URL.Path, "/sync/register/")
	if projectID == "" {
		BadRequest(w, "missing project_id in path")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg codegraph.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		BadRequest(w, "invalid config body: "+err.Error())
		return
	}
	if cfg.LocalPath == "" {
		BadRequest(w, "config.local_path is required")
		return
	}

	state, err := s.Registry.Register(projectID, cfg.LocalPath, cfg)
	if err != nil {
		InternalError(w, "failed to register project", err)
		return
	}

	WriteJSON(w, map[string]interface{}{
		"project_id":  projectID,
		"storage_dir": state.StorageDir,
		"nodes":       state.Index.NTotal(),
	}, http.StatusOK)
}

// handleSyncRun handles POST /sync/run/<project_id>: enqueues a background
// JobTypeSync and returns an ack immediately, per spec.md §6.
func (s *Server) handleSyncRun(w http.ResponseWriter, r *http.Request) {
	projectID := GetPathParam(r.URL.Path, "/sync/run/")
	if projectID == "" {
		BadRequest(w, "missing project_id in path")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state, ok := s.Registry.Get(projectID)
	if !ok {
		NotFound(w, "project not registered: "+projectID)
		return
	}

	job, err := jobs.NewJob(projectID, jobs.JobTypeSync, jobs.SyncScope{
		SourceDir:  state.SourceDir,
		StorageDir: state.StorageDir,
	})
	if err != nil {
		InternalError(w, "failed to create sync job", err)
		return
	}
	if err := s.Jobs.Submit(job); err != nil {
		InternalError(w, "failed to submit sync job", err)
		return
	}

	WriteJSON(w, map[string]interface{}{"job_id": job.ID, "status": string(job.Status)}, http.StatusAccepted)
}

// handleSyncFile handles POST /sync/file/<project_id>: body {file_path},
// an incremental single-file sync run synchronously on the request thread
// (small enough not to need the worker pool).
func (s *Server) handleSyncFile(w http.ResponseWriter, r *http.Request) {
	projectID := GetPathParam(r.URL.Path, "/sync/file/")
	if projectID == "" {
		BadRequest(w, "missing project_id in path")
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		FilePath string `json:"file_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.FilePath == "" {
		BadRequest(w, "body must be {file_path}")
		return
	}

	state, ok := s.Registry.Get(projectID)
	if !ok {
		NotFound(w, "project not registered: "+projectID)
		return
	}

	nodes, err := s.Sync.SyncSingleFile(r.Context(), syncParams(projectID, state), state.Store, body.FilePath)
	if err != nil {
		InternalError(w, "file sync failed", err)
		return
	}

	state.RebuildIndex()
	if err := state.Persist(); err != nil {
		s.logger.Warn("failed to persist project after file sync", map[string]interface{}{"error": err.Error()})
	}
	if s.Cache != nil {
		if err := s.Cache.InvalidateByProjectID(projectID); err != nil {
			s.logger.Warn("failed to invalidate cache after file sync", map[string]interface{}{"error": err.Error()})
		}
	}

	WriteJSON(w, map[string]interface{}{"file_path": body.FilePath, "nodes_updated": len(nodes)}, http.StatusOK)
}
