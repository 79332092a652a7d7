package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"codeintel/internal/jobs"
)

// registerJobHandlers wires the three job types the runner executes
// (spec.md §5) against the services a Server already holds, so
// /sync/run, a file re-sync, and a stress test all run on the worker pool
// instead of blocking the foreground HTTP handler.
func (s *Server) registerJobHandlers() {
	s.Jobs.RegisterHandler(jobs.JobTypeSync, s.runSyncJob)
	s.Jobs.RegisterHandler(jobs.JobTypeFileSync, s.runFileSyncJob)
	s.Jobs.RegisterHandler(jobs.JobTypeStressTest, s.runStressTestJob)
}

func (s *Server) runSyncJob(ctx context.Context, job *jobs.Job, progress func(int)) (interface{}, error) {
	state, ok := s.Registry.Get(job.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not registered: %s", job.ProjectID)
	}

	var scope jobs.SyncScope
	if job.Scope != "" {
		if err := json.Unmarshal([]byte(job.Scope), &scope); err != nil {
			return nil, fmt.Errorf("invalid sync scope: %w", err)
		}
	}

	params := syncParams(job.ProjectID, state)
	progress(10)
	result, err := s.Sync.PerformSync(ctx, params, state.Store)
	if err != nil {
		return nil, err
	}
	progress(80)

	state.RebuildIndex()
	if err := state.Persist(); err != nil {
		return nil, fmt.Errorf("failed to persist project after sync: %w", err)
	}
	if s.Cache != nil {
		_ = s.Cache.InvalidateByProjectID(job.ProjectID)
	}
	progress(100)

	return result, nil
}

func (s *Server) runFileSyncJob(ctx context.Context, job *jobs.Job, progress func(int)) (interface{}, error) {
	state, ok := s.Registry.Get(job.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not registered: %s", job.ProjectID)
	}

	var scope jobs.FileSyncScope
	if job.Scope != "" {
		if err := json.Unmarshal([]byte(job.Scope), &scope); err != nil {
			return nil, fmt.Errorf("invalid file_sync scope: %w", err)
		}
	}

	progress(20)
	nodes, err := s.Sync.SyncSingleFile(ctx, syncParams(job.ProjectID, state), state.Store, scope.RelPath)
	if err != nil {
		return nil, err
	}
	progress(80)

	state.RebuildIndex()
	if err := state.Persist(); err != nil {
		return nil, fmt.Errorf("failed to persist project after file sync: %w", err)
	}
	if s.Cache != nil {
		_ = s.Cache.InvalidateByProjectID(job.ProjectID)
	}
	progress(100)

	return map[string]interface{}{"nodes_updated": len(nodes)}, nil
}

// runStressTestJob drives repeated agent missions against a project to
// exercise CredentialPool rotation and retrieval latency under load,
// per jobs.JobTypeStressTest's doc comment.
func (s *Server) runStressTestJob(ctx context.Context, job *jobs.Job, progress func(int)) (interface{}, error) {
	state, ok := s.Registry.Get(job.ProjectID)
	if !ok {
		return nil, fmt.Errorf("project not registered: %s", job.ProjectID)
	}

	var scope jobs.StressTestScope
	if job.Scope != "" {
		if err := json.Unmarshal([]byte(job.Scope), &scope); err != nil {
			return nil, fmt.Errorf("invalid stress_test scope: %w", err)
		}
	}
	if scope.Iterations <= 0 {
		scope.Iterations = 1
	}
	if scope.Concurrency <= 0 {
		scope.Concurrency = 1
	}

	var (
		mu        sync.Mutex
		completed int
		errs      []string
		sem       = make(chan struct{}, scope.Concurrency)
		wg        sync.WaitGroup
	)

	for i := 0; i < scope.Iterations; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			embedding, err := s.LLM.GenerateEmbedding(ctx, scope.Prompt)
			var contextBlock string
			if err == nil {
				candidates := state.Retrieval.Retrieve(embedding, defaultRetrievalOptions())
				contextBlock = buildContextBlock(candidates)
			}

			loop := s.newLoop(state)
			loop.Run(ctx, job.ProjectID, scope.Prompt, contextBlock, nil)

			mu.Lock()
			completed++
			progress((completed * 100) / scope.Iterations)
			if err != nil {
				errs = append(errs, err.Error())
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	return map[string]interface{}{
		"iterations_completed": completed,
		"embedding_errors":     errs,
	}, nil
}

// handleListJobs handles GET /jobs?project_id=&status=&type=&limit=&offset=.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	opts := jobs.ListJobsOptions{
		ProjectID: query.Get("project_id"),
		Limit:     QueryParamInt(query, "limit", 50),
		Offset:    QueryParamInt(query, "offset", 0),
	}
	if status := query.Get("status"); status != "" {
		opts.Status = []jobs.JobStatus{jobs.JobStatus(status)}
	}
	if jobType := query.Get("type"); jobType != "" {
		opts.Type = []jobs.JobType{jobs.JobType(jobType)}
	}

	resp, err := s.Jobs.ListJobs(opts)
	if err != nil {
		InternalError(w, "failed to list jobs", err)
		return
	}
	WriteJSON(w, resp, http.StatusOK)
}

// handleJobRoutes handles GET /jobs/<id> and POST /jobs/<id>/cancel.
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/jobs/")
	path = strings.Trim(path, "/")
	if path == "" {
		NotFound(w, "missing job id")
		return
	}

	if strings.HasSuffix(path, "/cancel") {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		jobID := strings.TrimSuffix(path, "/cancel")
		if err := s.Jobs.Cancel(jobID); err != nil {
			InternalError(w, "failed to cancel job", err)
			return
		}
		WriteJSON(w, map[string]interface{}{"status": "cancelled"}, http.StatusOK)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	job, err := s.Jobs.GetJob(path)
	if err != nil {
		InternalError(w, "failed to fetch job", err)
		return
	}
	if job == nil {
		NotFound(w, "job not found: "+path)
		return
	}
	WriteJSON(w, job, http.StatusOK)
}
