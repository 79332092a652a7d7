package jobs

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"codeintel/internal/storage"
)

// Store provides persistence for jobs, backed by the ambient operational
// database opened by storage.Open rather than a separate connection, so
// job state and manifest/telemetry state share one WAL file per repo.
type Store struct {
	db *storage.DB
}

// NewStore wraps an already-open storage.DB for job persistence.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// CreateJob persists a newly submitted job.
func (s *Store) CreateJob(job *Job) error {
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, project_id, scope, status, progress, created_at, started_at, completed_at, error, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, string(job.Type), job.ProjectID, job.Scope, string(job.Status), job.Progress,
		job.CreatedAt.Format(time.RFC3339), formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
		job.Error, job.Result,
	)
	if err != nil {
		return fmt.Errorf("failed to persist job: %w", err)
	}
	return nil
}

// UpdateJob writes the job's current state back to storage.
func (s *Store) UpdateJob(job *Job) error {
	_, err := s.db.Exec(`
		UPDATE jobs SET status = ?, progress = ?, started_at = ?, completed_at = ?, error = ?, result = ?
		WHERE id = ?
	`,
		string(job.Status), job.Progress, formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
		job.Error, job.Result, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// GetJob retrieves a single job by ID, returning nil if not found.
func (s *Store) GetJob(jobID string) (*Job, error) {
	row := s.db.QueryRow(`
		SELECT id, type, project_id, scope, status, progress, created_at, started_at, completed_at, error, result
		FROM jobs WHERE id = ?
	`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

// GetPendingJobs returns all queued or running jobs, used to repopulate
// the in-memory queue after a restart.
func (s *Store) GetPendingJobs() ([]*Job, error) {
	rows, err := s.db.Query(`
		SELECT id, type, project_id, scope, status, progress, created_at, started_at, completed_at, error, result
		FROM jobs WHERE status IN ('queued', 'running')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ListJobs lists jobs with optional project/status/type filters.
func (s *Store) ListJobs(opts ListJobsOptions) (*ListJobsResponse, error) {
	var where []string
	var args []interface{}

	if opts.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if len(opts.Status) > 0 {
		placeholders := make([]string, len(opts.Status))
		for i, st := range opts.Status {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(opts.Type) > 0 {
		placeholders := make([]string, len(opts.Type))
		for i, t := range opts.Type {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, fmt.Sprintf("type IN (%s)", strings.Join(placeholders, ",")))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM jobs %s", whereClause)
	if err := s.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
		SELECT id, type, project_id, scope, status, progress, created_at, started_at, completed_at, error, result
		FROM jobs %s ORDER BY created_at DESC LIMIT ? OFFSET ?
	`, whereClause)
	args = append(args, limit, opts.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var summaries []JobSummary
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		summaries = append(summaries, job.ToSummary())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ListJobsResponse{Jobs: summaries, TotalCount: total}, nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var createdAt string
	var startedAt, completedAt sql.NullString

	err := row.Scan(
		&job.ID, &job.Type, &job.ProjectID, &job.Scope, &job.Status, &job.Progress,
		&createdAt, &startedAt, &completedAt, &job.Error, &job.Result,
	)
	if err != nil {
		return nil, err
	}

	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if startedAt.Valid && startedAt.String != "" {
		t, _ := time.Parse(time.RFC3339, startedAt.String)
		job.StartedAt = &t
	}
	if completedAt.Valid && completedAt.String != "" {
		t, _ := time.Parse(time.RFC3339, completedAt.String)
		job.CompletedAt = &t
	}

	return &job, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
