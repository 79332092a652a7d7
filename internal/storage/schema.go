package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createManifestEntriesTable(tx); err != nil {
			return err
		}
		if err := createCredentialFailuresTable(tx); err != nil {
			return err
		}
		if err := createInteractionLogTable(tx); err != nil {
			return err
		}
		if err := createTraceEventsTable(tx); err != nil {
			return err
		}
		if err := createQueryCacheTable(tx); err != nil {
			return err
		}
		if err := createViewCacheTable(tx); err != nil {
			return err
		}
		if err := createNegativeCacheTable(tx); err != nil {
			return err
		}
		if err := createJobsTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Add migration functions here as schema evolves
	// Example:
	// if version < 2 {
	//     if err := db.migrateToV2(); err != nil {
	//         return err
	//     }
	// }

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createManifestEntriesTable creates a per-project manifest table
// (spec.md §4.7). Nothing writes to it; sync state is kept in manifest.json.
func createManifestEntriesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS manifest_entries (
			project_id TEXT NOT NULL,
			path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			last_synced_at TEXT NOT NULL,
			node_count INTEGER NOT NULL DEFAULT 0,

			PRIMARY KEY (project_id, path)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create manifest_entries table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_manifest_entries_project_id ON manifest_entries(project_id)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createCredentialFailuresTable creates a table for credential failure
// counters (spec.md §4.1). Nothing writes to it; the credential Pool keeps
// its counters in memory, so they do not survive a restart.
func createCredentialFailuresTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS credential_failures (
			key_id TEXT PRIMARY KEY,
			failure_count INTEGER NOT NULL DEFAULT 0,
			last_failure_at TEXT,
			cooldown_until TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create credential_failures table: %w", err)
	}
	return nil
}

// createInteractionLogTable creates a table shaped like the InteractionLog
// ring buffer entries (spec.md §4.11/§4.12). Nothing writes to it; the log
// lives only in the in-process ring.
func createInteractionLogTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS interaction_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			mission_type TEXT NOT NULL,
			user_query TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create interaction_log table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_interaction_log_project_id ON interaction_log(project_id)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createTraceEventsTable creates a table shaped like the Trace ring buffer
// events used by the admin agent-trace endpoint (spec.md §4.12). Nothing
// writes to it; the trace lives only in the in-process ring.
func createTraceEventsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS trace_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT,
			phase TEXT,
			payload_json TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trace_events table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_trace_events_project_id ON trace_events(project_id)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createQueryCacheTable backs Cache.GetQueryCache/SetQueryCache, keyed by
// the caller-built cache key plus project_id; a project's entries are
// cleared by InvalidateByProjectID.
func createQueryCacheTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS query_cache (
			key TEXT NOT NULL,
			project_id TEXT NOT NULL,
			value_json TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (key, project_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create query_cache table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_query_cache_expires_at ON query_cache(expires_at)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createViewCacheTable backs Cache.GetViewCache/SetViewCache for rendered
// retrieval views (hierarchical/T-Map context blocks).
func createViewCacheTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS view_cache (
			key TEXT NOT NULL,
			project_id TEXT NOT NULL,
			value_json TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (key, project_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create view_cache table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_view_cache_expires_at ON view_cache(expires_at)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createJobsTable backs internal/jobs.Store, persisting SyncJob/FileSyncJob/
// StressTestJob state across restarts so the Runner can recover orphaned
// work on startup.
func createJobsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			project_id TEXT NOT NULL,
			scope TEXT,
			status TEXT NOT NULL DEFAULT 'queued',
			progress INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			started_at TEXT,
			completed_at TEXT,
			error TEXT,
			result TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if _, err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_jobs_project_id ON jobs(project_id)"); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// createNegativeCacheTable backs Cache.GetNegativeCache/SetNegativeCache,
// short-circuiting repeat calls that are known to fail (e.g. MissingIndex).
func createNegativeCacheTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS negative_cache (
			key TEXT NOT NULL,
			project_id TEXT NOT NULL,
			error_type TEXT NOT NULL,
			error_message TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL,

			PRIMARY KEY (key, project_id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create negative_cache table: %w", err)
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_negative_cache_expires_at ON negative_cache(expires_at)")
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}
