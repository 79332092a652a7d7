//go:build cgo

package vectorindex

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "modernc.org/sqlite"
)

func init() {
	sqlite_vec.Auto()
}

// SqliteVecStore is an on-disk sqlite vec0 virtual table (a single database
// file; internal/api opens it as vectors.db in the project storage dir) (spec.md §4.5's "HNSW-equivalent index"), grounded on
// codenerd's internal/store/init_vec.go. It is a write-through persistence
// layer used alongside the in-memory Index: every AddNodes call on the
// Index is mirrored here so a crash-consistent ANN table is always on disk,
// while Search still runs against the in-memory flat index for simplicity
// and bit-identical scoring across cgo and non-cgo builds.
type SqliteVecStore struct {
	db  *sql.DB
	dim int
}

// OpenSqliteVecStore opens (creating if absent) a vec0-backed sqlite
// database at dbPath sized for the fixed embedding dimension.
func OpenSqliteVecStore(dbPath string, dim int) (*SqliteVecStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open sqlite-vec store: %w", err)
	}
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS vec_nodes USING vec0(
		id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dim)
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("vectorindex: create vec0 table: %w", err)
	}
	return &SqliteVecStore{db: db, dim: dim}, nil
}

// Upsert writes a single normalized embedding into the vec0 table.
func (s *SqliteVecStore) Upsert(id string, embedding []float32) error {
	serialized, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("vectorindex: serialize embedding for %s: %w", id, err)
	}
	_, err = s.db.Exec(`INSERT INTO vec_nodes(id, embedding) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET embedding = excluded.embedding`, id, serialized)
	return err
}

// Delete removes a single embedding by node id.
func (s *SqliteVecStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM vec_nodes WHERE id = ?`, id)
	return err
}

// Search runs an ANN query against the vec0 table and returns (id, distance)
// pairs ordered by ascending distance, matching §4.5's KNN contract.
func (s *SqliteVecStore) Search(query []float32, k int) ([]struct {
	ID       string
	Distance float64
}, error) {
	serialized, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: serialize query: %w", err)
	}
	rows, err := s.db.Query(`SELECT id, distance FROM vec_nodes
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance`, serialized, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []struct {
		ID       string
		Distance float64
	}
	for rows.Next() {
		var rec struct {
			ID       string
			Distance float64
		}
		if err := rows.Scan(&rec.ID, &rec.Distance); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying sqlite connection.
func (s *SqliteVecStore) Close() error {
	return s.db.Close()
}
