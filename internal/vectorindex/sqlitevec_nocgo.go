//go:build !cgo

package vectorindex

import "errors"

// SqliteVecStore mirrors the cgo-backed vec0 store's shape for non-cgo
// builds, where sqlite-vec's virtual table extension is unavailable. Every
// method fails so callers fall back to the in-memory flat Index alone.
type SqliteVecStore struct{}

// OpenSqliteVecStore always fails on a non-cgo build.
func OpenSqliteVecStore(dbPath string, dim int) (*SqliteVecStore, error) {
	return nil, errors.New("vectorindex: sqlite-vec store requires a cgo build")
}

func (s *SqliteVecStore) Upsert(id string, embedding []float32) error {
	return errors.New("vectorindex: sqlite-vec store requires a cgo build")
}

func (s *SqliteVecStore) Delete(id string) error {
	return errors.New("vectorindex: sqlite-vec store requires a cgo build")
}

func (s *SqliteVecStore) Close() error {
	return nil
}
