package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeKeysFile(t *testing.T, dir string, schema FileSchema) string {
	t.Helper()
	data, err := json.Marshal(schema)
	require.NoError(t, err)
	path := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCurrentPair(t *testing.T) {
	dir := t.TempDir()
	path := writeKeysFile(t, dir, FileSchema{Keys: []string{"k1", "k2"}, Models: []string{"m1", "m2"}})

	pool, err := Load(path, nil)
	require.NoError(t, err)

	pair, ok := pool.CurrentPair()
	require.True(t, ok)
	require.Equal(t, "k1", pair.Key)
	require.Equal(t, "m1", pair.Model)
}

func TestRotateKeyWraps(t *testing.T) {
	dir := t.TempDir()
	path := writeKeysFile(t, dir, FileSchema{Keys: []string{"k1", "k2"}, Models: []string{"m1"}})
	pool, err := Load(path, nil)
	require.NoError(t, err)

	pool.RotateKey()
	pair, _ := pool.CurrentPair()
	require.Equal(t, "k2", pair.Key)

	pool.RotateKey()
	pair, _ = pool.CurrentPair()
	require.Equal(t, "k1", pair.Key, "cursor wraps modulo active keys")
}

func TestRotateModelResetsKeyCursor(t *testing.T) {
	dir := t.TempDir()
	path := writeKeysFile(t, dir, FileSchema{Keys: []string{"k1", "k2"}, Models: []string{"m1", "m2"}})
	pool, err := Load(path, nil)
	require.NoError(t, err)

	pool.RotateKey()
	pool.RotateModel()
	pair, _ := pool.CurrentPair()
	require.Equal(t, "k1", pair.Key)
	require.Equal(t, "m2", pair.Model)
}

func TestReportFailureDeactivatesAfterThreeFailures(t *testing.T) {
	dir := t.TempDir()
	path := writeKeysFile(t, dir, FileSchema{Keys: []string{"k1", "k2"}, Models: []string{"m1"}})
	pool, err := Load(path, nil)
	require.NoError(t, err)

	require.Equal(t, 2, pool.ActiveKeyCount())

	pool.ReportFailure(FailureQuota)
	pool.RotateKey() // simulate mission retry landing back on k1
	pool.ReportFailure(FailureQuota)
	pool.RotateKey()
	pool.ReportFailure(FailureQuota)

	require.Equal(t, 1, pool.ActiveKeyCount(), "k1 should be deactivated after 3 failures")
}

func TestRefreshRereadsFile(t *testing.T) {
	dir := t.TempDir()
	path := writeKeysFile(t, dir, FileSchema{Keys: []string{"k1"}, Models: []string{"m1"}})
	pool, err := Load(path, nil)
	require.NoError(t, err)

	writeKeysFile(t, dir, FileSchema{Keys: []string{"k1", "k2"}, Models: []string{"m1"}})
	require.NoError(t, pool.Refresh())

	require.Equal(t, 2, pool.ActiveKeyCount())
}

func TestLocateFile(t *testing.T) {
	root := t.TempDir()
	mid := filepath.Join(root, "a")
	leaf := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(leaf, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keys.json"), []byte("{}"), 0o600))

	found, ok := LocateFile(leaf, "keys.json")
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "keys.json"), found)

	_ = mid
	_, ok = LocateFile(root, "missing.json")
	require.False(t, ok)
}

func TestBackoffDelay(t *testing.T) {
	require.Equal(t, time.Duration(0), BackoffDelay(0, 3))
	require.Equal(t, time.Duration(0), BackoffDelay(2, 3))
	require.Equal(t, time.Second, BackoffDelay(3, 3))
	require.Equal(t, 2*time.Second, BackoffDelay(4, 3))
	require.Equal(t, 4*time.Second, BackoffDelay(5, 3))
}
