package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codeintel/internal/codegraph"
	"codeintel/internal/graph"
)

type fakeEmbedder struct {
	calls int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, codegraph.EmbeddingDimension)
		out[i][0] = 1
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestPerformSync_IndexesFilesAndWritesArtifacts(t *testing.T) {
	src := t.TempDir()
	storage := t.TempDir()
	writeFile(t, filepath.Join(src, "a.go"), "package main\n\nfunc Foo() {}\n")
	writeFile(t, filepath.Join(src, "b.txt"), "not code")

	embedder := &fakeEmbedder{}
	svc := NewService(embedder, nil)
	store := graph.NewStore()

	result, err := svc.PerformSync(context.Background(), Params{
		ProjectID:         "p1",
		SourceDir:         src,
		StorageDir:        storage,
		AllowedExtensions: []string{"go"},
	}, store)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesIndexed)
	require.Greater(t, store.Len(), 0)

	_, err = os.Stat(filepath.Join(storage, manifestFile))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(storage, fullContextFile))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(storage, treeFile))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(storage, "converted_files", "a.go.txt"))
	require.NoError(t, err)
}

func TestPerformSync_IncrementalReusesUnchangedNodes(t *testing.T) {
	src := t.TempDir()
	storage := t.TempDir()
	writeFile(t, filepath.Join(src, "a.go"), "package main\n\nfunc Foo() {}\n")
	writeFile(t, filepath.Join(src, "b.go"), "package main\n\nfunc Bar() {}\n")

	embedder := &fakeEmbedder{}
	svc := NewService(embedder, nil)
	store := graph.NewStore()
	params := Params{ProjectID: "p1", SourceDir: src, StorageDir: storage, AllowedExtensions: []string{"go"}}

	_, err := svc.PerformSync(context.Background(), params, store)
	require.NoError(t, err)
	callsAfterFirst := embedder.calls

	var aID string
	for _, n := range store.All() {
		if n.FilePath == "a.go" && n.Name == "Foo" {
			aID = n.ID
		}
	}
	require.NotEmpty(t, aID)

	writeFile(t, filepath.Join(src, "b.go"), "package main\n\nfunc BarChanged() {}\n")
	_, err = svc.PerformSync(context.Background(), params, store)
	require.NoError(t, err)

	_, ok := store.Get(aID)
	require.True(t, ok, "unchanged file's node id survives incremental sync")
	require.Greater(t, embedder.calls, callsAfterFirst)
}

func TestPerformSync_DeletesManifestEntriesForRemovedFiles(t *testing.T) {
	src := t.TempDir()
	storage := t.TempDir()
	writeFile(t, filepath.Join(src, "a.go"), "package main\n\nfunc Foo() {}\n")

	embedder := &fakeEmbedder{}
	svc := NewService(embedder, nil)
	store := graph.NewStore()
	params := Params{ProjectID: "p1", SourceDir: src, StorageDir: storage, AllowedExtensions: []string{"go"}}

	_, err := svc.PerformSync(context.Background(), params, store)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(src, "a.go")))
	result, err := svc.PerformSync(context.Background(), params, store)
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesDeleted)
	require.Empty(t, result.Manifest)
}

func TestSyncSingleFile_HotAddsNodes(t *testing.T) {
	src := t.TempDir()
	storage := t.TempDir()
	writeFile(t, filepath.Join(src, "a.go"), "package main\n\nfunc Foo() {}\n")

	embedder := &fakeEmbedder{}
	svc := NewService(embedder, nil)
	store := graph.NewStore()
	params := Params{ProjectID: "p1", SourceDir: src, StorageDir: storage, AllowedExtensions: []string{"go"}}

	nodes, err := svc.SyncSingleFile(context.Background(), params, store, "a.go")
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	for _, n := range nodes {
		require.True(t, n.HasEmbedding())
	}
}
