package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"codeintel/internal/pathfilter"
)

func TestRegistry_ManifestPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&Tool{Metadata: Metadata{Name: "b"}, Execute: func(string) string { return "" }})
	r.Register(&Tool{Metadata: Metadata{Name: "a"}, Execute: func(string) string { return "" }})

	names := []string{}
	for _, m := range r.Manifest() {
		names = append(names, m.Name)
	}
	require.Equal(t, []string{"b", "a"}, names)
}

func TestRegistry_DispatchInjectsProjectID(t *testing.T) {
	r := NewRegistry()
	var seenArgs string
	r.Register(&Tool{
		Metadata: Metadata{Name: "echo"},
		Execute:  func(args string) string { seenArgs = args; return "ok" },
	})

	out, err := r.Dispatch("echo", `{"path":"a.go"}`, "proj-1")
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	require.Contains(t, seenArgs, `"project_id":"proj-1"`)
	require.Contains(t, seenArgs, `"path":"a.go"`)
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dispatch("missing", "{}", "proj-1")
	require.Error(t, err)
}

func newTestContext(t *testing.T) *ProjectContext {
	t.Helper()
	root := t.TempDir()
	return &ProjectContext{SourceRoot: root, Filter: pathfilter.New(nil, nil, nil)}
}

func TestReadFileTool_ReturnsContent(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(ctx.SourceRoot, "a.txt"), []byte("hello"), 0o644))

	tool := NewReadFileTool(ctx)
	out := tool.Execute(`{"path":"a.txt"}`)
	require.Equal(t, "hello", out)
}

func TestReadFileTool_RejectsPathEscape(t *testing.T) {
	ctx := newTestContext(t)
	tool := NewReadFileTool(ctx)
	out := tool.Execute(`{"path":"../../etc/passwd"}`)
	require.Contains(t, out, "ERROR")
}

func TestListDirTool_MarksDirsAndFiles(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, os.Mkdir(filepath.Join(ctx.SourceRoot, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ctx.SourceRoot, "a.go"), []byte("package main"), 0o644))

	tool := NewListDirTool(ctx)
	out := tool.Execute(`{"path":"","depth":1}`)
	require.Contains(t, out, "[DIR]")
	require.Contains(t, out, "[FILE]")
}

func TestApplyEdit_CreatesMissingFileWithNoOpBackup(t *testing.T) {
	ctx := newTestContext(t)
	out := ApplyEdit(ctx, "new.txt", "hello world")
	require.Contains(t, out, "OK")

	content, err := os.ReadFile(filepath.Join(ctx.SourceRoot, "new.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))
	_, err = os.Stat(filepath.Join(ctx.SourceRoot, "new.txt"+journalSuffix))
	require.True(t, os.IsNotExist(err))
}

func TestApplyEdit_RejectsShortNonTxtContent(t *testing.T) {
	ctx := newTestContext(t)
	out := ApplyEdit(ctx, "a.go", "x")
	require.Contains(t, out, "ERROR")
}

func TestApplyEdit_CommitsAndRemovesJournal(t *testing.T) {
	ctx := newTestContext(t)
	path := filepath.Join(ctx.SourceRoot, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	out := ApplyEdit(ctx, "a.txt", "replacement content")
	require.Contains(t, out, "OK")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "replacement content", string(content))

	_, err = os.Stat(path + journalSuffix)
	require.True(t, os.IsNotExist(err), "journal removed on successful commit")
}

func TestApplyEdit_RejectsPathEscape(t *testing.T) {
	ctx := newTestContext(t)
	out := ApplyEdit(ctx, "../outside.txt", "whatever content here")
	require.Contains(t, out, "ERROR")
}

func TestWebSearchTool_MissingKeyReturnsError(t *testing.T) {
	tool := NewWebSearchTool("")
	out := tool.Execute(`{"query":"hello"}`)
	require.Contains(t, out, "ERROR")
}
