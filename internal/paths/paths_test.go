package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizePath_MakesRelativeWithForwardSlashes(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "codeintel-paths-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	sub := filepath.Join(tempDir, "internal", "retrieval")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("failed to create subdirs: %v", err)
	}
	filePath := filepath.Join(sub, "retrieval.go")
	if err := os.WriteFile(filePath, []byte("package retrieval\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	canonical, err := CanonicalizePath(filePath, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if canonical != "internal/retrieval/retrieval.go" {
		t.Errorf("expected internal/retrieval/retrieval.go, got %q", canonical)
	}
}

func TestCanonicalizePath_NonexistentFileUsesPathAsIs(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "codeintel-paths-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	missing := filepath.Join(tempDir, "internal", "sync", "missing.go")
	canonical, err := CanonicalizePath(missing, tempDir)
	if err != nil {
		t.Fatalf("expected no error for a not-yet-created file, got %v", err)
	}
	if canonical != "internal/sync/missing.go" {
		t.Errorf("expected internal/sync/missing.go, got %q", canonical)
	}
}

func TestCanonicalizePath_ResolvesSymlinks(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "codeintel-paths-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	realDir := filepath.Join(tempDir, "real")
	if err := os.MkdirAll(realDir, 0755); err != nil {
		t.Fatalf("failed to create real dir: %v", err)
	}
	realFile := filepath.Join(realDir, "node.go")
	if err := os.WriteFile(realFile, []byte("package real\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	linkPath := filepath.Join(tempDir, "link.go")
	if err := os.Symlink(realFile, linkPath); err != nil {
		t.Skipf("symlinks unsupported on this platform: %v", err)
	}

	canonical, err := CanonicalizePath(linkPath, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if canonical != "real/node.go" {
		t.Errorf("expected symlink resolved to real/node.go, got %q", canonical)
	}
}

func TestIsWithinRepo(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "codeintel-paths-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	inside := filepath.Join(tempDir, "internal", "agent", "loop.go")
	if !IsWithinRepo(inside, tempDir) {
		t.Error("expected a path under the repo root to be within the repo")
	}

	outside := filepath.Join(filepath.Dir(tempDir), "other-repo", "main.go")
	if IsWithinRepo(outside, tempDir) {
		t.Error("expected a path outside the repo root to not be within the repo")
	}
}

func TestNormalizePath_ConvertsBackslashes(t *testing.T) {
	got := NormalizePath(`internal\api\routes.go`)
	if got != "internal/api/routes.go" {
		t.Errorf("expected forward slashes, got %q", got)
	}

	got = NormalizePath("internal/api/routes.go")
	if got != "internal/api/routes.go" {
		t.Errorf("expected unchanged forward-slash path, got %q", got)
	}
}

func TestJoinRepoPath(t *testing.T) {
	repoRoot := string(filepath.Separator) + filepath.Join("srv", "projects", "codeintel")
	joined := JoinRepoPath(repoRoot, "internal/vectorindex/index.go")
	expected := filepath.Join(repoRoot, "internal", "vectorindex", "index.go")
	if joined != expected {
		t.Errorf("expected %q, got %q", expected, joined)
	}

	// Backslash-separated canonical paths normalize the same way.
	joined = JoinRepoPath(repoRoot, `internal\vectorindex\index.go`)
	if joined != expected {
		t.Errorf("expected %q for backslash input, got %q", expected, joined)
	}
}

func TestCanonicalizePath_RoundTripsThroughJoinRepoPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "codeintel-paths-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	sub := filepath.Join(tempDir, "internal", "jobs")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("failed to create subdirs: %v", err)
	}
	filePath := filepath.Join(sub, "runner.go")
	if err := os.WriteFile(filePath, []byte("package jobs\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	canonical, err := CanonicalizePath(filePath, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}

	rejoined := JoinRepoPath(tempDir, canonical)
	resolvedOriginal, err := filepath.EvalSymlinks(filePath)
	if err != nil {
		t.Fatalf("failed to resolve original path: %v", err)
	}
	if rejoined != resolvedOriginal {
		t.Errorf("expected rejoining the canonical path to recover the original, got %q want %q", rejoined, resolvedOriginal)
	}
}
