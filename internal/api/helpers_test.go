package api

import (
	"strings"
	"testing"

	"codeintel/internal/codegraph"
	"codeintel/internal/retrieval"
)

func TestSyncParams_CopiesProjectConfig(t *testing.T) {
	state := &ProjectState{
		SourceDir:  "/repo/src",
		StorageDir: "/repo/.codeintel/projects/demo",
		Config: codegraph.Config{
			AllowedExtensions: []string{".go", ".py"},
			IgnoredPaths:      []string{"vendor/**"},
			IncludedPaths:     []string{"internal/**"},
		},
	}

	params := syncParams("demo", state)

	if params.ProjectID != "demo" {
		t.Errorf("ProjectID = %q, want %q", params.ProjectID, "demo")
	}
	if params.SourceDir != state.SourceDir {
		t.Errorf("SourceDir = %q, want %q", params.SourceDir, state.SourceDir)
	}
	if len(params.AllowedExtensions) != 2 {
		t.Errorf("AllowedExtensions = %v, want 2 entries", params.AllowedExtensions)
	}
	if len(params.Ignored) != 1 || params.Ignored[0] != "vendor/**" {
		t.Errorf("Ignored = %v, want [vendor/**]", params.Ignored)
	}
}

func TestDefaultRetrievalOptions_MatchesRetrievalPackageDefault(t *testing.T) {
	got := defaultRetrievalOptions()
	want := retrieval.DefaultOptions()

	if got.MaxNodes != want.MaxNodes {
		t.Errorf("MaxNodes = %d, want %d", got.MaxNodes, want.MaxNodes)
	}
	if got.ExperimentalPPR != want.ExperimentalPPR {
		t.Errorf("ExperimentalPPR = %v, want %v", got.ExperimentalPPR, want.ExperimentalPPR)
	}
}

// buildContextBlock assembles the stress-test job's mission context with the
// same retrieval.BuildTMapContext call the HTTP stream handler and the CLI
// agent command use. It must render T-Map tiers, not the flat hierarchical
// layout used by the IDE code-suggestion endpoint.
func TestBuildContextBlock_UsesTMapTiers(t *testing.T) {
	candidates := []codegraph.RetrievalResult{
		{Node: &codegraph.CodeNode{ID: "a", Name: "Engine", FilePath: "internal/retrieval/retrieval.go", Content: "func (e *Engine) Retrieve() {}"}},
	}

	block := buildContextBlock(candidates)

	if !strings.Contains(block, string(retrieval.TierImplementation)) {
		t.Errorf("expected T-Map tier marker %q in context block, got:\n%s", retrieval.TierImplementation, block)
	}
	if strings.Contains(block, "##") && strings.Count(block, "##") != strings.Count(block, "## [") {
		t.Errorf("expected every section header to carry a T-Map tier tag, got:\n%s", block)
	}
}
