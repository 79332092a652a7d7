package api

import (
	"codeintel/internal/codegraph"
	"codeintel/internal/retrieval"
	"codeintel/internal/sync"
)

// syncParams builds a sync.Params from a project's persisted Config,
// shared by the foreground /sync/file handler and the background sync job
// handlers so the two never drift.
func syncParams(projectID string, state *ProjectState) sync.Params {
	return sync.Params{
		ProjectID:         projectID,
		SourceDir:         state.SourceDir,
		StorageDir:        state.StorageDir,
		AllowedExtensions: state.Config.AllowedExtensions,
		Ignored:           state.Config.IgnoredPaths,
		Included:          state.Config.IncludedPaths,
	}
}

func defaultRetrievalOptions() retrieval.Options {
	return retrieval.DefaultOptions()
}

// buildContextBlock renders retrieval candidates for an agent mission using
// the tiered T-Map layout (spec.md §4.8: full bodies for the focal nodes,
// signatures-only for the mid tier, bare topology for the rest). It is used
// by the stress-test job; the agent-stream handler and the CLI agent command
// call retrieval.BuildTMapContext directly, so all three see the same
// context shape.
func buildContextBlock(candidates []codegraph.RetrievalResult) string {
	return retrieval.BuildTMapContext(candidates)
}
