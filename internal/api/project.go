package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"codeintel/internal/codegraph"
	"codeintel/internal/graph"
	"codeintel/internal/pathfilter"
	"codeintel/internal/retrieval"
	"codeintel/internal/tools"
	"codeintel/internal/vectorindex"
)

const vecStoreFileName = "vectors.db"

const defaultStorageRoot = "data"

// ProjectState owns one registered project's in-memory indexes: the
// VectorIndex and GraphStore pair that retrieval.Engine reads, the Config
// governing sync, and the ProjectContext the agent's built-in tools resolve
// paths against.
type ProjectState struct {
	ID         string
	Config     codegraph.Config
	Index      *vectorindex.Index
	Store      *graph.Store
	Retrieval  *retrieval.Engine
	ToolCtx    *tools.ProjectContext
	Tools      *tools.Registry
	StorageDir string
	SourceDir  string

	// VecStore mirrors every embedded node into an on-disk vec0 table when
	// built with cgo, so the ANN path stays crash-consistent even though
	// Retrieve still scores against the in-memory Index. Nil on a non-cgo
	// build or if opening the store failed; callers must nil-check.
	VecStore *vectorindex.SqliteVecStore
}

// Registry guards the per-project store map (spec.md §5), so concurrent
// sync/retrieve/agent requests against different projects never contend,
// while requests against the same project serialize through the one
// VectorIndex/GraphStore pair they share.
type Registry struct {
	mu        sync.RWMutex
	projects  map[string]*ProjectState
	dataRoot  string
	scan      retrieval.ScanCounter
	serperKey string
}

// NewRegistry creates an empty project Registry rooted at dataRoot (default
// "data/<project_id>" per project, overridable via the StoragePath of the
// config passed to Register).
// serperKey is threaded into each project's web_search tool.
func NewRegistry(dataRoot string, scan retrieval.ScanCounter, serperKey string) *Registry {
	if dataRoot == "" {
		dataRoot = defaultStorageRoot
	}
	return &Registry{projects: make(map[string]*ProjectState), dataRoot: dataRoot, scan: scan, serperKey: serperKey}
}

// Get returns the project state for id, or (nil, false) if unregistered.
func (r *Registry) Get(id string) (*ProjectState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	return p, ok
}

// List returns every registered project ID.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.projects))
	for id := range r.projects {
		out = append(out, id)
	}
	return out
}

// Register creates (or reopens) a project's on-disk storage directory,
// loading a previously persisted vector index if one exists, and installs
// it in the registry. sourceDir is the repository this project indexes.
func (r *Registry) Register(id, sourceDir string, cfg codegraph.Config) (*ProjectState, error) {
	storageDir := cfg.StoragePath
	if storageDir == "" {
		storageDir = filepath.Join(r.dataRoot, id)
	}
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create project storage dir: %w", err)
	}

	idx, err := vectorindex.Load(storageDir, vectorindex.DefaultParams())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
		idx = vectorindex.New(vectorindex.DefaultParams())
	}

	store := graph.NewStore()
	for _, n := range idx.All() {
		store.Upsert(n)
	}
	store.CalculateStaticWeights()

	filter := pathfilter.New(cfg.IgnoredPaths, cfg.IncludedPaths, cfg.AllowedExtensions)
	toolCtx := &tools.ProjectContext{SourceRoot: sourceDir, Filter: filter}

	registry := tools.NewRegistry()
	registry.Register(tools.NewListDirTool(toolCtx))
	registry.Register(tools.NewReadFileTool(toolCtx))
	registry.Register(tools.NewApplyEditTool(toolCtx))
	registry.Register(tools.NewWebSearchTool(r.serperKey))

	// The vec0 mirror is best-effort: absent on a non-cgo build, and a
	// failure to open it (e.g. a corrupt file) never blocks bring-up since
	// the in-memory Index remains the source of truth for Retrieve.
	vecStore, vecErr := vectorindex.OpenSqliteVecStore(filepath.Join(storageDir, vecStoreFileName), codegraph.EmbeddingDimension)
	if vecErr != nil {
		vecStore = nil
	} else {
		for _, n := range idx.All() {
			_ = vecStore.Upsert(n.ID, n.Embedding)
		}
	}

	state := &ProjectState{
		ID:         id,
		Config:     cfg,
		Index:      idx,
		Store:      store,
		Retrieval:  retrieval.New(idx, store, r.scan),
		ToolCtx:    toolCtx,
		Tools:      registry,
		StorageDir: storageDir,
		SourceDir:  sourceDir,
		VecStore:   vecStore,
	}

	r.mu.Lock()
	r.projects[id] = state
	r.mu.Unlock()

	return state, nil
}

// RebuildIndex repopulates the VectorIndex and GraphStore from the graph
// store's current node set, called after a sync pass embeds new nodes.
func (p *ProjectState) RebuildIndex() {
	p.Index = vectorindex.New(vectorindex.DefaultParams())
	p.Index.AddNodes(p.Store.All())
	p.Store.CalculateStaticWeights()
	p.Retrieval.Index = p.Index

	if p.VecStore != nil {
		for _, n := range p.Index.All() {
			_ = p.VecStore.Upsert(n.ID, n.Embedding)
		}
	}
}

// Persist saves the project's vector index to its storage directory and
// its config.json, the canonical JSON interchange artifacts of spec.md §4.7.
func (p *ProjectState) Persist() error {
	if err := p.Index.Save(p.StorageDir); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	data, err := json.MarshalIndent(p.Config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(p.StorageDir, "config.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write project config: %w", err)
	}
	return nil
}
