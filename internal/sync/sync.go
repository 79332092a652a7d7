// Package sync implements the incremental scan -> parse -> embed -> index
// pipeline of spec.md §4.7, modeled on the teacher's
// internal/incremental (IncrementalIndexer/ChangeDetector/Store) trio:
// manifest-diffing, batched embedding, and ASCII tree rendering.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"codeintel/internal/codegraph"
	"codeintel/internal/graph"
	"codeintel/internal/logging"
	"codeintel/internal/parser"
	"codeintel/internal/pathfilter"
	"codeintel/internal/symbols"
)

const (
	embedBatchSize  = 50
	embedTruncateAt = 800
	manifestFile    = "manifest.json"
	fullContextFile = "_full_context.txt"
	treeFile        = "tree.txt"
)

// Embedder generates embedding vectors for a batch of texts. internal/llm's
// Client satisfies this; tests use a fake.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Params configures one perform_sync invocation.
type Params struct {
	ProjectID         string
	SourceDir         string
	StorageDir        string
	AllowedExtensions []string
	Ignored           []string
	Included          []string
}

// Result summarizes one sync pass.
type Result struct {
	ProjectID     string
	FilesScanned  int
	FilesIndexed  int
	FilesDeleted  int
	NodesEmbedded int
	Manifest      codegraph.Manifest
}

// Service runs sync pipelines against a shared GraphStore.
type Service struct {
	embedder Embedder
	logger   *logging.Logger
}

// NewService builds a Service backed by embedder for §4.7 step 8.
func NewService(embedder Embedder, logger *logging.Logger) *Service {
	return &Service{embedder: embedder, logger: logger}
}

type pendingEmbed struct {
	node *codegraph.CodeNode
}

// PerformSync runs the full scan->parse->embed->index pipeline described in
// spec.md §4.7 steps 1-10, mutating store in place.
func (s *Service) PerformSync(ctx context.Context, p Params, store *graph.Store) (*Result, error) {
	prevManifest, err := readManifest(filepath.Join(p.StorageDir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("sync: read manifest: %w", err)
	}

	allowedExt := normalizeExtensions(p.AllowedExtensions)
	filter := pathfilter.New(p.Ignored, p.Included, allowedExt)

	absStorage, err := filepath.Abs(p.StorageDir)
	if err != nil {
		return nil, err
	}

	newManifest := codegraph.Manifest{}
	seenFiles := make(map[string]bool)
	var pending []pendingEmbed
	var contextBuf bytes.Buffer
	filesScanned, filesIndexed := 0, 0

	walkErr := filepath.WalkDir(p.SourceDir, func(absPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("sync: walk error", map[string]interface{}{"path": absPath, "error": err.Error()})
			}
			return nil
		}
		rel, relErr := filepath.Rel(p.SourceDir, absPath)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			abs, _ := filepath.Abs(absPath)
			if abs == absStorage {
				return filepath.SkipDir
			}
			if !filter.ShouldDescendDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(rel)), ".")
		if !filter.ShouldIndexFile(rel, ext) {
			return nil
		}

		filesScanned++
		info, err := d.Info()
		if err != nil {
			return nil
		}
		hash := fmt.Sprintf("%d-%d", info.Size(), info.ModTime().Unix())
		newManifest[rel] = hash
		seenFiles[rel] = true

		content, err := os.ReadFile(absPath)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("sync: read failed", map[string]interface{}{"path": rel, "error": err.Error()})
			}
			return nil
		}
		text := codegraph.SanitizeUTF8(string(content))

		if err := writeConvertedMirror(p.StorageDir, rel, text); err != nil {
			if s.logger != nil {
				s.logger.Warn("sync: mirror write failed", map[string]interface{}{"path": rel, "error": err.Error()})
			}
		}
		contextBuf.WriteString(fmt.Sprintf("--- FILE: %s ---\n", rel))
		contextBuf.WriteString(text)
		contextBuf.WriteString("\n")

		filesIndexed++
		changed := prevManifest[rel] != hash
		nodes := s.reuseOrReparse(store, rel, text, changed)
		for _, n := range nodes {
			if !n.HasEmbedding() {
				pending = append(pending, pendingEmbed{node: n})
			}
			store.Upsert(n)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("sync: walk %s: %w", p.SourceDir, walkErr)
	}

	for relPath := range prevManifest {
		if !seenFiles[relPath] {
			if s.logger != nil {
				s.logger.Info("sync: file deleted", map[string]interface{}{"path": relPath})
			}
			store.DeleteFile(relPath)
		}
	}
	filesDeleted := len(prevManifest) - len(seenFiles)
	if filesDeleted < 0 {
		filesDeleted = 0
	}

	embedded, err := s.embedPending(ctx, pending)
	if err != nil && s.logger != nil {
		s.logger.Warn("sync: embedding pass had failures", map[string]interface{}{"error": err.Error()})
	}

	store.CalculateStaticWeights()

	if err := writeManifest(filepath.Join(p.StorageDir, manifestFile), newManifest); err != nil {
		return nil, fmt.Errorf("sync: write manifest: %w", err)
	}
	if err := writeFullContext(p.StorageDir, contextBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("sync: write full context: %w", err)
	}
	if err := writeTree(filepath.Join(p.StorageDir, treeFile), sortedKeys(newManifest)); err != nil {
		return nil, fmt.Errorf("sync: write tree: %w", err)
	}

	return &Result{
		ProjectID:     p.ProjectID,
		FilesScanned:  filesScanned,
		FilesIndexed:  filesIndexed,
		FilesDeleted:  filesDeleted,
		NodesEmbedded: embedded,
		Manifest:      newManifest,
	}, nil
}

// SyncSingleFile runs the same pipeline scoped to a single file (spec.md
// §4.7's sync_single_file) and returns the resulting nodes for hot-add into
// the in-memory VectorIndex.
func (s *Service) SyncSingleFile(ctx context.Context, p Params, store *graph.Store, relPath string) ([]*codegraph.CodeNode, error) {
	absPath := filepath.Join(p.SourceDir, relPath)
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("sync: read %s: %w", relPath, err)
	}
	text := codegraph.SanitizeUTF8(string(content))

	if err := writeConvertedMirror(p.StorageDir, relPath, text); err != nil {
		return nil, err
	}

	store.DeleteFile(relPath)
	nodes := s.reuseOrReparse(store, relPath, text, true)

	var pending []pendingEmbed
	for _, n := range nodes {
		if !n.HasEmbedding() {
			pending = append(pending, pendingEmbed{node: n})
		}
		store.Upsert(n)
	}
	if _, err := s.embedPending(ctx, pending); err != nil && s.logger != nil {
		s.logger.Warn("sync: single-file embedding failed", map[string]interface{}{"path": relPath, "error": err.Error()})
	}
	store.CalculateStaticWeights()
	return nodes, nil
}

func (s *Service) reuseOrReparse(store *graph.Store, relPath, text string, changed bool) []*codegraph.CodeNode {
	if !changed {
		var existing []*codegraph.CodeNode
		for _, n := range store.All() {
			if n.FilePath == relPath {
				existing = append(existing, n)
			}
		}
		if len(existing) > 0 {
			return existing
		}
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(relPath)), ".")
	if symbols.SupportedExtension(ext) {
		if nodes := symbols.ExtractSymbols(relPath, text); nodes != nil {
			return nodes
		}
	}
	return parser.ParseFile(relPath, text)
}

func (s *Service) embedPending(ctx context.Context, pending []pendingEmbed) (int, error) {
	embedded := 0
	var firstErr error
	for start := 0; start < len(pending); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, pe := range batch {
			truncated := codegraph.UTF8SafeSubstr(pe.node.Content, embedTruncateAt)
			texts[i] = fmt.Sprintf("Name: %s Code: %s", pe.node.Name, truncated)
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for i, pe := range batch {
			if i < len(vectors) {
				pe.node.Embedding = vectors[i]
				embedded++
			}
		}
	}
	return embedded, firstErr
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, len(exts))
	for i, e := range exts {
		out[i] = strings.TrimPrefix(strings.ToLower(e), ".")
	}
	return out
}

func writeConvertedMirror(storageDir, relPath, content string) error {
	dest := filepath.Join(storageDir, "converted_files", relPath+".txt")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(content), 0o644)
}

func writeFullContext(storageDir string, data []byte) error {
	if err := os.WriteFile(filepath.Join(storageDir, fullContextFile), data, 0o644); err != nil {
		return err
	}
	return writeZstdSnapshot(filepath.Join(storageDir, fullContextFile+".zst"), data)
}

// writeZstdSnapshot persists a compressed copy of the full-context
// snapshot, written alongside the plain _full_context.txt on every sync;
// the plain file remains the canonical artifact.
func writeZstdSnapshot(path string, data []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer enc.Close()
	return os.WriteFile(path, enc.EncodeAll(data, nil), 0o644)
}

func readManifest(path string) (codegraph.Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return codegraph.Manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m codegraph.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func writeManifest(path string, m codegraph.Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func sortedKeys(m codegraph.Manifest) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// writeTree renders an ASCII tree of paths using the familiar
// "├── / └── / │  " connectors (spec.md §6's tree.txt artifact).
func writeTree(path string, relPaths []string) error {
	root := newTreeNode("")
	for _, p := range relPaths {
		root.insert(strings.Split(p, "/"))
	}
	var b strings.Builder
	root.render(&b, "")
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

type treeNode struct {
	name     string
	children map[string]*treeNode
	order    []string
}

func newTreeNode(name string) *treeNode {
	return &treeNode{name: name, children: make(map[string]*treeNode)}
}

func (n *treeNode) insert(segments []string) {
	if len(segments) == 0 {
		return
	}
	head := segments[0]
	child, ok := n.children[head]
	if !ok {
		child = newTreeNode(head)
		n.children[head] = child
		n.order = append(n.order, head)
	}
	child.insert(segments[1:])
}

func (n *treeNode) render(b *strings.Builder, prefix string) {
	for i, name := range n.order {
		child := n.children[name]
		last := i == len(n.order)-1
		connector := "├── "
		nextPrefix := prefix + "│  "
		if last {
			connector = "└── "
			nextPrefix = prefix + "   "
		}
		b.WriteString(prefix)
		b.WriteString(connector)
		b.WriteString(name)
		b.WriteString("\n")
		child.render(b, nextPrefix)
	}
}
