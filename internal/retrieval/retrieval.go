// Package retrieval implements the seed-search -> exponential-decay BFS
// expansion -> multi-dimensional scoring -> hierarchical context assembly
// pipeline of spec.md §4.8, grounded on the shape of the teacher's
// query.FusionRanker (seed extraction, per-signal score arrays) and
// graph.Graph's BFS traversal style, reimplementing the spec's distinct
// decay-based scoring formula rather than fusion/PPR ranking.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"codeintel/internal/codegraph"
	"codeintel/internal/graph"
	"codeintel/internal/vectorindex"
)

const (
	seedCount  = 200
	maxDepth   = 3
	decayAlpha = 0.5
)

// Options configures a retrieve call.
type Options struct {
	MaxNodes int
	UseGraph bool
	// ExperimentalPPR additionally blends the teacher's PPR ranking signal
	// into the structural weight; off by default (see DESIGN.md Open Questions).
	ExperimentalPPR bool
}

// DefaultOptions mirrors spec.md §4.8's defaults.
func DefaultOptions() Options {
	return Options{MaxNodes: 80, UseGraph: true}
}

// ScanCounter receives the number of nodes scanned during graph expansion,
// published to telemetry per the spec's "scanned-nodes counter" note.
type ScanCounter interface {
	AddGraphNodesScanned(n int64)
}

// Engine runs retrieval against a VectorIndex and GraphStore pair.
type Engine struct {
	Index *vectorindex.Index
	Store *graph.Store
	Scan  ScanCounter
}

// New builds a retrieval Engine.
func New(index *vectorindex.Index, store *graph.Store, scan ScanCounter) *Engine {
	return &Engine{Index: index, Store: store, Scan: scan}
}

type queueItem struct {
	node *codegraph.CodeNode
	dist int
	base float64
}

// Retrieve implements spec.md §4.8 steps 1-4.
func (e *Engine) Retrieve(queryEmbedding []float32, opts Options) []codegraph.RetrievalResult {
	if opts.MaxNodes == 0 {
		opts.MaxNodes = DefaultOptions().MaxNodes
	}

	hits := e.Index.Search(queryEmbedding, seedCount)
	scores := make(map[string]float64, len(hits))
	visited := make(map[string]*codegraph.RetrievalResult, len(hits)*2)

	queue := make([]queueItem, 0, len(hits))
	for _, h := range hits {
		score := float64(h.Score)
		scores[h.Node.ID] = score
		visited[h.Node.ID] = &codegraph.RetrievalResult{Node: h.Node, GraphScore: score, Distance: 0}
		queue = append(queue, queueItem{node: h.Node, dist: 0, base: score})
	}

	scanned := 0
	if opts.UseGraph {
		maxVisited := int(float64(opts.MaxNodes) * 2.5)
		for len(queue) > 0 && len(visited) < maxVisited {
			item := queue[0]
			queue = queue[1:]
			scanned++
			if item.dist >= maxDepth {
				continue
			}
			for _, dep := range item.node.Dependencies {
				target, ok := e.Store.GetByName(dep)
				if !ok {
					continue
				}
				if _, seen := visited[target.ID]; seen {
					continue
				}
				d := item.dist + 1
				score := item.base * math.Exp(-decayAlpha*float64(d))
				visited[target.ID] = &codegraph.RetrievalResult{Node: target, GraphScore: score, Distance: uint32(d)}
				queue = append(queue, queueItem{node: target, dist: d, base: score})
			}
		}
	}

	if e.Scan != nil {
		e.Scan.AddGraphNodesScanned(int64(scanned))
	}

	var pprScores map[string]float64
	if opts.ExperimentalPPR {
		pprScores = e.runPPR(hits)
	}

	results := make([]codegraph.RetrievalResult, 0, len(visited))
	for _, r := range visited {
		structural := r.Node.StructuralWeight()
		if pprScores != nil {
			structural = blendPPR(structural, pprScores[r.Node.ID])
		}
		r.FinalScore = r.GraphScore * (0.8 + 0.2*structural)
		results = append(results, *r)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].FinalScore > results[j].FinalScore })
	if len(results) > opts.MaxNodes {
		results = results[:opts.MaxNodes]
	}
	return results
}

// runPPR computes Personalized PageRank over the store's PPR graph, seeded
// by the vector-search hits, and returns scores normalized to [0,1] by the
// run's top score. Returns nil when ExperimentalPPR is off, no PPR graph has
// been built yet, or none of the seeds exist in it.
func (e *Engine) runPPR(hits []vectorindex.Hit) map[string]float64 {
	g := e.Store.PPRGraph()
	if g == nil {
		return nil
	}
	seeds := make([]string, 0, len(hits))
	for _, h := range hits {
		seeds = append(seeds, h.Node.ID)
	}
	out, err := g.PPR(context.Background(), seeds, graph.DefaultPPROptions())
	if err != nil || len(out.Results) == 0 {
		return nil
	}
	var maxScore float64
	for _, r := range out.Results {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	if maxScore == 0 {
		return nil
	}
	scores := make(map[string]float64, len(out.Results))
	for _, r := range out.Results {
		scores[r.NodeID] = r.Score / maxScore
	}
	return scores
}

// blendPPR folds a normalized PPR score (0 for a node absent from the PPR
// run's results) into the structural weight as a minority signal, per
// DESIGN.md's Open Questions decision to keep PPR opt-in and secondary.
func blendPPR(structural, pprScore float64) float64 {
	return structural*0.7 + pprScore*0.3
}

// BuildHierarchicalContext implements spec.md §4.8's build_hierarchical_context:
// one block per distinct file, in score order, stopping before exceeding maxChars.
func BuildHierarchicalContext(candidates []codegraph.RetrievalResult, maxChars int) string {
	var b strings.Builder
	seenFiles := make(map[string]bool)

	for _, c := range candidates {
		if c.Node == nil || seenFiles[c.Node.FilePath] {
			continue
		}
		block := fmt.Sprintf("# FILE: %s | NODE: %s (Type: %s)\n%s\n", c.Node.FilePath, c.Node.Name, c.Node.Type, c.Node.Content)
		if b.Len()+len(block) > maxChars {
			break
		}
		b.WriteString(block)
		seenFiles[c.Node.FilePath] = true
	}
	return b.String()
}

const tmapHardStopBytes = 250_000

// TMapTier names the three layers of the hierarchical T-Map context variant.
type TMapTier string

const (
	TierImplementation TMapTier = "IMPLEMENTATION"
	TierStructure      TMapTier = "STRUCTURE"
	TierTopology       TMapTier = "TOPOLOGY"
)

// BuildTMapContext layers candidates by rank: top 3 get full bodies, the
// next 12 get a signature+summary extraction, the remainder get a one-line
// topology entry. Hard-stops at 250,000 accumulated bytes.
func BuildTMapContext(candidates []codegraph.RetrievalResult) string {
	var b strings.Builder
	for i, c := range candidates {
		if c.Node == nil {
			continue
		}
		var block string
		switch {
		case i < 3:
			block = fmt.Sprintf("## [%s] %s (%s)\n%s\n", TierImplementation, c.Node.Name, c.Node.FilePath, c.Node.Content)
		case i < 15:
			block = fmt.Sprintf("## [%s] %s (%s)\n  AI_SUMMARY: %s\n  SIGNATURES:\n%s\n",
				TierStructure, c.Node.Name, c.Node.FilePath, c.Node.AISummary, extractSignatures(c.Node.Content))
		default:
			block = fmt.Sprintf("## [%s] %s — %s (Ref: %d deps)\n", TierTopology, c.Node.Name, c.Node.FilePath, len(c.Node.Dependencies))
		}
		if b.Len()+len(block) > tmapHardStopBytes {
			break
		}
		b.WriteString(block)
	}
	return b.String()
}

// sigLinePattern matches a declaration header across the languages the
// indexer covers: def/class/async def (Python), export/function (JS/TS),
// void/int/auto (C/C++ return types), struct/interface (Go/Rust/TS/C++).
var sigLinePattern = regexp.MustCompile(`^\s*(def|class|async def|export|function|void|int|auto|struct|interface|func|type|impl)\s+([a-zA-Z0-9_]+)`)

// extractSignatures pulls every declaration-header line out of code,
// dropping bodies and comments, for the STRUCTURE tier's signatures-only
// view of a node.
func extractSignatures(code string) string {
	var b strings.Builder
	for _, line := range strings.Split(code, "\n") {
		if sigLinePattern.MatchString(line) {
			b.WriteString("    ")
			b.WriteString(strings.TrimRight(line, " \t\r"))
			b.WriteString(" ...\n")
		}
	}
	if b.Len() == 0 {
		return "    (Utility/Script Logic)"
	}
	return b.String()
}
