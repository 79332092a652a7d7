package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Edge is a directed, weighted reference between two CodeNode IDs, the unit
// Store.BuildPPRGraph extracts from each node's Dependencies list.
type Edge struct {
	From   string
	To     string
	Weight float64
	Kind   string
}

// PPROptions configures one Personalized PageRank run.
type PPROptions struct {
	// Damping is the probability of following an edge rather than
	// teleporting back to a seed node on each step.
	Damping float64
	// MaxIterations bounds the power-iteration loop.
	MaxIterations int
	// Tolerance is the max per-node score delta that counts as converged.
	Tolerance float64
	// TopK caps how many ranked nodes PPR returns.
	TopK int
	// IncludePaths asks PPR to backtrack a seed->node path for each result.
	IncludePaths bool
}

// DefaultPPROptions mirrors the blendPPR call site's expectations: a run
// small enough to finish within one retrieval request.
func DefaultPPROptions() PPROptions {
	return PPROptions{
		Damping:       0.85,
		MaxIterations: 20,
		Tolerance:     1e-6,
		TopK:          20,
		IncludePaths:  true,
	}
}

// PPRResult is one ranked node from a PPR run.
type PPRResult struct {
	NodeID string   `json:"nodeId"`
	Score  float64  `json:"score"`
	Path   []string `json:"path,omitempty"`
}

// PPROutput is the full result of one PPR run against a Graph.
type PPROutput struct {
	Results       []PPRResult `json:"results"`
	Iterations    int         `json:"iterations"`
	Converged     bool        `json:"converged"`
	SeedNodes     []string    `json:"seedNodes"`
	TotalNodes    int         `json:"totalNodes"`
	TotalEdges    int         `json:"totalEdges"`
	ComputationMs int64       `json:"computationMs"`
}

// Graph is the sparse directed reference graph Store.BuildPPRGraph
// materializes from a project's current node set, scoped to one PPR run at
// a time (retrieval.Engine.runPPR rebuilds scores per call, never mutates
// the graph itself).
type Graph struct {
	nodes    []string
	nodeIdx  map[string]int
	numNodes int

	outEdges [][]edgeEntry
	inEdges  [][]edgeEntry

	edgeKinds map[string]map[string]string
}

type edgeEntry struct {
	target int
	weight float64
}

// NewGraph returns an empty Graph ready for AddNode/AddEdge calls.
func NewGraph() *Graph {
	return &Graph{
		nodes:     make([]string, 0),
		nodeIdx:   make(map[string]int),
		outEdges:  make([][]edgeEntry, 0),
		inEdges:   make([][]edgeEntry, 0),
		edgeKinds: make(map[string]map[string]string),
	}
}

// AddNode registers id if it isn't already present and returns its index.
func (g *Graph) AddNode(id string) int {
	if idx, ok := g.nodeIdx[id]; ok {
		return idx
	}
	idx := len(g.nodes)
	g.nodes = append(g.nodes, id)
	g.nodeIdx[id] = idx
	g.outEdges = append(g.outEdges, nil)
	g.inEdges = append(g.inEdges, nil)
	g.numNodes++
	return idx
}

// AddEdge records a directed reference from src to dst, adding both
// endpoints if needed and indexing the reverse direction for backtracking.
func (g *Graph) AddEdge(src, dst string, weight float64, kind string) {
	srcIdx := g.AddNode(src)
	dstIdx := g.AddNode(dst)

	g.outEdges[srcIdx] = append(g.outEdges[srcIdx], edgeEntry{target: dstIdx, weight: weight})
	g.inEdges[dstIdx] = append(g.inEdges[dstIdx], edgeEntry{target: srcIdx, weight: weight})

	if g.edgeKinds[src] == nil {
		g.edgeKinds[src] = make(map[string]string)
	}
	g.edgeKinds[src][dst] = kind
}

// AddEdges is a batch form of AddEdge.
func (g *Graph) AddEdges(edges []Edge) {
	for _, e := range edges {
		g.AddEdge(e.From, e.To, e.Weight, e.Kind)
	}
}

// NumNodes returns the node count.
func (g *Graph) NumNodes() int { return g.numNodes }

// NumEdges returns the total directed edge count.
func (g *Graph) NumEdges() int {
	total := 0
	for _, edges := range g.outEdges {
		total += len(edges)
	}
	return total
}

// AllNodes returns every node ID currently in the graph.
func (g *Graph) AllNodes() []string { return g.nodes }

// PPR runs Personalized PageRank seeded at seeds (node IDs that must already
// exist in g) and returns the top opts.TopK nodes by converged score.
//
// The algorithm is the standard teleporting power iteration: score mass
// flows along outgoing edges weighted by their Weight, a (1-Damping)
// fraction of every node's score is redistributed back onto the seed set
// each step, and the loop stops at opts.MaxIterations or once the largest
// per-node delta drops below opts.Tolerance.
func (g *Graph) PPR(_ context.Context, seeds []string, opts PPROptions) (*PPROutput, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("ppr: no seed nodes provided")
	}
	if g.numNodes == 0 {
		return &PPROutput{Results: []PPRResult{}, SeedNodes: seeds}, nil
	}

	if opts.Damping <= 0 || opts.Damping >= 1 {
		opts.Damping = 0.85
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 20
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-6
	}
	if opts.TopK <= 0 {
		opts.TopK = 20
	}

	seedIndices := make([]int, 0, len(seeds))
	validSeeds := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if idx, ok := g.nodeIdx[s]; ok {
			seedIndices = append(seedIndices, idx)
			validSeeds = append(validSeeds, s)
		}
	}
	if len(seedIndices) == 0 {
		return &PPROutput{
			Results:    []PPRResult{},
			SeedNodes:  seeds,
			TotalNodes: g.numNodes,
			TotalEdges: g.NumEdges(),
		}, nil
	}

	teleport := make([]float64, g.numNodes)
	teleportWeight := 1.0 / float64(len(seedIndices))
	for _, idx := range seedIndices {
		teleport[idx] = teleportWeight
	}

	scores := make([]float64, g.numNodes)
	copy(scores, teleport)

	outDegree := make([]float64, g.numNodes)
	for i, edges := range g.outEdges {
		for _, e := range edges {
			outDegree[i] += e.weight
		}
	}

	newScores := make([]float64, g.numNodes)
	var iterations int
	var converged bool

	for iter := range opts.MaxIterations {
		iterations = iter + 1

		for i := range newScores {
			newScores[i] = 0
		}

		for i, edges := range g.outEdges {
			if len(edges) == 0 || outDegree[i] == 0 {
				continue
			}
			contrib := scores[i] / outDegree[i]
			for _, e := range edges {
				newScores[e.target] += contrib * e.weight
			}
		}

		maxDiff := 0.0
		for i := range newScores {
			newScores[i] = opts.Damping*newScores[i] + (1-opts.Damping)*teleport[i]
			if diff := absFloat(newScores[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, newScores = newScores, scores

		if maxDiff < opts.Tolerance {
			converged = true
			break
		}
	}

	type scoredNode struct {
		idx   int
		score float64
	}
	ranked := make([]scoredNode, 0, g.numNodes)
	for i, s := range scores {
		if s > 0 {
			ranked = append(ranked, scoredNode{idx: i, score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > opts.TopK {
		ranked = ranked[:opts.TopK]
	}

	seedSet := make(map[int]bool, len(seedIndices))
	for _, idx := range seedIndices {
		seedSet[idx] = true
	}

	results := make([]PPRResult, len(ranked))
	for i, sn := range ranked {
		result := PPRResult{NodeID: g.nodes[sn.idx], Score: sn.score}
		if opts.IncludePaths && !seedSet[sn.idx] {
			result.Path = g.backtrackPath(sn.idx, seedSet, 5)
		}
		results[i] = result
	}

	return &PPROutput{
		Results:    results,
		Iterations: iterations,
		Converged:  converged,
		SeedNodes:  validSeeds,
		TotalNodes: g.numNodes,
		TotalEdges: g.NumEdges(),
	}, nil
}

// backtrackPath walks incoming edges from target back toward whichever seed
// it can reach fastest, greedily preferring the heaviest unvisited edge at
// each step, then reverses the walk into seed->target order.
func (g *Graph) backtrackPath(target int, seedSet map[int]bool, maxDepth int) []string {
	path := []string{g.nodes[target]}
	current := target
	visited := map[int]bool{target: true}

	for depth := 0; depth < maxDepth; depth++ {
		bestPrev := -1
		bestWeight := 0.0
		for _, e := range g.inEdges[current] {
			if !visited[e.target] && e.weight > bestWeight {
				bestWeight = e.weight
				bestPrev = e.target
			}
		}
		if bestPrev < 0 {
			break
		}

		path = append(path, g.nodes[bestPrev])
		visited[bestPrev] = true
		if seedSet[bestPrev] {
			break
		}
		current = bestPrev
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// GetEdgeKind returns the recorded kind of the from->to edge, or "" if none.
func (g *Graph) GetEdgeKind(from, to string) string {
	if m, ok := g.edgeKinds[from]; ok {
		return m[to]
	}
	return ""
}

// HasNode reports whether id has been added to the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodeIdx[id]
	return ok
}

// Neighbors returns id's outgoing neighbor node IDs.
func (g *Graph) Neighbors(id string) []string {
	idx, ok := g.nodeIdx[id]
	if !ok {
		return nil
	}
	neighbors := make([]string, len(g.outEdges[idx]))
	for i, e := range g.outEdges[idx] {
		neighbors[i] = g.nodes[e.target]
	}
	return neighbors
}

// FilterResults keeps only the PPRResult entries predicate accepts.
func FilterResults(results []PPRResult, predicate func(PPRResult) bool) []PPRResult {
	filtered := make([]PPRResult, 0, len(results))
	for _, r := range results {
		if predicate(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// FilterByPrefix keeps results whose NodeID starts with prefix.
func FilterByPrefix(results []PPRResult, prefix string) []PPRResult {
	return FilterResults(results, func(r PPRResult) bool { return strings.HasPrefix(r.NodeID, prefix) })
}

// FilterByMinScore keeps results scoring at least minScore.
func FilterByMinScore(results []PPRResult, minScore float64) []PPRResult {
	return FilterResults(results, func(r PPRResult) bool { return r.Score >= minScore })
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
