package graph

import "codeintel/internal/codegraph"

// Store holds all CodeNodes for a project plus a name->node map, per
// spec.md §4.6. The underlying Graph (adapted from the teacher's PPR
// adjacency-list engine, see ppr.go) is kept as an opt-in secondary ranking
// signal; decay-BFS expansion itself lives in internal/retrieval.
type Store struct {
	nodes   map[string]*codegraph.CodeNode
	byName  map[string]*codegraph.CodeNode
	ppr     *Graph
}

// NewStore creates an empty GraphStore.
func NewStore() *Store {
	return &Store{
		nodes:  make(map[string]*codegraph.CodeNode),
		byName: make(map[string]*codegraph.CodeNode),
	}
}

// Upsert adds or replaces a node, keyed by its stable ID, and indexes it by
// name for fuzzy dependency resolution.
func (s *Store) Upsert(n *codegraph.CodeNode) {
	s.nodes[n.ID] = n
	s.byName[n.Name] = n
}

// Delete removes a node by ID.
func (s *Store) Delete(id string) {
	n, ok := s.nodes[id]
	if !ok {
		return
	}
	delete(s.nodes, id)
	if s.byName[n.Name] == n {
		delete(s.byName, n.Name)
	}
}

// DeleteFile removes every node whose FilePath equals path.
func (s *Store) DeleteFile(path string) {
	for id, n := range s.nodes {
		if n.FilePath == path {
			s.Delete(id)
			_ = id
		}
	}
}

// Get returns the node with the given stable ID.
func (s *Store) Get(id string) (*codegraph.CodeNode, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// GetByName resolves a dependency string to a node: first by exact ID
// match, then by exact name match, then — as a fallback fuzzy match — by
// the file's path stem without extension, as spec.md §4.8 step 2 requires.
func (s *Store) GetByName(dep string) (*codegraph.CodeNode, bool) {
	if n, ok := s.nodes[dep]; ok {
		return n, true
	}
	if n, ok := s.byName[dep]; ok {
		return n, true
	}
	for _, n := range s.nodes {
		if pathStem(n.FilePath) == dep {
			return n, true
		}
	}
	return nil, false
}

func pathStem(p string) string {
	// last path segment without extension
	start := 0
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			start = i + 1
			break
		}
	}
	name := p[start:]
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

// All returns every node in the store.
func (s *Store) All() []*codegraph.CodeNode {
	out := make([]*codegraph.CodeNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int {
	return len(s.nodes)
}

// CalculateStaticWeights counts incoming references from every node's
// Dependencies list and sets each node's structural weight to
// 0.3 + 0.7 * (incoming / max_incoming), clamped to [0.3, 1.0]. It also
// rebuilds the PPR graph from the same dependency edges, so
// RetrievalEngine.Options.ExperimentalPPR always sees a graph current with
// the node set it's scoring against.
func (s *Store) CalculateStaticWeights() {
	s.BuildPPRGraph()

	incoming := make(map[string]int, len(s.nodes))
	for _, n := range s.nodes {
		for _, dep := range n.Dependencies {
			target, ok := s.GetByName(dep)
			if !ok || target.ID == n.ID {
				continue
			}
			incoming[target.ID]++
		}
	}

	maxIncoming := 0
	for _, c := range incoming {
		if c > maxIncoming {
			maxIncoming = c
		}
	}

	for _, n := range s.nodes {
		if n.Weights == nil {
			n.Weights = make(map[string]float64)
		}
		if maxIncoming == 0 {
			n.Weights["structural"] = 0.3
			continue
		}
		w := 0.3 + 0.7*(float64(incoming[n.ID])/float64(maxIncoming))
		if w < 0.3 {
			w = 0.3
		}
		if w > 1.0 {
			w = 1.0
		}
		n.Weights["structural"] = w
	}
}

// BuildPPRGraph materializes the optional PPR engine from the current node
// set's dependency edges, for RetrievalEngine.Options.ExperimentalPPR.
func (s *Store) BuildPPRGraph() *Graph {
	g := NewGraph()
	for _, n := range s.nodes {
		g.AddNode(n.ID)
	}
	for _, n := range s.nodes {
		for _, dep := range n.Dependencies {
			if target, ok := s.GetByName(dep); ok {
				g.AddEdge(n.ID, target.ID, 1.0, "reference")
			}
		}
	}
	s.ppr = g
	return g
}

// PPRGraph returns the most recently built PPR graph, if any.
func (s *Store) PPRGraph() *Graph {
	return s.ppr
}
