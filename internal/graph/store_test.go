package graph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"codeintel/internal/codegraph"
)

func TestStore_GetByNameExactAndFuzzy(t *testing.T) {
	s := NewStore()
	s.Upsert(&codegraph.CodeNode{ID: "a.ts::foo", Name: "foo", FilePath: "a.ts"})
	s.Upsert(&codegraph.CodeNode{ID: "b.ts", Name: "b.ts", FilePath: "b.ts"})

	n, ok := s.GetByName("foo")
	require.True(t, ok)
	require.Equal(t, "a.ts::foo", n.ID)

	n, ok = s.GetByName("b")
	require.True(t, ok, "fuzzy match falls back to path stem without extension")
	require.Equal(t, "b.ts", n.ID)

	_, ok = s.GetByName("missing")
	require.False(t, ok)
}

func TestStore_CalculateStaticWeights(t *testing.T) {
	s := NewStore()
	s.Upsert(&codegraph.CodeNode{ID: "a", Name: "a", Dependencies: []string{"b"}})
	s.Upsert(&codegraph.CodeNode{ID: "b", Name: "b", Dependencies: []string{"c"}})
	s.Upsert(&codegraph.CodeNode{ID: "c", Name: "c", Dependencies: []string{"b"}})

	s.CalculateStaticWeights()

	b, _ := s.Get("b")
	require.InDelta(t, 1.0, b.Weights["structural"], 1e-9, "b has the most incoming refs -> max weight")

	a, _ := s.Get("a")
	require.InDelta(t, 0.3, a.Weights["structural"], 1e-9, "a has zero incoming refs -> floor weight")

	for _, id := range []string{"a", "b", "c"} {
		n, _ := s.Get(id)
		require.GreaterOrEqual(t, n.Weights["structural"], 0.3)
		require.LessOrEqual(t, n.Weights["structural"], 1.0)
	}
}

func TestStore_DeleteAndDeleteFile(t *testing.T) {
	s := NewStore()
	s.Upsert(&codegraph.CodeNode{ID: "a.ts::foo", Name: "foo", FilePath: "a.ts"})
	s.Upsert(&codegraph.CodeNode{ID: "a.ts", Name: "a.ts", FilePath: "a.ts"})
	s.Upsert(&codegraph.CodeNode{ID: "b.ts", Name: "b.ts", FilePath: "b.ts"})

	s.DeleteFile("a.ts")
	require.Equal(t, 1, s.Len())
	_, ok := s.Get("b.ts")
	require.True(t, ok)
}

func TestStore_NoIncomingRefsAllFloor(t *testing.T) {
	s := NewStore()
	s.Upsert(&codegraph.CodeNode{ID: "a", Name: "a"})
	s.Upsert(&codegraph.CodeNode{ID: "b", Name: "b"})
	s.CalculateStaticWeights()

	a, _ := s.Get("a")
	require.Equal(t, 0.3, a.Weights["structural"])
}
