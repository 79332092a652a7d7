package vectorindex

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"codeintel/internal/codegraph"
)

func unitVec(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1.0
	return v
}

func makeNode(id, name string, dim, hot int) *codegraph.CodeNode {
	return &codegraph.CodeNode{
		ID:        id,
		Name:      name,
		FilePath:  name + ".go",
		Embedding: unitVec(dim, hot),
	}
}

func TestAddNodes_SkipsEmptyAndWrongDim(t *testing.T) {
	idx := New(DefaultParams())
	good := makeNode("a", "a", codegraph.EmbeddingDimension, 0)
	empty := &codegraph.CodeNode{ID: "b", Name: "b"}
	wrongDim := &codegraph.CodeNode{ID: "c", Name: "c", Embedding: []float32{1, 2, 3}}

	added := idx.AddNodes([]*codegraph.CodeNode{good, empty, wrongDim})
	require.Equal(t, 1, added)
	require.Equal(t, 1, idx.NTotal())
}

func TestAddNodes_NormalizesInPlace(t *testing.T) {
	idx := New(DefaultParams())
	n := &codegraph.CodeNode{ID: "a", Name: "a", Embedding: make([]float32, codegraph.EmbeddingDimension)}
	n.Embedding[0] = 3
	n.Embedding[1] = 4
	idx.AddNodes([]*codegraph.CodeNode{n})

	var sumSq float64
	for _, x := range n.Embedding {
		sumSq += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
}

func TestSearch_ExactMatchRanksFirst(t *testing.T) {
	idx := New(DefaultParams())
	dim := codegraph.EmbeddingDimension
	idx.AddNodes([]*codegraph.CodeNode{
		makeNode("a", "a", dim, 0),
		makeNode("b", "b", dim, 1),
		makeNode("c", "c", dim, 2),
	})

	hits := idx.Search(unitVec(dim, 1), 2)
	require.Len(t, hits, 2)
	require.Equal(t, "b", hits[0].Node.ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestGetByName_LooksUpByID(t *testing.T) {
	idx := New(DefaultParams())
	dim := codegraph.EmbeddingDimension
	idx.AddNodes([]*codegraph.CodeNode{makeNode("a", "a", dim, 0)})

	n, ok := idx.GetByName("a")
	require.True(t, ok)
	require.Equal(t, "a", n.ID)

	_, ok = idx.GetByName("missing")
	require.False(t, ok)
}

func TestRemoveFile_DropsOnlyMatchingNodes(t *testing.T) {
	idx := New(DefaultParams())
	dim := codegraph.EmbeddingDimension
	idx.AddNodes([]*codegraph.CodeNode{
		makeNode("a", "a", dim, 0),
		makeNode("b", "b", dim, 1),
	})

	idx.RemoveFile("a.go")
	require.Equal(t, 1, idx.NTotal())
	_, ok := idx.GetByName("a")
	require.False(t, ok)
	_, ok = idx.GetByName("b")
	require.True(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dim := codegraph.EmbeddingDimension
	idx := New(DefaultParams())
	idx.AddNodes([]*codegraph.CodeNode{
		makeNode("a", "a", dim, 0),
		makeNode("b", "b", dim, 1),
	})

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	loaded, err := Load(dir, DefaultParams())
	require.NoError(t, err)
	require.Equal(t, idx.NTotal(), loaded.NTotal())

	n, ok := loaded.GetByName("a")
	require.True(t, ok)
	require.Equal(t, "a", n.Name)
	require.Len(t, n.Embedding, dim)

	_, err = os.Stat(dir)
	require.NoError(t, err)
}

func TestSearch_EmptyIndexReturnsNil(t *testing.T) {
	idx := New(DefaultParams())
	hits := idx.Search(unitVec(codegraph.EmbeddingDimension, 0), 5)
	require.Nil(t, hits)
}
