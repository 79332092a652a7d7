package pathfilter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_IncludeOverridesAncestorIgnore(t *testing.T) {
	trie := New([]string{"vendor"}, []string{"vendor/keep"}, nil)

	require.True(t, trie.Classify("vendor").Ignored())
	require.False(t, trie.Classify("vendor/other").Included())
	require.True(t, trie.Classify("vendor/other").Ignored())

	c := trie.Classify("vendor/keep")
	require.True(t, c.Included())

	c = trie.Classify("vendor/keep/sub/file.go")
	require.True(t, c.Included(), "deepest matching ancestor flags carry forward")
}

func TestShouldDescendDir_Bridge(t *testing.T) {
	trie := New([]string{"vendor"}, []string{"vendor/keep/deep"}, nil)

	require.True(t, trie.ShouldDescendDir("vendor"), "ancestor of an include rule is a bridge")
	require.True(t, trie.ShouldDescendDir("vendor/keep"))
	require.True(t, trie.ShouldDescendDir("vendor/keep/deep"))
	require.False(t, trie.ShouldDescendDir("vendor/other"))
}

func TestShouldIndexFile_ExtensionGate(t *testing.T) {
	trie := New(nil, nil, []string{".go", "TS"})

	require.True(t, trie.ShouldIndexFile("main.go", "go"))
	require.True(t, trie.ShouldIndexFile("main.ts", "ts"))
	require.False(t, trie.ShouldIndexFile("main.py", "py"))
}

func TestInsertIdempotent(t *testing.T) {
	a := New([]string{"node_modules"}, nil, nil)
	b := New([]string{"node_modules", "node_modules"}, nil, nil)

	require.Equal(t, a.Classify("node_modules/pkg").Flags, b.Classify("node_modules/pkg").Flags)
}

func TestClassify_MatchesLinearScan(t *testing.T) {
	ignored := []string{"vendor", "node_modules", "build/tmp", ".git"}
	included := []string{"vendor/allowed", "build/tmp/keep"}
	trie := New(ignored, included, nil)

	paths := []string{
		"vendor", "vendor/allowed", "vendor/allowed/sub", "vendor/blocked",
		"node_modules/pkg/index.js", "build/tmp", "build/tmp/keep/x.go",
		"build/tmp/other", "src/main.go", ".git/HEAD",
	}
	for _, p := range paths {
		got := trie.Classify(p)
		want := ClassifyLinearScan(ignored, included, p)
		require.Equal(t, want.Flags, got.Flags, "path %q", p)
	}
}

func TestClassify_RandomizedAgainstLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	segs := []string{"a", "b", "c", "d"}

	randPath := func() string {
		n := rng.Intn(4)
		p := ""
		for i := 0; i < n; i++ {
			if i > 0 {
				p += "/"
			}
			p += segs[rng.Intn(len(segs))]
		}
		return p
	}

	ignored := []string{"a", "a/b/c"}
	included := []string{"a/b"}
	trie := New(ignored, included, nil)

	for i := 0; i < 200; i++ {
		p := randPath()
		got := trie.Classify(p)
		want := ClassifyLinearScan(ignored, included, p)
		require.Equal(t, want.Flags, got.Flags, "path %q", p)
	}
}
