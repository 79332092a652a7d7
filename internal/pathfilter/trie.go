// Package pathfilter implements the rooted prefix-trie of ignore/include
// rules described in spec.md §4.3: O(L) classification of a path by walking
// its segments, where L is the number of segments.
package pathfilter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Flags are bitflags carried by a trie node.
type Flags uint8

const (
	// Ignore marks a path (or its descendants) as excluded from indexing.
	Ignore Flags = 1 << iota
	// Include overrides an ancestor Ignore rule.
	Include
)

type node struct {
	children map[string]*node
	flags    Flags
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Trie is a rooted prefix-trie over `/`-separated path segments, plus a
// side list of glob-style rules (any rule containing a `*`, `?`, `[` or `{`
// meta-character) matched with doublestar since those can't be represented
// as a literal segment walk.
type Trie struct {
	root              *node
	allowedExtensions map[string]bool // lowercase, no leading dot; nil/empty means "allow all"
	globIgnored       []string
	globIncluded      []string
}

// New builds a Trie from ignore and include rule path lists, and a set of
// allowed extensions (normalized to lowercase without a leading dot).
func New(ignored, included, allowedExtensions []string) *Trie {
	t := &Trie{root: newNode()}
	for _, p := range ignored {
		if isGlobPattern(p) {
			t.globIgnored = append(t.globIgnored, normalizeGlob(p))
		} else {
			t.insert(p, Ignore)
		}
	}
	for _, p := range included {
		if isGlobPattern(p) {
			t.globIncluded = append(t.globIncluded, normalizeGlob(p))
		} else {
			t.insert(p, Include)
		}
	}
	if len(allowedExtensions) > 0 {
		t.allowedExtensions = make(map[string]bool, len(allowedExtensions))
		for _, ext := range allowedExtensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			t.allowedExtensions[ext] = true
		}
	}
	return t
}

// isGlobPattern reports whether p carries a doublestar meta-character and
// must be matched as a glob rather than walked as a literal segment path.
func isGlobPattern(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}

func normalizeGlob(p string) string {
	return strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
}

func segments(p string) []string {
	p = strings.Trim(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// insert walks/creates nodes for path p and ORs flag into the leaf's flags.
// Re-inserting the same rule is idempotent: OR-ing a flag that is already
// set leaves the trie unchanged.
func (t *Trie) insert(p string, flag Flags) {
	segs := segments(p)
	if len(segs) == 0 {
		return
	}
	cur := t.root
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			child = newNode()
			cur.children[seg] = child
		}
		cur = child
	}
	cur.flags |= flag
}

// Classification is the result of walking a path through the trie.
type Classification struct {
	Flags Flags
}

func (c Classification) Ignored() bool { return c.Flags&Ignore != 0 }
func (c Classification) Included() bool { return c.Flags&Include != 0 }

// Classify walks p's segments, carrying forward the flags of the deepest
// matching ancestor (accumulated_flags is updated whenever a node with
// non-zero flags is encountered), and stops when the walk falls off the trie.
func (t *Trie) Classify(p string) Classification {
	segs := segments(p)
	cur := t.root
	var accumulated Flags
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			break
		}
		if child.flags != 0 {
			accumulated = child.flags
		}
		cur = child
	}

	normalized := strings.Join(segs, "/")
	for _, pat := range t.globIgnored {
		if ok, _ := doublestar.Match(pat, normalized); ok {
			accumulated |= Ignore
		}
	}
	for _, pat := range t.globIncluded {
		if ok, _ := doublestar.Match(pat, normalized); ok {
			accumulated |= Include
		}
	}
	return Classification{Flags: accumulated}
}

// ClassifyLinearScan reclassifies p by a dumb O(R*L) scan over the raw rule
// lists rather than the trie, for use as the §8 invariant-5 cross-check in
// tests: classify(p) == classify_by_linear_scan(rules, p).
func ClassifyLinearScan(ignored, included []string, p string) Classification {
	best := struct {
		depth int
		flags Flags
	}{depth: -1}
	consider := func(rule string, flag Flags) {
		ruleSegs := segments(rule)
		pathSegs := segments(p)
		if len(ruleSegs) > len(pathSegs) {
			return
		}
		for i, s := range ruleSegs {
			if pathSegs[i] != s {
				return
			}
		}
		if len(ruleSegs) > best.depth {
			best.depth = len(ruleSegs)
			best.flags = flag
		} else if len(ruleSegs) == best.depth {
			best.flags |= flag
		}
	}
	for _, r := range ignored {
		consider(r, Ignore)
	}
	for _, r := range included {
		consider(r, Include)
	}
	if best.depth < 0 {
		return Classification{}
	}
	return Classification{Flags: best.flags}
}

// ExtensionAllowed reports whether ext (with or without a leading dot) is in
// the allowed-extensions set. An empty set allows every extension.
func (t *Trie) ExtensionAllowed(ext string) bool {
	if len(t.allowedExtensions) == 0 {
		return true
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return t.allowedExtensions[ext]
}

// ShouldIndexFile reports whether a file at p (with extension ext) should be
// indexed: INCLUDE ∨ ¬IGNORE, AND extension_allowed.
func (t *Trie) ShouldIndexFile(p, ext string) bool {
	c := t.Classify(p)
	if !t.ExtensionAllowed(ext) {
		return false
	}
	if c.Included() {
		return true
	}
	return !c.Ignored()
}

// ShouldDescendDir reports whether a directory at p should be traversed:
// not ignored, OR it is an ancestor of an INCLUDE rule ("bridge"), OR it is
// itself an INCLUDE match.
func (t *Trie) ShouldDescendDir(p string) bool {
	c := t.Classify(p)
	if c.Included() {
		return true
	}
	if !c.Ignored() {
		return true
	}
	return t.isIncludeBridge(p)
}

// isIncludeBridge reports whether any descendant of p's trie node carries
// an Include flag, meaning p must be descended into even though it (or an
// ancestor) is Ignored.
func (t *Trie) isIncludeBridge(p string) bool {
	segs := segments(p)
	cur := t.root
	literalBridge := true
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			literalBridge = false
			break
		}
		cur = child
	}
	if literalBridge && subtreeHasInclude(cur) {
		return true
	}
	for _, pat := range t.globIncluded {
		if globMayDescend(pat, segs) {
			return true
		}
	}
	return false
}

// globMayDescend reports whether directory segments dirSegs could be a
// prefix of some path matched by the doublestar pattern pat: each literal
// pattern segment up to the first wildcard/`**` segment must equal the
// corresponding directory segment.
func globMayDescend(pat string, dirSegs []string) bool {
	patSegs := strings.Split(pat, "/")
	for i, ds := range dirSegs {
		if i >= len(patSegs) {
			return false
		}
		ps := patSegs[i]
		if ps == "**" {
			return true
		}
		if isGlobPattern(ps) {
			continue
		}
		if ps != ds {
			return false
		}
	}
	return true
}

func subtreeHasInclude(n *node) bool {
	if n.flags&Include != 0 {
		return true
	}
	for _, child := range n.children {
		if subtreeHasInclude(child) {
			return true
		}
	}
	return false
}
