// Package parser implements the streaming brace/regex tier of SymbolParser
// (spec.md §4.4 tier 1): line-by-line brace-depth tracking that recognizes
// common signature keywords and emits a code_block node whenever depth
// returns to zero, plus an import scan for dependency names. No corpus
// library implements this kind of streaming scanner; stdlib-only is the
// grounded choice (see DESIGN.md).
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"codeintel/internal/codegraph"
)

var signatureRe = regexp.MustCompile(
	`\b(function|class|struct|interface|def|void|int|auto|export|const|let|var)\b[^{;]*?([A-Za-z_][A-Za-z0-9_]*)\s*[\(\{]`)

var importRe = regexp.MustCompile(`import\s+.*?\s+from\s+["']([^"']+)["']`)

// ParseFile runs the brace/regex tier over content for a file at filePath,
// returning the file-level node (always emitted, full content) followed by
// one code_block node per recognized signature.
func ParseFile(filePath, content string) []*codegraph.CodeNode {
	content = codegraph.SanitizeUTF8(content)

	nodes := []*codegraph.CodeNode{
		{
			ID:           codegraph.NodeID(filePath, ""),
			Name:         filePath,
			Type:         codegraph.NodeFile,
			FilePath:     filePath,
			Content:      content,
			Dependencies: scanImports(content),
		},
	}

	nodes = append(nodes, scanBlocks(filePath, content)...)
	return nodes
}

func scanImports(content string) []string {
	var deps []string
	for _, m := range importRe.FindAllStringSubmatch(content, -1) {
		deps = append(deps, m[1])
	}
	return deps
}

type blockState struct {
	name     string
	depth    int
	startIdx int
	lines    []string
}

// scanBlocks streams lines, tracking brace depth, and emits a code_block
// node each time depth returns to zero after having been opened by a
// recognized signature line.
func scanBlocks(filePath, content string) []*codegraph.CodeNode {
	var nodes []*codegraph.CodeNode
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cur *blockState
	for scanner.Scan() {
		line := scanner.Text()

		if cur == nil {
			if m := signatureRe.FindStringSubmatch(line); m != nil {
				cur = &blockState{name: m[2]}
			}
		}

		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		if cur != nil {
			cur.lines = append(cur.lines, line)
			cur.depth += opens - closes
			if cur.depth <= 0 && opens+closes > 0 {
				body := strings.Join(cur.lines, "\n")
				nodes = append(nodes, &codegraph.CodeNode{
					ID:           codegraph.NodeID(filePath, cur.name),
					Name:         cur.name,
					Type:         codegraph.NodeCodeBlock,
					FilePath:     filePath,
					Content:      body,
					Dependencies: scanImports(body),
				})
				cur = nil
			}
		}
	}
	return nodes
}
