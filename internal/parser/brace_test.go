package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
	"codeintel/internal/codegraph"
)

func TestParseFile_AlwaysEmitsFileNode(t *testing.T) {
	nodes := ParseFile("a.ts", "const x = 1;")
	require.NotEmpty(t, nodes)
	require.Equal(t, codegraph.NodeFile, nodes[0].Type)
	require.Equal(t, "a.ts", nodes[0].FilePath)
	require.Equal(t, "const x = 1;", nodes[0].Content)
}

func TestParseFile_ExtractsFunctionBlock(t *testing.T) {
	src := "export function foo(x) {\n  return bar(x);\n}\n"
	nodes := ParseFile("a.ts", src)

	require.Len(t, nodes, 2)
	require.Equal(t, codegraph.NodeCodeBlock, nodes[1].Type)
	require.Equal(t, "foo", nodes[1].Name)
	require.Equal(t, "a.ts::foo", nodes[1].ID)
}

func TestParseFile_NestedBraces(t *testing.T) {
	src := "function outer() {\n  if (true) {\n    doThing();\n  }\n}\n"
	nodes := ParseFile("a.js", src)
	require.Len(t, nodes, 2)
	require.Equal(t, "outer", nodes[1].Name)
}

func TestParseFile_ImportsBecomeDependencies(t *testing.T) {
	src := "import { bar } from \"./bar\";\nexport function foo() {}\n"
	nodes := ParseFile("a.ts", src)
	require.Contains(t, nodes[0].Dependencies, "./bar")
}

func TestParseFile_NoSignaturesOnlyFileNode(t *testing.T) {
	nodes := ParseFile("a.txt", "just some text\nno braces here\n")
	require.Len(t, nodes, 1)
}
