//go:build cgo

// Package symbols implements SymbolParser tier 2 (spec.md §4.4): an
// external-grammar syntax tree parser used for validate_syntax and
// extract_symbols, adapted from the teacher's internal/symbols/treesitter.go
// and internal/complexity/treesitter.go language-table wiring.
package symbols

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codeintel/internal/codegraph"
	"codeintel/internal/complexity"
)

// SupportedExtension reports whether ext (with or without a leading dot)
// has a tree-sitter grammar available in this build.
func SupportedExtension(ext string) bool {
	_, ok := complexity.LanguageFromExtension(normalizeExt(ext))
	return ok
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ext
	}
	if ext[0] != '.' {
		return "." + strings.ToLower(ext)
	}
	return strings.ToLower(ext)
}

var parser = complexity.NewParser()

// ValidateSyntax returns true iff the root node of content parsed under
// ext's grammar has no error marker. Extensions without a grammar are
// reported as valid (the caller falls back to no AST-based rejection).
func ValidateSyntax(content, ext string) bool {
	lang, ok := complexity.LanguageFromExtension(normalizeExt(ext))
	if !ok {
		return true
	}
	root, err := parser.Parse(context.Background(), []byte(content), lang)
	if err != nil {
		return false
	}
	return !root.HasError()
}

// classNodeTypes returns node types treated as class-like per language.
func classNodeTypes(lang complexity.Language) []string {
	switch lang {
	case complexity.LangGo:
		return []string{"type_spec"}
	case complexity.LangJavaScript, complexity.LangTypeScript, complexity.LangTSX:
		return []string{"class_declaration"}
	case complexity.LangPython:
		return []string{"class_definition"}
	case complexity.LangRust:
		return []string{"struct_item", "impl_item"}
	case complexity.LangJava, complexity.LangKotlin:
		return []string{"class_declaration", "interface_declaration"}
	case complexity.LangCpp:
		return []string{"class_specifier", "struct_specifier"}
	default:
		return nil
	}
}

// ExtractSymbols walks the syntax tree for path/content and emits a
// CodeNode per function-like or class-like node, matching spec.md §4.4's
// `function_definition | class_specifier | method_definition | function_item`
// family across languages.
func ExtractSymbols(path, content string) []*codegraph.CodeNode {
	ext := normalizeExt(filepath.Ext(path))
	lang, ok := complexity.LanguageFromExtension(ext)
	if !ok {
		return nil
	}

	content = codegraph.SanitizeUTF8(content)
	root, err := parser.Parse(context.Background(), []byte(content), lang)
	if err != nil {
		return nil
	}

	src := []byte(content)
	funcTypes := toSet(complexity.GetFunctionNodeTypes(lang))
	classTypes := toSet(classNodeTypes(lang))

	var nodes []*codegraph.CodeNode
	walk(root, func(n *sitter.Node) {
		typ := n.Type()
		var nodeType codegraph.NodeType
		switch {
		case funcTypes[typ]:
			nodeType = codegraph.NodeFunction
			if isMethodLike(n) {
				nodeType = codegraph.NodeMethod
			}
		case classTypes[typ]:
			nodeType = codegraph.NodeClass
		default:
			return
		}

		name := identifierName(n, src)
		if name == "" {
			return
		}
		body := string(src[n.StartByte():n.EndByte()])
		nodes = append(nodes, &codegraph.CodeNode{
			ID:       codegraph.NodeID(path, name),
			Name:     name,
			Type:     nodeType,
			FilePath: path,
			Content:  body,
		})
	})
	return nodes
}

func isMethodLike(n *sitter.Node) bool {
	switch n.Type() {
	case "method_declaration", "method_definition":
		return true
	default:
		return false
	}
}

// identifierName extracts the `identifier`/`type_identifier`/`field_identifier`
// child as the node's name, preferring the "name" field when the grammar
// exposes one.
func identifierName(n *sitter.Node, src []byte) string {
	if named := n.ChildByFieldName("name"); named != nil {
		return string(src[named.StartByte():named.EndByte()])
	}
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "identifier", "type_identifier", "field_identifier", "property_identifier":
			return string(src[c.StartByte():c.EndByte()])
		}
	}
	return ""
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		walk(n.Child(i), visit)
	}
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}
