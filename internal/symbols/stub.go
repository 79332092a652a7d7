//go:build !cgo

// Package symbols stub for builds without cgo: tree-sitter grammars require
// cgo, so this tier reports no support and defers entirely to the brace/regex
// tier (internal/parser).
package symbols

import "codeintel/internal/codegraph"

// SupportedExtension always reports false without cgo.
func SupportedExtension(ext string) bool { return false }

// ValidateSyntax reports true (no AST-based rejection available) without cgo.
func ValidateSyntax(content, ext string) bool { return true }

// ExtractSymbols returns nil without cgo.
func ExtractSymbols(path, content string) []*codegraph.CodeNode { return nil }
