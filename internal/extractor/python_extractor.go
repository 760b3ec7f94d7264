package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor implements LanguageExtractor for Python.
type PythonExtractor struct{}

func (p *PythonExtractor) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

func (p *PythonExtractor) GetQuery() string {
	return `
		(import_statement) @import
		(import_from_statement) @from
		(future_import_statement) @future
		(call) @call
	`
}

func (p *PythonExtractor) ExtractImports(captureName string, node *sitter.Node, sourceCode []byte) []ImportStatement {
	var out []ImportStatement
	switch captureName {
	case "import":
		out = p.extractImport(node, sourceCode)
	case "from":
		if stmt, ok := p.extractFromImport(node, sourceCode); ok {
			out = []ImportStatement{stmt}
		}
	case "future":
		if stmt, ok := p.extractFutureImport(node, sourceCode); ok {
			out = []ImportStatement{stmt}
		}
	case "call":
		if stmt, ok := p.extractDynamicImport(node, sourceCode); ok {
			out = []ImportStatement{stmt}
		}
	}

	conditional := isConditional(node)
	line := int(node.StartPoint().Row + 1)
	for i := range out {
		out[i].Line = line
		out[i].Conditional = conditional
	}
	return out
}

// import a, b.c as d
func (p *PythonExtractor) extractImport(node *sitter.Node, sourceCode []byte) []ImportStatement {
	var out []ImportStatement
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if name := importedName(node.NamedChild(i), sourceCode); name != "" {
			out = append(out, ImportStatement{Module: name})
		}
	}
	return out
}

// from [.]*module import a, b as c | *
func (p *PythonExtractor) extractFromImport(node *sitter.Node, sourceCode []byte) (ImportStatement, bool) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return ImportStatement{}, false
	}

	var stmt ImportStatement
	switch moduleNode.Type() {
	case "relative_import":
		for i := 0; i < int(moduleNode.NamedChildCount()); i++ {
			child := moduleNode.NamedChild(i)
			switch child.Type() {
			case "import_prefix":
				stmt.Level = strings.Count(child.Content(sourceCode), ".")
			case "dotted_name":
				stmt.Module = compactName(child.Content(sourceCode))
			}
		}
	default:
		stmt.Module = compactName(moduleNode.Content(sourceCode))
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}
		if child.Type() == "wildcard_import" {
			stmt.Names = append(stmt.Names, "*")
			continue
		}
		if name := importedName(child, sourceCode); name != "" {
			stmt.Names = append(stmt.Names, name)
		}
	}

	if len(stmt.Names) == 0 {
		return ImportStatement{}, false
	}
	return stmt, true
}

// from __future__ import a, b
// The statement also imports __future__ at run time.
func (p *PythonExtractor) extractFutureImport(node *sitter.Node, sourceCode []byte) (ImportStatement, bool) {
	stmt := ImportStatement{Module: "__future__"}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if name := importedName(node.NamedChild(i), sourceCode); name != "" {
			stmt.Names = append(stmt.Names, name)
		}
	}
	if len(stmt.Names) == 0 {
		return ImportStatement{}, false
	}
	return stmt, true
}

// __import__("m"), importlib.import_module("m"), import_module(".m")
func (p *PythonExtractor) extractDynamicImport(node *sitter.Node, sourceCode []byte) (ImportStatement, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return ImportStatement{}, false
	}
	switch fn.Content(sourceCode) {
	case "__import__", "importlib.import_module", "import_module":
	default:
		return ImportStatement{}, false
	}

	args := node.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return ImportStatement{}, false
	}
	first := args.NamedChild(0)

	name, ok := stringLiteral(first, sourceCode)
	if !ok || name == "" {
		return ImportStatement{Computed: true, Dynamic: true, Expr: first.Content(sourceCode)}, true
	}

	level := len(name) - len(strings.TrimLeft(name, "."))
	return ImportStatement{Module: name[level:], Level: level, Dynamic: true}, true
}

// importedName returns the dotted module name of a dotted_name or aliased_import node.
func importedName(node *sitter.Node, sourceCode []byte) string {
	switch node.Type() {
	case "dotted_name":
		return compactName(node.Content(sourceCode))
	case "aliased_import":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			return compactName(nameNode.Content(sourceCode))
		}
	}
	return ""
}

// Imports under these nodes may be fallbacks that never run.
var conditionalAncestors = map[string]bool{
	"try_statement": true,
	"if_statement":  true,
}

func isConditional(node *sitter.Node) bool {
	for n := node.Parent(); n != nil; n = n.Parent() {
		if conditionalAncestors[n.Type()] {
			return true
		}
	}
	return false
}

// stringLiteral returns the value of a plain (non-interpolated) string node.
func stringLiteral(node *sitter.Node, sourceCode []byte) (string, bool) {
	if node.Type() != "string" {
		return "", false
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if node.NamedChild(i).Type() == "interpolation" {
			return "", false
		}
	}

	raw := node.Content(sourceCode)
	prefixEnd := strings.IndexAny(raw, `"'`)
	if prefixEnd < 0 {
		return "", false
	}
	if strings.ContainsAny(raw[:prefixEnd], "fF") {
		return "", false
	}
	body := raw[prefixEnd:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

// compactName drops whitespace and line continuations inside a dotted name.
func compactName(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\\", " ")), "")
}
