package extractor

import sitter "github.com/smacker/go-tree-sitter"

// ImportStatement is a single import found in a source file.
//
// `import a.b as c` yields Module "a.b" with no Names. `from ..p import x, y`
// yields Module "p", Level 2 and Names [x y]. A star import carries Names ["*"].
type ImportStatement struct {
	Module      string   `json:"module"`
	Names       []string `json:"names,omitempty"`
	Level       int      `json:"level,omitempty"`
	Line        int      `json:"line"`
	Conditional bool     `json:"conditional,omitempty"` // inside try/if/loop/with or a function body
	Dynamic     bool     `json:"dynamic,omitempty"`     // __import__ or import_module with a literal name
	Computed    bool     `json:"computed,omitempty"`    // dynamic import whose name is not a literal
	Expr        string   `json:"expr,omitempty"`        // source text of a computed import
}

// IsFrom reports whether the statement came from a from-import.
func (s ImportStatement) IsFrom() bool {
	return len(s.Names) > 0
}

// LanguageExtractor defines the interface that each language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	ExtractImports(captureName string, node *sitter.Node, sourceCode []byte) []ImportStatement
}
