package extractor

import (
	"context"
	"fmt"
	"os"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Extractor orchestrates import extraction using a language-specific extractor.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
	query         *sitter.Query
}

// NewExtractor creates a new extractor for a given language.
func NewExtractor(lang string) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "python":
		langExt = &PythonExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	query, err := sitter.NewQuery([]byte(langExt.GetQuery()), langExt.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	return &Extractor{langExtractor: langExt, langName: lang, query: query}, nil
}

// Language returns the language this extractor parses.
func (e *Extractor) Language() string {
	return e.langName
}

// ExtractFromFile parses a single source file and returns its import statements.
func (e *Extractor) ExtractFromFile(filepath string) ([]ImportStatement, error) {
	sourceCode, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filepath, err)
	}

	imports, err := e.ExtractFromSource(sourceCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filepath, err)
	}
	return imports, nil
}

// ExtractFromSource returns the import statements of already loaded source,
// ordered by line.
func (e *Extractor) ExtractFromSource(sourceCode []byte) ([]ImportStatement, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.langExtractor.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, sourceCode)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(e.query, tree.RootNode())

	var imports []ImportStatement
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			captureName := e.query.CaptureNameForId(c.Index)
			imports = append(imports, e.langExtractor.ExtractImports(captureName, c.Node, sourceCode)...)
		}
	}

	sort.SliceStable(imports, func(i, j int) bool {
		return imports[i].Line < imports[j].Line
	})
	return imports, nil
}
