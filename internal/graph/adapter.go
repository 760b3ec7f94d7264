package graph

import "pyfreeze/internal/extractor"

// FromStatement converts an extractor import statement that could not be
// followed into an UnresolvedImport.
func FromStatement(importer, filepath, target string, stmt extractor.ImportStatement, reason UnresolvedReason) UnresolvedImport {
	if target == "" {
		target = stmt.Module
	}
	if stmt.Computed {
		target = stmt.Expr
		reason = ReasonDynamic
	}
	return UnresolvedImport{
		From:        importer,
		Target:      target,
		Reason:      reason,
		Conditional: stmt.Conditional,
		Evidence: Evidence{
			Filepath: filepath,
			Line:     stmt.Line,
		},
	}
}
