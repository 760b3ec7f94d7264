package graph

type ModuleKind string

const (
	KindSource    ModuleKind = "source"
	KindExtension ModuleKind = "extension"
	KindPackage   ModuleKind = "package"
	KindNamespace ModuleKind = "namespace"
	KindBuiltin   ModuleKind = "builtin"
)

type RelationKind string

const (
	RelationImports RelationKind = "imports"
	RelationHidden  RelationKind = "hidden"
)

type UnresolvedReason string

const (
	ReasonNotFound   UnresolvedReason = "not_found"
	ReasonDynamic    UnresolvedReason = "dynamic"
	ReasonNotPackage UnresolvedReason = "not_package"
	ReasonExcluded   UnresolvedReason = "excluded"
)

// Module is the graph-domain node payload: one importable unit.
// File is empty for builtin modules and namespace packages.
type Module struct {
	Name       string     `json:"name"`
	File       string     `json:"file,omitempty"`
	Kind       ModuleKind `json:"kind"`
	SearchPath []string   `json:"search_path,omitempty"`
}

// IsPackage reports whether submodules can be imported from m.
func (m *Module) IsPackage() bool {
	return m.Kind == KindPackage || m.Kind == KindNamespace
}

// HasFile reports whether m is backed by a file that can be copied.
func (m *Module) HasFile() bool {
	return m.File != ""
}

type Evidence struct {
	Filepath string `json:"filepath,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// UnresolvedImport records an import the finder could not follow.
type UnresolvedImport struct {
	From        string           `json:"from"`
	Target      string           `json:"target"`
	Reason      UnresolvedReason `json:"reason"`
	Conditional bool             `json:"conditional,omitempty"`
	Evidence    Evidence         `json:"evidence,omitempty"`
}
