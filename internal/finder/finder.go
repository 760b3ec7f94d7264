// Package finder computes the closure of Python modules reachable from a set
// of entry scripts by following their import statements.
//
// The traversal is static and deliberately incomplete: imports whose target is
// computed at runtime cannot be followed and are recorded as unresolved. Every
// module is analysed at most once, so cyclic imports terminate.
package finder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pyfreeze/internal/extractor"
	"pyfreeze/internal/graph"

	"github.com/rs/zerolog"
)

// ErrEntryScript is returned when an entry script cannot be loaded.
var ErrEntryScript = errors.New("entry script")

// Options configures how module names are resolved.
type Options struct {
	// SearchPath is the ordered list of directories searched for top-level modules.
	SearchPath []string
	// BuiltinModules are compiled into the interpreter and have no file.
	BuiltinModules []string
	// ExtensionSuffixes are the file suffixes of compiled extension modules.
	ExtensionSuffixes []string
	// Excludes are fully qualified names that must never be followed.
	Excludes []string
	// ReplacePackages registers a package under another name, e.g. _xmlplus as xml.
	ReplacePackages map[string]string
	// ImplicitRelative enables Python 2 semantics where a plain import is
	// first tried relative to the importing package.
	ImplicitRelative bool
}

// ImportError describes a name the finder could not resolve.
type ImportError struct {
	Name   string
	Reason graph.UnresolvedReason
}

func (e *ImportError) Error() string {
	switch e.Reason {
	case graph.ReasonExcluded:
		return fmt.Sprintf("module %s is excluded", e.Name)
	case graph.ReasonNotPackage:
		return fmt.Sprintf("no module named %s: parent is not a package", e.Name)
	default:
		return fmt.Sprintf("no module named %s", e.Name)
	}
}

// Finder discovers modules and records them in a graph.
type Finder struct {
	opts      Options
	extractor *extractor.Extractor
	graph     *graph.Graph
	logger    zerolog.Logger

	searchPath []string
	builtins   map[string]bool
	excludes   map[string]bool
	bad        map[string]graph.UnresolvedReason
}

// New creates a finder for Python sources.
func New(opts Options, logger zerolog.Logger) (*Finder, error) {
	ext, err := extractor.NewExtractor("python")
	if err != nil {
		return nil, err
	}

	f := &Finder{
		opts:       opts,
		extractor:  ext,
		graph:      graph.NewGraph(),
		logger:     logger,
		searchPath: append([]string(nil), opts.SearchPath...),
		builtins:   toSet(opts.BuiltinModules),
		excludes:   toSet(opts.Excludes),
		bad:        make(map[string]graph.UnresolvedReason),
	}
	return f, nil
}

// Graph returns the module graph discovered so far.
func (f *Finder) Graph() *graph.Graph {
	return f.graph
}

// Has reports whether name has been discovered.
func (f *Finder) Has(name string) bool {
	return f.graph.Has(name)
}

// SearchPath returns the effective search path, including entry script directories.
func (f *Finder) SearchPath() []string {
	return append([]string(nil), f.searchPath...)
}

// BuildClosure analyses every entry script and returns the accumulated graph.
// The directory of each script is put in front of the search path, the way the
// interpreter does for the script it runs.
func (f *Finder) BuildClosure(entryScripts []string) (*graph.Graph, error) {
	var dirs []string
	for _, script := range entryScripts {
		abs, err := filepath.Abs(script)
		if err != nil {
			return f.graph, fmt.Errorf("%w %s: %v", ErrEntryScript, script, err)
		}
		dirs = append(dirs, filepath.Dir(abs))
	}
	f.prependSearchPath(dirs...)

	for _, script := range entryScripts {
		if err := f.RunScript(script); err != nil {
			return f.graph, err
		}
	}
	return f.graph, nil
}

// RunScript registers path as a module named after its file stem and follows
// its imports.
func (f *Finder) RunScript(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrEntryScript, path, err)
	}
	if !isFile(abs) {
		return fmt.Errorf("%w %s: not found", ErrEntryScript, path)
	}

	imports, err := f.extractor.ExtractFromFile(abs)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrEntryScript, path, err)
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	if existing := f.graph.Module(name); existing != nil && existing.File != abs {
		return fmt.Errorf("%w %s: module %s already loaded from %s", ErrEntryScript, path, name, existing.File)
	}

	m := &graph.Module{Name: name, File: abs, Kind: graph.KindSource}
	f.graph.AddModule(m)
	f.logger.Debug().Str("module", name).Str("file", abs).Msg("entry script")

	for _, stmt := range imports {
		f.scanStatement(m, stmt)
	}
	return nil
}

// ForceImport imports name as if trigger had imported it. It is used for
// dependencies that static analysis cannot see.
func (f *Finder) ForceImport(trigger, name string) error {
	mod, err := f.importHook(name, nil, 0)
	if err != nil {
		return err
	}
	if f.graph.Has(trigger) {
		f.graph.AddEdge(trigger, mod.Name, graph.RelationHidden)
	}
	return nil
}

func (f *Finder) scanStatement(m *graph.Module, stmt extractor.ImportStatement) {
	if stmt.Computed {
		f.graph.MarkUnresolved(graph.FromStatement(m.Name, m.File, "", stmt, graph.ReasonDynamic))
		return
	}

	// from . import x imports the parent package with a fromlist.
	if stmt.Module == "" && stmt.Level > 0 {
		parent, err := f.determineParent(m, stmt.Level)
		if err != nil || parent == nil {
			target := strings.Repeat(".", stmt.Level) + strings.Join(stmt.Names, ",")
			f.graph.MarkUnresolved(graph.FromStatement(m.Name, m.File, target, stmt, graph.ReasonNotFound))
			return
		}
		f.safeImport(m, stmt, parent.Name, nil, stmt.Names, 0)
		return
	}

	level := stmt.Level
	if level == 0 && f.opts.ImplicitRelative && !stmt.Dynamic {
		level = -1
	}
	f.safeImport(m, stmt, stmt.Module, m, stmt.Names, level)
}

// safeImport resolves one import statement and records either edges or an
// unresolved entry; it never fails.
func (f *Finder) safeImport(importer *graph.Module, stmt extractor.ImportStatement, name string, caller *graph.Module, fromlist []string, level int) {
	mod, err := f.importHook(name, caller, level)
	if err != nil {
		var ie *ImportError
		reason := graph.ReasonNotFound
		target := name
		if errors.As(err, &ie) {
			reason = ie.Reason
			target = ie.Name
		}
		f.graph.MarkUnresolved(graph.FromStatement(importer.Name, importer.File, target, stmt, reason))
		return
	}
	if mod.Name != importer.Name {
		f.graph.AddEdge(importer.Name, mod.Name, graph.RelationImports)
	}

	if !mod.IsPackage() {
		return
	}
	for _, sub := range fromlist {
		if sub == "*" {
			for _, part := range f.submoduleNames(mod) {
				if subMod, _ := f.importModule(part, mod.Name+"."+part, mod); subMod != nil {
					f.graph.AddEdge(importer.Name, subMod.Name, graph.RelationImports)
				}
			}
			continue
		}
		// A name that is not a submodule is an attribute of the package.
		if subMod, _ := f.importModule(sub, mod.Name+"."+sub, mod); subMod != nil {
			f.graph.AddEdge(importer.Name, subMod.Name, graph.RelationImports)
		}
	}
}

func (f *Finder) importHook(name string, caller *graph.Module, level int) (*graph.Module, error) {
	parent, err := f.determineParent(caller, level)
	if err != nil {
		return nil, err
	}
	q, tail, err := f.findHeadPackage(parent, name)
	if err != nil {
		return nil, err
	}
	return f.loadTail(q, tail)
}

func (f *Finder) determineParent(caller *graph.Module, level int) (*graph.Module, error) {
	if caller == nil || level == 0 {
		return nil, nil
	}
	pname := caller.Name

	if level >= 1 {
		if caller.IsPackage() {
			level--
		}
		if level == 0 {
			return caller, nil
		}
		parts := strings.Split(pname, ".")
		if len(parts)-1 < level {
			return nil, &ImportError{Name: strings.Repeat(".", level) + " from " + pname, Reason: graph.ReasonNotFound}
		}
		return f.graph.Module(strings.Join(parts[:len(parts)-level], ".")), nil
	}

	// level -1: implicit relative import
	if caller.IsPackage() {
		return caller, nil
	}
	if i := strings.LastIndex(pname, "."); i >= 0 {
		return f.graph.Module(pname[:i]), nil
	}
	return nil, nil
}

func (f *Finder) findHeadPackage(parent *graph.Module, name string) (*graph.Module, string, error) {
	head, tail, _ := strings.Cut(name, ".")

	qname := head
	if parent != nil {
		qname = parent.Name + "." + head
	}
	q, reason := f.importModule(head, qname, parent)
	if q != nil {
		return q, tail, nil
	}
	if parent != nil {
		if q, _ = f.importModule(head, head, nil); q != nil {
			return q, tail, nil
		}
	}
	if reason == "" {
		reason = graph.ReasonNotFound
	}
	return nil, "", &ImportError{Name: qualified(parent, name), Reason: reason}
}

func (f *Finder) loadTail(q *graph.Module, tail string) (*graph.Module, error) {
	m := q
	for tail != "" {
		var head string
		head, tail, _ = strings.Cut(tail, ".")
		mname := m.Name + "." + head
		next, reason := f.importModule(head, mname, m)
		if next == nil {
			if reason == "" {
				reason = graph.ReasonNotFound
			}
			if tail != "" {
				mname += "." + tail
			}
			return nil, &ImportError{Name: mname, Reason: reason}
		}
		m = next
	}
	return m, nil
}

// importModule returns the module fqname, loading it on first use. A nil
// module comes with the reason it could not be loaded.
func (f *Finder) importModule(partname, fqname string, parent *graph.Module) (*graph.Module, graph.UnresolvedReason) {
	if m := f.graph.Module(fqname); m != nil {
		return m, ""
	}
	if reason, ok := f.bad[fqname]; ok {
		return nil, reason
	}
	if parent != nil && !parent.IsPackage() {
		f.bad[fqname] = graph.ReasonNotPackage
		return nil, graph.ReasonNotPackage
	}

	var path []string
	if parent != nil {
		path = parent.SearchPath
	}
	loc, reason := f.findModule(partname, fqname, path, parent == nil)
	if loc == nil {
		f.bad[fqname] = reason
		return nil, reason
	}
	return f.loadModule(fqname, loc), ""
}

func (f *Finder) loadModule(fqname string, loc *location) *graph.Module {
	if loc.kind == graph.KindPackage || loc.kind == graph.KindNamespace {
		if newname, ok := f.opts.ReplacePackages[fqname]; ok {
			fqname = newname
			if m := f.graph.Module(fqname); m != nil {
				return m
			}
		}
	}

	m := &graph.Module{Name: fqname, File: loc.file, Kind: loc.kind, SearchPath: loc.searchPath}
	f.graph.AddModule(m)
	f.logger.Debug().Str("module", fqname).Str("kind", string(loc.kind)).Str("file", loc.file).Msg("found module")

	if loc.kind == graph.KindSource || loc.kind == graph.KindPackage {
		f.scanFile(m)
	}
	return m
}

func (f *Finder) scanFile(m *graph.Module) {
	imports, err := f.extractor.ExtractFromFile(m.File)
	if err != nil {
		f.logger.Warn().Err(err).Str("module", m.Name).Msg("cannot analyse module")
		return
	}
	for _, stmt := range imports {
		f.scanStatement(m, stmt)
	}
}

func (f *Finder) prependSearchPath(dirs ...string) {
	seen := make(map[string]bool, len(f.searchPath)+len(dirs))
	var merged []string
	for _, d := range append(dirs, f.searchPath...) {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		merged = append(merged, d)
	}
	f.searchPath = merged
}

func qualified(parent *graph.Module, name string) string {
	if parent == nil {
		return name
	}
	return parent.Name + "." + name
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func isFile(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
