package finder

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pyfreeze/internal/graph"
)

const (
	sourceSuffix = ".py"
	initModule   = "__init__"
)

// location is where findModule found a module.
type location struct {
	kind       graph.ModuleKind
	file       string
	searchPath []string
}

// findModule looks name up in path (the finder's search path for top-level
// names). Within one directory a package wins over an extension module, which
// wins over a source file. A directory without __init__.py is a namespace
// package portion, used only when no directory provides a regular module.
func (f *Finder) findModule(name, fullname string, path []string, topLevel bool) (*location, graph.UnresolvedReason) {
	if f.excludes[fullname] {
		return nil, graph.ReasonExcluded
	}
	if topLevel {
		if f.builtins[name] {
			return &location{kind: graph.KindBuiltin}, ""
		}
		path = f.searchPath
	}

	var namespace []string
	for _, dir := range path {
		pkgDir := filepath.Join(dir, name)
		if isDir(pkgDir) {
			if init := filepath.Join(pkgDir, initModule+sourceSuffix); isFile(init) {
				return &location{kind: graph.KindPackage, file: init, searchPath: []string{pkgDir}}, ""
			}
			namespace = append(namespace, pkgDir)
		}
		if file := f.findExtension(dir, name); file != "" {
			return &location{kind: graph.KindExtension, file: file}, ""
		}
		if file := filepath.Join(dir, name+sourceSuffix); isFile(file) {
			return &location{kind: graph.KindSource, file: file}, ""
		}
	}

	if len(namespace) > 0 {
		return &location{kind: graph.KindNamespace, searchPath: namespace}, ""
	}
	return nil, graph.ReasonNotFound
}

// findExtension matches name+suffix exactly, then falls back to ABI-tagged
// names such as name.cpython-312-x86_64-linux-gnu.so.
func (f *Finder) findExtension(dir, name string) string {
	for _, suffix := range f.opts.ExtensionSuffixes {
		if file := filepath.Join(dir, name+suffix); isFile(file) {
			return file
		}
	}
	for _, suffix := range f.opts.ExtensionSuffixes {
		if strings.Count(suffix, ".") != 1 {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(dir, name+".*"+suffix))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if isFile(m) {
				return m
			}
		}
	}
	return ""
}

// submoduleNames lists the modules a star import of pkg can reach.
func (f *Finder) submoduleNames(pkg *graph.Module) []string {
	seen := make(map[string]bool)
	for _, dir := range pkg.SearchPath {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() {
				if isFile(filepath.Join(dir, name, initModule+sourceSuffix)) {
					seen[name] = true
				}
				continue
			}
			if mod, ok := f.moduleNameFromFile(name); ok && mod != initModule {
				seen[mod] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Finder) moduleNameFromFile(filename string) (string, bool) {
	if strings.HasSuffix(filename, sourceSuffix) {
		return strings.TrimSuffix(filename, sourceSuffix), true
	}
	for _, suffix := range f.opts.ExtensionSuffixes {
		if strings.HasSuffix(filename, suffix) {
			base := strings.TrimSuffix(filename, suffix)
			if i := strings.Index(base, "."); i >= 0 {
				base = base[:i]
			}
			return base, true
		}
	}
	return "", false
}
