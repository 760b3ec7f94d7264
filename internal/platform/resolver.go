package platform

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Env carries the interpreter installation facts the resolver needs.
// The resolver never reads them from the process environment itself.
type Env struct {
	Prefix  string
	WinDir  string
	Version string
	CRTLibs []string
}

// ToolkitModules are the module names that pull the Tcl/Tk directories in.
var ToolkitModules = []string{"tkinter", "Tkinter"}

type extraFunc func(ctx context.Context, r *Resolver, p Platform, discovered func(string) bool) ([]string, []string)

// extras is indexed by Kind; every Kind has an entry.
var extras = [kindCount]extraFunc{
	Unsupported: unsupportedFiles,
	Windows:     windowsFiles,
	Cygwin:      cygwinFiles,
}

type Resolver struct {
	Env     Env
	Toolkit ToolkitDirProvider
	Fs      afero.Fs
}

func NewResolver(env Env, toolkit ToolkitDirProvider) *Resolver {
	return &Resolver{Env: env, Toolkit: toolkit, Fs: afero.NewOsFs()}
}

// ExtraFiles returns the runtime files p needs and any warnings. discovered
// reports whether a module is part of the bundle; it may be nil.
func (r *Resolver) ExtraFiles(ctx context.Context, p Platform, discovered func(string) bool) ([]string, []string) {
	if discovered == nil {
		discovered = func(string) bool { return false }
	}
	if r.Fs == nil {
		r.Fs = afero.NewOsFs()
	}
	kind := p.Kind
	if kind < 0 || kind >= kindCount {
		kind = Unsupported
	}
	return extras[kind](ctx, r, p, discovered)
}

func unsupportedFiles(_ context.Context, _ *Resolver, p Platform, _ func(string) bool) ([]string, []string) {
	return nil, []string{fmt.Sprintf("no extra files for platform %s", p)}
}

func windowsFiles(ctx context.Context, r *Resolver, _ Platform, discovered func(string) bool) ([]string, []string) {
	var files, warnings []string

	crt := r.Env.CRTLibs
	if len(crt) == 0 {
		crt = DefaultCRTLibs(r.Env.Version)
	}
	for _, lib := range crt {
		files = append(files, filepath.Join(r.Env.Prefix, lib))
	}

	dll := fmt.Sprintf("python%s.dll", compactVersion(r.Env.Version))
	if local := filepath.Join(r.Env.Prefix, dll); r.isFile(local) {
		files = append(files, local)
	} else {
		files = append(files, filepath.Join(r.Env.WinDir, "system32", dll))
	}

	if r.Toolkit != nil && anyDiscovered(discovered, ToolkitModules) {
		dirs, err := r.Toolkit.ToolkitDirs(ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("can't locate Tcl/Tk directories: %v", err))
		} else {
			files = append(files, dirs...)
		}
	}
	return files, warnings
}

func cygwinFiles(_ context.Context, r *Resolver, _ Platform, _ func(string) bool) ([]string, []string) {
	dll := fmt.Sprintf("libpython%s.dll", r.Env.Version)
	return []string{filepath.Join(r.Env.Prefix, "bin", dll)}, nil
}

// DefaultCRTLibs returns the C runtime libraries shipped next to python.exe
// for the given major.minor version.
func DefaultCRTLibs(version string) []string {
	if strings.HasPrefix(version, "2.") {
		return []string{"msvcp71.dll", "msvcr71.dll"}
	}
	return []string{"vcruntime140.dll"}
}

// compactVersion turns "3.11" into "311".
func compactVersion(version string) string {
	return strings.ReplaceAll(version, ".", "")
}

func anyDiscovered(discovered func(string) bool, names []string) bool {
	for _, name := range names {
		if discovered(name) {
			return true
		}
	}
	return false
}

func (r *Resolver) isFile(path string) bool {
	info, err := r.Fs.Stat(path)
	return err == nil && !info.IsDir()
}
