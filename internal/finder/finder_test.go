package finder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pyfreeze/internal/graph"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files below root; a trailing slash creates a directory.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newFinder(t *testing.T, opts Options) *Finder {
	t.Helper()
	f, err := New(opts, zerolog.Nop())
	require.NoError(t, err)
	return f
}

func TestFinder_BuildClosure(t *testing.T) {
	app := t.TempDir()
	lib := t.TempDir()

	writeTree(t, app, map[string]string{
		"app.py": `import sys
import pkg.sub
from helpers import util
import cyc_a
import ns.portion
import fastmath
from pkg import *
import importlib
mod = importlib.import_module(plugin_name)
`,
	})
	writeTree(t, lib, map[string]string{
		"pkg/__init__.py":     "from . import inner\n",
		"pkg/inner.py":        "VALUE = 1\n",
		"pkg/sub.py":          "from .inner import VALUE\nimport os\n",
		"pkg/extra.py":        "",
		"helpers/__init__.py": "",
		"helpers/util.py": `try:
    import simplejson as json
except ImportError:
    import json
`,
		"cyc_a.py":      "import cyc_b\n",
		"cyc_b.py":      "import cyc_a\n",
		"ns/portion.py": "",
		"fastmath.cpython-312-x86_64-linux-gnu.so": "\x7fELF",
		"importlib/__init__.py":                    "",
	})

	f := newFinder(t, Options{
		SearchPath:        []string{lib},
		BuiltinModules:    []string{"sys"},
		ExtensionSuffixes: []string{".so"},
	})

	g, err := f.BuildClosure([]string{filepath.Join(app, "app.py")})
	require.NoError(t, err)

	t.Run("Closure contains every statically reachable module", func(t *testing.T) {
		for _, name := range []string{
			"app", "sys", "pkg", "pkg.sub", "pkg.inner", "pkg.extra",
			"helpers", "helpers.util", "cyc_a", "cyc_b", "ns", "ns.portion",
			"fastmath", "importlib",
		} {
			assert.True(t, g.Has(name), "closure should contain %s", name)
		}
	})

	t.Run("Module kinds", func(t *testing.T) {
		assert.Equal(t, graph.KindBuiltin, g.Module("sys").Kind)
		assert.False(t, g.Module("sys").HasFile())
		assert.Equal(t, graph.KindPackage, g.Module("pkg").Kind)
		assert.Equal(t, filepath.Join(lib, "pkg", "__init__.py"), g.Module("pkg").File)
		assert.Equal(t, graph.KindSource, g.Module("pkg.sub").Kind)
		assert.Equal(t, graph.KindNamespace, g.Module("ns").Kind)
		assert.False(t, g.Module("ns").HasFile())
		assert.Equal(t, graph.KindExtension, g.Module("fastmath").Kind)
	})

	t.Run("Cyclic imports terminate with both edges", func(t *testing.T) {
		assert.Equal(t, []string{"cyc_a", "cyc_b"}, g.PathTo("cyc_a", "cyc_b"))
		assert.Equal(t, []string{"cyc_b", "cyc_a"}, g.PathTo("cyc_b", "cyc_a"))
	})

	t.Run("Unresolved imports are recorded, not fatal", func(t *testing.T) {
		byTarget := make(map[string]graph.UnresolvedImport)
		for _, u := range g.Unresolved {
			byTarget[u.Target] = u
		}

		osMiss, ok := byTarget["os"]
		require.True(t, ok)
		assert.Equal(t, "pkg.sub", osMiss.From)
		assert.False(t, osMiss.Conditional)

		jsonMiss, ok := byTarget["json"]
		require.True(t, ok)
		assert.True(t, jsonMiss.Conditional)
		_, ok = byTarget["simplejson"]
		assert.True(t, ok)

		dyn, ok := byTarget["plugin_name"]
		require.True(t, ok)
		assert.Equal(t, graph.ReasonDynamic, dyn.Reason)
	})

	t.Run("Entry script directory leads the search path", func(t *testing.T) {
		path := f.SearchPath()
		require.NotEmpty(t, path)
		abs, _ := filepath.Abs(app)
		assert.Equal(t, abs, path[0])
	})
}

func TestFinder_RelativeImportBeyondTopLevel(t *testing.T) {
	app := t.TempDir()
	writeTree(t, app, map[string]string{
		"main.py": "from . import sibling\nfrom ..up import thing\n",
	})

	f := newFinder(t, Options{})
	g, err := f.BuildClosure([]string{filepath.Join(app, "main.py")})
	require.NoError(t, err)

	assert.Len(t, g.Unresolved, 2)
	assert.Equal(t, 1, g.Len())
}

func TestFinder_ImplicitRelativeImports(t *testing.T) {
	app := t.TempDir()
	writeTree(t, app, map[string]string{
		"main.py":         "import pkg.a\n",
		"pkg/__init__.py": "",
		"pkg/a.py":        "import b\n",
		"pkg/b.py":        "",
	})

	t.Run("Python 2 resolves sibling first", func(t *testing.T) {
		f := newFinder(t, Options{ImplicitRelative: true})
		g, err := f.BuildClosure([]string{filepath.Join(app, "main.py")})
		require.NoError(t, err)
		assert.True(t, g.Has("pkg.b"))
		assert.Empty(t, g.Unresolved)
	})

	t.Run("Python 3 treats it as absolute", func(t *testing.T) {
		f := newFinder(t, Options{})
		g, err := f.BuildClosure([]string{filepath.Join(app, "main.py")})
		require.NoError(t, err)
		assert.False(t, g.Has("pkg.b"))
		require.Len(t, g.Unresolved, 1)
		assert.Equal(t, "b", g.Unresolved[0].Target)
	})
}

func TestFinder_ExcludesAndReplacePackages(t *testing.T) {
	app := t.TempDir()
	writeTree(t, app, map[string]string{
		"main.py":              "import _xmlplus.dom\nimport tkinter\n",
		"_xmlplus/__init__.py": "",
		"_xmlplus/dom.py":      "",
		"tkinter/__init__.py":  "",
	})

	f := newFinder(t, Options{
		Excludes:        []string{"tkinter"},
		ReplacePackages: map[string]string{"_xmlplus": "xml"},
	})
	g, err := f.BuildClosure([]string{filepath.Join(app, "main.py")})
	require.NoError(t, err)

	assert.True(t, g.Has("xml"))
	assert.False(t, g.Has("_xmlplus"))
	assert.True(t, g.Has("xml.dom"))
	assert.False(t, g.Has("tkinter"))

	require.Len(t, g.Unresolved, 1)
	assert.Equal(t, graph.ReasonExcluded, g.Unresolved[0].Reason)
}

func TestFinder_ForceImport(t *testing.T) {
	lib := t.TempDir()
	writeTree(t, lib, map[string]string{
		"main.py":      "import time\n",
		"_strptime.py": "import calendar\n",
		"calendar.py":  "",
	})

	f := newFinder(t, Options{BuiltinModules: []string{"time"}})
	_, err := f.BuildClosure([]string{filepath.Join(lib, "main.py")})
	require.NoError(t, err)
	require.False(t, f.Has("_strptime"))

	require.NoError(t, f.ForceImport("time", "_strptime"))
	assert.True(t, f.Has("_strptime"))
	assert.True(t, f.Has("calendar"), "forced imports pull in their own closure")
	assert.Contains(t, f.Graph().Edges, graph.Edge{From: "time", To: "_strptime", Kind: graph.RelationHidden})

	err = f.ForceImport("time", "does_not_exist")
	var ie *ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "does_not_exist", ie.Name)
}

func TestFinder_MissingEntryScript(t *testing.T) {
	f := newFinder(t, Options{})
	_, err := f.BuildClosure([]string{filepath.Join(t.TempDir(), "nope.py")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEntryScript))
}

func TestFinder_FutureAndFunctionBodyImports(t *testing.T) {
	app := t.TempDir()
	lib := t.TempDir()
	writeTree(t, app, map[string]string{
		"app.py": "from __future__ import print_function\nimport os\n\ndef main():\n    import missingmod\n",
	})
	writeTree(t, lib, map[string]string{
		"__future__.py": "",
		"os.py":         "",
	})

	f := newFinder(t, Options{SearchPath: []string{lib}})
	g, err := f.BuildClosure([]string{filepath.Join(app, "app.py")})
	require.NoError(t, err)

	assert.Equal(t, []string{"__future__", "app", "os"}, g.Names())
	assert.Contains(t, g.Edges, graph.Edge{From: "app", To: "__future__", Kind: graph.RelationImports})

	require.Len(t, g.Unresolved, 1)
	assert.Equal(t, "missingmod", g.Unresolved[0].Target)
	assert.False(t, g.Unresolved[0].Conditional)
	assert.Equal(t, 5, g.Unresolved[0].Evidence.Line)
}
