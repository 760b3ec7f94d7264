package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"pyfreeze/internal/finder"
	"pyfreeze/internal/graph"
	"pyfreeze/internal/hidden"

	"github.com/rs/zerolog"
)

type fakeStage struct {
	name string
	fn   func(f *finder.Finder) (ResolveStats, []string, error)
}

func (s fakeStage) Name() string { return s.name }
func (s fakeStage) Resolve(f *finder.Finder) (ResolveStats, []string, error) {
	return s.fn(f)
}

func newFinder(t *testing.T, builtins ...string) *finder.Finder {
	t.Helper()
	f, err := finder.New(finder.Options{BuiltinModules: builtins}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new finder: %v", err)
	}
	return f
}

func TestChain_Run(t *testing.T) {
	f := newFinder(t)

	s1 := fakeStage{
		name: "s1",
		fn: func(f *finder.Finder) (ResolveStats, []string, error) {
			g := f.Graph()
			g.AddModule(&graph.Module{Name: "a", File: "a.py", Kind: graph.KindSource})
			g.MarkUnresolved(graph.UnresolvedImport{From: "a", Target: "x", Reason: graph.ReasonNotFound})
			g.MarkUnresolved(graph.UnresolvedImport{From: "a", Target: "y", Reason: graph.ReasonNotFound})
			return ResolveStats{Attempted: 3, Resolved: 1, Skipped: 2}, []string{"w1"}, nil
		},
	}
	s2 := fakeStage{
		name: "s2",
		fn: func(f *finder.Finder) (ResolveStats, []string, error) {
			g := f.Graph()
			g.AddModule(&graph.Module{Name: "b", File: "b.py", Kind: graph.KindSource})
			g.AddEdge("a", "b", graph.RelationHidden)
			return ResolveStats{Attempted: 1, Resolved: 1}, []string{"w2"}, nil
		},
	}

	results := NewChain(s1, s2).Run(f)

	if len(results) != 2 {
		t.Fatalf("expected 2 stage results, got %d", len(results))
	}
	if results[0].Stage != "s1" || results[1].Stage != "s2" {
		t.Fatalf("unexpected stage order: %+v", results)
	}
	if results[0].ModulesBefore != 0 || results[0].ModulesAfter != 1 {
		t.Fatalf("unexpected module transition for s1: %+v", results[0])
	}
	if results[0].UnresolvedBefore != 0 || results[0].UnresolvedAfter != 2 {
		t.Fatalf("unexpected unresolved transition for s1: %+v", results[0])
	}
	if results[1].ModulesAfter != 2 || results[1].EdgeCount != 1 {
		t.Fatalf("unexpected graph state after s2: %+v", results[1])
	}
	if got := Warnings(results); len(got) != 2 || got[0] != "w1" || got[1] != "w2" {
		t.Fatalf("unexpected warnings: %v", got)
	}
}

func TestChain_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	called := false

	results := NewChain(
		fakeStage{name: "fail", fn: func(*finder.Finder) (ResolveStats, []string, error) { return ResolveStats{}, nil, boom }},
		fakeStage{name: "never", fn: func(*finder.Finder) (ResolveStats, []string, error) {
			called = true
			return ResolveStats{}, nil, nil
		}},
	).Run(newFinder(t))

	if len(results) != 1 || !errors.Is(results[0].Err, boom) {
		t.Fatalf("expected a single failed stage, got %+v", results)
	}
	if called {
		t.Fatal("stage after a failure must not run")
	}
}

func TestDefaultChain_ClosureThenHidden(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"hw.py":        "import time\n",
		"_strptime.py": "import calendar\n",
		"calendar.py":  "",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	f := newFinder(t, "time")
	rules := hidden.Rules{"time": {"_strptime"}, "calendar": {"missing_mod"}}
	results := NewDefaultChain([]string{filepath.Join(dir, "hw.py")}, rules).Run(f)

	if len(results) != 2 || results[0].Stage != "closure" || results[1].Stage != "hidden" {
		t.Fatalf("unexpected stages: %+v", results)
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("stage %s failed: %v", r.Stage, r.Err)
		}
	}
	if results[0].ModulesAfter != 2 {
		t.Fatalf("closure should hold hw and time, got %d modules", results[0].ModulesAfter)
	}
	for _, name := range []string{"_strptime", "calendar"} {
		if !f.Has(name) {
			t.Fatalf("expected %s after hidden stage", name)
		}
	}
	if results[1].Stats.Skipped != 1 || len(results[1].Warnings) != 1 {
		t.Fatalf("expected one warning for missing_mod, got %+v", results[1])
	}
}

func TestDefaultChain_MissingEntry(t *testing.T) {
	results := NewDefaultChain([]string{filepath.Join(t.TempDir(), "nope.py")}, hidden.DefaultRules()).Run(newFinder(t))
	if len(results) != 1 || !errors.Is(results[0].Err, finder.ErrEntryScript) {
		t.Fatalf("expected entry script error from closure stage, got %+v", results)
	}
}
