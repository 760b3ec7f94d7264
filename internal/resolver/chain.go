package resolver

import (
	"pyfreeze/internal/finder"
	"pyfreeze/internal/hidden"
)

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// Stage grows the finder's graph in one step of dependency resolution.
type Stage interface {
	Name() string
	Resolve(f *finder.Finder) (ResolveStats, []string, error)
}

type StageResult struct {
	Stage            string
	Stats            ResolveStats
	ModulesBefore    int
	ModulesAfter     int
	UnresolvedBefore int
	UnresolvedAfter  int
	EdgeCount        int
	Warnings         []string
	Err              error
}

type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// NewDefaultChain builds the static closure of entries and then applies the
// hidden-import rules to it.
func NewDefaultChain(entries []string, rules hidden.Rules) *Chain {
	return NewChain(NewClosureStage(entries), NewHiddenStage(rules))
}

// Run executes every stage in order and stops at the first error.
func (c *Chain) Run(f *finder.Finder) []StageResult {
	if f == nil {
		return nil
	}

	var out []StageResult
	for _, s := range c.stages {
		g := f.Graph()
		modsBefore, unresolvedBefore := g.Len(), len(g.Unresolved)
		stats, warnings, err := s.Resolve(f)
		g = f.Graph()
		out = append(out, StageResult{
			Stage:            s.Name(),
			Stats:            stats,
			ModulesBefore:    modsBefore,
			ModulesAfter:     g.Len(),
			UnresolvedBefore: unresolvedBefore,
			UnresolvedAfter:  len(g.Unresolved),
			EdgeCount:        len(g.Edges),
			Warnings:         warnings,
			Err:              err,
		})
		if err != nil {
			break
		}
	}
	return out
}

// Warnings collects the warnings of every stage result.
func Warnings(results []StageResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Warnings...)
	}
	return out
}

type ClosureStage struct {
	entries []string
}

func NewClosureStage(entries []string) *ClosureStage {
	return &ClosureStage{entries: entries}
}

func (s *ClosureStage) Name() string {
	return "closure"
}

func (s *ClosureStage) Resolve(f *finder.Finder) (ResolveStats, []string, error) {
	g, err := f.BuildClosure(s.entries)
	if err != nil {
		return ResolveStats{}, nil, err
	}
	return ResolveStats{
		Attempted: g.Len() + len(g.Unresolved),
		Resolved:  g.Len(),
		Skipped:   len(g.Unresolved),
	}, nil, nil
}

type HiddenStage struct {
	rules hidden.Rules
}

func NewHiddenStage(rules hidden.Rules) *HiddenStage {
	return &HiddenStage{rules: rules}
}

func (s *HiddenStage) Name() string {
	return "hidden"
}

func (s *HiddenStage) Resolve(f *finder.Finder) (ResolveStats, []string, error) {
	res := hidden.Apply(f, s.rules)

	attempted := 0
	for _, trigger := range res.Applied {
		attempted += len(s.rules[trigger])
	}

	var warnings []string
	for _, w := range res.Warnings {
		warnings = append(warnings, w.String())
	}
	return ResolveStats{
		Attempted: attempted,
		Resolved:  attempted - len(res.Warnings),
		Skipped:   len(res.Warnings),
	}, warnings, nil
}
