package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pyfreeze/internal/bundle"
	"pyfreeze/internal/config"
	"pyfreeze/internal/finder"
	"pyfreeze/internal/graph"
	"pyfreeze/internal/hidden"
	"pyfreeze/internal/platform"
	"pyfreeze/internal/probe"
	"pyfreeze/internal/resolver"
	"pyfreeze/internal/storage"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ProbeFunc asks an interpreter about its installation.
type ProbeFunc func(ctx context.Context, interpreter string) (*probe.Info, error)

type Options struct {
	Logger zerolog.Logger
	// Out receives progress lines; nil discards them.
	Out io.Writer
	Fs  afero.Fs
	// DBPath overrides the configured cache_db.
	DBPath  string
	Probe   ProbeFunc
	Toolkit platform.ToolkitDirProvider
}

// Freeze turns a configuration into a bundle.
type Freeze struct {
	cfg  *config.Config
	opts Options
}

// Result describes one run.
type Result struct {
	RunID    string
	Platform platform.Platform
	Graph    *graph.Graph
	Stages   []resolver.StageResult
	Report   *bundle.Report
	Prefix   string
	Warnings []string
}

func New(cfg *config.Config, opts Options) *Freeze {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Probe == nil {
		opts.Probe = probe.Probe
	}
	return &Freeze{cfg: cfg, opts: opts}
}

// Analyze computes the corrected module closure without writing anything.
func (f *Freeze) Analyze(ctx context.Context) (*Result, error) {
	res, _, err := f.analyze(ctx)
	return res, err
}

func (f *Freeze) analyze(ctx context.Context) (*Result, settings, error) {
	info := f.probeStage(ctx)
	set := resolveSettings(f.cfg, info)

	g, stages, err := f.analyzeStage(set)
	if err != nil {
		return nil, set, err
	}

	res := &Result{Platform: set.Platform, Graph: g, Stages: stages, Prefix: set.Env.Prefix}
	res.Warnings = append(res.Warnings, unresolvedWarnings(g, f.opts.Logger)...)
	for _, w := range resolver.Warnings(stages) {
		f.opts.Logger.Warn().Msg(w)
		res.Warnings = append(res.Warnings, w)
	}
	return res, set, nil
}

// Run analyses the entry scripts, copies the bundle and records the run.
func (f *Freeze) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	res, set, err := f.analyze(ctx)
	if err != nil {
		return nil, err
	}

	extras := f.extrasStage(ctx, set, res)

	report, err := f.materializeStage(set, res.Graph, extras)
	if err != nil {
		return nil, err
	}
	res.Report = report
	for _, w := range report.Warnings {
		res.Warnings = append(res.Warnings, w.String())
	}

	f.persistStage(ctx, res, started)

	fmt.Fprintf(f.opts.Out, "✅ Bundle written to %s: %d files, %d warnings.\n", report.OutputDir, len(report.Copied), len(res.Warnings))
	return res, nil
}

func (f *Freeze) probeStage(ctx context.Context) *probe.Info {
	if !f.cfg.ProbeEnabled() || f.cfg.Interpreter == "" {
		return nil
	}
	info, err := f.opts.Probe(ctx, f.cfg.Interpreter)
	if err != nil {
		f.opts.Logger.Warn().Err(err).Str("interpreter", f.cfg.Interpreter).Msg("interpreter probe failed, using configured values")
		return nil
	}
	fmt.Fprintf(f.opts.Out, "🐍 Using %s (Python %s, %s)\n", f.cfg.Interpreter, info.Version(), info.Platform)
	return info
}

func (f *Freeze) analyzeStage(set settings) (*graph.Graph, []resolver.StageResult, error) {
	fmt.Fprintf(f.opts.Out, "🔍 Analyzing %d entry scripts...\n", len(f.cfg.EntryScripts))

	fd, err := finder.New(set.FinderOptions, f.opts.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create finder: %w", err)
	}

	rules := hidden.DefaultRules().Merge(hidden.Rules(f.cfg.HiddenImports))
	stages := resolver.NewDefaultChain(f.cfg.EntryScripts, rules).Run(fd)
	for _, s := range stages {
		if s.Err != nil {
			return nil, stages, fmt.Errorf("%s stage failed: %w", s.Stage, s.Err)
		}
		fmt.Fprintf(f.opts.Out, "  -> %s: modules %d -> %d, unresolved %d\n", s.Stage, s.ModulesBefore, s.ModulesAfter, s.UnresolvedAfter)
	}

	g := fd.Graph()
	fmt.Fprintln(f.opts.Out, closureSummary(g))
	return g, stages, nil
}

func closureSummary(g *graph.Graph) string {
	line := fmt.Sprintf("📊 Closure: %d modules (%s), %d imports", g.Len(), formatCounts(g.KindCounts()), len(g.Edges))
	if len(g.Unresolved) > 0 {
		line += fmt.Sprintf(", %d unresolved (%s)", len(g.Unresolved), formatCounts(g.UnresolvedReasonCounts()))
	}
	return line + "."
}

// formatCounts renders counts as "key n, key n" in key order.
func formatCounts[K ~string](counts map[K]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[K(k)]))
	}
	return strings.Join(parts, ", ")
}

func (f *Freeze) extrasStage(ctx context.Context, set settings, res *Result) []string {
	toolkit := f.opts.Toolkit
	if toolkit == nil && f.cfg.Interpreter != "" {
		toolkit = platform.InterpreterToolkit{Interpreter: f.cfg.Interpreter}
	}

	r := platform.NewResolver(set.Env, toolkit)
	r.Fs = f.opts.Fs
	files, warnings := r.ExtraFiles(ctx, set.Platform, res.Graph.Has)
	for _, w := range warnings {
		f.opts.Logger.Warn().Str("platform", set.Platform.String()).Msg(w)
		res.Warnings = append(res.Warnings, w)
	}
	return files
}

func (f *Freeze) materializeStage(set settings, g *graph.Graph, extras []string) (*bundle.Report, error) {
	fmt.Fprintf(f.opts.Out, "📦 Copying bundle into %s...\n", f.cfg.OutputDir)

	m := bundle.NewMaterializer(f.opts.Fs, set.Platform, f.opts.Logger)
	report, err := m.Materialize(bundle.Request{
		OutputDir:     f.cfg.OutputDir,
		Modules:       g.Modules(),
		ExtraFiles:    extras,
		Launcher:      f.cfg.Launcher,
		RuntimeBinary: set.RuntimeBinary,
		EntryName:     f.cfg.EntryScripts[0],
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (f *Freeze) persistStage(ctx context.Context, res *Result, started time.Time) {
	dbPath := firstNonEmpty(f.opts.DBPath, f.cfg.CacheDB)
	if dbPath == "" {
		return
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		f.opts.Logger.Warn().Err(err).Str("db", dbPath).Msg("failed to open run database")
		return
	}
	defer store.Close()

	run := &storage.Run{
		StartedAt: started,
		Platform:  res.Platform.String(),
		OutputDir: f.cfg.OutputDir,
		Warnings:  len(res.Warnings),
	}
	if err := store.SaveRun(ctx, run, res.Graph); err != nil {
		f.opts.Logger.Warn().Err(err).Str("db", dbPath).Msg("failed to record run")
		return
	}
	res.RunID = run.ID
	f.opts.Logger.Debug().Str("run", run.ID).Str("db", dbPath).Msg("run recorded")
}

// unresolvedWarnings logs every import the finder could not follow.
// Conditional misses are expected (try/except fallbacks) and logged at debug.
func unresolvedWarnings(g *graph.Graph, logger zerolog.Logger) []string {
	var out []string
	for _, u := range g.Unresolved {
		if u.Reason == graph.ReasonExcluded {
			continue
		}
		msg := fmt.Sprintf("can't find module %s (imported by %s)", u.Target, u.From)
		if u.Reason == graph.ReasonDynamic {
			msg = fmt.Sprintf("can't follow dynamic import %s (in %s)", u.Target, u.From)
		}
		if u.Conditional {
			logger.Debug().Str("file", u.Evidence.Filepath).Int("line", u.Evidence.Line).Msg(msg)
			continue
		}
		logger.Warn().Str("file", u.Evidence.Filepath).Int("line", u.Evidence.Line).Msg(msg)
		out = append(out, msg)
	}
	return out
}

// SourceFiles lists the module files of g that lie outside prefix, the
// files a user edits between runs.
func SourceFiles(g *graph.Graph, prefix string) []string {
	var files []string
	for _, m := range g.Modules() {
		if !m.HasFile() || m.Kind == graph.KindBuiltin {
			continue
		}
		if prefix != "" && isWithin(m.File, prefix) {
			continue
		}
		files = append(files, m.File)
	}
	return files
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
