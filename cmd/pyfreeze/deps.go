package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"pyfreeze/internal/graph"
	"pyfreeze/internal/pipeline"
	"pyfreeze/internal/storage"

	"github.com/spf13/cobra"
)

func newDepsCmd(opts *rootOptions) *cobra.Command {
	var why string
	var asJSON bool
	var last bool

	cmd := &cobra.Command{
		Use:   "deps CONFIG_FILE",
		Short: "Print the module closure of the entry scripts",
		Long: `Print the module closure of the entry scripts, hidden imports included.
Nothing is copied. With --why, print the import chain that pulls a module in.
With --last, print the graph recorded by the latest run instead of analyzing.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}

			var g *graph.Graph
			if last {
				g, err = recordedGraph(cmd.Context(), firstNonEmpty(opts.dbPath, cfg.CacheDB))
				if err != nil {
					return fatal(err)
				}
			} else {
				res, err := pipeline.New(cfg, pipeline.Options{Logger: opts.logger()}).Analyze(cmd.Context())
				if err != nil {
					return fatal(err)
				}
				g = res.Graph
			}

			out := cmd.OutOrStdout()
			switch {
			case why != "":
				return printWhy(cmd, g, cfg.EntryScripts, why)
			case asJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			default:
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "MODULE\tKIND\tIMPORTS\tIMPORTED BY\tFILE")
				for _, m := range g.Modules() {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", m.Name, m.Kind, len(g.GetDependencies(m.Name)), len(g.GetDependents(m.Name)), m.File)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				for _, u := range g.Unresolved {
					if u.Conditional || u.Reason == graph.ReasonExcluded {
						continue
					}
					fmt.Fprintf(out, "? %s (imported by %s, %s)\n", u.Target, u.From, u.Reason)
				}
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&why, "why", "", "Show the import chain leading to MODULE")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the graph as JSON")
	cmd.Flags().BoolVar(&last, "last", false, "Use the graph recorded by the latest run")
	return cmd
}

// recordedGraph loads the graph of the most recent run in the database at dbPath.
func recordedGraph(ctx context.Context, dbPath string) (*graph.Graph, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("--last needs a run database (--db or cache_db)")
	}

	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}
	defer store.Close()

	run, err := store.LatestRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return store.LoadGraph(ctx, run.ID)
}

func printWhy(cmd *cobra.Command, g *graph.Graph, entries []string, target string) error {
	if !g.Has(target) {
		return fatal(fmt.Errorf("module %s is not in the closure", target))
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
		path := g.PathTo(name, target)
		if path == nil {
			continue
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, strings.Join(path, " -> "))
		if importers := dependentNames(g, target); len(importers) > 0 {
			fmt.Fprintf(out, "imported by: %s\n", strings.Join(importers, ", "))
		}
		return nil
	}
	return fatal(fmt.Errorf("module %s is not reachable from the entry scripts", target))
}

func dependentNames(g *graph.Graph, name string) []string {
	var names []string
	for _, n := range g.GetDependents(name) {
		names = append(names, n.Module.Name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
