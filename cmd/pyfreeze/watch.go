package main

import (
	"context"
	"fmt"

	"pyfreeze/internal/pipeline"
	"pyfreeze/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch CONFIG_FILE",
		Short: "Rebuild the bundle whenever the configuration or a source module changes",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := args[0]
			logger := opts.logger()

			// A broken configuration is fatal up front. Later build failures
			// are logged and the previous watch list is kept.
			if _, err := loadConfig(configPath); err != nil {
				return err
			}

			build := func(ctx context.Context) ([]string, error) {
				cfg, err := loadConfig(configPath)
				if err != nil {
					return nil, err
				}
				f := pipeline.New(cfg, pipeline.Options{Logger: logger, Out: opts.stdout, DBPath: opts.dbPath})
				res, err := f.Run(ctx)
				if err != nil {
					return nil, err
				}
				return pipeline.SourceFiles(res.Graph, res.Prefix), nil
			}

			fmt.Fprintf(opts.stdout, "👀 Watching %s (Ctrl+C to stop)\n", configPath)
			return watch.New(build, logger).Run(cmd.Context(), configPath)
		},
	}
}
