package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"pyfreeze/internal/config"
	"pyfreeze/internal/logging"
	"pyfreeze/internal/pipeline"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dbPath    string
	verbose   bool
	logFormat string

	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	failed, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return exitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Usage && failed != nil {
		fmt.Fprintln(stderr, "usage: "+failed.UseLine())
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitCode(err)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "pyfreeze CONFIG_FILE",
		Short:         "Bundle a Python program with the modules it imports",
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFreeze(cmd.Context(), opts, args[0])
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&opts.dbPath, "db", "d", "", "Path to the SQLite database recording each run")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(newDepsCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	return rootCmd
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(fmt.Errorf("wrong number of arguments"))
		}
		return nil
	}
}

func (o *rootOptions) logger() zerolog.Logger {
	return logging.New(logging.Options{Format: o.logFormat, Verbose: o.verbose, Out: o.stderr})
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fatal(fmt.Errorf("failed to load config: %w", err))
	}
	return cfg, nil
}

func runFreeze(ctx context.Context, opts *rootOptions, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	f := pipeline.New(cfg, pipeline.Options{
		Logger: opts.logger(),
		Out:    opts.stdout,
		DBPath: opts.dbPath,
	})
	if _, err := f.Run(ctx); err != nil {
		return fatal(err)
	}
	return nil
}
