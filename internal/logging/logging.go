// Package logging builds the zerolog logger shared by pyfreeze components.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const EnvLogLevel = "PYFREEZE_LOG_LEVEL"

type Options struct {
	// Format is "console" (default) or "json".
	Format  string
	Verbose bool
	Out     io.Writer
}

// New returns a logger writing to opts.Out (stderr by default). Verbose
// selects debug level; otherwise PYFREEZE_LOG_LEVEL or info applies.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if v := os.Getenv(EnvLogLevel); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	if strings.EqualFold(opts.Format, "json") {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}

	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen, NoColor: !isTerminal(out)}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
