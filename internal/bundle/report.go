package bundle

import (
	"errors"
	"fmt"
)

// ErrOutputDir is returned when the output directory cannot be created.
var ErrOutputDir = errors.New("can't create output directory")

type WarningKind string

const (
	WarnMissingModule   WarningKind = "missing_module"
	WarnDuplicateName   WarningKind = "duplicate_name"
	WarnMissingExtra    WarningKind = "missing_extra"
	WarnMissingLauncher WarningKind = "missing_launcher"
	WarnMissingRuntime  WarningKind = "missing_runtime"
	WarnCopyFailed      WarningKind = "copy_failed"
)

type Warning struct {
	Kind    WarningKind `json:"kind"`
	Path    string      `json:"path"`
	Message string      `json:"message,omitempty"`
}

func (w Warning) String() string {
	switch w.Kind {
	case WarnDuplicateName:
		return fmt.Sprintf("%s: %s", w.Message, w.Path)
	case WarnCopyFailed:
		return fmt.Sprintf("can't copy %s: %s", w.Path, w.Message)
	case WarnMissingModule:
		return fmt.Sprintf("can't find module %s (%s)", w.Message, w.Path)
	default:
		return fmt.Sprintf("can't find %s", w.Path)
	}
}

type EntryKind string

const (
	EntryModule   EntryKind = "module"
	EntryLauncher EntryKind = "launcher"
	EntryRuntime  EntryKind = "runtime"
	EntryExtra    EntryKind = "extra"
)

// Entry is one file or directory placed in the output directory.
type Entry struct {
	Kind   EntryKind `json:"kind"`
	Source string    `json:"source"`
	Dest   string    `json:"dest"`
}

type Report struct {
	OutputDir string    `json:"output_dir"`
	Copied    []Entry   `json:"copied"`
	Warnings  []Warning `json:"warnings,omitempty"`
	// Skipped lists modules without a file (builtins, namespace packages).
	Skipped []string `json:"skipped,omitempty"`
}

func (r *Report) warn(kind WarningKind, path, msg string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Path: path, Message: msg})
}

// WarningCount returns the number of warnings of the given kind.
func (r *Report) WarningCount(kind WarningKind) int {
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
