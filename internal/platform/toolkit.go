package platform

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ToolkitDirProvider locates the Tcl and Tk library directories of an
// interpreter installation.
type ToolkitDirProvider interface {
	ToolkitDirs(ctx context.Context) ([]string, error)
}

const toolkitScript = `import sys
try:
    import tkinter as tk
except ImportError:
    import Tkinter as tk
import _tkinter
t = _tkinter.create()
sys.stdout.write("%s\n%s\n%s\n" % (t.call("info", "library"), _tkinter.TCL_VERSION, _tkinter.TK_VERSION))
`

// InterpreterToolkit asks a Python interpreter where its Tcl library lives.
type InterpreterToolkit struct {
	Interpreter string
}

func (t InterpreterToolkit) ToolkitDirs(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, t.Interpreter, "-c", toolkitScript)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", t.Interpreter, err)
	}
	return parseToolkitOutput(string(output))
}

// parseToolkitOutput reads the Tcl library directory and the Tcl/Tk versions
// and returns the tcl<ver> and tk<ver> directories next to the library.
func parseToolkitOutput(output string) ([]string, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 3 {
		return nil, fmt.Errorf("unexpected toolkit output: %q", output)
	}
	libDir := strings.TrimSpace(lines[0])
	tclVersion := strings.TrimSpace(lines[1])
	tkVersion := strings.TrimSpace(lines[2])
	if libDir == "" || tclVersion == "" || tkVersion == "" {
		return nil, fmt.Errorf("unexpected toolkit output: %q", output)
	}

	base := filepath.Dir(libDir)
	return []string{
		filepath.Join(base, "tcl"+tclVersion),
		filepath.Join(base, "tk"+tkVersion),
	}, nil
}
