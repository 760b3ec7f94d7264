// Package launcher runs a bundled script with the interpreter shipped next
// to it. The launcher binary is named after the script it starts.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// LibDir is the directory next to the launcher appended to PYTHONPATH.
	LibDir = "pylib"
	// RuntimeName is the interpreter file name next to the launcher, before
	// the platform's executable suffix.
	RuntimeName = "python"
)

// Plan is a resolved interpreter invocation.
type Plan struct {
	Interpreter string
	Script      string
	Args        []string
	Env         []string
}

// Resolve derives the invocation for the launcher at exe. environ is the
// environment to extend; goos selects the interpreter file name and list
// separator.
func Resolve(exe string, args, environ []string, goos string) (*Plan, error) {
	dir := filepath.Dir(exe)

	interpreter := filepath.Join(dir, RuntimeName)
	if goos == "windows" {
		interpreter += ".exe"
	}
	if !isFile(interpreter) {
		return nil, fmt.Errorf("can't find %s", interpreter)
	}

	script := strings.TrimSuffix(exe, filepath.Ext(exe)) + ".py"
	if !isFile(script) {
		return nil, fmt.Errorf("can't find %s", script)
	}

	return &Plan{
		Interpreter: interpreter,
		Script:      script,
		Args:        args,
		Env:         withLibDir(environ, filepath.Join(dir, LibDir), listSeparator(goos)),
	}, nil
}

// Run executes the plan and returns the interpreter's exit status.
func (p *Plan) Run() (int, error) {
	cmd := exec.Command(p.Interpreter, append([]string{p.Script}, p.Args...)...)
	cmd.Env = p.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 1, err
	}
	return 0, nil
}

// Main is the launcher entry point. It returns the process exit code.
func Main(args []string) int {
	exe, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}

	plan, err := Resolve(exe, args, os.Environ(), runtime.GOOS)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	code, err := plan.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return code
}

// withLibDir appends lib to PYTHONPATH, keeping any existing value first.
func withLibDir(environ []string, lib string, sep string) []string {
	const key = "PYTHONPATH="
	out := make([]string, 0, len(environ)+1)
	value := lib
	for _, kv := range environ {
		if strings.HasPrefix(kv, key) {
			if old := strings.TrimPrefix(kv, key); old != "" {
				value = old + sep + lib
			}
			continue
		}
		out = append(out, kv)
	}
	return append(out, key+value)
}

func listSeparator(goos string) string {
	if goos == "windows" {
		return ";"
	}
	return ":"
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
