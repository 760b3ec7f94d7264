// Package probe asks a Python interpreter about its installation.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// Info describes an interpreter installation.
type Info struct {
	Path              []string `json:"path"`
	BuiltinModules    []string `json:"builtin_modules"`
	Prefix            string   `json:"prefix"`
	Executable        string   `json:"executable"`
	Platform          string   `json:"platform"`
	VersionInfo       []int    `json:"version_info"`
	ExtensionSuffixes []string `json:"extension_suffixes"`
}

// Version returns "major.minor", or "" when unknown.
func (i *Info) Version() string {
	if len(i.VersionInfo) < 2 {
		return ""
	}
	return strconv.Itoa(i.VersionInfo[0]) + "." + strconv.Itoa(i.VersionInfo[1])
}

// Major returns the major version, or 0 when unknown.
func (i *Info) Major() int {
	if len(i.VersionInfo) == 0 {
		return 0
	}
	return i.VersionInfo[0]
}

const script = `import sys, json
try:
    import importlib.machinery as m
    suffixes = list(m.EXTENSION_SUFFIXES)
except ImportError:
    import imp
    suffixes = [s for s, _, t in imp.get_suffixes() if t == imp.C_EXTENSION]
json.dump({
    "path": [p for p in sys.path if p],
    "builtin_modules": list(sys.builtin_module_names),
    "prefix": sys.prefix,
    "executable": sys.executable,
    "platform": sys.platform,
    "version_info": list(sys.version_info[:3]),
    "extension_suffixes": suffixes,
}, sys.stdout)
`

// Probe runs interpreter and returns what it reports about itself.
func Probe(ctx context.Context, interpreter string) (*Info, error) {
	cmd := exec.CommandContext(ctx, interpreter, "-c", script)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe %s failed: %w", interpreter, err)
	}
	return Parse(output)
}

// Parse decodes the probe script output.
func Parse(output []byte) (*Info, error) {
	var info Info
	if err := json.Unmarshal(output, &info); err != nil {
		return nil, fmt.Errorf("failed to parse probe output: %w", err)
	}
	if len(info.VersionInfo) < 2 {
		return nil, fmt.Errorf("probe output lacks version_info")
	}
	return &info, nil
}
