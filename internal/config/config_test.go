package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pyfreeze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PYFREEZE_OUTPUT_DIR", "PYFREEZE_INTERPRETER", "PYFREEZE_PLATFORM", "PYFREEZE_PREFIX",
		"PYFREEZE_LAUNCHER", "PYFREEZE_DB", "PYFREEZE_PROBE", "WINDIR", "PYTHONPATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
entry_scripts:
  - hw.py
  - /abs/tool.py
interpreter: /opt/py/bin/python
platform: win32
search_path: [lib, /usr/lib/python2.7]
builtin_modules: [sys, time]
excludes: [tkinter]
replace_packages:
  _xmlplus: xml
hidden_imports:
  mylib: [mylib_plugins]
prefix: C:/Python27
python_version: "2.7"
probe: false
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, []string{filepath.Join(dir, "hw.py"), "/abs/tool.py"}, cfg.EntryScripts)
	assert.Equal(t, []string{filepath.Join(dir, "lib"), "/usr/lib/python2.7"}, cfg.SearchPath)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "/opt/py/bin/python", cfg.Interpreter)
	assert.Equal(t, "xml", cfg.ReplacePackages["_xmlplus"])
	assert.Equal(t, []string{"mylib_plugins"}, cfg.HiddenImports["mylib"])
	assert.False(t, cfg.ProbeEnabled())
	assert.Equal(t, path, cfg.Path)
}

func TestLoadConfig_DefaultLauncher(t *testing.T) {
	clearEnv(t)
	orig := executable
	executable = func() (string, error) { return "/opt/pyfreeze/bin/pyfreeze", nil }
	defer func() { executable = orig }()

	cfg, err := LoadConfig(writeConfig(t, "entry_scripts: [hw.py]\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/opt/pyfreeze/bin", DefaultLauncher), cfg.Launcher)
	assert.True(t, cfg.ProbeEnabled())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PYFREEZE_OUTPUT_DIR", "build/out")
	t.Setenv("PYFREEZE_PLATFORM", "cygwin")
	t.Setenv("PYFREEZE_DB", "runs.db")
	t.Setenv("PYFREEZE_PROBE", "off")
	t.Setenv("WINDIR", `C:\Windows`)
	t.Setenv("PYTHONPATH", "/first"+string(os.PathListSeparator)+"/second")

	cfg, err := LoadConfig(writeConfig(t, `
entry_scripts: [hw.py]
output_dir: dist
platform: win32
search_path: [/third]
`))
	require.NoError(t, err)

	assert.Equal(t, "build/out", cfg.OutputDir)
	assert.Equal(t, "cygwin", cfg.Platform)
	assert.Equal(t, "runs.db", cfg.CacheDB)
	assert.False(t, cfg.ProbeEnabled())
	assert.Equal(t, `C:\Windows`, cfg.WinDir)
	assert.Equal(t, []string{"/first", "/second", "/third"}, cfg.SearchPath)
}

func TestLoadConfig_WinDirFromFileWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("WINDIR", `C:\Windows`)

	cfg, err := LoadConfig(writeConfig(t, "entry_scripts: [hw.py]\nwindir: D:/Win\n"))
	require.NoError(t, err)
	assert.Equal(t, "D:/Win", cfg.WinDir)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		body    string
		wantErr error
		msg     string
	}{
		{name: "no entry scripts", body: "output_dir: dist\n", wantErr: ErrNoEntryScripts},
		{name: "empty entry script", body: "entry_scripts: ['']\n", msg: "entry_scripts[0] is empty"},
		{name: "bad version", body: "entry_scripts: [a.py]\npython_version: three\n", msg: "python_version"},
		{name: "invalid yaml", body: "entry_scripts: [a.py\n", msg: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}
