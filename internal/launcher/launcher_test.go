package launcher

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "hw.exe")
	for _, name := range []string{"hw.exe", "hw.py", "python.exe", "python"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o755))
	}

	t.Run("Windows layout", func(t *testing.T) {
		plan, err := Resolve(exe, []string{"a b", "c"}, []string{"HOME=/h", "PYTHONPATH=C:\\extra"}, "windows")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "python.exe"), plan.Interpreter)
		assert.Equal(t, filepath.Join(dir, "hw.py"), plan.Script)
		assert.Equal(t, []string{"a b", "c"}, plan.Args)
		assert.Equal(t, []string{"HOME=/h", "PYTHONPATH=C:\\extra;" + filepath.Join(dir, LibDir)}, plan.Env)
	})

	t.Run("POSIX layout without PYTHONPATH", func(t *testing.T) {
		plan, err := Resolve(filepath.Join(dir, "hw"), nil, []string{"HOME=/h"}, "linux")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "python"), plan.Interpreter)
		assert.Equal(t, filepath.Join(dir, "hw.py"), plan.Script)
		assert.Contains(t, plan.Env, "PYTHONPATH="+filepath.Join(dir, LibDir))
	})
}

func TestResolve_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := Resolve(filepath.Join(dir, "app"), nil, nil, "linux")
	require.Error(t, err)
	assert.Equal(t, "can't find "+filepath.Join(dir, "python"), err.Error())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "python"), []byte("x"), 0o755))
	_, err = Resolve(filepath.Join(dir, "app"), nil, nil, "linux")
	require.Error(t, err)
	assert.Equal(t, "can't find "+filepath.Join(dir, "app.py"), err.Error())
}

func TestPlan_RunReturnsExitStatus(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as interpreter")
	}
	dir := t.TempDir()
	interp := filepath.Join(dir, "python")
	require.NoError(t, os.WriteFile(interp, []byte("#!/bin/sh\nexit 3\n"), 0o755))

	code, err := (&Plan{Interpreter: interp, Script: filepath.Join(dir, "app.py")}).Run()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}
