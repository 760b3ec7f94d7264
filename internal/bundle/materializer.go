// Package bundle copies a resolved module set and its runtime files into a
// flat output directory.
package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pyfreeze/internal/graph"
	"pyfreeze/internal/launcher"
	"pyfreeze/internal/platform"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type Request struct {
	OutputDir     string
	Modules       []*graph.Module
	ExtraFiles    []string
	Launcher      string
	RuntimeBinary string
	// EntryName is the entry script; its stem names the launcher copy.
	EntryName string
}

type Materializer struct {
	fs       afero.Fs
	platform platform.Platform
	logger   zerolog.Logger
}

func NewMaterializer(fs afero.Fs, p platform.Platform, logger zerolog.Logger) *Materializer {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Materializer{fs: fs, platform: p, logger: logger}
}

// Materialize fills req.OutputDir. Only a failure to create the output
// directory is returned as an error; everything else ends up in the report.
func (m *Materializer) Materialize(req Request) (*Report, error) {
	if err := m.ensureDir(req.OutputDir); err != nil {
		return nil, err
	}

	report := &Report{OutputDir: req.OutputDir}
	used := make(map[string]string)

	m.copyModules(req, report, used)
	m.copyLauncher(req, report, used)
	m.copyRuntime(req, report, used)
	m.copyExtras(req, report, used)

	for _, w := range report.Warnings {
		m.logger.Warn().Str("kind", string(w.Kind)).Msg(w.String())
	}
	return report, nil
}

func (m *Materializer) ensureDir(dir string) error {
	if info, err := m.fs.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%w %s: not a directory", ErrOutputDir, dir)
	}
	if err := m.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w %s: %v", ErrOutputDir, dir, err)
	}
	info, err := m.fs.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrOutputDir, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w %s: not a directory", ErrOutputDir, dir)
	}
	return nil
}

func (m *Materializer) copyModules(req Request, report *Report, used map[string]string) {
	mods := append([]*graph.Module(nil), req.Modules...)
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })

	for _, mod := range mods {
		if !mod.HasFile() {
			report.Skipped = append(report.Skipped, mod.Name)
			continue
		}
		if !m.isFile(mod.File) {
			report.warn(WarnMissingModule, mod.File, mod.Name)
			continue
		}
		m.place(EntryModule, mod.File, filepath.Base(mod.File), report, used)
	}
}

func (m *Materializer) copyLauncher(req Request, report *Report, used map[string]string) {
	if req.Launcher == "" {
		return
	}
	if !m.isFile(req.Launcher) {
		report.warn(WarnMissingLauncher, req.Launcher, "")
		return
	}

	stem := strings.TrimSuffix(filepath.Base(req.EntryName), filepath.Ext(req.EntryName))
	dest, ok := m.place(EntryLauncher, req.Launcher, stem+m.platform.ExecSuffix(), report, used)
	if !ok || m.platform.Kind == platform.Windows {
		return
	}
	if err := m.fs.Chmod(dest, 0o755); err != nil {
		report.warn(WarnCopyFailed, req.Launcher, err.Error())
	}
}

func (m *Materializer) copyRuntime(req Request, report *Report, used map[string]string) {
	if req.RuntimeBinary == "" {
		return
	}
	exe := req.RuntimeBinary
	if m.platform.Kind == platform.Cygwin && !strings.HasSuffix(strings.ToLower(exe), ".exe") {
		exe += ".exe"
	}
	if !m.isFile(exe) {
		report.warn(WarnMissingRuntime, exe, "")
		return
	}
	// The launcher looks for the interpreter under a fixed name.
	m.place(EntryRuntime, exe, launcher.RuntimeName+m.platform.ExecSuffix(), report, used)
}

func (m *Materializer) copyExtras(req Request, report *Report, used map[string]string) {
	for _, extra := range req.ExtraFiles {
		info, err := m.fs.Stat(extra)
		if err != nil {
			report.warn(WarnMissingExtra, extra, "")
			continue
		}
		if !info.IsDir() {
			m.place(EntryExtra, extra, filepath.Base(extra), report, used)
			continue
		}

		name := filepath.Base(extra)
		if prev, taken := used[name]; taken {
			report.warn(WarnDuplicateName, extra, fmt.Sprintf("%s already provided by %s", name, prev))
			continue
		}
		used[name] = extra
		dest := filepath.Join(report.OutputDir, name)
		if err := m.copyDir(extra, dest); err != nil {
			report.warn(WarnCopyFailed, extra, err.Error())
			continue
		}
		m.logger.Info().Str("src", extra).Str("dest", dest).Msg("copied directory")
		report.Copied = append(report.Copied, Entry{Kind: EntryExtra, Source: extra, Dest: dest})
	}
}

// place copies src to name inside the output directory. The first source to
// claim a name keeps it.
func (m *Materializer) place(kind EntryKind, src, name string, report *Report, used map[string]string) (string, bool) {
	if prev, taken := used[name]; taken {
		if prev != src {
			report.warn(WarnDuplicateName, src, fmt.Sprintf("%s already provided by %s", name, prev))
		}
		return "", false
	}
	used[name] = src

	dest := filepath.Join(report.OutputDir, name)
	if err := m.copyFile(src, dest); err != nil {
		report.warn(WarnCopyFailed, src, err.Error())
		return "", false
	}
	m.logger.Info().Str("src", src).Str("dest", dest).Msg("copied")
	report.Copied = append(report.Copied, Entry{Kind: kind, Source: src, Dest: dest})
	return dest, true
}

func (m *Materializer) isFile(path string) bool {
	info, err := m.fs.Stat(path)
	return err == nil && !info.IsDir()
}

// copyFile copies a file from src to dst.
func (m *Materializer) copyFile(src, dst string) error {
	srcFile, err := m.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	srcInfo, err := srcFile.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file: %w", err)
	}

	dstFile, err := m.fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}

// copyDir recursively copies a directory from src to dst.
func (m *Materializer) copyDir(src, dst string) error {
	srcInfo, err := m.fs.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if err := m.fs.MkdirAll(dst, srcInfo.Mode().Perm()|0o700); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	entries, err := afero.ReadDir(m.fs, src)
	if err != nil {
		return fmt.Errorf("failed to read source directory: %w", err)
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := m.copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := m.copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}
