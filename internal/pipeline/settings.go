package pipeline

import (
	"pyfreeze/internal/config"
	"pyfreeze/internal/finder"
	"pyfreeze/internal/platform"
	"pyfreeze/internal/probe"
)

// defaultReplacePackages maps packages that install themselves under
// another package's name.
var defaultReplacePackages = map[string]string{"_xmlplus": "xml"}

// settings are the effective inputs of one run: configured values first,
// interpreter-reported values for whatever the configuration left unset.
type settings struct {
	Platform      platform.Platform
	FinderOptions finder.Options
	Env           platform.Env
	RuntimeBinary string
}

func resolveSettings(cfg *config.Config, info *probe.Info) settings {
	if info == nil {
		info = &probe.Info{}
	}

	platformID := firstNonEmpty(cfg.Platform, info.Platform, platform.Current().ID)
	p := platform.Parse(platformID)

	version := firstNonEmpty(cfg.PythonVersion, info.Version())

	opts := finder.Options{
		SearchPath:        mergeUnique(cfg.SearchPath, info.Path),
		BuiltinModules:    firstNonEmptySlice(cfg.BuiltinModules, info.BuiltinModules),
		ExtensionSuffixes: firstNonEmptySlice(cfg.ExtensionSuffixes, info.ExtensionSuffixes, defaultExtensionSuffixes(p)),
		Excludes:          cfg.Excludes,
		ReplacePackages:   mergeReplacements(defaultReplacePackages, cfg.ReplacePackages),
		ImplicitRelative:  len(version) > 1 && version[:2] == "2.",
	}

	return settings{
		Platform:      p,
		FinderOptions: opts,
		Env: platform.Env{
			Prefix:  firstNonEmpty(cfg.Prefix, info.Prefix),
			WinDir:  cfg.WinDir,
			Version: version,
			CRTLibs: cfg.CRTLibs,
		},
		// The probe ran cfg.Interpreter, so sys.executable names the same
		// interpreter with its PATH lookup and symlinks resolved.
		RuntimeBinary: firstNonEmpty(info.Executable, cfg.Interpreter),
	}
}

func defaultExtensionSuffixes(p platform.Platform) []string {
	if p.Kind == platform.Windows {
		return []string{".pyd", ".dll"}
	}
	return []string{".so"}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmptySlice(values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

func mergeUnique(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, item := range list {
			if item == "" || seen[item] {
				continue
			}
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

func mergeReplacements(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
