package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNoEntryScripts is returned when a configuration names no entry script.
var ErrNoEntryScripts = errors.New("entry_scripts is required")

const (
	DefaultOutputDir = "dist"
	DefaultLauncher  = "run.exe"
)

type Config struct {
	EntryScripts []string `yaml:"entry_scripts"`
	OutputDir    string   `yaml:"output_dir"`
	Launcher     string   `yaml:"launcher"`
	Interpreter  string   `yaml:"interpreter"`
	Platform     string   `yaml:"platform"`

	SearchPath        []string            `yaml:"search_path"`
	BuiltinModules    []string            `yaml:"builtin_modules"`
	ExtensionSuffixes []string            `yaml:"extension_suffixes"`
	Excludes          []string            `yaml:"excludes"`
	ReplacePackages   map[string]string   `yaml:"replace_packages"`
	HiddenImports     map[string][]string `yaml:"hidden_imports"`

	Prefix        string   `yaml:"prefix"`
	WinDir        string   `yaml:"windir"`
	PythonVersion string   `yaml:"python_version"` // major.minor
	CRTLibs       []string `yaml:"crt_libs"`

	CacheDB string `yaml:"cache_db"`
	Probe   *bool  `yaml:"probe"`

	// Path is the absolute path of the file the configuration came from.
	Path string `yaml:"-"`
}

// ProbeEnabled reports whether the interpreter should be asked for defaults.
func (c *Config) ProbeEnabled() bool {
	return c.Probe == nil || *c.Probe
}

// executable is swapped in tests.
var executable = os.Executable

func LoadConfig(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	baseDir := filepath.Dir(abs)

	// 1. Load .env files if they exist; existing variables win
	_ = godotenv.Load(filepath.Join(baseDir, ".env"))
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = abs

	// 3. Override with Environment Variables if present
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)
	resolvePaths(&cfg, baseDir)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PYFREEZE_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("PYFREEZE_INTERPRETER"); v != "" {
		cfg.Interpreter = v
	}
	if v := os.Getenv("PYFREEZE_PLATFORM"); v != "" {
		cfg.Platform = v
	}
	if v := os.Getenv("PYFREEZE_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv("PYFREEZE_LAUNCHER"); v != "" {
		cfg.Launcher = v
	}
	if v := os.Getenv("PYFREEZE_DB"); v != "" {
		cfg.CacheDB = v
	}
	if v := os.Getenv("PYFREEZE_PROBE"); v != "" {
		enabled := parseBool(v)
		cfg.Probe = &enabled
	}
	if cfg.WinDir == "" {
		cfg.WinDir = os.Getenv("WINDIR")
	}
	if v := os.Getenv("PYTHONPATH"); v != "" {
		var extra []string
		for _, dir := range filepath.SplitList(v) {
			if dir != "" {
				extra = append(extra, dir)
			}
		}
		cfg.SearchPath = append(extra, cfg.SearchPath...)
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Launcher == "" {
		if exe, err := executable(); err == nil {
			cfg.Launcher = filepath.Join(filepath.Dir(exe), DefaultLauncher)
		}
	}
	if cfg.Interpreter == "" {
		for _, name := range []string{"python3", "python"} {
			if path, err := exec.LookPath(name); err == nil {
				cfg.Interpreter = path
				break
			}
		}
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	for i, script := range cfg.EntryScripts {
		cfg.EntryScripts[i] = resolve(baseDir, script)
	}
	for i, dir := range cfg.SearchPath {
		cfg.SearchPath[i] = resolve(baseDir, dir)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var versionPattern = regexp.MustCompile(`^\d+\.\d+$`)

func validate(cfg *Config) error {
	if len(cfg.EntryScripts) == 0 {
		return ErrNoEntryScripts
	}
	for i, script := range cfg.EntryScripts {
		if strings.TrimSpace(script) == "" {
			return fmt.Errorf("entry_scripts[%d] is empty", i)
		}
	}
	if cfg.PythonVersion != "" && !versionPattern.MatchString(cfg.PythonVersion) {
		return fmt.Errorf("python_version must look like 3.12, got %q", cfg.PythonVersion)
	}
	for from, to := range cfg.ReplacePackages {
		if from == "" || to == "" {
			return fmt.Errorf("replace_packages entries need both names, got %q: %q", from, to)
		}
	}
	return nil
}
