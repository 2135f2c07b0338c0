package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ovo-tools/ovocheck/internal/plugin"
)

// ConfigFileName is the name of the ovocheck configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the ovocheck configuration directory
const ConfigDirName = ".ovocheck"

// Config holds all ovocheck configuration
type Config struct {
	Check  CheckConfig  `yaml:"check"`
	Ovo    OvoConfig    `yaml:"ovo"`
	Output OutputConfig `yaml:"output"`
	Cache  CacheConfig  `yaml:"cache"`
}

// CheckConfig holds configuration for a checker run
type CheckConfig struct {
	Plugins          []string `yaml:"plugins"`
	StubPaths        []string `yaml:"stub_paths"`
	Exclude          []string `yaml:"exclude"`
	Verbosity        int      `yaml:"verbosity"`
	CheckUntypedDefs bool     `yaml:"check_untyped_defs"`
}

// OvoConfig holds the trigger substrings of the versioned object plugin.
// The OVO_MYPY_* environment variables still take precedence.
type OvoConfig struct {
	DecoratorClasses []string `yaml:"decorator_classes"`
	BaseClasses      []string `yaml:"base_classes"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	Format string `yaml:"format"`
	Color  string `yaml:"color"`
}

// CacheConfig holds configuration for the result cache
type CacheConfig struct {
	// Enabled is a pointer so an explicit false survives the merge.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether results are cached.
func (c CacheConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .ovocheck/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree.
func Load(workDir string) (*Config, error) {
	configDir, err := FindConfigDir(workDir)
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFromPath(filepath.Join(configDir, ConfigFileName))
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}

	// Relative stub paths are relative to the project, not the caller.
	root := filepath.Dir(filepath.Dir(path))
	for i, p := range merged.Check.StubPaths {
		if !filepath.IsAbs(p) {
			merged.Check.StubPaths[i] = filepath.Join(root, p)
		}
	}
	return merged, nil
}

// FindConfigDir locates the .ovocheck directory by walking up from startDir.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .ovocheck directory if it doesn't exist.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)
	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return configDir, nil
}

// Validate checks that config values are valid.
func Validate(cfg *Config) error {
	if !contains(ValidFormats, cfg.Output.Format) {
		return fmt.Errorf("%w: output.format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.Format)
	}
	if !contains(ValidColorModes, cfg.Output.Color) {
		return fmt.Errorf("%w: output.color must be one of %v, got %q",
			ErrInvalidConfig, ValidColorModes, cfg.Output.Color)
	}
	if cfg.Check.Verbosity < 0 {
		return fmt.Errorf("%w: check.verbosity must be non-negative, got %d",
			ErrInvalidConfig, cfg.Check.Verbosity)
	}
	if len(cfg.Check.Plugins) == 0 {
		return fmt.Errorf("%w: check.plugins must name at least one plugin", ErrInvalidConfig)
	}
	for _, pattern := range cfg.Check.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: bad exclude pattern %q", ErrInvalidConfig, pattern)
		}
	}
	return nil
}

// PluginOptions returns the host options handed to plugins.
func (c *Config) PluginOptions() plugin.Options {
	settings := map[string][]string{}
	if len(c.Ovo.DecoratorClasses) > 0 {
		settings["decorator_classes"] = c.Ovo.DecoratorClasses
	}
	if len(c.Ovo.BaseClasses) > 0 {
		settings["base_classes"] = c.Ovo.BaseClasses
	}
	return plugin.Options{
		Verbosity: c.Check.Verbosity,
		Settings:  map[string]map[string][]string{"ovo": settings},
	}
}

const defaultHeader = `# ovocheck configuration
#
# check.plugins      plugins loaded for every run
# check.stub_paths   directories searched for .pyi stubs before the bundled ones
# ovo.*              trigger substrings; OVO_MYPY_DECORATOR_CLASSES and
#                    OVO_MYPY_BASE_CLASSES override them
# output.format      text, yaml or json
# output.color       auto, always or never

`

// SaveDefault writes the default configuration to .ovocheck/config.yaml in
// workDir.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	data = append([]byte(defaultHeader), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return configPath, nil
}
