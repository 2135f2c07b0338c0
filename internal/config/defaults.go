package config

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	enabled := true
	return &Config{
		Check: CheckConfig{
			Plugins: []string{"ovo"},
			Exclude: []string{
				"*_pb2.py",
				"setup.py",
			},
		},
		Ovo: OvoConfig{
			DecoratorClasses: []string{"VersionedObjectRegistry"},
			BaseClasses:      []string{"VersionedObjectRegistry"},
		},
		Output: OutputConfig{
			Format: "text",
			Color:  "auto",
		},
		Cache: CacheConfig{
			Enabled: &enabled,
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
func Merge(loaded, defaults *Config) *Config {
	return &Config{
		Check:  mergeCheckConfig(loaded.Check, defaults.Check),
		Ovo:    mergeOvoConfig(loaded.Ovo, defaults.Ovo),
		Output: mergeOutputConfig(loaded.Output, defaults.Output),
		Cache:  mergeCacheConfig(loaded.Cache, defaults.Cache),
	}
}

func mergeCheckConfig(loaded, defaults CheckConfig) CheckConfig {
	result := loaded
	if len(loaded.Plugins) == 0 {
		result.Plugins = defaults.Plugins
	}
	if len(loaded.Exclude) == 0 {
		result.Exclude = defaults.Exclude
	}
	if len(loaded.StubPaths) == 0 {
		result.StubPaths = defaults.StubPaths
	}
	// Verbosity and CheckUntypedDefs default to their zero values.
	return result
}

func mergeOvoConfig(loaded, defaults OvoConfig) OvoConfig {
	result := OvoConfig{
		DecoratorClasses: loaded.DecoratorClasses,
		BaseClasses:      loaded.BaseClasses,
	}
	if len(result.DecoratorClasses) == 0 {
		result.DecoratorClasses = defaults.DecoratorClasses
	}
	if len(result.BaseClasses) == 0 {
		result.BaseClasses = defaults.BaseClasses
	}
	return result
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	result := loaded
	if loaded.Format == "" {
		result.Format = defaults.Format
	}
	if loaded.Color == "" {
		result.Color = defaults.Color
	}
	return result
}

func mergeCacheConfig(loaded, defaults CacheConfig) CacheConfig {
	if loaded.Enabled != nil {
		return loaded
	}
	return defaults
}

// ValidFormats lists the valid values for output.format
var ValidFormats = []string{"text", "yaml", "json"}

// ValidColorModes lists the valid values for output.color
var ValidColorModes = []string{"auto", "always", "never"}

func contains(values []string, v string) bool {
	for _, valid := range values {
		if v == valid {
			return true
		}
	}
	return false
}
