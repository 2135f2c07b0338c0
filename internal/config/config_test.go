package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !reflect.DeepEqual(cfg.Check.Plugins, []string{"ovo"}) {
		t.Errorf("expected default plugins [ovo], got %v", cfg.Check.Plugins)
	}
	if cfg.Output.Format != "text" {
		t.Errorf("expected format text, got %s", cfg.Output.Format)
	}
	if cfg.Output.Color != "auto" {
		t.Errorf("expected color auto, got %s", cfg.Output.Color)
	}
	if !cfg.Cache.IsEnabled() {
		t.Error("expected cache enabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"yaml format", func(c *Config) { c.Output.Format = "yaml" }, false},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, true},
		{"unknown color mode", func(c *Config) { c.Output.Color = "sometimes" }, true},
		{"negative verbosity", func(c *Config) { c.Check.Verbosity = -1 }, true},
		{"no plugins", func(c *Config) { c.Check.Plugins = nil }, true},
		{"bad exclude pattern", func(c *Config) { c.Check.Exclude = []string{"[a-"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	defaults := DefaultConfig()

	t.Run("empty loaded uses all defaults", func(t *testing.T) {
		merged := Merge(&Config{}, defaults)
		if !reflect.DeepEqual(merged, defaults) {
			t.Errorf("merged = %+v, want defaults %+v", merged, defaults)
		}
	})

	t.Run("loaded values take precedence", func(t *testing.T) {
		disabled := false
		loaded := &Config{
			Check:  CheckConfig{Verbosity: 2, StubPaths: []string{"stubs"}},
			Ovo:    OvoConfig{BaseClasses: []string{"MyBase"}},
			Output: OutputConfig{Format: "json"},
			Cache:  CacheConfig{Enabled: &disabled},
		}
		merged := Merge(loaded, defaults)

		if merged.Check.Verbosity != 2 {
			t.Errorf("expected verbosity 2, got %d", merged.Check.Verbosity)
		}
		if merged.Output.Format != "json" {
			t.Errorf("expected format json, got %s", merged.Output.Format)
		}
		if merged.Cache.IsEnabled() {
			t.Error("explicit cache.enabled: false was lost")
		}
		if !reflect.DeepEqual(merged.Ovo.BaseClasses, []string{"MyBase"}) {
			t.Errorf("expected base classes [MyBase], got %v", merged.Ovo.BaseClasses)
		}

		// Unset values should use defaults
		if !reflect.DeepEqual(merged.Ovo.DecoratorClasses, defaults.Ovo.DecoratorClasses) {
			t.Errorf("expected default decorator classes, got %v", merged.Ovo.DecoratorClasses)
		}
		if merged.Output.Color != defaults.Output.Color {
			t.Errorf("expected default color, got %s", merged.Output.Color)
		}
		if !reflect.DeepEqual(merged.Check.Plugins, defaults.Check.Plugins) {
			t.Errorf("expected default plugins, got %v", merged.Check.Plugins)
		}
	})
}

func TestPluginOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Check.Verbosity = 1
	cfg.Ovo.BaseClasses = []string{"MyBase", "OtherBase"}

	opts := cfg.PluginOptions()
	if opts.Verbosity != 1 {
		t.Errorf("Verbosity = %d, want 1", opts.Verbosity)
	}
	got := opts.PluginSettings("ovo")
	if !reflect.DeepEqual(got["base_classes"], []string{"MyBase", "OtherBase"}) {
		t.Errorf("base_classes = %v", got["base_classes"])
	}
	if !reflect.DeepEqual(got["decorator_classes"], []string{"VersionedObjectRegistry"}) {
		t.Errorf("decorator_classes = %v", got["decorator_classes"])
	}
}

func TestFindConfigDir(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "project")
	subDir := filepath.Join(projectDir, "subdir")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("no config dir returns error", func(t *testing.T) {
		_, err := FindConfigDir(subDir)
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	configDir := filepath.Join(projectDir, ConfigDirName)
	if err := os.Mkdir(configDir, 0755); err != nil {
		t.Fatal(err)
	}

	t.Run("finds config dir in current directory", func(t *testing.T) {
		found, err := FindConfigDir(projectDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})

	t.Run("finds config dir in parent directory", func(t *testing.T) {
		found, err := FindConfigDir(subDir)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if found != configDir {
			t.Errorf("expected %s, got %s", configDir, found)
		}
	})
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("creates config directory", func(t *testing.T) {
		dir, err := EnsureConfigDir(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := filepath.Join(tmpDir, ConfigDirName); dir != want {
			t.Errorf("expected %s, got %s", want, dir)
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("config directory not created: %v", err)
		}
	})

	t.Run("existing directory is reused", func(t *testing.T) {
		if _, err := EnsureConfigDir(tmpDir); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("file in the way", func(t *testing.T) {
		other := t.TempDir()
		if err := os.WriteFile(filepath.Join(other, ConfigDirName), nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := EnsureConfigDir(other); err == nil {
			t.Error("expected error when .ovocheck is a file")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("no config uses defaults", func(t *testing.T) {
		cfg, err := Load(t.TempDir())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !reflect.DeepEqual(cfg, DefaultConfig()) {
			t.Errorf("cfg = %+v, want defaults", cfg)
		}
	})

	t.Run("partial file is merged", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, `
check:
  stub_paths: [typings]
  verbosity: 1
ovo:
  base_classes: [MyBase]
output:
  format: yaml
`)
		cfg, err := Load(filepath.Join(root))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Output.Format != "yaml" || cfg.Output.Color != "auto" {
			t.Errorf("output = %+v", cfg.Output)
		}
		if want := []string{filepath.Join(root, "typings")}; !reflect.DeepEqual(cfg.Check.StubPaths, want) {
			t.Errorf("stub paths = %v, want %v", cfg.Check.StubPaths, want)
		}
		if cfg.Check.Verbosity != 1 {
			t.Errorf("verbosity = %d", cfg.Check.Verbosity)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, "output:\n  format: html\n")
		_, err := Load(root)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		root := t.TempDir()
		writeConfig(t, root, "check: [unclosed\n")
		if _, err := Load(root); err == nil {
			t.Error("expected a parse error")
		}
	})
}

func TestSaveDefault(t *testing.T) {
	root := t.TempDir()

	path, err := SaveDefault(root)
	if err != nil {
		t.Fatalf("SaveDefault: %v", err)
	}
	if want := filepath.Join(root, ConfigDirName, ConfigFileName); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("saved config = %+v, want defaults", cfg)
	}

	if _, err := SaveDefault(root); err == nil {
		t.Error("expected error when config already exists")
	}
}

func writeConfig(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, ConfigDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
