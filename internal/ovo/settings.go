package ovo

import (
	"os"
	"strings"
)

// Environment variables that override the trigger sets. Values are space
// separated substrings.
const (
	DecoratorClassesEnv = "OVO_MYPY_DECORATOR_CLASSES"
	BaseClassesEnv      = "OVO_MYPY_BASE_CLASSES"
)

// Keys of the "ovo" settings block in the config file.
const (
	DecoratorClassesKey = "decorator_classes"
	BaseClassesKey      = "base_classes"
)

// DefaultTrigger is the built-in trigger for both sets. The registry is what
// generates the field attributes at runtime, so decorating a class with any
// of its methods (register, register_if, objectify) triggers augmentation.
const DefaultTrigger = "VersionedObjectRegistry"

// Settings is the configuration snapshot one hook invocation works with.
type Settings struct {
	DecoratorClasses TriggerSet
	BaseClasses      TriggerSet
}

// DefaultSettings returns the built-in trigger sets.
func DefaultSettings() Settings {
	return Settings{
		DecoratorClasses: TriggerSet{DefaultTrigger},
		BaseClasses:      TriggerSet{DefaultTrigger},
	}
}

// SettingsFromConfig overlays config file values on the built-in defaults.
func SettingsFromConfig(values map[string][]string) Settings {
	s := DefaultSettings()
	if v := nonEmpty(values[DecoratorClassesKey]); len(v) > 0 {
		s.DecoratorClasses = v
	}
	if v := nonEmpty(values[BaseClassesKey]); len(v) > 0 {
		s.BaseClasses = v
	}
	return s
}

// LookupEnv reads one environment variable.
type LookupEnv func(key string) (string, bool)

// LoadSettings reads the environment on top of defaults. A variable that is
// unset or blank keeps the default; malformed values simply fail to match.
func LoadSettings(lookup LookupEnv, defaults Settings) Settings {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := defaults
	if v, ok := lookup(DecoratorClassesEnv); ok {
		if ts := ParseTriggerSet(v); len(ts) > 0 {
			s.DecoratorClasses = ts
		}
	}
	if v, ok := lookup(BaseClassesEnv); ok {
		if ts := ParseTriggerSet(v); len(ts) > 0 {
			s.BaseClasses = ts
		}
	}
	return s
}

func nonEmpty(values []string) TriggerSet {
	var out TriggerSet
	for _, v := range values {
		out = append(out, strings.Fields(v)...)
	}
	return out
}
