// Package cmd contains all CLI commands for ovocheck.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/config"
	"github.com/ovo-tools/ovocheck/internal/output"
	"github.com/ovo-tools/ovocheck/internal/project"
)

var (
	// Version is the current version of ovocheck
	Version = build.HostVersion

	// Global flags
	verbose      bool
	configPath   string
	forAgents    bool
	outputFormat string
	colorMode    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ovocheck",
	Short: "Static checker for oslo versioned objects",
	Long: `ovocheck type checks Python code that uses oslo.versionedobjects.

Versioned objects declare their attributes in a class level "fields" dict.
ovocheck reads those declarations and gives every registered class typed
attributes, so reads, writes and field constructor arguments are checked
the way mypy would check them with the versioned object plugin.

A class is augmented when one of its decorators or base classes has a
fullname containing a trigger substring. Triggers default to
VersionedObjectRegistry and can be changed in .ovocheck/config.yaml or with
the OVO_MYPY_DECORATOR_CLASSES and OVO_MYPY_BASE_CLASSES environment
variables (space separated).

Output Format:
  Diagnostics print as "file:line: severity: message" by default.
  Use --format yaml or --format json for structured output.

Examples:
  ovocheck check                         # Check the whole project
  ovocheck check nova/objects            # Check one package
  ovocheck check -c 'import os'          # Check a program given as a string
  ovocheck fields nova/objects/instance.py  # List synthesized attributes
  ovocheck init                          # Write .ovocheck/config.yaml

See 'ovocheck <command> --help' for command-specific options.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit status without a message. It is returned
// when the run itself worked but found problems.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, "ovocheck:", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and plugin logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: .ovocheck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format (text|yaml|json, default from config)")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "", "Color text output (auto|always|never, default from config)")
	rootCmd.Flags().BoolVar(&forAgents, "for-agents", false, "Output machine-readable capability discovery JSON")

	// Set custom help function to intercept --for-agents flag
	originalHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if forAgents {
			outputAgentHelp(cmd)
			return
		}
		originalHelp(cmd, args)
	})
}

// newLogger returns the progress logger: console lines on stderr with
// --verbose, otherwise a no-op.
func newLogger(w io.Writer) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.LowercaseLevelEncoder,
		ConsoleSeparator: " ",
	})
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), zapcore.DebugLevel))
}

// openProject loads the project for the working directory, or for the file
// given with --config.
func openProject(cmd *cobra.Command) (*project.Project, error) {
	log := newLogger(cmd.ErrOrStderr())

	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		if err != nil {
			return nil, err
		}
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		p := project.New(filepath.Dir(filepath.Dir(absPath)), cfg, log)
		if filepath.Base(filepath.Dir(absPath)) == config.ConfigDirName {
			p.ConfigDir = filepath.Dir(absPath)
		}
		return p, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return project.Open(cwd, log)
}

// formatter resolves the output flags against the configuration.
func formatter(cfg *config.Config) (output.Formatter, output.Format, error) {
	name := outputFormat
	if name == "" {
		name = cfg.Output.Format
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, "", err
	}
	mode := colorMode
	if mode == "" {
		mode = cfg.Output.Color
	}
	colors, err := output.ParseColorMode(mode)
	if err != nil {
		return nil, "", err
	}
	f, err := output.GetFormatter(format, colors)
	return f, format, err
}

// CommandInfo represents a command for agent discovery
type CommandInfo struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Usage       string        `json:"usage"`
	Flags       []FlagInfo    `json:"flags,omitempty"`
	Subcommands []CommandInfo `json:"subcommands,omitempty"`
	Examples    []string      `json:"examples,omitempty"`
}

// FlagInfo represents a command flag for agent discovery
type FlagInfo struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
}

// outputAgentHelp outputs machine-readable JSON describing all commands
func outputAgentHelp(cmd *cobra.Command) {
	root := buildCommandInfo(cmd.Root())

	out := map[string]interface{}{
		"version":      Version,
		"commands":     root.Subcommands,
		"global_flags": root.Flags,
		"environment": map[string]string{
			"OVO_MYPY_DECORATOR_CLASSES": "space separated decorator trigger substrings",
			"OVO_MYPY_BASE_CLASSES":      "space separated base class trigger substrings",
		},
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

// buildCommandInfo recursively builds command information for agent discovery
func buildCommandInfo(cmd *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Usage:       cmd.UseLine(),
	}

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		info.Flags = append(info.Flags, FlagInfo{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Description: f.Usage,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
		})
	})

	for _, sub := range cmd.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, buildCommandInfo(sub))
		}
	}

	if cmd.Example != "" {
		for _, line := range strings.Split(cmd.Example, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				info.Examples = append(info.Examples, trimmed)
			}
		}
	}
	return info
}
