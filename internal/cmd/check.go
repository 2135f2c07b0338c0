package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/output"
	"github.com/ovo-tools/ovocheck/internal/project"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Type check Python files",
	Long: `Type check Python files with the configured plugins.

Paths are files or directories relative to the working directory. Without
paths the whole project is checked: every .py file below the directory that
holds .ovocheck/, skipping virtualenvs, caches, build output and the
patterns in check.exclude.

The exit status is 1 when any error is reported, 0 otherwise. Results are
cached in .ovocheck/cache.db and replayed while no input changes.`,
	Example: `  ovocheck check
  ovocheck check nova/objects tests/unit/objects
  ovocheck check -c 'from oslo_versionedobjects import base'
  ovocheck check --check-untyped-defs --format json`,
	RunE: runCheck,
}

var (
	checkCode        string
	checkNoCache     bool
	checkUntypedDefs bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	addSourceFlags(checkCmd)
	checkCmd.Flags().BoolVar(&checkUntypedDefs, "check-untyped-defs", false, "Also check the bodies of unannotated functions")
}

// addSourceFlags adds the flags selecting what to analyze.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&checkCode, "command", "c", "", "Program passed in as a string")
	cmd.Flags().BoolVar(&checkNoCache, "no-cache", false, "Ignore and do not update the result cache")
}

// runSources opens the project and checks what the flags and args select.
func runSources(cmd *cobra.Command, args []string, override func(*build.Options)) (*project.Project, *build.Result, bool, error) {
	p, err := openProject(cmd)
	if err != nil {
		return nil, nil, false, err
	}

	req := project.Request{
		Code:    checkCode,
		Paths:   args,
		NoCache: checkNoCache,
		Override: func(o *build.Options) {
			if verbose && o.PluginOptions.Verbosity == 0 {
				o.PluginOptions.Verbosity = 1
			}
			if override != nil {
				override(o)
			}
		},
	}
	if req.Code == "" && len(args) > 0 {
		// Paths on the command line are relative to where the user is.
		req.Paths = absPaths(args)
	}

	res, cached, err := p.Check(cmd.Context(), req)
	if err != nil {
		return nil, nil, false, err
	}
	return p, res, cached, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	p, res, cached, err := runSources(cmd, args, func(o *build.Options) {
		if checkUntypedDefs {
			o.CheckUntypedDefs = true
		}
	})
	if err != nil {
		return err
	}

	f, _, err := formatter(p.Config)
	if err != nil {
		return err
	}
	if err := f.Format(cmd.OutOrStdout(), output.NewCheckOutput(res, cached)); err != nil {
		return err
	}
	if res.ErrorCount() > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// absPaths makes command line paths absolute so they resolve against the
// working directory rather than the project root.
func absPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out[i] = p
	}
	return out
}
