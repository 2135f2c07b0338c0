package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ovo-tools/ovocheck/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .ovocheck/config.yaml",
	Long: `Create the .ovocheck directory and a commented default config.yaml in the
current directory. The directory marks the project root: module names are
computed relative to it and the result cache lives in it.

Examples:
  ovocheck init          # Initialize in current directory
  ovocheck init --force  # Overwrite an existing config.yaml`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	configPath := filepath.Join(cwd, config.ConfigDirName, config.ConfigFileName)
	_, err = os.Stat(configPath)
	if err == nil {
		if !initForce {
			relPath, _ := filepath.Rel(cwd, configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Already initialized at %s\n", relPath)
			return nil
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("removing existing config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config path: %w", err)
	}

	written, err := config.SaveDefault(cwd)
	if err != nil {
		return err
	}

	relPath, _ := filepath.Rel(cwd, written)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", relPath)
	return nil
}
