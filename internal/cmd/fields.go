package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ovo-tools/ovocheck/internal/output"
)

// fieldsCmd represents the fields command
var fieldsCmd = &cobra.Command{
	Use:   "fields [paths...]",
	Short: "List the attributes synthesized for versioned object classes",
	Long: `List the typed attributes the versioned object plugin adds to each
registered class, inherited ones included.

Inherited attributes are marked with the class that declared them.`,
	Example: `  ovocheck fields nova/objects/instance.py
  ovocheck fields -c "$(cat snippet.py)" --format yaml`,
	RunE: runFields,
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
	addSourceFlags(fieldsCmd)
}

func runFields(cmd *cobra.Command, args []string) error {
	p, res, _, err := runSources(cmd, args, nil)
	if err != nil {
		return err
	}

	f, _, err := formatter(p.Config)
	if err != nil {
		return err
	}
	return f.Format(cmd.OutOrStdout(), output.NewFieldsOutput(res))
}
