package commands

import (
	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/scaffold"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new Council project",
	Long: `Initialize a new Council project in the current directory.

Creates a starter council.yml with three example personas (architect,
security reviewer, delivery pragmatist) and default deliberation tuning.

Examples:
  # Create council.yml in the current directory
  council init

  # Overwrite an existing configuration
  council init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing council.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if err := scaffold.CheckExisting(); err != nil {
			return printer.Error(
				"project already initialized",
				err.Error(),
				[]string{"Use 'council init --force' to reinitialize"},
			)
		}
	}

	if err := scaffold.Initialize(initForce); err != nil {
		return printer.Error(
			"initialization failed",
			err.Error(),
			nil,
		)
	}

	scaffold.PrintSuccess()
	return nil
}
