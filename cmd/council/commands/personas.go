package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/config"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/internal/printer"
)

var personasConfigPath string

var personasCmd = &cobra.Command{
	Use:   "personas [persona-id]",
	Short: "List the configured personas, or show one in detail",
	Long: `List every persona in the roster with its weight and expertise, or
show a single persona by ID.

Examples:
  # List the full roster
  council personas

  # Show one persona
  council personas security`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPersonas,
}

func init() {
	personasCmd.Flags().StringVarP(&personasConfigPath, "config", "c", "council.yml", "Path to council.yml")
	rootCmd.AddCommand(personasCmd)
}

func runPersonas(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(personasConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Create one first:\n  council init"},
		)
	}

	roster, err := persona.FromConfig(cfg)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		info, err := roster.Get(args[0])
		if err != nil {
			return printer.Error(
				"persona not found",
				err.Error(),
				[]string{"List the roster:\n  council personas"},
			)
		}

		printer.Printf("ID:        %s\n", info.ID)
		printer.Printf("Name:      %s\n", info.Name)
		printer.Printf("Weight:    %.2f\n", info.Weight)
		printer.Printf("Expertise: %s\n", formatExpertise(info.Expertise))
		return nil
	}

	printer.Printf("%-14s %-24s %-7s %s\n", "ID", "NAME", "WEIGHT", "EXPERTISE")
	printer.Printf("%-14s %-24s %-7s %s\n", "--------------", "------------------------", "-------", "--------------------")
	for _, info := range roster.List() {
		printer.Printf("%-14s %-24s %-7.2f %s\n", info.ID, info.Name, info.Weight, formatExpertise(info.Expertise))
	}
	printer.Printf("\n%d personas configured\n", roster.Size())

	return nil
}

func formatExpertise(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(tags, ", ")
}
