package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/archive"
	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/resolver"
)

var showBoard bool

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one deliberation session as JSON",
	Long: `Show a single persisted session record - query, roster, every
terminal opinion, and the decision - as pretty-printed JSON.

Accepts a full session UUID or a unique prefix of at least 6 characters,
as shown in the history table.

Examples:
  # Show a session by short ID
  council show 71f3207f

  # Include the session's blackboard entries
  council show 71f3207f --board`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showBoard, "board", false, "Also print the session's blackboard entries")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", effectiveRedisURL()),
			[]string{"Check that Redis is running for this instance"},
		)
	}

	sessionID, err := resolver.ResolveSessionID(ctx, client, args[0])
	if err != nil {
		if ambiguous, ok := err.(*resolver.AmbiguousError); ok {
			fmt.Fprintln(os.Stderr, resolver.FormatAmbiguousError(ambiguous))
			return fmt.Errorf("ambiguous session ID")
		}
		return err
	}

	if err := archive.GetRecord(ctx, client, sessionID, os.Stdout); err != nil {
		return err
	}

	if showBoard {
		entries, err := client.GetBoardEntries(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to fetch board entries: %w", err)
		}

		printer.Printf("\nBlackboard (%d entries):\n", len(entries))
		for _, e := range entries {
			printer.Printf("  [%s] %s: %s\n", e.Kind, e.PersonaID, e.Text)
		}
	}

	return nil
}
