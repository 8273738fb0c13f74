package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/resolver"
	"github.com/quorumworks/council/internal/watch"
)

var watchSession string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live deliberation progress",
	Long: `Stream the instance's deliberation progress events as they happen.

With --session, only that deliberation's events are shown and the stream
ends at its terminal event; otherwise the stream runs until interrupted.

Examples:
  # Watch everything on this instance
  council watch

  # Follow one deliberation to completion
  council watch --session 71f3207f`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchSession, "session", "s", "", "Only show events for this session (full ID or unique prefix)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

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

	sessionID := watchSession
	if sessionID != "" && len(sessionID) != 36 {
		// Prefixes only resolve against persisted sessions; a full UUID is
		// passed through untouched so a still-running deliberation can be
		// followed.
		resolved, err := resolver.ResolveSessionID(ctx, client, sessionID)
		if err != nil {
			return err
		}
		sessionID = resolved
	}

	printer.Info("Watching instance '%s' (Ctrl+C to stop)...\n\n", client.InstanceName())

	err = watch.StreamProgress(ctx, client, sessionID, os.Stdout)
	if err == context.Canceled {
		return nil
	}
	return err
}
