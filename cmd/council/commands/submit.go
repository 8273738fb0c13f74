package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/watch"
	"github.com/quorumworks/council/pkg/council"
)

var (
	submitTimeout time.Duration
	submitContext []string
	submitWait    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit \"question\"",
	Short: "Submit a query to a running councild daemon",
	Long: `Submit a query to the instance's query channel for asynchronous
deliberation by the councild daemon.

With --wait, the command subscribes to the progress stream before
publishing and follows the deliberation until its terminal event.

Prerequisites:
  • A running councild daemon for this instance

Examples:
  # Fire and forget
  council submit "Should we migrate the billing service?"

  # Follow the deliberation to completion
  council submit --wait "Adopt the new framework?"`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().DurationVarP(&submitTimeout, "timeout", "t", 0, "Session deadline override (default: daemon's config)")
	submitCmd.Flags().StringArrayVar(&submitContext, "context", nil, "Context entry as key=value (repeatable)")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "Follow progress until the deliberation completes")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	queryContext, err := parseContextPairs(submitContext)
	if err != nil {
		return err
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", effectiveRedisURL()),
			map[string]string{"Instance": client.InstanceName()},
			[]string{"Check that Redis and councild are running for this instance"},
		)
	}

	query := &council.Query{
		ID:            uuid.New().String(),
		Text:          args[0],
		Context:       queryContext,
		TimeoutMs:     submitTimeout.Milliseconds(),
		SubmittedAtMs: time.Now().UnixMilli(),
	}

	// Subscribe before publishing so no progress event is missed
	if submitWait {
		sub, err := client.SubscribeProgress(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe to progress events: %w", err)
		}
		defer sub.Close()

		time.Sleep(100 * time.Millisecond)

		if err := client.PublishQuery(ctx, query); err != nil {
			return fmt.Errorf("failed to publish query: %w", err)
		}
		printer.Success("Query submitted: %s\n", query.ID)

		return followProgress(ctx, sub)
	}

	if err := client.PublishQuery(ctx, query); err != nil {
		return fmt.Errorf("failed to publish query: %w", err)
	}

	printer.Success("Query submitted: %s\n", query.ID)
	printer.Info("\nNext steps:\n")
	printer.Info("  • Follow live progress: council watch\n")
	printer.Info("  • Browse decisions:     council history\n")

	return nil
}

// followProgress prints progress events until the next deliberation reaches
// its terminal event. The query channel carries no session ID, so this
// follows the instance's stream; with one daemon per instance that is the
// deliberation just submitted.
func followProgress(ctx context.Context, sub *council.ProgressSubscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("%v\n", err)

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stdout, watch.FormatEvent(ev))

			if ev.Stage == council.StageComplete || ev.Stage == council.StageError {
				return nil
			}
		}
	}
}
