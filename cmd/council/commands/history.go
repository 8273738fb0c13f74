package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/archive"
	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/timespec"
)

var (
	historySince         string
	historyUntil         string
	historyDegraded      bool
	historyMinConfidence float64
	historyOutput        string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List persisted deliberation sessions",
	Long: `List the instance's persisted deliberation sessions with their
decisions, filtered and formatted for inspection.

Time filters accept Go durations ("2h" means two hours ago), calendar
dates ("2026-08-24"), or RFC3339 timestamps.

Examples:
  # All sessions, newest at the bottom
  council history

  # Only degraded decisions from the last day
  council history --since 24h --degraded

  # Stream complete records into jq
  council history --output jsonl | jq .decision.recommendation`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only sessions completed after this time")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Only sessions completed before this time")
	historyCmd.Flags().BoolVar(&historyDegraded, "degraded", false, "Only sessions with degraded decisions")
	historyCmd.Flags().Float64Var(&historyMinConfidence, "min-confidence", 0, "Only decisions at or above this confidence")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "default", "Output format: default or jsonl")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sinceMS, untilMS, err := timespec.ParseRange(historySince, historyUntil)
	if err != nil {
		return err
	}

	var format archive.OutputFormat
	switch historyOutput {
	case "default":
		format = archive.OutputFormatDefault
	case "jsonl":
		format = archive.OutputFormatJSONL
	default:
		return fmt.Errorf("unknown output format: %s (use 'default' or 'jsonl')", historyOutput)
	}

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

	filters := &archive.FilterCriteria{
		SinceTimestampMs: sinceMS,
		UntilTimestampMs: untilMS,
		DegradedOnly:     historyDegraded,
		MinConfidence:    historyMinConfidence,
	}

	return archive.ListRecords(ctx, client, format, filters, os.Stdout)
}
