package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumworks/council/internal/archive"
	"github.com/quorumworks/council/internal/config"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/internal/printer"
	"github.com/quorumworks/council/internal/session"
	"github.com/quorumworks/council/pkg/council"
)

var (
	deliberateConfigPath string
	deliberateTimeout    time.Duration
	deliberateContext    []string
	deliberateJSON       bool
	deliberateNoSave     bool
)

var deliberateCmd = &cobra.Command{
	Use:   "deliberate \"question\"",
	Short: "Run a synchronous deliberation and print the decision",
	Long: `Run a full deliberation in-process: fan the question out to every
configured persona, gather their opinions under the deadline, and reduce
them into a single decision.

The finished session is persisted to Redis (skip with --no-save) and
progress events are published for any live watchers. Redis being down never
blocks the deliberation; persistence is simply skipped with a warning.

Examples:
  # Ask the council a question
  council deliberate "Should we migrate the billing service to the new queue?"

  # Pass structured context and a tighter deadline
  council deliberate "Adopt the new framework?" --context risk_tolerance=low --timeout 10s

  # Machine-readable output
  council deliberate "Ship on Friday?" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDeliberate,
}

func init() {
	deliberateCmd.Flags().StringVarP(&deliberateConfigPath, "config", "c", "council.yml", "Path to council.yml")
	deliberateCmd.Flags().DurationVarP(&deliberateTimeout, "timeout", "t", 0, "Session deadline override (default: config session_timeout)")
	deliberateCmd.Flags().StringArrayVar(&deliberateContext, "context", nil, "Context entry as key=value (repeatable)")
	deliberateCmd.Flags().BoolVar(&deliberateJSON, "json", false, "Print the full session record as JSON")
	deliberateCmd.Flags().BoolVar(&deliberateNoSave, "no-save", false, "Do not persist the session record to Redis")
	rootCmd.AddCommand(deliberateCmd)
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	queryText := args[0]

	cfg, err := config.Load(deliberateConfigPath)
	if err != nil {
		return printer.Error(
			"failed to load configuration",
			err.Error(),
			[]string{"Create one first:\n  council init", fmt.Sprintf("Or point at it explicitly:\n  council deliberate --config path/to/council.yml %q", queryText)},
		)
	}

	roster, err := persona.FromConfig(cfg)
	if err != nil {
		return fmt.Errorf("failed to build persona roster: %w", err)
	}

	queryContext, err := parseContextPairs(deliberateContext)
	if err != nil {
		return err
	}

	// Redis is optional for synchronous runs: without it the deliberation
	// still completes, it just isn't persisted or streamed.
	var publisher session.Publisher = session.NopPublisher{}
	client, err := newClient()
	if err == nil {
		if pingErr := client.Ping(ctx); pingErr == nil {
			publisher = client
			defer client.Close()
		} else {
			printer.Warning("Redis unavailable, running without persistence: %v\n", pingErr)
			client.Close()
			client = nil
		}
	} else {
		printer.Warning("Redis unavailable, running without persistence: %v\n", err)
		client = nil
	}

	s, err := session.New(queryText, queryContext, deliberateTimeout, roster,
		publisher, session.SettingsFromConfig(cfg))
	if err != nil {
		return err
	}

	if !deliberateJSON {
		printer.Step("Deliberating with %d personas...\n", roster.Size())
	}

	decision, err := s.Run(ctx)
	if err != nil {
		return err
	}

	record, err := s.Record()
	if err != nil {
		return err
	}

	if client != nil && !deliberateNoSave {
		if saveErr := client.SaveRecord(ctx, record, s.BoardEntries()); saveErr != nil {
			printer.Warning("Failed to persist session record: %v\n", saveErr)
		}
	}

	if deliberateJSON {
		return archive.FormatSingleJSON(os.Stdout, record)
	}

	printDecision(record, decision)
	return nil
}

// parseContextPairs turns repeated key=value flags into a context map.
func parseContextPairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	queryContext := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --context entry %q (expected key=value)", pair)
		}
		queryContext[key] = value
	}
	return queryContext, nil
}

func printDecision(record *council.SessionRecord, decision *council.Decision) {
	printer.Println()
	if decision.Degraded {
		printer.Warning("Decision is degraded: %s\n", decision.Recommendation)
	} else {
		printer.Success("Decision: %s\n", decision.Recommendation)
	}

	printer.Printf("\n  Confidence  %.2f\n", decision.Confidence)
	printer.Printf("  Agreement   %.2f\n", decision.Agreement)
	printer.Printf("  Supporting  %s\n", formatPersonaList(decision.SupportingPersonas))
	printer.Printf("  Dissenting  %s\n", formatPersonaList(decision.DissentingPersonas))
	printer.Printf("  Concerns    %d   Opportunities %d\n", decision.ConcernCount, decision.OpportunityCount)
	printer.Printf("  Personas    %d completed, %d failed, %d timed out (%dms)\n",
		record.Stats.Completed, record.Stats.Failed, record.Stats.TimedOut, decision.ElapsedMs)

	if len(decision.AlternativeViews) > 0 {
		printer.Println()
		for _, personaID := range sortedViewIDs(decision.AlternativeViews) {
			printer.Dissent("%s: %s\n", personaID, decision.AlternativeViews[personaID])
		}
	}

	printer.Printf("\nSession: %s\n", record.ID)
}

func formatPersonaList(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

// sortedViewIDs returns the dissenting persona IDs in sorted order so the
// printed views are stable run-to-run.
func sortedViewIDs(views map[string]string) []string {
	ids := make([]string, 0, len(views))
	for personaID := range views {
		ids = append(ids, personaID)
	}
	sort.Strings(ids)
	return ids
}
