package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quorumworks/council/pkg/council"
)

// FormatTable writes session records as a formatted table to the provided
// writer. Columns: ID, STATE, CONF, AGREE, OK/ALL, AGE, and the
// recommendation (truncated). Returns the number of records formatted.
func FormatTable(w io.Writer, records []*council.SessionRecord, instanceName string) int {
	if len(records) == 0 {
		fmt.Fprintf(w, "No sessions found for instance '%s'\n", instanceName)
		return 0
	}

	fmt.Fprintf(w, "Sessions for instance '%s':\n\n", instanceName)

	fmt.Fprintf(w, "%-10s %-10s %-6s %-6s %-6s %-8s %s\n",
		"ID", "STATE", "CONF", "AGREE", "OK/ALL", "AGE", "RECOMMENDATION")
	fmt.Fprintf(w, "%-10s %-10s %-6s %-6s %-6s %-8s %s\n",
		"----------", "----------", "------", "------", "------", "--------", "----------------------------------------")

	for _, r := range records {
		fmt.Fprintf(w, "%-10s %-10s %-6s %-6s %-6s %-8s %s\n",
			formatID(r.ID),
			formatState(r.State, r.Decision),
			formatScore(r.Decision, func(d *council.Decision) float64 { return d.Confidence }),
			formatScore(r.Decision, func(d *council.Decision) float64 { return d.Agreement }),
			fmt.Sprintf("%d/%d", r.Stats.Completed, len(r.Personas)),
			formatTimestamp(r.CompletedAtMs),
			formatRecommendation(r.Decision),
		)
	}

	countMsg := "session"
	if len(records) != 1 {
		countMsg = "sessions"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(records), countMsg)

	return len(records)
}

// FormatJSONL writes session records as line-delimited JSON (JSONL) to the
// provided writer. Each record is a single JSON object on its own line, ideal
// for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, records []*council.SessionRecord) error {
	for _, record := range records {
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal session record to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single session record as pretty-printed JSON to
// the provided writer. Used by the show command.
func FormatSingleJSON(w io.Writer, record *council.SessionRecord) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session record to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)
	return nil
}

// formatID truncates a session ID to the first 8 characters for compact
// display.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatState collapses the state and the degraded flag into one column.
func formatState(state council.SessionState, decision *council.Decision) string {
	if state == council.SessionStateComplete && decision != nil && decision.Degraded {
		return "degraded"
	}
	return string(state)
}

// formatScore renders a decision metric as "0.73", or "-" when there is no
// decision to read it from.
func formatScore(decision *council.Decision, metric func(*council.Decision) float64) string {
	if decision == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", metric(decision))
}

// formatRecommendation truncates a recommendation to its first line with max
// 40 characters for table display.
func formatRecommendation(decision *council.Decision) string {
	if decision == nil || decision.Recommendation == "" {
		return "-"
	}

	firstLine := decision.Recommendation
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	firstLine = strings.TrimSpace(firstLine)

	if runes := []rune(firstLine); len(runes) > 40 {
		return string(runes[:37]) + "..."
	}
	return firstLine
}

// formatTimestamp formats a Unix millisecond timestamp as relative time like
// "2m ago" or "1h ago".
func formatTimestamp(timestampMs int64) string {
	if timestampMs == 0 {
		return "-"
	}

	t := time.Unix(timestampMs/1000, (timestampMs%1000)*1000000)
	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
