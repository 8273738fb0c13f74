// Package archive implements read access to persisted deliberation records:
// listing with filters, single-record retrieval, and the table/JSONL/JSON
// output formats used by the history and show commands.
package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/quorumworks/council/pkg/council"
)

// OutputFormat specifies how to format the session list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated recommendations
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete records as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// FilterCriteria defines filtering options for the history command.
// All filters are ANDed together.
type FilterCriteria struct {
	SinceTimestampMs int64   // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64   // Unix timestamp in milliseconds, 0 = no filter
	DegradedOnly     bool    // Only sessions whose decision was degraded
	MinConfidence    float64 // Only decisions at or above this confidence, 0 = no filter
}

// matchesFilter returns true if the record matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(r *council.SessionRecord) bool {
	if fc.SinceTimestampMs > 0 && r.CompletedAtMs < fc.SinceTimestampMs {
		return false
	}
	if fc.UntilTimestampMs > 0 && r.CompletedAtMs > fc.UntilTimestampMs {
		return false
	}

	if fc.DegradedOnly && (r.Decision == nil || !r.Decision.Degraded) {
		return false
	}

	if fc.MinConfidence > 0 {
		if r.Decision == nil || r.Decision.Confidence < fc.MinConfidence {
			return false
		}
	}

	return true
}

// ListRecords retrieves all persisted session records for an instance and
// writes them to the provided writer. Applies filter criteria if provided and
// sorts by completion time for stable output. Skips malformed records with a
// warning to stderr but continues processing.
func ListRecords(ctx context.Context, client *council.Client, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	ids, err := client.ScanSessions(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}

	var records []*council.SessionRecord
	for _, id := range ids {
		record, err := client.GetRecord(ctx, id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  Skipping malformed session record: id=%s (error: %v)\n", id, err)
			continue
		}

		if filters != nil && !filters.matchesFilter(record) {
			continue
		}

		records = append(records, record)
	}

	// Oldest first for chronological output
	sort.Slice(records, func(i, j int) bool {
		return records[i].CompletedAtMs < records[j].CompletedAtMs
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, records, client.InstanceName())
	case OutputFormatJSONL:
		if err := FormatJSONL(w, records); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
