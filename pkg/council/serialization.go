package council

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// the query context, the roster snapshot, and the decision are JSON-encoded
// into single hash fields. Scalar fields stay individually addressable so
// history listing can filter without decoding whole records.

// RecordToHash converts a SessionRecord to a Redis hash format.
// Opinions are not included; they live in a separate per-session hash so a
// single opinion can be fetched without decoding the full list.
func RecordToHash(r *SessionRecord) (map[string]interface{}, error) {
	queryJSON, err := json.Marshal(r.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	personasJSON, err := json.Marshal(r.Personas)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal personas: %w", err)
	}

	hash := map[string]interface{}{
		"id":              r.ID,
		"query":           string(queryJSON),
		"state":           string(r.State),
		"personas":        string(personasJSON),
		"completed":       r.Stats.Completed,
		"failed":          r.Stats.Failed,
		"timed_out":       r.Stats.TimedOut,
		"elapsed_ms":      r.Stats.ElapsedMs,
		"started_at_ms":   r.StartedAtMs,
		"completed_at_ms": r.CompletedAtMs,
	}

	if r.Decision != nil {
		decisionJSON, err := json.Marshal(r.Decision)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal decision: %w", err)
		}
		hash["decision"] = string(decisionJSON)
	} else {
		hash["decision"] = ""
	}

	return hash, nil
}

// HashToRecord converts a Redis hash to a SessionRecord.
// The opinions list is left empty; callers load it from the opinions hash.
func HashToRecord(hash map[string]string) (*SessionRecord, error) {
	var query Query
	if queryJSON := hash["query"]; queryJSON != "" {
		if err := json.Unmarshal([]byte(queryJSON), &query); err != nil {
			return nil, fmt.Errorf("failed to unmarshal query: %w", err)
		}
	}

	var personas []PersonaInfo
	if personasJSON := hash["personas"]; personasJSON != "" {
		if err := json.Unmarshal([]byte(personasJSON), &personas); err != nil {
			return nil, fmt.Errorf("failed to unmarshal personas: %w", err)
		}
	}
	if personas == nil {
		personas = []PersonaInfo{}
	}

	var decision *Decision
	if decisionJSON := hash["decision"]; decisionJSON != "" {
		decision = &Decision{}
		if err := json.Unmarshal([]byte(decisionJSON), decision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal decision: %w", err)
		}
	}

	completed, err := strconv.Atoi(hash["completed"])
	if err != nil {
		return nil, fmt.Errorf("invalid completed field: %w", err)
	}

	failed, _ := strconv.Atoi(hash["failed"])
	timedOut, _ := strconv.Atoi(hash["timed_out"])
	elapsedMs, _ := strconv.ParseInt(hash["elapsed_ms"], 10, 64)
	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	completedAtMs, _ := strconv.ParseInt(hash["completed_at_ms"], 10, 64)

	record := &SessionRecord{
		ID:       hash["id"],
		Query:    query,
		State:    SessionState(hash["state"]),
		Personas: personas,
		Opinions: []*Opinion{},
		Decision: decision,
		Stats: SessionStats{
			Completed: completed,
			Failed:    failed,
			TimedOut:  timedOut,
			ElapsedMs: elapsedMs,
		},
		StartedAtMs:   startedAtMs,
		CompletedAtMs: completedAtMs,
	}

	return record, nil
}

// OpinionsToHash converts a terminal opinion list to a Redis hash
// (persona ID -> opinion JSON).
func OpinionsToHash(opinions []*Opinion) (map[string]interface{}, error) {
	hash := make(map[string]interface{}, len(opinions))
	for _, op := range opinions {
		opJSON, err := json.Marshal(op)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal opinion for %s: %w", op.PersonaID, err)
		}
		hash[op.PersonaID] = string(opJSON)
	}
	return hash, nil
}

// HashToOpinions converts a Redis opinions hash back to an opinion list.
// Order is not preserved by Redis; callers needing determinism sort by
// persona ID.
func HashToOpinions(hash map[string]string) ([]*Opinion, error) {
	opinions := make([]*Opinion, 0, len(hash))
	for personaID, opJSON := range hash {
		var op Opinion
		if err := json.Unmarshal([]byte(opJSON), &op); err != nil {
			return nil, fmt.Errorf("failed to unmarshal opinion for %s: %w", personaID, err)
		}
		opinions = append(opinions, &op)
	}
	return opinions, nil
}

// EntriesToHash converts blackboard entries to a Redis hash
// (entry ID -> entry JSON).
func EntriesToHash(entries []*BlackboardEntry) (map[string]interface{}, error) {
	hash := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		entryJSON, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal board entry %s: %w", e.ID, err)
		}
		hash[e.ID] = string(entryJSON)
	}
	return hash, nil
}

// HashToEntries converts a Redis board hash back to an entry list.
func HashToEntries(hash map[string]string) ([]*BlackboardEntry, error) {
	entries := make([]*BlackboardEntry, 0, len(hash))
	for entryID, entryJSON := range hash {
		var e BlackboardEntry
		if err := json.Unmarshal([]byte(entryJSON), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal board entry %s: %w", entryID, err)
		}
		entries = append(entries, &e)
	}
	return entries, nil
}
