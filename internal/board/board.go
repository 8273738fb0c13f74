// Package board implements the in-session blackboard: an append-only,
// persona-attributed note surface shared by all personas of one
// deliberation. A single mutex guards the append log; consumers take an
// immutable snapshot rather than reading live.
package board

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/council/pkg/council"
)

// Board is the shared knowledge surface for one deliberation session.
// Writes are append-only: no persona can remove or modify another persona's
// entry. Safe for concurrent use by all personas of a session.
//
// Ordering guarantee: an entry is visible to every subsequent read once
// Append returns (read-after-write per entry); there is no cross-entry
// ordering guarantee between concurrent writers.
type Board struct {
	mu      sync.Mutex
	entries []*council.BlackboardEntry
}

// New creates an empty board for a new session.
func New() *Board {
	return &Board{}
}

// Append adds a new entry and returns it. The entry ID and timestamp are
// assigned here; callers supply only authorship, kind, and text.
func (b *Board) Append(personaID string, kind council.EntryKind, text string) (*council.BlackboardEntry, error) {
	entry := &council.BlackboardEntry{
		ID:          uuid.New().String(),
		PersonaID:   personaID,
		Kind:        kind,
		Text:        text,
		CreatedAtMs: time.Now().UnixMilli(),
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board entry: %w", err)
	}

	b.mu.Lock()
	b.entries = append(b.entries, entry)
	b.mu.Unlock()

	return entry, nil
}

// AddConcern appends a concern-tagged entry.
func (b *Board) AddConcern(personaID, text string) (*council.BlackboardEntry, error) {
	return b.Append(personaID, council.EntryKindConcern, text)
}

// AddOpportunity appends an opportunity-tagged entry.
func (b *Board) AddOpportunity(personaID, text string) (*council.BlackboardEntry, error) {
	return b.Append(personaID, council.EntryKindOpportunity, text)
}

// Observe appends a free-form observation entry.
func (b *Board) Observe(personaID, text string) (*council.BlackboardEntry, error) {
	return b.Append(personaID, council.EntryKindObservation, text)
}

// Snapshot returns a copy of the entry log in append order. The returned
// slice is owned by the caller; entries themselves are immutable and shared.
// The consensus step reads from a snapshot, never from the live board.
func (b *Board) Snapshot() []*council.BlackboardEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make([]*council.BlackboardEntry, len(b.entries))
	copy(snapshot, b.entries)
	return snapshot
}

// ByKind returns a copy of all entries of the given kind, in append order.
func (b *Board) ByKind(kind council.EntryKind) []*council.BlackboardEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var matched []*council.BlackboardEntry
	for _, e := range b.entries {
		if e.Kind == kind {
			matched = append(matched, e)
		}
	}
	return matched
}

// Len returns the number of entries on the board.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}
