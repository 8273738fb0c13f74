// Package persona defines the pluggable analysis capability behind each
// member of the council roster, plus the roster itself and the built-in
// heuristic capability.
package persona

import (
	"context"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/pkg/council"
)

// Persona is the polymorphic analysis capability. Each roster member is a
// distinct implementation registered at startup; the orchestrator depends
// only on this interface, never on concrete persona types.
//
// Analyze either returns a well-formed completed Opinion (confidence in
// [0,1]) or an error. It may append entries to the shared board; those
// writes must be safe under concurrent invocation of other personas (the
// board guarantees this). Implementations should honor ctx cancellation,
// but the orchestrator enforces the deadline regardless of cooperation.
type Persona interface {
	// Info returns the static definition: identity, expertise, weight.
	Info() council.PersonaInfo

	// Analyze produces this persona's opinion on the query. The query's
	// Context map is caller-defined; implementations must tolerate unknown
	// or missing keys.
	Analyze(ctx context.Context, q *council.Query, b *board.Board) (*council.Opinion, error)
}
