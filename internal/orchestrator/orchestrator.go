// Package orchestrator runs the concurrent fan-out phase of a deliberation:
// one invocation per roster persona, each racing its own soft timeout inside
// the shared session deadline, with every outcome - success, failure, or
// timeout - recorded as a terminal opinion.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/pkg/council"
)

// Config tunes the fan-out. Zero values get defaults in New.
type Config struct {
	// SessionTimeout is the hard deadline for the whole gather phase.
	SessionTimeout time.Duration

	// PersonaTimeout is the soft timeout for a single invocation, nested
	// inside the session deadline so one slow persona cannot use up the
	// time left for the others.
	PersonaTimeout time.Duration

	// GracePeriod is how long the collector waits for in-flight
	// invocations to acknowledge cancellation after the deadline fires.
	GracePeriod time.Duration
}

// DefaultConfig returns the standard fan-out tuning.
func DefaultConfig() Config {
	return Config{
		SessionTimeout: 30 * time.Second,
		PersonaTimeout: 10 * time.Second,
		GracePeriod:    250 * time.Millisecond,
	}
}

// Orchestrator fans one query out to the full persona roster. The roster is
// snapshotted at construction and read-only afterwards.
type Orchestrator struct {
	roster *persona.Roster
	cfg    Config
}

// New creates an orchestrator for the given roster, applying defaults for
// zero config values.
func New(roster *persona.Roster, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = def.SessionTimeout
	}
	if cfg.PersonaTimeout <= 0 {
		cfg.PersonaTimeout = def.PersonaTimeout
	}
	if cfg.PersonaTimeout > cfg.SessionTimeout {
		cfg.PersonaTimeout = cfg.SessionTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = def.GracePeriod
	}
	return &Orchestrator{roster: roster, cfg: cfg}
}

// Gather launches one concurrent invocation per persona and collects
// terminal opinions until all personas have reported or the session deadline
// (plus a short grace period) elapses. Personas still in flight at that
// point are recorded as timed_out stubs.
//
// onOpinion, when non-nil, is called once per terminal opinion from the
// single collection goroutine, in completion order. Opinions are returned in
// completion order too; the consensus step is order-independent by design.
func (o *Orchestrator) Gather(ctx context.Context, q *council.Query, b *board.Board, onOpinion func(*council.Opinion)) []*council.Opinion {
	personas := o.roster.Personas()
	if len(personas) == 0 {
		return []*council.Opinion{}
	}

	deadline := o.cfg.SessionTimeout
	if q.TimeoutMs > 0 {
		deadline = time.Duration(q.TimeoutMs) * time.Millisecond
	}

	sessionCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(chan *council.Opinion, len(personas))
	for _, p := range personas {
		go func(p persona.Persona) {
			results <- o.invoke(sessionCtx, p, q, b)
		}(p)
	}

	// Single collection loop: only this goroutine touches the opinion set,
	// so it needs no synchronization.
	opinions := make([]*council.Opinion, 0, len(personas))
	received := make(map[string]bool, len(personas))

	record := func(op *council.Opinion) {
		opinions = append(opinions, op)
		received[op.PersonaID] = true
		o.logOutcome(q.ID, op)
		if onOpinion != nil {
			onOpinion(op)
		}
	}

	for len(opinions) < len(personas) {
		select {
		case op := <-results:
			record(op)

		case <-sessionCtx.Done():
			// Deadline fired. Invocations unwind on their own context, so
			// give them one grace period to report, then mark the rest
			// timed_out without waiting for acknowledgment.
			grace := time.NewTimer(o.cfg.GracePeriod)
			for len(opinions) < len(personas) {
				select {
				case op := <-results:
					record(op)
				case <-grace.C:
					for _, p := range personas {
						if id := p.Info().ID; !received[id] {
							record(timedOutStub(id, "session deadline elapsed", deadline))
						}
					}
				}
			}
			grace.Stop()
			return opinions
		}
	}

	return opinions
}

// analyzeResult carries one Analyze return across the invocation goroutine
// boundary.
type analyzeResult struct {
	opinion *council.Opinion
	err     error
}

// invoke runs a single persona with its own soft timeout and converts every
// outcome - including panics and malformed opinions - into a terminal
// opinion. Persona misbehavior never propagates past this boundary.
func (o *Orchestrator) invoke(ctx context.Context, p persona.Persona, q *council.Query, b *board.Board) *council.Opinion {
	info := p.Info()
	started := time.Now()

	pctx, cancel := context.WithTimeout(ctx, o.cfg.PersonaTimeout)
	defer cancel()

	done := make(chan analyzeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- analyzeResult{err: fmt.Errorf("persona panicked: %v", r)}
			}
		}()
		opinion, err := p.Analyze(pctx, q, b)
		done <- analyzeResult{opinion: opinion, err: err}
	}()

	select {
	case result := <-done:
		elapsed := time.Since(started)
		if result.err != nil {
			if isTimeout(result.err) {
				return timedOutStub(info.ID, result.err.Error(), elapsed)
			}
			return failedStub(info.ID, result.err.Error(), elapsed)
		}
		if result.opinion == nil {
			return failedStub(info.ID, "persona returned no opinion", elapsed)
		}

		opinion := result.opinion
		opinion.PersonaID = info.ID
		opinion.Status = council.OpinionStatusCompleted
		if opinion.ElapsedMs == 0 {
			opinion.ElapsedMs = elapsed.Milliseconds()
		}

		if err := opinion.Validate(); err != nil {
			return failedStub(info.ID, fmt.Sprintf("malformed opinion: %v", err), elapsed)
		}
		return opinion

	case <-pctx.Done():
		// Soft timeout or session deadline; either way the slot is
		// terminal. The Analyze goroutine is left to unwind on its own.
		return timedOutStub(info.ID, pctx.Err().Error(), time.Since(started))
	}
}

func failedStub(personaID, reason string, elapsed time.Duration) *council.Opinion {
	return &council.Opinion{
		PersonaID:     personaID,
		Status:        council.OpinionStatusFailed,
		FailureReason: reason,
		ElapsedMs:     elapsed.Milliseconds(),
	}
}

func timedOutStub(personaID, reason string, elapsed time.Duration) *council.Opinion {
	return &council.Opinion{
		PersonaID:     personaID,
		Status:        council.OpinionStatusTimedOut,
		FailureReason: reason,
		ElapsedMs:     elapsed.Milliseconds(),
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// logOutcome logs a structured event for one terminal opinion.
func (o *Orchestrator) logOutcome(queryID string, op *council.Opinion) {
	data := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"level":      "info",
		"component":  "orchestrator",
		"event_type": fmt.Sprintf("persona_%s", op.Status),
		"query_id":   queryID,
		"persona_id": op.PersonaID,
		"elapsed_ms": op.ElapsedMs,
	}
	if op.FailureReason != "" {
		data["reason"] = op.FailureReason
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Orchestrator] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
