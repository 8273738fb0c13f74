// Package session ties one deliberation together: it owns the blackboard,
// drives the one-directional state machine from created through complete,
// runs the orchestrator and the consensus reduction, and emits the ordered
// progress stream.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/internal/config"
	"github.com/quorumworks/council/internal/consensus"
	"github.com/quorumworks/council/internal/orchestrator"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/pkg/council"
)

// Settings carries the per-instance deliberation tuning. Zero values get
// defaults when the session runs.
type Settings struct {
	SessionTimeout time.Duration
	PersonaTimeout time.Duration
	GracePeriod    time.Duration
	SupportBand    float64
	Quorum         int
}

// SettingsFromConfig extracts deliberation settings from a validated
// council.yml configuration.
func SettingsFromConfig(cfg *config.CouncilConfig) Settings {
	d := cfg.Deliberation
	return Settings{
		SessionTimeout: d.SessionTimeoutDuration(),
		PersonaTimeout: d.PersonaTimeoutDuration(),
		GracePeriod:    d.GracePeriodDuration(),
		SupportBand:    *d.SupportBand,
		Quorum:         *d.Quorum,
	}
}

// Fault is a structural failure that prevents a session from starting:
// malformed query, empty roster. It is the only error category surfaced to
// the caller; persona-level failures are always recovered into the decision.
type Fault struct {
	Reason string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("session fault: %s", f.Reason)
}

// IsFault returns true if the error is a session Fault.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}

// Session coordinates one deliberation from submission to decision. Create
// with New, run once with Run; a session is never reused - a retry means a
// new session with a new query ID.
type Session struct {
	id        string
	query     *council.Query
	roster    *persona.Roster
	board     *board.Board
	publisher Publisher
	settings  Settings

	state       council.SessionState
	opinions    []*council.Opinion
	decision    *council.Decision
	terminalIDs []string // Persona IDs in completion order
	startedAt   time.Time
	completedAt time.Time
}

// New validates the submission and creates a session in the created state.
// Returns a *Fault for structural problems (empty query text, empty
// roster); no persona is invoked on the fault path.
func New(queryText string, queryContext map[string]any, timeout time.Duration, roster *persona.Roster, publisher Publisher, settings Settings) (*Session, error) {
	if queryText == "" {
		return nil, &Fault{Reason: "query text cannot be empty"}
	}

	if roster == nil || roster.Size() == 0 {
		return nil, &Fault{Reason: "persona roster is empty"}
	}

	if timeout < 0 {
		return nil, &Fault{Reason: fmt.Sprintf("timeout cannot be negative: %v", timeout)}
	}

	query := &council.Query{
		ID:            uuid.New().String(),
		Text:          queryText,
		Context:       queryContext,
		TimeoutMs:     timeout.Milliseconds(),
		SubmittedAtMs: time.Now().UnixMilli(),
	}

	return NewFromQuery(query, roster, publisher, settings)
}

// NewFromQuery creates a session for an already-formed query, preserving its
// ID and timeout. This is the entry point for the councild daemon, which
// receives queries over the query channel.
func NewFromQuery(query *council.Query, roster *persona.Roster, publisher Publisher, settings Settings) (*Session, error) {
	if query == nil {
		return nil, &Fault{Reason: "query cannot be nil"}
	}
	if err := query.Validate(); err != nil {
		return nil, &Fault{Reason: err.Error()}
	}

	if roster == nil || roster.Size() == 0 {
		return nil, &Fault{Reason: "persona roster is empty"}
	}

	if publisher == nil {
		publisher = NopPublisher{}
	}

	return &Session{
		id:        uuid.New().String(),
		query:     query,
		roster:    roster,
		board:     board.New(),
		publisher: publisher,
		settings:  settings,
		state:     council.SessionStateCreated,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() council.SessionState {
	return s.state
}

// Query returns the immutable query under deliberation.
func (s *Session) Query() *council.Query {
	return s.query
}

// Decision returns the decision, or nil before the session completes.
func (s *Session) Decision() *council.Decision {
	return s.decision
}

// Run executes the deliberation: fan-out, collection, consensus. Blocks
// until the decision is produced (bounded by the session deadline plus the
// grace period) and returns it. Degraded outcomes - all personas failing,
// below-quorum completion - are valid decisions, never errors.
func (s *Session) Run(ctx context.Context) (*council.Decision, error) {
	if s.state != council.SessionStateCreated {
		return nil, &Fault{Reason: fmt.Sprintf("session already ran (state %s)", s.state)}
	}

	s.startedAt = time.Now()
	s.emit(ctx, council.StageStarting, nil)

	if err := s.transition(council.SessionStateDeliberating); err != nil {
		return nil, s.fail(ctx, err)
	}

	orch := orchestrator.New(s.roster, orchestrator.Config{
		SessionTimeout: s.settings.SessionTimeout,
		PersonaTimeout: s.settings.PersonaTimeout,
		GracePeriod:    s.settings.GracePeriod,
	})

	weights := s.roster.Weights()
	var soFar []*council.Opinion
	s.opinions = orch.Gather(ctx, s.query, s.board, func(op *council.Opinion) {
		soFar = append(soFar, op)
		s.terminalIDs = append(s.terminalIDs, op.PersonaID)
		s.emit(ctx, council.StageGatheringResponses, rollingConfidence(soFar, weights))
	})

	if err := s.transition(council.SessionStateConsensusBuilding); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.emit(ctx, council.StageReachingConsensus, rollingConfidence(s.opinions, weights))

	engine := consensus.NewEngine(consensus.Config{
		SupportBand: s.settings.SupportBand,
		Quorum:      s.settings.Quorum,
	})
	s.decision = engine.Reduce(s.opinions, weights, s.board.Snapshot(), time.Since(s.startedAt))

	if err := s.transition(council.SessionStateComplete); err != nil {
		return nil, s.fail(ctx, err)
	}
	s.completedAt = time.Now()

	s.emit(ctx, council.StageComplete, &s.decision.Confidence)
	s.logCompletion()

	return s.decision, nil
}

// Stats returns the terminal-opinion counts for this session.
func (s *Session) Stats() council.SessionStats {
	stats := council.SessionStats{
		ElapsedMs: s.completedAt.Sub(s.startedAt).Milliseconds(),
	}
	for _, op := range s.opinions {
		switch op.Status {
		case council.OpinionStatusCompleted:
			stats.Completed++
		case council.OpinionStatusFailed:
			stats.Failed++
		case council.OpinionStatusTimedOut:
			stats.TimedOut++
		}
	}
	return stats
}

// Record returns the persistable shape of a finished session. Only valid
// once the session reached a terminal state.
func (s *Session) Record() (*council.SessionRecord, error) {
	if !s.state.Terminal() {
		return nil, fmt.Errorf("session %s is not finished (state %s)", s.id, s.state)
	}

	return &council.SessionRecord{
		ID:            s.id,
		Query:         *s.query,
		State:         s.state,
		Personas:      s.roster.List(),
		Opinions:      s.opinions,
		Decision:      s.decision,
		Stats:         s.Stats(),
		StartedAtMs:   s.startedAt.UnixMilli(),
		CompletedAtMs: s.completedAt.UnixMilli(),
	}, nil
}

// BoardEntries returns a snapshot of the session's blackboard.
func (s *Session) BoardEntries() []*council.BlackboardEntry {
	return s.board.Snapshot()
}

// transition moves the state machine forward. Transitions are
// one-directional; a rejected transition is an internal fault.
func (s *Session) transition(next council.SessionState) error {
	if !s.state.CanTransitionTo(next) {
		return fmt.Errorf("invalid state transition: %s -> %s", s.state, next)
	}
	s.state = next
	return nil
}

// fail moves the session to the error terminal state and emits the error
// event.
func (s *Session) fail(ctx context.Context, err error) error {
	s.state = council.SessionStateError
	s.completedAt = time.Now()
	s.emit(ctx, council.StageError, nil)
	return err
}

// emit publishes one progress event. Publish failures are logged and
// swallowed: the progress stream is observability, not state, and must
// never abort a deliberation.
func (s *Session) emit(ctx context.Context, stage council.Stage, confidence *float64) {
	completed := make([]string, len(s.terminalIDs))
	copy(completed, s.terminalIDs)

	ev := &council.ProgressEvent{
		SessionID:         s.id,
		Stage:             stage,
		PersonasCompleted: completed,
		TotalPersonas:     s.roster.Size(),
		CurrentConfidence: confidence,
		TimestampMs:       time.Now().UnixMilli(),
	}

	if err := s.publisher.PublishProgress(ctx, ev); err != nil {
		log.Printf("[Session] Failed to publish %s event for session %s: %v", stage, s.id, err)
	}
}

// rollingConfidence computes the weighted confidence over opinions completed
// so far. Nil before the first completed opinion, so stream consumers can
// distinguish "no data yet" from "confidence zero".
func rollingConfidence(opinions []*council.Opinion, weights map[string]float64) *float64 {
	var weightedSum, totalWeight float64
	for _, op := range opinions {
		if op.Status != council.OpinionStatusCompleted {
			continue
		}
		w, ok := weights[op.PersonaID]
		if !ok || w <= 0 {
			w = 1.0
		}
		weightedSum += op.Confidence * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return nil
	}
	confidence := weightedSum / totalWeight
	return &confidence
}

// logCompletion logs a structured completion event.
func (s *Session) logCompletion() {
	stats := s.Stats()
	data := map[string]interface{}{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"level":      "info",
		"component":  "session",
		"event_type": "deliberation_complete",
		"session_id": s.id,
		"query_id":   s.query.ID,
		"completed":  stats.Completed,
		"failed":     stats.Failed,
		"timed_out":  stats.TimedOut,
		"elapsed_ms": stats.ElapsedMs,
		"confidence": s.decision.Confidence,
		"agreement":  s.decision.Agreement,
		"degraded":   s.decision.Degraded,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Session] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

// Deliberate is the synchronous submission surface: validate, run, record.
// The returned record carries the decision, every terminal opinion, and the
// session statistics. Structural faults return (*Fault) before any persona
// is invoked.
func Deliberate(ctx context.Context, queryText string, queryContext map[string]any, timeout time.Duration, roster *persona.Roster, publisher Publisher, settings Settings) (*council.SessionRecord, error) {
	s, err := New(queryText, queryContext, timeout, roster, publisher, settings)
	if err != nil {
		return nil, err
	}

	if _, err := s.Run(ctx); err != nil {
		return nil, err
	}

	return s.Record()
}
