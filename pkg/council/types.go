// Package council provides type-safe Go definitions and Redis schema patterns
// for the Council deliberation engine. A deliberation fans a query out to a
// roster of weighted personas, collects their opinions, and reduces them into
// a single decision with an aggregate confidence and an agreement score.
//
// All Redis keys and channels are namespaced by instance name to enable
// multiple Council instances to safely coexist on a single Redis server.
package council

import (
	"fmt"

	"github.com/google/uuid"
)

// Sentinel recommendations used when a deliberation cannot produce a
// meaningful decision. Callers should treat decisions carrying these
// recommendations as degraded, never as errors.
const (
	// RecommendationNoConsensus is used when zero personas completed.
	RecommendationNoConsensus = "no consensus reached"

	// RecommendationInsufficientResponses is used when some personas
	// completed but fewer than the configured quorum.
	RecommendationInsufficientResponses = "insufficient responses"
)

// Query is the question under deliberation. Immutable once submitted.
type Query struct {
	ID            string         `json:"id"`             // UUID assigned at submission
	Text          string         `json:"text"`           // The question itself
	Context       map[string]any `json:"context"`        // Opaque caller-supplied context; personas must tolerate unknown keys
	TimeoutMs     int64          `json:"timeout_ms"`     // Session deadline in milliseconds (0 = use configured default)
	SubmittedAtMs int64          `json:"submitted_at_ms"`
}

// OpinionStatus is the terminal state of one persona invocation.
type OpinionStatus string

const (
	// OpinionStatusCompleted means the persona returned a well-formed opinion
	OpinionStatusCompleted OpinionStatus = "completed"

	// OpinionStatusFailed means the persona's Analyze call returned an error or panicked
	OpinionStatusFailed OpinionStatus = "failed"

	// OpinionStatusTimedOut means the persona exceeded its soft timeout or the session deadline
	OpinionStatusTimedOut OpinionStatus = "timed_out"
)

// Opinion is one persona's output for one query. Created by a persona
// invocation (or synthesized by the orchestrator for failures and timeouts)
// and immutable thereafter. Failed and timed-out opinions are stubs: they
// carry no recommendation and are excluded from consensus math, but are
// counted in session statistics.
type Opinion struct {
	PersonaID      string        `json:"persona_id"`
	Recommendation string        `json:"recommendation"`
	Confidence     float64       `json:"confidence"` // In [0,1] for completed opinions
	Concerns       []string      `json:"concerns,omitempty"`
	Opportunities  []string      `json:"opportunities,omitempty"`
	Status         OpinionStatus `json:"status"`
	FailureReason  string        `json:"failure_reason,omitempty"` // Populated for failed/timed_out stubs
	ElapsedMs      int64         `json:"elapsed_ms"`
}

// EntryKind classifies a blackboard entry.
type EntryKind string

const (
	// EntryKindConcern flags a risk surfaced during analysis
	EntryKindConcern EntryKind = "concern"

	// EntryKindOpportunity flags an upside surfaced during analysis
	EntryKindOpportunity EntryKind = "opportunity"

	// EntryKindObservation is a free-form note with no aggregation semantics
	EntryKindObservation EntryKind = "observation"
)

// BlackboardEntry is a timestamped, persona-attributed note written during a
// deliberation. Entries are append-only: no persona may remove or modify
// another persona's entry.
type BlackboardEntry struct {
	ID          string    `json:"id"`         // UUID
	PersonaID   string    `json:"persona_id"` // Author
	Kind        EntryKind `json:"kind"`
	Text        string    `json:"text"`
	CreatedAtMs int64     `json:"created_at_ms"`
}

// PersonaInfo is the static, read-only definition of one persona in the
// roster: identity, expertise tags, and the weight used in weighted consensus.
type PersonaInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Expertise []string `json:"expertise,omitempty"`
	Weight    float64  `json:"weight"` // Default 1.0
}

// Decision is the sole output of a deliberation. Created once, at the end of
// a session, and immutable. Confidence and Agreement are computed
// independently: a tight cluster of moderate confidences yields high
// agreement, and divergent high confidences yield low agreement.
type Decision struct {
	Recommendation     string            `json:"recommendation"`
	Confidence         float64           `json:"confidence"` // Weighted mean of completed-opinion confidences, in [0,1]
	Agreement          float64           `json:"agreement"`  // Dispersion measure across completed opinions, in [0,1]
	SupportingPersonas []string          `json:"supporting_personas"`
	DissentingPersonas []string          `json:"dissenting_personas"`
	AlternativeViews   map[string]string `json:"alternative_views,omitempty"` // Dissenting persona ID -> verbatim recommendation
	ConcernCount       int               `json:"concern_count"`
	OpportunityCount   int               `json:"opportunity_count"`
	Degraded           bool              `json:"degraded"` // True when too few personas completed for a meaningful decision
	ElapsedMs          int64             `json:"elapsed_ms"`
}

// SessionState is the lifecycle state of a deliberation session.
// Transitions are one-directional: created -> deliberating ->
// consensus_building -> complete, with error reachable from any
// non-terminal state.
type SessionState string

const (
	SessionStateCreated           SessionState = "created"
	SessionStateDeliberating      SessionState = "deliberating"
	SessionStateConsensusBuilding SessionState = "consensus_building"
	SessionStateComplete          SessionState = "complete"
	SessionStateError             SessionState = "error"
)

// SessionStats counts terminal opinion outcomes for one session.
type SessionStats struct {
	Completed int   `json:"completed"`
	Failed    int   `json:"failed"`
	TimedOut  int   `json:"timed_out"`
	ElapsedMs int64 `json:"elapsed_ms"`
}

// SessionRecord is the persisted shape of one finished deliberation: the
// query, the roster invoked, every terminal opinion, and the decision. The
// core emits this record; a storage collaborator owns its long-term indexing.
type SessionRecord struct {
	ID            string        `json:"id"` // Session UUID
	Query         Query         `json:"query"`
	State         SessionState  `json:"state"`
	Personas      []PersonaInfo `json:"personas"` // Roster snapshot at submission
	Opinions      []*Opinion    `json:"opinions"`
	Decision      *Decision     `json:"decision,omitempty"` // Nil for error-state sessions
	Stats         SessionStats  `json:"stats"`
	StartedAtMs   int64         `json:"started_at_ms"`
	CompletedAtMs int64         `json:"completed_at_ms"`
}

// Stage identifies a point in the deliberation progress stream.
type Stage string

const (
	StageStarting           Stage = "starting"
	StageGatheringResponses Stage = "gathering_responses"
	StageReachingConsensus  Stage = "reaching_consensus"
	StageComplete           Stage = "complete"
	StageError              Stage = "error"
)

// ProgressEvent is one element of a session's ordered progress stream.
// Exactly one complete or error event terminates each session's stream.
// CurrentConfidence is the rolling weighted confidence over opinions
// completed so far; nil before the first completion.
type ProgressEvent struct {
	SessionID         string   `json:"session_id"`
	Stage             Stage    `json:"stage"`
	PersonasCompleted []string `json:"personas_completed"`
	TotalPersonas     int      `json:"total_personas"`
	CurrentConfidence *float64 `json:"current_confidence,omitempty"`
	TimestampMs       int64    `json:"timestamp_ms"`
}

// Validate checks if the Query has valid field values.
func (q *Query) Validate() error {
	if !isValidUUID(q.ID) {
		return fmt.Errorf("invalid query ID: not a valid UUID")
	}

	if q.Text == "" {
		return fmt.Errorf("query text cannot be empty")
	}

	if q.TimeoutMs < 0 {
		return fmt.Errorf("query timeout cannot be negative, got %d", q.TimeoutMs)
	}

	return nil
}

// Validate checks if the OpinionStatus is a valid enum value.
func (os OpinionStatus) Validate() error {
	switch os {
	case OpinionStatusCompleted, OpinionStatusFailed, OpinionStatusTimedOut:
		return nil
	default:
		return fmt.Errorf("unknown opinion status: %q", os)
	}
}

// Terminal reports whether the status is a terminal outcome. All three
// statuses are terminal; this exists so callers don't hard-code the set.
func (os OpinionStatus) Terminal() bool {
	return os.Validate() == nil
}

// Validate checks if the Opinion has valid field values.
// Completed opinions must carry a recommendation and a confidence in [0,1];
// failed and timed-out stubs must not claim a confidence.
func (o *Opinion) Validate() error {
	if o.PersonaID == "" {
		return fmt.Errorf("opinion persona_id cannot be empty")
	}

	if err := o.Status.Validate(); err != nil {
		return fmt.Errorf("invalid opinion status: %w", err)
	}

	if o.Status == OpinionStatusCompleted {
		if o.Recommendation == "" {
			return fmt.Errorf("completed opinion must have a recommendation")
		}
		if o.Confidence < 0 || o.Confidence > 1 {
			return fmt.Errorf("opinion confidence must be in [0,1], got %v", o.Confidence)
		}
	} else if o.Confidence != 0 {
		return fmt.Errorf("%s opinion stub cannot carry a confidence", o.Status)
	}

	return nil
}

// Validate checks if the EntryKind is a valid enum value.
func (k EntryKind) Validate() error {
	switch k {
	case EntryKindConcern, EntryKindOpportunity, EntryKindObservation:
		return nil
	default:
		return fmt.Errorf("unknown entry kind: %q", k)
	}
}

// Validate checks if the BlackboardEntry has valid field values.
func (e *BlackboardEntry) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if e.PersonaID == "" {
		return fmt.Errorf("entry persona_id cannot be empty")
	}

	if err := e.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid entry kind: %w", err)
	}

	if e.Text == "" {
		return fmt.Errorf("entry text cannot be empty")
	}

	return nil
}

// Validate checks if the PersonaInfo has valid field values.
func (p *PersonaInfo) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona ID cannot be empty")
	}

	if p.Name == "" {
		return fmt.Errorf("persona %q: name cannot be empty", p.ID)
	}

	if p.Weight <= 0 {
		return fmt.Errorf("persona %q: weight must be > 0, got %v", p.ID, p.Weight)
	}

	return nil
}

// Validate checks if the Decision has valid field values, including the
// supporting/dissenting partition invariant.
func (d *Decision) Validate() error {
	if d.Recommendation == "" {
		return fmt.Errorf("decision recommendation cannot be empty")
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision confidence must be in [0,1], got %v", d.Confidence)
	}

	if d.Agreement < 0 || d.Agreement > 1 {
		return fmt.Errorf("decision agreement must be in [0,1], got %v", d.Agreement)
	}

	// Supporting and dissenting must be disjoint
	seen := make(map[string]bool, len(d.SupportingPersonas))
	for _, id := range d.SupportingPersonas {
		seen[id] = true
	}
	for _, id := range d.DissentingPersonas {
		if seen[id] {
			return fmt.Errorf("persona %q appears in both supporting and dissenting lists", id)
		}
	}

	return nil
}

// Validate checks if the SessionState is a valid enum value.
func (s SessionState) Validate() error {
	switch s {
	case SessionStateCreated, SessionStateDeliberating, SessionStateConsensusBuilding,
		SessionStateComplete, SessionStateError:
		return nil
	default:
		return fmt.Errorf("unknown session state: %q", s)
	}
}

// Terminal reports whether the state is terminal.
func (s SessionState) Terminal() bool {
	return s == SessionStateComplete || s == SessionStateError
}

// CanTransitionTo reports whether the one-directional state machine permits
// moving from s to next. Error is reachable from any non-terminal state.
func (s SessionState) CanTransitionTo(next SessionState) bool {
	if s.Terminal() {
		return false
	}

	if next == SessionStateError {
		return true
	}

	switch s {
	case SessionStateCreated:
		return next == SessionStateDeliberating
	case SessionStateDeliberating:
		return next == SessionStateConsensusBuilding
	case SessionStateConsensusBuilding:
		return next == SessionStateComplete
	default:
		return false
	}
}

// Validate checks if the Stage is a valid enum value.
func (s Stage) Validate() error {
	switch s {
	case StageStarting, StageGatheringResponses, StageReachingConsensus,
		StageComplete, StageError:
		return nil
	default:
		return fmt.Errorf("unknown progress stage: %q", s)
	}
}

// Validate checks if the ProgressEvent has valid field values.
func (ev *ProgressEvent) Validate() error {
	if !isValidUUID(ev.SessionID) {
		return fmt.Errorf("invalid progress event session ID: not a valid UUID")
	}

	if err := ev.Stage.Validate(); err != nil {
		return fmt.Errorf("invalid progress event stage: %w", err)
	}

	if ev.TotalPersonas < 0 {
		return fmt.Errorf("total_personas cannot be negative")
	}

	if len(ev.PersonasCompleted) > ev.TotalPersonas {
		return fmt.Errorf("personas_completed (%d) exceeds total_personas (%d)",
			len(ev.PersonasCompleted), ev.TotalPersonas)
	}

	if ev.CurrentConfidence != nil && (*ev.CurrentConfidence < 0 || *ev.CurrentConfidence > 1) {
		return fmt.Errorf("current_confidence must be in [0,1], got %v", *ev.CurrentConfidence)
	}

	return nil
}

// Validate checks if the SessionRecord has valid field values.
func (r *SessionRecord) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid session ID: not a valid UUID")
	}

	if err := r.Query.Validate(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}

	if err := r.State.Validate(); err != nil {
		return fmt.Errorf("invalid state: %w", err)
	}

	if !r.State.Terminal() {
		return fmt.Errorf("cannot persist record in non-terminal state %q", r.State)
	}

	if r.State == SessionStateComplete && r.Decision == nil {
		return fmt.Errorf("complete session record must carry a decision")
	}

	for i, op := range r.Opinions {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("invalid opinion at index %d: %w", i, err)
		}
	}

	if r.Decision != nil {
		if err := r.Decision.Validate(); err != nil {
			return fmt.Errorf("invalid decision: %w", err)
		}
	}

	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
