package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/internal/persona"
	"github.com/quorumworks/council/pkg/council"
)

type stubPersona struct {
	info       council.PersonaInfo
	confidence float64
	err        error
}

func (s *stubPersona) Info() council.PersonaInfo {
	return s.info
}

func (s *stubPersona) Analyze(ctx context.Context, q *council.Query, b *board.Board) (*council.Opinion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &council.Opinion{
		PersonaID:      s.info.ID,
		Recommendation: "Proceed: " + q.Text,
		Confidence:     s.confidence,
		Status:         council.OpinionStatusCompleted,
	}, nil
}

func stub(id string, confidence float64) *stubPersona {
	return &stubPersona{
		info:       council.PersonaInfo{ID: id, Name: "Persona " + id, Weight: 1.0},
		confidence: confidence,
	}
}

func testSettings() Settings {
	return Settings{
		SessionTimeout: 2 * time.Second,
		PersonaTimeout: time.Second,
		GracePeriod:    50 * time.Millisecond,
		SupportBand:    1.0,
		Quorum:         1,
	}
}

func newStubRoster(t *testing.T, personas ...persona.Persona) *persona.Roster {
	t.Helper()
	roster, err := persona.NewRoster(personas...)
	require.NoError(t, err)
	return roster
}

func TestNew_EmptyQueryTextIsFault(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.7))

	_, err := New("", nil, 0, roster, nil, testSettings())

	require.Error(t, err)
	assert.True(t, IsFault(err))
}

func TestNew_EmptyRosterIsFault(t *testing.T) {
	_, err := New("should we ship", nil, 0, nil, nil, testSettings())

	require.Error(t, err)
	assert.True(t, IsFault(err))
	assert.Contains(t, err.Error(), "roster")
}

func TestRun_CompletesAndTransitionsStates(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.7), stub("b", 0.8))
	pub := &MemoryPublisher{}

	s, err := New("should we ship", nil, 0, roster, pub, testSettings())
	require.NoError(t, err)
	assert.Equal(t, council.SessionStateCreated, s.State())

	decision, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, decision)

	assert.Equal(t, council.SessionStateComplete, s.State())
	assert.False(t, decision.Degraded)
	assert.InDelta(t, 0.75, decision.Confidence, 1e-9)
}

func TestRun_ProgressStreamOrdering(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.7), stub("b", 0.8), stub("c", 0.6))
	pub := &MemoryPublisher{}

	s, err := New("should we ship", nil, 0, roster, pub, testSettings())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	events := pub.Events()
	// starting, 3x gathering_responses, reaching_consensus, complete
	require.Len(t, events, 6)

	assert.Equal(t, council.StageStarting, events[0].Stage)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, council.StageGatheringResponses, events[i].Stage)
		assert.Len(t, events[i].PersonasCompleted, i)
		require.NotNil(t, events[i].CurrentConfidence)
	}
	assert.Equal(t, council.StageReachingConsensus, events[4].Stage)
	assert.Equal(t, council.StageComplete, events[5].Stage)

	// Exactly one terminal event, and it is the last one
	terminal := 0
	for _, ev := range events {
		if ev.Stage == council.StageComplete || ev.Stage == council.StageError {
			terminal++
		}
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, 3, ev.TotalPersonas)
		require.NoError(t, ev.Validate())
	}
	assert.Equal(t, 1, terminal)
}

func TestRun_DegradedWhenAllPersonasFail(t *testing.T) {
	broken := stub("broken", 0)
	broken.err = fmt.Errorf("backend down")

	roster := newStubRoster(t, broken)
	s, err := New("should we ship", nil, 0, roster, nil, testSettings())
	require.NoError(t, err)

	decision, err := s.Run(context.Background())

	// All-fail is a degraded decision, never an error
	require.NoError(t, err)
	assert.True(t, decision.Degraded)
	assert.Equal(t, council.RecommendationNoConsensus, decision.Recommendation)
	assert.Equal(t, council.SessionStateComplete, s.State())
}

func TestRun_SecondRunIsFault(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.7))
	s, err := New("should we ship", nil, 0, roster, nil, testSettings())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsFault(err))
}

func TestRecord_RequiresTerminalState(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.7))
	s, err := New("should we ship", nil, 0, roster, nil, testSettings())
	require.NoError(t, err)

	_, err = s.Record()
	assert.Error(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	record, err := s.Record()
	require.NoError(t, err)
	require.NoError(t, record.Validate())

	assert.Equal(t, s.ID(), record.ID)
	assert.Equal(t, "should we ship", record.Query.Text)
	assert.Len(t, record.Opinions, 1)
	assert.Len(t, record.Personas, 1)
	assert.Equal(t, 1, record.Stats.Completed)
	require.NotNil(t, record.Decision)
}

func TestDeliberate_EndToEnd(t *testing.T) {
	roster := newStubRoster(t, stub("a", 0.9), stub("b", 0.3), stub("c", 0.6))
	pub := &MemoryPublisher{}

	record, err := Deliberate(context.Background(), "should we migrate", map[string]any{"priority": "high"},
		0, roster, pub, testSettings())

	require.NoError(t, err)
	require.NotNil(t, record.Decision)
	assert.Equal(t, council.SessionStateComplete, record.State)
	assert.Equal(t, 3, record.Stats.Completed)
	assert.NotEmpty(t, pub.Events())
}

func TestStats_CountsMixedOutcomes(t *testing.T) {
	failing := stub("failing", 0)
	failing.err = fmt.Errorf("backend down")

	roster := newStubRoster(t, stub("a", 0.7), stub("b", 0.8), failing)
	s, err := New("should we ship", nil, 0, roster, nil, testSettings())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.TimedOut)
}
