package persona

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/pkg/council"
)

func heuristicInfo(id string) council.PersonaInfo {
	return council.PersonaInfo{
		ID:        id,
		Name:      "Persona " + id,
		Expertise: []string{"security", "migration"},
		Weight:    1.0,
	}
}

func query(text string, ctx map[string]any) *council.Query {
	return &council.Query{
		ID:      "8f14e45f-ceea-4a7a-9c5d-3c1f28e0a001",
		Text:    text,
		Context: ctx,
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	h := NewHeuristic(heuristicInfo("security"), StanceNeutral)

	q := query("Should we migrate the legacy billing system before the deadline?", nil)

	first, err := h.Analyze(context.Background(), q, board.New())
	require.NoError(t, err)
	second, err := h.Analyze(context.Background(), q, board.New())
	require.NoError(t, err)

	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Recommendation, second.Recommendation)
	assert.Equal(t, first.Concerns, second.Concerns)
}

func TestAnalyze_ConfidenceBounds(t *testing.T) {
	cases := []struct {
		name   string
		stance Stance
		text   string
	}{
		{"all risk signals", StanceSkeptic, "risk deprecated breaking security legacy debt outage unstable untested deadline"},
		{"all opportunity signals", StanceOptimist, "improve automate simplify performance growth modernize consolidate reduce cost reuse standardize"},
		{"plain question", StanceNeutral, "should we adopt the proposal"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHeuristic(heuristicInfo("p"), tc.stance)

			op, err := h.Analyze(context.Background(), query(tc.text, nil), board.New())
			require.NoError(t, err)

			assert.GreaterOrEqual(t, op.Confidence, 0.05)
			assert.LessOrEqual(t, op.Confidence, 0.95)
			require.NoError(t, op.Validate())
		})
	}
}

func TestAnalyze_StanceBias(t *testing.T) {
	text := "should we adopt the new framework"

	optimist, err := NewHeuristic(heuristicInfo("o"), StanceOptimist).
		Analyze(context.Background(), query(text, nil), board.New())
	require.NoError(t, err)

	skeptic, err := NewHeuristic(heuristicInfo("s"), StanceSkeptic).
		Analyze(context.Background(), query(text, nil), board.New())
	require.NoError(t, err)

	assert.Greater(t, optimist.Confidence, skeptic.Confidence)
}

func TestAnalyze_WritesConcernsToBoard(t *testing.T) {
	h := NewHeuristic(heuristicInfo("security"), StanceNeutral)
	b := board.New()

	op, err := h.Analyze(context.Background(), query("the legacy system carries security risk", nil), b)
	require.NoError(t, err)

	assert.NotEmpty(t, op.Concerns)
	concerns := b.ByKind(council.EntryKindConcern)
	assert.Len(t, concerns, len(op.Concerns))
	for _, e := range concerns {
		assert.Equal(t, "security", e.PersonaID)
	}
}

func TestAnalyze_ContextAdjustments(t *testing.T) {
	h := NewHeuristic(heuristicInfo("p"), StanceNeutral)
	text := "should we consolidate the reporting stack"

	base, err := h.Analyze(context.Background(), query(text, nil), board.New())
	require.NoError(t, err)

	lowTolerance, err := h.Analyze(context.Background(),
		query(text, map[string]any{"risk_tolerance": "low"}), board.New())
	require.NoError(t, err)

	highPriority, err := h.Analyze(context.Background(),
		query(text, map[string]any{"priority": "high"}), board.New())
	require.NoError(t, err)

	assert.Less(t, lowTolerance.Confidence, base.Confidence)
	assert.Greater(t, highPriority.Confidence, base.Confidence)
}

func TestAnalyze_ToleratesUnknownContextKeys(t *testing.T) {
	h := NewHeuristic(heuristicInfo("p"), StanceNeutral)

	ctx := map[string]any{
		"unknown_key": "whatever",
		"nested":      map[string]any{"deep": true},
		"number":      42,
	}

	op, err := h.Analyze(context.Background(), query("should we proceed", ctx), board.New())
	require.NoError(t, err)
	require.NoError(t, op.Validate())
}

func TestAnalyze_EmptyQueryIsError(t *testing.T) {
	h := NewHeuristic(heuristicInfo("p"), StanceNeutral)

	_, err := h.Analyze(context.Background(), query("", nil), board.New())
	assert.Error(t, err)
}

func TestAnalyze_CancelledContext(t *testing.T) {
	h := NewHeuristic(heuristicInfo("p"), StanceNeutral)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Analyze(ctx, query("should we proceed", nil), board.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 100)

	got := summarize(long)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 80, utf8.RuneCountInString(got))
	assert.Equal(t, strings.Repeat("é", 77)+"...", got)
}

func TestRecommend_DirectionTracksConfidence(t *testing.T) {
	assert.Contains(t, recommend(0.8, "ship the feature"), "Proceed:")
	assert.Contains(t, recommend(0.5, "ship the feature"), "Proceed with caution:")
	assert.Contains(t, recommend(0.2, "ship the feature"), "Defer:")
}
