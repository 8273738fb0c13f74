package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumworks/council/pkg/council"
)

func completedOpinion(personaID string, confidence float64, recommendation string) *council.Opinion {
	return &council.Opinion{
		PersonaID:      personaID,
		Recommendation: recommendation,
		Confidence:     confidence,
		Status:         council.OpinionStatusCompleted,
	}
}

func failedOpinion(personaID string) *council.Opinion {
	return &council.Opinion{
		PersonaID:     personaID,
		Status:        council.OpinionStatusFailed,
		FailureReason: "boom",
	}
}

func TestReduce_WeightedConfidence(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		completedOpinion("architect", 0.9, "Proceed: migrate the service"),
		completedOpinion("security", 0.3, "Defer: migrate the service"),
		completedOpinion("operations", 0.6, "Proceed: migrate the service"),
	}
	weights := map[string]float64{
		"architect":  1.0,
		"security":   1.0,
		"operations": 2.0,
	}

	decision := engine.Reduce(opinions, weights, nil, time.Second)
	require.NotNil(t, decision)

	// (0.9*1 + 0.3*1 + 0.6*2) / 4 = 0.6
	assert.InDelta(t, 0.6, decision.Confidence, 1e-9)
	assert.False(t, decision.Degraded)

	// Highest confidence*weight is operations (1.2)
	assert.Equal(t, "Proceed: migrate the service", decision.Recommendation)

	// security sits below mean - stddev and opposes; the other two support
	assert.ElementsMatch(t, []string{"architect", "operations"}, decision.SupportingPersonas)
	assert.Equal(t, []string{"security"}, decision.DissentingPersonas)
	require.Contains(t, decision.AlternativeViews, "security")
	assert.Equal(t, "Defer: migrate the service", decision.AlternativeViews["security"])
}

func TestReduce_AgreementHighForTightCluster(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		completedOpinion("a", 0.50, "Proceed with caution: ship it"),
		completedOpinion("b", 0.52, "Proceed with caution: ship it"),
		completedOpinion("c", 0.48, "Proceed with caution: ship it"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)

	// Moderate confidences, tight cluster: agreement is high even though
	// confidence is middling.
	assert.Greater(t, decision.Agreement, 0.9)
	assert.InDelta(t, 0.5, decision.Confidence, 0.02)
}

func TestReduce_AgreementLowForDivergentConfidences(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		completedOpinion("a", 0.95, "Proceed: ship it"),
		completedOpinion("b", 0.05, "Proceed: ship it"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)

	assert.Less(t, decision.Agreement, 0.25)
}

func TestReduce_SingleOpinionFullAgreement(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		completedOpinion("solo", 0.7, "Proceed: adopt the tool"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)

	assert.Equal(t, 1.0, decision.Agreement)
	assert.InDelta(t, 0.7, decision.Confidence, 1e-9)
	assert.Equal(t, []string{"solo"}, decision.SupportingPersonas)
	assert.Empty(t, decision.DissentingPersonas)
	assert.False(t, decision.Degraded)
}

func TestReduce_AllFailedYieldsSentinel(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		failedOpinion("a"),
		failedOpinion("b"),
		failedOpinion("c"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)
	require.NotNil(t, decision)

	assert.Equal(t, council.RecommendationNoConsensus, decision.Recommendation)
	assert.True(t, decision.Degraded)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Equal(t, 0.0, decision.Agreement)
	assert.Empty(t, decision.SupportingPersonas)
	assert.Empty(t, decision.DissentingPersonas)
}

func TestReduce_BelowQuorum(t *testing.T) {
	engine := NewEngine(Config{Quorum: 3})

	opinions := []*council.Opinion{
		completedOpinion("a", 0.8, "Proceed: ship it"),
		completedOpinion("b", 0.7, "Proceed: ship it"),
		failedOpinion("c"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)

	assert.Equal(t, council.RecommendationInsufficientResponses, decision.Recommendation)
	assert.True(t, decision.Degraded)
	assert.Equal(t, 0.0, decision.Confidence)
}

func TestReduce_OrderIndependent(t *testing.T) {
	engine := NewEngine(Config{})

	forward := []*council.Opinion{
		completedOpinion("architect", 0.9, "Proceed: consolidate the pipelines"),
		completedOpinion("security", 0.3, "Defer: consolidate the pipelines"),
		completedOpinion("operations", 0.6, "Proceed: consolidate the pipelines"),
	}
	reversed := []*council.Opinion{forward[2], forward[0], forward[1]}

	weights := map[string]float64{"architect": 1.5}

	d1 := engine.Reduce(forward, weights, nil, time.Second)
	d2 := engine.Reduce(reversed, weights, nil, time.Second)

	d1.ElapsedMs = 0
	d2.ElapsedMs = 0
	assert.Equal(t, d1, d2)
}

func TestReduce_DirectionalDissentAboveThreshold(t *testing.T) {
	engine := NewEngine(Config{})

	// Equal confidence, zero variance: both sit at the threshold, but the
	// opposing direction still dissents.
	opinions := []*council.Opinion{
		completedOpinion("a", 0.8, "Proceed: enable the flag"),
		completedOpinion("b", 0.8, "Defer: enable the flag"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)

	// Tie on score and weight, so the lower persona ID wins selection
	assert.Equal(t, "Proceed: enable the flag", decision.Recommendation)
	assert.Equal(t, []string{"a"}, decision.SupportingPersonas)
	assert.Equal(t, []string{"b"}, decision.DissentingPersonas)
	assert.Equal(t, "Defer: enable the flag", decision.AlternativeViews["b"])
}

func TestReduce_TieBreakPrefersHigherWeight(t *testing.T) {
	engine := NewEngine(Config{})

	// b has half a's confidence but double the weight: identical scores.
	opinions := []*council.Opinion{
		completedOpinion("a", 0.8, "Proceed: option alpha"),
		completedOpinion("b", 0.4, "Proceed: option beta"),
	}
	weights := map[string]float64{"a": 1.0, "b": 2.0}

	decision := engine.Reduce(opinions, weights, nil, time.Second)

	assert.Equal(t, "Proceed: option beta", decision.Recommendation)
}

func TestReduce_PartitionInvariant(t *testing.T) {
	engine := NewEngine(Config{})

	opinions := []*council.Opinion{
		completedOpinion("a", 0.9, "Proceed: adopt"),
		completedOpinion("b", 0.2, "Defer: adopt"),
		completedOpinion("c", 0.7, "Proceed: adopt"),
		completedOpinion("d", 0.5, "Proceed with caution: adopt"),
		failedOpinion("e"),
	}

	decision := engine.Reduce(opinions, nil, nil, time.Second)
	require.NoError(t, decision.Validate())

	// Every completed opinion lands in exactly one list; stubs in neither.
	all := append([]string{}, decision.SupportingPersonas...)
	all = append(all, decision.DissentingPersonas...)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, all)
	assert.NotContains(t, all, "e")
}

func TestReduce_BoardCountsDeduplicated(t *testing.T) {
	engine := NewEngine(Config{})

	entries := []*council.BlackboardEntry{
		{ID: "1", PersonaID: "a", Kind: council.EntryKindConcern, Text: "Legacy integration risk"},
		{ID: "2", PersonaID: "b", Kind: council.EntryKindConcern, Text: "legacy  integration risk"},
		{ID: "3", PersonaID: "a", Kind: council.EntryKindConcern, Text: "missing test coverage"},
		{ID: "4", PersonaID: "b", Kind: council.EntryKindOpportunity, Text: "chance to simplify"},
		{ID: "5", PersonaID: "c", Kind: council.EntryKindObservation, Text: "deadline is in march"},
	}

	opinions := []*council.Opinion{completedOpinion("a", 0.6, "Proceed: go")}

	decision := engine.Reduce(opinions, nil, entries, time.Second)

	assert.Equal(t, 2, decision.ConcernCount)
	assert.Equal(t, 1, decision.OpportunityCount)
}

func TestReduce_ConfidenceAndAgreementBounds(t *testing.T) {
	engine := NewEngine(Config{})

	cases := []struct {
		name        string
		confidences []float64
	}{
		{"all zero", []float64{0, 0, 0}},
		{"all one", []float64{1, 1, 1}},
		{"extremes", []float64{0, 1}},
		{"mixed", []float64{0.1, 0.9, 0.5, 0.33}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opinions []*council.Opinion
			for i, c := range tc.confidences {
				opinions = append(opinions, completedOpinion(string(rune('a'+i)), c, "Proceed: x"))
			}

			decision := engine.Reduce(opinions, nil, nil, time.Second)

			assert.GreaterOrEqual(t, decision.Confidence, 0.0)
			assert.LessOrEqual(t, decision.Confidence, 1.0)
			assert.GreaterOrEqual(t, decision.Agreement, 0.0)
			assert.LessOrEqual(t, decision.Agreement, 1.0)
		})
	}
}

func TestDirectionOf(t *testing.T) {
	cases := []struct {
		text string
		want direction
	}{
		{"Proceed: ship the feature", directionAffirm},
		{"proceed with caution: ship it", directionAffirm},
		{"Adopt the new framework", directionAffirm},
		{"Defer: revisit next quarter", directionOppose},
		{"Do not merge this change", directionOppose},
		{"Reject the proposal", directionOppose},
		{"Consider gathering more data", directionNeutral},
		{"", directionNeutral},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, directionOf(tc.text), "text: %q", tc.text)
	}
}
