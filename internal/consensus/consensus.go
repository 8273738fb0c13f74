// Package consensus reduces a set of terminal opinions into a single
// decision. The reduction is a pure function: identical opinion sets and
// board snapshots always produce an identical decision, regardless of the
// order in which opinions arrived.
package consensus

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/quorumworks/council/pkg/council"
)

// maxVariance is the largest possible population variance of values in
// [0,1], used to normalize the agreement score.
const maxVariance = 0.25

// Config tunes the reduction. Zero values get defaults in NewEngine.
type Config struct {
	// SupportBand is the std-dev multiplier below the weighted mean within
	// which an opinion still counts as supporting. Default 1.0.
	SupportBand float64

	// Quorum is the minimum number of completed opinions for a
	// non-degraded decision. Default 1.
	Quorum int
}

// Engine performs the consensus reduction. Stateless and safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates a consensus engine, applying defaults for zero config
// values.
func NewEngine(cfg Config) *Engine {
	if cfg.SupportBand == 0 {
		cfg.SupportBand = 1.0
	}
	if cfg.Quorum < 1 {
		cfg.Quorum = 1
	}
	return &Engine{cfg: cfg}
}

// Reduce computes the Decision for a set of terminal opinions.
//
// Only completed opinions enter the math; failed and timed-out stubs are
// excluded (they appear in neither the supporting nor the dissenting list).
// Weights missing from the map default to 1.0. The board snapshot
// contributes the deduplicated concern/opportunity counts.
func (e *Engine) Reduce(opinions []*council.Opinion, weights map[string]float64, entries []*council.BlackboardEntry, elapsed time.Duration) *council.Decision {
	completed := completedByID(opinions)

	concernCount, opportunityCount := countTagged(entries)

	decision := &council.Decision{
		SupportingPersonas: []string{},
		DissentingPersonas: []string{},
		ConcernCount:       concernCount,
		OpportunityCount:   opportunityCount,
		ElapsedMs:          elapsed.Milliseconds(),
	}

	// Zero completed opinions: every persona failed or timed out (or the
	// roster was empty). Emit the sentinel, never an error.
	if len(completed) == 0 {
		decision.Recommendation = council.RecommendationNoConsensus
		decision.Degraded = true
		return decision
	}

	// Below quorum: a decision exists but is flagged as meaningless.
	if len(completed) < e.cfg.Quorum {
		decision.Recommendation = council.RecommendationInsufficientResponses
		decision.Degraded = true
		return decision
	}

	decision.Confidence = weightedConfidence(completed, weights)
	decision.Agreement = agreementScore(completed)

	selected := e.selectRecommendation(completed, weights)
	decision.Recommendation = selected.Recommendation

	mean := decision.Confidence
	stddev := math.Sqrt(confidenceVariance(completed))
	threshold := mean - e.cfg.SupportBand*stddev

	alternatives := make(map[string]string)
	for _, op := range completed {
		if op.Confidence >= threshold && directionsCompatible(directionOf(op.Recommendation), directionOf(selected.Recommendation)) {
			decision.SupportingPersonas = append(decision.SupportingPersonas, op.PersonaID)
		} else {
			decision.DissentingPersonas = append(decision.DissentingPersonas, op.PersonaID)
			// Dissent keeps its voice: the original recommendation, verbatim
			alternatives[op.PersonaID] = op.Recommendation
		}
	}
	if len(alternatives) > 0 {
		decision.AlternativeViews = alternatives
	}

	return decision
}

// completedByID filters to completed opinions and sorts by persona ID so the
// reduction is independent of arrival order.
func completedByID(opinions []*council.Opinion) []*council.Opinion {
	var completed []*council.Opinion
	for _, op := range opinions {
		if op != nil && op.Status == council.OpinionStatusCompleted {
			completed = append(completed, op)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].PersonaID < completed[j].PersonaID
	})
	return completed
}

// weightedConfidence computes sum(confidence * weight) / sum(weight).
func weightedConfidence(completed []*council.Opinion, weights map[string]float64) float64 {
	var weightedSum, totalWeight float64
	for _, op := range completed {
		w := weightOf(op.PersonaID, weights)
		weightedSum += op.Confidence * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}
	return clamp01(weightedSum / totalWeight)
}

// agreementScore measures dispersion, not certainty: 1 minus the normalized
// population variance of raw confidences. A tight cluster of moderate
// confidences scores high agreement; divergent confidences score low
// agreement even when their mean is high. A single opinion has no
// dispersion and scores 1.
func agreementScore(completed []*council.Opinion) float64 {
	if len(completed) < 2 {
		return 1
	}
	return clamp01(1 - confidenceVariance(completed)/maxVariance)
}

// confidenceVariance is the unweighted population variance of completed
// confidences.
func confidenceVariance(completed []*council.Opinion) float64 {
	if len(completed) == 0 {
		return 0
	}

	var sum float64
	for _, op := range completed {
		sum += op.Confidence
	}
	mean := sum / float64(len(completed))

	var sq float64
	for _, op := range completed {
		d := op.Confidence - mean
		sq += d * d
	}
	return sq / float64(len(completed))
}

// selectRecommendation picks the opinion whose recommendation becomes the
// decision text: highest weighted confidence, ties broken by persona weight,
// then by persona ID for determinism.
func (e *Engine) selectRecommendation(completed []*council.Opinion, weights map[string]float64) *council.Opinion {
	best := completed[0]
	bestScore := best.Confidence * weightOf(best.PersonaID, weights)

	for _, op := range completed[1:] {
		score := op.Confidence * weightOf(op.PersonaID, weights)
		switch {
		case score > bestScore:
			best, bestScore = op, score
		case score == bestScore:
			bw := weightOf(best.PersonaID, weights)
			ow := weightOf(op.PersonaID, weights)
			if ow > bw || (ow == bw && op.PersonaID < best.PersonaID) {
				best, bestScore = op, score
			}
		}
	}

	return best
}

// direction classifies the stance of a recommendation's leading clause.
type direction int

const (
	directionNeutral direction = iota
	directionAffirm
	directionOppose
)

var (
	affirmPrefixes = []string{"proceed", "adopt", "approve", "accept", "yes", "go ahead", "ship"}
	opposePrefixes = []string{"defer", "reject", "avoid", "hold", "no", "stop", "do not", "don't"}
)

// directionOf classifies a recommendation by its opening words.
func directionOf(recommendation string) direction {
	text := strings.ToLower(strings.TrimSpace(recommendation))
	for _, p := range affirmPrefixes {
		if strings.HasPrefix(text, p) {
			return directionAffirm
		}
	}
	for _, p := range opposePrefixes {
		if strings.HasPrefix(text, p) {
			return directionOppose
		}
	}
	return directionNeutral
}

// directionsCompatible reports whether an opinion's direction agrees with
// the selected recommendation. Neutral is compatible with anything: only an
// explicit opposite direction counts as directional disagreement.
func directionsCompatible(a, b direction) bool {
	if a == directionNeutral || b == directionNeutral {
		return true
	}
	return a == b
}

// countTagged counts concern and opportunity board entries, deduplicated by
// normalized text so the same observation from two personas counts once.
func countTagged(entries []*council.BlackboardEntry) (concerns, opportunities int) {
	seenConcerns := make(map[string]bool)
	seenOpportunities := make(map[string]bool)

	for _, e := range entries {
		key := normalizeText(e.Text)
		switch e.Kind {
		case council.EntryKindConcern:
			if !seenConcerns[key] {
				seenConcerns[key] = true
				concerns++
			}
		case council.EntryKindOpportunity:
			if !seenOpportunities[key] {
				seenOpportunities[key] = true
				opportunities++
			}
		}
	}

	return concerns, opportunities
}

// normalizeText lowercases and collapses whitespace for deduplication.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func weightOf(personaID string, weights map[string]float64) float64 {
	if w, ok := weights[personaID]; ok && w > 0 {
		return w
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
