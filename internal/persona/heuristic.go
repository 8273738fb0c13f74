package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quorumworks/council/internal/board"
	"github.com/quorumworks/council/pkg/council"
)

// Stance biases a heuristic persona's baseline confidence.
type Stance string

const (
	StanceNeutral  Stance = "neutral"
	StanceOptimist Stance = "optimist"
	StanceSkeptic  Stance = "skeptic"
)

// Signal vocabularies for the heuristic capability. Matching is by
// normalized substring so "deprecating" matches "deprecat".
var (
	riskSignals = []string{
		"risk", "deprecat", "breaking", "security", "legacy",
		"debt", "outage", "unstable", "untested", "deadline",
	}

	opportunitySignals = []string{
		"improve", "automat", "simplif", "performance", "growth",
		"modern", "consolidat", "reduce cost", "reuse", "standardiz",
	}
)

// Heuristic is the built-in rule-based persona capability: deterministic
// keyword and expertise-tag scoring with a stance bias. It exists so a
// council is usable with no external reasoning backend; any richer
// capability plugs in behind the same Persona interface.
type Heuristic struct {
	info   council.PersonaInfo
	stance Stance
}

// NewHeuristic creates a heuristic persona. An empty stance means neutral.
func NewHeuristic(info council.PersonaInfo, stance Stance) *Heuristic {
	if stance == "" {
		stance = StanceNeutral
	}
	return &Heuristic{info: info, stance: stance}
}

// Info returns the static persona definition.
func (h *Heuristic) Info() council.PersonaInfo {
	return h.info
}

// Analyze scores the query against the persona's expertise tags and the
// shared signal vocabularies. Deterministic: the same query and context
// always produce the same opinion. Concern and opportunity matches are also
// written to the shared board.
func (h *Heuristic) Analyze(ctx context.Context, q *council.Query, b *board.Board) (*council.Opinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if q == nil || q.Text == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	started := time.Now()
	text := normalize(q.Text)

	confidence := 0.5

	// Expertise overlap raises confidence: a persona speaking inside its
	// domain is more certain than one guessing outside it.
	expertiseHits := 0
	for _, tag := range h.info.Expertise {
		if tag != "" && strings.Contains(text, normalize(tag)) {
			expertiseHits++
		}
	}
	confidence += 0.07 * float64(expertiseHits)

	var concerns []string
	for _, signal := range riskSignals {
		if strings.Contains(text, signal) {
			concerns = append(concerns, signal)
			if _, err := b.AddConcern(h.info.ID, fmt.Sprintf("query raises %s considerations", signal)); err != nil {
				return nil, fmt.Errorf("failed to record concern: %w", err)
			}
		}
	}
	confidence -= 0.05 * float64(len(concerns))

	var opportunities []string
	for _, signal := range opportunitySignals {
		if strings.Contains(text, signal) {
			opportunities = append(opportunities, signal)
			if _, err := b.AddOpportunity(h.info.ID, fmt.Sprintf("query suggests a chance to %s", signal)); err != nil {
				return nil, fmt.Errorf("failed to record opportunity: %w", err)
			}
		}
	}
	confidence += 0.04 * float64(len(opportunities))

	switch h.stance {
	case StanceOptimist:
		confidence += 0.10
	case StanceSkeptic:
		confidence -= 0.10
	}

	// Context keys are caller-defined; recognize a couple, ignore the rest
	if tolerance, ok := q.Context["risk_tolerance"].(string); ok && tolerance == "low" {
		confidence -= 0.05
	}
	if priority, ok := q.Context["priority"].(string); ok && priority == "high" {
		confidence += 0.05
	}

	confidence = clamp(confidence, 0.05, 0.95)

	opinion := &council.Opinion{
		PersonaID:      h.info.ID,
		Recommendation: recommend(confidence, q.Text),
		Confidence:     confidence,
		Concerns:       concerns,
		Opportunities:  opportunities,
		Status:         council.OpinionStatusCompleted,
		ElapsedMs:      time.Since(started).Milliseconds(),
	}

	return opinion, nil
}

// recommend maps a confidence to a directional recommendation. The leading
// verb matters: the consensus engine classifies recommendation direction by
// its opening word.
func recommend(confidence float64, queryText string) string {
	subject := summarize(queryText)
	switch {
	case confidence >= 0.6:
		return fmt.Sprintf("Proceed: %s", subject)
	case confidence >= 0.4:
		return fmt.Sprintf("Proceed with caution: %s", subject)
	default:
		return fmt.Sprintf("Defer: %s", subject)
	}
}

// summarize truncates a query to a single recommendation-sized clause.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".?!\n"); idx > 0 {
		text = text[:idx]
	}
	if runes := []rune(text); len(runes) > 80 {
		text = string(runes[:77]) + "..."
	}
	return text
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
