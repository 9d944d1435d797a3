package models

// ReviewState describes the outcome of resolving an answer's grade records.
type ReviewState string

const (
	// ReviewUngraded means no grade records exist yet.
	ReviewUngraded ReviewState = "UNGRADED"
	// ReviewResolved means a final score was derived.
	ReviewResolved ReviewState = "RESOLVED"
	// ReviewNeedsArbitration means reviewer scores disagree beyond
	// tolerance and a human must settle the score. This is an expected
	// state, not an error.
	ReviewNeedsArbitration ReviewState = "NEEDS_ARBITRATION"
)

// ScoringPolicy drives multi-reviewer resolution. Tolerance is a fraction
// of the question's full score; per-type overrides take precedence over the
// default. Grading tolerance varies by question type and by school, so the
// policy always arrives via configuration.
type ScoringPolicy struct {
	DefaultTolerance float64            `json:"default_tolerance"`
	ToleranceByType  map[string]float64 `json:"tolerance_by_type,omitempty"`
	ScorePrecision   int                `json:"score_precision"`
}

// Tolerance returns the absolute score tolerance for a question.
func (p ScoringPolicy) Tolerance(questionType QuestionType, fullScore float64) float64 {
	fraction := p.DefaultTolerance
	if override, ok := p.ToleranceByType[string(questionType)]; ok {
		fraction = override
	}
	return fraction * fullScore
}

// Resolution is the aggregator's verdict for one answer.
type Resolution struct {
	State   ReviewState `json:"state"`
	Score   *float64    `json:"score,omitempty"`
	Comment string      `json:"comment,omitempty"`
}
