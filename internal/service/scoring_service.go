package service

import (
	"math"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

// ScoringService resolves one authoritative final score per answer from its
// append-only grade records. Resolution is a pure function of the record
// set and the configured policy: identical inputs always produce the same
// verdict, regardless of record order.
type ScoringService struct {
	policy models.ScoringPolicy
	logger *zap.Logger
}

// NewScoringService constructs a ScoringService.
func NewScoringService(policy models.ScoringPolicy, logger *zap.Logger) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.ScorePrecision <= 0 {
		policy.ScorePrecision = 2
	}
	return &ScoringService{policy: policy, logger: logger}
}

// Policy returns the active scoring policy.
func (s *ScoringService) Policy() models.ScoringPolicy {
	return s.policy
}

// Resolve derives the final score and comment for an answer.
//
//   - No records: the answer stays ungraded.
//   - One record: that record's score and comment verbatim.
//   - Several records: when all scores sit within the tolerance configured
//     for the question type, the result is their arithmetic mean rounded to
//     the configured precision and the latest-timestamped comment.
//     Otherwise the answer needs human arbitration and no score is set.
func (s *ScoringService) Resolve(question *models.Question, records []models.GradeRecord) (models.Resolution, error) {
	if question == nil || question.FullScore <= 0 {
		return models.Resolution{}, appErrors.Clone(appErrors.ErrInvalidScore, "question full score must be positive")
	}
	for _, record := range records {
		if record.Score < 0 || record.Score > question.FullScore {
			return models.Resolution{}, appErrors.Clone(appErrors.ErrInvalidScore, "grade record score outside [0, full_score]")
		}
	}

	switch len(records) {
	case 0:
		return models.Resolution{State: models.ReviewUngraded}, nil
	case 1:
		score := s.round(records[0].Score)
		return models.Resolution{State: models.ReviewResolved, Score: &score, Comment: records[0].Comment}, nil
	}

	minScore := records[0].Score
	maxScore := records[0].Score
	sum := 0.0
	latest := records[0]
	for _, record := range records {
		if record.Score < minScore {
			minScore = record.Score
		}
		if record.Score > maxScore {
			maxScore = record.Score
		}
		sum += record.Score
		if record.RecordedAt.After(latest.RecordedAt) {
			latest = record
		}
	}

	tolerance := s.policy.Tolerance(question.QuestionType, question.FullScore)
	if maxScore-minScore > tolerance {
		s.logger.Debug("reviewer disagreement beyond tolerance",
			zap.String("question_id", question.ID),
			zap.Float64("spread", maxScore-minScore),
			zap.Float64("tolerance", tolerance),
		)
		return models.Resolution{State: models.ReviewNeedsArbitration}, nil
	}

	mean := s.round(sum / float64(len(records)))
	return models.Resolution{State: models.ReviewResolved, Score: &mean, Comment: latest.Comment}, nil
}

func (s *ScoringService) round(v float64) float64 {
	factor := math.Pow(10, float64(s.policy.ScorePrecision))
	return math.RoundToEven(v*factor) / factor
}
