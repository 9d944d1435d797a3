package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

// SimulateRequest carries hypothetical per-subject scores keyed by subject
// id. Subjects absent from the map keep the student's actual score.
type SimulateRequest struct {
	StudentID     string             `json:"student_id" validate:"required"`
	SubjectScores map[string]float64 `json:"subject_scores" validate:"required"`
}

// SimulationService answers "what if" questions: it recomputes one
// student's total under hypothetical subject scores and re-ranks them
// against the cohort's unchanged totals. Nothing is persisted; the
// simulation works on copies of the snapshot's derived totals only.
type SimulationService struct {
	ranking *RankingService
	logger  *zap.Logger
}

// NewSimulationService constructs a SimulationService.
func NewSimulationService(ranking *RankingService, logger *zap.Logger) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{ranking: ranking, logger: logger}
}

// Simulate re-ranks the student under the hypothetical scores. A
// hypothetical outside [0, subject max score] is rejected with
// InvalidScore; scores are never clamped. Simulating with the actual
// scores returns the current rank and a zero rank change.
func (s *SimulationService) Simulate(snapshot *models.CohortSnapshot, req SimulateRequest) (*models.SimulationResult, error) {
	if err := s.ranking.Validate(snapshot); err != nil {
		return nil, err
	}

	subjectsByID := make(map[string]models.Subject, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		subjectsByID[subject.ID] = subject
	}
	maxScores := subjectMaxScores(snapshot)

	for subjectID, hypothetical := range req.SubjectScores {
		subject, ok := subjectsByID[subjectID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not in exam", subjectID))
		}
		if hypothetical < 0 || hypothetical > maxScores[subjectID] {
			return nil, appErrors.Clone(appErrors.ErrInvalidScore,
				fmt.Sprintf("hypothetical score for %s outside [0, %.2f]", subject.Name, maxScores[subjectID]))
		}
	}

	actualTotals := s.ranking.Totals(snapshot)
	currentRanked := s.ranking.Rank(actualTotals)
	current, err := s.ranking.RankOf(currentRanked, req.StudentID)
	if err != nil {
		return nil, err
	}

	// Per-subject actual scores for the target student.
	actualBySubject := make(map[string]float64, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		for _, entry := range s.ranking.SubjectTotals(snapshot, subject.ID) {
			if entry.StudentID == req.StudentID {
				actualBySubject[subject.ID] = entry.Total
				break
			}
		}
	}

	newTotal := 0.0
	rows := make([]models.SubjectSimulation, 0, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		actual := actualBySubject[subject.ID]
		ideal := actual
		if hypothetical, ok := req.SubjectScores[subject.ID]; ok {
			ideal = hypothetical
		}
		newTotal += ideal
		rows = append(rows, models.SubjectSimulation{
			SubjectID:    subject.ID,
			SubjectName:  subject.Name,
			CurrentScore: actual,
			IdealScore:   ideal,
			MaxScore:     maxScores[subject.ID],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubjectName < rows[j].SubjectName })

	// Everyone else keeps their actual total; only the target moves.
	simulated := make([]models.StudentTotal, len(actualTotals))
	copy(simulated, actualTotals)
	for i := range simulated {
		if simulated[i].StudentID == req.StudentID {
			simulated[i].Total = newTotal
		}
	}

	predicted, err := s.ranking.RankOf(s.ranking.Rank(simulated), req.StudentID)
	if err != nil {
		return nil, err
	}

	return &models.SimulationResult{
		Subjects:      rows,
		NewTotal:      newTotal,
		CurrentRank:   current.Rank,
		PredictedRank: predicted.Rank,
		RankChange:    current.Rank - predicted.Rank,
	}, nil
}

// subjectMaxScores sums question full scores per subject.
func subjectMaxScores(snapshot *models.CohortSnapshot) map[string]float64 {
	maxScores := make(map[string]float64, len(snapshot.Subjects))
	for _, question := range snapshot.Questions {
		maxScores[question.SubjectID] += question.FullScore
	}
	return maxScores
}
