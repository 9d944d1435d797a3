package service

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
	appErrors "github.com/paperlens/exam-insight-api/pkg/errors"
)

// RankingService turns a cohort snapshot into totals, ranks, percentiles
// and per-subject comparison statistics. It holds no mutable state: every
// method is a pure function of the supplied snapshot, so identical
// snapshots always yield identical output and concurrent calls for
// different cohorts never interfere.
type RankingService struct {
	logger *zap.Logger
}

// NewRankingService constructs a RankingService.
func NewRankingService(logger *zap.Logger) *RankingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankingService{logger: logger}
}

// Validate checks the snapshot for internal consistency: every answer must
// reference a known student and question, and no (student, question) pair
// may appear twice. A failure indicates the cohort was read across a
// mutation and must be re-read.
func (s *RankingService) Validate(snapshot *models.CohortSnapshot) error {
	if snapshot == nil {
		return appErrors.Clone(appErrors.ErrInconsistentSnapshot, "nil snapshot")
	}
	students := make(map[string]struct{}, len(snapshot.Students))
	for _, student := range snapshot.Students {
		students[student.ID] = struct{}{}
	}
	questions := make(map[string]struct{}, len(snapshot.Questions))
	for _, question := range snapshot.Questions {
		questions[question.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(snapshot.Answers))
	for _, answer := range snapshot.Answers {
		if _, ok := students[answer.StudentID]; !ok {
			return appErrors.Clone(appErrors.ErrInconsistentSnapshot, fmt.Sprintf("answer %s references unknown student", answer.ID))
		}
		if _, ok := questions[answer.QuestionID]; !ok {
			return appErrors.Clone(appErrors.ErrInconsistentSnapshot, fmt.Sprintf("answer %s references unknown question", answer.ID))
		}
		key := answer.StudentID + "/" + answer.QuestionID
		if _, dup := seen[key]; dup {
			return appErrors.Clone(appErrors.ErrInconsistentSnapshot, fmt.Sprintf("duplicate answer for student %s question %s", answer.StudentID, answer.QuestionID))
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Totals sums final scores per student. Ungraded answers and questions a
// student never answered contribute 0, a deliberate policy so that
// partially graded cohorts still rank deterministically.
func (s *RankingService) Totals(snapshot *models.CohortSnapshot) []models.StudentTotal {
	byStudent := make(map[string]float64, len(snapshot.Students))
	for _, student := range snapshot.Students {
		byStudent[student.ID] = 0
	}
	for _, answer := range snapshot.Answers {
		if answer.FinalScore == nil {
			continue
		}
		if _, ok := byStudent[answer.StudentID]; !ok {
			continue
		}
		byStudent[answer.StudentID] += *answer.FinalScore
	}

	totals := make([]models.StudentTotal, 0, len(byStudent))
	for id, total := range byStudent {
		totals = append(totals, models.StudentTotal{StudentID: id, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].StudentID < totals[j].StudentID
	})
	return totals
}

// Rank assigns standard competition ranks over totals sorted descending:
// tied students share a rank and the next distinct total resumes at
// previous rank + tied count. Win rate is the share of the cohort the
// student outscores, (n − rank) / n × 100.
func (s *RankingService) Rank(totals []models.StudentTotal) []models.RankedStudent {
	sorted := make([]models.StudentTotal, len(totals))
	copy(sorted, totals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Total != sorted[j].Total {
			return sorted[i].Total > sorted[j].Total
		}
		return sorted[i].StudentID < sorted[j].StudentID
	})

	n := len(sorted)
	ranked := make([]models.RankedStudent, n)
	rank := 0
	for i, entry := range sorted {
		if i == 0 || entry.Total != sorted[i-1].Total {
			rank = i + 1
		}
		ranked[i] = models.RankedStudent{
			StudentID: entry.StudentID,
			Total:     entry.Total,
			Rank:      rank,
			WinRate:   winRate(rank, n),
		}
	}
	return ranked
}

// RankOf returns the ranked entry for one student.
func (s *RankingService) RankOf(ranked []models.RankedStudent, studentID string) (models.RankedStudent, error) {
	for _, entry := range ranked {
		if entry.StudentID == studentID {
			return entry, nil
		}
	}
	return models.RankedStudent{}, appErrors.Clone(appErrors.ErrNotFound, "student not in cohort")
}

// SubjectTotals sums final scores per student for one subject.
func (s *RankingService) SubjectTotals(snapshot *models.CohortSnapshot, subjectID string) []models.StudentTotal {
	questionSubject := make(map[string]string, len(snapshot.Questions))
	for _, question := range snapshot.Questions {
		questionSubject[question.ID] = question.SubjectID
	}

	byStudent := make(map[string]float64, len(snapshot.Students))
	for _, student := range snapshot.Students {
		byStudent[student.ID] = 0
	}
	for _, answer := range snapshot.Answers {
		if answer.FinalScore == nil || questionSubject[answer.QuestionID] != subjectID {
			continue
		}
		if _, ok := byStudent[answer.StudentID]; !ok {
			continue
		}
		byStudent[answer.StudentID] += *answer.FinalScore
	}

	totals := make([]models.StudentTotal, 0, len(byStudent))
	for id, total := range byStudent {
		totals = append(totals, models.StudentTotal{StudentID: id, Total: total})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].StudentID < totals[j].StudentID
	})
	return totals
}

// SubjectComparisons builds the per-subject avg/max/diff rows for one
// student. Average and max are computed over the whole cohort restricted to
// each subject's answers.
func (s *RankingService) SubjectComparisons(snapshot *models.CohortSnapshot, studentID string) ([]models.SubjectComparison, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}

	comparisons := make([]models.SubjectComparison, 0, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		totals := s.SubjectTotals(snapshot, subject.ID)
		if len(totals) == 0 {
			continue
		}
		ranked := s.Rank(totals)

		sum := 0.0
		max := totals[0].Total
		for _, entry := range totals {
			sum += entry.Total
		}
		avg := sum / float64(len(totals))

		entry, err := s.RankOf(ranked, studentID)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, models.SubjectComparison{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Score:       entry.Total,
			Rank:        entry.Rank,
			Average:     avg,
			Max:         max,
			Diff:        entry.Total - avg,
		})
	}
	return comparisons, nil
}

// Position assembles the cohort-position view for one student.
func (s *RankingService) Position(snapshot *models.CohortSnapshot, studentID string) (*models.LevelPosition, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	ranked := s.Rank(s.Totals(snapshot))
	entry, err := s.RankOf(ranked, studentID)
	if err != nil {
		return nil, err
	}
	comparisons, err := s.SubjectComparisons(snapshot, studentID)
	if err != nil {
		return nil, err
	}
	return &models.LevelPosition{
		Grouping:          snapshot.Grouping,
		CohortSize:        len(ranked),
		TotalRank:         entry.Rank,
		TotalWinRate:      entry.WinRate,
		SubjectComparison: comparisons,
	}, nil
}

// PK assembles the head-to-head percentile view for one student.
func (s *RankingService) PK(snapshot *models.CohortSnapshot, studentID string) (*models.PKAnalysis, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	totals := s.Totals(snapshot)
	ranked := s.Rank(totals)
	entry, err := s.RankOf(ranked, studentID)
	if err != nil {
		return nil, err
	}

	sum := 0.0
	max := 0.0
	for i, t := range totals {
		sum += t.Total
		if i == 0 || t.Total > max {
			max = t.Total
		}
	}
	avg := 0.0
	if len(totals) > 0 {
		avg = sum / float64(len(totals))
	}

	return &models.PKAnalysis{
		RankIndex:   entry.Rank,
		RankPercent: entry.WinRate,
		CohortSize:  len(ranked),
		TotalScore:  entry.Total,
		CohortAvg:   avg,
		CohortMax:   max,
	}, nil
}

// QuestionStats builds the per-question breakdown of one subject for one
// student: the student's score on each question next to the cohort's
// scoring rate.
func (s *RankingService) QuestionStats(snapshot *models.CohortSnapshot, studentID, subjectID string) (*models.QuestionAnalysis, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	if _, err := s.RankOf(s.Rank(s.Totals(snapshot)), studentID); err != nil {
		return nil, err
	}

	var subjectName string
	found := false
	available := make([]string, 0, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		available = append(available, subject.Name)
		if subject.ID == subjectID {
			subjectName = subject.Name
			found = true
		}
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not in exam")
	}

	rates := cohortScoringRates(snapshot)
	scores := studentScores(snapshot, studentID)

	analysis := &models.QuestionAnalysis{
		SubjectID:         subjectID,
		SubjectName:       subjectName,
		AvailableSubjects: available,
	}
	for _, question := range snapshot.Questions {
		if question.SubjectID != subjectID {
			continue
		}
		analysis.Questions = append(analysis.Questions, models.QuestionStat{
			QuestionID:   question.ID,
			QuestionCode: question.QuestionCode,
			QuestionType: question.QuestionType,
			FullScore:    question.FullScore,
			Score:        scores[question.ID],
			CohortRate:   rates[question.ID],
		})
	}
	sort.Slice(analysis.Questions, func(i, j int) bool {
		return analysis.Questions[i].QuestionCode < analysis.Questions[j].QuestionCode
	})
	return analysis, nil
}

// difficultyCuts maps cohort scoring rate (percent) to a difficulty level.
// First band whose floor the rate reaches wins.
var difficultyCuts = []struct {
	level models.DifficultyLevel
	floor float64
}{
	{models.DifficultyVeryEasy, 90},
	{models.DifficultyEasy, 75},
	{models.DifficultyMedium, 50},
	{models.DifficultyHard, 25},
	{models.DifficultyVeryHard, 0},
}

func difficultyFor(rate float64) models.DifficultyLevel {
	for _, cut := range difficultyCuts {
		if rate >= cut.floor {
			return cut.level
		}
	}
	return models.DifficultyVeryHard
}

// LossAnalysis locates one student's dropped points. Questions are banded
// by cohort difficulty; a loss counts as recoverable when the cohort scores
// at least 50 percent on the question, and RankImprovement is the rank the
// student would gain by recovering all of those points. Ungraded answers
// and unanswered questions count as zero, the same policy Totals applies.
func (s *RankingService) LossAnalysis(snapshot *models.CohortSnapshot, studentID string) (*models.LossAnalysis, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	totals := s.Totals(snapshot)
	current, err := s.RankOf(s.Rank(totals), studentID)
	if err != nil {
		return nil, err
	}

	subjectNames := make(map[string]string, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		subjectNames[subject.ID] = subject.Name
	}
	rates := cohortScoringRates(snapshot)
	scores := studentScores(snapshot, studentID)

	ordered := make([]models.Question, len(snapshot.Questions))
	copy(ordered, snapshot.Questions)
	sort.Slice(ordered, func(i, j int) bool {
		if subjectNames[ordered[i].SubjectID] != subjectNames[ordered[j].SubjectID] {
			return subjectNames[ordered[i].SubjectID] < subjectNames[ordered[j].SubjectID]
		}
		return ordered[i].QuestionCode < ordered[j].QuestionCode
	})

	bands := make(map[models.DifficultyLevel]*models.DifficultyBand)
	earned := make(map[models.DifficultyLevel]float64)
	analysis := &models.LossAnalysis{}
	for _, question := range ordered {
		if question.FullScore <= 0 {
			continue
		}
		level := difficultyFor(rates[question.ID])
		band, ok := bands[level]
		if !ok {
			band = &models.DifficultyBand{Level: level}
			bands[level] = band
		}
		ref := models.QuestionRef{SubjectName: subjectNames[question.SubjectID], QuestionCode: question.QuestionCode}
		band.FullScore += question.FullScore
		band.Count++
		band.Questions = append(band.Questions, ref)

		got := 0.0
		if p := scores[question.ID]; p != nil {
			got = *p
		}
		earned[level] += got
		lost := question.FullScore - got

		switch {
		case lost <= 0:
			band.Correct++
			if level != models.DifficultyVeryEasy && level != models.DifficultyEasy {
				analysis.Advantage = append(analysis.Advantage, ref)
			}
		case got > 0:
			band.Partial++
			analysis.PartiallyLost = append(analysis.PartiallyLost, ref)
		default:
			analysis.FullyLost = append(analysis.FullyLost, ref)
		}
		if lost > 0 && rates[question.ID] >= 50 {
			analysis.Recoverable = append(analysis.Recoverable, ref)
			analysis.PotentialGain += lost
		}
	}

	for _, cut := range difficultyCuts {
		band, ok := bands[cut.level]
		if !ok {
			continue
		}
		if band.FullScore > 0 {
			band.ScoringRate = earned[cut.level] / band.FullScore * 100
		}
		analysis.Bands = append(analysis.Bands, *band)
	}

	if analysis.PotentialGain > 0 {
		adjusted := make([]models.StudentTotal, len(totals))
		copy(adjusted, totals)
		for i := range adjusted {
			if adjusted[i].StudentID == studentID {
				adjusted[i].Total += analysis.PotentialGain
			}
		}
		predicted, err := s.RankOf(s.Rank(adjusted), studentID)
		if err != nil {
			return nil, err
		}
		analysis.RankImprovement = current.Rank - predicted.Rank
	}
	return analysis, nil
}

const defaultPassThreshold = 0.6

// ClassScores builds the teacher-facing ranked listing for the snapshot's
// cohort. passThreshold is the fraction of the exam full score that counts
// as passing; non-positive values fall back to the 60 percent default.
func (s *RankingService) ClassScores(snapshot *models.CohortSnapshot, passThreshold float64) (*models.ClassScoreReport, error) {
	if err := s.Validate(snapshot); err != nil {
		return nil, err
	}
	if passThreshold <= 0 {
		passThreshold = defaultPassThreshold
	}

	students := make(map[string]models.Student, len(snapshot.Students))
	for _, student := range snapshot.Students {
		students[student.ID] = student
	}
	examFull := 0.0
	for _, question := range snapshot.Questions {
		examFull += question.FullScore
	}
	passLine := passThreshold * examFull

	ranked := s.Rank(s.Totals(snapshot))
	report := &models.ClassScoreReport{
		ClassID:    snapshot.GroupKey,
		CohortSize: len(ranked),
		Students:   make([]models.ClassScoreRow, 0, len(ranked)),
	}
	sum := 0.0
	passed := 0
	for _, entry := range ranked {
		student := students[entry.StudentID]
		report.Students = append(report.Students, models.ClassScoreRow{
			StudentID:   entry.StudentID,
			StudentCode: student.StudentCode,
			StudentName: student.Name,
			Total:       entry.Total,
			Rank:        entry.Rank,
		})
		sum += entry.Total
		if entry.Total > report.Max {
			report.Max = entry.Total
		}
		if examFull > 0 && entry.Total >= passLine {
			passed++
		}
	}
	if len(ranked) > 0 {
		report.Average = sum / float64(len(ranked))
		report.PassRate = float64(passed) / float64(len(ranked)) * 100
	}
	return report, nil
}

// cohortScoringRates computes, per question, the cohort's mean graded score
// as a percentage of full score. Questions nobody has been graded on rate 0.
func cohortScoringRates(snapshot *models.CohortSnapshot) map[string]float64 {
	full := make(map[string]float64, len(snapshot.Questions))
	for _, question := range snapshot.Questions {
		full[question.ID] = question.FullScore
	}
	sums := make(map[string]float64, len(full))
	counts := make(map[string]int, len(full))
	for _, answer := range snapshot.Answers {
		if answer.FinalScore == nil {
			continue
		}
		sums[answer.QuestionID] += *answer.FinalScore
		counts[answer.QuestionID]++
	}
	rates := make(map[string]float64, len(full))
	for id, fullScore := range full {
		if counts[id] == 0 || fullScore <= 0 {
			rates[id] = 0
			continue
		}
		rates[id] = sums[id] / (float64(counts[id]) * fullScore) * 100
	}
	return rates
}

// studentScores indexes one student's graded scores by question id.
func studentScores(snapshot *models.CohortSnapshot, studentID string) map[string]*float64 {
	scores := make(map[string]*float64)
	for _, answer := range snapshot.Answers {
		if answer.StudentID != studentID || answer.FinalScore == nil {
			continue
		}
		v := *answer.FinalScore
		scores[answer.QuestionID] = &v
	}
	return scores
}

func winRate(rank, cohortSize int) float64 {
	if cohortSize == 0 {
		return 0
	}
	return float64(cohortSize-rank) / float64(cohortSize) * 100
}
