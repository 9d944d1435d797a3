package service

import (
	"sort"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
)

// BiasConfig holds the classification thresholds. Margin is the inclusive
// win-rate gap that marks a subject as a strength or weakness; the offsets
// bucket knowledge-point mastery relative to the cohort rate. Schools tune
// these, so they are configuration rather than constants.
type BiasConfig struct {
	Margin          float64
	ExcellentOffset float64
	PassOffset      float64
}

// BiasService derives subject bias (the win-rate radar) and knowledge-point
// mastery buckets from a cohort snapshot. Pure: no state beyond the
// configured thresholds.
type BiasService struct {
	ranking *RankingService
	cfg     BiasConfig
	logger  *zap.Logger
}

// NewBiasService constructs a BiasService.
func NewBiasService(ranking *RankingService, cfg BiasConfig, logger *zap.Logger) *BiasService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Margin <= 0 {
		cfg.Margin = 5.0
	}
	if cfg.ExcellentOffset <= 0 {
		cfg.ExcellentOffset = 10.0
	}
	if cfg.PassOffset <= 0 {
		cfg.PassOffset = 10.0
	}
	return &BiasService{ranking: ranking, cfg: cfg, logger: logger}
}

// Analyze compares each subject's win rate against the student's overall
// win rate. A subject whose win rate exceeds the total by at least the
// margin (inclusive) is a strength; at or below the negative margin it is
// weak.
func (s *BiasService) Analyze(snapshot *models.CohortSnapshot, studentID string) (*models.BiasAnalysis, error) {
	if err := s.ranking.Validate(snapshot); err != nil {
		return nil, err
	}

	overall, err := s.ranking.RankOf(s.ranking.Rank(s.ranking.Totals(snapshot)), studentID)
	if err != nil {
		return nil, err
	}

	analysis := &models.BiasAnalysis{
		Radar:            make([]models.BiasRadarEntry, 0, len(snapshot.Subjects)),
		StrengthSubjects: []string{},
		WeakSubjects:     []string{},
	}
	for _, subject := range snapshot.Subjects {
		totals := s.ranking.SubjectTotals(snapshot, subject.ID)
		if len(totals) == 0 {
			continue
		}
		entry, err := s.ranking.RankOf(s.ranking.Rank(totals), studentID)
		if err != nil {
			return nil, err
		}
		analysis.Radar = append(analysis.Radar, models.BiasRadarEntry{
			SubjectID:      subject.ID,
			SubjectName:    subject.Name,
			TotalWinRate:   overall.WinRate,
			SubjectWinRate: entry.WinRate,
		})
		switch gap := entry.WinRate - overall.WinRate; {
		case gap >= s.cfg.Margin:
			analysis.StrengthSubjects = append(analysis.StrengthSubjects, subject.Name)
		case gap <= -s.cfg.Margin:
			analysis.WeakSubjects = append(analysis.WeakSubjects, subject.Name)
		}
	}
	sort.Slice(analysis.Radar, func(i, j int) bool {
		return analysis.Radar[i].SubjectName < analysis.Radar[j].SubjectName
	})
	return analysis, nil
}

// Knowledge buckets knowledge points into mastery levels for one student
// within one subject. Personal and cohort rates are percentages of earned
// over attainable score across the questions tagged with each point;
// missing or ungraded answers earn 0.
func (s *BiasService) Knowledge(snapshot *models.CohortSnapshot, studentID, subjectID string) (*models.KnowledgeAnalysis, error) {
	if err := s.ranking.Validate(snapshot); err != nil {
		return nil, err
	}

	// Group the subject's questions by knowledge point.
	pointQuestions := make(map[string][]models.Question)
	for _, question := range snapshot.Questions {
		if question.SubjectID != subjectID {
			continue
		}
		for _, point := range question.KnowledgePoints {
			pointQuestions[point] = append(pointQuestions[point], question)
		}
	}

	scores := make(map[string]map[string]float64, len(snapshot.Students))
	for _, answer := range snapshot.Answers {
		if answer.FinalScore == nil {
			continue
		}
		byQuestion, ok := scores[answer.StudentID]
		if !ok {
			byQuestion = make(map[string]float64)
			scores[answer.StudentID] = byQuestion
		}
		byQuestion[answer.QuestionID] = *answer.FinalScore
	}

	analysis := &models.KnowledgeAnalysis{
		SubjectID:       subjectID,
		KnowledgePoints: make([]models.KnowledgePointMastery, 0, len(pointQuestions)),
	}
	for point, questions := range pointQuestions {
		attainable := 0.0
		for _, question := range questions {
			attainable += question.FullScore
		}
		if attainable == 0 {
			continue
		}

		personal := correctnessRate(scores[studentID], questions, attainable)

		cohortSum := 0.0
		for _, student := range snapshot.Students {
			cohortSum += correctnessRate(scores[student.ID], questions, attainable)
		}
		classRate := 0.0
		if len(snapshot.Students) > 0 {
			classRate = cohortSum / float64(len(snapshot.Students))
		}

		level := models.MasteryWeak
		switch {
		case personal >= classRate+s.cfg.ExcellentOffset:
			level = models.MasteryExcellent
		case personal >= classRate-s.cfg.PassOffset:
			level = models.MasteryPass
		}

		analysis.KnowledgePoints = append(analysis.KnowledgePoints, models.KnowledgePointMastery{
			Name:         point,
			ClassRate:    classRate,
			PersonalRate: personal,
			Level:        level,
		})
	}
	sort.Slice(analysis.KnowledgePoints, func(i, j int) bool {
		return analysis.KnowledgePoints[i].Name < analysis.KnowledgePoints[j].Name
	})
	return analysis, nil
}

func correctnessRate(byQuestion map[string]float64, questions []models.Question, attainable float64) float64 {
	earned := 0.0
	for _, question := range questions {
		earned += byQuestion[question.ID]
	}
	return earned / attainable * 100
}
