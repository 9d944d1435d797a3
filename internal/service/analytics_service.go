package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paperlens/exam-insight-api/internal/models"
)

type cohortReader interface {
	Snapshot(ctx context.Context, examID string, grouping models.GroupingMode, groupKey string) (*models.CohortSnapshot, error)
}

// AnalyticsService serves the student-facing analysis pages. Each call
// reads one cohort snapshot, validates it and hands it to the pure engines;
// results are cached per exam so a grading write only has to invalidate one
// key space. The boolean return reports whether the payload came from
// cache.
type AnalyticsService struct {
	cohorts    cohortReader
	ranking    *RankingService
	simulation *SimulationService
	bias       *BiasService
	cache      *CacheService
	metrics    *MetricsService
	cacheTTL   time.Duration
	passRate   float64
	logger     *zap.Logger
}

// NewAnalyticsService constructs an analytics service. passRate is the
// passing fraction of the exam full score used by the class score listing.
func NewAnalyticsService(cohorts cohortReader, ranking *RankingService, simulation *SimulationService, bias *BiasService, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, passRate float64, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		cohorts:    cohorts,
		ranking:    ranking,
		simulation: simulation,
		bias:       bias,
		cache:      cache,
		metrics:    metrics,
		cacheTTL:   cacheTTL,
		passRate:   passRate,
		logger:     logger,
	}
}

// Scores returns the per-subject score card for one student in one exam.
func (s *AnalyticsService) Scores(ctx context.Context, examID, studentID string) (*models.ExamScoreSummary, bool, error) {
	cacheKey := analyticsCacheKey(examID, "scores", studentID)
	var cached models.ExamScoreSummary
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("scores", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, models.GroupByGrade, "")
	if err != nil {
		return nil, false, err
	}
	if err := s.ranking.Validate(snapshot); err != nil {
		return nil, false, err
	}

	totals := s.ranking.Totals(snapshot)
	total, err := s.ranking.RankOf(s.ranking.Rank(totals), studentID)
	if err != nil {
		return nil, false, err
	}

	maxScores := subjectMaxScores(snapshot)
	summary := &models.ExamScoreSummary{
		ExamID:        examID,
		StudentID:     studentID,
		TotalScore:    total.Total,
		SubjectScores: make([]models.SubjectScore, 0, len(snapshot.Subjects)),
	}
	for _, subject := range snapshot.Subjects {
		score := 0.0
		for _, entry := range s.ranking.SubjectTotals(snapshot, subject.ID) {
			if entry.StudentID == studentID {
				score = entry.Total
				break
			}
		}
		summary.SubjectScores = append(summary.SubjectScores, models.SubjectScore{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Score:       score,
			FullScore:   maxScores[subject.ID],
		})
	}

	s.cacheSet(ctx, cacheKey, summary)
	s.observePage("scores", false)
	return summary, false, nil
}

// Position returns the cohort-position page for one student.
func (s *AnalyticsService) Position(ctx context.Context, examID, studentID string, grouping models.GroupingMode, groupKey string) (*models.LevelPosition, bool, error) {
	cacheKey := analyticsCacheKey(examID, "position", studentID, string(grouping), groupKey)
	var cached models.LevelPosition
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("position", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	position, err := s.ranking.Position(snapshot, studentID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, position)
	s.observePage("position", false)
	return position, false, nil
}

// PK returns the head-to-head percentile page for one student.
func (s *AnalyticsService) PK(ctx context.Context, examID, studentID string, grouping models.GroupingMode, groupKey string) (*models.PKAnalysis, bool, error) {
	cacheKey := analyticsCacheKey(examID, "pk", studentID, string(grouping), groupKey)
	var cached models.PKAnalysis
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("pk", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	pk, err := s.ranking.PK(snapshot, studentID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, pk)
	s.observePage("pk", false)
	return pk, false, nil
}

// Simulate re-ranks a student under hypothetical subject scores. Results
// depend on the request payload, so they are never cached.
func (s *AnalyticsService) Simulate(ctx context.Context, examID string, grouping models.GroupingMode, groupKey string, req SimulateRequest) (*models.SimulationResult, error) {
	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, err
	}
	return s.simulation.Simulate(snapshot, req)
}

// Bias returns the subject strength/weakness radar for one student.
func (s *AnalyticsService) Bias(ctx context.Context, examID, studentID string, grouping models.GroupingMode, groupKey string) (*models.BiasAnalysis, bool, error) {
	cacheKey := analyticsCacheKey(examID, "bias", studentID, string(grouping), groupKey)
	var cached models.BiasAnalysis
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("bias", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	analysis, err := s.bias.Analyze(snapshot, studentID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, analysis)
	s.observePage("bias", false)
	return analysis, false, nil
}

// Knowledge returns the knowledge-point mastery page for one student and
// subject.
func (s *AnalyticsService) Knowledge(ctx context.Context, examID, studentID, subjectID string, grouping models.GroupingMode, groupKey string) (*models.KnowledgeAnalysis, bool, error) {
	cacheKey := analyticsCacheKey(examID, "knowledge", studentID, subjectID, string(grouping), groupKey)
	var cached models.KnowledgeAnalysis
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("knowledge", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	analysis, err := s.bias.Knowledge(snapshot, studentID, subjectID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, analysis)
	s.observePage("knowledge", false)
	return analysis, false, nil
}

// Questions returns the per-question analysis of one subject for one
// student.
func (s *AnalyticsService) Questions(ctx context.Context, examID, studentID, subjectID string, grouping models.GroupingMode, groupKey string) (*models.QuestionAnalysis, bool, error) {
	cacheKey := analyticsCacheKey(examID, "questions", studentID, subjectID, string(grouping), groupKey)
	var cached models.QuestionAnalysis
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("questions", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	analysis, err := s.ranking.QuestionStats(snapshot, studentID, subjectID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, analysis)
	s.observePage("questions", false)
	return analysis, false, nil
}

// Loss returns the score-loss page for one student.
func (s *AnalyticsService) Loss(ctx context.Context, examID, studentID string, grouping models.GroupingMode, groupKey string) (*models.LossAnalysis, bool, error) {
	cacheKey := analyticsCacheKey(examID, "loss", studentID, string(grouping), groupKey)
	var cached models.LossAnalysis
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("loss", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, false, err
	}
	analysis, err := s.ranking.LossAnalysis(snapshot, studentID)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, analysis)
	s.observePage("loss", false)
	return analysis, false, nil
}

// ClassScores returns the ranked score listing for one class.
func (s *AnalyticsService) ClassScores(ctx context.Context, examID, classID string) (*models.ClassScoreReport, bool, error) {
	cacheKey := analyticsCacheKey(examID, "class_scores", classID)
	var cached models.ClassScoreReport
	if hit, err := s.cacheGet(ctx, cacheKey, &cached); err == nil && hit {
		s.observePage("class_scores", true)
		return &cached, true, nil
	}

	snapshot, err := s.snapshot(ctx, examID, models.GroupByClass, classID)
	if err != nil {
		return nil, false, err
	}
	report, err := s.ranking.ClassScores(snapshot, s.passRate)
	if err != nil {
		return nil, false, err
	}

	s.cacheSet(ctx, cacheKey, report)
	s.observePage("class_scores", false)
	return report, false, nil
}

// InvalidateExam drops every cached analytics payload for an exam.
func (s *AnalyticsService) InvalidateExam(ctx context.Context, examID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, analyticsKeyPattern(examID))
}

func (s *AnalyticsService) snapshot(ctx context.Context, examID string, grouping models.GroupingMode, groupKey string) (*models.CohortSnapshot, error) {
	if grouping == "" {
		grouping = models.GroupByGrade
	}
	start := time.Now()
	snapshot, err := s.cohorts.Snapshot(ctx, examID, grouping, groupKey)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("cohort_snapshot", time.Since(start))
	}
	return snapshot, nil
}


func (s *AnalyticsService) observePage(page string, cacheHit bool) {
	if s.metrics != nil {
		s.metrics.ObserveAnalyticsPage(page, cacheHit)
	}
}

func (s *AnalyticsService) cacheGet(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("analytics cache read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return hit, nil
}

func (s *AnalyticsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// analyticsCacheKey builds "analytics:<examID>:<part>...". The exam id sits
// in the second segment so one pattern can clear an exam's whole key space.
func analyticsCacheKey(examID string, parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts)*16 + 32)
	builder.WriteString("analytics:")
	builder.WriteString(strings.ReplaceAll(examID, ":", "|"))
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func analyticsKeyPattern(examID string) string {
	return "analytics:" + strings.ReplaceAll(examID, ":", "|") + ":*"
}
