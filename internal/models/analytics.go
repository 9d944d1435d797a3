package models

import "time"

// SubjectScore is one subject line of a student's score summary.
type SubjectScore struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject"`
	Score       float64 `json:"score"`
	FullScore   float64 `json:"full_score"`
}

// ExamScoreSummary is the per-exam score card for one student.
type ExamScoreSummary struct {
	ExamID        string         `json:"exam_id"`
	StudentID     string         `json:"student_id"`
	TotalScore    float64        `json:"total_score"`
	SubjectScores []SubjectScore `json:"subject_scores"`
}

// LevelPosition locates a student inside the cohort per subject.
type LevelPosition struct {
	Grouping          GroupingMode        `json:"grouping_mode"`
	CohortSize        int                 `json:"cohort_size"`
	TotalRank         int                 `json:"total_rank"`
	TotalWinRate      float64             `json:"total_win_rate"`
	SubjectComparison []SubjectComparison `json:"subject_comparison"`
}

// PKAnalysis is the head-to-head percentile view.
type PKAnalysis struct {
	RankIndex    int     `json:"rank_index"`
	RankPercent  float64 `json:"rank_percent"`
	CohortSize   int     `json:"cohort_size"`
	TotalScore   float64 `json:"total_score"`
	CohortAvg    float64 `json:"cohort_avg"`
	CohortMax    float64 `json:"cohort_max"`
}

// SubjectSimulation is the per-subject row of a what-if simulation.
type SubjectSimulation struct {
	SubjectID    string  `json:"subject_id"`
	SubjectName  string  `json:"subject"`
	CurrentScore float64 `json:"current_score"`
	IdealScore   float64 `json:"ideal_score"`
	MaxScore     float64 `json:"max_score"`
}

// SimulationResult is the outcome of re-ranking under hypothetical scores.
// RankChange is positive when the predicted rank improves.
type SimulationResult struct {
	Subjects      []SubjectSimulation `json:"subjects"`
	NewTotal      float64             `json:"new_total_score"`
	CurrentRank   int                 `json:"current_rank"`
	PredictedRank int                 `json:"predicted_rank"`
	RankChange    int                 `json:"rank_change"`
}

// BiasRadarEntry is one spoke of the subject-bias radar chart.
type BiasRadarEntry struct {
	SubjectID      string  `json:"subject_id"`
	SubjectName    string  `json:"subject"`
	TotalWinRate   float64 `json:"total_win_rate"`
	SubjectWinRate float64 `json:"subject_win_rate"`
}

// BiasAnalysis classifies subjects into strengths and weaknesses by
// comparing subject win rate against overall win rate.
type BiasAnalysis struct {
	Radar            []BiasRadarEntry `json:"radar_data"`
	StrengthSubjects []string         `json:"strength_subjects"`
	WeakSubjects     []string         `json:"weak_subjects"`
}

// MasteryLevel buckets knowledge-point command relative to the cohort.
type MasteryLevel string

const (
	MasteryExcellent MasteryLevel = "EXCELLENT"
	MasteryPass      MasteryLevel = "PASS"
	MasteryWeak      MasteryLevel = "WEAK"
)

// KnowledgePointMastery compares a student's correctness rate on one
// knowledge point with the cohort's rate.
type KnowledgePointMastery struct {
	Name         string       `json:"name"`
	ClassRate    float64      `json:"class_rate"`
	PersonalRate float64      `json:"personal_rate"`
	Level        MasteryLevel `json:"level"`
}

// KnowledgeAnalysis is the knowledge-point mastery page for one student.
type KnowledgeAnalysis struct {
	SubjectID       string                  `json:"subject_id"`
	KnowledgePoints []KnowledgePointMastery `json:"knowledge_points"`
}

// QuestionStat is one question row of the per-question analysis page.
// Score is nil until the student's answer is graded; CohortRate is the
// cohort's scoring rate on the question as a percentage of full score.
type QuestionStat struct {
	QuestionID   string       `json:"question_id"`
	QuestionCode int          `json:"question_code"`
	QuestionType QuestionType `json:"question_type"`
	FullScore    float64      `json:"full_score"`
	Score        *float64     `json:"score"`
	CohortRate   float64      `json:"cohort_scoring_rate"`
}

// QuestionAnalysis is the per-question breakdown of one subject for one
// student, alongside the subjects available for switching.
type QuestionAnalysis struct {
	SubjectID         string         `json:"subject_id"`
	SubjectName       string         `json:"subject"`
	AvailableSubjects []string       `json:"available_subjects"`
	Questions         []QuestionStat `json:"questions"`
}

// DifficultyLevel buckets questions by how well the cohort scored on them.
type DifficultyLevel string

const (
	DifficultyVeryEasy DifficultyLevel = "VERY_EASY"
	DifficultyEasy     DifficultyLevel = "EASY"
	DifficultyMedium   DifficultyLevel = "MEDIUM"
	DifficultyHard     DifficultyLevel = "HARD"
	DifficultyVeryHard DifficultyLevel = "VERY_HARD"
)

// QuestionRef names a question across subjects without relying on the
// per-subject code space alone.
type QuestionRef struct {
	SubjectName  string `json:"subject"`
	QuestionCode int    `json:"question_code"`
}

// DifficultyBand aggregates one student's performance over the questions
// of one difficulty level.
type DifficultyBand struct {
	Level       DifficultyLevel `json:"level"`
	FullScore   float64         `json:"full_score"`
	Count       int             `json:"question_count"`
	Correct     int             `json:"correct"`
	Partial     int             `json:"partial"`
	ScoringRate float64         `json:"scoring_rate"`
	Questions   []QuestionRef   `json:"questions"`
}

// LossAnalysis is the score-loss page: where points were dropped, which
// losses look recoverable and what recovering them would do to the rank.
type LossAnalysis struct {
	Bands           []DifficultyBand `json:"difficulty_bands"`
	FullyLost       []QuestionRef    `json:"fully_lost"`
	PartiallyLost   []QuestionRef    `json:"partially_lost"`
	Advantage       []QuestionRef    `json:"advantage"`
	Recoverable     []QuestionRef    `json:"recoverable"`
	PotentialGain   float64          `json:"potential_gain_score"`
	RankImprovement int              `json:"rank_improvement"`
}

// ClassScoreRow is one student line of the class score listing.
type ClassScoreRow struct {
	StudentID   string  `json:"student_id"`
	StudentCode string  `json:"student_code"`
	StudentName string  `json:"student_name"`
	Total       float64 `json:"total_score"`
	Rank        int     `json:"rank"`
}

// ClassScoreReport is the teacher-facing score listing for one class in
// one exam.
type ClassScoreReport struct {
	ClassID    string          `json:"class_id"`
	CohortSize int             `json:"cohort_size"`
	Average    float64         `json:"avg_score"`
	Max        float64         `json:"max_score"`
	PassRate   float64         `json:"pass_rate"`
	Students   []ClassScoreRow `json:"students"`
}

// SystemMetrics is a lightweight instrumentation snapshot for operators.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
