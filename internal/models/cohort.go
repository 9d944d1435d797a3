package models

import "time"

// GroupingMode selects the comparison group for ranking.
type GroupingMode string

const (
	GroupByClass GroupingMode = "class"
	GroupByGrade GroupingMode = "grade"
)

// CohortSnapshot is a point-in-time view of one exam cohort: the students
// being compared plus their finalized answers and the question set. The
// ranking engine, simulator and bias analyzer are pure functions over this
// value; callers must read it at a single logical point (one transaction).
type CohortSnapshot struct {
	ExamID    string       `json:"exam_id"`
	Grouping  GroupingMode `json:"grouping"`
	GroupKey  string       `json:"group_key"`
	Students  []Student    `json:"students"`
	Subjects  []Subject    `json:"subjects"`
	Questions []Question   `json:"questions"`
	Answers   []Answer     `json:"answers"`
	ReadAt    time.Time    `json:"read_at"`
}

// StudentTotal pairs a student with the sum of their final scores.
type StudentTotal struct {
	StudentID string  `json:"student_id"`
	Total     float64 `json:"total"`
}

// RankedStudent carries a student's place within the cohort. Rank uses
// standard competition ranking: tied totals share a rank and the next
// distinct total resumes at previous rank + tied count.
type RankedStudent struct {
	StudentID string  `json:"student_id"`
	Total     float64 `json:"total"`
	Rank      int     `json:"rank"`
	WinRate   float64 `json:"win_rate"`
}

// SubjectComparison contrasts a student's subject score with the cohort.
type SubjectComparison struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
	Average     float64 `json:"avg"`
	Max         float64 `json:"max"`
	Diff        float64 `json:"diff"`
}
