package model

import (
	"time"
)

// QuestionStatus is the verdict for a single graded question.
type QuestionStatus string

const (
	StatusCorrect    QuestionStatus = "correct"
	StatusIncorrect  QuestionStatus = "incorrect"
	StatusUnanswered QuestionStatus = "unanswered"
)

// Difficulty is the class-level difficulty label of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ComparisonStatus places a student relative to the class average.
type ComparisonStatus string

const (
	ComparisonAbove ComparisonStatus = "above"
	ComparisonBelow ComparisonStatus = "below"
	ComparisonEqual ComparisonStatus = "equal"
)

// AnswerKey holds the correct option for every question of an exam.
// The set of keys in Answers is the set of questions that get graded.
// A nil NegativeMarkValue means "use the configured default"; an explicit
// 0 is a zero penalty.
type AnswerKey struct {
	ID                string            `json:"id" yaml:"id" validate:"required"`
	Name              string            `json:"name" yaml:"name"`
	Subject           string            `json:"subject" yaml:"subject"`
	Answers           map[string]string `json:"answers" yaml:"answers" validate:"required"`
	PointsPerQuestion float64           `json:"points_per_question" yaml:"points_per_question" validate:"gte=0"`
	NegativeMarking   bool              `json:"negative_marking" yaml:"negative_marking"`
	NegativeMarkValue *float64          `json:"negative_mark_value,omitempty" yaml:"negative_mark_value" validate:"omitempty,gte=0"`
	CreatedAt         time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time         `json:"updated_at" yaml:"-"`
}

// Float64 returns a pointer to v for optional numeric fields such as
// AnswerKey.NegativeMarkValue.
func Float64(v float64) *float64 {
	return &v
}

// RecognizedAnswers maps question IDs to what the recognizer read on the sheet.
type RecognizedAnswers map[string]Selection

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	Question      string         `json:"question"`
	CorrectAnswer string         `json:"correct_answer"`
	StudentAnswer Selection      `json:"student_answer"`
	Status        QuestionStatus `json:"status"`
	Points        float64        `json:"points"`
}

// IsCorrect reports whether the question was answered correctly.
func (r QuestionResult) IsCorrect() bool {
	return r.Status == StatusCorrect
}

// GradingSummary aggregates all question results of one student.
type GradingSummary struct {
	TotalQuestions   int     `json:"total_questions"`
	CorrectCount     int     `json:"correct_count"`
	IncorrectCount   int     `json:"incorrect_count"`
	UnansweredCount  int     `json:"unanswered_count"`
	TotalScore       float64 `json:"total_score"`
	MaxPossibleScore float64 `json:"max_possible_score"`
	Percentage       float64 `json:"percentage"`
}

// GradeResult is the output of grading one submission.
type GradeResult struct {
	Results []QuestionResult `json:"results"`
	Summary GradingSummary   `json:"summary"`
}

// Performance is a display band derived from a percentage.
type Performance struct {
	Category string `json:"category"`
	Color    string `json:"color"`
	Emoji    string `json:"emoji"`
}

// ExamResult is the record produced for one graded sheet, ready to persist
// or display.
type ExamResult struct {
	ID          string            `json:"id"`
	StudentID   string            `json:"student_id"`
	StudentName string            `json:"student_name"`
	ClassID     string            `json:"class_id,omitempty"`
	AnswerKeyID string            `json:"answer_key_id"`
	ExamName    string            `json:"exam_name"`
	Subject     string            `json:"subject"`
	ExamDate    time.Time         `json:"exam_date"`
	Answers     RecognizedAnswers `json:"answers"`
	GradeResult
	Grade       string      `json:"grade"`
	Passed      bool        `json:"passed"`
	Performance Performance `json:"performance"`

	// Passed through from the recognizer untouched.
	MultiMarkedCount int    `json:"multi_marked_count"`
	MarkedImage      string `json:"marked_image,omitempty"`
}

// ClassStatistics aggregates the summaries of many students for one exam.
type ClassStatistics struct {
	TotalStudents     int     `json:"total_students"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`
	PassCount         int     `json:"pass_count"`
	FailCount         int     `json:"fail_count"`
	PassPercentage    float64 `json:"pass_percentage"`
}

// QuestionDifficulty aggregates one question across many students.
type QuestionDifficulty struct {
	Question             string     `json:"question"`
	TotalAttempts        int        `json:"total_attempts"`
	CorrectCount         int        `json:"correct_count"`
	IncorrectCount       int        `json:"incorrect_count"`
	UnansweredCount      int        `json:"unanswered_count"`
	CorrectPercentage    float64    `json:"correct_percentage"`
	IncorrectPercentage  float64    `json:"incorrect_percentage"`
	UnansweredPercentage float64    `json:"unanswered_percentage"`
	Difficulty           Difficulty `json:"difficulty"`
}

// Comparison describes a student's percentage against the class average.
type Comparison struct {
	Difference float64          `json:"difference"`
	Status     ComparisonStatus `json:"status"`
	Message    string           `json:"message"`
}

// Student is a person whose sheets get graded.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	ClassID   string    `json:"class_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Class groups students.
type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerConfig holds runtime parameters for the HTTP API set via CLI flags.
type ServerConfig struct {
	AdminPasswordHash string   // bcrypt hash; empty disables auth on mutating routes
	CORSOrigins       []string // allowed origins for browser/mobile clients
	Template          string   // recognizer template used for scans
	Lang              string   // fallback display language
	Workers           int      // concurrency for batch grading
}

// Summaries extracts the grading summaries of a set of records.
func Summaries(records []ExamResult) []GradingSummary {
	out := make([]GradingSummary, 0, len(records))
	for _, r := range records {
		out = append(out, r.Summary)
	}
	return out
}

// GradeResults extracts the graded question sets of a set of records.
func GradeResults(records []ExamResult) []GradeResult {
	out := make([]GradeResult, 0, len(records))
	for _, r := range records {
		out = append(out, r.GradeResult)
	}
	return out
}
