package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// Submission is one student's recognized sheet waiting to be graded.
type Submission struct {
	StudentID        string                  `json:"student_id"`
	StudentName      string                  `json:"student_name"`
	ClassID          string                  `json:"class_id,omitempty"`
	Answers          model.RecognizedAnswers `json:"answers"`
	MultiMarkedCount int                     `json:"multi_marked_count"`
	MarkedImage      string                  `json:"marked_image,omitempty"`

	// Options overrides the scoring options stored on the answer key.
	Options *Options `json:"options,omitempty"`
}

// Engine grades submissions into full result records under one set of
// settings, so grade letters, pass/fail and class statistics all use the
// same passing percentage and scale.
type Engine struct {
	settings model.Settings
	now      func() time.Time
	newID    func() string
}

// NewEngine returns an engine for the given settings.
func NewEngine(settings model.Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		settings: settings,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Settings returns the settings the engine grades with.
func (e *Engine) Settings() model.Settings {
	return e.settings
}

// Grade returns the letter grade for a percentage.
func (e *Engine) Grade(percentage float64) string {
	return CalculateGrade(percentage, e.settings.GradingScale)
}

// Passed reports whether a percentage is a pass.
func (e *Engine) Passed(percentage float64) bool {
	return HasPassed(percentage, e.settings.PassingPercentage)
}

// ClassStatistics aggregates summaries with the engine's passing percentage.
func (e *Engine) ClassStatistics(summaries []model.GradingSummary) model.ClassStatistics {
	return ClassStatistics(summaries, e.settings.PassingPercentage)
}

// Report builds the statistics view over stored records of one key.
func (e *Engine) Report(key model.AnswerKey, records []model.ExamResult) model.ExamReport {
	return model.ExamReport{
		AnswerKeyID: key.ID,
		ExamName:    key.Name,
		Statistics:  e.ClassStatistics(model.Summaries(records)),
		Questions:   AnalyzeQuestionDifficulty(model.GradeResults(records)),
	}
}

// Evaluate grades one submission and returns the complete result record.
func (e *Engine) Evaluate(key model.AnswerKey, sub Submission) (model.ExamResult, error) {
	opts := OptionsFromKey(key, e.settings)
	if sub.Options != nil {
		opts = *sub.Options
	}
	graded, err := Grade(sub.Answers, key, opts)
	if err != nil {
		return model.ExamResult{}, err
	}

	answers := sub.Answers
	if answers == nil {
		answers = model.RecognizedAnswers{}
	}
	pct := graded.Summary.Percentage
	return model.ExamResult{
		ID:               e.newID(),
		StudentID:        sub.StudentID,
		StudentName:      sub.StudentName,
		ClassID:          sub.ClassID,
		AnswerKeyID:      key.ID,
		ExamName:         key.Name,
		Subject:          key.Subject,
		ExamDate:         e.now().UTC(),
		Answers:          answers,
		GradeResult:      graded,
		Grade:            e.Grade(pct),
		Passed:           e.Passed(pct),
		Performance:      PerformanceCategory(pct),
		MultiMarkedCount: sub.MultiMarkedCount,
		MarkedImage:      sub.MarkedImage,
	}, nil
}

// GradeBatch evaluates submissions concurrently with at most workers in
// flight (unbounded when workers <= 0). Results keep the input order. The
// first failure cancels the remaining work.
func GradeBatch(ctx context.Context, e *Engine, key model.AnswerKey, subs []Submission, workers int) ([]model.ExamResult, error) {
	out := make([]model.ExamResult, len(subs))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, sub := range subs {
		i, sub := i, sub
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Evaluate(key, sub)
			if err != nil {
				return fmt.Errorf("submission %d (student %q): %w", i, sub.StudentID, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
