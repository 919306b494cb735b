// Package grading scores recognized answer sheets against answer keys and
// aggregates graded sheets into class statistics. Everything here is pure:
// no I/O, no shared state, safe for concurrent use.
package grading

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

var validate = validator.New()

var (
	// ErrInvalidAnswerKey is returned when the key has no answer mapping.
	ErrInvalidAnswerKey = errors.New("invalid answer key")
	// ErrInvalidOptions is returned when scoring options are out of range.
	ErrInvalidOptions = errors.New("invalid grading options")
)

// Options control per-question scoring for one grading run.
type Options struct {
	NegativeMarking   bool    `json:"negative_marking"`
	NegativeMarkValue float64 `json:"negative_mark_value" validate:"gte=0"`
	PointsPerQuestion float64 `json:"points_per_question" validate:"gt=0"`
}

// OptionsFromKey derives scoring options from the values stored on a key,
// filling unset points with 1 and a missing penalty with the configured
// default when negative marking is on. A stored penalty of 0 is kept.
func OptionsFromKey(key model.AnswerKey, settings model.Settings) Options {
	opts := Options{
		NegativeMarking:   key.NegativeMarking,
		PointsPerQuestion: key.PointsPerQuestion,
	}
	if opts.PointsPerQuestion == 0 {
		opts.PointsPerQuestion = model.DefaultPointsPerQuestion
	}
	switch {
	case key.NegativeMarkValue != nil:
		opts.NegativeMarkValue = *key.NegativeMarkValue
	case opts.NegativeMarking:
		opts.NegativeMarkValue = settings.DefaultNegativeMarkValue
	}
	return opts
}

// Grade scores answers against key using opts. Questions missing from
// answers are unanswered; answers for questions not in the key are ignored.
// The total score never drops below zero.
func Grade(answers model.RecognizedAnswers, key model.AnswerKey, opts Options) (model.GradeResult, error) {
	if key.Answers == nil {
		return model.GradeResult{}, fmt.Errorf("%w: %q has no answers", ErrInvalidAnswerKey, key.ID)
	}
	if err := validate.Struct(opts); err != nil {
		return model.GradeResult{}, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}

	questions := SortedQuestions(key.Answers)
	results := make([]model.QuestionResult, 0, len(questions))
	var summary model.GradingSummary
	summary.TotalQuestions = len(questions)

	var total float64
	for _, q := range questions {
		r := scoreQuestion(q, key.Answers[q], answers[q], opts)
		switch r.Status {
		case model.StatusCorrect:
			summary.CorrectCount++
		case model.StatusIncorrect:
			summary.IncorrectCount++
		default:
			summary.UnansweredCount++
		}
		total += r.Points
		results = append(results, r)
	}

	summary.TotalScore = math.Max(0, total)
	summary.MaxPossibleScore = float64(summary.TotalQuestions) * opts.PointsPerQuestion
	if summary.MaxPossibleScore > 0 {
		summary.Percentage = round2(summary.TotalScore / summary.MaxPossibleScore * 100)
	}

	return model.GradeResult{Results: results, Summary: summary}, nil
}

func scoreQuestion(question, correct string, sel model.Selection, opts Options) model.QuestionResult {
	r := model.QuestionResult{
		Question:      question,
		CorrectAnswer: correct,
		StudentAnswer: sel,
	}
	label, answered := sel.Label()
	switch {
	case !answered:
		r.Status = model.StatusUnanswered
	case label == correct:
		r.Status = model.StatusCorrect
		r.Points = opts.PointsPerQuestion
	default:
		r.Status = model.StatusIncorrect
		if opts.NegativeMarking {
			r.Points = -opts.NegativeMarkValue
		}
	}
	return r
}

// SortedQuestions returns the question IDs of answers in natural order,
// so "Q2" sorts before "Q10".
func SortedQuestions(answers map[string]string) []string {
	out := make([]string, 0, len(answers))
	for q := range answers {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return questionLess(out[i], out[j]) })
	return out
}

func questionLess(a, b string) bool {
	pa, na, oka := splitQuestion(a)
	pb, nb, okb := splitQuestion(b)
	if oka && okb && pa == pb && na != nb {
		return na < nb
	}
	return a < b
}

// splitQuestion splits "Q12" into ("Q", 12).
func splitQuestion(q string) (string, int, bool) {
	i := strings.LastIndexFunc(q, func(r rune) bool { return r < '0' || r > '9' })
	digits := q[i+1:]
	if digits == "" {
		return q, 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return q, 0, false
	}
	return q[:i+1], n, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
