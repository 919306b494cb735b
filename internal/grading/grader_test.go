package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

func testKey(answers map[string]string) model.AnswerKey {
	return model.AnswerKey{ID: "key-1", Name: "Physics Midterm", Subject: "Physics", Answers: answers}
}

func defaultOpts() Options {
	return Options{PointsPerQuestion: 1}
}

func TestGradeMixedSheet(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B", "Q3": "C"})
	answers := model.RecognizedAnswers{"Q1": model.Selected("A"), "Q2": model.Selected("D")}
	opts := Options{PointsPerQuestion: 2, NegativeMarking: true, NegativeMarkValue: 0.5}

	got, err := Grade(answers, key, opts)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}

	want := []struct {
		question string
		status   model.QuestionStatus
		points   float64
	}{
		{"Q1", model.StatusCorrect, 2},
		{"Q2", model.StatusIncorrect, -0.5},
		{"Q3", model.StatusUnanswered, 0},
	}
	if len(got.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got.Results))
	}
	for i, w := range want {
		r := got.Results[i]
		if r.Question != w.question || r.Status != w.status || r.Points != w.points {
			t.Errorf("result %d = {%s %s %v}, want {%s %s %v}", i, r.Question, r.Status, r.Points, w.question, w.status, w.points)
		}
	}
	if got.Results[2].StudentAnswer.Answered() {
		t.Error("Q3 student answer should be Unanswered")
	}

	s := got.Summary
	if s.TotalScore != 1.5 {
		t.Errorf("TotalScore = %v, want 1.5", s.TotalScore)
	}
	if s.MaxPossibleScore != 6 {
		t.Errorf("MaxPossibleScore = %v, want 6", s.MaxPossibleScore)
	}
	if s.Percentage != 25 {
		t.Errorf("Percentage = %v, want 25", s.Percentage)
	}
	if s.CorrectCount != 1 || s.IncorrectCount != 1 || s.UnansweredCount != 1 || s.TotalQuestions != 3 {
		t.Errorf("counts = %+v", s)
	}
}

func TestGradePerfectSheet(t *testing.T) {
	for _, n := range []int{1, 5, 20, 60} {
		for _, pts := range []float64{1, 2, 0.5} {
			t.Run(fmt.Sprintf("%d questions x %v", n, pts), func(t *testing.T) {
				answers := make(map[string]string, n)
				for i := 1; i <= n; i++ {
					answers[fmt.Sprintf("Q%d", i)] = string("ABCD"[i%4])
				}
				key := testKey(answers)
				got, err := Grade(model.AnswersFromStrings(answers), key, Options{PointsPerQuestion: pts, NegativeMarking: true, NegativeMarkValue: 1})
				if err != nil {
					t.Fatalf("Grade: %v", err)
				}
				s := got.Summary
				if s.CorrectCount != n || s.IncorrectCount != 0 || s.UnansweredCount != 0 {
					t.Errorf("counts = %+v", s)
				}
				if s.Percentage != 100 {
					t.Errorf("Percentage = %v, want 100", s.Percentage)
				}
			})
		}
	}
}

func TestGradeEmptySheet(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B", "Q3": "C", "Q4": "D"})
	for name, answers := range map[string]model.RecognizedAnswers{
		"nil":   nil,
		"empty": {},
		"blank": {"Q1": model.Unanswered, "Q2": model.Selected("-"), "Q3": model.Selected("")},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Grade(answers, key, Options{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: 0.25})
			if err != nil {
				t.Fatalf("Grade: %v", err)
			}
			if got.Summary.UnansweredCount != 4 {
				t.Errorf("UnansweredCount = %d, want 4", got.Summary.UnansweredCount)
			}
			if got.Summary.TotalScore != 0 || got.Summary.Percentage != 0 {
				t.Errorf("score = %v (%v%%), want 0", got.Summary.TotalScore, got.Summary.Percentage)
			}
		})
	}
}

func TestGradeClampsNegativeTotal(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B", "Q3": "C"})
	answers := model.AnswersFromStrings(map[string]string{"Q1": "B", "Q2": "C", "Q3": "D"})
	got, err := Grade(answers, key, Options{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: 1})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got.Summary.TotalScore != 0 {
		t.Errorf("TotalScore = %v, want 0", got.Summary.TotalScore)
	}
	if got.Summary.Percentage != 0 {
		t.Errorf("Percentage = %v, want 0", got.Summary.Percentage)
	}
	for _, r := range got.Results {
		if r.Points != -1 {
			t.Errorf("%s points = %v, want -1", r.Question, r.Points)
		}
	}
}

func TestGradeNegativeMarkingOff(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B"})
	answers := model.AnswersFromStrings(map[string]string{"Q1": "A", "Q2": "C"})
	got, err := Grade(answers, key, Options{PointsPerQuestion: 1, NegativeMarkValue: 5})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got.Results[1].Points != 0 {
		t.Errorf("incorrect answer without negative marking scored %v", got.Results[1].Points)
	}
	if got.Summary.Percentage != 50 {
		t.Errorf("Percentage = %v, want 50", got.Summary.Percentage)
	}
}

func TestGradeIgnoresExtraAnswersAndIsCaseSensitive(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B"})
	answers := model.AnswersFromStrings(map[string]string{"Q1": "a", "Q2": "B", "Q99": "C", "Roll": "1234"})
	got, err := Grade(answers, key, defaultOpts())
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got.Summary.TotalQuestions != 2 {
		t.Errorf("TotalQuestions = %d, want 2", got.Summary.TotalQuestions)
	}
	if got.Results[0].Status != model.StatusIncorrect {
		t.Errorf("lowercase label should be incorrect, got %s", got.Results[0].Status)
	}
	if got.Results[1].Status != model.StatusCorrect {
		t.Errorf("Q2 = %s, want correct", got.Results[1].Status)
	}
}

func TestGradeRequiresExactLabel(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B", "Q3": "C"})
	var answers model.RecognizedAnswers
	if err := json.Unmarshal([]byte(`{"Q1": " A ", "Q2": "B\n", "Q3": "C"}`), &answers); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, err := Grade(answers, key, defaultOpts())
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}

	want := []model.QuestionStatus{model.StatusIncorrect, model.StatusIncorrect, model.StatusCorrect}
	for i, w := range want {
		if got.Results[i].Status != w {
			t.Errorf("%s status for %q = %s, want %s", got.Results[i].Question, got.Results[i].StudentAnswer, got.Results[i].Status, w)
		}
	}
	if got.Summary.CorrectCount != 1 || got.Summary.IncorrectCount != 2 {
		t.Errorf("counts = %d correct, %d incorrect; want 1, 2", got.Summary.CorrectCount, got.Summary.IncorrectCount)
	}
}

func TestGradeZeroPenaltyKey(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A", "Q2": "B", "Q3": "C", "Q4": "D"})
	key.NegativeMarking = true
	key.NegativeMarkValue = model.Float64(0)
	answers := model.AnswersFromStrings(map[string]string{"Q1": "A", "Q2": "A", "Q3": "A", "Q4": "A"})

	got, err := Grade(answers, key, OptionsFromKey(key, model.DefaultSettings()))
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got.Summary.TotalScore != 1 {
		t.Errorf("TotalScore = %v, want 1 (wrong answers cost nothing)", got.Summary.TotalScore)
	}
	for _, r := range got.Results[1:] {
		if r.Points != 0 {
			t.Errorf("%s points = %v, want 0", r.Question, r.Points)
		}
	}
}

func TestGradeEmptyKey(t *testing.T) {
	got, err := Grade(model.AnswersFromStrings(map[string]string{"Q1": "A"}), testKey(map[string]string{}), defaultOpts())
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if got.Summary.MaxPossibleScore != 0 || got.Summary.Percentage != 0 {
		t.Errorf("summary = %+v, want zero max and percentage", got.Summary)
	}
	if len(got.Results) != 0 {
		t.Errorf("expected no results, got %d", len(got.Results))
	}
}

func TestGradeErrors(t *testing.T) {
	key := testKey(map[string]string{"Q1": "A"})

	if _, err := Grade(nil, testKey(nil), defaultOpts()); !errors.Is(err, ErrInvalidAnswerKey) {
		t.Errorf("nil answers: expected ErrInvalidAnswerKey, got %v", err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"zero points", Options{}},
		{"negative points", Options{PointsPerQuestion: -1}},
		{"negative penalty", Options{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: -0.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Grade(nil, key, tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	answers := map[string]string{}
	for i := 1; i <= 40; i++ {
		answers[fmt.Sprintf("Q%d", i)] = string("ABCD"[i%4])
	}
	key := testKey(answers)
	student := model.AnswersFromStrings(map[string]string{"Q1": "B", "Q7": "D", "Q12": "A", "Q33": "-"})
	opts := Options{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: 0.25}

	first, err := Grade(student, key, opts)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	second, err := Grade(student, key, opts)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("grading the same input twice produced different output")
	}
}

func TestSortedQuestions(t *testing.T) {
	got := SortedQuestions(map[string]string{"Q10": "A", "Q2": "A", "Q1": "A", "Roll": "A", "Q21": "A"})
	want := []string{"Q1", "Q2", "Q10", "Q21", "Roll"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("SortedQuestions() = %v, want %v", got, want)
	}
}

func TestOptionsFromKey(t *testing.T) {
	settings := model.DefaultSettings()

	tests := []struct {
		name string
		key  model.AnswerKey
		want Options
	}{
		{"unset points default to one", model.AnswerKey{}, Options{PointsPerQuestion: 1}},
		{"stored values kept", model.AnswerKey{PointsPerQuestion: 2, NegativeMarking: true, NegativeMarkValue: model.Float64(0.5)},
			Options{PointsPerQuestion: 2, NegativeMarking: true, NegativeMarkValue: 0.5}},
		{"unset penalty uses default", model.AnswerKey{PointsPerQuestion: 1, NegativeMarking: true},
			Options{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: 0.25}},
		{"explicit zero penalty kept", model.AnswerKey{PointsPerQuestion: 1, NegativeMarking: true, NegativeMarkValue: model.Float64(0)},
			Options{PointsPerQuestion: 1, NegativeMarking: true}},
		{"penalty ignored when off", model.AnswerKey{PointsPerQuestion: 1},
			Options{PointsPerQuestion: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptionsFromKey(tt.key, settings); got != tt.want {
				t.Errorf("OptionsFromKey() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
