package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestSelectionUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		answered bool
	}{
		{"label", `"B"`, "B", true},
		{"padded label kept verbatim", `" C "`, " C ", true},
		{"whitespace only", `" "`, " ", true},
		{"empty string", `""`, "", false},
		{"dash", `"-"`, "", false},
		{"null", `null`, "", false},
		{"number", `3`, "", false},
		{"array", `["A","B"]`, "", false},
		{"object", `{"x":1}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Selection
			if err := json.Unmarshal([]byte(tt.raw), &s); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.raw, err)
			}
			got, ok := s.Label()
			if got != tt.want || ok != tt.answered {
				t.Errorf("Label() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.answered)
			}
		})
	}
}

func TestRecognizedAnswersUnmarshal(t *testing.T) {
	raw := `{"Q1":"A","Q2":"-","Q3":null,"Q4":7,"Q5":"D"}`
	var answers RecognizedAnswers
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(answers) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(answers))
	}
	if answers["Q1"] != Selected("A") {
		t.Errorf("Q1 = %v, want A", answers["Q1"])
	}
	for _, q := range []string{"Q2", "Q3", "Q4"} {
		if answers[q].Answered() {
			t.Errorf("%s should be unanswered, got %v", q, answers[q])
		}
	}
	if _, ok := answers["Q9"]; ok {
		t.Error("missing question should not be present")
	}
}

func TestSelectionMarshal(t *testing.T) {
	answers := RecognizedAnswers{"Q1": Selected("A"), "Q2": Unanswered}
	data, err := json.Marshal(answers)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"Q1":"A","Q2":"-"}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestAnswerKeyValidate(t *testing.T) {
	valid := AnswerKey{
		ID:                "k1",
		Name:              "Midterm",
		Answers:           map[string]string{"Q1": "A", "Q2": "D"},
		PointsPerQuestion: 1,
	}

	tests := []struct {
		name    string
		mutate  func(k *AnswerKey)
		wantErr bool
	}{
		{"valid", func(k *AnswerKey) {}, false},
		{"empty answers allowed", func(k *AnswerKey) { k.Answers = map[string]string{} }, false},
		{"missing id", func(k *AnswerKey) { k.ID = "" }, true},
		{"nil answers", func(k *AnswerKey) { k.Answers = nil }, true},
		{"label outside alphabet", func(k *AnswerKey) { k.Answers = map[string]string{"Q1": "E"} }, true},
		{"multi-letter label", func(k *AnswerKey) { k.Answers = map[string]string{"Q1": "AB"} }, true},
		{"negative penalty", func(k *AnswerKey) { k.NegativeMarkValue = Float64(-1) }, true},
		{"zero penalty", func(k *AnswerKey) { k.NegativeMarkValue = Float64(0) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := valid
			k.Answers = map[string]string{"Q1": "A", "Q2": "D"}
			tt.mutate(&k)
			err := k.Validate(DefaultOptionAlphabet)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}

	s := DefaultSettings()
	s.PassingPercentage = 120
	if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings for passing 120, got %v", err)
	}

	s = DefaultSettings()
	s.GradingScale = append(s.GradingScale, GradeBand{Letter: "A", Min: 95})
	if err := s.Validate(); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("expected ErrInvalidSettings for duplicate letter, got %v", err)
	}

	s = DefaultSettings()
	s.OptionAlphabet = "ABCDE"
	if got := s.Options(); len(got) != 5 || got[4] != "E" {
		t.Errorf("Options() = %v", got)
	}
}
