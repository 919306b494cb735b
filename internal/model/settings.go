package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	// ErrInvalidSettings is returned when grading settings fail validation.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrInvalidRecord is returned when an answer key, student or class
	// fails validation before it is stored.
	ErrInvalidRecord = errors.New("invalid record")
)

// Defaults used when nothing else is configured.
const (
	DefaultPassingPercentage = 40.0
	DefaultNegativeMarkValue = 0.25
	DefaultOptionAlphabet    = "ABCD"
	DefaultPointsPerQuestion = 1.0
)

// GradeBand maps a letter to the minimum percentage (inclusive) that earns it.
type GradeBand struct {
	Letter string  `json:"letter" validate:"required"`
	Min    float64 `json:"min" validate:"gte=0,lte=100"`
}

// GradingScale is a set of grade bands. Order does not matter; bands are
// evaluated highest threshold first.
type GradingScale []GradeBand

// DefaultGradingScale returns A≥90, B≥80, C≥70, D≥60, F≥0.
func DefaultGradingScale() GradingScale {
	return GradingScale{
		{Letter: "A", Min: 90},
		{Letter: "B", Min: 80},
		{Letter: "C", Min: 70},
		{Letter: "D", Min: 60},
		{Letter: "F", Min: 0},
	}
}

// Settings collects the grading defaults that apply across the system.
type Settings struct {
	PassingPercentage        float64      `json:"passing_percentage" validate:"gte=0,lte=100"`
	GradingScale             GradingScale `json:"grading_scale" validate:"required,min=1,dive"`
	DefaultNegativeMarkValue float64      `json:"default_negative_mark_value" validate:"gte=0"`
	OptionAlphabet           string       `json:"option_alphabet" validate:"required"`
}

// DefaultSettings returns the built-in grading defaults.
func DefaultSettings() Settings {
	return Settings{
		PassingPercentage:        DefaultPassingPercentage,
		GradingScale:             DefaultGradingScale(),
		DefaultNegativeMarkValue: DefaultNegativeMarkValue,
		OptionAlphabet:           DefaultOptionAlphabet,
	}
}

// Validate checks ranges and that every letter in the scale is unique.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	seen := make(map[string]bool, len(s.GradingScale))
	for _, b := range s.GradingScale {
		if seen[b.Letter] {
			return fmt.Errorf("%w: duplicate grade letter %q", ErrInvalidSettings, b.Letter)
		}
		seen[b.Letter] = true
	}
	return nil
}

// Options returns the alphabet as individual option labels.
func (s Settings) Options() []string {
	out := make([]string, 0, len(s.OptionAlphabet))
	for _, r := range s.OptionAlphabet {
		out = append(out, string(r))
	}
	return out
}

// Validate checks an answer key before it is stored: required fields,
// non-negative scoring values and every correct label drawn from alphabet.
func (k AnswerKey) Validate(alphabet string) error {
	if err := validate.Struct(k); err != nil {
		return fmt.Errorf("%w: answer key: %v", ErrInvalidRecord, err)
	}
	for q, label := range k.Answers {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("%w: answer key %s: empty question id", ErrInvalidRecord, k.ID)
		}
		if len([]rune(label)) != 1 || !strings.Contains(alphabet, label) {
			return fmt.Errorf("%w: answer key %s: question %s: label %q not in alphabet %q",
				ErrInvalidRecord, k.ID, q, label, alphabet)
		}
	}
	return nil
}

// Validate checks a student record.
func (s Student) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: student: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Validate checks a class record.
func (c Class) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: class: %v", ErrInvalidRecord, err)
	}
	return nil
}
