package model

import "encoding/json"

// blankMark is how recognizers and exports spell an empty bubble row.
const blankMark = "-"

// Selection is what was marked for one question: either an option label
// or Unanswered. The zero value is Unanswered.
type Selection struct {
	label    string
	answered bool
}

// Unanswered is the selection for a question with no usable mark.
var Unanswered = Selection{}

// Selected returns a selection for label. "" and "-" yield Unanswered;
// any other label is kept verbatim so grading compares it exactly.
func Selected(label string) Selection {
	if label == "" || label == blankMark {
		return Unanswered
	}
	return Selection{label: label, answered: true}
}

// Label returns the marked label and whether anything was marked.
func (s Selection) Label() (string, bool) {
	return s.label, s.answered
}

// Answered reports whether the question carries a mark.
func (s Selection) Answered() bool {
	return s.answered
}

func (s Selection) String() string {
	if !s.answered {
		return blankMark
	}
	return s.label
}

// MarshalJSON writes the label, or "-" for Unanswered.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any JSON value. Strings become selections; null,
// numbers, arrays and objects are read as Unanswered because recognizer
// output is noisy and a bad cell must not fail the whole sheet.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		*s = Unanswered
		return nil
	}
	str, ok := v.(string)
	if !ok {
		*s = Unanswered
		return nil
	}
	*s = Selected(str)
	return nil
}

// AnswersFromStrings builds RecognizedAnswers from plain labels.
func AnswersFromStrings(m map[string]string) RecognizedAnswers {
	out := make(RecognizedAnswers, len(m))
	for q, label := range m {
		out[q] = Selected(label)
	}
	return out
}
