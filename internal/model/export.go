package model

import "time"

// DataExport is the top-level JSON structure for a full data export.
type DataExport struct {
	AnswerKeys []AnswerKey  `json:"answer_keys"`
	Students   []Student    `json:"students"`
	Classes    []Class      `json:"classes"`
	Results    []ExamResult `json:"results"`
	Settings   Settings     `json:"settings"`
	ExportDate time.Time    `json:"export_date"`
}

// ExamReport is the statistics view of one answer key's results.
type ExamReport struct {
	AnswerKeyID string                        `json:"answer_key_id"`
	ExamName    string                        `json:"exam_name"`
	ClassID     string                        `json:"class_id,omitempty"`
	Statistics  ClassStatistics               `json:"statistics"`
	Questions   map[string]QuestionDifficulty `json:"questions"`
}
