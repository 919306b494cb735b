package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// SaveResult inserts a graded exam record. Results are immutable; saving an
// existing ID fails.
func (s *Store) SaveResult(r model.ExamResult) error {
	return s.saveResult(s.db, r)
}

// SaveResults inserts a batch of results in one transaction: either all
// of them are stored or none.
func (s *Store) SaveResults(results []model.ExamResult) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, r := range results {
			if err := s.saveResult(tx, r); err != nil {
				return fmt.Errorf("save result %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) saveResult(q execer, r model.ExamResult) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	questions, err := json.Marshal(r.Results)
	if err != nil {
		return fmt.Errorf("encode question results: %w", err)
	}
	perf, err := json.Marshal(r.Performance)
	if err != nil {
		return fmt.Errorf("encode performance: %w", err)
	}

	sum := r.Summary
	_, err = q.Exec(s.rebind(
		`INSERT INTO results (id, answer_key_id, student_id, student_name, class_id, exam_name, subject,
			exam_date, answers_json, results_json, total_questions, correct_count, incorrect_count,
			unanswered_count, total_score, max_possible_score, percentage, grade, passed,
			performance_json, multi_marked_count, marked_image)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.AnswerKeyID, r.StudentID, r.StudentName, r.ClassID, r.ExamName, r.Subject,
		toMillis(r.ExamDate), string(answers), string(questions), sum.TotalQuestions, sum.CorrectCount,
		sum.IncorrectCount, sum.UnansweredCount, sum.TotalScore, sum.MaxPossibleScore, sum.Percentage,
		r.Grade, boolToInt(r.Passed), string(perf), r.MultiMarkedCount, r.MarkedImage,
	)
	return err
}

const resultColumns = `id, answer_key_id, student_id, student_name, class_id, exam_name, subject,
	exam_date, answers_json, results_json, total_questions, correct_count, incorrect_count,
	unanswered_count, total_score, max_possible_score, percentage, grade, passed,
	performance_json, multi_marked_count, marked_image`

func scanResult(row rowScanner) (model.ExamResult, error) {
	var (
		r                        model.ExamResult
		examDate                 int64
		answers, questions, perf string
		passed                   int
	)
	sum := &r.Summary
	if err := row.Scan(&r.ID, &r.AnswerKeyID, &r.StudentID, &r.StudentName, &r.ClassID, &r.ExamName, &r.Subject,
		&examDate, &answers, &questions, &sum.TotalQuestions, &sum.CorrectCount, &sum.IncorrectCount,
		&sum.UnansweredCount, &sum.TotalScore, &sum.MaxPossibleScore, &sum.Percentage, &r.Grade, &passed,
		&perf, &r.MultiMarkedCount, &r.MarkedImage); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return r, fmt.Errorf("decode answers of result %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(questions), &r.Results); err != nil {
		return r, fmt.Errorf("decode question results of result %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(perf), &r.Performance); err != nil {
		return r, fmt.Errorf("decode performance of result %s: %w", r.ID, err)
	}
	r.ExamDate = fromMillis(examDate)
	r.Passed = passed != 0
	return r, nil
}

func (s *Store) listResults(query string, args ...any) ([]model.ExamResult, error) {
	rows, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.ExamResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResult returns a result by ID.
func (s *Store) GetResult(id string) (model.ExamResult, error) {
	r, err := scanResult(s.queryRow(`SELECT `+resultColumns+` FROM results WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListResults returns every stored result, newest first.
func (s *Store) ListResults() ([]model.ExamResult, error) {
	return s.listResults(`SELECT ` + resultColumns + ` FROM results ORDER BY exam_date DESC, id`)
}

// ListResultsByAnswerKey returns the results graded against one key.
// A non-empty classID restricts them to that class.
func (s *Store) ListResultsByAnswerKey(keyID, classID string) ([]model.ExamResult, error) {
	query := `SELECT ` + resultColumns + ` FROM results WHERE answer_key_id = ?`
	args := []any{keyID}
	if classID != "" {
		query += ` AND class_id = ?`
		args = append(args, classID)
	}
	query += ` ORDER BY exam_date DESC, id`
	return s.listResults(query, args...)
}

// ListResultsByStudent returns all results of one student.
func (s *Store) ListResultsByStudent(studentID string) ([]model.ExamResult, error) {
	return s.listResults(`SELECT `+resultColumns+` FROM results WHERE student_id = ? ORDER BY exam_date DESC, id`, studentID)
}

// DeleteResult removes one result.
func (s *Store) DeleteResult(id string) error {
	res, err := s.exec(`DELETE FROM results WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "result", id)
}

func (s *Store) resultExists(q execer, id string) (bool, error) {
	var n int
	err := q.QueryRow(s.rebind(`SELECT COUNT(*) FROM results WHERE id = ?`), id).Scan(&n)
	return n > 0, err
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.queryRow(`SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}
