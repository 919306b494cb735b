package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// SaveAnswerKey inserts an answer key or replaces the one with the same ID.
// CreatedAt is kept from the first save.
func (s *Store) SaveAnswerKey(k *model.AnswerKey) error {
	return s.saveAnswerKey(s.db, k)
}

func (s *Store) saveAnswerKey(q execer, k *model.AnswerKey) error {
	answers, err := json.Marshal(k.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	now := time.Now().UTC()
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now

	_, err = q.Exec(s.rebind(
		`INSERT INTO answer_keys (id, name, subject, answers_json, points_per_question,
			negative_marking, negative_mark_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			subject = excluded.subject,
			answers_json = excluded.answers_json,
			points_per_question = excluded.points_per_question,
			negative_marking = excluded.negative_marking,
			negative_mark_value = excluded.negative_mark_value,
			updated_at = excluded.updated_at`),
		k.ID, k.Name, k.Subject, string(answers), k.PointsPerQuestion,
		boolToInt(k.NegativeMarking), nullFloat(k.NegativeMarkValue), toMillis(k.CreatedAt), toMillis(k.UpdatedAt),
	)
	return err
}

const answerKeyColumns = `id, name, subject, answers_json, points_per_question,
	negative_marking, negative_mark_value, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnswerKey(row rowScanner) (model.AnswerKey, error) {
	var (
		k                model.AnswerKey
		answers          string
		negative         int
		penalty          sql.NullFloat64
		created, updated int64
	)
	if err := row.Scan(&k.ID, &k.Name, &k.Subject, &answers, &k.PointsPerQuestion,
		&negative, &penalty, &created, &updated); err != nil {
		return k, err
	}
	if err := json.Unmarshal([]byte(answers), &k.Answers); err != nil {
		return k, fmt.Errorf("decode answers of key %s: %w", k.ID, err)
	}
	k.NegativeMarking = negative != 0
	if penalty.Valid {
		k.NegativeMarkValue = model.Float64(penalty.Float64)
	}
	k.CreatedAt = fromMillis(created)
	k.UpdatedAt = fromMillis(updated)
	return k, nil
}

// GetAnswerKey returns an answer key by ID.
func (s *Store) GetAnswerKey(id string) (model.AnswerKey, error) {
	k, err := scanAnswerKey(s.queryRow(`SELECT `+answerKeyColumns+` FROM answer_keys WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return k, fmt.Errorf("answer key %s: %w", id, ErrNotFound)
	}
	return k, err
}

// ListAnswerKeys returns all answer keys, newest first.
func (s *Store) ListAnswerKeys() ([]model.AnswerKey, error) {
	rows, err := s.query(`SELECT ` + answerKeyColumns + ` FROM answer_keys ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := []model.AnswerKey{}
	for rows.Next() {
		k, err := scanAnswerKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// DeleteAnswerKey removes an answer key together with its results.
func (s *Store) DeleteAnswerKey(id string) error {
	return s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.rebind(`DELETE FROM results WHERE answer_key_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.Exec(s.rebind(`DELETE FROM answer_keys WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return requireAffected(res, "answer key", id)
	})
}

// AnswerKeyCount returns the number of stored answer keys.
func (s *Store) AnswerKeyCount() (int, error) {
	var count int
	err := s.queryRow(`SELECT COUNT(*) FROM answer_keys`).Scan(&count)
	return count, err
}
