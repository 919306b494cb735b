package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// SetMetadata upserts a key-value pair in the settings table.
func (s *Store) SetMetadata(key, value string) error {
	return s.setMetadata(s.db, key, value)
}

func (s *Store) setMetadata(q execer, key, value string) error {
	_, err := q.Exec(s.rebind(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMetadata returns the value for a settings key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.queryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SaveSettings validates and stores all grading settings as key rows.
func (s *Store) SaveSettings(st model.Settings) error {
	return s.inTx(func(tx *sql.Tx) error {
		return s.saveSettings(tx, st)
	})
}

func (s *Store) saveSettings(q execer, st model.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	scale, err := json.Marshal(st.GradingScale)
	if err != nil {
		return fmt.Errorf("encode grading scale: %w", err)
	}
	pairs := []struct{ k, v string }{
		{"passing_percentage", strconv.FormatFloat(st.PassingPercentage, 'f', -1, 64)},
		{"grading_scale", string(scale)},
		{"default_negative_mark_value", strconv.FormatFloat(st.DefaultNegativeMarkValue, 'f', -1, 64)},
		{"option_alphabet", st.OptionAlphabet},
	}
	for _, p := range pairs {
		if err := s.setMetadata(q, p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetSettings reads the stored grading settings. Keys that were never
// saved keep the value from defaults.
func (s *Store) GetSettings(defaults model.Settings) (model.Settings, error) {
	st := defaults

	floats := []struct {
		key string
		dst *float64
	}{
		{"passing_percentage", &st.PassingPercentage},
		{"default_negative_mark_value", &st.DefaultNegativeMarkValue},
	}
	for _, f := range floats {
		v, err := s.GetMetadata(f.key)
		if err != nil {
			return st, err
		}
		if v == "" {
			continue
		}
		if *f.dst, err = strconv.ParseFloat(v, 64); err != nil {
			return st, fmt.Errorf("parse %s: %w", f.key, err)
		}
	}

	scale, err := s.GetMetadata("grading_scale")
	if err != nil {
		return st, err
	}
	if scale != "" {
		var gs model.GradingScale
		if err := json.Unmarshal([]byte(scale), &gs); err != nil {
			return st, fmt.Errorf("parse grading_scale: %w", err)
		}
		st.GradingScale = gs
	}

	alphabet, err := s.GetMetadata("option_alphabet")
	if err != nil {
		return st, err
	}
	if alphabet != "" {
		st.OptionAlphabet = alphabet
	}
	return st, nil
}

// GetImportedFileHash returns the content hash recorded for an imported
// file, or "" if it was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.queryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.exec(
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`,
		path, hash, time.Now().UnixMilli(),
	)
	return err
}
