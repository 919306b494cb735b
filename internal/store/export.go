package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// ExportAll gathers every stored record into one export document.
// Settings that were never saved are filled from defaults.
func (s *Store) ExportAll(defaults model.Settings) (model.DataExport, error) {
	var out model.DataExport
	var err error

	if out.AnswerKeys, err = s.ListAnswerKeys(); err != nil {
		return out, fmt.Errorf("list answer keys: %w", err)
	}
	if out.Classes, err = s.ListClasses(); err != nil {
		return out, fmt.Errorf("list classes: %w", err)
	}
	if out.Students, err = s.ListStudents(""); err != nil {
		return out, fmt.Errorf("list students: %w", err)
	}
	if out.Results, err = s.ListResults(); err != nil {
		return out, fmt.Errorf("list results: %w", err)
	}
	if out.Settings, err = s.GetSettings(defaults); err != nil {
		return out, fmt.Errorf("get settings: %w", err)
	}
	out.ExportDate = time.Now().UTC()
	return out, nil
}

// ImportAll loads an export document. Every record is validated first,
// answer keys against the imported option alphabet (or the current one
// when the export carries no settings), and then everything is written in
// one transaction, so an invalid document leaves the store untouched.
// Answer keys, classes, students and settings are upserted; results whose
// ID already exists are skipped. It returns the number of results inserted.
func (s *Store) ImportAll(data model.DataExport, defaults model.Settings) (int, error) {
	importSettings := len(data.Settings.GradingScale) > 0
	if err := s.validateImport(data, importSettings, defaults); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.inTx(func(tx *sql.Tx) error {
		for i := range data.AnswerKeys {
			if err := s.saveAnswerKey(tx, &data.AnswerKeys[i]); err != nil {
				return fmt.Errorf("import answer key %s: %w", data.AnswerKeys[i].ID, err)
			}
		}
		for i := range data.Classes {
			if err := s.saveClass(tx, &data.Classes[i]); err != nil {
				return fmt.Errorf("import class %s: %w", data.Classes[i].ID, err)
			}
		}
		for i := range data.Students {
			if err := s.saveStudent(tx, &data.Students[i]); err != nil {
				return fmt.Errorf("import student %s: %w", data.Students[i].ID, err)
			}
		}
		if importSettings {
			if err := s.saveSettings(tx, data.Settings); err != nil {
				return fmt.Errorf("import settings: %w", err)
			}
		}

		for _, r := range data.Results {
			exists, err := s.resultExists(tx, r.ID)
			if err != nil {
				return err
			}
			if exists {
				slog.Debug("result already present, skipping", "id", r.ID)
				continue
			}
			if err := s.saveResult(tx, r); err != nil {
				return fmt.Errorf("import result %s: %w", r.ID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *Store) validateImport(data model.DataExport, importSettings bool, defaults model.Settings) error {
	settings := data.Settings
	if importSettings {
		if err := settings.Validate(); err != nil {
			return fmt.Errorf("import settings: %w", err)
		}
	} else {
		var err error
		if settings, err = s.GetSettings(defaults); err != nil {
			return err
		}
	}

	for _, k := range data.AnswerKeys {
		if err := k.Validate(settings.OptionAlphabet); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	for _, c := range data.Classes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	for _, st := range data.Students {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}
	for _, r := range data.Results {
		if r.ID == "" || r.AnswerKeyID == "" {
			return fmt.Errorf("import: %w: result %q needs an id and an answer key id", model.ErrInvalidRecord, r.ID)
		}
	}
	return nil
}
