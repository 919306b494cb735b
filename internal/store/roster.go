package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coderDevDev/omr-checker-bubble-sheet/internal/model"
)

// SaveClass inserts or renames a class. An empty ID gets a fresh UUID.
func (s *Store) SaveClass(c *model.Class) error {
	if err := s.saveClass(s.db, c); err != nil {
		slog.Error("failed to save class", "id", c.ID, "error", err)
		return err
	}
	slog.Info("saved class", "id", c.ID, "name", c.Name)
	return nil
}

func (s *Store) saveClass(q execer, c *model.Class) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(s.rebind(
		`INSERT INTO classes (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name`),
		c.ID, c.Name, toMillis(c.CreatedAt),
	)
	return err
}

// GetClass returns a class by ID.
func (s *Store) GetClass(id string) (model.Class, error) {
	var c model.Class
	var created int64
	err := s.queryRow(`SELECT id, name, created_at FROM classes WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("class %s: %w", id, ErrNotFound)
	}
	c.CreatedAt = fromMillis(created)
	return c, err
}

// ListClasses returns all classes ordered by name.
func (s *Store) ListClasses() ([]model.Class, error) {
	rows, err := s.query(`SELECT id, name, created_at FROM classes ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := []model.Class{}
	for rows.Next() {
		var c model.Class
		var created int64
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = fromMillis(created)
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// SaveStudent inserts or updates a student. An empty ID gets a fresh UUID.
func (s *Store) SaveStudent(st *model.Student) error {
	if err := s.saveStudent(s.db, st); err != nil {
		slog.Error("failed to save student", "id", st.ID, "error", err)
		return err
	}
	slog.Info("saved student", "id", st.ID, "class_id", st.ClassID)
	return nil
}

func (s *Store) saveStudent(q execer, st *model.Student) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	_, err := q.Exec(s.rebind(
		`INSERT INTO students (id, name, class_id, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, class_id = excluded.class_id`),
		st.ID, st.Name, st.ClassID, toMillis(st.CreatedAt),
	)
	return err
}

// GetStudent returns a student by ID.
func (s *Store) GetStudent(id string) (model.Student, error) {
	var st model.Student
	var created int64
	err := s.queryRow(`SELECT id, name, class_id, created_at FROM students WHERE id = ?`, id).
		Scan(&st.ID, &st.Name, &st.ClassID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return st, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	st.CreatedAt = fromMillis(created)
	return st, err
}

// ListStudents returns students ordered by name. A non-empty classID
// restricts the list to that class.
func (s *Store) ListStudents(classID string) ([]model.Student, error) {
	query := `SELECT id, name, class_id, created_at FROM students`
	var args []any
	if classID != "" {
		query += ` WHERE class_id = ?`
		args = append(args, classID)
	}
	query += ` ORDER BY name, id`

	rows, err := s.query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	students := []model.Student{}
	for rows.Next() {
		var st model.Student
		var created int64
		if err := rows.Scan(&st.ID, &st.Name, &st.ClassID, &created); err != nil {
			return nil, err
		}
		st.CreatedAt = fromMillis(created)
		students = append(students, st)
	}
	return students, rows.Err()
}

// DeleteClass removes a class. Its students stay on the roster without a
// class; results keep the class they were graded under.
func (s *Store) DeleteClass(id string) error {
	err := s.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(s.rebind(`UPDATE students SET class_id = '' WHERE class_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.Exec(s.rebind(`DELETE FROM classes WHERE id = ?`), id)
		if err != nil {
			return err
		}
		return requireAffected(res, "class", id)
	})
	if err != nil {
		return err
	}
	slog.Info("deleted class", "id", id)
	return nil
}

// DeleteStudent removes a student from the roster. Their results are kept.
func (s *Store) DeleteStudent(id string) error {
	res, err := s.exec(`DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res, "student", id); err != nil {
		return err
	}
	slog.Info("deleted student", "id", id)
	return nil
}
