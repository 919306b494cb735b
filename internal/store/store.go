package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// ErrNotFound is returned when a record addressed by ID does not exist.
var ErrNotFound = errors.New("not found")

// Driver selects the database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens a SQLite database at dbPath.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open opens a database for the given driver and ensures the schema exists.
// For SQLite dsn is a file path (or ":memory:"); for Postgres it is a
// connection URL.
func Open(driver Driver, dsn string) (*Store, error) {
	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		db, err = sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
		if err == nil {
			// One connection keeps ":memory:" databases shared and
			// serializes writers.
			db.SetMaxOpenConns(1)
		}
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which backend the store runs on.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

// rebind rewrites ? placeholders to $1, $2, ... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// execer is what *sql.DB and *sql.Tx have in common, so write paths run
// the same statements inside or outside a transaction.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// inTx runs fn in one transaction and commits only if fn succeeds.
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(s.rebind(query), args...)
}

func (s *Store) query(query string, args ...any) (*sql.Rows, error) {
	return s.db.Query(s.rebind(query), args...)
}

func (s *Store) queryRow(query string, args ...any) *sql.Row {
	return s.db.QueryRow(s.rebind(query), args...)
}

// requireAffected turns a delete that matched no rows into ErrNotFound.
func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// Timestamps are stored as Unix milliseconds so both backends share one
// column type.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS answer_keys (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL,
	points_per_question REAL NOT NULL DEFAULT 1,
	negative_marking INTEGER NOT NULL DEFAULT 0,
	negative_mark_value REAL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	class_id TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	answer_key_id TEXT NOT NULL,
	student_id TEXT NOT NULL DEFAULT '',
	student_name TEXT NOT NULL DEFAULT '',
	class_id TEXT NOT NULL DEFAULT '',
	exam_name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	exam_date INTEGER NOT NULL,
	answers_json TEXT NOT NULL,
	results_json TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	correct_count INTEGER NOT NULL,
	incorrect_count INTEGER NOT NULL,
	unanswered_count INTEGER NOT NULL,
	total_score REAL NOT NULL,
	max_possible_score REAL NOT NULL,
	percentage REAL NOT NULL,
	grade TEXT NOT NULL,
	passed INTEGER NOT NULL,
	performance_json TEXT NOT NULL,
	multi_marked_count INTEGER NOT NULL DEFAULT 0,
	marked_image TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_results_key ON results(answer_key_id);
CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	imported_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS answer_keys (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	answers_json TEXT NOT NULL,
	points_per_question DOUBLE PRECISION NOT NULL DEFAULT 1,
	negative_marking INTEGER NOT NULL DEFAULT 0,
	negative_mark_value DOUBLE PRECISION,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS classes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	class_id TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id TEXT PRIMARY KEY,
	answer_key_id TEXT NOT NULL,
	student_id TEXT NOT NULL DEFAULT '',
	student_name TEXT NOT NULL DEFAULT '',
	class_id TEXT NOT NULL DEFAULT '',
	exam_name TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	exam_date BIGINT NOT NULL,
	answers_json TEXT NOT NULL,
	results_json TEXT NOT NULL,
	total_questions INTEGER NOT NULL,
	correct_count INTEGER NOT NULL,
	incorrect_count INTEGER NOT NULL,
	unanswered_count INTEGER NOT NULL,
	total_score DOUBLE PRECISION NOT NULL,
	max_possible_score DOUBLE PRECISION NOT NULL,
	percentage DOUBLE PRECISION NOT NULL,
	grade TEXT NOT NULL,
	passed INTEGER NOT NULL,
	performance_json TEXT NOT NULL,
	multi_marked_count INTEGER NOT NULL DEFAULT 0,
	marked_image TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_results_key ON results(answer_key_id);
CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS imported_files (
	path TEXT PRIMARY KEY,
	hash TEXT NOT NULL,
	imported_at BIGINT NOT NULL
);
`
