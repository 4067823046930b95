// Package store archives rendered plans in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mickamy/pgdot/internal/errs"
)

// DefaultListLimit bounds List when the caller passes a non-positive limit.
const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS renders (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	name TEXT NOT NULL,
	plan BLOB NOT NULL,
	dot TEXT NOT NULL,
	nodes INTEGER NOT NULL,
	max_cost REAL NOT NULL,
	execution_time REAL
);
CREATE INDEX IF NOT EXISTS renders_created_at ON renders (created_at);
`

// Record is one archived rendering.
type Record struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Plan      []byte    `json:"-"`
	DOT       string    `json:"-"`
	Nodes     int       `json:"nodes"`
	MaxCost   float64   `json:"max_cost"`
	// ExecutionTime is the root time in milliseconds; nil for plans without ANALYZE.
	ExecutionTime *float64 `json:"execution_time,omitempty"`
}

// Store reads and writes records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the SQLite database at path and creates the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "store: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(err, errs.CodeInternal, "store: ping")
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. The schema is not touched.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "store: migrate")
	}
	return nil
}

// Save inserts rec with a fresh id and creation time and returns the stored record.
func (s *Store) Save(ctx context.Context, rec Record) (Record, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()

	var execTime sql.NullFloat64
	if rec.ExecutionTime != nil {
		execTime = sql.NullFloat64{Float64: *rec.ExecutionTime, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO renders (id, created_at, name, plan, dot, nodes, max_cost, execution_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UnixNano(), rec.Name, rec.Plan, rec.DOT, rec.Nodes, rec.MaxCost, execTime,
	)
	if err != nil {
		return Record{}, errs.Wrap(err, errs.CodeInternal, "store: insert render")
	}
	return rec, nil
}

// Get returns the record with the given id including its plan and DOT text.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, errs.Newf(errs.CodeNotFound, "store: render %q not found", id)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, name, plan, dot, nodes, max_cost, execution_time
		FROM renders WHERE id = ?`, id)

	var (
		rec      Record
		created  int64
		execTime sql.NullFloat64
	)
	err := row.Scan(&rec.ID, &created, &rec.Name, &rec.Plan, &rec.DOT, &rec.Nodes, &rec.MaxCost, &execTime)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, errs.Newf(errs.CodeNotFound, "store: render %q not found", id)
	}
	if err != nil {
		return Record{}, errs.Wrap(err, errs.CodeInternal, "store: get render")
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	if execTime.Valid {
		rec.ExecutionTime = &execTime.Float64
	}
	return rec, nil
}

// List returns record summaries, newest first. Plan and DOT are left empty.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, name, nodes, max_cost, execution_time
		FROM renders ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "store: list renders")
	}
	defer func() { _ = rows.Close() }()

	out := []Record{}
	for rows.Next() {
		var (
			rec      Record
			created  int64
			execTime sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &created, &rec.Name, &rec.Nodes, &rec.MaxCost, &execTime); err != nil {
			return nil, errs.Wrap(err, errs.CodeInternal, "store: scan render")
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		if execTime.Valid {
			v := execTime.Float64
			rec.ExecutionTime = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CodeInternal, "store: list renders")
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
