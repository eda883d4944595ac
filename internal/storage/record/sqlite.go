// internal/storage/record/sqlite.go
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/newthinker/strategylab/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS strategies (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL,
	feedback   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS strategies_owner ON strategies (owner, created_at);
`

// SQLiteStore persists records in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dsn and applies the
// schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Save inserts or replaces a record.
func (s *SQLiteStore) Save(ctx context.Context, rec *core.StrategyRecord) error {
	now := s.now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, owner, name, source, feedback, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			source = excluded.source,
			feedback = excluded.feedback,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Owner, rec.Name, rec.Source, rec.Feedback,
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}

	// Report the stored creation time when the row already existed.
	var created int64
	if err := s.db.QueryRowContext(ctx, `SELECT created_at FROM strategies WHERE id = ?`, rec.ID).Scan(&created); err == nil {
		rec.CreatedAt = time.Unix(0, created).UTC()
	}
	return nil
}

// Get retrieves a record by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.StrategyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner, name, source, feedback, created_at, updated_at
		FROM strategies WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	return rec, nil
}

// List returns records matching the filter.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]core.StrategyRecord, error) {
	query := `SELECT id, owner, name, source, feedback, created_at, updated_at FROM strategies`
	var args []any
	if filter.Owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, filter.Owner)
	}
	query += ` ORDER BY created_at, rowid`

	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	offset := 0
	if filter.Offset > 0 {
		offset = filter.Offset
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	result := []core.StrategyRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

// SetFeedback updates a record's feedback.
func (s *SQLiteStore) SetFeedback(ctx context.Context, id, feedback string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE strategies SET feedback = ?, updated_at = ? WHERE id = ?`,
		feedback, s.now().UTC().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("updating feedback: %w", err)
	}
	return expectOne(res, id)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM strategies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return expectOne(res, id)
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*core.StrategyRecord, error) {
	var rec core.StrategyRecord
	var created, updated int64
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Source, &rec.Feedback, &created, &updated); err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return &rec, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
