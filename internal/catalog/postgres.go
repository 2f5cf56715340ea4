package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS processed_files (
	catalog_id   UUID PRIMARY KEY,
	run_id       TEXT NOT NULL,
	period       TEXT NOT NULL,
	input_file   TEXT NOT NULL,
	output_file  TEXT NOT NULL,
	object_key   TEXT,
	processed_at TIMESTAMPTZ NOT NULL
)`

const insertEntry = `INSERT INTO processed_files
	(catalog_id, run_id, period, input_file, output_file, object_key, processed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const lastOutput = `SELECT output_file FROM processed_files
	WHERE input_file = $1 ORDER BY processed_at DESC LIMIT 1`

// Postgres keeps the catalog in the processed_files table.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with a lib/pq DSN and creates the table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := NewPostgres(db)
	if err := p.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates processed_files when it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create processed_files: %w", err)
	}
	return nil
}

// Record inserts e.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	var key sql.NullString
	if e.ObjectKey != "" {
		key = sql.NullString{String: e.ObjectKey, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, insertEntry,
		e.CatalogID.String(),
		e.RunID.String(),
		e.Period.String(),
		e.Input,
		e.Output,
		key,
		e.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processed file %s: %w", e.Input, err)
	}
	return nil
}

// LastOutput returns the most recent output recorded for input, and false
// when input was never processed.
func (p *Postgres) LastOutput(ctx context.Context, input string) (string, bool, error) {
	var out string
	err := p.db.QueryRowContext(ctx, lastOutput, input).Scan(&out)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query processed file %s: %w", input, err)
	}
	return out, true, nil
}

// Close closes the database handle.
func (p *Postgres) Close() error {
	return p.db.Close()
}
