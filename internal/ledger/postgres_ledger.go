package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS write_failures (
		id          UUID PRIMARY KEY,
		request_id  TEXT NOT NULL,
		keys        TEXT[] NOT NULL,
		kind        TEXT NOT NULL,
		message     TEXT NOT NULL,
		retryable   BOOLEAN NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)
`

// PostgresLedger implements Ledger using PostgreSQL
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgresLedger connects to dsn and creates the ledger table if needed
func NewPostgresLedger(ctx context.Context, dsn string) (*PostgresLedger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	return &PostgresLedger{pool: pool}, nil
}

// Record stores entries in a single batch
func (l *PostgresLedger) Record(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO write_failures (
			id, request_id, keys, kind, message, retryable, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.ID,
			e.RequestID,
			e.Keys,
			e.Kind,
			e.Message,
			e.Retryable,
			e.CreatedAt,
		)
	}

	if err := l.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to record ledger entries: %w", err)
	}
	return nil
}

// Pending returns up to limit entries, oldest first. limit <= 0 returns all.
func (l *PostgresLedger) Pending(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, request_id, keys, kind, message, retryable, created_at
		FROM write_failures
		ORDER BY created_at ASC, id ASC
	`
	args := make([]interface{}, 0, 1)
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.RequestID,
			&e.Keys,
			&e.Kind,
			&e.Message,
			&e.Retryable,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Resolve deletes an entry
func (l *PostgresLedger) Resolve(ctx context.Context, id uuid.UUID) error {
	result, err := l.pool.Exec(ctx, `DELETE FROM write_failures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve ledger entry: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Ping checks the database connection
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close closes the connection pool
func (l *PostgresLedger) Close() {
	l.pool.Close()
}
