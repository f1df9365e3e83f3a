package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"twin/internal/logging"
	"twin/internal/session"
)

const sessionTable = "twin_sessions"

// Pool is the subset of pgxpool.Pool used by the store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps each transcript as a JSONB document in one row per session.
type Store struct {
	pool   Pool
	logger logging.Logger
}

// New constructs a Postgres backed store.
func New(pool Pool) (*Store, error) {
	if pool == nil {
		return nil, errors.New("postgres session store requires pool")
	}
	return &Store{
		pool:   pool,
		logger: logging.NewComponentLogger("SessionPostgresStore"),
	}, nil
}

// EnsureSchema creates the session table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    turns JSONB NOT NULL DEFAULT '[]'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_twin_sessions_updated_at ON %s (updated_at DESC);
`, sessionTable, sessionTable)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

// Load returns the stored transcript, or an empty one when no row exists.
func (s *Store) Load(ctx context.Context, id string) ([]session.Turn, error) {
	query := fmt.Sprintf(`SELECT turns FROM %s WHERE id = $1`, sessionTable)

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []session.Turn{}, nil
		}
		return nil, fmt.Errorf("select session %s: %w", id, err)
	}

	turns, err := session.Decode(raw)
	if err != nil {
		s.logger.Error("Failed to decode session row %s: %v", id, err)
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return turns, nil
}

// Save upserts the full transcript.
func (s *Store) Save(ctx context.Context, id string, turns []session.Turn) error {
	data, err := session.Encode(turns)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, turns, updated_at) VALUES ($1, $2, now())
ON CONFLICT (id) DO UPDATE SET turns = EXCLUDED.turns, updated_at = EXCLUDED.updated_at
`, sessionTable)

	if _, err := s.pool.Exec(ctx, query, id, data); err != nil {
		return fmt.Errorf("upsert session %s: %w", id, err)
	}
	return nil
}
