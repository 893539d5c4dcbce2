// Package archive provides a PostgreSQL-backed record of completed pairings
// and final call transcripts.
//
// Archiving is optional: when no DSN is configured the relay runs without it
// and calls leave no trace beyond metrics and logs.
package archive

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddl = `
CREATE TABLE IF NOT EXISTS pairings (
    id         BIGSERIAL    PRIMARY KEY,
    code       TEXT         NOT NULL,
    paired_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pairings_code ON pairings (code);
CREATE INDEX IF NOT EXISTS idx_pairings_paired_at ON pairings (paired_at);

CREATE TABLE IF NOT EXISTS transcripts (
    id          BIGSERIAL    PRIMARY KEY,
    code        TEXT         NOT NULL,
    transcript  TEXT         NOT NULL,
    spoken_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_transcripts_code ON transcripts (code);
CREATE INDEX IF NOT EXISTS idx_transcripts_spoken_at ON transcripts (spoken_at);
`

// Store records pairings and transcripts in PostgreSQL. It holds a single
// [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the database at dsn and runs
// [Migrate] to ensure the archive tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate creates the archive tables and indexes if they do not exist.
// It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply archive schema: %w", err)
	}
	return nil
}

// RecordPairing stores the moment a caller spoke code and was attached to the
// waiting game leg.
func (s *Store) RecordPairing(ctx context.Context, code string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO pairings (code) VALUES ($1)`, code)
	if err != nil {
		return fmt.Errorf("archive: record pairing: %w", err)
	}
	return nil
}

// RecordTranscript stores one final transcript spoken on a paired call.
func (s *Store) RecordTranscript(ctx context.Context, code, transcript string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcripts (code, transcript) VALUES ($1, $2)`, code, transcript)
	if err != nil {
		return fmt.Errorf("archive: record transcript: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
