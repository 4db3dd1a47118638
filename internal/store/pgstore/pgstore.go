// Package pgstore backs the repositories with postgres. Ownership mutations
// are single-statement compare-and-swap updates or serializable
// transactions, so concurrent actors racing on the same entity resolve to
// exactly one winner.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"barkeep/internal/economy"
)

// Entity ids are uuid strings; uuid.Nil's string form marks "no owner" so
// ownership compare-and-swap stays a plain equality predicate.
const schema = `
CREATE TABLE IF NOT EXISTS actors (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	aliases TEXT[] NOT NULL DEFAULT '{}',
	platform_id TEXT NOT NULL DEFAULT '',
	score INT NOT NULL DEFAULT 0,
	filters TEXT[] NOT NULL DEFAULT '{}',
	filtered_at TIMESTAMPTZ,
	last_theft TIMESTAMPTZ,
	last_game TIMESTAMPTZ,
	last_active TIMESTAMPTZ,
	is_bot BOOLEAN NOT NULL DEFAULT false,
	seq BIGINT GENERATED ALWAYS AS IDENTITY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS actors_platform_id_key ON actors (platform_id) WHERE platform_id <> '';

-- Registry of every primary name and alias. The primary key makes
-- cross-actor name uniqueness a constraint instead of a read-then-check.
CREATE TABLE IF NOT EXISTS actor_names (
	name TEXT PRIMARY KEY,
	actor_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	creator_id TEXT NOT NULL,
	point_value INT NOT NULL DEFAULT 1,
	theft_attempts INT NOT NULL DEFAULT 0,
	ephemeral BOOLEAN NOT NULL DEFAULT false,
	seq BIGINT GENERATED ALWAYS AS IDENTITY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS items_owner_idx ON items (owner_id);

CREATE TABLE IF NOT EXISTS beverages (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	brewer_id TEXT NOT NULL,
	seq BIGINT GENERATED ALWAYS AS IDENTITY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (owner_id, name)
);

CREATE TABLE IF NOT EXISTS treasures (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	owner_id TEXT NOT NULL,
	seq BIGINT GENERATED ALWAYS AS IDENTITY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{db: db} }

// Migrate creates the schema. Idempotent; runs at startup.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Repos() economy.Repos {
	return economy.Repos{
		Actors:    &ActorStore{db: s.db},
		Items:     &ItemStore{db: s.db},
		Beverages: &BeverageStore{db: s.db},
		Treasures: &TreasureStore{db: s.db},
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return economy.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

// withSerializableRetry runs fn in a serializable transaction and retries
// bounded times on serialization failures.
func withSerializableRetry(ctx context.Context, db *pgxpool.Pool, fn func(pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return economy.ErrConflict
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return economy.ErrConflict
}
