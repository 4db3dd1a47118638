package pgstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"barkeep/internal/economy"
)

const actorColumns = `id, name, aliases, platform_id, score, filters, filtered_at, last_theft, last_game, last_active, is_bot, seq, created_at`

type ActorStore struct {
	db *pgxpool.Pool
}

func scanActor(row pgx.Row) (economy.Actor, error) {
	var a economy.Actor
	var id string
	var filteredAt, lastTheft, lastGame, lastActive *time.Time
	err := row.Scan(&id, &a.Name, &a.Aliases, &a.PlatformID, &a.Score, &a.Filters,
		&filteredAt, &lastTheft, &lastGame, &lastActive, &a.IsBot, &a.Sequence, &a.CreatedAt)
	if err != nil {
		return economy.Actor{}, notFound(err)
	}
	a.ID, err = uuid.Parse(id)
	if err != nil {
		return economy.Actor{}, err
	}
	a.FilteredAt = deref(filteredAt)
	a.LastTheft = deref(lastTheft)
	a.LastGame = deref(lastGame)
	a.LastActive = deref(lastActive)
	return a, nil
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func nullable(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (r *ActorStore) ByID(ctx context.Context, id uuid.UUID) (economy.Actor, error) {
	return scanActor(r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE id = $1`, id.String()))
}

func (r *ActorStore) ByName(ctx context.Context, name string) (economy.Actor, error) {
	return scanActor(r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE name = $1`, strings.ToLower(strings.TrimSpace(name))))
}

func (r *ActorStore) ByAlias(ctx context.Context, alias string) (economy.Actor, error) {
	return scanActor(r.db.QueryRow(ctx, `
		SELECT `+actorColumns+` FROM actors
		WHERE $1 = ANY(aliases)
		ORDER BY seq
		LIMIT 1
	`, strings.ToLower(strings.TrimSpace(alias))))
}

func (r *ActorStore) ByPlatformID(ctx context.Context, platformID string) (economy.Actor, error) {
	if strings.TrimSpace(platformID) == "" {
		return economy.Actor{}, economy.ErrNotFound
	}
	return scanActor(r.db.QueryRow(ctx, `SELECT `+actorColumns+` FROM actors WHERE platform_id = $1`, platformID))
}

func (r *ActorStore) List(ctx context.Context) ([]economy.Actor, error) {
	return r.queryActors(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY seq`)
}

func (r *ActorStore) TopByScore(ctx context.Context, limit int) ([]economy.Actor, error) {
	return r.queryActors(ctx, `SELECT `+actorColumns+` FROM actors ORDER BY score DESC, seq LIMIT $1`, limit)
}

func (r *ActorStore) queryActors(ctx context.Context, query string, args ...any) ([]economy.Actor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ActorStore) Create(ctx context.Context, a *economy.Actor) error {
	err := withSerializableRetry(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO actors (id, name, aliases, platform_id, score, filters, filtered_at, last_theft, last_game, last_active, is_bot)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING seq
		`, a.ID.String(), a.Name, emptySlice(a.Aliases), a.PlatformID, a.Score, emptySlice(a.Filters),
			nullable(a.FilteredAt), nullable(a.LastTheft), nullable(a.LastGame), nullable(a.LastActive), a.IsBot).Scan(&a.Sequence)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO actor_names (name, actor_id) VALUES ($1, $2)`, a.Name, a.ID.String())
		return err
	})
	if isUniqueViolation(err) {
		return economy.ErrAlreadyExists
	}
	return err
}

func (r *ActorStore) AddAlias(ctx context.Context, id uuid.UUID, alias string) error {
	alias = strings.ToLower(strings.TrimSpace(alias))
	if alias == "" {
		return nil
	}
	err := withSerializableRetry(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO actor_names (name, actor_id) VALUES ($1, $2)`, alias, id.String()); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `UPDATE actors SET aliases = array_append(aliases, $2) WHERE id = $1`, id.String(), alias)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return economy.ErrNotFound
		}
		return nil
	})
	if isUniqueViolation(err) {
		return economy.ErrAlreadyExists
	}
	return err
}

func (r *ActorStore) Save(ctx context.Context, a economy.Actor) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE actors
		SET name = $2, aliases = $3, platform_id = $4, score = $5, filters = $6,
		    filtered_at = $7, last_theft = $8, last_game = $9, last_active = $10, is_bot = $11
		WHERE id = $1
	`, a.ID.String(), a.Name, emptySlice(a.Aliases), a.PlatformID, a.Score, emptySlice(a.Filters),
		nullable(a.FilteredAt), nullable(a.LastTheft), nullable(a.LastGame), nullable(a.LastActive), a.IsBot)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return economy.ErrNotFound
	}
	return nil
}

func emptySlice(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
