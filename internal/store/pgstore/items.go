package pgstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"barkeep/internal/economy"
)

const itemColumns = `id, name, owner_id, creator_id, point_value, theft_attempts, ephemeral, seq, created_at`

type ItemStore struct {
	db *pgxpool.Pool
}

func scanItem(row pgx.Row) (economy.Item, error) {
	var it economy.Item
	var id, owner, creator string
	err := row.Scan(&id, &it.Name, &owner, &creator, &it.PointValue, &it.TheftAttempts, &it.Ephemeral, &it.Sequence, &it.CreatedAt)
	if err != nil {
		return economy.Item{}, notFound(err)
	}
	if it.ID, err = uuid.Parse(id); err != nil {
		return economy.Item{}, err
	}
	if it.OwnerID, err = uuid.Parse(owner); err != nil {
		return economy.Item{}, err
	}
	if it.CreatorID, err = uuid.Parse(creator); err != nil {
		return economy.Item{}, err
	}
	return it, nil
}

func (r *ItemStore) ByID(ctx context.Context, id uuid.UUID) (economy.Item, error) {
	return scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id.String()))
}

func (r *ItemStore) ByName(ctx context.Context, name string) (economy.Item, error) {
	return scanItem(r.db.QueryRow(ctx, `
		SELECT `+itemColumns+` FROM items
		WHERE name = $1
		ORDER BY seq DESC
		LIMIT 1
	`, strings.ToLower(strings.TrimSpace(name))))
}

func (r *ItemStore) ByOwner(ctx context.Context, owner uuid.UUID) ([]economy.Item, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items WHERE owner_id = $1 ORDER BY seq`, owner.String())
}

func (r *ItemStore) List(ctx context.Context) ([]economy.Item, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY seq`)
}

func (r *ItemStore) queryItems(ctx context.Context, query string, args ...any) ([]economy.Item, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ItemStore) CountByOwner(ctx context.Context, owner uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM items WHERE owner_id = $1`, owner.String()).Scan(&n)
	return n, err
}

func (r *ItemStore) CreateOwned(ctx context.Context, it *economy.Item, capacity int) error {
	return withSerializableRetry(ctx, r.db, func(tx pgx.Tx) error {
		if capacity > 0 && it.OwnerID != uuid.Nil {
			var n int
			if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM items WHERE owner_id = $1`, it.OwnerID.String()).Scan(&n); err != nil {
				return err
			}
			if n >= capacity {
				return economy.ErrCapacityExceeded
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO items (id, name, owner_id, creator_id, point_value, theft_attempts, ephemeral)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING seq
		`, it.ID.String(), it.Name, it.OwnerID.String(), it.CreatorID.String(), it.PointValue, it.TheftAttempts, it.Ephemeral).Scan(&it.Sequence)
	})
}

func (r *ItemStore) Transfer(ctx context.Context, id, from, to uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE items
		SET owner_id = $3, theft_attempts = 0
		WHERE id = $1 AND owner_id = $2
	`, id.String(), from.String(), to.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := r.ByID(ctx, id); errors.Is(err, economy.ErrNotFound) {
			return economy.ErrNotFound
		}
		return economy.ErrConflict
	}
	return nil
}

func (r *ItemStore) IncrementTheftAttempts(ctx context.Context, id uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE items
		SET theft_attempts = theft_attempts + 1
		WHERE id = $1
	`, id.String())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return economy.ErrNotFound
	}
	return nil
}

func (r *ItemStore) Save(ctx context.Context, it economy.Item) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE items
		SET name = $2, owner_id = $3, point_value = $4, theft_attempts = $5, ephemeral = $6
		WHERE id = $1
	`, it.ID.String(), it.Name, it.OwnerID.String(), it.PointValue, it.TheftAttempts, it.Ephemeral)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return economy.ErrNotFound
	}
	return nil
}
