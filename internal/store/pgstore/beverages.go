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

const beverageColumns = `id, name, owner_id, brewer_id, seq, created_at`

type BeverageStore struct {
	db *pgxpool.Pool
}

func scanBeverage(row pgx.Row) (economy.Beverage, error) {
	var b economy.Beverage
	var id, owner, brewer string
	err := row.Scan(&id, &b.Name, &owner, &brewer, &b.Sequence, &b.CreatedAt)
	if err != nil {
		return economy.Beverage{}, notFound(err)
	}
	if b.ID, err = uuid.Parse(id); err != nil {
		return economy.Beverage{}, err
	}
	if b.OwnerID, err = uuid.Parse(owner); err != nil {
		return economy.Beverage{}, err
	}
	if b.BrewerID, err = uuid.Parse(brewer); err != nil {
		return economy.Beverage{}, err
	}
	return b, nil
}

func (r *BeverageStore) ByID(ctx context.Context, id uuid.UUID) (economy.Beverage, error) {
	return scanBeverage(r.db.QueryRow(ctx, `SELECT `+beverageColumns+` FROM beverages WHERE id = $1`, id.String()))
}

func (r *BeverageStore) ByName(ctx context.Context, name string) (economy.Beverage, error) {
	return scanBeverage(r.db.QueryRow(ctx, `
		SELECT `+beverageColumns+` FROM beverages
		WHERE name = $1
		ORDER BY seq DESC
		LIMIT 1
	`, strings.ToLower(strings.TrimSpace(name))))
}

func (r *BeverageStore) ByOwnerAndName(ctx context.Context, owner uuid.UUID, name string) (economy.Beverage, error) {
	return scanBeverage(r.db.QueryRow(ctx, `
		SELECT `+beverageColumns+` FROM beverages
		WHERE owner_id = $1 AND name = $2
	`, owner.String(), strings.ToLower(strings.TrimSpace(name))))
}

func (r *BeverageStore) ByOwner(ctx context.Context, owner uuid.UUID) ([]economy.Beverage, error) {
	return r.queryBeverages(ctx, `SELECT `+beverageColumns+` FROM beverages WHERE owner_id = $1 ORDER BY seq`, owner.String())
}

func (r *BeverageStore) List(ctx context.Context) ([]economy.Beverage, error) {
	return r.queryBeverages(ctx, `SELECT `+beverageColumns+` FROM beverages ORDER BY seq`)
}

func (r *BeverageStore) queryBeverages(ctx context.Context, query string, args ...any) ([]economy.Beverage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Beverage
	for rows.Next() {
		b, err := scanBeverage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BeverageStore) CountByOwner(ctx context.Context, owner uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(1) FROM beverages WHERE owner_id = $1`, owner.String()).Scan(&n)
	return n, err
}

func (r *BeverageStore) CreateOwned(ctx context.Context, b *economy.Beverage, capacity int) error {
	return withSerializableRetry(ctx, r.db, func(tx pgx.Tx) error {
		// Duplicate name outranks capacity so both stores narrate an
		// at-capacity duplicate the same way.
		var dup bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM beverages WHERE owner_id = $1 AND name = $2)`,
			b.OwnerID.String(), b.Name).Scan(&dup); err != nil {
			return err
		}
		if dup {
			return economy.ErrAlreadyExists
		}
		if capacity > 0 {
			var n int
			if err := tx.QueryRow(ctx, `SELECT COUNT(1) FROM beverages WHERE owner_id = $1`, b.OwnerID.String()).Scan(&n); err != nil {
				return err
			}
			if n >= capacity {
				return economy.ErrCapacityExceeded
			}
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO beverages (id, name, owner_id, brewer_id)
			VALUES ($1, $2, $3, $4)
			RETURNING seq
		`, b.ID.String(), b.Name, b.OwnerID.String(), b.BrewerID.String()).Scan(&b.Sequence)
		if isUniqueViolation(err) {
			return economy.ErrAlreadyExists
		}
		return err
	})
}

func (r *BeverageStore) Transfer(ctx context.Context, id, from, to uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE beverages
		SET owner_id = $3
		WHERE id = $1 AND owner_id = $2
	`, id.String(), from.String(), to.String())
	if err != nil {
		if isUniqueViolation(err) {
			// Recipient already has a beverage of this name.
			return economy.ErrAlreadyExists
		}
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

func (r *BeverageStore) Delete(ctx context.Context, id, owner uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM beverages WHERE id = $1 AND owner_id = $2`, id.String(), owner.String())
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
