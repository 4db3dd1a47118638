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

const treasureColumns = `id, name, owner_id, seq, created_at`

type TreasureStore struct {
	db *pgxpool.Pool
}

func scanTreasure(row pgx.Row) (economy.Treasure, error) {
	var t economy.Treasure
	var id, owner string
	err := row.Scan(&id, &t.Name, &owner, &t.Sequence, &t.CreatedAt)
	if err != nil {
		return economy.Treasure{}, notFound(err)
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return economy.Treasure{}, err
	}
	if t.OwnerID, err = uuid.Parse(owner); err != nil {
		return economy.Treasure{}, err
	}
	return t, nil
}

func (r *TreasureStore) ByID(ctx context.Context, id uuid.UUID) (economy.Treasure, error) {
	return scanTreasure(r.db.QueryRow(ctx, `SELECT `+treasureColumns+` FROM treasures WHERE id = $1`, id.String()))
}

func (r *TreasureStore) ByName(ctx context.Context, name string) (economy.Treasure, error) {
	return scanTreasure(r.db.QueryRow(ctx, `SELECT `+treasureColumns+` FROM treasures WHERE name = $1`, strings.ToLower(strings.TrimSpace(name))))
}

func (r *TreasureStore) ByOwner(ctx context.Context, owner uuid.UUID) ([]economy.Treasure, error) {
	return r.queryTreasures(ctx, `SELECT `+treasureColumns+` FROM treasures WHERE owner_id = $1 ORDER BY seq`, owner.String())
}

func (r *TreasureStore) List(ctx context.Context) ([]economy.Treasure, error) {
	return r.queryTreasures(ctx, `SELECT `+treasureColumns+` FROM treasures ORDER BY seq`)
}

func (r *TreasureStore) queryTreasures(ctx context.Context, query string, args ...any) ([]economy.Treasure, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []economy.Treasure
	for rows.Next() {
		t, err := scanTreasure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateUnique relies on the name unique index: the insert either claims
// the name or reports the singleton violation, with no read-then-write gap.
func (r *TreasureStore) CreateUnique(ctx context.Context, t *economy.Treasure) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO treasures (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING seq
	`, t.ID.String(), t.Name, t.OwnerID.String()).Scan(&t.Sequence)
	if isUniqueViolation(err) {
		return economy.ErrAlreadyExists
	}
	return err
}

func (r *TreasureStore) Transfer(ctx context.Context, id, from, to uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE treasures
		SET owner_id = $3
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
