package economy

import (
	"context"

	"github.com/google/uuid"
)

// Repository contracts. Lookups return ErrNotFound when nothing matches.
// Mutating operations are atomic check-and-update against the backing
// store, keyed by entity identity; read-then-write races surface as
// ErrConflict / ErrAlreadyExists / ErrCapacityExceeded.

type ActorRepo interface {
	ByID(ctx context.Context, id uuid.UUID) (Actor, error)
	ByName(ctx context.Context, name string) (Actor, error)
	ByAlias(ctx context.Context, alias string) (Actor, error)
	ByPlatformID(ctx context.Context, platformID string) (Actor, error)
	List(ctx context.Context) ([]Actor, error)
	TopByScore(ctx context.Context, limit int) ([]Actor, error)
	Create(ctx context.Context, a *Actor) error
	// AddAlias attaches an alias atomically; fails with ErrAlreadyExists
	// when any actor (this one included) already claims it as a primary
	// name or alias.
	AddAlias(ctx context.Context, id uuid.UUID, alias string) error
	Save(ctx context.Context, a Actor) error
}

type ItemRepo interface {
	ByID(ctx context.Context, id uuid.UUID) (Item, error)
	ByName(ctx context.Context, name string) (Item, error)
	ByOwner(ctx context.Context, owner uuid.UUID) ([]Item, error)
	CountByOwner(ctx context.Context, owner uuid.UUID) (int, error)
	List(ctx context.Context) ([]Item, error)
	// CreateOwned fails with ErrCapacityExceeded when the owner already
	// holds capacity items. A capacity of zero skips the check (unowned
	// ephemeral items).
	CreateOwned(ctx context.Context, it *Item, capacity int) error
	// Transfer sets the owner from->to and clears the theft-attempt
	// counter; fails with ErrConflict when from no longer owns the item.
	Transfer(ctx context.Context, id, from, to uuid.UUID) error
	// IncrementTheftAttempts bumps the counter in place, leaving every
	// other column untouched even when the row changed since it was read.
	IncrementTheftAttempts(ctx context.Context, id uuid.UUID) error
	Save(ctx context.Context, it Item) error
}

type BeverageRepo interface {
	ByID(ctx context.Context, id uuid.UUID) (Beverage, error)
	ByName(ctx context.Context, name string) (Beverage, error)
	ByOwner(ctx context.Context, owner uuid.UUID) ([]Beverage, error)
	ByOwnerAndName(ctx context.Context, owner uuid.UUID, name string) (Beverage, error)
	CountByOwner(ctx context.Context, owner uuid.UUID) (int, error)
	List(ctx context.Context) ([]Beverage, error)
	// CreateOwned fails with ErrCapacityExceeded at the owner's limit and
	// ErrAlreadyExists when the owner already has a beverage of that name.
	CreateOwned(ctx context.Context, b *Beverage, capacity int) error
	Transfer(ctx context.Context, id, from, to uuid.UUID) error
	// Delete removes a consumed beverage; fails with ErrConflict when the
	// expected owner no longer holds it.
	Delete(ctx context.Context, id, owner uuid.UUID) error
}

type TreasureRepo interface {
	ByID(ctx context.Context, id uuid.UUID) (Treasure, error)
	ByName(ctx context.Context, name string) (Treasure, error)
	ByOwner(ctx context.Context, owner uuid.UUID) ([]Treasure, error)
	List(ctx context.Context) ([]Treasure, error)
	// CreateUnique fails with ErrAlreadyExists when any treasure of that
	// name exists, regardless of owner.
	CreateUnique(ctx context.Context, t *Treasure) error
	Transfer(ctx context.Context, id, from, to uuid.UUID) error
}

// Repos bundles the per-kind repositories the engine needs.
type Repos struct {
	Actors    ActorRepo
	Items     ItemRepo
	Beverages BeverageRepo
	Treasures TreasureRepo
}
