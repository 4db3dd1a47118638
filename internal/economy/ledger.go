package economy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Ledger is the authoritative record of ownership. Every operation is a
// single atomic check-and-update against the backing store; a release and
// re-assignment during a steal is visible only as one transfer.
type Ledger struct {
	items        ItemRepo
	beverages    BeverageRepo
	treasures    TreasureRepo
	maxItems     int
	maxBeverages int
}

func NewLedger(items ItemRepo, beverages BeverageRepo, treasures TreasureRepo, maxItems, maxBeverages int) *Ledger {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if maxBeverages <= 0 {
		maxBeverages = DefaultMaxBeverages
	}
	return &Ledger{
		items:        items,
		beverages:    beverages,
		treasures:    treasures,
		maxItems:     maxItems,
		maxBeverages: maxBeverages,
	}
}

// TransferItem moves an item between owners. from may be uuid.Nil for an
// unowned item. Fails with ErrConflict when from no longer owns it.
func (l *Ledger) TransferItem(ctx context.Context, id, from, to uuid.UUID) error {
	if err := l.items.Transfer(ctx, id, from, to); err != nil {
		return fmt.Errorf("transfer item %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) TransferBeverage(ctx context.Context, id, from, to uuid.UUID) error {
	if err := l.beverages.Transfer(ctx, id, from, to); err != nil {
		return fmt.Errorf("transfer beverage %s: %w", id, err)
	}
	return nil
}

func (l *Ledger) TransferTreasure(ctx context.Context, id, from, to uuid.UUID) error {
	if err := l.treasures.Transfer(ctx, id, from, to); err != nil {
		return fmt.Errorf("transfer treasure %s: %w", id, err)
	}
	return nil
}

// CreateTreasure enforces the global singleton invariant: at most one
// treasure of a given name, ever, regardless of owner.
func (l *Ledger) CreateTreasure(ctx context.Context, name string, owner uuid.UUID) (Treasure, error) {
	t := NewTreasure(name, owner)
	if t.Name == "" {
		return Treasure{}, ErrNotFound
	}
	if err := l.treasures.CreateUnique(ctx, &t); err != nil {
		return Treasure{}, err
	}
	return t, nil
}

// CreateItem creates an owned item subject to the owner's capacity.
func (l *Ledger) CreateItem(ctx context.Context, name string, owner, creator uuid.UUID) (Item, error) {
	it := NewItem(name, owner, creator)
	if it.Name == "" {
		return Item{}, ErrNotFound
	}
	if err := l.items.CreateOwned(ctx, &it, l.maxItems); err != nil {
		return Item{}, err
	}
	return it, nil
}

// CreateEphemeralItem creates an unowned placeholder item, used when a
// transfer cannot resolve a concrete object. Capacity does not apply.
func (l *Ledger) CreateEphemeralItem(ctx context.Context, name string, creator uuid.UUID) (Item, error) {
	it := NewItem(name, uuid.Nil, creator)
	it.Ephemeral = true
	if it.Name == "" {
		it.Name = "mysterious parcel"
	}
	if err := l.items.CreateOwned(ctx, &it, 0); err != nil {
		return Item{}, err
	}
	return it, nil
}

// CreateBeverage creates a beverage subject to the owner's capacity and the
// per-owner duplicate-name check.
func (l *Ledger) CreateBeverage(ctx context.Context, name string, owner, brewer uuid.UUID) (Beverage, error) {
	b := NewBeverage(name, owner, brewer)
	if b.Name == "" {
		return Beverage{}, ErrNotFound
	}
	if err := l.beverages.CreateOwned(ctx, &b, l.maxBeverages); err != nil {
		return Beverage{}, err
	}
	return b, nil
}

// ConsumeBeverage removes a beverage held by owner.
func (l *Ledger) ConsumeBeverage(ctx context.Context, id, owner uuid.UUID) error {
	if err := l.beverages.Delete(ctx, id, owner); err != nil {
		return fmt.Errorf("consume beverage %s: %w", id, err)
	}
	return nil
}
