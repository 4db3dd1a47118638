package economy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"barkeep/internal/economy"
	"barkeep/internal/store/memstore"
)

func newLedger(t *testing.T) (*economy.Ledger, economy.Repos) {
	t.Helper()
	repos := memstore.New().Repos()
	return economy.NewLedger(repos.Items, repos.Beverages, repos.Treasures, 0, 0), repos
}

func mustActor(t *testing.T, repos economy.Repos, name string) economy.Actor {
	t.Helper()
	a := economy.NewActor(name, "")
	if err := repos.Actors.Create(context.Background(), &a); err != nil {
		t.Fatalf("create actor %s: %v", name, err)
	}
	return a
}

func TestTransferItemConflict(t *testing.T) {
	ledger, repos := newLedger(t)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")
	b := mustActor(t, repos, "bea")
	c := mustActor(t, repos, "cal")

	it, err := ledger.CreateItem(ctx, "lamp", a.ID, a.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := ledger.TransferItem(ctx, it.ID, a.ID, b.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	// A transfer predicated on a stale owner must not move the item.
	err = ledger.TransferItem(ctx, it.ID, a.ID, c.ID)
	if !errors.Is(err, economy.ErrConflict) {
		t.Fatalf("stale transfer error = %v, want ErrConflict", err)
	}
	got, _ := repos.Items.ByID(ctx, it.ID)
	if got.OwnerID != b.ID {
		t.Fatalf("owner = %v, want bea", got.OwnerID)
	}
}

func TestTransferClearsTheftAttempts(t *testing.T) {
	ledger, repos := newLedger(t)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")
	b := mustActor(t, repos, "bea")

	it, err := ledger.CreateItem(ctx, "lamp", a.ID, a.ID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	it.TheftAttempts = 3
	if err := repos.Items.Save(ctx, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := ledger.TransferItem(ctx, it.ID, a.ID, b.ID); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, _ := repos.Items.ByID(ctx, it.ID)
	if got.TheftAttempts != 0 {
		t.Fatalf("theft attempts = %d, want reset on transfer", got.TheftAttempts)
	}
}

func TestCreateItemCapacity(t *testing.T) {
	repos := memstore.New().Repos()
	ledger := economy.NewLedger(repos.Items, repos.Beverages, repos.Treasures, 2, 0)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")

	for _, name := range []string{"lamp", "spoon"} {
		if _, err := ledger.CreateItem(ctx, name, a.ID, a.ID); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	_, err := ledger.CreateItem(ctx, "kettle", a.ID, a.ID)
	if !errors.Is(err, economy.ErrCapacityExceeded) {
		t.Fatalf("create past capacity error = %v, want ErrCapacityExceeded", err)
	}
}

func TestCreateEphemeralItemIgnoresCapacity(t *testing.T) {
	repos := memstore.New().Repos()
	ledger := economy.NewLedger(repos.Items, repos.Beverages, repos.Treasures, 1, 0)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")

	if _, err := ledger.CreateItem(ctx, "lamp", a.ID, a.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	it, err := ledger.CreateEphemeralItem(ctx, "", a.ID)
	if err != nil {
		t.Fatalf("ephemeral create: %v", err)
	}
	if !it.Ephemeral || it.OwnerID != uuid.Nil {
		t.Fatalf("ephemeral item = %+v, want unowned placeholder", it)
	}
	if it.Name != "mysterious parcel" {
		t.Fatalf("blank name fallback = %q", it.Name)
	}
}

func TestCreateTreasureSingleton(t *testing.T) {
	ledger, repos := newLedger(t)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")
	b := mustActor(t, repos, "bea")

	if _, err := ledger.CreateTreasure(ctx, "one ring", a.ID); err != nil {
		t.Fatalf("create: %v", err)
	}
	// The invariant is global: a different creator changes nothing.
	_, err := ledger.CreateTreasure(ctx, "one ring", b.ID)
	if !errors.Is(err, economy.ErrAlreadyExists) {
		t.Fatalf("duplicate treasure error = %v, want ErrAlreadyExists", err)
	}
	all, _ := repos.Treasures.List(ctx)
	if len(all) != 1 {
		t.Fatalf("treasure count = %d, want 1", len(all))
	}
}

func TestConsumeBeverage(t *testing.T) {
	ledger, repos := newLedger(t)
	ctx := context.Background()
	a := mustActor(t, repos, "abe")
	b := mustActor(t, repos, "bea")

	bev, err := ledger.CreateBeverage(ctx, "stout", a.ID, a.ID)
	if err != nil {
		t.Fatalf("brew: %v", err)
	}
	// Consuming with the wrong owner must not touch the row.
	if err := ledger.ConsumeBeverage(ctx, bev.ID, b.ID); !errors.Is(err, economy.ErrConflict) {
		t.Fatalf("wrong-owner consume error = %v, want ErrConflict", err)
	}
	if err := ledger.ConsumeBeverage(ctx, bev.ID, a.ID); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := repos.Beverages.ByID(ctx, bev.ID); !errors.Is(err, economy.ErrNotFound) {
		t.Fatalf("lookup after consume = %v, want ErrNotFound", err)
	}
}
