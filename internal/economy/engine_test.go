package economy_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"barkeep/internal/economy"
	"barkeep/internal/narrate"
	"barkeep/internal/store/memstore"
)

// scriptedRandomizer replays a fixed sequence of draws so every outcome
// branch can be forced.
type scriptedRandomizer struct {
	draws []bool
	i     int
}

func (r *scriptedRandomizer) next() bool {
	if r.i >= len(r.draws) {
		return false
	}
	v := r.draws[r.i]
	r.i++
	return v
}

func (r *scriptedRandomizer) OneChanceIn(int) bool { return r.next() }
func (r *scriptedRandomizer) OneInTen() bool       { return r.next() }
func (r *scriptedRandomizer) Intn(int) int         { return 0 }

type fixture struct {
	engine *economy.Engine
	repos  economy.Repos
	rng    *scriptedRandomizer
	now    time.Time
}

func newFixture(t *testing.T, draws ...bool) *fixture {
	t.Helper()
	rng := &scriptedRandomizer{draws: draws}
	narrator, err := narrate.New(rng)
	if err != nil {
		t.Fatalf("narrator: %v", err)
	}
	repos := memstore.New().Repos()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine := economy.NewEngine(repos, rng, narrator, nil, economy.Config{
		Reserved: []string{"barkeep"},
		Now:      func() time.Time { return now },
	})
	return &fixture{engine: engine, repos: repos, rng: rng, now: now}
}

func (f *fixture) actor(t *testing.T, name string) economy.Actor {
	t.Helper()
	a, err := f.engine.EnsureActor(context.Background(), name, "")
	if err != nil {
		t.Fatalf("ensure actor %s: %v", name, err)
	}
	return a
}

func (f *fixture) item(t *testing.T, name string, owner economy.Actor, value int) economy.Item {
	t.Helper()
	it, err := f.engine.Ledger().CreateItem(context.Background(), name, owner.ID, owner.ID)
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	if value > 1 {
		it.PointValue = value
		if err := f.repos.Items.Save(context.Background(), it); err != nil {
			t.Fatalf("save item: %v", err)
		}
	}
	return it
}

func TestStealSuccess(t *testing.T) {
	f := newFixture(t, true) // forced success
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	lamp := f.item(t, "lamp", alice, 1)

	res, err := f.engine.Steal(ctx, bob, "lamp")
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if !res.Mutated || res.ScoreDelta != 1 {
		t.Fatalf("result = %+v, want mutated with +1", res)
	}

	got, err := f.repos.Items.ByID(ctx, lamp.ID)
	if err != nil {
		t.Fatalf("reload lamp: %v", err)
	}
	if got.OwnerID != bob.ID {
		t.Fatalf("lamp owner = %v, want bob", got.OwnerID)
	}
	if got.TheftAttempts != 0 {
		t.Fatalf("theft attempts = %d, want 0 after transfer", got.TheftAttempts)
	}

	bobNow, err := f.repos.Actors.ByID(ctx, bob.ID)
	if err != nil {
		t.Fatalf("reload bob: %v", err)
	}
	if !bobNow.LastTheft.Equal(f.now) {
		t.Fatalf("last theft = %v, want %v", bobNow.LastTheft, f.now)
	}
	if bobNow.Score != bob.Score+1 {
		t.Fatalf("score = %d, want %d", bobNow.Score, bob.Score+1)
	}
}

func TestStealFailure(t *testing.T) {
	f := newFixture(t, false) // forced failure
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	lamp := f.item(t, "lamp", alice, 1)

	res, err := f.engine.Steal(ctx, bob, "lamp")
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.ScoreDelta != -1 {
		t.Fatalf("result = %+v, want -1 penalty", res)
	}

	got, _ := f.repos.Items.ByID(ctx, lamp.ID)
	if got.OwnerID != alice.ID {
		t.Fatalf("lamp owner changed on failed steal")
	}
	if got.TheftAttempts != 1 {
		t.Fatalf("theft attempts = %d, want 1", got.TheftAttempts)
	}

	bobNow, _ := f.repos.Actors.ByID(ctx, bob.ID)
	if !bobNow.LastTheft.Equal(f.now) {
		t.Fatalf("failed attempt must still burn the cooldown")
	}
	if bobNow.Score != bob.Score-1 {
		t.Fatalf("score = %d, want penalty applied", bobNow.Score)
	}
}

// transferItems moves the target item to another owner right after it is
// read, reproducing a rival's steal landing between the read and the
// failure-branch write.
type transferItems struct {
	economy.ItemRepo
	target uuid.UUID
	from   uuid.UUID
	to     uuid.UUID
	fired  bool
}

func (r *transferItems) ByID(ctx context.Context, id uuid.UUID) (economy.Item, error) {
	it, err := r.ItemRepo.ByID(ctx, id)
	if err == nil && id == r.target && !r.fired {
		r.fired = true
		if terr := r.ItemRepo.Transfer(ctx, r.target, r.from, r.to); terr != nil {
			return economy.Item{}, terr
		}
	}
	return it, err
}

func TestStealFailureKeepsConcurrentTransfer(t *testing.T) {
	f := newFixture(t, false) // forced failure
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	carol := f.actor(t, "carol")
	lamp := f.item(t, "lamp", alice, 1)

	// Carol's steal completes while bob's attempt holds a stale row.
	f.engine = economy.NewEngine(economy.Repos{
		Actors: f.repos.Actors,
		Items: &transferItems{
			ItemRepo: f.repos.Items,
			target:   lamp.ID,
			from:     alice.ID,
			to:       carol.ID,
		},
		Beverages: f.repos.Beverages,
		Treasures: f.repos.Treasures,
	}, f.rng, f.engine.Narrator(), nil, economy.Config{
		Reserved: []string{"barkeep"},
		Now:      func() time.Time { return f.now },
	})

	if _, err := f.engine.Steal(ctx, bob, "lamp"); err != nil {
		t.Fatalf("steal: %v", err)
	}
	got, err := f.repos.Items.ByID(ctx, lamp.ID)
	if err != nil {
		t.Fatalf("reload lamp: %v", err)
	}
	if got.OwnerID != carol.ID {
		t.Fatalf("bob's failed attempt reverted carol's transfer: owner = %v", got.OwnerID)
	}
	if got.TheftAttempts != 1 {
		t.Fatalf("theft attempts = %d, want 1", got.TheftAttempts)
	}
}

func TestStealGatedByCooldown(t *testing.T) {
	f := newFixture(t, true, true)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	f.item(t, "lamp", alice, 1)
	f.item(t, "spoon", alice, 1)

	if _, err := f.engine.Steal(ctx, bob, "lamp"); err != nil {
		t.Fatalf("first steal: %v", err)
	}
	bob, _ = f.repos.Actors.ByID(ctx, bob.ID)

	res, err := f.engine.Steal(ctx, bob, "spoon")
	if err != nil {
		t.Fatalf("second steal: %v", err)
	}
	if res.Mutated {
		t.Fatalf("second steal inside the window mutated: %+v", res)
	}
	if !strings.Contains(res.Message, "luck") {
		t.Fatalf("expected pressing-luck outcome, got %q", res.Message)
	}
	spoon, _ := f.repos.Items.ByName(ctx, "spoon")
	if spoon.OwnerID != alice.ID {
		t.Fatalf("gated steal moved the item")
	}
}

func TestStealOwnItem(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	f.item(t, "lamp", bob, 1)

	res, err := f.engine.Steal(ctx, bob, "lamp")
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.Mutated {
		t.Fatalf("stealing your own item mutated state")
	}
	bobNow, _ := f.repos.Actors.ByID(ctx, bob.ID)
	if !bobNow.LastTheft.IsZero() {
		t.Fatalf("self-steal must not burn the cooldown")
	}
}

func TestStealNothingResolved(t *testing.T) {
	f := newFixture(t, true)
	res, err := f.engine.Steal(context.Background(), f.actor(t, "bob"), "the moon")
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.Mutated || res.ScoreDelta != 0 {
		t.Fatalf("unresolved steal mutated: %+v", res)
	}
}

func TestStealValuableMentionsPoints(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	alice := f.actor(t, "alice")
	bob := f.actor(t, "bob")
	f.item(t, "crown", alice, 7)

	res, err := f.engine.Steal(ctx, bob, "crown")
	if err != nil {
		t.Fatalf("steal: %v", err)
	}
	if res.ScoreDelta != 7 {
		t.Fatalf("score delta = %d, want item value 7", res.ScoreDelta)
	}
	if !strings.Contains(res.Message, "7") {
		t.Fatalf("valuable steal message should name the value: %q", res.Message)
	}
}

func TestForgeSingleton(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.actor(t, "operator")

	res, err := f.engine.Forge(ctx, op, "ring", true)
	if err != nil || !res.Mutated {
		t.Fatalf("first forge: res=%+v err=%v", res, err)
	}
	res, err = f.engine.Forge(ctx, op, "ring", true)
	if err != nil {
		t.Fatalf("second forge: %v", err)
	}
	if res.Mutated {
		t.Fatalf("second forge of the same name mutated state")
	}
	all, _ := f.repos.Treasures.List(ctx)
	count := 0
	for _, tr := range all {
		if tr.Name == "ring" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("treasure count = %d, want exactly 1", count)
	}
}

func TestForgeRequiresOperator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	res, err := f.engine.Forge(ctx, bob, "ring", false)
	if err != nil {
		t.Fatalf("forge: %v", err)
	}
	if res.Mutated {
		t.Fatalf("non-operator forge mutated state")
	}
	if _, err := f.repos.Treasures.ByName(ctx, "ring"); err == nil {
		t.Fatalf("treasure created without permission")
	}
}

func TestBrewCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	for _, name := range []string{"stout", "porter", "mead", "cider"} {
		res, err := f.engine.Brew(ctx, bob, name)
		if err != nil || !res.Mutated {
			t.Fatalf("brew %s: res=%+v err=%v", name, res, err)
		}
	}
	res, err := f.engine.Brew(ctx, bob, "lager")
	if err != nil {
		t.Fatalf("brew over capacity: %v", err)
	}
	if res.Mutated {
		t.Fatalf("brew past capacity mutated state")
	}

	// Dropping below capacity frees a slot immediately.
	if _, err := f.engine.Drink(ctx, bob, "stout"); err != nil {
		t.Fatalf("drink: %v", err)
	}
	res, err = f.engine.Brew(ctx, bob, "lager")
	if err != nil || !res.Mutated {
		t.Fatalf("brew after freeing a slot: res=%+v err=%v", res, err)
	}
}

func TestBrewDuplicateNamePerOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	eve := f.actor(t, "eve")

	if res, err := f.engine.Brew(ctx, bob, "stout"); err != nil || !res.Mutated {
		t.Fatalf("brew: res=%+v err=%v", res, err)
	}
	res, err := f.engine.Brew(ctx, bob, "stout")
	if err != nil {
		t.Fatalf("duplicate brew: %v", err)
	}
	if res.Mutated {
		t.Fatalf("duplicate name for the same owner mutated state")
	}
	// The duplicate check is scoped per actor, not global.
	if res, err := f.engine.Brew(ctx, eve, "stout"); err != nil || !res.Mutated {
		t.Fatalf("other actor brewing same name: res=%+v err=%v", res, err)
	}
}

func TestGiveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	alice := f.actor(t, "alice")
	lamp := f.item(t, "lamp", bob, 1)

	res, err := f.engine.Give(ctx, bob, "lamp", "alice")
	if err != nil || !res.Mutated {
		t.Fatalf("give: res=%+v err=%v", res, err)
	}
	got, _ := f.repos.Items.ByID(ctx, lamp.ID)
	if got.OwnerID != alice.ID {
		t.Fatalf("lamp owner = %v, want alice", got.OwnerID)
	}
}

func TestGiveUnknownRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	f.item(t, "lamp", bob, 1)

	res, err := f.engine.Give(ctx, bob, "lamp", "zorp")
	if err != nil {
		t.Fatalf("give: %v", err)
	}
	if res.Mutated {
		t.Fatalf("give to unknown recipient mutated state")
	}
}

func TestGiveConjuresEphemeralItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	alice := f.actor(t, "alice")

	res, err := f.engine.Give(ctx, bob, "warm fuzzy feeling", "alice")
	if err != nil || !res.Mutated {
		t.Fatalf("give: res=%+v err=%v", res, err)
	}
	items, _ := f.repos.Items.ByOwner(ctx, alice.ID)
	if len(items) != 1 || !items[0].Ephemeral {
		t.Fatalf("expected one ephemeral item for alice, got %+v", items)
	}
	if items[0].Name != "warm fuzzy feeling" {
		t.Fatalf("ephemeral item name = %q", items[0].Name)
	}
}

func TestOwnershipRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "abe")
	b := f.actor(t, "bea")
	lamp := f.item(t, "lamp", a, 1)

	if res, err := f.engine.Give(ctx, a, "lamp", "bea"); err != nil || !res.Mutated {
		t.Fatalf("give a->b: res=%+v err=%v", res, err)
	}
	if res, err := f.engine.Give(ctx, b, "lamp", "abe"); err != nil || !res.Mutated {
		t.Fatalf("give b->a: res=%+v err=%v", res, err)
	}

	got, _ := f.repos.Items.ByID(ctx, lamp.ID)
	if got.OwnerID != a.ID {
		t.Fatalf("round trip owner = %v, want abe", got.OwnerID)
	}
	// Gifting carries no scoring rules; the round trip leaves scores alone.
	aNow, _ := f.repos.Actors.ByID(ctx, a.ID)
	bNow, _ := f.repos.Actors.ByID(ctx, b.ID)
	if aNow.Score != 0 || bNow.Score != 0 {
		t.Fatalf("round trip changed scores: %d, %d", aNow.Score, bNow.Score)
	}
}

func TestGiveTreasure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	op := f.actor(t, "operator")
	alice := f.actor(t, "alice")

	if res, err := f.engine.Forge(ctx, op, "one ring", true); err != nil || !res.Mutated {
		t.Fatalf("forge: res=%+v err=%v", res, err)
	}
	res, err := f.engine.GiveTreasure(ctx, op, "one ring", "alice")
	if err != nil || !res.Mutated {
		t.Fatalf("give treasure: res=%+v err=%v", res, err)
	}
	tr, _ := f.repos.Treasures.ByName(ctx, "one ring")
	if tr.OwnerID != alice.ID {
		t.Fatalf("treasure owner = %v, want alice", tr.OwnerID)
	}

	// A non-holder cannot pass it along.
	res, err = f.engine.GiveTreasure(ctx, op, "one ring", "alice")
	if err != nil {
		t.Fatalf("non-holder give: %v", err)
	}
	if res.Mutated {
		t.Fatalf("non-holder transfer mutated state")
	}
}

func TestPlayCooldownAndJackpot(t *testing.T) {
	f := newFixture(t, true) // forced jackpot
	ctx := context.Background()
	bob := f.actor(t, "bob")

	res, err := f.engine.Play(ctx, bob)
	if err != nil || !res.Mutated {
		t.Fatalf("play: res=%+v err=%v", res, err)
	}
	if res.ScoreDelta != 5 {
		t.Fatalf("jackpot delta = %d, want 5", res.ScoreDelta)
	}

	bob, _ = f.repos.Actors.ByID(ctx, bob.ID)
	res, err = f.engine.Play(ctx, bob)
	if err != nil {
		t.Fatalf("second play: %v", err)
	}
	if res.Mutated {
		t.Fatalf("play inside the window mutated state")
	}
}

func TestEnsureActorFindOrCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.EnsureActor(ctx, "Mallory", "D123")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Name != "mallory" {
		t.Fatalf("name = %q, want lowercased", first.Name)
	}
	second, err := f.engine.EnsureActor(ctx, "Mallory", "D123")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second ensure created a new actor")
	}
}

func TestExpiredFiltersClearOnEnsure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	if err := f.engine.ApplyFilter(ctx, bob, "drunk"); err != nil {
		t.Fatalf("apply filter: %v", err)
	}
	bob, _ = f.repos.Actors.ByID(ctx, bob.ID)
	if !bob.Drunk() {
		t.Fatalf("filter not applied")
	}

	// Backdate the application past the expiry window.
	bob.FilteredAt = f.now.Add(-2 * time.Hour)
	if err := f.repos.Actors.Save(ctx, bob); err != nil {
		t.Fatalf("save: %v", err)
	}
	bob, err := f.engine.EnsureActor(ctx, "bob", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if bob.Drunk() {
		t.Fatalf("expired filter survived ensure")
	}
}

func TestRecordAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")
	eve := f.actor(t, "eve")

	if err := f.engine.RecordAlias(ctx, bob, "Bobby"); err != nil {
		t.Fatalf("record alias: %v", err)
	}
	got, err := f.repos.Actors.ByAlias(ctx, "bobby")
	if err != nil || got.ID != bob.ID {
		t.Fatalf("ByAlias = %+v err=%v, want bob", got, err)
	}

	// A nick claimed by another actor is skipped without error.
	if err := f.engine.RecordAlias(ctx, eve, "bobby"); err != nil {
		t.Fatalf("record claimed alias: %v", err)
	}
	eveNow, _ := f.repos.Actors.ByID(ctx, eve.ID)
	if len(eveNow.Aliases) != 0 {
		t.Fatalf("eve took a claimed alias: %v", eveNow.Aliases)
	}
	// So is another actor's primary name.
	if err := f.engine.RecordAlias(ctx, bob, "eve"); err != nil {
		t.Fatalf("record primary name as alias: %v", err)
	}
	bobNow, _ := f.repos.Actors.ByID(ctx, bob.ID)
	if len(bobNow.Aliases) != 1 || bobNow.Aliases[0] != "bobby" {
		t.Fatalf("bob aliases = %v, want only bobby", bobNow.Aliases)
	}
}

func TestDrinkAppliesDrunkFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	if res, err := f.engine.Brew(ctx, bob, "stout"); err != nil || !res.Mutated {
		t.Fatalf("brew: res=%+v err=%v", res, err)
	}
	res, err := f.engine.Drink(ctx, bob, "stout")
	if err != nil || !res.Mutated {
		t.Fatalf("drink: res=%+v err=%v", res, err)
	}
	bobNow, _ := f.repos.Actors.ByID(ctx, bob.ID)
	if !bobNow.Drunk() {
		t.Fatalf("drinking did not apply the drunk filter: %v", bobNow.Filters)
	}
	if !bobNow.FilteredAt.Equal(f.now) {
		t.Fatalf("filter timestamp = %v, want %v", bobNow.FilteredAt, f.now)
	}
}

func TestBrewDuplicateOutranksCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	for _, name := range []string{"stout", "porter", "mead", "cider"} {
		if res, err := f.engine.Brew(ctx, bob, name); err != nil || !res.Mutated {
			t.Fatalf("brew %s: res=%+v err=%v", name, res, err)
		}
	}
	// At capacity, a duplicate name still narrates as a duplicate.
	res, err := f.engine.Brew(ctx, bob, "stout")
	if err != nil {
		t.Fatalf("duplicate brew: %v", err)
	}
	if res.Mutated || !strings.Contains(res.Message, "only one") {
		t.Fatalf("at-capacity duplicate = %+v, want the duplicate outcome", res)
	}
}

func TestInventoryFormatting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.actor(t, "bob")

	line, err := f.engine.Inventory(ctx, bob)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if !strings.Contains(line, "isn't carrying anything") {
		t.Fatalf("empty inventory line = %q", line)
	}

	f.item(t, "lamp", bob, 1)
	if _, err := f.engine.Brew(ctx, bob, "stout"); err != nil {
		t.Fatalf("brew: %v", err)
	}
	line, err = f.engine.Inventory(ctx, bob)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if !strings.Contains(line, "lamp") || !strings.Contains(line, "stout") {
		t.Fatalf("inventory line = %q", line)
	}
}
