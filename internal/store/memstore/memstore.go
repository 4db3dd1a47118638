// Package memstore is the in-memory repository implementation, used by
// tests and the BARKEEP_STORE=memory development mode. A single mutex
// makes every operation an atomic check-and-update.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"barkeep/internal/economy"
)

type Store struct {
	mu        sync.Mutex
	seq       int64
	actors    map[uuid.UUID]economy.Actor
	items     map[uuid.UUID]economy.Item
	beverages map[uuid.UUID]economy.Beverage
	treasures map[uuid.UUID]economy.Treasure
}

func New() *Store {
	return &Store{
		actors:    make(map[uuid.UUID]economy.Actor),
		items:     make(map[uuid.UUID]economy.Item),
		beverages: make(map[uuid.UUID]economy.Beverage),
		treasures: make(map[uuid.UUID]economy.Treasure),
	}
}

// Repos bundles the store's repository views.
func (s *Store) Repos() economy.Repos {
	return economy.Repos{
		Actors:    &ActorStore{s},
		Items:     &ItemStore{s},
		Beverages: &BeverageStore{s},
		Treasures: &TreasureStore{s},
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func norm(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

type ActorStore struct{ s *Store }

func (r *ActorStore) ByID(_ context.Context, id uuid.UUID) (economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.actors[id]
	if !ok {
		return economy.Actor{}, economy.ErrNotFound
	}
	return a, nil
}

func (r *ActorStore) ByName(_ context.Context, name string) (economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.findLocked(func(a economy.Actor) bool { return a.Name == norm(name) })
}

func (r *ActorStore) ByAlias(_ context.Context, alias string) (economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.findLocked(func(a economy.Actor) bool {
		for _, al := range a.Aliases {
			if al == norm(alias) {
				return true
			}
		}
		return false
	})
}

func (r *ActorStore) ByPlatformID(_ context.Context, platformID string) (economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if strings.TrimSpace(platformID) == "" {
		return economy.Actor{}, economy.ErrNotFound
	}
	return r.findLocked(func(a economy.Actor) bool { return a.PlatformID == platformID })
}

func (r *ActorStore) findLocked(match func(economy.Actor) bool) (economy.Actor, error) {
	best, found := economy.Actor{}, false
	for _, a := range r.s.actors {
		if match(a) && (!found || a.Sequence < best.Sequence) {
			best, found = a, true
		}
	}
	if !found {
		return economy.Actor{}, economy.ErrNotFound
	}
	return best, nil
}

func (r *ActorStore) List(_ context.Context) ([]economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]economy.Actor, 0, len(r.s.actors))
	for _, a := range r.s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *ActorStore) TopByScore(_ context.Context, limit int) ([]economy.Actor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]economy.Actor, 0, len(r.s.actors))
	for _, a := range r.s.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Sequence < out[j].Sequence
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActorStore) Create(_ context.Context, a *economy.Actor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.actors {
		if existing.Name == a.Name {
			return economy.ErrAlreadyExists
		}
		for _, al := range existing.Aliases {
			if al == a.Name {
				return economy.ErrAlreadyExists
			}
		}
	}
	a.Sequence = r.s.nextSeq()
	r.s.actors[a.ID] = *a
	return nil
}

func (r *ActorStore) AddAlias(_ context.Context, id uuid.UUID, alias string) error {
	alias = norm(alias)
	if alias == "" {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.actors[id]
	if !ok {
		return economy.ErrNotFound
	}
	for _, existing := range r.s.actors {
		if existing.Name == alias {
			return economy.ErrAlreadyExists
		}
		for _, al := range existing.Aliases {
			if al == alias {
				return economy.ErrAlreadyExists
			}
		}
	}
	a.Aliases = append(a.Aliases, alias)
	r.s.actors[id] = a
	return nil
}

func (r *ActorStore) Save(_ context.Context, a economy.Actor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.actors[a.ID]; !ok {
		return economy.ErrNotFound
	}
	r.s.actors[a.ID] = a
	return nil
}

type ItemStore struct{ s *Store }

func (r *ItemStore) ByID(_ context.Context, id uuid.UUID) (economy.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return economy.Item{}, economy.ErrNotFound
	}
	return it, nil
}

func (r *ItemStore) ByName(_ context.Context, name string) (economy.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	best, found := economy.Item{}, false
	for _, it := range r.s.items {
		if it.Name == norm(name) && (!found || it.Sequence > best.Sequence) {
			best, found = it, true
		}
	}
	if !found {
		return economy.Item{}, economy.ErrNotFound
	}
	return best, nil
}

func (r *ItemStore) ByOwner(_ context.Context, owner uuid.UUID) ([]economy.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []economy.Item
	for _, it := range r.s.items {
		if it.OwnerID == owner {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *ItemStore) CountByOwner(_ context.Context, owner uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.countLocked(owner), nil
}

func (r *ItemStore) countLocked(owner uuid.UUID) int {
	n := 0
	for _, it := range r.s.items {
		if it.OwnerID == owner {
			n++
		}
	}
	return n
}

func (r *ItemStore) List(_ context.Context) ([]economy.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]economy.Item, 0, len(r.s.items))
	for _, it := range r.s.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *ItemStore) CreateOwned(_ context.Context, it *economy.Item, capacity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if capacity > 0 && it.OwnerID != uuid.Nil && r.countLocked(it.OwnerID) >= capacity {
		return economy.ErrCapacityExceeded
	}
	it.Sequence = r.s.nextSeq()
	r.s.items[it.ID] = *it
	return nil
}

func (r *ItemStore) Transfer(_ context.Context, id, from, to uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return economy.ErrNotFound
	}
	if it.OwnerID != from {
		return economy.ErrConflict
	}
	it.OwnerID = to
	it.TheftAttempts = 0
	r.s.items[id] = it
	return nil
}

func (r *ItemStore) IncrementTheftAttempts(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.items[id]
	if !ok {
		return economy.ErrNotFound
	}
	it.TheftAttempts++
	r.s.items[id] = it
	return nil
}

func (r *ItemStore) Save(_ context.Context, it economy.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.items[it.ID]; !ok {
		return economy.ErrNotFound
	}
	r.s.items[it.ID] = it
	return nil
}

type BeverageStore struct{ s *Store }

func (r *BeverageStore) ByID(_ context.Context, id uuid.UUID) (economy.Beverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beverages[id]
	if !ok {
		return economy.Beverage{}, economy.ErrNotFound
	}
	return b, nil
}

func (r *BeverageStore) ByName(_ context.Context, name string) (economy.Beverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	best, found := economy.Beverage{}, false
	for _, b := range r.s.beverages {
		if b.Name == norm(name) && (!found || b.Sequence > best.Sequence) {
			best, found = b, true
		}
	}
	if !found {
		return economy.Beverage{}, economy.ErrNotFound
	}
	return best, nil
}

func (r *BeverageStore) ByOwner(_ context.Context, owner uuid.UUID) ([]economy.Beverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []economy.Beverage
	for _, b := range r.s.beverages {
		if b.OwnerID == owner {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *BeverageStore) ByOwnerAndName(_ context.Context, owner uuid.UUID, name string) (economy.Beverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.beverages {
		if b.OwnerID == owner && b.Name == norm(name) {
			return b, nil
		}
	}
	return economy.Beverage{}, economy.ErrNotFound
}

func (r *BeverageStore) CountByOwner(_ context.Context, owner uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.countLocked(owner), nil
}

func (r *BeverageStore) countLocked(owner uuid.UUID) int {
	n := 0
	for _, b := range r.s.beverages {
		if b.OwnerID == owner {
			n++
		}
	}
	return n
}

func (r *BeverageStore) List(_ context.Context) ([]economy.Beverage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]economy.Beverage, 0, len(r.s.beverages))
	for _, b := range r.s.beverages {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *BeverageStore) CreateOwned(_ context.Context, b *economy.Beverage, capacity int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.beverages {
		if existing.OwnerID == b.OwnerID && existing.Name == b.Name {
			return economy.ErrAlreadyExists
		}
	}
	if capacity > 0 && r.countLocked(b.OwnerID) >= capacity {
		return economy.ErrCapacityExceeded
	}
	b.Sequence = r.s.nextSeq()
	r.s.beverages[b.ID] = *b
	return nil
}

func (r *BeverageStore) Transfer(_ context.Context, id, from, to uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beverages[id]
	if !ok {
		return economy.ErrNotFound
	}
	if b.OwnerID != from {
		return economy.ErrConflict
	}
	b.OwnerID = to
	r.s.beverages[id] = b
	return nil
}

func (r *BeverageStore) Delete(_ context.Context, id, owner uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.beverages[id]
	if !ok {
		return economy.ErrNotFound
	}
	if b.OwnerID != owner {
		return economy.ErrConflict
	}
	delete(r.s.beverages, id)
	return nil
}

type TreasureStore struct{ s *Store }

func (r *TreasureStore) ByID(_ context.Context, id uuid.UUID) (economy.Treasure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.treasures[id]
	if !ok {
		return economy.Treasure{}, economy.ErrNotFound
	}
	return t, nil
}

func (r *TreasureStore) ByName(_ context.Context, name string) (economy.Treasure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.treasures {
		if t.Name == norm(name) {
			return t, nil
		}
	}
	return economy.Treasure{}, economy.ErrNotFound
}

func (r *TreasureStore) ByOwner(_ context.Context, owner uuid.UUID) ([]economy.Treasure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []economy.Treasure
	for _, t := range r.s.treasures {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *TreasureStore) List(_ context.Context) ([]economy.Treasure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]economy.Treasure, 0, len(r.s.treasures))
	for _, t := range r.s.treasures {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

func (r *TreasureStore) CreateUnique(_ context.Context, t *economy.Treasure) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.treasures {
		if existing.Name == t.Name {
			return economy.ErrAlreadyExists
		}
	}
	t.Sequence = r.s.nextSeq()
	r.s.treasures[t.ID] = *t
	return nil
}

func (r *TreasureStore) Transfer(_ context.Context, id, from, to uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.treasures[id]
	if !ok {
		return economy.ErrNotFound
	}
	if t.OwnerID != from {
		return economy.ErrConflict
	}
	t.OwnerID = to
	r.s.treasures[id] = t
	return nil
}
