// Package economy holds the game's ownership and scoring rules: who owns
// what, who may act when, and what a given action does to the world.
package economy

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxItems     = 10
	DefaultMaxBeverages = 4

	DefaultTheftCooldown = 13 * time.Minute
	DefaultPlayCooldown  = 13 * time.Minute
	DefaultFilterExpiry  = 90 * time.Minute

	// One steal attempt in this many succeeds.
	DefaultStealOdds = 5
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrRateLimited      = errors.New("rate limited")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("ownership conflict")
)

// Actor is a chat user participating in the game. The primary name is
// unique across actors, as is every alias.
type Actor struct {
	ID         uuid.UUID
	Name       string
	Aliases    []string
	PlatformID string
	Score      int
	Filters    []string
	FilteredAt time.Time
	LastTheft  time.Time
	LastGame   time.Time
	LastActive time.Time
	IsBot      bool
	Sequence   int64
	CreatedAt  time.Time
}

func NewActor(name, platformID string) Actor {
	return Actor{
		ID:         uuid.New(),
		Name:       strings.ToLower(strings.TrimSpace(name)),
		PlatformID: strings.TrimSpace(platformID),
	}
}

// ProperName is the display form of the primary name.
func (a Actor) ProperName() string {
	if a.Name == "" {
		return a.Name
	}
	return strings.ToUpper(a.Name[:1]) + a.Name[1:]
}

func (a Actor) HasFilter(name string) bool {
	for _, f := range a.Filters {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

func (a Actor) Drunk() bool { return a.HasFilter("drunk") }

// AcceptsGifts reports whether transfers to this actor are allowed.
func (a Actor) AcceptsGifts(now time.Time, inactivity time.Duration) bool {
	if a.IsBot {
		return false
	}
	if a.LastActive.IsZero() {
		return true
	}
	return now.Sub(a.LastActive) < inactivity
}

// Item is a stealable, givable object. OwnerID is uuid.Nil while unowned.
type Item struct {
	ID            uuid.UUID
	Name          string
	OwnerID       uuid.UUID
	CreatorID     uuid.UUID
	PointValue    int
	TheftAttempts int
	Ephemeral     bool
	Sequence      int64
	CreatedAt     time.Time
}

func NewItem(name string, owner, creator uuid.UUID) Item {
	return Item{
		ID:         uuid.New(),
		Name:       strings.ToLower(strings.TrimSpace(name)),
		OwnerID:    owner,
		CreatorID:  creator,
		PointValue: 1,
	}
}

// Beverage is brewed by and for an actor. Names are unique per owner only.
type Beverage struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	BrewerID  uuid.UUID
	Sequence  int64
	CreatedAt time.Time
}

func NewBeverage(name string, owner, brewer uuid.UUID) Beverage {
	return Beverage{
		ID:       uuid.New(),
		Name:     strings.ToLower(strings.TrimSpace(name)),
		OwnerID:  owner,
		BrewerID: brewer,
	}
}

// Treasure is a singleton: at most one of a given name exists system-wide.
type Treasure struct {
	ID        uuid.UUID
	Name      string
	OwnerID   uuid.UUID
	Sequence  int64
	CreatedAt time.Time
}

func NewTreasure(name string, owner uuid.UUID) Treasure {
	return Treasure{
		ID:      uuid.New(),
		Name:    strings.ToLower(strings.TrimSpace(name)),
		OwnerID: owner,
	}
}

// Result is what an action hands back to the transport layer. Expected
// negative outcomes (nothing resolved, cooldown, capacity) are Results with
// Mutated=false, never errors.
type Result struct {
	Message    string
	Mutated    bool
	ScoreDelta int
}
