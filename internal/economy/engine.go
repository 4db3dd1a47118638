package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"barkeep/internal/grammar"
	"barkeep/internal/narrate"
	"barkeep/internal/resolve"
)

// Config carries the action tunables. Zero fields fall back to defaults.
type Config struct {
	TheftCooldown time.Duration
	PlayCooldown  time.Duration
	FilterExpiry  time.Duration
	// Window since last activity within which an actor accepts gifts.
	InactivityThreshold time.Duration
	MaxItems            int
	MaxBeverages        int
	StealOdds           int
	// Names never eligible as match candidates (the bot's own names).
	Reserved []string
	// Clock override for tests.
	Now func() time.Time
}

// Engine orchestrates the player actions: it resolves referenced entities,
// checks cooldowns, draws outcomes and mutates ownership through the
// ledger. Expected negative outcomes come back as narrative Results; only
// storage failures are returned as errors.
type Engine struct {
	repos      Repos
	ledger     *Ledger
	resolver   *resolve.Resolver
	rng        Randomizer
	narrator   *narrate.Narrator
	log        *slog.Logger
	theftGate  Cooldown
	playGate   Cooldown
	expiry     time.Duration
	inactivity time.Duration
	stealOdds  int
	now        func() time.Time
}

func NewEngine(repos Repos, rng Randomizer, narrator *narrate.Narrator, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TheftCooldown <= 0 {
		cfg.TheftCooldown = DefaultTheftCooldown
	}
	if cfg.PlayCooldown <= 0 {
		cfg.PlayCooldown = DefaultPlayCooldown
	}
	if cfg.FilterExpiry <= 0 {
		cfg.FilterExpiry = DefaultFilterExpiry
	}
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = 13 * time.Minute
	}
	if cfg.StealOdds <= 0 {
		cfg.StealOdds = DefaultStealOdds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		repos:      repos,
		ledger:     NewLedger(repos.Items, repos.Beverages, repos.Treasures, cfg.MaxItems, cfg.MaxBeverages),
		resolver:   resolve.New(cfg.Reserved),
		rng:        rng,
		narrator:   narrator,
		log:        logger,
		theftGate:  Cooldown{Interval: cfg.TheftCooldown},
		playGate:   Cooldown{Interval: cfg.PlayCooldown},
		expiry:     cfg.FilterExpiry,
		inactivity: cfg.InactivityThreshold,
		stealOdds:  cfg.StealOdds,
		now:        cfg.Now,
	}
}

// Ledger exposes the ownership ledger for collaborators (admin CLI).
func (e *Engine) Ledger() *Ledger { return e.ledger }

// EnsureActor finds or lazily creates the actor behind a chat identity and
// stamps it active. Expired status filters are cleared on the way through.
func (e *Engine) EnsureActor(ctx context.Context, name, platformID string) (Actor, error) {
	now := e.now()
	actor, err := e.lookupActor(ctx, name, platformID)
	if errors.Is(err, ErrNotFound) {
		actor = NewActor(name, platformID)
		actor.LastActive = now
		if err := e.repos.Actors.Create(ctx, &actor); err != nil {
			// Lost a create race; the other writer's row wins.
			if errors.Is(err, ErrAlreadyExists) {
				return e.lookupActor(ctx, name, platformID)
			}
			return Actor{}, err
		}
		e.log.Info("actor created", "name", actor.Name)
		return actor, nil
	}
	if err != nil {
		return Actor{}, err
	}
	if actor.PlatformID == "" && platformID != "" {
		actor.PlatformID = platformID
	}
	if !actor.FilteredAt.IsZero() && now.Sub(actor.FilteredAt) >= e.expiry {
		actor.Filters = nil
		actor.FilteredAt = time.Time{}
	}
	actor.LastActive = now
	if err := e.repos.Actors.Save(ctx, actor); err != nil {
		return Actor{}, err
	}
	return actor, nil
}

func (e *Engine) lookupActor(ctx context.Context, name, platformID string) (Actor, error) {
	if platformID != "" {
		actor, err := e.repos.Actors.ByPlatformID(ctx, platformID)
		if err == nil {
			return actor, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Actor{}, err
		}
	}
	name = strings.ToLower(strings.TrimSpace(name))
	actor, err := e.repos.Actors.ByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return e.repos.Actors.ByAlias(ctx, name)
	}
	return actor, err
}

// RecordAlias attaches a new nick to an actor. The store enforces
// cross-actor uniqueness; a nick already claimed anywhere is silently
// skipped.
func (e *Engine) RecordAlias(ctx context.Context, actor Actor, nick string) error {
	nick = strings.ToLower(strings.TrimSpace(nick))
	if nick == "" || nick == actor.Name {
		return nil
	}
	err := e.repos.Actors.AddAlias(ctx, actor.ID, nick)
	if errors.Is(err, ErrAlreadyExists) {
		return nil
	}
	return err
}

// ApplyFilter puts a status filter (drunk, dazed, ...) on an actor. Filters
// expire lazily after the configured interval.
func (e *Engine) ApplyFilter(ctx context.Context, actor Actor, filter string) error {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" || actor.HasFilter(filter) {
		return nil
	}
	actor.Filters = append(actor.Filters, filter)
	actor.FilteredAt = e.now()
	return e.repos.Actors.Save(ctx, actor)
}

// Steal resolves text to an item or beverage and attempts to take it.
func (e *Engine) Steal(ctx context.Context, actor Actor, text string) (Result, error) {
	ix, err := e.lootIndex(ctx)
	if err != nil {
		return Result{}, err
	}
	entry, ok := e.resolver.Resolve(text, resolve.KindAny, ix)
	if !ok {
		return Result{Message: e.narrator.Line("steal.curious", actor.ProperName())}, nil
	}

	now := e.now()
	switch entry.Kind {
	case resolve.KindItem:
		item, err := e.repos.Items.ByID(ctx, uuid.MustParse(entry.ID))
		if err != nil {
			return Result{}, err
		}
		return e.stealItem(ctx, actor, item, now)
	case resolve.KindBeverage:
		bev, err := e.repos.Beverages.ByID(ctx, uuid.MustParse(entry.ID))
		if err != nil {
			return Result{}, err
		}
		return e.stealBeverage(ctx, actor, bev, now)
	default:
		return Result{Message: e.narrator.Line("steal.curious", actor.ProperName())}, nil
	}
}

func (e *Engine) stealItem(ctx context.Context, actor Actor, item Item, now time.Time) (Result, error) {
	if item.OwnerID == actor.ID {
		return Result{Message: e.narrator.Line("steal.self", actor.ProperName(), item.Name)}, nil
	}
	if !e.theftGate.Allowed(actor.LastTheft, now) {
		return Result{Message: e.narrator.Line("steal.pressluck", actor.ProperName())}, nil
	}

	// The gate has passed: the cooldown burns whatever the outcome.
	actor.LastTheft = now
	ownerName, err := e.ownerName(ctx, item.OwnerID)
	if err != nil {
		return Result{}, err
	}

	if e.rng.OneChanceIn(e.stealOdds) {
		err := e.ledger.TransferItem(ctx, item.ID, item.OwnerID, actor.ID)
		if errors.Is(err, ErrConflict) {
			if saveErr := e.repos.Actors.Save(ctx, actor); saveErr != nil {
				return Result{}, saveErr
			}
			return Result{Message: e.narrator.Line("steal.conflict", item.Name)}, nil
		}
		if err != nil {
			return Result{}, err
		}
		delta := item.PointValue
		if delta < 1 {
			delta = 1
		}
		actor.Score += delta
		if err := e.repos.Actors.Save(ctx, actor); err != nil {
			return Result{}, err
		}
		e.log.Info("steal succeeded", "actor", actor.Name, "item", item.Name, "points", delta)
		msg := e.narrator.Line("steal.success", actor.ProperName(), item.Name, ownerName)
		if item.PointValue > 1 {
			msg = e.narrator.Line("steal.success.valuable", actor.ProperName(), item.Name, item.PointValue, ownerName)
		}
		return Result{Message: msg, Mutated: true, ScoreDelta: delta}, nil
	}

	// Counter-only update: the row may have been transferred since the
	// read, and a full save would revert that transfer.
	if err := e.repos.Items.IncrementTheftAttempts(ctx, item.ID); err != nil {
		return Result{}, err
	}
	actor.Score--
	if err := e.repos.Actors.Save(ctx, actor); err != nil {
		return Result{}, err
	}
	e.log.Info("steal failed", "actor", actor.Name, "item", item.Name)
	return Result{
		Message:    e.narrator.Line("steal.fail", actor.ProperName(), item.Name, ownerName),
		Mutated:    true,
		ScoreDelta: -1,
	}, nil
}

func (e *Engine) stealBeverage(ctx context.Context, actor Actor, bev Beverage, now time.Time) (Result, error) {
	if bev.OwnerID == actor.ID {
		return Result{Message: e.narrator.Line("steal.self", actor.ProperName(), bev.Name)}, nil
	}
	if !e.theftGate.Allowed(actor.LastTheft, now) {
		return Result{Message: e.narrator.Line("steal.pressluck", actor.ProperName())}, nil
	}

	actor.LastTheft = now
	ownerName, err := e.ownerName(ctx, bev.OwnerID)
	if err != nil {
		return Result{}, err
	}

	if e.rng.OneChanceIn(e.stealOdds) {
		err := e.ledger.TransferBeverage(ctx, bev.ID, bev.OwnerID, actor.ID)
		if errors.Is(err, ErrConflict) {
			if saveErr := e.repos.Actors.Save(ctx, actor); saveErr != nil {
				return Result{}, saveErr
			}
			return Result{Message: e.narrator.Line("steal.conflict", bev.Name)}, nil
		}
		if err != nil {
			return Result{}, err
		}
		actor.Score++
		if err := e.repos.Actors.Save(ctx, actor); err != nil {
			return Result{}, err
		}
		return Result{
			Message:    e.narrator.Line("steal.success", actor.ProperName(), bev.Name, ownerName),
			Mutated:    true,
			ScoreDelta: 1,
		}, nil
	}

	actor.Score--
	if err := e.repos.Actors.Save(ctx, actor); err != nil {
		return Result{}, err
	}
	return Result{
		Message:    e.narrator.Line("steal.fail", actor.ProperName(), bev.Name, ownerName),
		Mutated:    true,
		ScoreDelta: -1,
	}, nil
}

// Forge creates a new treasure. Operator-only; the permission decision is
// the transport's, passed in as a flag.
func (e *Engine) Forge(ctx context.Context, actor Actor, name string, operator bool) (Result, error) {
	if !operator {
		return Result{Message: e.narrator.Line("forge.denied", actor.ProperName())}, nil
	}
	name = grammar.Normalize(name)
	if name == "" {
		return Result{Message: e.narrator.Line("steal.curious", actor.ProperName())}, nil
	}
	_, err := e.ledger.CreateTreasure(ctx, name, actor.ID)
	if errors.Is(err, ErrAlreadyExists) {
		return Result{Message: e.narrator.Line("forge.singleton")}, nil
	}
	if err != nil {
		return Result{}, err
	}
	e.log.Info("treasure forged", "actor", actor.Name, "treasure", name)
	return Result{Message: e.narrator.Line("forge.success", name), Mutated: true}, nil
}

// Brew creates a beverage for the actor, at most MaxBeverages each and one
// of each name per actor.
func (e *Engine) Brew(ctx context.Context, actor Actor, name string) (Result, error) {
	name = grammar.Normalize(name)
	if name == "" {
		return Result{Message: e.narrator.Line("steal.curious", actor.ProperName())}, nil
	}
	_, err := e.ledger.CreateBeverage(ctx, name, actor.ID, actor.ID)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		return Result{Message: e.narrator.Line("brew.duplicate", name, actor.ProperName())}, nil
	case errors.Is(err, ErrCapacityExceeded):
		return Result{Message: e.narrator.Line("brew.capacity", actor.ProperName())}, nil
	case err != nil:
		return Result{}, err
	}
	return Result{Message: e.narrator.Line("brew.success", actor.ProperName(), name), Mutated: true}, nil
}

// Drink consumes one of the actor's own beverages.
func (e *Engine) Drink(ctx context.Context, actor Actor, text string) (Result, error) {
	owned, err := e.repos.Beverages.ByOwner(ctx, actor.ID)
	if err != nil {
		return Result{}, err
	}
	ix := resolve.NewIndex()
	for _, b := range owned {
		ix.Add(beverageEntry(b))
	}
	entry, ok := e.resolveWithPrefix(text, resolve.KindBeverage, ix)
	if !ok {
		return Result{Message: e.narrator.Line("drink.missing", actor.ProperName())}, nil
	}
	bev, err := e.repos.Beverages.ByID(ctx, uuid.MustParse(entry.ID))
	if err != nil {
		return Result{}, err
	}
	if err := e.ledger.ConsumeBeverage(ctx, bev.ID, actor.ID); err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return Result{Message: e.narrator.Line("drink.missing", actor.ProperName())}, nil
		}
		return Result{}, err
	}
	if err := e.ApplyFilter(ctx, actor, "drunk"); err != nil {
		return Result{}, err
	}
	return Result{Message: e.narrator.Line("drink.success", actor.ProperName(), bev.Name), Mutated: true}, nil
}

// Give transfers one of the actor's items or beverages to another actor.
// When no concrete object resolves, an ephemeral placeholder is conjured
// and handed over instead.
func (e *Engine) Give(ctx context.Context, actor Actor, itemText, recipientText string) (Result, error) {
	recipient, res, err := e.resolveRecipient(ctx, actor, recipientText)
	if err != nil || res != nil {
		return deref(res), err
	}

	ownIx, err := e.ownedIndex(ctx, actor.ID)
	if err != nil {
		return Result{}, err
	}
	entry, ok := e.resolveWithPrefix(itemText, resolve.KindAny, ownIx)
	if !ok {
		// Nothing concrete to give; conjure something.
		item, err := e.ledger.CreateEphemeralItem(ctx, grammar.Normalize(itemText), actor.ID)
		if err != nil {
			return Result{}, err
		}
		if err := e.ledger.TransferItem(ctx, item.ID, uuid.Nil, recipient.ID); err != nil {
			return Result{}, err
		}
		return Result{
			Message: e.narrator.Line("give.success", actor.ProperName(), item.Name, recipient.ProperName()),
			Mutated: true,
		}, nil
	}

	var objectName string
	var transferErr error
	switch entry.Kind {
	case resolve.KindBeverage:
		objectName = entry.Name
		transferErr = e.ledger.TransferBeverage(ctx, uuid.MustParse(entry.ID), actor.ID, recipient.ID)
	default:
		objectName = entry.Name
		transferErr = e.ledger.TransferItem(ctx, uuid.MustParse(entry.ID), actor.ID, recipient.ID)
	}
	if errors.Is(transferErr, ErrConflict) {
		return Result{Message: e.narrator.Line("give.conflict", actor.ProperName(), objectName)}, nil
	}
	if transferErr != nil {
		return Result{}, transferErr
	}
	return Result{
		Message: e.narrator.Line("give.success", actor.ProperName(), objectName, recipient.ProperName()),
		Mutated: true,
	}, nil
}

// GiveTreasure passes a held treasure to another actor. Any holder may give
// away a treasure they hold; there is no other authorization.
func (e *Engine) GiveTreasure(ctx context.Context, actor Actor, treasureName, recipientText string) (Result, error) {
	name := grammar.Normalize(treasureName)
	t, err := e.repos.Treasures.ByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return Result{Message: e.narrator.Line("treasure.missing", name)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	if t.OwnerID != actor.ID {
		return Result{Message: e.narrator.Line("treasure.notheld", actor.ProperName(), t.Name)}, nil
	}

	recipient, res, err := e.resolveRecipient(ctx, actor, recipientText)
	if err != nil || res != nil {
		return deref(res), err
	}

	err = e.ledger.TransferTreasure(ctx, t.ID, actor.ID, recipient.ID)
	if errors.Is(err, ErrConflict) {
		return Result{Message: e.narrator.Line("give.conflict", actor.ProperName(), t.Name)}, nil
	}
	if err != nil {
		return Result{}, err
	}
	return Result{
		Message: e.narrator.Line("treasure.success", actor.ProperName(), t.Name, recipient.ProperName()),
		Mutated: true,
	}, nil
}

// Play is the cooldown-gated dice game: a small score bump, occasionally a
// jackpot.
func (e *Engine) Play(ctx context.Context, actor Actor) (Result, error) {
	now := e.now()
	if !e.playGate.Allowed(actor.LastGame, now) {
		return Result{Message: e.narrator.Line("play.gated", actor.ProperName())}, nil
	}
	actor.LastGame = now
	delta := 1
	key := "play.small"
	if e.rng.OneInTen() {
		delta = 5
		key = "play.jackpot"
	}
	actor.Score += delta
	if err := e.repos.Actors.Save(ctx, actor); err != nil {
		return Result{}, err
	}
	return Result{Message: e.narrator.Line(key, actor.ProperName(), delta), Mutated: true, ScoreDelta: delta}, nil
}

// MaybeGreet returns a greeting line roughly one join in ten.
func (e *Engine) MaybeGreet(name string) (string, bool) {
	if !e.rng.OneInTen() {
		return "", false
	}
	return e.narrator.Line("greeting", name), true
}

// Inventory formats an actor's holdings for a chat reply.
func (e *Engine) Inventory(ctx context.Context, actor Actor) (string, error) {
	items, err := e.repos.Items.ByOwner(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	bevs, err := e.repos.Beverages.ByOwner(ctx, actor.ID)
	if err != nil {
		return "", err
	}
	treasures, err := e.repos.Treasures.ByOwner(ctx, actor.ID)
	if err != nil {
		return "", err
	}

	var names []string
	for _, t := range treasures {
		names = append(names, t.Name)
	}
	for _, it := range items {
		names = append(names, it.Name)
	}
	for _, b := range bevs {
		names = append(names, b.Name)
	}
	if len(names) == 0 {
		return fmt.Sprintf("%s isn't carrying anything.", actor.ProperName()), nil
	}
	return fmt.Sprintf("%s is carrying %s.", actor.ProperName(), joinWithAnd(names)), nil
}

// ScoreReport formats an actor's score for a chat reply.
func (e *Engine) ScoreReport(actor Actor) string {
	points := "points"
	if actor.Score == 1 || actor.Score == -1 {
		points = "point"
	}
	return fmt.Sprintf("%s has %d %s", actor.ProperName(), actor.Score, points)
}

// Narrator exposes narration to the transport layer (garbling, ad-hoc lines).
func (e *Engine) Narrator() *narrate.Narrator { return e.narrator }

func (e *Engine) resolveRecipient(ctx context.Context, actor Actor, text string) (Actor, *Result, error) {
	ix, err := e.actorIndex(ctx)
	if err != nil {
		return Actor{}, nil, err
	}
	entry, ok := e.resolver.Resolve(text, resolve.KindActor, ix)
	if !ok {
		r := Result{Message: e.narrator.Line("give.norecipient", strings.TrimSpace(text))}
		return Actor{}, &r, nil
	}
	recipient, err := e.repos.Actors.ByID(ctx, uuid.MustParse(entry.ID))
	if err != nil {
		return Actor{}, nil, err
	}
	if recipient.ID == actor.ID || !recipient.AcceptsGifts(e.now(), e.inactivity) {
		r := Result{Message: e.narrator.Line("give.refuses", recipient.ProperName())}
		return Actor{}, &r, nil
	}
	return recipient, nil, nil
}

// resolveWithPrefix runs the ordered fallback chain for object references:
// the declared name, then the part before a ':' separator, then the raw
// text again (resolver input is normalized, so the last stage only differs
// when the separator split discarded the match).
func (e *Engine) resolveWithPrefix(text string, kind resolve.Kind, ix *resolve.Index) (resolve.Entry, bool) {
	if entry, ok := e.resolver.Resolve(text, kind, ix); ok {
		return entry, true
	}
	if head, _, found := strings.Cut(text, ":"); found {
		if entry, ok := e.resolver.Resolve(head, kind, ix); ok {
			return entry, true
		}
	}
	return resolve.Entry{}, false
}

func (e *Engine) ownerName(ctx context.Context, owner uuid.UUID) (string, error) {
	if owner == uuid.Nil {
		return "no one", nil
	}
	a, err := e.repos.Actors.ByID(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return "someone", nil
	}
	if err != nil {
		return "", err
	}
	return a.ProperName(), nil
}

func (e *Engine) lootIndex(ctx context.Context) (*resolve.Index, error) {
	items, err := e.repos.Items.List(ctx)
	if err != nil {
		return nil, err
	}
	bevs, err := e.repos.Beverages.List(ctx)
	if err != nil {
		return nil, err
	}
	ix := resolve.NewIndex()
	for _, it := range items {
		ix.Add(itemEntry(it))
	}
	for _, b := range bevs {
		ix.Add(beverageEntry(b))
	}
	return ix, nil
}

func (e *Engine) ownedIndex(ctx context.Context, owner uuid.UUID) (*resolve.Index, error) {
	items, err := e.repos.Items.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	bevs, err := e.repos.Beverages.ByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ix := resolve.NewIndex()
	for _, it := range items {
		ix.Add(itemEntry(it))
	}
	for _, b := range bevs {
		ix.Add(beverageEntry(b))
	}
	return ix, nil
}

func (e *Engine) actorIndex(ctx context.Context) (*resolve.Index, error) {
	actors, err := e.repos.Actors.List(ctx)
	if err != nil {
		return nil, err
	}
	ix := resolve.NewIndex()
	for _, a := range actors {
		ix.Add(resolve.Entry{
			Kind:       resolve.KindActor,
			ID:         a.ID.String(),
			Name:       a.Name,
			Aliases:    append([]string(nil), a.Aliases...),
			Identifier: a.PlatformID,
			Sequence:   a.Sequence,
		})
	}
	return ix, nil
}

func itemEntry(it Item) resolve.Entry {
	return resolve.Entry{Kind: resolve.KindItem, ID: it.ID.String(), Name: it.Name, Sequence: it.Sequence}
}

func beverageEntry(b Beverage) resolve.Entry {
	return resolve.Entry{Kind: resolve.KindBeverage, ID: b.ID.String(), Name: b.Name, Sequence: b.Sequence}
}

func deref(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}

func joinWithAnd(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
