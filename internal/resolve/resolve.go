// Package resolve matches loosely-typed text fragments against known named
// entities. Matching is read-only; a miss is an ordinary negative result.
package resolve

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"barkeep/internal/grammar"
)

type Kind int

const (
	KindAny Kind = iota
	KindActor
	KindItem
	KindBeverage
	KindTreasure
)

func (k Kind) String() string {
	switch k {
	case KindActor:
		return "actor"
	case KindItem:
		return "item"
	case KindBeverage:
		return "beverage"
	case KindTreasure:
		return "treasure"
	default:
		return "any"
	}
}

// Entry is one indexed entity: its primary name, alias names and external
// identifier, plus an opaque reference back to the owning record.
type Entry struct {
	Kind       Kind
	ID         string
	Name       string
	Aliases    []string
	Identifier string
	Sequence   int64 // creation order, used as the final tie-break
}

// Index is a point-in-time snapshot of the entities eligible for matching.
type Index struct {
	entries []Entry
}

func NewIndex(entries ...Entry) *Index {
	ix := &Index{}
	for _, e := range entries {
		ix.Add(e)
	}
	return ix
}

func (ix *Index) Add(e Entry) {
	e.Name = strings.ToLower(strings.TrimSpace(e.Name))
	for i, a := range e.Aliases {
		e.Aliases[i] = strings.ToLower(strings.TrimSpace(a))
	}
	e.Identifier = strings.ToLower(strings.TrimSpace(e.Identifier))
	ix.entries = append(ix.entries, e)
}

func (ix *Index) Len() int { return len(ix.entries) }

// searchResult pairs a candidate fragment with the entry it matched. Only
// used transiently during ranking.
type searchResult struct {
	term  string
	entry Entry
}

// Resolver ranks index matches for text fragments. Reserved identifiers
// (the bot's own names and similar) are never eligible candidates.
type Resolver struct {
	reserved map[string]struct{}
}

func New(reserved []string) *Resolver {
	r := &Resolver{reserved: make(map[string]struct{}, len(reserved))}
	for _, id := range reserved {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			r.reserved[id] = struct{}{}
		}
	}
	return r
}

// Resolve returns the single best-matching entry of the requested kind for
// the fragment, or ok=false when nothing matches. Ranking prefers the
// longest matching candidate; between equal-length candidates the match
// whose primary name is closest to the candidate wins, then the entry
// created first. The same fragment and index always resolve the same way.
func (r *Resolver) Resolve(fragment string, kind Kind, ix *Index) (Entry, bool) {
	candidates := grammar.Omnigrams(fragment)
	if raw := strings.ToLower(strings.TrimSpace(fragment)); raw != "" {
		candidates = append(candidates, raw)
	}

	var results []searchResult
	seen := make(map[string]struct{})
	for _, cand := range candidates {
		if _, dup := seen[cand]; dup {
			continue
		}
		seen[cand] = struct{}{}
		if _, ok := r.reserved[cand]; ok {
			continue
		}
		name := scrub(cand)
		if name == "" {
			continue
		}
		if _, ok := r.reserved[name]; ok {
			continue
		}
		if entry, ok := matchEntry(name, kind, ix.entries); ok {
			results = append(results, searchResult{term: name, entry: entry})
		}
	}

	if len(results) == 0 {
		return r.fuzzy(fragment, kind, ix)
	}

	sort.SliceStable(results, func(i, j int) bool { return better(results[i], results[j]) })
	return results[0].entry, true
}

func better(a, b searchResult) bool {
	if len(a.term) != len(b.term) {
		return len(a.term) > len(b.term)
	}
	da := levenshtein.ComputeDistance(a.term, a.entry.Name)
	db := levenshtein.ComputeDistance(b.term, b.entry.Name)
	if da != db {
		return da < db
	}
	if a.entry.Sequence != b.entry.Sequence {
		return a.entry.Sequence < b.entry.Sequence
	}
	return a.entry.ID < b.entry.ID
}

func scrub(s string) string {
	s = strings.NewReplacer("@", "", "<", "", ">", "").Replace(s)
	return strings.TrimSpace(s)
}

// matchEntry runs the staged lookups for a single candidate: exact primary
// name, alias, word-boundary substring of the primary name, then external
// identifier. Entries are scanned in index order so stage ties are stable.
func matchEntry(name string, kind Kind, entries []Entry) (Entry, bool) {
	type stage func(string, Entry) bool
	stages := []stage{matchExact, matchAlias, matchSubstring, matchIdentifier}
	for _, match := range stages {
		best, found := Entry{}, false
		for _, e := range entries {
			if kind != KindAny && e.Kind != kind {
				continue
			}
			if !match(name, e) {
				continue
			}
			if !found || e.Sequence < best.Sequence {
				best, found = e, true
			}
		}
		if found {
			return best, true
		}
	}
	return Entry{}, false
}

func matchExact(name string, e Entry) bool {
	return e.Name != "" && e.Name == name
}

func matchAlias(name string, e Entry) bool {
	for _, a := range e.Aliases {
		if a != "" && a == name {
			return true
		}
	}
	return false
}

func matchSubstring(name string, e Entry) bool {
	if e.Name == "" {
		return false
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(e.Name)
}

func matchIdentifier(name string, e Entry) bool {
	return e.Identifier != "" && e.Identifier == name
}

// fuzzy is the last-resort stage: accept a primary name within a
// length-scaled edit distance of the whole fragment.
func (r *Resolver) fuzzy(fragment string, kind Kind, ix *Index) (Entry, bool) {
	name := scrub(grammar.Normalize(fragment))
	if name == "" {
		return Entry{}, false
	}
	if _, ok := r.reserved[name]; ok {
		return Entry{}, false
	}
	best, bestDist, found := Entry{}, 0, false
	for _, e := range ix.entries {
		if kind != KindAny && e.Kind != kind {
			continue
		}
		if e.Name == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(name, e.Name)
		if dist > fuzzyLimit(len(e.Name)) {
			continue
		}
		if !found || dist < bestDist || (dist == bestDist && e.Sequence < best.Sequence) {
			best, bestDist, found = e, dist, true
		}
	}
	return best, found
}

func fuzzyLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
