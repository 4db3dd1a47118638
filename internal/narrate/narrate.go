// Package narrate renders game outcomes as the bot's spoken lines. Phrase
// variants live in an embedded YAML table; picks go through the injected
// random source so tests stay deterministic.
package narrate

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var phrasesYAML []byte

// Rand is the slice of the game randomizer narration needs.
type Rand interface {
	Intn(n int) int
}

type Narrator struct {
	rng     Rand
	phrases map[string][]string
}

func New(rng Rand) (*Narrator, error) {
	phrases := make(map[string][]string)
	if err := yaml.Unmarshal(phrasesYAML, &phrases); err != nil {
		return nil, fmt.Errorf("parse phrase table: %w", err)
	}
	return &Narrator{rng: rng, phrases: phrases}, nil
}

// Line picks a phrase variant for key and interpolates args. Unknown keys
// fall back to the key itself so a missing table entry is visible in chat
// rather than silent.
func (n *Narrator) Line(key string, args ...any) string {
	variants := n.phrases[key]
	if len(variants) == 0 {
		return key
	}
	tmpl := variants[n.rng.Intn(len(variants))]
	return fmt.Sprintf(tmpl, args...)
}

// Variants exposes how many phrasings a key has; used by tests.
func (n *Narrator) Variants(key string) int { return len(n.phrases[key]) }

// Garble slurs outbound text the way a drunk speaker would: sometimes, and
// only on about half the words.
func (n *Narrator) Garble(text string) string {
	if n.rng.Intn(4) != 0 {
		return text
	}
	words := strings.Fields(text)
	for i, w := range words {
		if n.rng.Intn(2) == 0 || len(w) == 0 {
			continue
		}
		last := w[len(w)-1:]
		words[i] = w + strings.Repeat(last, 1+n.rng.Intn(2))
	}
	return strings.Join(words, " ")
}
