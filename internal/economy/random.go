package economy

import (
	mathrand "math/rand"
	"sync"
	"time"
)

// Randomizer supplies the discrete draws behind probabilistic outcomes.
// Injected so tests can force every branch.
type Randomizer interface {
	OneChanceIn(n int) bool
	OneInTen() bool
	Intn(n int) int
}

type seededRandomizer struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

// NewRandomizer returns a time-seeded Randomizer safe for concurrent use.
func NewRandomizer() Randomizer {
	return &seededRandomizer{rng: mathrand.New(mathrand.NewSource(time.Now().UnixNano()))}
}

func (r *seededRandomizer) OneChanceIn(n int) bool {
	if n <= 1 {
		return true
	}
	return r.Intn(n) == 0
}

func (r *seededRandomizer) OneInTen() bool { return r.OneChanceIn(10) }

func (r *seededRandomizer) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
