// Package naming generates cosmetic display names for dining groups.
//
// Names are decoration only. Nothing in matching reads them, so the
// generator can be swapped or seeded freely.
package naming

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Generator produces a display name for a new group.
type Generator interface {
	Name() string
}

var (
	adjectives = []string{
		"Hungry", "Curious", "Cozy", "Spicy", "Sunny", "Midnight",
		"Golden", "Velvet", "Rustic", "Lucky", "Merry", "Savory",
	}
	nouns = []string{
		"Forks", "Noodles", "Dumplings", "Tacos", "Olives", "Biscuits",
		"Truffles", "Pretzels", "Skillets", "Spoons", "Lanterns", "Tables",
	}
)

// Random picks an adjective and a noun from fixed word lists.
// It is safe for concurrent use.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a generator whose sequence is fully determined by seed.
func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Name returns the next name in the sequence, e.g. "Cozy Dumplings".
func (r *Random) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return adjectives[r.rng.IntN(len(adjectives))] + " " + nouns[r.rng.IntN(len(nouns))]
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// Static always returns the same name.
type Static string

// Name returns s.
func (s Static) Name() string {
	return string(s)
}
