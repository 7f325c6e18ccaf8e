package matching

import (
	"fmt"
	"time"
)

// Policy holds the tier thresholds used by the selector.
type Policy struct {
	// TargetSize is the size of perfect and expanded_full groups.
	TargetSize int

	// ExpandedMinimum is the size of expanded_partial groups.
	ExpandedMinimum int

	// GuaranteedSize is the size of guaranteed groups.
	GuaranteedSize int

	// GuaranteedAfter is how long a requester must have waited before the
	// guaranteed tier applies.
	GuaranteedAfter time.Duration

	// SettleDelay is slept between entering the pool and the first snapshot
	// so concurrent joiners become visible.
	SettleDelay time.Duration

	// Adjacency lists the sectors considered next to each sector.
	Adjacency map[string][]string
}

// DefaultPolicy returns the canonical thresholds with no adjacency.
func DefaultPolicy() Policy {
	return Policy{
		TargetSize:      5,
		ExpandedMinimum: 3,
		GuaranteedSize:  2,
		GuaranteedAfter: 90 * time.Second,
		SettleDelay:     2 * time.Second,
	}
}

// Validate checks that the sizes are ordered and at least two.
func (p Policy) Validate() error {
	if p.GuaranteedSize < 2 {
		return fmt.Errorf("guaranteed size must be at least 2, got %d", p.GuaranteedSize)
	}
	if p.ExpandedMinimum < p.GuaranteedSize {
		return fmt.Errorf("expanded minimum (%d) cannot be below guaranteed size (%d)", p.ExpandedMinimum, p.GuaranteedSize)
	}
	if p.TargetSize < p.ExpandedMinimum {
		return fmt.Errorf("target size (%d) cannot be below expanded minimum (%d)", p.TargetSize, p.ExpandedMinimum)
	}
	if p.GuaranteedAfter < 0 || p.SettleDelay < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	return nil
}

// ExpandedSectors returns sector followed by its adjacent sectors.
func (p Policy) ExpandedSectors(sector string) []string {
	out := []string{sector}
	for _, s := range p.Adjacency[sector] {
		if s != "" && s != sector {
			out = append(out, s)
		}
	}
	return out
}
