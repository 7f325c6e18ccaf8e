// Package scoring computes pairwise compatibility between two users.
//
// The score is a weighted sum of trait closeness, a conversation-style bonus
// and shared interests:
//
//	score = Σ max(0, TraitCap - |a.trait - b.trait| * traitWeight)
//	      + StyleBonus                       (if conversation styles match)
//	      + |a.interests ∩ b.interests| * InterestWeight
//
// Every coefficient comes from Weights so the shape of "good compatibility"
// stays a configuration decision.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/mmynk/tablemates/internal/models"
)

// Weights configures the scorer.
type Weights struct {
	// TraitCap is the reward for two identical trait values.
	TraitCap float64

	ExtraversionWeight float64
	OpennessWeight     float64
	ChillFactorWeight  float64

	// StyleBonus is added when conversation styles match exactly.
	StyleBonus float64

	// InterestWeight is added per shared interest tag.
	InterestWeight float64

	// NeutralScore is returned when either side has no personality data.
	NeutralScore float64
}

// DefaultWeights returns the canonical weighted multi-trait configuration.
func DefaultWeights() Weights {
	return Weights{
		TraitCap:           10,
		ExtraversionWeight: 2,
		OpennessWeight:     2,
		ChillFactorWeight:  2,
		StyleBonus:         5,
		InterestWeight:     10,
		NeutralScore:       15,
	}
}

// Preset returns a named weight configuration.
//
//   - "weighted": trait closeness + style + interests (default)
//   - "interests_only": shared interests only; trait distance and style
//     are ignored
func Preset(name string) (Weights, error) {
	switch name {
	case "", "weighted":
		return DefaultWeights(), nil
	case "interests_only":
		w := DefaultWeights()
		w.TraitCap = 0
		w.StyleBonus = 0
		w.NeutralScore = 0
		return w, nil
	default:
		return Weights{}, fmt.Errorf("unknown scoring preset %q", name)
	}
}

// Validate rejects negative coefficients.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"trait cap":           w.TraitCap,
		"extraversion weight": w.ExtraversionWeight,
		"openness weight":     w.OpennessWeight,
		"chill factor weight": w.ChillFactorWeight,
		"style bonus":         w.StyleBonus,
		"interest weight":     w.InterestWeight,
	} {
		if v < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	return nil
}

// Scorer scores pairs of users. It is safe for concurrent use.
type Scorer struct {
	w Weights
}

// New creates a scorer with the given weights.
func New(w Weights) *Scorer {
	return &Scorer{w: w}
}

// Weights returns the scorer's configuration.
func (s *Scorer) Weights() Weights {
	return s.w
}

// Score returns the compatibility of a and b. Higher is better.
func (s *Scorer) Score(a, b *models.User) float64 {
	if a == nil || b == nil || a.Personality == nil || b.Personality == nil {
		return s.w.NeutralScore
	}
	pa, pb := a.Personality, b.Personality

	score := s.closeness(pa.Extraversion, pb.Extraversion, s.w.ExtraversionWeight) +
		s.closeness(pa.Openness, pb.Openness, s.w.OpennessWeight) +
		s.closeness(pa.ChillFactor, pb.ChillFactor, s.w.ChillFactorWeight)

	if pa.ConversationStyle != "" && pa.ConversationStyle == pb.ConversationStyle {
		score += s.w.StyleBonus
	}

	score += float64(SharedInterests(pa.Interests, pb.Interests)) * s.w.InterestWeight
	return score
}

func (s *Scorer) closeness(a, b int, weight float64) float64 {
	diff := math.Abs(float64(a - b))
	return math.Max(0, s.w.TraitCap-diff*weight)
}

// SharedInterests counts distinct interest tags present in both lists.
// Tags are compared case-insensitively after trimming.
func SharedInterests(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, tag := range a {
		set[normalize(tag)] = true
	}
	shared := 0
	for _, tag := range b {
		key := normalize(tag)
		if key != "" && set[key] {
			shared++
			delete(set, key)
		}
	}
	return shared
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
