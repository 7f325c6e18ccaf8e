package models

import "time"

// MatchingStatus is where a user stands in the matching lifecycle.
type MatchingStatus string

const (
	StatusIdle      MatchingStatus = "idle"
	StatusSearching MatchingStatus = "searching"
	StatusMatched   MatchingStatus = "matched"
)

// Trait bounds for the numeric personality scales.
const (
	TraitMin = 0
	TraitMax = 10
)

// User represents a person that can be placed in a dining group.
type User struct {
	// UID is the stable identity issued by the auth provider.
	UID string

	// DisplayName is shown to other group members.
	DisplayName string

	// Sector is the coarse locality label used to bias grouping.
	// A user without a sector cannot be matched.
	Sector string

	// Personality is nil until the user completes the quiz.
	Personality *Personality

	MatchingStatus MatchingStatus

	// MatchingStartedAt is set only while MatchingStatus is searching.
	MatchingStartedAt *time.Time

	// GroupID is set iff MatchingStatus is matched.
	GroupID string

	// Connections is the set of user IDs this user has connected with.
	Connections []string

	// UpdatedAt is the Unix timestamp of the last profile change.
	UpdatedAt int64
}

// Personality holds the quiz answers used for compatibility scoring.
type Personality struct {
	Extraversion      int
	Openness          int
	ChillFactor       int
	ConversationStyle string
	Interests         []string
}

// IsSearching reports whether the user is currently in the pool.
func (u *User) IsSearching() bool {
	return u.MatchingStatus == StatusSearching
}

// WaitingSince returns how long the user has been searching at now.
// Users that are not searching report zero.
func (u *User) WaitingSince(now time.Time) time.Duration {
	if !u.IsSearching() || u.MatchingStartedAt == nil {
		return 0
	}
	return now.Sub(*u.MatchingStartedAt)
}

// HasConnection reports whether other is already in the user's connection set.
func (u *User) HasConnection(other string) bool {
	for _, c := range u.Connections {
		if c == other {
			return true
		}
	}
	return false
}
