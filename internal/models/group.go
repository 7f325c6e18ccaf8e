package models

// GroupStatus is the lifecycle state of a dining group.
type GroupStatus string

const (
	GroupActive        GroupStatus = "active"
	GroupDinnerPlanned GroupStatus = "dinner_planned"
)

// MatchTier records how a group was formed.
type MatchTier string

const (
	TierPerfect         MatchTier = "perfect"
	TierExpandedFull    MatchTier = "expanded_full"
	TierExpandedPartial MatchTier = "expanded_partial"
	TierGuaranteed      MatchTier = "guaranteed"
)

// Group is a small dining group formed from the searching pool.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	// The chat channel for the group uses the same ID.
	ID string

	// Name is a cosmetic display name. It never influences matching.
	Name string

	// Sector is the requester's sector at formation time.
	Sector string

	Status GroupStatus

	// MemberIDs is never empty; the group is deleted with its last member.
	MemberIDs []string

	MatchTier MatchTier

	// MatchedInterests is the union of the members' interests, for display.
	MatchedInterests []string

	// StayAndDineAcceptors is the subset of members who opted into dinner.
	StayAndDineAcceptors []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether uid is currently a member of the group.
func (g *Group) HasMember(uid string) bool {
	return contains(g.MemberIDs, uid)
}

// HasAcceptor reports whether uid has opted into stay-and-dine.
func (g *Group) HasAcceptor(uid string) bool {
	return contains(g.StayAndDineAcceptors, uid)
}

// RemoveMember drops uid from the member list and the acceptor set.
// It reports whether uid was a member.
func (g *Group) RemoveMember(uid string) bool {
	if !g.HasMember(uid) {
		return false
	}
	g.MemberIDs = without(g.MemberIDs, uid)
	g.StayAndDineAcceptors = without(g.StayAndDineAcceptors, uid)
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
