// Package models defines the core domain models for tablemates.
//
// # Models
//
//   - User: a person who can be matched, with a locality sector and an
//     optional personality profile used for compatibility scoring
//   - Personality: numeric traits, a conversation style and interest tags
//   - Group: a small dining group formed from the searching pool
//
// # Relationships
//
// Relationships are expressed with ID strings, never pointers. A User points at
// its Group through GroupID and a Group lists its members in MemberIDs; the two
// sides are written together by the store so they never disagree.
//
// # Status lifecycle
//
// A user moves idle -> searching when it asks for a match, searching -> matched
// when a group is finalized, and back to idle when it leaves its group. A group
// starts active and may move once to dinner_planned.
package models
