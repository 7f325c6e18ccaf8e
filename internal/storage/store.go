// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/mmynk/tablemates/internal/models"
)

var (
	// ErrNotFound is returned when a referenced user or group does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an atomic commit's precondition no longer
	// holds, e.g. a selected member was claimed by a concurrent commit.
	ErrConflict = errors.New("commit precondition failed")

	// ErrNotMember is returned when a user acts on a group it does not belong to.
	ErrNotMember = errors.New("user is not a member of the group")
)

// ProfileUpdate carries the user-editable part of a profile.
type ProfileUpdate struct {
	DisplayName string
	Sector      string
	Personality *models.Personality
}

// GroupMutation edits a group inside a store transaction. Returning an error
// aborts the transaction and the error is passed back to the caller.
type GroupMutation func(g *models.Group) error

// Store defines the document-store operations the matcher relies on.
// This abstraction allows swapping storage backends (SQLite, DynamoDB)
// without changing the matching or lifecycle code.
type Store interface {
	// GetUser retrieves a user by UID. Returns ErrNotFound if absent.
	GetUser(ctx context.Context, uid string) (*models.User, error)

	// UpdateProfile creates the user if needed and overwrites its profile
	// fields. Matching state is left untouched.
	UpdateProfile(ctx context.Context, uid string, update ProfileUpdate) (*models.User, error)

	// StartSearching moves the user into the pool with MatchingStartedAt = at
	// and clears any stale GroupID. A user that is already searching keeps
	// its original start time, and a user whose group still exists is
	// returned unchanged.
	StartSearching(ctx context.Context, uid string, at time.Time) (*models.User, error)

	// SearchingUsers streams every searching user, restricted to the given
	// sectors when any are passed, oldest waiter first. The sequence is a
	// single pass over a fresh read and must be drained or abandoned before
	// the caller issues other store calls.
	SearchingUsers(ctx context.Context, sectors []string) iter.Seq2[*models.User, error]

	// GetGroup retrieves a group by ID. Returns ErrNotFound if absent.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// CommitGroup writes group and claims every member in one transaction.
	// Each member must still be searching with no group at commit time,
	// otherwise nothing is written and ErrConflict is returned. Claimed
	// members become matched, get GroupID set and lose MatchingStartedAt.
	CommitGroup(ctx context.Context, group *models.Group) error

	// MutateGroup applies fn to the current group state in one transaction.
	// Members removed by fn are released (status idle, no group). If fn
	// leaves no members the group is deleted and nil is returned.
	MutateGroup(ctx context.Context, groupID string, fn GroupMutation) (*models.Group, error)

	// AddConnection records a symmetric connection between two users.
	// Repeated calls are no-ops. Returns ErrNotFound if either user is absent.
	AddConnection(ctx context.Context, uid, other string) error

	// Close releases any resources held by the store.
	Close() error
}
