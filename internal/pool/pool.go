// Package pool reads the set of users currently searching for a group.
//
// A snapshot is a fresh single-pass read of the store. Nothing is cached in
// process, so concurrent requests on different instances see the same pool.
package pool

import (
	"context"
	"iter"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

// Pool exposes the searching users held in a store.
type Pool struct {
	store storage.Store
}

// New creates a pool over store.
func New(store storage.Store) *Pool {
	return &Pool{store: store}
}

// Snapshot streams the searching users in the given sectors, oldest waiter
// first (ties broken by UID). With no sectors every sector is included.
// Duplicate and empty sector names are ignored.
//
// The sequence must be drained or abandoned before issuing other store calls.
func (p *Pool) Snapshot(ctx context.Context, sectors ...string) iter.Seq2[*models.User, error] {
	return p.store.SearchingUsers(ctx, dedupe(sectors))
}

// Collect drains a snapshot into a slice.
func Collect(seq iter.Seq2[*models.User, error]) ([]*models.User, error) {
	var users []*models.User
	for user, err := range seq {
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func dedupe(sectors []string) []string {
	if len(sectors) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(sectors))
	out := make([]string, 0, len(sectors))
	for _, s := range sectors {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
