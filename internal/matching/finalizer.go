package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/tablemates/internal/chat"
	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/naming"
	"github.com/mmynk/tablemates/internal/storage"
)

var (
	// ErrClaimed is returned when a selected member was claimed by a
	// concurrent commit. Nothing was written.
	ErrClaimed = errors.New("member already claimed")

	// ErrGroupTooSmall is returned for member sets below two users.
	ErrGroupTooSmall = errors.New("group needs at least two members")
)

// Finalizer commits a selected member set as a group.
type Finalizer struct {
	store storage.Store
	chat  chat.Provisioner
	namer naming.Generator
	opts  options
}

// NewFinalizer creates a finalizer.
func NewFinalizer(store storage.Store, provisioner chat.Provisioner, namer naming.Generator, opts ...Option) *Finalizer {
	return &Finalizer{
		store: store,
		chat:  provisioner,
		namer: namer,
		opts:  applyOptions(opts),
	}
}

// Finalize atomically creates the group and claims every member. If any
// member is no longer searching and ungrouped, nothing is written and
// ErrClaimed is returned. The first member becomes the chat channel creator.
//
// Chat provisioning happens after the commit and never undoes it.
func (f *Finalizer) Finalize(ctx context.Context, sector string, members []*models.User, tier models.MatchTier) (*models.Group, error) {
	if len(members) < 2 {
		return nil, ErrGroupTooSmall
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UID
	}

	group := &models.Group{
		ID:               uuid.New().String(),
		Name:             f.namer.Name(),
		Sector:           sector,
		Status:           models.GroupActive,
		MemberIDs:        ids,
		MatchTier:        tier,
		MatchedInterests: interestUnion(members),
		CreatedAt:        f.opts.now().Unix(),
	}

	if err := f.store.CommitGroup(ctx, group); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			f.opts.metrics.RecordConflict(string(tier))
			return nil, fmt.Errorf("%w: %v", ErrClaimed, err)
		}
		return nil, fmt.Errorf("failed to commit group: %w", err)
	}

	// The group is committed; provisioning outlives the caller's request.
	chatCtx := context.WithoutCancel(ctx)
	if err := f.chat.CreateChannel(chatCtx, group.ID, group.Name, ids[0], ids); err != nil {
		f.opts.metrics.RecordProvisioningFailure("create_channel")
		f.opts.logger.Warn("Failed to create group channel",
			"group_id", group.ID,
			"members", len(ids),
			"error", err,
		)
	}

	return group, nil
}

// interestUnion returns the distinct lower-cased interests of all members, sorted.
func interestUnion(members []*models.User) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range members {
		if m.Personality == nil {
			continue
		}
		for _, tag := range m.Personality.Interests {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}
