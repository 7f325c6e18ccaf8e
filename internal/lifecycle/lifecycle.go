// Package lifecycle manages groups after they are formed: members leaving,
// opting into a follow-up dinner, connecting with each other and getting
// access to the group chat.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/tablemates/internal/chat"
	"github.com/mmynk/tablemates/internal/metrics"
	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

// ErrInvalidArgument is returned for empty identifiers and self-connections.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultDinnerThreshold is the number of acceptors that plans the dinner.
const DefaultDinnerThreshold = 2

// Manager applies membership changes through atomic store mutations.
type Manager struct {
	store     storage.Store
	chat      chat.Provisioner
	threshold int
	log       *slog.Logger
	metrics   metrics.Collector
}

// Option configures a Manager.
type Option func(*Manager)

// WithDinnerThreshold sets how many acceptors move a group to dinner_planned.
func WithDinnerThreshold(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.log = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(c metrics.Collector) Option {
	return func(m *Manager) {
		if c != nil {
			m.metrics = c
		}
	}
}

// New creates a Manager.
func New(store storage.Store, provisioner chat.Provisioner, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		chat:      provisioner,
		threshold: DefaultDinnerThreshold,
		log:       slog.Default(),
		metrics:   metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: identifier is required", ErrInvalidArgument)
		}
	}
	return nil
}

// Leave removes uid from the group and returns the user to idle. The group
// is deleted with its last member. It reports whether the group was deleted.
func (m *Manager) Leave(ctx context.Context, uid, groupID string) (bool, error) {
	if err := requireIDs(uid, groupID); err != nil {
		return false, err
	}

	group, err := m.store.MutateGroup(ctx, groupID, func(g *models.Group) error {
		if !g.RemoveMember(uid) {
			return storage.ErrNotMember
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	deleted := group == nil

	if err := m.chat.RemoveMembers(context.WithoutCancel(ctx), groupID, []string{uid}); err != nil {
		m.metrics.RecordProvisioningFailure("remove_members")
		m.log.Warn("Failed to remove member from group channel", "group_id", groupID, "uid", uid, "error", err)
	}

	m.log.Info("Member left group", "group_id", groupID, "uid", uid, "group_deleted", deleted)
	return deleted, nil
}

// OptInFollowUp records uid as a stay-and-dine acceptor. Repeated calls are
// no-ops. Once the threshold is reached an active group becomes
// dinner_planned; that transition is never undone.
func (m *Manager) OptInFollowUp(ctx context.Context, uid, groupID string) (models.GroupStatus, error) {
	if err := requireIDs(uid, groupID); err != nil {
		return "", err
	}

	group, err := m.store.MutateGroup(ctx, groupID, func(g *models.Group) error {
		if !g.HasMember(uid) {
			return storage.ErrNotMember
		}
		if !g.HasAcceptor(uid) {
			g.StayAndDineAcceptors = append(g.StayAndDineAcceptors, uid)
		}
		if g.Status == models.GroupActive && len(g.StayAndDineAcceptors) >= m.threshold {
			g.Status = models.GroupDinnerPlanned
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if group == nil {
		return "", fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return group.Status, nil
}

// AddConnection connects two users symmetrically. Existing connections are
// left untouched.
func (m *Manager) AddConnection(ctx context.Context, uid, other string) error {
	if err := requireIDs(uid, other); err != nil {
		return err
	}
	if uid == other {
		return fmt.Errorf("%w: cannot connect with yourself", ErrInvalidArgument)
	}
	user, err := m.store.GetUser(ctx, uid)
	if err != nil {
		return err
	}
	if user.HasConnection(other) {
		return nil
	}
	return m.store.AddConnection(ctx, uid, other)
}

// Group returns the group if uid is a member of it.
func (m *Manager) Group(ctx context.Context, uid, groupID string) (*models.Group, error) {
	if err := requireIDs(uid, groupID); err != nil {
		return nil, err
	}
	group, err := m.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(uid) {
		return nil, storage.ErrNotMember
	}
	return group, nil
}

// ChatToken issues a chat client token for uid.
func (m *Manager) ChatToken(ctx context.Context, uid string) (string, error) {
	if err := requireIDs(uid); err != nil {
		return "", err
	}
	token, err := m.chat.IssueToken(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("failed to issue chat token: %w", err)
	}
	return token, nil
}

// GroupChatToken issues a chat token after checking uid belongs to the group.
func (m *Manager) GroupChatToken(ctx context.Context, uid, groupID string) (string, error) {
	if _, err := m.Group(ctx, uid, groupID); err != nil {
		return "", err
	}
	return m.ChatToken(ctx, uid)
}

// SyncChannel re-creates the group channel with the current members. It is
// how a member retries provisioning that failed when the group was formed.
func (m *Manager) SyncChannel(ctx context.Context, uid, groupID string) error {
	group, err := m.Group(ctx, uid, groupID)
	if err != nil {
		return err
	}
	if err := m.chat.CreateChannel(ctx, group.ID, group.Name, group.MemberIDs[0], group.MemberIDs); err != nil {
		m.metrics.RecordProvisioningFailure("sync_channel")
		return fmt.Errorf("failed to sync group channel: %w", err)
	}
	// Members passed to CreateChannel only apply when the channel is new.
	if err := m.chat.AddMembers(ctx, group.ID, group.MemberIDs); err != nil {
		m.metrics.RecordProvisioningFailure("sync_channel")
		return fmt.Errorf("failed to sync group channel members: %w", err)
	}
	return nil
}
