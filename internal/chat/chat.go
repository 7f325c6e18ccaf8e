// Package chat provisions the group chat channel that accompanies every
// dining group. The channel ID is always the group ID.
package chat

import (
	"context"
	"errors"
	"log/slog"
)

// ErrDisabled is returned for token requests when no chat backend is configured.
var ErrDisabled = errors.New("chat is not configured")

// Provisioner creates and maintains group chat channels and issues
// per-user client tokens.
type Provisioner interface {
	// CreateChannel creates the channel (or updates it if it exists) with
	// the given members. creatorID is recorded as the channel owner.
	CreateChannel(ctx context.Context, channelID, name, creatorID string, members []string) error

	AddMembers(ctx context.Context, channelID string, members []string) error
	RemoveMembers(ctx context.Context, channelID string, members []string) error

	// IssueToken returns a client token scoped to uid.
	IssueToken(ctx context.Context, uid string) (string, error)
}

// Nop is used when no chat backend is configured. Channel operations are
// logged and dropped; token requests fail with ErrDisabled.
type Nop struct {
	Logger *slog.Logger
}

var _ Provisioner = Nop{}

func (n Nop) log() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n Nop) CreateChannel(_ context.Context, channelID, _, _ string, members []string) error {
	n.log().Debug("Chat disabled, skipping channel creation", "channel_id", channelID, "members", len(members))
	return nil
}

func (n Nop) AddMembers(_ context.Context, channelID string, members []string) error {
	n.log().Debug("Chat disabled, skipping add members", "channel_id", channelID, "members", len(members))
	return nil
}

func (n Nop) RemoveMembers(_ context.Context, channelID string, members []string) error {
	n.log().Debug("Chat disabled, skipping remove members", "channel_id", channelID, "members", len(members))
	return nil
}

func (n Nop) IssueToken(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}
