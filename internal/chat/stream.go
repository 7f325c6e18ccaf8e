package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stream "github.com/GetStream/stream-chat-go/v5"
)

// StreamConfig configures the Stream Chat client.
type StreamConfig struct {
	APIKey    string
	APISecret string
	// BaseURL overrides the SDK's default API endpoint.
	BaseURL     string
	ChannelType string
	// TokenTTL bounds user tokens. Zero issues tokens without expiry.
	TokenTTL time.Duration
	Timeout  time.Duration
}

// Stream implements Provisioner with the Stream Chat SDK.
type Stream struct {
	client      *stream.Client
	channelType string
	tokenTTL    time.Duration
	log         *slog.Logger
	now         func() time.Time
}

var _ Provisioner = (*Stream)(nil)

// NewStream creates a Stream client. APIKey and APISecret are required.
func NewStream(cfg StreamConfig, logger *slog.Logger) (*Stream, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("stream: api key and secret are required")
	}
	client, err := stream.NewClient(cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("stream: failed to create client: %w", err)
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = strings.TrimRight(base, "/")
	}
	if cfg.Timeout > 0 {
		client.HTTP.Timeout = cfg.Timeout
	}
	if cfg.ChannelType == "" {
		cfg.ChannelType = "messaging"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Stream{
		client:      client,
		channelType: cfg.ChannelType,
		tokenTTL:    cfg.TokenTTL,
		log:         logger.With("client", "StreamChat"),
		now:         time.Now,
	}, nil
}

// CreateChannel upserts the member users and then creates the channel.
// Members only apply when the channel is new; use AddMembers to update an
// existing one.
func (s *Stream) CreateChannel(ctx context.Context, channelID, name, creatorID string, members []string) error {
	start := time.Now()
	users := make([]*stream.User, len(members))
	for i, m := range members {
		users[i] = &stream.User{ID: m}
	}
	if _, err := s.client.UpsertUsers(ctx, users...); err != nil {
		return fmt.Errorf("failed to upsert chat users: %w", err)
	}

	data := &stream.ChannelRequest{Members: members}
	if name != "" {
		data.ExtraData = map[string]interface{}{"name": name}
	}
	if _, err := s.client.CreateChannel(ctx, s.channelType, channelID, creatorID, data); err != nil {
		return fmt.Errorf("failed to create channel %s: %w", channelID, err)
	}

	s.log.Debug("Channel created",
		"channel_id", channelID,
		"members", len(members),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Stream) AddMembers(ctx context.Context, channelID string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	if _, err := s.client.Channel(s.channelType, channelID).AddMembers(ctx, members); err != nil {
		return fmt.Errorf("failed to add members to %s: %w", channelID, err)
	}
	return nil
}

func (s *Stream) RemoveMembers(ctx context.Context, channelID string, members []string) error {
	if len(members) == 0 {
		return nil
	}
	if _, err := s.client.Channel(s.channelType, channelID).RemoveMembers(ctx, members, nil); err != nil {
		return fmt.Errorf("failed to remove members from %s: %w", channelID, err)
	}
	return nil
}

// IssueToken creates a client token for uid, expiring after TokenTTL when set.
func (s *Stream) IssueToken(_ context.Context, uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("stream: user id is required")
	}
	var (
		token string
		err   error
	)
	if s.tokenTTL > 0 {
		now := s.now()
		token, err = s.client.CreateToken(uid, now.Add(s.tokenTTL), now)
	} else {
		token, err = s.client.CreateToken(uid, time.Time{})
	}
	if err != nil {
		return "", fmt.Errorf("failed to create chat token: %w", err)
	}
	return token, nil
}
