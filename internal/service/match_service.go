// Package service exposes matching and group lifecycle over Connect RPC.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tablemates/internal/lifecycle"
	"github.com/mmynk/tablemates/internal/matching"
	"github.com/mmynk/tablemates/internal/middleware"
	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

const maxDisplayNameLength = 100

// MatchService implements the Connect MatchService.
type MatchService struct {
	selector  *matching.Selector
	lifecycle *lifecycle.Manager
	store     storage.Store
	logger    *slog.Logger
}

// NewMatchService creates a new MatchService.
func NewMatchService(selector *matching.Selector, manager *lifecycle.Manager, store storage.Store, logger *slog.Logger) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchService{selector: selector, lifecycle: manager, store: store, logger: logger}
}

func callerID(ctx context.Context) (string, error) {
	uid := middleware.GetUserID(ctx)
	if uid == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errUnauthenticated)
	}
	return uid, nil
}

func requireGroupID(groupID string) (string, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return "", fmt.Errorf("%w: group_id is required", errInvalidArgument)
	}
	return groupID, nil
}

// RequestMatch enters the caller into the pool and tries to form a group.
func (s *MatchService) RequestMatch(ctx context.Context, req *connect.Request[RequestMatchRequest]) (*connect.Response[RequestMatchResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.selector.RequestMatch(ctx, uid)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&RequestMatchResponse{
		Status:  string(res.Status),
		GroupID: res.GroupID,
		Tier:    string(res.Tier),
	}), nil
}

// FormPendingGroups sweeps the pool and forms every full group it can.
func (s *MatchService) FormPendingGroups(ctx context.Context, req *connect.Request[FormPendingGroupsRequest]) (*connect.Response[FormPendingGroupsResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.selector.Sweep(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &FormPendingGroupsResponse{GroupIDs: make([]string, 0, len(res.Groups)), Skipped: res.Skipped}
	for _, g := range res.Groups {
		resp.GroupIDs = append(resp.GroupIDs, g.ID)
	}
	resp.GroupsFormed = len(resp.GroupIDs)
	s.logger.Info("Pending groups formed", "caller", uid, "groups", resp.GroupsFormed, "skipped", resp.Skipped)
	return connect.NewResponse(resp), nil
}

// LeaveGroup removes the caller from a group.
func (s *MatchService) LeaveGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID, err := requireGroupID(req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	if _, err := s.lifecycle.Leave(ctx, uid, groupID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StatusResponse{Status: StatusOK}), nil
}

// OptInFollowUp records the caller's stay-and-dine acceptance.
func (s *MatchService) OptInFollowUp(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID, err := requireGroupID(req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	status, err := s.lifecycle.OptInFollowUp(ctx, uid, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &StatusResponse{Status: FollowUpWaiting}
	if status == models.GroupDinnerPlanned {
		resp.Status = FollowUpConfirmed
	}
	return connect.NewResponse(resp), nil
}

// AddConnection connects the caller with another user.
func (s *MatchService) AddConnection(ctx context.Context, req *connect.Request[AddConnectionRequest]) (*connect.Response[StatusResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.lifecycle.AddConnection(ctx, uid, strings.TrimSpace(req.Msg.OtherUID)); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StatusResponse{Status: StatusOK}), nil
}

// IssueChatToken returns a chat client token for the caller.
func (s *MatchService) IssueChatToken(ctx context.Context, req *connect.Request[IssueChatTokenRequest]) (*connect.Response[TokenResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	token, err := s.lifecycle.ChatToken(ctx, uid)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TokenResponse{Token: token}), nil
}

// IssueGroupChatToken returns a chat token for a group the caller belongs to.
func (s *MatchService) IssueGroupChatToken(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[TokenResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID, err := requireGroupID(req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	token, err := s.lifecycle.GroupChatToken(ctx, uid, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TokenResponse{Token: token}), nil
}

// UpdateProfile creates or updates the caller's profile.
func (s *MatchService) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UserResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	update, err := validateProfile(req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}

	user, err := s.store.UpdateProfile(ctx, uid, update)
	if err != nil {
		return nil, toConnectError(err)
	}

	s.logger.Info("Profile updated", "uid", uid, "sector", user.Sector, "has_personality", user.Personality != nil)
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

// GetGroup returns a group the caller belongs to.
func (s *MatchService) GetGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[GroupResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID, err := requireGroupID(req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	group, err := s.lifecycle.Group(ctx, uid, groupID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GroupResponse{Group: toGroup(group)}), nil
}

// SyncGroupChannel retries chat provisioning for a group the caller belongs to.
func (s *MatchService) SyncGroupChannel(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	uid, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	groupID, err := requireGroupID(req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError(err)
	}

	if err := s.lifecycle.SyncChannel(ctx, uid, groupID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&StatusResponse{Status: StatusOK}), nil
}

func validateProfile(msg *UpdateProfileRequest) (storage.ProfileUpdate, error) {
	update := storage.ProfileUpdate{
		DisplayName: strings.TrimSpace(msg.DisplayName),
		Sector:      strings.ToLower(strings.TrimSpace(msg.Sector)),
	}
	if len(update.DisplayName) > maxDisplayNameLength {
		return update, fmt.Errorf("%w: display_name longer than %d characters", errInvalidArgument, maxDisplayNameLength)
	}

	p := msg.Personality
	if p == nil {
		return update, nil
	}
	for name, v := range map[string]int{
		"extraversion": p.Extraversion,
		"openness":     p.Openness,
		"chill_factor": p.ChillFactor,
	} {
		if v < models.TraitMin || v > models.TraitMax {
			return update, fmt.Errorf("%w: %s must be between %d and %d, got %d",
				errInvalidArgument, name, models.TraitMin, models.TraitMax, v)
		}
	}

	var interests []string
	for _, tag := range p.Interests {
		if tag = strings.TrimSpace(tag); tag != "" {
			interests = append(interests, tag)
		}
	}
	update.Personality = &models.Personality{
		Extraversion:      p.Extraversion,
		Openness:          p.Openness,
		ChillFactor:       p.ChillFactor,
		ConversationStyle: strings.TrimSpace(p.ConversationStyle),
		Interests:         interests,
	}
	return update, nil
}
