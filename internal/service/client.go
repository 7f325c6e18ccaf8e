package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// Client is a typed MatchService client.
type Client struct {
	requestMatch        *connect.Client[RequestMatchRequest, RequestMatchResponse]
	leaveGroup          *connect.Client[GroupRequest, StatusResponse]
	optInFollowUp       *connect.Client[GroupRequest, StatusResponse]
	addConnection       *connect.Client[AddConnectionRequest, StatusResponse]
	issueChatToken      *connect.Client[IssueChatTokenRequest, TokenResponse]
	issueGroupChatToken *connect.Client[GroupRequest, TokenResponse]
	updateProfile       *connect.Client[UpdateProfileRequest, UserResponse]
	getGroup            *connect.Client[GroupRequest, GroupResponse]
	syncGroupChannel    *connect.Client[GroupRequest, StatusResponse]
	formPendingGroups   *connect.Client[FormPendingGroupsRequest, FormPendingGroupsResponse]
}

// NewClient creates a MatchService client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &Client{
		requestMatch:        connect.NewClient[RequestMatchRequest, RequestMatchResponse](httpClient, baseURL+RequestMatchProcedure, opts...),
		leaveGroup:          connect.NewClient[GroupRequest, StatusResponse](httpClient, baseURL+LeaveGroupProcedure, opts...),
		optInFollowUp:       connect.NewClient[GroupRequest, StatusResponse](httpClient, baseURL+OptInFollowUpProcedure, opts...),
		addConnection:       connect.NewClient[AddConnectionRequest, StatusResponse](httpClient, baseURL+AddConnectionProcedure, opts...),
		issueChatToken:      connect.NewClient[IssueChatTokenRequest, TokenResponse](httpClient, baseURL+IssueChatTokenProcedure, opts...),
		issueGroupChatToken: connect.NewClient[GroupRequest, TokenResponse](httpClient, baseURL+IssueGroupChatTokenProcedure, opts...),
		updateProfile:       connect.NewClient[UpdateProfileRequest, UserResponse](httpClient, baseURL+UpdateProfileProcedure, opts...),
		getGroup:            connect.NewClient[GroupRequest, GroupResponse](httpClient, baseURL+GetGroupProcedure, opts...),
		syncGroupChannel:    connect.NewClient[GroupRequest, StatusResponse](httpClient, baseURL+SyncGroupChannelProcedure, opts...),
		formPendingGroups:   connect.NewClient[FormPendingGroupsRequest, FormPendingGroupsResponse](httpClient, baseURL+FormPendingGroupsProcedure, opts...),
	}
}

func (c *Client) RequestMatch(ctx context.Context, req *connect.Request[RequestMatchRequest]) (*connect.Response[RequestMatchResponse], error) {
	return c.requestMatch.CallUnary(ctx, req)
}

func (c *Client) LeaveGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	return c.leaveGroup.CallUnary(ctx, req)
}

func (c *Client) OptInFollowUp(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	return c.optInFollowUp.CallUnary(ctx, req)
}

func (c *Client) AddConnection(ctx context.Context, req *connect.Request[AddConnectionRequest]) (*connect.Response[StatusResponse], error) {
	return c.addConnection.CallUnary(ctx, req)
}

func (c *Client) IssueChatToken(ctx context.Context, req *connect.Request[IssueChatTokenRequest]) (*connect.Response[TokenResponse], error) {
	return c.issueChatToken.CallUnary(ctx, req)
}

func (c *Client) IssueGroupChatToken(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[TokenResponse], error) {
	return c.issueGroupChatToken.CallUnary(ctx, req)
}

func (c *Client) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UserResponse], error) {
	return c.updateProfile.CallUnary(ctx, req)
}

func (c *Client) GetGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *Client) SyncGroupChannel(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[StatusResponse], error) {
	return c.syncGroupChannel.CallUnary(ctx, req)
}

func (c *Client) FormPendingGroups(ctx context.Context, req *connect.Request[FormPendingGroupsRequest]) (*connect.Response[FormPendingGroupsResponse], error) {
	return c.formPendingGroups.CallUnary(ctx, req)
}
