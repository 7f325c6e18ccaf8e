package service

import (
	"net/http"

	"connectrpc.com/connect"
)

// NewMatchServiceHandler builds an HTTP handler serving every MatchService
// procedure. It returns the path to mount the handler on.
func NewMatchServiceHandler(svc *MatchService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(RequestMatchProcedure, connect.NewUnaryHandler(RequestMatchProcedure, svc.RequestMatch, opts...))
	mux.Handle(LeaveGroupProcedure, connect.NewUnaryHandler(LeaveGroupProcedure, svc.LeaveGroup, opts...))
	mux.Handle(OptInFollowUpProcedure, connect.NewUnaryHandler(OptInFollowUpProcedure, svc.OptInFollowUp, opts...))
	mux.Handle(AddConnectionProcedure, connect.NewUnaryHandler(AddConnectionProcedure, svc.AddConnection, opts...))
	mux.Handle(IssueChatTokenProcedure, connect.NewUnaryHandler(IssueChatTokenProcedure, svc.IssueChatToken, opts...))
	mux.Handle(IssueGroupChatTokenProcedure, connect.NewUnaryHandler(IssueGroupChatTokenProcedure, svc.IssueGroupChatToken, opts...))
	mux.Handle(UpdateProfileProcedure, connect.NewUnaryHandler(UpdateProfileProcedure, svc.UpdateProfile, opts...))
	mux.Handle(GetGroupProcedure, connect.NewUnaryHandler(GetGroupProcedure, svc.GetGroup, opts...))
	mux.Handle(SyncGroupChannelProcedure, connect.NewUnaryHandler(SyncGroupChannelProcedure, svc.SyncGroupChannel, opts...))
	mux.Handle(FormPendingGroupsProcedure, connect.NewUnaryHandler(FormPendingGroupsProcedure, svc.FormPendingGroups, opts...))

	return "/" + MatchServiceName + "/", mux
}
