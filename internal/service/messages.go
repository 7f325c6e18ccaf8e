package service

import "github.com/mmynk/tablemates/internal/models"

// MatchServiceName is the fully-qualified name of the match service.
const MatchServiceName = "tablemates.v1.MatchService"

// Procedure paths, one per RPC.
const (
	RequestMatchProcedure        = "/" + MatchServiceName + "/RequestMatch"
	LeaveGroupProcedure          = "/" + MatchServiceName + "/LeaveGroup"
	OptInFollowUpProcedure       = "/" + MatchServiceName + "/OptInFollowUp"
	AddConnectionProcedure       = "/" + MatchServiceName + "/AddConnection"
	IssueChatTokenProcedure      = "/" + MatchServiceName + "/IssueChatToken"
	IssueGroupChatTokenProcedure = "/" + MatchServiceName + "/IssueGroupChatToken"
	UpdateProfileProcedure       = "/" + MatchServiceName + "/UpdateProfile"
	GetGroupProcedure            = "/" + MatchServiceName + "/GetGroup"
	SyncGroupChannelProcedure    = "/" + MatchServiceName + "/SyncGroupChannel"
	FormPendingGroupsProcedure   = "/" + MatchServiceName + "/FormPendingGroups"
)

// Follow-up statuses returned by OptInFollowUp.
const (
	FollowUpWaiting   = "waiting"
	FollowUpConfirmed = "confirmed"
)

// StatusOK is returned by RPCs with no other result.
const StatusOK = "ok"

type RequestMatchRequest struct{}

type RequestMatchResponse struct {
	Status  string `json:"status"`
	GroupID string `json:"group_id,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

type FormPendingGroupsRequest struct{}

type FormPendingGroupsResponse struct {
	GroupsFormed int      `json:"groups_formed"`
	GroupIDs     []string `json:"group_ids"`
	Skipped      int      `json:"skipped"`
}

// GroupRequest addresses one group on behalf of the caller.
type GroupRequest struct {
	GroupID string `json:"group_id"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type AddConnectionRequest struct {
	OtherUID string `json:"other_uid"`
}

type IssueChatTokenRequest struct{}

type TokenResponse struct {
	Token string `json:"token"`
}

type Personality struct {
	Extraversion      int      `json:"extraversion"`
	Openness          int      `json:"openness"`
	ChillFactor       int      `json:"chill_factor"`
	ConversationStyle string   `json:"conversation_style,omitempty"`
	Interests         []string `json:"interests,omitempty"`
}

type UpdateProfileRequest struct {
	DisplayName string       `json:"display_name"`
	Sector      string       `json:"sector"`
	Personality *Personality `json:"personality,omitempty"`
}

type User struct {
	UID            string       `json:"uid"`
	DisplayName    string       `json:"display_name"`
	Sector         string       `json:"sector"`
	Personality    *Personality `json:"personality,omitempty"`
	MatchingStatus string       `json:"matching_status"`
	GroupID        string       `json:"group_id,omitempty"`
	Connections    []string     `json:"connections,omitempty"`
}

type UserResponse struct {
	User *User `json:"user"`
}

type Group struct {
	ID                   string   `json:"group_id"`
	Name                 string   `json:"name"`
	Sector               string   `json:"sector"`
	Status               string   `json:"status"`
	MemberIDs            []string `json:"member_ids"`
	MatchTier            string   `json:"match_tier"`
	MatchedInterests     []string `json:"matched_interests"`
	StayAndDineAcceptors []string `json:"stay_and_dine_acceptors"`
	CreatedAt            int64    `json:"created_at"`
}

type GroupResponse struct {
	Group *Group `json:"group"`
}

func toUser(u *models.User) *User {
	out := &User{
		UID:            u.UID,
		DisplayName:    u.DisplayName,
		Sector:         u.Sector,
		MatchingStatus: string(u.MatchingStatus),
		GroupID:        u.GroupID,
		Connections:    u.Connections,
	}
	if p := u.Personality; p != nil {
		out.Personality = &Personality{
			Extraversion:      p.Extraversion,
			Openness:          p.Openness,
			ChillFactor:       p.ChillFactor,
			ConversationStyle: p.ConversationStyle,
			Interests:         p.Interests,
		}
	}
	return out
}

func toGroup(g *models.Group) *Group {
	return &Group{
		ID:                   g.ID,
		Name:                 g.Name,
		Sector:               g.Sector,
		Status:               string(g.Status),
		MemberIDs:            g.MemberIDs,
		MatchTier:            string(g.MatchTier),
		MatchedInterests:     g.MatchedInterests,
		StayAndDineAcceptors: g.StayAndDineAcceptors,
		CreatedAt:            g.CreatedAt,
	}
}
