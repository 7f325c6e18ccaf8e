package dynamo

import (
	"time"

	"github.com/mmynk/tablemates/internal/models"
)

// userItem is the users table record, keyed by uid.
type userItem struct {
	UID               string           `dynamodbav:"uid"`
	DisplayName       string           `dynamodbav:"display_name"`
	Sector            string           `dynamodbav:"sector"`
	Personality       *personalityItem `dynamodbav:"personality,omitempty"`
	MatchingStatus    string           `dynamodbav:"matching_status"`
	MatchingStartedAt *int64           `dynamodbav:"matching_started_at,omitempty"`
	GroupID           string           `dynamodbav:"group_id,omitempty"`
	Connections       []string         `dynamodbav:"connections,stringset,omitempty"`
	UpdatedAt         int64            `dynamodbav:"updated_at"`
}

type personalityItem struct {
	Extraversion      int      `dynamodbav:"extraversion"`
	Openness          int      `dynamodbav:"openness"`
	ChillFactor       int      `dynamodbav:"chill_factor"`
	ConversationStyle string   `dynamodbav:"conversation_style,omitempty"`
	Interests         []string `dynamodbav:"interests,omitempty"`
}

// groupItem is the groups table record, keyed by group_id.
type groupItem struct {
	ID                   string   `dynamodbav:"group_id"`
	Name                 string   `dynamodbav:"name"`
	Sector               string   `dynamodbav:"sector"`
	Status               string   `dynamodbav:"status"`
	MemberIDs            []string `dynamodbav:"member_ids"`
	MatchTier            string   `dynamodbav:"match_tier"`
	MatchedInterests     []string `dynamodbav:"matched_interests"`
	StayAndDineAcceptors []string `dynamodbav:"stay_and_dine_acceptors"`
	CreatedAt            int64    `dynamodbav:"created_at"`
	Version              int64    `dynamodbav:"version"`
}

func (it *userItem) toModel() *models.User {
	user := &models.User{
		UID:            it.UID,
		DisplayName:    it.DisplayName,
		Sector:         it.Sector,
		MatchingStatus: models.MatchingStatus(it.MatchingStatus),
		GroupID:        it.GroupID,
		Connections:    it.Connections,
		UpdatedAt:      it.UpdatedAt,
	}
	if it.MatchingStartedAt != nil {
		t := time.UnixMilli(*it.MatchingStartedAt)
		user.MatchingStartedAt = &t
	}
	if it.Personality != nil {
		user.Personality = &models.Personality{
			Extraversion:      it.Personality.Extraversion,
			Openness:          it.Personality.Openness,
			ChillFactor:       it.Personality.ChillFactor,
			ConversationStyle: it.Personality.ConversationStyle,
			Interests:         it.Personality.Interests,
		}
	}
	return user
}

func toPersonalityItem(p *models.Personality) *personalityItem {
	if p == nil {
		return nil
	}
	return &personalityItem{
		Extraversion:      p.Extraversion,
		Openness:          p.Openness,
		ChillFactor:       p.ChillFactor,
		ConversationStyle: p.ConversationStyle,
		Interests:         p.Interests,
	}
}

func (it *groupItem) toModel() *models.Group {
	return &models.Group{
		ID:                   it.ID,
		Name:                 it.Name,
		Sector:               it.Sector,
		Status:               models.GroupStatus(it.Status),
		MemberIDs:            it.MemberIDs,
		MatchTier:            models.MatchTier(it.MatchTier),
		MatchedInterests:     it.MatchedInterests,
		StayAndDineAcceptors: it.StayAndDineAcceptors,
		CreatedAt:            it.CreatedAt,
	}
}

func toGroupItem(g *models.Group, version int64) groupItem {
	return groupItem{
		ID:                   g.ID,
		Name:                 g.Name,
		Sector:               g.Sector,
		Status:               string(g.Status),
		MemberIDs:            orEmpty(g.MemberIDs),
		MatchTier:            string(g.MatchTier),
		MatchedInterests:     orEmpty(g.MatchedInterests),
		StayAndDineAcceptors: orEmpty(g.StayAndDineAcceptors),
		CreatedAt:            g.CreatedAt,
		Version:              version,
	}
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
