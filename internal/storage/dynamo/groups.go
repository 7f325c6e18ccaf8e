package dynamo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

// maxTransactItems is DynamoDB's TransactWriteItems limit.
const maxTransactItems = 100

func groupKey(groupID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"group_id": str(groupID)}
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}

func (s *Store) getGroupItem(ctx context.Context, groupID string) (*groupItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.cfg.GroupsTable),
		Key:            groupKey(groupID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get group from table '%s': %w", s.cfg.GroupsTable, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	var it groupItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal group: %w", err)
	}
	return &it, nil
}

// GetGroup retrieves a group with a strongly consistent read.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	it, err := s.getGroupItem(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return it.toModel(), nil
}

// CommitGroup writes the group and claims every member in one transaction.
func (s *Store) CommitGroup(ctx context.Context, group *models.Group) error {
	if len(group.MemberIDs) == 0 {
		return fmt.Errorf("group must have at least one member")
	}
	if len(group.MemberIDs)+1 > maxTransactItems {
		return fmt.Errorf("group too large for one transaction: %d members", len(group.MemberIDs))
	}
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	if group.Status == "" {
		group.Status = models.GroupActive
	}

	item, err := attributevalue.MarshalMap(toGroupItem(group, 1))
	if err != nil {
		return fmt.Errorf("failed to marshal group: %w", err)
	}

	items := []types.TransactWriteItem{{Put: &types.Put{
		TableName:           aws.String(s.cfg.GroupsTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(group_id)"),
	}}}
	for _, uid := range group.MemberIDs {
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.cfg.UsersTable),
			Key:                 userKey(uid),
			UpdateExpression:    aws.String("SET matching_status = :matched, group_id = :gid REMOVE matching_started_at"),
			ConditionExpression: aws.String("matching_status = :searching AND attribute_not_exists(group_id)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":matched":   str(string(models.StatusMatched)),
				":searching": str(string(models.StatusSearching)),
				":gid":       str(group.ID),
			},
		}})
	}

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems:      items,
		ClientRequestToken: aws.String(group.ID),
	})
	if isCanceled(err) {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to commit group: %w", err)
	}
	return nil
}

// MutateGroup applies fn under optimistic concurrency on the version
// attribute, retrying a bounded number of times on contention.
func (s *Store) MutateGroup(ctx context.Context, groupID string, fn storage.GroupMutation) (*models.Group, error) {
	for attempt := 0; attempt < maxMutateAttempts; attempt++ {
		it, err := s.getGroupItem(ctx, groupID)
		if err != nil {
			return nil, err
		}
		group := it.toModel()
		before := slices.Clone(group.MemberIDs)

		if err := fn(group); err != nil {
			return nil, err
		}
		if group.ID != groupID {
			return nil, fmt.Errorf("group id cannot change")
		}

		items, err := s.mutationItems(it.Version, before, group)
		if err != nil {
			return nil, err
		}

		_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if isCanceled(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to mutate group: %w", err)
		}
		if len(group.MemberIDs) == 0 {
			return nil, nil
		}
		return group, nil
	}
	return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrConflict)
}

func (s *Store) mutationItems(version int64, before []string, group *models.Group) ([]types.TransactWriteItem, error) {
	var removed []string
	for _, uid := range before {
		if !group.HasMember(uid) {
			removed = append(removed, uid)
		}
	}
	for _, uid := range group.MemberIDs {
		if !slices.Contains(before, uid) {
			return nil, fmt.Errorf("adding members is not supported")
		}
	}

	guard := map[string]types.AttributeValue{":v": num(version)}
	var items []types.TransactWriteItem
	if len(group.MemberIDs) == 0 {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName:                 aws.String(s.cfg.GroupsTable),
			Key:                       groupKey(group.ID),
			ConditionExpression:       aws.String("#version = :v"),
			ExpressionAttributeNames:  map[string]string{"#version": "version"},
			ExpressionAttributeValues: guard,
		}})
	} else {
		item, err := attributevalue.MarshalMap(toGroupItem(group, version+1))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal group: %w", err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:                 aws.String(s.cfg.GroupsTable),
			Item:                      item,
			ConditionExpression:       aws.String("#version = :v"),
			ExpressionAttributeNames:  map[string]string{"#version": "version"},
			ExpressionAttributeValues: guard,
		}})
	}

	for _, uid := range removed {
		items = append(items, types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.cfg.UsersTable),
			Key:                 userKey(uid),
			UpdateExpression:    aws.String("SET matching_status = :idle REMOVE group_id, matching_started_at"),
			ConditionExpression: aws.String("group_id = :gid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":idle": str(string(models.StatusIdle)),
				":gid":  str(group.ID),
			},
		}})
	}
	return items, nil
}
