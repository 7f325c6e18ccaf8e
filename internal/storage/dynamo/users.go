package dynamo

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

func userKey(uid string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"uid": str(uid)}
}

func decodeUser(item map[string]types.AttributeValue) (*models.User, error) {
	var it userItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return it.toModel(), nil
}

// GetUser retrieves a user with a strongly consistent read.
func (s *Store) GetUser(ctx context.Context, uid string) (*models.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.cfg.UsersTable),
		Key:            userKey(uid),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user from table '%s': %w", s.cfg.UsersTable, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", uid, storage.ErrNotFound)
	}
	return decodeUser(out.Item)
}

// UpdateProfile upserts the profile attributes of a user.
func (s *Store) UpdateProfile(ctx context.Context, uid string, update storage.ProfileUpdate) (*models.User, error) {
	values := map[string]types.AttributeValue{
		":dn":   str(update.DisplayName),
		":sec":  str(update.Sector),
		":now":  num(time.Now().Unix()),
		":idle": str(string(models.StatusIdle)),
	}
	expr := "SET display_name = :dn, sector = :sec, updated_at = :now, matching_status = if_not_exists(matching_status, :idle)"
	if p := toPersonalityItem(update.Personality); p != nil {
		av, err := attributevalue.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal personality: %w", err)
		}
		values[":p"] = av
		expr += ", personality = :p"
	} else {
		expr += " REMOVE personality"
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.cfg.UsersTable),
		Key:                       userKey(uid),
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update profile in table '%s': %w", s.cfg.UsersTable, err)
	}
	return decodeUser(out.Attributes)
}

// StartSearching moves the user into the pool, conditioned on the status it
// was read with so a concurrent claim is never overwritten.
func (s *Store) StartSearching(ctx context.Context, uid string, at time.Time) (*models.User, error) {
	user, err := s.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	if user.IsSearching() {
		return user, nil
	}
	if user.GroupID != "" {
		if _, err := s.GetGroup(ctx, user.GroupID); err == nil {
			return user, nil
		} else if !isNotFound(err) {
			return nil, err
		}
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.cfg.UsersTable),
		Key:                 userKey(uid),
		UpdateExpression:    aws.String("SET matching_status = :searching, matching_started_at = :at REMOVE group_id"),
		ConditionExpression: aws.String("attribute_exists(uid) AND matching_status = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":searching": str(string(models.StatusSearching)),
			":at":        num(at.UnixMilli()),
			":prev":      str(string(user.MatchingStatus)),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		// Someone else moved the user first; report what is there now.
		return s.GetUser(ctx, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to start searching: %w", err)
	}
	return decodeUser(out.Attributes)
}

// SearchingUsers pages through the status index lazily, oldest waiter first.
func (s *Store) SearchingUsers(ctx context.Context, sectors []string) iter.Seq2[*models.User, error] {
	return func(yield func(*models.User, error) bool) {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.cfg.UsersTable),
			IndexName:              aws.String(s.cfg.StatusIndex),
			KeyConditionExpression: aws.String("matching_status = :searching"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":searching": str(string(models.StatusSearching)),
			},
			ScanIndexForward: aws.Bool(true),
		}
		if len(sectors) > 0 {
			refs := make([]string, len(sectors))
			for i, sector := range sectors {
				ref := fmt.Sprintf(":s%d", i)
				refs[i] = ref
				input.ExpressionAttributeValues[ref] = str(sector)
			}
			input.FilterExpression = aws.String("#sector IN (" + strings.Join(refs, ", ") + ")")
			input.ExpressionAttributeNames = map[string]string{"#sector": "sector"}
		}

		paginator := dynamodb.NewQueryPaginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, fmt.Errorf("failed to query pool: %w", err))
				return
			}
			for _, item := range page.Items {
				user, err := decodeUser(item)
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(user, nil) {
					return
				}
			}
		}
	}
}

// AddConnection adds each user to the other's connection string set.
func (s *Store) AddConnection(ctx context.Context, uid, other string) error {
	update := func(owner, peer string) types.TransactWriteItem {
		return types.TransactWriteItem{Update: &types.Update{
			TableName:           aws.String(s.cfg.UsersTable),
			Key:                 userKey(owner),
			UpdateExpression:    aws.String("ADD #conn :peer"),
			ConditionExpression: aws.String("attribute_exists(uid)"),
			ExpressionAttributeNames: map[string]string{
				"#conn": "connections",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":peer": &types.AttributeValueMemberSS{Value: []string{peer}},
			},
		}}
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{update(uid, other), update(other, uid)},
	})
	if isCanceled(err) {
		return fmt.Errorf("connection %s-%s: %w", uid, other, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to add connection: %w", err)
	}
	return nil
}
