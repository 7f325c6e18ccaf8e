package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

// CommitGroup inserts the group and claims its members atomically.
func (s *SQLiteStore) CommitGroup(ctx context.Context, group *models.Group) error {
	if len(group.MemberIDs) == 0 {
		return fmt.Errorf("group must have at least one member")
	}
	// Generate IDs if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}
	if group.Status == "" {
		group.Status = models.GroupActive
	}

	interests, err := json.Marshal(nonNil(group.MatchedInterests))
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, sector, status, match_tier, matched_interests, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		group.ID, group.Name, group.Sector, string(group.Status), string(group.MatchTier), string(interests), group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for i, uid := range group.MemberIDs {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET matching_status = ?, group_id = ?, matching_started_at = NULL
			WHERE uid = ? AND matching_status = ? AND group_id IS NULL
		`, string(models.StatusMatched), group.ID, uid, string(models.StatusSearching))
		if err != nil {
			return fmt.Errorf("failed to claim member: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to claim member: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("member %s no longer available: %w", uid, storage.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, uid, position) VALUES (?, ?, ?)",
			group.ID, uid, i,
		); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}

	if err := insertAcceptors(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID with members and acceptors in order.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return getGroup(ctx, s.db, groupID)
}

func getGroup(ctx context.Context, q queryer, groupID string) (*models.Group, error) {
	group := &models.Group{}
	var (
		status, tier string
		interests    string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, name, sector, status, match_tier, matched_interests, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Sector, &status, &tier, &interests, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Status = models.GroupStatus(status)
	group.MatchTier = models.MatchTier(tier)
	if err := json.Unmarshal([]byte(interests), &group.MatchedInterests); err != nil {
		return nil, fmt.Errorf("failed to decode interests: %w", err)
	}

	group.MemberIDs, err = listIDs(ctx, q,
		"SELECT uid FROM group_members WHERE group_id = ? ORDER BY position", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	group.StayAndDineAcceptors, err = listIDs(ctx, q,
		"SELECT uid FROM group_acceptors WHERE group_id = ? ORDER BY position", groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to get acceptors: %w", err)
	}

	return group, nil
}

// MutateGroup runs fn against the stored group and persists the result.
func (s *SQLiteStore) MutateGroup(ctx context.Context, groupID string, fn storage.GroupMutation) (*models.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	group, err := getGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	before := append([]string(nil), group.MemberIDs...)

	if err := fn(group); err != nil {
		return nil, err
	}
	if group.ID != groupID {
		return nil, fmt.Errorf("group id cannot change")
	}

	removed, added := diff(before, group.MemberIDs)
	if len(added) > 0 {
		return nil, fmt.Errorf("adding members is not supported")
	}
	for _, uid := range removed {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users
			SET matching_status = ?, group_id = NULL, matching_started_at = NULL
			WHERE uid = ? AND group_id = ?
		`, string(models.StatusIdle), uid, groupID); err != nil {
			return nil, fmt.Errorf("failed to release member: %w", err)
		}
	}

	if len(group.MemberIDs) == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID); err != nil {
			return nil, fmt.Errorf("failed to delete group: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE groups SET name = ?, status = ? WHERE id = ?",
		group.Name, string(group.Status), groupID,
	); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	for _, uid := range removed {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM group_members WHERE group_id = ? AND uid = ?", groupID, uid,
		); err != nil {
			return nil, fmt.Errorf("failed to delete member: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM group_acceptors WHERE group_id = ?", groupID,
	); err != nil {
		return nil, fmt.Errorf("failed to reset acceptors: %w", err)
	}
	if err := insertAcceptors(ctx, tx, group); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return group, nil
}

func insertAcceptors(ctx context.Context, tx *sql.Tx, group *models.Group) error {
	for i, uid := range group.StayAndDineAcceptors {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_acceptors (group_id, uid, position) VALUES (?, ?, ?)",
			group.ID, uid, i,
		); err != nil {
			return fmt.Errorf("failed to insert acceptor: %w", err)
		}
	}
	return nil
}

func listIDs(ctx context.Context, q queryer, query, groupID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// diff returns the IDs only in before (removed) and only in after (added).
func diff(before, after []string) (removed, added []string) {
	inAfter := make(map[string]bool, len(after))
	for _, id := range after {
		inAfter[id] = true
	}
	inBefore := make(map[string]bool, len(before))
	for _, id := range before {
		inBefore[id] = true
		if !inAfter[id] {
			removed = append(removed, id)
		}
	}
	for _, id := range after {
		if !inBefore[id] {
			added = append(added, id)
		}
	}
	return removed, added
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
