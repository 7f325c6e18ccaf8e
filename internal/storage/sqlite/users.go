package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

const userColumns = `uid, display_name, sector, personality, matching_status, matching_started_at, group_id, updated_at`

// personalityRecord is the JSON shape of the personality column.
type personalityRecord struct {
	Extraversion      int      `json:"extraversion"`
	Openness          int      `json:"openness"`
	ChillFactor       int      `json:"chill_factor"`
	ConversationStyle string   `json:"conversation_style,omitempty"`
	Interests         []string `json:"interests,omitempty"`
}

func encodePersonality(p *models.Personality) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(personalityRecord{
		Extraversion:      p.Extraversion,
		Openness:          p.Openness,
		ChillFactor:       p.ChillFactor,
		ConversationStyle: p.ConversationStyle,
		Interests:         p.Interests,
	})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode personality: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user        models.User
		status      string
		personality sql.NullString
		startedAt   sql.NullInt64
		groupID     sql.NullString
	)
	if err := row.Scan(
		&user.UID,
		&user.DisplayName,
		&user.Sector,
		&personality,
		&status,
		&startedAt,
		&groupID,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	user.MatchingStatus = models.MatchingStatus(status)
	user.GroupID = groupID.String
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64)
		user.MatchingStartedAt = &t
	}
	if personality.Valid {
		var rec personalityRecord
		if err := json.Unmarshal([]byte(personality.String), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode personality for %s: %w", user.UID, err)
		}
		user.Personality = &models.Personality{
			Extraversion:      rec.Extraversion,
			Openness:          rec.Openness,
			ChillFactor:       rec.ChillFactor,
			ConversationStyle: rec.ConversationStyle,
			Interests:         rec.Interests,
		}
	}
	return &user, nil
}

// getUser loads a user and its connections through q.
func getUser(ctx context.Context, q queryer, uid string) (*models.User, error) {
	user, err := scanUser(q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE uid = ?", uid,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", uid, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		"SELECT other_uid FROM connections WHERE uid = ? ORDER BY other_uid", uid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var other string
		if err := rows.Scan(&other); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		user.Connections = append(user.Connections, other)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by UID, including its connections.
func (s *SQLiteStore) GetUser(ctx context.Context, uid string) (*models.User, error) {
	return getUser(ctx, s.db, uid)
}

// UpdateProfile upserts the profile columns of a user.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, uid string, update storage.ProfileUpdate) (*models.User, error) {
	personality, err := encodePersonality(update.Personality)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (uid, display_name, sector, personality, matching_status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			display_name = excluded.display_name,
			sector = excluded.sector,
			personality = excluded.personality,
			updated_at = excluded.updated_at
	`, uid, update.DisplayName, update.Sector, personality, string(models.StatusIdle), time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	user, err := getUser(ctx, tx, uid)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// StartSearching puts the user in the pool unless it is already searching or
// still belongs to an existing group.
func (s *SQLiteStore) StartSearching(ctx context.Context, uid string, at time.Time) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE users
		SET matching_status = ?, matching_started_at = ?, group_id = NULL
		WHERE uid = ?
			AND matching_status <> ?
			AND (group_id IS NULL OR group_id NOT IN (SELECT id FROM groups))
	`, string(models.StatusSearching), at.UnixMilli(), uid, string(models.StatusSearching))
	if err != nil {
		return nil, fmt.Errorf("failed to start searching: %w", err)
	}

	user, err := getUser(ctx, tx, uid)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, nil
}

// SearchingUsers streams the searching pool, oldest waiter first.
func (s *SQLiteStore) SearchingUsers(ctx context.Context, sectors []string) iter.Seq2[*models.User, error] {
	return func(yield func(*models.User, error) bool) {
		query := "SELECT " + userColumns + " FROM users WHERE matching_status = ?"
		args := []any{string(models.StatusSearching)}
		if len(sectors) > 0 {
			query += " AND sector IN (" + placeholders(len(sectors)) + ")"
			args = append(args, toArgs(sectors)...)
		}
		query += " ORDER BY matching_started_at, uid"

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query pool: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				yield(nil, fmt.Errorf("failed to scan pool user: %w", err))
				return
			}
			if !yield(user, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("failed to iterate pool: %w", err))
		}
	}
}

// AddConnection inserts the connection in both directions.
func (s *SQLiteStore) AddConnection(ctx context.Context, uid, other string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE uid IN (?, ?)", uid, other,
	).Scan(&count); err != nil {
		return fmt.Errorf("failed to check users: %w", err)
	}
	if count != 2 {
		return fmt.Errorf("connection %s-%s: %w", uid, other, storage.ErrNotFound)
	}

	now := time.Now().Unix()
	for _, pair := range [][2]string{{uid, other}, {other, uid}} {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO connections (uid, other_uid, created_at) VALUES (?, ?, ?)",
			pair[0], pair[1], now,
		); err != nil {
			return fmt.Errorf("failed to insert connection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
