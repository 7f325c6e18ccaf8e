package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSearching(t *testing.T, store *SQLiteStore, sector string, at time.Time, uids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, uid := range uids {
		if _, err := store.UpdateProfile(ctx, uid, storage.ProfileUpdate{DisplayName: uid, Sector: sector}); err != nil {
			t.Fatalf("UpdateProfile(%s) failed: %v", uid, err)
		}
		if _, err := store.StartSearching(ctx, uid, at); err != nil {
			t.Fatalf("StartSearching(%s) failed: %v", uid, err)
		}
	}
}

func TestSQLiteStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("UpdateProfile creates idle user with personality", func(t *testing.T) {
		user, err := store.UpdateProfile(ctx, "alice", storage.ProfileUpdate{
			DisplayName: "Alice",
			Sector:      "north",
			Personality: &models.Personality{
				Extraversion:      7,
				Openness:          4,
				ChillFactor:       6,
				ConversationStyle: "deep",
				Interests:         []string{"jazz", "hiking"},
			},
		})
		if err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if user.MatchingStatus != models.StatusIdle {
			t.Errorf("status: expected idle, got %s", user.MatchingStatus)
		}
		if user.Personality == nil || user.Personality.Extraversion != 7 {
			t.Fatalf("personality not stored: %+v", user.Personality)
		}
		if len(user.Personality.Interests) != 2 {
			t.Errorf("interests: expected 2, got %d", len(user.Personality.Interests))
		}
	})

	t.Run("GetUser missing returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetUser(ctx, "nobody")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("StartSearching keeps original start time", func(t *testing.T) {
		first := time.UnixMilli(time.Now().Add(-2 * time.Minute).UnixMilli())
		user, err := store.StartSearching(ctx, "alice", first)
		if err != nil {
			t.Fatalf("StartSearching failed: %v", err)
		}
		if !user.IsSearching() {
			t.Fatalf("expected searching, got %s", user.MatchingStatus)
		}

		user, err = store.StartSearching(ctx, "alice", time.Now())
		if err != nil {
			t.Fatalf("StartSearching failed: %v", err)
		}
		if user.MatchingStartedAt == nil || !user.MatchingStartedAt.Equal(first) {
			t.Errorf("started_at: expected %v, got %v", first, user.MatchingStartedAt)
		}
	})

	t.Run("UpdateProfile leaves matching state alone", func(t *testing.T) {
		user, err := store.UpdateProfile(ctx, "alice", storage.ProfileUpdate{DisplayName: "Alice B", Sector: "mid"})
		if err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		if !user.IsSearching() {
			t.Errorf("status: expected searching, got %s", user.MatchingStatus)
		}
		if user.Personality != nil {
			t.Errorf("expected personality cleared, got %+v", user.Personality)
		}
	})

	t.Run("AddConnection is symmetric and idempotent", func(t *testing.T) {
		if _, err := store.UpdateProfile(ctx, "bob", storage.ProfileUpdate{Sector: "north"}); err != nil {
			t.Fatalf("UpdateProfile failed: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := store.AddConnection(ctx, "alice", "bob"); err != nil {
				t.Fatalf("AddConnection failed: %v", err)
			}
		}
		alice, _ := store.GetUser(ctx, "alice")
		bob, _ := store.GetUser(ctx, "bob")
		if len(alice.Connections) != 1 || alice.Connections[0] != "bob" {
			t.Errorf("alice connections: %v", alice.Connections)
		}
		if len(bob.Connections) != 1 || bob.Connections[0] != "alice" {
			t.Errorf("bob connections: %v", bob.Connections)
		}

		if err := store.AddConnection(ctx, "alice", "ghost"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSQLiteStore_SearchingUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	seedSearching(t, store, "north", base.Add(2*time.Second), "n2")
	seedSearching(t, store, "north", base, "n1")
	seedSearching(t, store, "mid", base.Add(time.Second), "m1")
	seedSearching(t, store, "south", base.Add(3*time.Second), "s1")
	if _, err := store.UpdateProfile(ctx, "idle", storage.ProfileUpdate{Sector: "north"}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	collect := func(sectors ...string) []string {
		var ids []string
		for user, err := range store.SearchingUsers(ctx, sectors) {
			if err != nil {
				t.Fatalf("SearchingUsers failed: %v", err)
			}
			ids = append(ids, user.UID)
		}
		return ids
	}

	tests := []struct {
		name    string
		sectors []string
		want    []string
	}{
		{"all sectors oldest first", nil, []string{"n1", "m1", "n2", "s1"}},
		{"single sector", []string{"north"}, []string{"n1", "n2"}},
		{"expanded sectors", []string{"north", "mid"}, []string{"n1", "m1", "n2"}},
		{"unknown sector", []string{"east"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(tt.sectors...)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], got[i])
				}
			}
		})
	}

	t.Run("early break releases the connection", func(t *testing.T) {
		for range store.SearchingUsers(ctx, nil) {
			break
		}
		if _, err := store.GetUser(ctx, "n1"); err != nil {
			t.Fatalf("GetUser after break failed: %v", err)
		}
	})
}

func TestSQLiteStore_CommitGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSearching(t, store, "north", time.Now(), "a", "b", "c", "d")

	group := &models.Group{
		Name:             "The Curious Otters",
		Sector:           "north",
		MemberIDs:        []string{"a", "b", "c"},
		MatchTier:        models.TierExpandedPartial,
		MatchedInterests: []string{"jazz"},
	}
	if err := store.CommitGroup(ctx, group); err != nil {
		t.Fatalf("CommitGroup failed: %v", err)
	}
	if group.ID == "" || group.CreatedAt == 0 {
		t.Fatalf("expected ID and CreatedAt to be generated: %+v", group)
	}

	for _, uid := range group.MemberIDs {
		user, err := store.GetUser(ctx, uid)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if user.MatchingStatus != models.StatusMatched || user.GroupID != group.ID {
			t.Errorf("%s: expected matched in %s, got %s/%s", uid, group.ID, user.MatchingStatus, user.GroupID)
		}
		if user.MatchingStartedAt != nil {
			t.Errorf("%s: expected started_at cleared", uid)
		}
	}

	stored, err := store.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if stored.Status != models.GroupActive || stored.MatchTier != models.TierExpandedPartial {
		t.Errorf("unexpected group: %+v", stored)
	}
	if len(stored.MemberIDs) != 3 || stored.MemberIDs[0] != "a" {
		t.Errorf("members: %v", stored.MemberIDs)
	}

	t.Run("overlapping commit fails without partial claims", func(t *testing.T) {
		err := store.CommitGroup(ctx, &models.Group{
			Sector:    "north",
			MemberIDs: []string{"d", "c"},
			MatchTier: models.TierGuaranteed,
		})
		if !errors.Is(err, storage.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		d, _ := store.GetUser(ctx, "d")
		if !d.IsSearching() || d.GroupID != "" {
			t.Errorf("d should still be searching, got %s/%s", d.MatchingStatus, d.GroupID)
		}
	})

	t.Run("StartSearching leaves grouped user alone", func(t *testing.T) {
		user, err := store.StartSearching(ctx, "a", time.Now())
		if err != nil {
			t.Fatalf("StartSearching failed: %v", err)
		}
		if user.MatchingStatus != models.StatusMatched || user.GroupID != group.ID {
			t.Errorf("expected a to stay matched, got %s/%s", user.MatchingStatus, user.GroupID)
		}
	})
}

func TestSQLiteStore_CommitGroup_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSearching(t, store, "north", time.Now(), "a", "b", "c", "d", "e")

	sets := [][]string{{"a", "b"}, {"b", "c"}, {"c", "d"}, {"d", "e"}, {"e", "a"}}
	var wg sync.WaitGroup
	results := make([]error, len(sets))
	for i, members := range sets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = store.CommitGroup(ctx, &models.Group{
				Sector:    "north",
				MemberIDs: members,
				MatchTier: models.TierGuaranteed,
			})
		}()
	}
	wg.Wait()

	seen := map[string]string{}
	for i, err := range results {
		if err != nil {
			if !errors.Is(err, storage.ErrConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			continue
		}
		for _, uid := range sets[i] {
			if prev, ok := seen[uid]; ok {
				t.Fatalf("%s claimed twice (%s and set %d)", uid, prev, i)
			}
			seen[uid] = "set"
		}
	}
	if len(seen) == 0 {
		t.Fatal("expected at least one commit to succeed")
	}
}

func TestSQLiteStore_MutateGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedSearching(t, store, "north", time.Now(), "a", "b")

	group := &models.Group{Sector: "north", MemberIDs: []string{"a", "b"}, MatchTier: models.TierGuaranteed}
	if err := store.CommitGroup(ctx, group); err != nil {
		t.Fatalf("CommitGroup failed: %v", err)
	}

	t.Run("fn error aborts", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := store.MutateGroup(ctx, group.ID, func(g *models.Group) error {
			g.MemberIDs = nil
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		stored, _ := store.GetGroup(ctx, group.ID)
		if len(stored.MemberIDs) != 2 {
			t.Errorf("members changed despite abort: %v", stored.MemberIDs)
		}
	})

	t.Run("acceptors and status persist", func(t *testing.T) {
		updated, err := store.MutateGroup(ctx, group.ID, func(g *models.Group) error {
			g.StayAndDineAcceptors = append(g.StayAndDineAcceptors, "b")
			g.Status = models.GroupDinnerPlanned
			return nil
		})
		if err != nil {
			t.Fatalf("MutateGroup failed: %v", err)
		}
		stored, _ := store.GetGroup(ctx, group.ID)
		if stored.Status != models.GroupDinnerPlanned || len(stored.StayAndDineAcceptors) != 1 {
			t.Errorf("unexpected group: %+v (returned %+v)", stored, updated)
		}
	})

	t.Run("removing members releases them and deletes empty group", func(t *testing.T) {
		if _, err := store.MutateGroup(ctx, group.ID, func(g *models.Group) error {
			g.RemoveMember("a")
			return nil
		}); err != nil {
			t.Fatalf("MutateGroup failed: %v", err)
		}
		a, _ := store.GetUser(ctx, "a")
		if a.MatchingStatus != models.StatusIdle || a.GroupID != "" {
			t.Errorf("a not released: %s/%s", a.MatchingStatus, a.GroupID)
		}

		deleted, err := store.MutateGroup(ctx, group.ID, func(g *models.Group) error {
			g.RemoveMember("b")
			return nil
		})
		if err != nil {
			t.Fatalf("MutateGroup failed: %v", err)
		}
		if deleted != nil {
			t.Errorf("expected nil group after last member left, got %+v", deleted)
		}
		if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing group", func(t *testing.T) {
		_, err := store.MutateGroup(ctx, "nope", func(g *models.Group) error { return nil })
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
