package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tablemates/internal/chat"
	"github.com/mmynk/tablemates/internal/chat/chattest"
	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/storage"
	"github.com/mmynk/tablemates/internal/storage/sqlite"
)

type testEnv struct {
	store   *sqlite.SQLiteStore
	chat    *chattest.Recorder
	manager *Manager
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "lifecycle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := chattest.NewRecorder()
	return &testEnv{store: store, chat: rec, manager: New(store, rec, opts...)}
}

// formGroup commits a group of freshly searching users and provisions its channel.
func (e *testEnv) formGroup(t *testing.T, uids ...string) *models.Group {
	t.Helper()
	ctx := context.Background()
	for _, uid := range uids {
		_, err := e.store.UpdateProfile(ctx, uid, storage.ProfileUpdate{DisplayName: uid, Sector: "north"})
		require.NoError(t, err)
		_, err = e.store.StartSearching(ctx, uid, time.Now())
		require.NoError(t, err)
	}
	g := &models.Group{Name: "Test Table", Sector: "north", MemberIDs: uids, MatchTier: models.TierPerfect}
	require.NoError(t, e.store.CommitGroup(ctx, g))
	require.NoError(t, e.chat.CreateChannel(ctx, g.ID, g.Name, uids[0], uids))
	return g
}

func TestManager_Leave(t *testing.T) {
	ctx := context.Background()

	t.Run("member leaves", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.formGroup(t, "a", "b", "c")

		deleted, err := env.manager.Leave(ctx, "b", g.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		got, err := env.store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, got.MemberIDs)

		b, err := env.store.GetUser(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, models.StatusIdle, b.MatchingStatus)
		assert.Empty(t, b.GroupID)

		assert.Equal(t, []string{"a", "c"}, env.chat.Channel(g.ID).Members)
	})

	t.Run("leaving twice is not allowed", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.formGroup(t, "a", "b")

		_, err := env.manager.Leave(ctx, "a", g.ID)
		require.NoError(t, err)
		_, err = env.manager.Leave(ctx, "a", g.ID)
		assert.ErrorIs(t, err, storage.ErrNotMember)
	})

	t.Run("last member deletes the group", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.formGroup(t, "a", "b")

		_, err := env.manager.Leave(ctx, "a", g.ID)
		require.NoError(t, err)
		deleted, err := env.manager.Leave(ctx, "b", g.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = env.store.GetGroup(ctx, g.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = env.manager.Leave(ctx, "b", g.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("acceptor is pruned", func(t *testing.T) {
		env := newTestEnv(t, WithDinnerThreshold(3))
		g := env.formGroup(t, "a", "b", "c")

		_, err := env.manager.OptInFollowUp(ctx, "a", g.ID)
		require.NoError(t, err)
		_, err = env.manager.Leave(ctx, "a", g.ID)
		require.NoError(t, err)

		got, err := env.store.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Empty(t, got.StayAndDineAcceptors)
	})

	t.Run("chat failure does not block leaving", func(t *testing.T) {
		env := newTestEnv(t)
		g := env.formGroup(t, "a", "b")
		env.chat.SetErr(errors.New("stream down"))

		_, err := env.manager.Leave(ctx, "a", g.ID)
		require.NoError(t, err)
	})

	t.Run("empty ids", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.manager.Leave(ctx, "a", "")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestManager_OptInFollowUp(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.formGroup(t, "a", "b", "c")

	status, err := env.manager.OptInFollowUp(ctx, "a", g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupActive, status)

	// Idempotent: a second opt-in by the same member does not count twice.
	status, err = env.manager.OptInFollowUp(ctx, "a", g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupActive, status)

	status, err = env.manager.OptInFollowUp(ctx, "b", g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupDinnerPlanned, status)

	got, err := env.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, got.StayAndDineAcceptors)

	// One-way: losing an acceptor keeps the dinner planned.
	_, err = env.manager.Leave(ctx, "a", g.ID)
	require.NoError(t, err)
	got, err = env.store.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GroupDinnerPlanned, got.Status)

	_, err = env.manager.OptInFollowUp(ctx, "outsider", g.ID)
	assert.ErrorIs(t, err, storage.ErrNotMember)

	_, err = env.manager.OptInFollowUp(ctx, "b", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestManager_AddConnection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.formGroup(t, "a", "b")

	tests := []struct {
		name    string
		uid     string
		other   string
		wantErr error
	}{
		{name: "connect", uid: "a", other: "b"},
		{name: "repeat is a no-op", uid: "b", other: "a"},
		{name: "self", uid: "a", other: "a", wantErr: ErrInvalidArgument},
		{name: "empty", uid: "a", other: "", wantErr: ErrInvalidArgument},
		{name: "unknown user", uid: "a", other: "ghost", wantErr: storage.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.manager.AddConnection(ctx, tt.uid, tt.other)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}

	a, err := env.store.GetUser(ctx, "a")
	require.NoError(t, err)
	b, err := env.store.GetUser(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, a.Connections)
	assert.Equal(t, []string{"a"}, b.Connections)
}

// countingStore counts connection writes.
type countingStore struct {
	storage.Store
	writes int
}

func (c *countingStore) AddConnection(ctx context.Context, uid, other string) error {
	c.writes++
	return c.Store.AddConnection(ctx, uid, other)
}

func TestManager_AddConnectionSkipsExisting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.formGroup(t, "a", "b")

	store := &countingStore{Store: env.store}
	manager := New(store, env.chat)

	require.NoError(t, manager.AddConnection(ctx, "a", "b"))
	require.NoError(t, manager.AddConnection(ctx, "a", "b"))
	require.NoError(t, manager.AddConnection(ctx, "b", "a"))
	assert.Equal(t, 1, store.writes)

	assert.ErrorIs(t, manager.AddConnection(ctx, "ghost", "a"), storage.ErrNotFound)
}

func TestManager_ChatDisabled(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.formGroup(t, "a", "b")
	manager := New(env.store, chat.Nop{})

	_, err := manager.ChatToken(ctx, "a")
	assert.ErrorIs(t, err, chat.ErrDisabled)

	_, err = manager.GroupChatToken(ctx, "a", g.ID)
	assert.ErrorIs(t, err, chat.ErrDisabled)
}

func TestManager_ChatAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.formGroup(t, "a", "b")
	_, err := env.store.UpdateProfile(ctx, "outsider", storage.ProfileUpdate{Sector: "north"})
	require.NoError(t, err)

	token, err := env.manager.GroupChatToken(ctx, "a", g.ID)
	require.NoError(t, err)
	assert.Equal(t, "token:a", token)

	_, err = env.manager.GroupChatToken(ctx, "outsider", g.ID)
	assert.ErrorIs(t, err, storage.ErrNotMember)

	_, err = env.manager.GroupChatToken(ctx, "a", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	token, err = env.manager.ChatToken(ctx, "outsider")
	require.NoError(t, err)
	assert.Equal(t, "token:outsider", token)
}

func TestManager_SyncChannel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	g := env.formGroup(t, "a", "b", "c")
	_, err := env.manager.Leave(ctx, "a", g.ID)
	require.NoError(t, err)

	env.chat.SetErr(errors.New("stream down"))
	assert.Error(t, env.manager.SyncChannel(ctx, "b", g.ID))

	env.chat.SetErr(nil)
	require.NoError(t, env.manager.SyncChannel(ctx, "b", g.ID))
	ch := env.chat.Channel(g.ID)
	assert.Equal(t, []string{"b", "c"}, ch.Members)
	assert.Equal(t, "b", ch.CreatorID)
	assert.Equal(t, 2, ch.Creates)

	assert.ErrorIs(t, env.manager.SyncChannel(ctx, "a", g.ID), storage.ErrNotMember)
}
