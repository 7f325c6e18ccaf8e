package pool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tablemates/internal/storage"
	"github.com/mmynk/tablemates/internal/storage/sqlite"
)

func newTestPool(t *testing.T) (*Pool, *sqlite.SQLiteStore) {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func search(t *testing.T, store storage.Store, uid, sector string, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := store.UpdateProfile(ctx, uid, storage.ProfileUpdate{DisplayName: uid, Sector: sector})
	require.NoError(t, err)
	_, err = store.StartSearching(ctx, uid, at)
	require.NoError(t, err)
}

func uids(t *testing.T, p *Pool, sectors ...string) []string {
	t.Helper()
	users, err := Collect(p.Snapshot(context.Background(), sectors...))
	require.NoError(t, err)
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.UID)
	}
	return out
}

func TestPool_Snapshot(t *testing.T) {
	p, store := newTestPool(t)
	base := time.UnixMilli(time.Now().Add(-time.Hour).UnixMilli())

	search(t, store, "n2", "north", base.Add(2*time.Second))
	search(t, store, "n1", "north", base)
	search(t, store, "m1", "mid", base.Add(time.Second))
	search(t, store, "e1", "east", base.Add(3*time.Second))
	_, err := store.UpdateProfile(context.Background(), "idle", storage.ProfileUpdate{Sector: "north"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		sectors []string
		want    []string
	}{
		{name: "all sectors", sectors: nil, want: []string{"n1", "m1", "n2", "e1"}},
		{name: "single sector", sectors: []string{"north"}, want: []string{"n1", "n2"}},
		{name: "adjacent sectors", sectors: []string{"north", "mid"}, want: []string{"n1", "m1", "n2"}},
		{name: "duplicates collapsed", sectors: []string{"mid", "mid", ""}, want: []string{"m1"}},
		{name: "unknown sector", sectors: []string{"west"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uids(t, p, tt.sectors...))
		})
	}
}

func TestPool_SnapshotIsFreshRead(t *testing.T) {
	p, store := newTestPool(t)
	now := time.Now()

	search(t, store, "a", "north", now)
	assert.Equal(t, []string{"a"}, uids(t, p))

	search(t, store, "b", "north", now.Add(time.Second))
	assert.Equal(t, []string{"a", "b"}, uids(t, p))
}

func TestDedupe(t *testing.T) {
	assert.Nil(t, dedupe(nil))
	assert.Equal(t, []string{"a", "b"}, dedupe([]string{"a", "b", "a", ""}))
}
