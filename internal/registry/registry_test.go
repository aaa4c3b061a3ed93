package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasvdk5/WestBay/internal/persistence"
	"github.com/vikasvdk5/WestBay/internal/runstate"
)

func newTestRegistry(t *testing.T) (*Registry, *persistence.SQLiteStore) {
	t.Helper()
	store, err := persistence.NewMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg, err := New(store, 4, nil)
	require.NoError(t, err)
	return reg, store
}

func TestCreateAndGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	rs, err := reg.Create(ctx, "sess-1", "EV battery market", runstate.DefaultRequirements("EV battery market"))
	require.NoError(t, err)
	assert.Equal(t, runstate.StatusInitialized, rs.Status)

	got, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "EV battery market", got.Requirements.Topic)

	_, err = reg.Create(ctx, "sess-1", "again", runstate.DefaultRequirements("x"))
	assert.ErrorIs(t, err, ErrExists)

	_, err = reg.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetReturnsIndependentSnapshot(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "sess-1", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	snap, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	snap.Completion[runstate.RoleCollector] = true
	snap.CompletedTasks = append(snap.CompletedTasks, "tampered")

	fresh, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, fresh.Completion[runstate.RoleCollector])
	assert.Empty(t, fresh.CompletedTasks)
}

func TestUpdateAppliesReducersAndPersists(t *testing.T) {
	reg, store := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "sess-1", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	_, err = reg.Update(ctx, "sess-1", runstate.Update{
		ID:             "sess-1/data_collector/4",
		Status:         runstate.StatusWebResearchComplete,
		CompletedTasks: []string{"web_data_collection"},
		Completion:     map[runstate.Role]bool{runstate.RoleCollector: true},
	})
	require.NoError(t, err)

	// Replaying the same update is a no-op.
	rs, err := reg.Update(ctx, "sess-1", runstate.Update{
		ID:             "sess-1/data_collector/4",
		CompletedTasks: []string{"web_data_collection"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"web_data_collection"}, rs.CompletedTasks)

	stored, err := store.GetRun(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, runstate.StatusWebResearchComplete, stored.Status)
	assert.True(t, stored.Completion[runstate.RoleCollector])
}

func TestUpdateRejectsWriteOnceConflict(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "sess-1", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	_, err = reg.Update(ctx, "sess-1", runstate.Update{
		RequiredRoles: []runstate.Role{runstate.RoleCollector, runstate.RoleFallbackContent},
	})
	require.NoError(t, err)

	_, err = reg.Update(ctx, "sess-1", runstate.Update{
		Status:        runstate.StatusCompleted,
		RequiredRoles: []runstate.Role{runstate.RoleFallbackContent},
	})
	require.ErrorIs(t, err, runstate.ErrWriteOnce)

	rs, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, runstate.StatusInitialized, rs.Status)
	assert.Len(t, rs.RequiredRoles, 2)
}

func TestUpdateMissingSession(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Update(context.Background(), "missing", runstate.Update{Status: runstate.StatusError})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentUpdatesMerge(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "sess-1", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	roles := []runstate.Role{runstate.RoleCollector, runstate.RoleAPIResearcher, runstate.RoleAnalyst}
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := roles[i%len(roles)]
			_, err := reg.Update(ctx, "sess-1", runstate.Update{
				ID:             fmt.Sprintf("sess-1/%s/%d", role, i),
				CompletedTasks: []string{fmt.Sprintf("task-%d", i)},
				Completion:     map[runstate.Role]bool{role: true},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rs, err := reg.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, rs.CompletedTasks, 30)
	assert.Len(t, rs.AppliedUpdates, 30)
	for _, role := range roles {
		assert.True(t, rs.Completion[role], "completion for %s", role)
	}
}

func TestCacheEvictionFallsBackToStore(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	// The cache holds four entries; the first sessions are evicted.
	for i := 0; i < 8; i++ {
		_, err := reg.Create(ctx, fmt.Sprintf("sess-%d", i), "topic", runstate.DefaultRequirements("topic"))
		require.NoError(t, err)
	}
	assert.Equal(t, 4, reg.cache.Len())

	rs, err := reg.Get(ctx, "sess-0")
	require.NoError(t, err)
	assert.Equal(t, "sess-0", rs.SessionID)
}

func TestDeleteAndList(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		_, err := reg.Create(ctx, id, "topic", runstate.DefaultRequirements("topic"))
		require.NoError(t, err)
	}

	require.NoError(t, reg.Delete(ctx, "a"))
	assert.ErrorIs(t, reg.Delete(ctx, "a"), ErrNotFound)

	_, err := reg.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].SessionID)
}

func TestCleanup(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	reg.now = func() time.Time { return base.Add(-10 * 24 * time.Hour) }
	_, err := reg.Create(ctx, "old", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	reg.now = func() time.Time { return base }
	_, err = reg.Create(ctx, "new", "topic", runstate.DefaultRequirements("topic"))
	require.NoError(t, err)

	ids, err := reg.Cleanup(ctx, 7*24*time.Hour, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	_, err = reg.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = reg.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestCleanupKeepsProtectedSessions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	reg.now = func() time.Time { return base.Add(-10 * 24 * time.Hour) }
	for _, id := range []string{"idle", "running"} {
		_, err := reg.Create(ctx, id, "topic", runstate.DefaultRequirements("topic"))
		require.NoError(t, err)
	}

	reg.now = func() time.Time { return base }
	ids, err := reg.Cleanup(ctx, 7*24*time.Hour, func(id string) bool { return id == "running" })
	require.NoError(t, err)
	assert.Equal(t, []string{"idle"}, ids)

	_, err = reg.Get(ctx, "running")
	assert.NoError(t, err)
	_, err = reg.Get(ctx, "idle")
	assert.ErrorIs(t, err, ErrNotFound)
}
