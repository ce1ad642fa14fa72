package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTasks() []task.Task {
	return []task.Task{
		{ID: "laundry", Title: "Laundry", Status: task.StatusIncomplete},
		{ID: "bathroom", Title: "Bathroom Deep Cleaning", Status: task.StatusComplete},
		{ID: "kitchen", Title: "Kitchen Counter Cleaning", Status: task.StatusIncomplete},
	}
}

func testSubscription(t *testing.T, endpoint string) subscription.Subscription {
	t.Helper()
	sub, err := subscription.New(endpoint, subscription.Keys{P256dh: "BNc", Auth: "tBH"})
	require.NoError(t, err)
	sub.CreatedAt = sub.CreatedAt.Truncate(time.Second)
	return sub
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.ReadTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.WriteTasks(ctx, seedTasks()))
	got, err = s.ReadTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, seedTasks(), got)

	// Single write keeps the position.
	updated := seedTasks()[0]
	updated.Status = task.StatusComplete
	require.NoError(t, s.WriteTask(ctx, updated))
	got, err = s.ReadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "laundry", got[0].ID)
	assert.Equal(t, task.StatusComplete, got[0].Status)

	// New id is appended.
	require.NoError(t, s.WriteTask(ctx, task.Task{ID: "dusting", Title: "Dusting", Status: task.StatusIncomplete}))
	got, err = s.ReadTasks(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "dusting", got[3].ID)

	// Batch write replaces the board.
	require.NoError(t, s.WriteTasks(ctx, seedTasks()[:2]))
	got, err = s.ReadTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	a := testSubscription(t, "https://push.example.com/a")
	b := testSubscription(t, "https://push.example.com/b")
	require.NoError(t, s.WriteSubscription(ctx, a))
	require.NoError(t, s.WriteSubscription(ctx, b))

	a.Keys.Auth = "rotated"
	require.NoError(t, s.WriteSubscription(ctx, a))

	subs, err := s.ReadSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	byID := map[string]subscription.Subscription{}
	for _, sub := range subs {
		byID[sub.ID] = sub
	}
	assert.Equal(t, "rotated", byID[a.ID].Keys.Auth)
	assert.Equal(t, b.Endpoint, byID[b.ID].Endpoint)
	assert.True(t, a.CreatedAt.Equal(byID[a.ID].CreatedAt))

	require.NoError(t, s.DeleteSubscription(ctx, a.ID))
	require.NoError(t, s.DeleteSubscription(ctx, a.ID))
	subs, err = s.ReadSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, b.ID, subs[0].ID)

	require.NoError(t, s.Ping(ctx))
}

func TestSQLiteStore_Migration_CreatesTablesAndVersion(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	var version int
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestSQLiteStore_Behaviour(t *testing.T) {
	t.Parallel()
	exerciseStore(t, newTestStore(t))
}

func TestSQLiteStore_FileIsReopened(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "choreboard.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteTasks(context.Background(), seedTasks()))
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.ReadTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seedTasks(), got)
}

func TestSQLiteStore_BacksTaskStore(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	board, err := task.NewStore(seedTasks(), s)
	require.NoError(t, err)
	require.NoError(t, board.Load(ctx))
	_, err = board.Toggle(ctx, "kitchen", task.StatusComplete)
	require.NoError(t, err)

	// A fresh board over the same database sees the change.
	again, err := task.NewStore(seedTasks(), s)
	require.NoError(t, err)
	require.NoError(t, again.Load(ctx))
	got, err := again.Get("kitchen")
	require.NoError(t, err)
	assert.Equal(t, task.StatusComplete, got.Status)
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestOpen_MemoryDriverReturnsNil(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.Nil(t, s)
}
