package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePersister struct {
	mu      sync.Mutex
	rows    map[string]Subscription
	deletes int
	delErr  error
}

func newFakePersister() *fakePersister {
	return &fakePersister{rows: make(map[string]Subscription)}
}

func (f *fakePersister) ReadSubscriptions(_ context.Context) ([]Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Subscription
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakePersister) WriteSubscription(_ context.Context, s Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.ID] = s
	return nil
}

func (f *fakePersister) DeleteSubscription(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.rows, id)
	return nil
}

func mustNew(t *testing.T, endpoint string) Subscription {
	t.Helper()
	s, err := New(endpoint, Keys{P256dh: "BNc...", Auth: "tBH..."})
	require.NoError(t, err)
	return s
}

func TestNew_DerivesIDFromEndpoint(t *testing.T) {
	t.Parallel()

	a := mustNew(t, "https://push.example.com/send/abc")
	b := mustNew(t, "https://push.example.com/send/abc")
	c := mustNew(t, "https://push.example.com/send/xyz")

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ID, 32)
}

func TestNew_RejectsMalformedEndpoint(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "not a url", "ftp://push.example.com/x", "/relative/path"} {
		_, err := New(endpoint, Keys{P256dh: "k", Auth: "a"})
		assert.ErrorIs(t, err, ErrInvalid, "endpoint %q", endpoint)
	}
}

func TestNew_RequiresKeys(t *testing.T) {
	t.Parallel()

	_, err := New("https://push.example.com/x", Keys{P256dh: "k"})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRegistry_Upsert_SameEndpointReplaces(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	ctx := context.Background()

	first := mustNew(t, "https://push.example.com/send/abc")
	second := first
	second.Keys = Keys{P256dh: "rotated", Auth: "rotated"}

	require.NoError(t, r.Upsert(ctx, first))
	require.NoError(t, r.Upsert(ctx, second))

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, "rotated", list[0].Keys.P256dh)
}

func TestRegistry_Upsert_RederivesID(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	s := mustNew(t, "https://push.example.com/send/abc")
	s.ID = "forged"

	require.NoError(t, r.Upsert(context.Background(), s))
	assert.Equal(t, IDFor(s.Endpoint), r.List()[0].ID)
}

func TestRegistry_List_IsSnapshot(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	ctx := context.Background()
	a := mustNew(t, "https://push.example.com/a")
	b := mustNew(t, "https://push.example.com/b")
	require.NoError(t, r.Upsert(ctx, a))
	require.NoError(t, r.Upsert(ctx, b))

	snap := r.List()
	require.NoError(t, r.Remove(ctx, a.ID))

	assert.Len(t, snap, 2, "snapshot must not observe later removals")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Remove_IsIdempotent(t *testing.T) {
	t.Parallel()

	p := newFakePersister()
	r := NewRegistry(p)
	ctx := context.Background()
	s := mustNew(t, "https://push.example.com/a")
	require.NoError(t, r.Upsert(ctx, s))

	require.NoError(t, r.Remove(ctx, s.ID))
	require.NoError(t, r.Remove(ctx, s.ID))
	require.NoError(t, r.Remove(ctx, "never-existed"))

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, p.deletes, "only the first removal reaches the store")
}

func TestRegistry_Remove_DropsFromMemoryWhenStoreFails(t *testing.T) {
	t.Parallel()

	p := newFakePersister()
	p.delErr = errors.New("locked")
	r := NewRegistry(p)
	ctx := context.Background()
	s := mustNew(t, "https://push.example.com/a")
	require.NoError(t, r.Upsert(ctx, s))

	err := r.Remove(ctx, s.ID)
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Load_RestoresPersisted(t *testing.T) {
	t.Parallel()

	p := newFakePersister()
	s := mustNew(t, "https://push.example.com/a")
	p.rows[s.ID] = s

	r := NewRegistry(p)
	require.NoError(t, r.Load(context.Background()))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ConcurrentUpsertAndList(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s, err := New("https://push.example.com/"+string(rune('a'+i)), Keys{P256dh: "k", Auth: "a"})
			if err == nil {
				_ = r.Upsert(ctx, s)
			}
		}()
		go func() {
			defer wg.Done()
			_ = r.List()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, r.Len())
}

func TestRegistry_Upsert_KeepsCreatedAt(t *testing.T) {
	t.Parallel()

	store := newFakePersister()
	r := NewRegistry(store)
	ctx := context.Background()

	first := mustNew(t, "https://push.example.com/first")
	first.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := mustNew(t, "https://push.example.com/second")
	second.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Upsert(ctx, first))
	require.NoError(t, r.Upsert(ctx, second))

	again, err := New("https://push.example.com/first", Keys{P256dh: "rotated", Auth: "rotated"})
	require.NoError(t, err)
	require.NoError(t, r.Upsert(ctx, again))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID, "resubscribing keeps the original position")
	assert.Equal(t, first.CreatedAt, list[0].CreatedAt)
	assert.Equal(t, "rotated", list[0].Keys.P256dh)
	assert.Equal(t, first.CreatedAt, store.rows[first.ID].CreatedAt)
}
