package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

// scriptedPusher fails for endpoints listed in dead and records every body.
type scriptedPusher struct {
	mu       sync.Mutex
	dead     map[string]bool
	attempts map[string]int
	bodies   [][]byte
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func newScriptedPusher(dead ...string) *scriptedPusher {
	p := &scriptedPusher{dead: make(map[string]bool), attempts: make(map[string]int)}
	for _, e := range dead {
		p.dead[e] = true
	}
	return p
}

func (p *scriptedPusher) Push(_ context.Context, sub subscription.Subscription, body []byte) error {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts[sub.Endpoint]++
	p.bodies = append(p.bodies, body)
	if p.dead[sub.Endpoint] {
		return errors.New("410 gone")
	}
	return nil
}

func (p *scriptedPusher) attemptsFor(endpoint string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts[endpoint]
}

func registryWith(t *testing.T, endpoints ...string) *subscription.Registry {
	t.Helper()
	r := subscription.NewRegistry(nil)
	for _, e := range endpoints {
		s, err := subscription.New(e, subscription.Keys{P256dh: "k", Auth: "a"})
		require.NoError(t, err)
		require.NoError(t, r.Upsert(context.Background(), s))
	}
	return r
}

func TestDispatcher_Dispatch_PrunesOnlyFailures(t *testing.T) {
	t.Parallel()

	r := registryWith(t, "https://push.example.com/a", "https://push.example.com/b", "https://push.example.com/c")
	p := newScriptedPusher("https://push.example.com/b")
	d := NewDispatcher(r, p, DispatcherOptions{})

	report := d.Dispatch(context.Background(), Reset())

	assert.Equal(t, Report{Attempted: 3, Delivered: 2, Pruned: 1}, report)
	assert.Equal(t, 2, r.Len())
	for _, s := range r.List() {
		assert.NotEqual(t, "https://push.example.com/b", s.Endpoint)
	}
}

func TestDispatcher_Dispatch_PrunedNotAttemptedNextCycle(t *testing.T) {
	t.Parallel()

	r := registryWith(t, "https://push.example.com/a", "https://push.example.com/dead")
	p := newScriptedPusher("https://push.example.com/dead")
	d := NewDispatcher(r, p, DispatcherOptions{})

	d.Dispatch(context.Background(), Reset())
	d.Dispatch(context.Background(), Reset())

	assert.Equal(t, 1, p.attemptsFor("https://push.example.com/dead"))
	assert.Equal(t, 2, p.attemptsFor("https://push.example.com/a"))
}

func TestDispatcher_Dispatch_ConcurrentCyclesAreSerialized(t *testing.T) {
	t.Parallel()

	r := registryWith(t, "https://push.example.com/a", "https://push.example.com/dead")
	p := newScriptedPusher("https://push.example.com/dead")
	p.delay = 10 * time.Millisecond
	d := NewDispatcher(r, p, DispatcherOptions{})

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), Reset())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, p.attemptsFor("https://push.example.com/dead"))
	assert.Equal(t, 3, p.attemptsFor("https://push.example.com/a"))
}

func TestDispatcher_Dispatch_BoundsParallelism(t *testing.T) {
	t.Parallel()

	var endpoints []string
	for _, c := range "abcdefghij" {
		endpoints = append(endpoints, "https://push.example.com/"+string(c))
	}
	r := registryWith(t, endpoints...)
	p := newScriptedPusher()
	p.delay = 5 * time.Millisecond
	d := NewDispatcher(r, p, DispatcherOptions{Parallelism: 3})

	report := d.Dispatch(context.Background(), Reset())

	assert.Equal(t, 10, report.Delivered)
	assert.LessOrEqual(t, p.peak.Load(), int32(3))
}

func TestDispatcher_Dispatch_EmptyRegistry(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(subscription.NewRegistry(nil), newScriptedPusher(), DispatcherOptions{})
	assert.Equal(t, Report{}, d.Dispatch(context.Background(), Reset()))
}

func TestDispatcher_Dispatch_SendsJSONPayload(t *testing.T) {
	t.Parallel()

	r := registryWith(t, "https://push.example.com/a")
	p := newScriptedPusher()
	d := NewDispatcher(r, p, DispatcherOptions{})

	done := task.Task{ID: "laundry", Title: "Laundry", Status: task.StatusComplete}
	d.Dispatch(context.Background(), TaskCompleted(done))

	require.Len(t, p.bodies, 1)
	var got Payload
	require.NoError(t, json.Unmarshal(p.bodies[0], &got))
	assert.Equal(t, TypeTaskCompleted, got.Type)
	require.NotNil(t, got.Task)
	assert.Equal(t, "laundry", got.Task.ID)
	assert.Contains(t, got.Body, "Laundry")
}

func TestReset_HasNoTask(t *testing.T) {
	t.Parallel()

	p := Reset()
	assert.Equal(t, TypeReset, p.Type)
	assert.Nil(t, p.Task)
	assert.NotEmpty(t, p.Title)
}

type countingNotifier struct{ calls atomic.Int32 }

func (c *countingNotifier) Notify(_ context.Context, _ Payload) { c.calls.Add(1) }

func TestFanout_Notify_ReachesEveryNotifier(t *testing.T) {
	t.Parallel()

	a, b := &countingNotifier{}, &countingNotifier{}
	f := NewFanout(a, nil, b)

	f.Notify(context.Background(), Reset())

	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
}
