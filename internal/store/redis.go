package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/btouchard/choreboard/internal/subscription"
	"github.com/btouchard/choreboard/internal/task"
)

// RedisStore implements Store on two Redis hashes, one for tasks and one
// for subscriptions. Only durable state lives in Redis: each process keeps
// its own in-memory board and viewers, and broadcasts stay in-process.
type RedisStore struct {
	client  *redis.Client
	taskKey string
	subKey  string
}

// NewRedisStore connects to the Redis server at url.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return newRedisStore(client, prefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "choreboard"
	}
	return &RedisStore{
		client:  client,
		taskKey: prefix + ":tasks",
		subKey:  prefix + ":subscriptions",
	}
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// --- Tasks ---

func (s *RedisStore) ReadTasks(ctx context.Context) ([]task.Task, error) {
	raw, err := s.client.HGetAll(ctx, s.taskKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	records := make([]taskRecord, 0, len(raw))
	for id, v := range raw {
		var r taskRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("decoding task %s: %w", id, err)
		}
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Position == records[j].Position {
			return records[i].ID < records[j].ID
		}
		return records[i].Position < records[j].Position
	})

	tasks := make([]task.Task, len(records))
	for i, r := range records {
		tasks[i] = r.task()
	}
	return tasks, nil
}

// WriteTask upserts one task, keeping its position when it already exists.
func (s *RedisStore) WriteTask(ctx context.Context, t task.Task) error {
	position, err := s.positionOf(ctx, t.ID)
	if err != nil {
		return err
	}
	body, err := json.Marshal(recordFor(t, position))
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	if err := s.client.HSet(ctx, s.taskKey, t.ID, body).Err(); err != nil {
		return fmt.Errorf("writing task %s: %w", t.ID, err)
	}
	return nil
}

// WriteTasks replaces the whole board in one MULTI/EXEC transaction.
func (s *RedisStore) WriteTasks(ctx context.Context, tasks []task.Task) error {
	fields := make([]any, 0, len(tasks)*2)
	for i, t := range tasks {
		body, err := json.Marshal(recordFor(t, i))
		if err != nil {
			return fmt.Errorf("encoding task %s: %w", t.ID, err)
		}
		fields = append(fields, t.ID, body)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.taskKey)
		if len(fields) > 0 {
			pipe.HSet(ctx, s.taskKey, fields...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing tasks: %w", err)
	}
	return nil
}

func (s *RedisStore) positionOf(ctx context.Context, id string) (int, error) {
	v, err := s.client.HGet(ctx, s.taskKey, id).Result()
	if errors.Is(err, redis.Nil) {
		n, err := s.client.HLen(ctx, s.taskKey).Result()
		if err != nil {
			return 0, fmt.Errorf("counting tasks: %w", err)
		}
		return int(n), nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading task %s: %w", id, err)
	}
	var r taskRecord
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return 0, fmt.Errorf("decoding task %s: %w", id, err)
	}
	return r.Position, nil
}

func recordFor(t task.Task, position int) taskRecord {
	return taskRecord{
		Position:    position,
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		UpdatedAt:   formatTime(time.Now().UTC()),
	}
}

// --- Subscriptions ---

func (s *RedisStore) ReadSubscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	raw, err := s.client.HGetAll(ctx, s.subKey).Result()
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}

	subs := make([]subscription.Subscription, 0, len(raw))
	for id, v := range raw {
		var sub subscription.Subscription
		if err := json.Unmarshal([]byte(v), &sub); err != nil {
			return nil, fmt.Errorf("decoding subscription %s: %w", id, err)
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

func (s *RedisStore) WriteSubscription(ctx context.Context, sub subscription.Subscription) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding subscription: %w", err)
	}
	if err := s.client.HSet(ctx, s.subKey, sub.ID, body).Err(); err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteSubscription(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, s.subKey, id).Err(); err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}
