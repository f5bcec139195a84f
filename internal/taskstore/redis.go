package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RakeshSingh38/multi-agent-ai-system/internal/circuitbreaker"
)

const (
	DefaultTTL = 24 * time.Hour

	keyPrefix = "multiagent:task:"
	indexKey  = "multiagent:tasks"
)

// Redis stores each record as JSON under its own key with a TTL, plus a set
// index of task ids for listing. Expired ids are pruned from the index lazily.
type Redis struct {
	client *circuitbreaker.RedisWrapper
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client *circuitbreaker.RedisWrapper, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func taskKey(taskID string) string { return keyPrefix + taskID }

func (r *Redis) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", rec.TaskID, err)
	}
	if err := r.client.Set(ctx, taskKey(rec.TaskID), data, r.ttl); err != nil {
		return fmt.Errorf("failed to store task %s: %w", rec.TaskID, err)
	}
	if err := r.client.SAdd(ctx, indexKey, rec.TaskID); err != nil {
		return fmt.Errorf("failed to index task %s: %w", rec.TaskID, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, taskID string) (Record, error) {
	raw, err := r.client.Get(ctx, taskKey(taskID))
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode task %s: %w", taskID, err)
	}
	return rec, nil
}

func (r *Redis) List(ctx context.Context) ([]Record, error) {
	ids, err := r.client.SMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}
	values, err := r.client.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}

	out := make([]Record, 0, len(values))
	var expired []interface{}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			r.logger.Warn("Skipping undecodable task record", zap.String("task_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, rec)
	}
	if len(expired) > 0 {
		if err := r.client.SRem(ctx, indexKey, expired...); err != nil {
			r.logger.Warn("Failed to prune expired task ids", zap.Error(err))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, taskID string) error {
	n, err := r.client.Del(ctx, taskKey(taskID))
	if err != nil {
		return fmt.Errorf("failed to delete task %s: %w", taskID, err)
	}
	if err := r.client.SRem(ctx, indexKey, taskID); err != nil {
		return fmt.Errorf("failed to unindex task %s: %w", taskID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	ids, err := r.client.SMembers(ctx, indexKey)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, taskKey(id))
	}
	keys = append(keys, indexKey)
	if _, err := r.client.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	return nil
}
