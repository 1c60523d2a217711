package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"chatvault/pkg/domain"
)

// RedisStore keeps one hash per task under a TTL, so terminal states stay
// pollable for a bounded time after the task finishes.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisStoreConfig configures the task status store.
type RedisStoreConfig struct {
	Addr     string
	Password string
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore connects to Redis and validates configuration.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = "task:harvester"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

func (s *RedisStore) key(taskID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, taskID)
}

func (s *RedisStore) write(ctx context.Context, taskID string, fields map[string]any) error {
	key := s.key(taskID)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// SetPending registers a freshly submitted task.
func (s *RedisStore) SetPending(ctx context.Context, taskID string) error {
	return s.write(ctx, taskID, map[string]any{
		"state":     StatePending,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Report overwrites the latest progress tuple.
func (s *RedisStore) Report(ctx context.Context, taskID string, p domain.TaskProgress) error {
	return s.write(ctx, taskID, map[string]any{
		"state":     StateRunning,
		"phase":     p.Phase,
		"current":   strconv.Itoa(p.Current),
		"total":     strconv.Itoa(p.Total),
		"percent":   strconv.Itoa(p.Percent),
		"status":    p.Status,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SetCompleted stores the terminal result payload.
func (s *RedisStore) SetCompleted(ctx context.Context, taskID string, result map[string]any) error {
	raw, _ := json.Marshal(result)
	return s.write(ctx, taskID, map[string]any{
		"state":     StateCompleted,
		"result":    string(raw),
		"error":     "",
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SetFailed stores the terminal error and whatever partial result exists.
func (s *RedisStore) SetFailed(ctx context.Context, taskID, errMsg string, result map[string]any) error {
	raw, _ := json.Marshal(result)
	return s.write(ctx, taskID, map[string]any{
		"state":     StateFailed,
		"result":    string(raw),
		"error":     errMsg,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// SetCancelled marks the task cancelled.
func (s *RedisStore) SetCancelled(ctx context.Context, taskID string) error {
	return s.write(ctx, taskID, map[string]any{
		"state":     StateCancelled,
		"updatedAt": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Get returns the latest status for a task, reporting absence explicitly.
func (s *RedisStore) Get(ctx context.Context, taskID string) (Status, bool, error) {
	data, err := s.client.HGetAll(ctx, s.key(taskID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(data) == 0 {
		return Status{}, false, nil
	}
	return decodeStatus(taskID, data), true, nil
}

func decodeStatus(taskID string, data map[string]string) Status {
	st := Status{ID: taskID, State: data["state"], Error: data["error"]}
	st.Progress.Phase = data["phase"]
	st.Progress.Status = data["status"]
	if v := data["current"]; v != "" {
		st.Progress.Current, _ = strconv.Atoi(v)
	}
	if v := data["total"]; v != "" {
		st.Progress.Total, _ = strconv.Atoi(v)
	}
	if v := data["percent"]; v != "" {
		st.Progress.Percent, _ = strconv.Atoi(v)
	}
	if raw := data["result"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &st.Result)
	}
	return st
}
