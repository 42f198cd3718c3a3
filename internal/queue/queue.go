// Package queue decouples audit logging from the request path: the API
// publishes an entry per operator action, the worker drains them into
// Postgres. A lost entry is acceptable, a blocked action is not.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ponto/internal/store"
)

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, entry store.AuditEntry) error
	Consume(ctx context.Context) (<-chan store.AuditEntry, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan store.AuditEntry
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan store.AuditEntry, size)}
}

// Publish enqueues an entry.
func (q *InMemory) Publish(ctx context.Context, entry store.AuditEntry) error {
	select {
	case q.ch <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan store.AuditEntry, error) {
	out := make(chan store.AuditEntry)
	go func() {
		defer close(out)
		for {
			select {
			case entry := <-q.ch:
				out <- entry
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue using LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on the given list key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "ponto:audit"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an entry as JSON.
func (q *RedisQueue) Publish(ctx context.Context, entry store.AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Consume streams entries using BRPOP. Malformed payloads are dropped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan store.AuditEntry, error) {
	out := make(chan store.AuditEntry)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var entry store.AuditEntry
				if err := json.Unmarshal([]byte(res[1]), &entry); err == nil {
					out <- entry
				}
			}
		}
	}()
	return out, nil
}
