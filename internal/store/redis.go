package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"ponto/internal/kairos"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// PeopleCache keeps the paginated people directory warm in Redis. The
// listing walks every page of the remote directory, so queries without a
// badge filter would otherwise pay that cost each time.
type PeopleCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewPeopleCache creates a cache with the given TTL.
func NewPeopleCache(client *redis.Client, ttl time.Duration) *PeopleCache {
	return &PeopleCache{client: client, key: "ponto:people", ttl: ttl}
}

// Get returns the cached directory map, or ok=false on miss or any redis
// failure. Cache trouble must never fail a query.
func (c *PeopleCache) Get(ctx context.Context) (map[string]kairos.PersonSummary, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		return nil, false
	}
	var people map[string]kairos.PersonSummary
	if err := json.Unmarshal(data, &people); err != nil {
		return nil, false
	}
	return people, true
}

// Put stores the directory map, best-effort.
func (c *PeopleCache) Put(ctx context.Context, people map[string]kairos.PersonSummary) {
	data, err := json.Marshal(people)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key, data, c.ttl).Err()
}
