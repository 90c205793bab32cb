package session

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session state key prefix.
const keySession = "session:"

// RedisStore persists session history in Redis with a TTL equal to the
// expiry window, so idle conversations age out server-side.
//
// Graceful fallback: if Redis is unreachable, reads return fresh sessions
// and writes are dropped with a log line instead of blocking the pipeline.
type RedisStore struct {
	client   *redis.Client
	expires  time.Duration
	maxTurns int
}

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	URL      string // redis://host:port
	Password string
	DB       int
}

// NewRedisStore connects to Redis and returns a store, or an error if the
// server cannot be reached.
func NewRedisStore(cfg RedisConfig, expiresSeconds, maxTurns int) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Println("[Session] Redis store connected")
	return &RedisStore{
		client:   client,
		expires:  time.Duration(expiresSeconds) * time.Second,
		maxTurns: maxTurns,
	}, nil
}

// Get loads the session for id, returning an empty one on miss or error.
func (r *RedisStore) Get(id string) *Session {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, keySession+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[Session] redis get %s: %v", id, err)
		}
		return &Session{ID: id, UpdatedAt: time.Now()}
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("[Session] corrupt session %s, resetting: %v", id, err)
		return &Session{ID: id, UpdatedAt: time.Now()}
	}
	return &s
}

// Save writes the trimmed session back with the expiry TTL.
func (r *RedisStore) Save(s *Session) {
	s.Trim(r.maxTurns)
	data, err := json.Marshal(s)
	if err != nil {
		log.Printf("[Session] marshal session %s: %v", s.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.client.Set(ctx, keySession+s.ID, data, r.expires).Err(); err != nil {
		log.Printf("[Session] redis set %s: %v", s.ID, err)
	}
}

// Clear discards the session's history.
func (r *RedisStore) Clear(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.client.Del(ctx, keySession+id).Err(); err != nil {
		log.Printf("[Session] redis del %s: %v", id, err)
	}
}

// ClearAll discards every session under the session key prefix.
func (r *RedisStore) ClearAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	iter := r.client.Scan(ctx, 0, keySession+"*", 100).Iterator()
	for iter.Next(ctx) {
		r.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Session] redis scan: %v", err)
	}
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
