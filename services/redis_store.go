// ABOUTME: Redis-backed session store for multi-instance deployments
// ABOUTME: Same contract as the in-memory store, with Redis-native TTL

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mthomas/servicedesk-bff/models"
)

// persistedSession is the wire shape stored in Redis. The delegated
// credential must round-trip, so it cannot reuse the API-facing Session
// JSON which deliberately omits secrets.
type persistedSession struct {
	Identity          models.Identity `json:"identity"`
	DelegatedUsername string          `json:"delegated_username"`
	DelegatedPassword string          `json:"delegated_password"`
	Groups            []string        `json:"groups"`
	CreatedAt         time.Time       `json:"created_at"`
}

// RedisSessionStore implements SessionStore on Redis.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore connects to Redis and verifies reachability.
func NewRedisSessionStore(redisURL string) (*RedisSessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisSessionStore{client: client, prefix: "session:"}, nil
}

// NewRedisSessionStoreWithClient creates a store from an existing client.
func NewRedisSessionStoreWithClient(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: "session:"}
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisSessionStore) Save(ctx context.Context, session *models.Session, ttl time.Duration) error {
	data := persistedSession{
		Identity:          session.Identity,
		DelegatedUsername: session.Delegated.Username,
		DelegatedPassword: session.Delegated.Password,
		Groups:            session.Groups,
		CreatedAt:         session.CreatedAt,
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if ttl <= 0 {
		ttl = 8 * time.Hour
	}

	if err := s.client.Set(ctx, s.key(session.Token), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Lookup(ctx context.Context, token string) (*models.Session, error) {
	jsonData, err := s.client.Get(ctx, s.key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	var data persistedSession
	if err := json.Unmarshal([]byte(jsonData), &data); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	return &models.Session{
		Token:     token,
		Identity:  data.Identity,
		Delegated: models.Credential{Username: data.DelegatedUsername, Password: data.DelegatedPassword},
		Groups:    data.Groups,
		CreatedAt: data.CreatedAt,
	}, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
