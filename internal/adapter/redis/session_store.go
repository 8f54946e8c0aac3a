// Package redis persists the console session in Redis so several console
// processes can share it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"storeadmin/internal/domain"
)

// DefaultKey is the key holding the session.
const DefaultKey = "storeadmin:auth:session"

// SessionStore implements domain.SessionPersister on Redis.
type SessionStore struct {
	client goredis.UniversalClient
	key    string
}

var _ domain.SessionPersister = (*SessionStore)(nil)

// NewSessionStore wraps client. An empty key means DefaultKey.
func NewSessionStore(client goredis.UniversalClient, key string) *SessionStore {
	if key == "" {
		key = DefaultKey
	}
	return &SessionStore{client: client, key: key}
}

// Dial parses a redis:// URL, connects and pings.
func Dial(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis: %v", domain.ErrUnavailable, err)
	}
	return client, nil
}

// Load returns the stored session or nil.
func (s *SessionStore) Load(ctx context.Context) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save stores the session. Sessions without a refresh token expire with
// their access token; refreshable ones are kept until cleared.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if sess.RefreshToken == "" && !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("session already expired")
		}
	}
	return s.client.Set(ctx, s.key, data, ttl).Err()
}

// Clear removes the stored session.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
