package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rerolab/models"
	"rerolab/utils"

	"github.com/go-redis/redis/v8"
)

// RedisCredentialStore keeps the session under one key per client profile.
// With a non-empty Key the stored value is encrypted.
type RedisCredentialStore struct {
	Client  *redis.Client
	Profile string
	Key     string
	Clock   utils.Clock
}

func NewRedisCredentialStore(client *redis.Client, profile string) *RedisCredentialStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisCredentialStore{Client: client, Profile: profile, Clock: utils.RealClock()}
}

func (s *RedisCredentialStore) key() string { return utils.SessionCachePrefix + s.Profile }

// Save stores the session until its credential expires.
func (s *RedisCredentialStore) Save(ctx context.Context, sess models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if s.Key != "" {
		if data, err = seal(s.Key, data); err != nil {
			return err
		}
	}
	ttl := utils.SessionCacheTTL
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.Clock.Now())
		if ttl <= 0 {
			return s.Delete(ctx)
		}
	}
	if err := s.Client.Set(ctx, s.key(), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisCredentialStore) Load(ctx context.Context) (models.Session, error) {
	data, err := s.Client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrNoStoredSession
	}
	if err != nil {
		return models.Session{}, err
	}
	if s.Key != "" {
		if data, err = unseal(s.Key, data); err != nil {
			return models.Session{}, err
		}
	}
	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return models.Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *RedisCredentialStore) Delete(ctx context.Context) error {
	return s.Client.Del(ctx, s.key()).Err()
}

// MemoryCredentialStore is used when no Redis address is configured. Nothing
// survives a restart.
type MemoryCredentialStore struct {
	mu   sync.Mutex
	sess *models.Session
}

func NewMemoryCredentialStore() *MemoryCredentialStore { return &MemoryCredentialStore{} }

func (s *MemoryCredentialStore) Save(_ context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = &sess
	return nil
}

func (s *MemoryCredentialStore) Load(context.Context) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return models.Session{}, ErrNoStoredSession
	}
	return *s.sess, nil
}

func (s *MemoryCredentialStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
