package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/you/bookauth/domain"
)

// SessionCacheImpl implements domain.SessionCache using Redis.
// Each entry lives until its session expires; a per-user set indexes the entries
// so logout-all can evict them without scanning.
type SessionCacheImpl struct {
	client   *redis.Client
	prefix   string
	index    string
	indexTTL time.Duration
}

// NewSessionCache creates a new session cache. indexTTL bounds the lifetime of the
// per-user index and should match the longest session lifetime.
func NewSessionCache(client *redis.Client, indexTTL time.Duration) domain.SessionCache {
	return &SessionCacheImpl{
		client:   client,
		prefix:   "session:",
		index:    "user_sessions:",
		indexTTL: indexTTL,
	}
}

func (r *SessionCacheImpl) userKey(userID uint) string {
	return r.index + strconv.FormatUint(uint64(userID), 10)
}

// Set implements domain.SessionCache. The entry expires with the session, measured from now.
func (r *SessionCacheImpl) Set(ctx context.Context, session *domain.Session, now time.Time) error {
	ttl := session.ExpiresAt.Sub(now)
	if !session.IsActive || ttl <= 0 {
		return r.Delete(ctx, session.ID)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	userKey := r.userKey(session.UserID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefix+session.ID, data, ttl)
	pipe.SAdd(ctx, userKey, session.ID)
	pipe.Expire(ctx, userKey, r.indexTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Get implements domain.SessionCache. Expired entries are left to the Redis TTL.
func (r *SessionCacheImpl) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Delete implements domain.SessionCache
func (r *SessionCacheImpl) Delete(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, r.prefix+id)
	}
	return r.client.Del(ctx, keys...).Err()
}

// DeleteByUser implements domain.SessionCache
func (r *SessionCacheImpl) DeleteByUser(ctx context.Context, userID uint) error {
	userKey := r.userKey(userID)
	ids, err := r.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, r.prefix+id)
	}
	keys = append(keys, userKey)
	return r.client.Del(ctx, keys...).Err()
}
