package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STORE
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore keeps raw wizard session payloads in Redis with a TTL.
// The payload format belongs to the transport; this type only moves bytes.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

// Load returns the payload stored for the user, or ErrCacheMiss.
func (s *SessionStore) Load(ctx context.Context, userID int64) ([]byte, error) {
	var raw json.RawMessage
	if err := s.cache.Get(ctx, WizardKey(userID), &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Save stores the payload and resets its TTL.
func (s *SessionStore) Save(ctx context.Context, userID int64, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLWizardSession
	}
	return s.cache.Set(ctx, WizardKey(userID), json.RawMessage(payload), ttl)
}

// Delete drops the user's session.
func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, WizardKey(userID))
}

// IsMiss reports whether err means "no session".
func (s *SessionStore) IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS CACHE
// ══════════════════════════════════════════════════════════════════════════════

// StatsCache serves operator statistics from Redis for TTLStats.
type StatsCache struct {
	cache *Cache
}

// NewStatsCache creates a new StatsCache.
func NewStatsCache(cache *Cache) *StatsCache {
	return &StatsCache{cache: cache}
}

// Get returns the cached snapshot or ErrCacheMiss.
func (s *StatsCache) Get(ctx context.Context) (*profile.Stats, error) {
	var st profile.Stats
	if err := s.cache.Get(ctx, PrefixStats+"snapshot", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Set stores a snapshot.
func (s *StatsCache) Set(ctx context.Context, st *profile.Stats) error {
	return s.cache.Set(ctx, PrefixStats+"snapshot", st, TTLStats)
}
