package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/alem-quest/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache stores ranked boards, one per sort key.
//
// Layout:
//   - Sorted Set "leaderboard:rank:{key}" stores profileID -> rank
//   - Hash "leaderboard:info:{key}" stores profileID -> Entry JSON
//   - String "leaderboard:meta:{key}" stores the entry count and build time
//
// All three keys are written in one MULTI/EXEC and share a TTL. A board is
// only served when the meta record exists and the three agree on the count,
// so an empty board is a hit and a partially expired one is a miss.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
	now   func() time.Time
}

const (
	keyLeaderboardRank = PrefixLeaderboard + "rank:"
	keyLeaderboardInfo = PrefixLeaderboard + "info:"
	keyLeaderboardMeta = PrefixLeaderboard + "meta:"
)

// LeaderboardMeta describes one cached board.
type LeaderboardMeta struct {
	SortKey     leaderboard.SortKey `json:"sort_key"`
	Count       int                 `json:"count"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// NewLeaderboardCache creates a leaderboard cache. ttl <= 0 uses
// TTLLeaderboardCache.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboardCache
	}
	return &LeaderboardCache{cache: cache, ttl: ttl, now: time.Now}
}

var _ leaderboard.Cache = (*LeaderboardCache)(nil)

// Get returns the cached board for key. Non-cacheable keys always miss.
func (l *LeaderboardCache) Get(ctx context.Context, key leaderboard.SortKey) ([]*leaderboard.Entry, bool, error) {
	if !key.Cacheable() {
		return nil, false, nil
	}

	var (
		metaCmd *redis.StringCmd
		idsCmd  *redis.StringSliceCmd
		infoCmd *redis.MapStringStringCmd
	)
	_, err := l.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		metaCmd = pipe.Get(ctx, keyLeaderboardMeta+string(key))
		idsCmd = pipe.ZRange(ctx, keyLeaderboardRank+string(key), 0, -1)
		infoCmd = pipe.HGetAll(ctx, keyLeaderboardInfo+string(key))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, err
	}

	raw, err := metaCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var meta LeaderboardMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	ids := idsCmd.Val()
	info := infoCmd.Val()
	if len(ids) != meta.Count || len(info) != meta.Count {
		return nil, false, nil
	}

	entries := make([]*leaderboard.Entry, 0, len(ids))
	for _, id := range ids {
		data, ok := info[id]
		if !ok {
			return nil, false, nil
		}
		var entry leaderboard.Entry
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		entries = append(entries, &entry)
	}
	return entries, true, nil
}

// Set replaces the board for key with ranked entries.
func (l *LeaderboardCache) Set(ctx context.Context, key leaderboard.SortKey, entries []*leaderboard.Entry) error {
	if !key.Cacheable() {
		return nil
	}

	rankKey := keyLeaderboardRank + string(key)
	infoKey := keyLeaderboardInfo + string(key)
	metaKey := keyLeaderboardMeta + string(key)

	members := make([]redis.Z, 0, len(entries))
	hash := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		members = append(members, redis.Z{Score: float64(e.Rank), Member: e.ProfileID.String()})
		hash[e.ProfileID.String()] = data
	}

	meta, err := json.Marshal(LeaderboardMeta{SortKey: key, Count: len(entries), GeneratedAt: l.now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	_, err = l.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rankKey, infoKey, metaKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, rankKey, members...)
			pipe.HSet(ctx, infoKey, hash)
			pipe.Expire(ctx, rankKey, l.ttl)
			pipe.Expire(ctx, infoKey, l.ttl)
		}
		pipe.Set(ctx, metaKey, meta, l.ttl)
		return nil
	})
	return err
}

// Invalidate drops every cached board.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	keys := make([]string, 0, 3*len(leaderboard.SortKeys))
	for _, key := range leaderboard.SortKeys {
		if !key.Cacheable() {
			continue
		}
		keys = append(keys,
			keyLeaderboardRank+string(key),
			keyLeaderboardInfo+string(key),
			keyLeaderboardMeta+string(key),
		)
	}
	return l.cache.Delete(ctx, keys...)
}

// Meta returns the build record of a cached board.
func (l *LeaderboardCache) Meta(ctx context.Context, key leaderboard.SortKey) (*LeaderboardMeta, error) {
	var meta LeaderboardMeta
	if err := l.cache.Get(ctx, keyLeaderboardMeta+string(key), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
