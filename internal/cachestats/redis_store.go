package cachestats

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

const (
	fieldHits      = "hits"
	fieldMisses    = "misses"
	fieldEvictions = "evictions"
	fieldSizeBytes = "size_bytes"
)

// RedisStore keeps one hash per user and cache plus a set of the user's cache
// names. Keys share the {user} hash tag so the pipelined MULTI stays on one slot.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client; the caller owns its lifecycle.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func cachesKey(userID string) string {
	return fmt.Sprintf("cache_stats:{%s}:caches", userID)
}

// countersKey has one more segment than cachesKey; cache names cannot contain ':'.
func countersKey(userID, cache string) string {
	return fmt.Sprintf("cache_stats:{%s}:cache:%s", userID, cache)
}

func (s *RedisStore) Add(ctx context.Context, userID, cache string, delta Counters) error {
	key := countersKey(userID, cache)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, cachesKey(userID), cache)
		pipe.HIncrBy(ctx, key, fieldHits, delta.Hits)
		pipe.HIncrBy(ctx, key, fieldMisses, delta.Misses)
		pipe.HIncrBy(ctx, key, fieldEvictions, delta.Evictions)
		pipe.HSet(ctx, key, fieldSizeBytes, delta.SizeBytes)
		return nil
	})
	if err != nil {
		return sharederrors.Wrap(sharederrors.KindStorage, "record cache stats", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID string) (map[string]Counters, error) {
	names, err := s.client.SMembers(ctx, cachesKey(userID)).Result()
	if err != nil {
		return nil, sharederrors.Wrap(sharederrors.KindStorage, "list caches", err)
	}
	if len(names) == 0 {
		return map[string]Counters{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(names))
	for _, name := range names {
		cmds[name] = pipe.HGetAll(ctx, countersKey(userID, name))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, sharederrors.Wrap(sharederrors.KindStorage, "load cache stats", err)
	}

	out := make(map[string]Counters, len(names))
	for name, cmd := range cmds {
		out[name] = countersFromHash(cmd.Val())
	}
	return out, nil
}

func countersFromHash(fields map[string]string) Counters {
	parse := func(key string) int64 {
		v, _ := strconv.ParseInt(fields[key], 10, 64)
		return v
	}
	return Counters{
		Hits:      parse(fieldHits),
		Misses:    parse(fieldMisses),
		Evictions: parse(fieldEvictions),
		SizeBytes: parse(fieldSizeBytes),
	}
}
