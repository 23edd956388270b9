package cachestats

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, err := NewService(NewRedisStore(client))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mr
}

func TestRedisStoreAccumulates(t *testing.T) {
	svc, mr := newRedisTestService(t)
	ctx := context.Background()

	for _, r := range []UsageReport{
		{Cache: "audio", Hits: 8, Misses: 2, SizeBytes: 1000},
		{Cache: "audio", Hits: 1, Misses: 1, Evictions: 3, SizeBytes: 400},
	} {
		if err := svc.Record(ctx, "u1", r); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	summary, err := svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary.Caches) != 1 {
		t.Fatalf("unexpected caches: %+v", summary.Caches)
	}
	audio := summary.Caches[0]
	if audio.Hits != 9 || audio.Misses != 3 || audio.Evictions != 3 || audio.SizeBytes != 400 || audio.HitRatio != 0.75 {
		t.Fatalf("unexpected audio counters: %+v", audio)
	}
	if got := mr.HGet("cache_stats:{u1}:cache:audio", "hits"); got != "9" {
		t.Fatalf("expected hits hash field 9, got %q", got)
	}
}

func TestRedisStoreCacheNamedLikeIndexKey(t *testing.T) {
	svc, _ := newRedisTestService(t)
	ctx := context.Background()

	for _, name := range []string{"images", "caches", "cache"} {
		if err := svc.Record(ctx, "u1", UsageReport{Cache: name, Hits: 1, SizeBytes: 10}); err != nil {
			t.Fatalf("Record %s: %v", name, err)
		}
	}

	summary, err := svc.Summary(ctx, "u1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary.Caches) != 3 || summary.Totals.Hits != 3 || summary.Totals.SizeBytes != 30 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Caches[0].Cache != "cache" || summary.Caches[1].Cache != "caches" {
		t.Fatalf("expected caches sorted by name, got %+v", summary.Caches)
	}
}

func TestRedisStoreEmptyUser(t *testing.T) {
	svc, _ := newRedisTestService(t)
	summary, err := svc.Summary(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(summary.Caches) != 0 {
		t.Fatalf("expected no caches, got %+v", summary.Caches)
	}
}
