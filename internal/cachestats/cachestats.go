package cachestats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

var validate = validator.New()

// ErrInvalidInput indicates a malformed usage report.
var ErrInvalidInput = sharederrors.New(sharederrors.KindValidation, "invalid input")

// Counters is one cache's accumulated usage. SizeBytes is the last reported size.
type Counters struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	SizeBytes int64 `json:"size_bytes"`
}

// UsageReport is what a client sends after a period of cache use.
type UsageReport struct {
	Cache     string `json:"cache" validate:"required,max=64,excludesall=:"`
	Hits      int64  `json:"hits" validate:"gte=0"`
	Misses    int64  `json:"misses" validate:"gte=0"`
	Evictions int64  `json:"evictions" validate:"gte=0"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
}

// CacheStat is the aggregated view of one cache.
type CacheStat struct {
	Cache string `json:"cache,omitempty"`
	Counters
	HitRatio float64 `json:"hit_ratio"`
}

// Summary aggregates every cache a user reported.
type Summary struct {
	UserID string      `json:"user_id"`
	Caches []CacheStat `json:"caches"`
	Totals CacheStat   `json:"totals"`
}

// Store accumulates counters per user and cache.
type Store interface {
	Add(ctx context.Context, userID, cache string, delta Counters) error
	Load(ctx context.Context, userID string) (map[string]Counters, error)
}

// Service validates reports and builds summaries.
type Service struct {
	store Store
}

// NewService constructs a Service backed by store.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	return &Service{store: store}, nil
}

// Record adds report to the user's counters.
func (s *Service) Record(ctx context.Context, userID string, report UsageReport) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	report.Cache = strings.TrimSpace(report.Cache)
	if err := validate.Struct(report); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.store.Add(ctx, userID, report.Cache, Counters{
		Hits:      report.Hits,
		Misses:    report.Misses,
		Evictions: report.Evictions,
		SizeBytes: report.SizeBytes,
	})
}

// Summary returns per-cache totals sorted by cache name plus the overall totals.
func (s *Service) Summary(ctx context.Context, userID string) (Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return Summary{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	byCache, err := s.store.Load(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return summarize(userID, byCache), nil
}

func summarize(userID string, byCache map[string]Counters) Summary {
	out := Summary{UserID: userID, Caches: make([]CacheStat, 0, len(byCache))}
	var totals Counters
	for name, c := range byCache {
		out.Caches = append(out.Caches, CacheStat{Cache: name, Counters: c, HitRatio: hitRatio(c)})
		totals.Hits += c.Hits
		totals.Misses += c.Misses
		totals.Evictions += c.Evictions
		totals.SizeBytes += c.SizeBytes
	}
	sort.Slice(out.Caches, func(i, j int) bool { return out.Caches[i].Cache < out.Caches[j].Cache })
	out.Totals = CacheStat{Counters: totals, HitRatio: hitRatio(totals)}
	return out
}

func hitRatio(c Counters) float64 {
	lookups := c.Hits + c.Misses
	if lookups == 0 {
		return 0
	}
	return float64(c.Hits) / float64(lookups)
}
