package achievement

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	progress map[string]Progress
	now      func() time.Time
}

// NewMemoryRepository returns an in-process Repository used for local runs and tests.
func NewMemoryRepository() Repository {
	return newMemoryRepository(func() time.Time { return time.Now().UTC() })
}

func newMemoryRepository(now func() time.Time) *memoryRepository {
	return &memoryRepository{
		defs:     make(map[string]Definition),
		progress: make(map[string]Progress),
		now:      now,
	}
}

func (r *memoryRepository) CreateDefinition(_ context.Context, def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.ID]; ok {
		return ErrAlreadyExists
	}
	r.defs[def.ID] = def
	return nil
}

func (r *memoryRepository) GetDefinition(_ context.Context, id string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return Definition{}, ErrNotFound
	}
	return def, nil
}

func (r *memoryRepository) ListDefinitions(_ context.Context) ([]Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sortDefinitions(defs)
	return defs, nil
}

func (r *memoryRepository) UpdateDefinition(_ context.Context, def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.ID]; !ok {
		return ErrNotFound
	}
	r.defs[def.ID] = def
	return nil
}

func (r *memoryRepository) DeleteDefinition(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return ErrNotFound
	}
	for _, p := range r.progress {
		if p.AchievementID == id {
			return ErrInUse
		}
	}
	delete(r.defs, id)
	return nil
}

func (r *memoryRepository) FindApplicable(_ context.Context, kind ActivityKind) ([]Definition, error) {
	types := criteriaTypesFor(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := []Definition{}
	for _, def := range r.defs {
		for _, t := range types {
			if def.Criteria.Type == t {
				defs = append(defs, def)
				break
			}
		}
	}
	sortDefinitions(defs)
	return defs, nil
}

func (r *memoryRepository) GetOrCreateProgress(_ context.Context, userID, achievementID string) (Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ProgressID(userID, achievementID)
	if p, ok := r.progress[id]; ok {
		return cloneProgress(p), nil
	}
	p := newProgress(userID, achievementID, r.now())
	r.progress[id] = p
	return p, nil
}

func (r *memoryRepository) SaveProgress(_ context.Context, record Progress) (Progress, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ProgressID(record.UserID, record.AchievementID)
	stored, ok := r.progress[id]
	if !ok {
		return Progress{}, false, ErrProgressNotFound
	}
	if stored.Version != record.Version {
		return Progress{}, false, ErrConflict
	}

	next, transitioned := mergeProgress(stored, record, r.now())
	r.progress[id] = next
	return cloneProgress(next), transitioned, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Progress, error) {
	return r.filter(userID, func(Progress) bool { return true }), nil
}

func (r *memoryRepository) ListCompletedByUser(_ context.Context, userID string) ([]Progress, error) {
	return r.filter(userID, func(p Progress) bool { return p.Completed }), nil
}

func (r *memoryRepository) ListInProgressByUser(_ context.Context, userID string) ([]Progress, error) {
	return r.filter(userID, func(p Progress) bool { return !p.Completed }), nil
}

func (r *memoryRepository) ListRecentlyCompleted(_ context.Context, userID string, limit int) ([]Progress, error) {
	completed := r.filter(userID, func(p Progress) bool { return p.Completed })
	sort.SliceStable(completed, func(i, j int) bool {
		return completedAt(completed[i]).After(completedAt(completed[j]))
	})
	if limit > 0 && len(completed) > limit {
		completed = completed[:limit]
	}
	return completed, nil
}

func (r *memoryRepository) filter(userID string, keep func(Progress) bool) []Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Progress{}
	for _, p := range r.progress {
		if p.UserID == userID && keep(p) {
			out = append(out, cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out
}

// mergeProgress builds the record to store on a successful version check.
// Completion fields are written once and never cleared.
// newProgress is the zero record GetOrCreateProgress stores on first access.
func newProgress(userID, achievementID string, now time.Time) Progress {
	return Progress{
		ID:            ProgressID(userID, achievementID),
		UserID:        userID,
		AchievementID: achievementID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func mergeProgress(stored, record Progress, now time.Time) (Progress, bool) {
	next := record
	next.ID = stored.ID
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = now
	next.Version = stored.Version + 1

	transitioned := !stored.Completed && record.Completed
	switch {
	case stored.Completed:
		next.Completed = true
		next.CompletedAt = stored.CompletedAt
		next.PointsAwarded = stored.PointsAwarded
	case transitioned:
		if next.CompletedAt == nil {
			next.CompletedAt = &now
		}
	default:
		next.CompletedAt = nil
		next.PointsAwarded = 0
	}
	return next, transitioned
}

func cloneProgress(p Progress) Progress {
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		p.CompletedAt = &at
	}
	return p
}

func completedAt(p Progress) time.Time {
	if p.CompletedAt == nil {
		return time.Time{}
	}
	return *p.CompletedAt
}

func sortDefinitions(defs []Definition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Category != defs[j].Category {
			return defs[i].Category < defs[j].Category
		}
		if defs[i].Criteria.Target != defs[j].Criteria.Target {
			return defs[i].Criteria.Target < defs[j].Criteria.Target
		}
		return defs[i].ID < defs[j].ID
	})
}
