package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	store map[string]map[string]Session // userID -> sessionID -> Session
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{store: make(map[string]map[string]Session)}
}

func (r *memoryRepository) Create(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	userStore, ok := r.store[s.UserID]
	if !ok {
		userStore = make(map[string]Session)
		r.store[s.UserID] = userStore
	}
	if _, exists := userStore[s.ID]; exists {
		return ErrConflict
	}
	userStore[s.ID] = s
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, userID, sessionID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store[userID][sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (r *memoryRepository) Complete(_ context.Context, userID, sessionID string, c Completion) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.store[userID][sessionID]
	if !ok {
		return Session{}, ErrNotFound
	}
	if s.Status != StatusStarted {
		return Session{}, ErrAlreadyCompleted
	}
	applyCompletion(&s, c)
	r.store[userID][sessionID] = s
	return s, nil
}

func (r *memoryRepository) List(_ context.Context, userID string, kind Kind, limit int) ([]Session, error) {
	out := r.snapshot(userID, func(s Session) bool { return kind == "" || s.Kind == kind })
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) CompletedTimes(_ context.Context, userID string) ([]time.Time, error) {
	completed := r.snapshot(userID, func(s Session) bool { return s.Status == StatusCompleted && s.CompletedAt != nil })
	times := make([]time.Time, 0, len(completed))
	for _, s := range completed {
		times = append(times, *s.CompletedAt)
	}
	return times, nil
}

func (r *memoryRepository) ListRated(_ context.Context, userID string, kind Kind) ([]Session, error) {
	out := r.snapshot(userID, func(s Session) bool {
		return s.Kind == kind && s.Status == StatusCompleted && s.StressBefore != nil && s.StressAfter != nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *memoryRepository) snapshot(userID string, keep func(Session) bool) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0)
	for _, s := range r.store[userID] {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

func applyCompletion(s *Session, c Completion) {
	completedAt := c.CompletedAt
	s.Status = StatusCompleted
	s.DurationSeconds = c.DurationSeconds
	s.StressAfter = c.StressAfter
	s.MoodAfter = c.MoodAfter
	s.CompletedAt = &completedAt
	s.UpdatedAt = completedAt
}
