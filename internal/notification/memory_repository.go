package notification

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu      sync.RWMutex
	inbox   map[string]map[string]Notification // userID -> notificationID -> Notification
	devices map[string]map[string]DeviceToken  // userID -> token -> DeviceToken
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		inbox:   make(map[string]map[string]Notification),
		devices: make(map[string]map[string]DeviceToken),
	}
}

func (r *memoryRepository) Create(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.inbox[n.UserID]
	if !ok {
		box = make(map[string]Notification)
		r.inbox[n.UserID] = box
	}
	box[n.ID] = n
	return nil
}

func (r *memoryRepository) List(_ context.Context, userID string, limit int) ([]Notification, error) {
	r.mu.RLock()
	out := make([]Notification, 0, len(r.inbox[userID]))
	for _, n := range r.inbox[userID] {
		out = append(out, n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) CountUnread(_ context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.inbox[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) MarkRead(_ context.Context, userID, notificationID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.inbox[userID][notificationID]
	if !ok {
		return ErrNotFound
	}
	if n.Read {
		return nil
	}
	n.Read = true
	n.ReadAt = &at
	r.inbox[userID][notificationID] = n
	return nil
}

func (r *memoryRepository) MarkAllRead(_ context.Context, userID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for id, n := range r.inbox[userID] {
		if n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &at
		r.inbox[userID][id] = n
		changed++
	}
	return changed, nil
}

func (r *memoryRepository) SaveDevice(_ context.Context, userID string, token DeviceToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.devices[userID]
	if !ok {
		set = make(map[string]DeviceToken)
		r.devices[userID] = set
	}
	set[token.Token] = token
	return nil
}

func (r *memoryRepository) ListDevices(_ context.Context, userID string) ([]DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DeviceToken, 0, len(r.devices[userID]))
	for _, t := range r.devices[userID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}
