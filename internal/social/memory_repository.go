package social

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu       sync.RWMutex
	requests map[string]FriendRequest
	friends  map[string]map[string]Friend // userID -> friendID -> Friend
}

// NewMemoryRepository returns an in-memory repository intended for local development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		requests: make(map[string]FriendRequest),
		friends:  make(map[string]map[string]Friend),
	}
}

func (r *memoryRepository) CreateRequest(_ context.Context, req FriendRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[req.ID]; ok {
		return ErrDuplicate
	}
	r.requests[req.ID] = req
	return nil
}

func (r *memoryRepository) Accept(_ context.Context, requestID, userID string, at time.Time) (FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[requestID]
	if !ok {
		return FriendRequest{}, ErrNotFound
	}
	if req.ToUserID != userID {
		return FriendRequest{}, ErrNotAddressee
	}
	if req.Status != StatusPending {
		return FriendRequest{}, ErrNotPending
	}

	req.Status = StatusAccepted
	req.RespondedAt = &at
	r.requests[requestID] = req
	r.addFriend(req.FromUserID, req.ToUserID, at)
	r.addFriend(req.ToUserID, req.FromUserID, at)
	return req, nil
}

func (r *memoryRepository) addFriend(userID, friendID string, at time.Time) {
	set, ok := r.friends[userID]
	if !ok {
		set = make(map[string]Friend)
		r.friends[userID] = set
	}
	set[friendID] = Friend{UserID: userID, FriendID: friendID, Since: at}
}

func (r *memoryRepository) ListFriends(_ context.Context, userID string) ([]Friend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Friend, 0, len(r.friends[userID]))
	for _, f := range r.friends[userID] {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Since.After(out[j].Since) })
	return out, nil
}

func (r *memoryRepository) ListPending(_ context.Context, userID string) ([]FriendRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]FriendRequest, 0)
	for _, req := range r.requests {
		if req.ToUserID == userID && req.Status == StatusPending {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
