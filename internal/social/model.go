package social

import (
	"context"
	"sort"
	"time"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

// RequestStatus tracks a friend request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
)

// FriendRequest is an invitation from one user to another.
type FriendRequest struct {
	ID          string        `json:"id"`
	FromUserID  string        `json:"from_user_id"`
	ToUserID    string        `json:"to_user_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt *time.Time    `json:"responded_at,omitempty"`
}

// Friend is one side of an accepted friendship.
type Friend struct {
	UserID   string    `json:"user_id"`
	FriendID string    `json:"friend_id"`
	Since    time.Time `json:"since"`
}

// Repository persists requests and friendships.
type Repository interface {
	// CreateRequest fails with ErrDuplicate when the pair already has a request.
	CreateRequest(ctx context.Context, req FriendRequest) error
	// Accept marks a pending request addressed to userID as accepted and
	// records the friendship on both sides in one atomic step.
	Accept(ctx context.Context, requestID, userID string, at time.Time) (FriendRequest, error)
	ListFriends(ctx context.Context, userID string) ([]Friend, error)
	ListPending(ctx context.Context, userID string) ([]FriendRequest, error)
}

var (
	ErrNotFound      = sharederrors.New(sharederrors.KindNotFound, "friend request not found")
	ErrDuplicate     = sharederrors.New(sharederrors.KindConflict, "friend request already exists")
	ErrNotPending    = sharederrors.New(sharederrors.KindConflict, "friend request is no longer pending")
	ErrNotAddressee  = sharederrors.New(sharederrors.KindForbidden, "only the recipient can accept a friend request")
	ErrInvalidInput  = sharederrors.New(sharederrors.KindValidation, "invalid input")
	ErrSelfFriending = sharederrors.New(sharederrors.KindValidation, "cannot send a friend request to yourself")
)

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// pairKey identifies a pair of users regardless of who asked whom.
func pairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "__" + ids[1]
}
