package social

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/focusnest/wellness-service/internal/achievement"
)

// ActivityProcessor advances achievements for social activity.
type ActivityProcessor interface {
	Process(ctx context.Context, event achievement.ActivityEvent) (achievement.Result, error)
}

// AcceptResult is returned to the user who accepted a request.
type AcceptResult struct {
	Request        FriendRequest            `json:"request"`
	FriendCount    int                      `json:"friend_count"`
	NewlyCompleted []achievement.Definition `json:"newly_completed"`
	PointsAwarded  int                      `json:"points_awarded"`
}

// Service manages friend requests.
type Service struct {
	repo      Repository
	processor ActivityProcessor
	clock     Clock
	logger    *slog.Logger
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, processor ActivityProcessor, clock Clock, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, processor: processor, clock: clock, logger: logger}, nil
}

// SendRequest invites toUserID to become fromUserID's friend.
func (s *Service) SendRequest(ctx context.Context, fromUserID, toUserID string) (FriendRequest, error) {
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)
	if fromUserID == "" || toUserID == "" {
		return FriendRequest{}, fmt.Errorf("%w: both users are required", ErrInvalidInput)
	}
	if fromUserID == toUserID {
		return FriendRequest{}, ErrSelfFriending
	}

	req := FriendRequest{
		ID:         pairKey(fromUserID, toUserID),
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     StatusPending,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return FriendRequest{}, err
	}
	return req, nil
}

// Accept accepts a request addressed to userID and advances friend
// achievements for both users. Achievement failures are logged only.
func (s *Service) Accept(ctx context.Context, userID, requestID string) (AcceptResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(requestID) == "" {
		return AcceptResult{}, fmt.Errorf("%w: user and request are required", ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	req, err := s.repo.Accept(ctx, requestID, userID, now)
	if err != nil {
		return AcceptResult{}, err
	}

	result := AcceptResult{Request: req, NewlyCompleted: []achievement.Definition{}}
	for _, uid := range []string{req.ToUserID, req.FromUserID} {
		friends, err := s.repo.ListFriends(ctx, uid)
		if err != nil {
			s.logger.Warn("count friends failed", slog.String("user_id", uid), slog.Any("error", err))
			continue
		}
		if uid == userID {
			result.FriendCount = len(friends)
		}
		if s.processor == nil || len(friends) == 0 {
			continue
		}

		res, err := s.processor.Process(ctx, achievement.ActivityEvent{
			ID:          "friend:" + req.ID + ":" + uid,
			UserID:      uid,
			Kind:        achievement.ActivityFriendAccepted,
			FriendCount: len(friends),
			OccurredAt:  now,
		})
		if err != nil {
			s.logger.Error("achievement processing failed",
				slog.String("user_id", uid),
				slog.String("request_id", req.ID),
				slog.Any("error", err),
			)
		}
		if uid == userID {
			result.NewlyCompleted = append(result.NewlyCompleted, res.NewlyCompleted...)
			result.PointsAwarded += res.PointsAwarded
		}
	}
	return result, nil
}

// ListFriends returns the user's friends.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.repo.ListFriends(ctx, userID)
}

// ListPending returns requests waiting for the user's answer.
func (s *Service) ListPending(ctx context.Context, userID string) ([]FriendRequest, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.repo.ListPending(ctx, userID)
}
