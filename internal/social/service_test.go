package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/shared-libs/logging"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService(t *testing.T, processor ActivityProcessor) *Service {
	t.Helper()
	svc, err := NewService(NewMemoryRepository(), processor, fixedClock{time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}, logging.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestSendRequestRules(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.SendRequest(ctx, "u1", "u1"); !errors.Is(err, ErrSelfFriending) {
		t.Fatalf("expected ErrSelfFriending, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, "u1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.SendRequest(ctx, "u1", "u2"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.SendRequest(ctx, "u2", "u1"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected reverse request to be a duplicate, got %v", err)
	}

	pending, err := svc.ListPending(ctx, "u2")
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending request, got %v, %v", pending, err)
	}
}

func TestAcceptProcessesBothUsers(t *testing.T) {
	repo := achievement.NewMemoryRepository()
	ctx := context.Background()
	if err := repo.CreateDefinition(ctx, achievement.Definition{
		ID:       "first_friend",
		Criteria: achievement.Criteria{Type: achievement.CriteriaFriendCount, Target: 1},
		Points:   20,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	processor, err := achievement.NewProcessor(repo, fixedClock{time.Now()}, logging.Discard())
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	svc := newTestService(t, processor)

	req, err := svc.SendRequest(ctx, "u1", "u2")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Accept(ctx, "u1", req.ID); !errors.Is(err, ErrNotAddressee) {
		t.Fatalf("expected ErrNotAddressee, got %v", err)
	}

	res, err := svc.Accept(ctx, "u2", req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.FriendCount != 1 || res.PointsAwarded != 20 || len(res.NewlyCompleted) != 1 {
		t.Fatalf("unexpected accept result: %+v", res)
	}

	senderDone, err := repo.ListCompletedByUser(ctx, "u1")
	if err != nil || len(senderDone) != 1 {
		t.Fatalf("expected sender to complete first_friend too, got %v, %v", senderDone, err)
	}

	if _, err := svc.Accept(ctx, "u2", req.ID); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on second accept, got %v", err)
	}
	friends, err := svc.ListFriends(ctx, "u1")
	if err != nil || len(friends) != 1 || friends[0].FriendID != "u2" {
		t.Fatalf("unexpected friends: %+v, %v", friends, err)
	}
}

func TestAcceptUnknownRequest(t *testing.T) {
	svc := newTestService(t, nil)
	if _, err := svc.Accept(context.Background(), "u2", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
