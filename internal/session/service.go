package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/focusnest/wellness-service/internal/achievement"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ActivityProcessor advances achievements for completed activities.
type ActivityProcessor interface {
	Process(ctx context.Context, event achievement.ActivityEvent) (achievement.Result, error)
}

// CompletionResult is returned when a session completes.
type CompletionResult struct {
	Session        Session                  `json:"session"`
	Streak         int                      `json:"streak"`
	NewlyCompleted []achievement.Definition `json:"newly_completed"`
	PointsAwarded  int                      `json:"points_awarded"`
}

// StreakInfo summarises a user's practice streaks.
type StreakInfo struct {
	Current      int        `json:"current"`
	Longest      int        `json:"longest"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// Service orchestrates the session lifecycle.
type Service struct {
	repo      Repository
	processor ActivityProcessor
	clock     Clock
	ids       IDGenerator
	loc       *time.Location
	logger    *slog.Logger
}

// NewService constructs a Service instance with the provided collaborators.
// loc is the timezone streak days are counted in.
func NewService(repo Repository, processor ActivityProcessor, clock Clock, ids IDGenerator, loc *time.Location, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, processor: processor, clock: clock, ids: ids, loc: loc, logger: logger}, nil
}

// Start registers a new session in the started state.
func (s *Service) Start(ctx context.Context, input StartInput) (Session, error) {
	input.Kind = Kind(strings.ToLower(strings.TrimSpace(string(input.Kind))))
	if err := input.Validate(); err != nil {
		return Session{}, err
	}

	now := s.clock.Now().UTC()
	sess := Session{
		ID:           s.ids.NewID(),
		UserID:       input.UserID,
		Kind:         input.Kind,
		Technique:    strings.ToLower(strings.TrimSpace(input.Technique)),
		ContentID:    strings.TrimSpace(input.ContentID),
		StressBefore: input.StressBefore,
		MoodBefore:   input.MoodBefore,
		Status:       StatusStarted,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get retrieves a single session for the user.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	if userID == "" || sessionID == "" {
		return Session{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, userID, sessionID)
}

// List returns the user's sessions newest first, optionally filtered by kind.
func (s *Service) List(ctx context.Context, userID string, kind Kind, limit int) ([]Session, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, userID, kind, limit)
}

// Complete finishes a started session, then advances achievements for the
// session and the resulting streak. Achievement failures are logged and
// never fail the completion itself.
func (s *Service) Complete(ctx context.Context, input CompleteInput) (CompletionResult, error) {
	if err := input.Validate(); err != nil {
		return CompletionResult{}, err
	}

	now := s.clock.Now()
	sess, err := s.repo.Complete(ctx, input.UserID, input.SessionID, Completion{
		DurationSeconds: input.DurationSeconds,
		StressAfter:     input.StressAfter,
		MoodAfter:       input.MoodAfter,
		CompletedAt:     now.UTC(),
	})
	if err != nil {
		return CompletionResult{}, err
	}

	result := CompletionResult{Session: sess, NewlyCompleted: []achievement.Definition{}}

	times, err := s.repo.CompletedTimes(ctx, input.UserID)
	historyLoaded := err == nil
	if !historyLoaded {
		s.logger.Warn("load session history failed", slog.String("user_id", input.UserID), slog.Any("error", err))
		times = []time.Time{now}
	}
	result.Streak = achievement.ComputeStreak(times, now.In(s.loc))

	if s.processor == nil {
		return result, nil
	}

	events := []achievement.ActivityEvent{{
		ID:              "session:" + sess.ID,
		UserID:          sess.UserID,
		Kind:            achievement.ActivitySessionCompleted,
		SessionKind:     string(sess.Kind),
		DurationMinutes: sess.DurationMinutes(),
		OccurredAt:      now.UTC(),
	}}
	// A partial history would report a shorter streak and lower mirrored progress.
	if historyLoaded && result.Streak > 0 {
		events = append(events, achievement.ActivityEvent{
			ID:         "streak:" + sess.ID,
			UserID:     sess.UserID,
			Kind:       achievement.ActivityStreakAdvanced,
			StreakDays: result.Streak,
			OccurredAt: now.UTC(),
		})
	}

	for _, ev := range events {
		res, err := s.processor.Process(ctx, ev)
		if err != nil {
			s.logger.Error("achievement processing failed",
				slog.String("user_id", sess.UserID),
				slog.String("session_id", sess.ID),
				slog.String("activity", string(ev.Kind)),
				slog.Any("error", err),
			)
		}
		result.NewlyCompleted = append(result.NewlyCompleted, res.NewlyCompleted...)
		result.PointsAwarded += res.PointsAwarded
	}
	return result, nil
}

// Streak reports the current and longest streak for the user.
func (s *Service) Streak(ctx context.Context, userID string) (StreakInfo, error) {
	if userID == "" {
		return StreakInfo{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	times, err := s.repo.CompletedTimes(ctx, userID)
	if err != nil {
		return StreakInfo{}, err
	}

	info := StreakInfo{
		Current: achievement.ComputeStreak(times, s.clock.Now().In(s.loc)),
		Longest: achievement.LongestStreak(times, s.loc),
	}
	for _, ts := range times {
		if info.LastActiveAt == nil || ts.After(*info.LastActiveAt) {
			last := ts
			info.LastActiveAt = &last
		}
	}
	return info, nil
}
