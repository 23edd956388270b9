package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/shared-libs/events"
	"github.com/focusnest/wellness-service/shared-libs/pubsub"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

var validate = validator.New()

// DefinitionLookup resolves achievement names for message text.
type DefinitionLookup interface {
	GetDefinition(ctx context.Context, id string) (achievement.Definition, error)
}

// Service owns the inbox and implements achievement.Notifier.
type Service struct {
	repo       Repository
	lookup     DefinitionLookup
	publisher  Publisher
	dispatcher *Dispatcher
	clock      Clock
	ids        IDGenerator
	logger     *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher fans new entries out to realtime subscribers.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithDispatcher queues push messages for registered devices.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, lookup DefinitionLookup, clock Clock, ids IDGenerator, logger *slog.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, lookup: lookup, clock: clock, ids: ids, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Notify stores an "achievement completed" entry, then publishes and pushes
// it. Only the inbox write can fail the call; fan-out is best-effort.
func (s *Service) Notify(ctx context.Context, userID, achievementID string) error {
	name := achievementID
	if s.lookup != nil {
		if def, err := s.lookup.GetDefinition(ctx, achievementID); err == nil && def.Name != "" {
			name = def.Name
		}
	}

	now := s.clock.Now().UTC()
	n := Notification{
		ID:     s.ids.NewID(),
		UserID: userID,
		Type:   TypeAchievementCompleted,
		Title:  "Achievement unlocked",
		Body:   fmt.Sprintf("You earned %q", name),
		Data: map[string]string{
			"achievement_id": achievementID,
		},
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	s.publish(ctx, n)
	s.push(ctx, n)
	return nil
}

func (s *Service) publish(ctx context.Context, n Notification) {
	if s.publisher == nil {
		return
	}
	data := make(map[string]any, len(n.Data))
	for k, v := range n.Data {
		data[k] = v
	}
	created := events.NotificationCreated{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		Title:          n.Title,
		Body:           n.Body,
		Data:           data,
		CreatedAt:      n.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, pubsub.UserNotificationsChannel(n.UserID), created); err != nil {
		s.logger.Warn("notification publish failed", slog.String("user_id", n.UserID), slog.Any("error", err))
	}

	if n.Type != TypeAchievementCompleted {
		return
	}
	completed := events.AchievementCompleted{
		UserID:        n.UserID,
		AchievementID: n.Data["achievement_id"],
		CompletedAt:   n.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, pubsub.TopicAchievementEvents, completed); err != nil {
		s.logger.Warn("achievement event publish failed", slog.String("user_id", n.UserID), slog.Any("error", err))
	}
}

func (s *Service) push(ctx context.Context, n Notification) {
	if s.dispatcher == nil {
		return
	}
	tokens, err := s.repo.ListDevices(ctx, n.UserID)
	if err != nil {
		s.logger.Warn("load device tokens failed", slog.String("user_id", n.UserID), slog.Any("error", err))
		return
	}
	if len(tokens) == 0 {
		return
	}
	job := PushJob{UserID: n.UserID, Tokens: tokens, Title: n.Title, Body: n.Body, Data: n.Data}
	if err := s.dispatcher.Enqueue(ctx, job); err != nil {
		s.logger.Warn("push enqueue failed", slog.String("user_id", n.UserID), slog.Any("error", err))
	}
}

// List returns the newest entries for the user.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.repo.List(ctx, userID, limit)
}

// UnreadCount returns how many entries the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks one entry read.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(notificationID) == "" {
		return ErrNotFound
	}
	return s.repo.MarkRead(ctx, userID, notificationID, s.clock.Now().UTC())
}

// MarkAllRead marks every unread entry read and reports how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.repo.MarkAllRead(ctx, userID, s.clock.Now().UTC())
}

// RegisterDevice stores a push token for the user.
func (s *Service) RegisterDevice(ctx context.Context, userID string, token DeviceToken) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	token.Token = strings.TrimSpace(token.Token)
	token.Platform = strings.ToLower(strings.TrimSpace(token.Platform))
	if err := validate.Struct(token); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	token.UpdatedAt = s.clock.Now().UTC()
	return s.repo.SaveDevice(ctx, userID, token)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}
