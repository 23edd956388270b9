package notification

import (
	"context"
	"time"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

// Type classifies inbox entries.
type Type string

const (
	TypeAchievementCompleted Type = "achievement_completed"
)

// Notification is one inbox entry.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      Type              `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DeviceToken is a push target registered by a client.
type DeviceToken struct {
	Token     string    `json:"token" validate:"required,max=4096"`
	Platform  string    `json:"platform" validate:"omitempty,oneof=android ios web"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists inbox entries and device tokens.
type Repository interface {
	Create(ctx context.Context, n Notification) error
	List(ctx context.Context, userID string, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	SaveDevice(ctx context.Context, userID string, token DeviceToken) error
	ListDevices(ctx context.Context, userID string) ([]DeviceToken, error)
}

// Publisher fans payloads out to realtime subscribers.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// PushSender delivers a push message to device tokens.
type PushSender interface {
	SendPush(ctx context.Context, tokens []DeviceToken, title, body string, data map[string]string) error
}

var (
	ErrNotFound     = sharederrors.New(sharederrors.KindNotFound, "notification not found")
	ErrInvalidInput = sharederrors.New(sharederrors.KindValidation, "invalid input")
)

// Clock delivers the current time; extracted for deterministic testing.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for new notifications.
type IDGenerator interface {
	NewID() string
}
