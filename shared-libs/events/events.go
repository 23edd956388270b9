package events

import "time"

// AchievementCompleted is published when a user completes an achievement.
type AchievementCompleted struct {
	UserID        string    `json:"userId"`
	AchievementID string    `json:"achievementId"`
	CompletedAt   time.Time `json:"completedAt"`
}

// NotificationCreated is fanned out to connected clients when an inbox entry is stored.
type NotificationCreated struct {
	NotificationID string         `json:"notificationId"`
	UserID         string         `json:"userId"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}
