package pubsub

import "fmt"

// TopicAchievementEvents carries events.AchievementCompleted for every user.
const TopicAchievementEvents = "achievement.events"

// UserNotificationsChannel is the per-user channel realtime clients subscribe to.
func UserNotificationsChannel(userID string) string {
	return fmt.Sprintf("user_notifications:%s", userID)
}
