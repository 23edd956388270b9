package notification

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMSender delivers pushes through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
	logger *slog.Logger
}

// NewFCMSender initialises a messaging client. An empty credentialsFile falls
// back to application default credentials.
func NewFCMSender(ctx context.Context, projectID, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FCMSender{client: client, logger: logger}, nil
}

// SendPush sends one message per token and fails only when every send failed.
func (s *FCMSender) SendPush(ctx context.Context, tokens []DeviceToken, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	sent, failed := 0, 0
	for _, token := range tokens {
		msg := &messaging.Message{
			Token:        token.Token,
			Notification: &messaging.Notification{Title: title, Body: body},
			Data:         data,
		}
		switch token.Platform {
		case "ios":
			msg.APNS = &messaging.APNSConfig{Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}}}
		default:
			msg.Android = &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			}
		}

		if _, err := s.client.Send(ctx, msg); err != nil {
			s.logger.Debug("fcm send failed", slog.String("platform", token.Platform), slog.Any("error", err))
			failed++
			continue
		}
		sent++
	}

	if sent == 0 && failed > 0 {
		return fmt.Errorf("all %d push notifications failed", failed)
	}
	return nil
}
