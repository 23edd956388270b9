package notification

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

type firestoreRepository struct {
	client *firestore.Client
}

// NewFirestoreRepository builds a Firestore backed repository.
func NewFirestoreRepository(client *firestore.Client) Repository {
	return &firestoreRepository{client: client}
}

func (r *firestoreRepository) inbox(userID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(userID).Collection("notifications")
}

func (r *firestoreRepository) devices(userID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(userID).Collection("devices")
}

func (r *firestoreRepository) Create(ctx context.Context, n Notification) error {
	_, err := r.inbox(n.UserID).Doc(n.ID).Set(ctx, map[string]any{
		"type":       string(n.Type),
		"title":      n.Title,
		"body":       n.Body,
		"data":       n.Data,
		"read":       false,
		"read_at":    nil,
		"created_at": n.CreatedAt,
	})
	return storageError("create notification", err)
}

func (r *firestoreRepository) List(ctx context.Context, userID string, limit int) ([]Notification, error) {
	query := r.inbox(userID).OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	iter := query.Documents(ctx)
	defer iter.Stop()

	out := make([]Notification, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("list notifications", err)
		}
		var payload struct {
			Type      string            `firestore:"type"`
			Title     string            `firestore:"title"`
			Body      string            `firestore:"body"`
			Data      map[string]string `firestore:"data"`
			Read      bool              `firestore:"read"`
			ReadAt    *time.Time        `firestore:"read_at"`
			CreatedAt time.Time         `firestore:"created_at"`
		}
		if err := doc.DataTo(&payload); err != nil {
			return nil, storageError("decode notification", err)
		}
		out = append(out, Notification{
			ID:        doc.Ref.ID,
			UserID:    userID,
			Type:      Type(payload.Type),
			Title:     payload.Title,
			Body:      payload.Body,
			Data:      payload.Data,
			Read:      payload.Read,
			ReadAt:    payload.ReadAt,
			CreatedAt: payload.CreatedAt,
		})
	}
	return out, nil
}

func (r *firestoreRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	refs, err := r.unreadRefs(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

func (r *firestoreRepository) MarkRead(ctx context.Context, userID, notificationID string, at time.Time) error {
	_, err := r.inbox(userID).Doc(notificationID).Update(ctx, []firestore.Update{
		{Path: "read", Value: true},
		{Path: "read_at", Value: at},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return storageError("mark notification read", err)
}

func (r *firestoreRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	refs, err := r.unreadRefs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}

	bw := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := bw.Update(ref, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "read_at", Value: at},
		})
		if err != nil {
			bw.End()
			return 0, storageError("mark notifications read", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	changed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			changed++
		}
	}
	return changed, nil
}

func (r *firestoreRepository) unreadRefs(ctx context.Context, userID string) ([]*firestore.DocumentRef, error) {
	iter := r.inbox(userID).Where("read", "==", false).Select().Documents(ctx)
	defer iter.Stop()

	refs := make([]*firestore.DocumentRef, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("list unread notifications", err)
		}
		refs = append(refs, doc.Ref)
	}
	return refs, nil
}

func (r *firestoreRepository) SaveDevice(ctx context.Context, userID string, token DeviceToken) error {
	_, err := r.devices(userID).Doc(tokenKey(token.Token)).Set(ctx, map[string]any{
		"token":      token.Token,
		"platform":   token.Platform,
		"updated_at": token.UpdatedAt,
	})
	return storageError("save device", err)
}

func (r *firestoreRepository) ListDevices(ctx context.Context, userID string) ([]DeviceToken, error) {
	iter := r.devices(userID).Documents(ctx)
	defer iter.Stop()

	out := make([]DeviceToken, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("list devices", err)
		}
		var payload struct {
			Token     string    `firestore:"token"`
			Platform  string    `firestore:"platform"`
			UpdatedAt time.Time `firestore:"updated_at"`
		}
		if err := doc.DataTo(&payload); err != nil {
			continue
		}
		out = append(out, DeviceToken{Token: payload.Token, Platform: payload.Platform, UpdatedAt: payload.UpdatedAt})
	}
	return out, nil
}

// tokenKey derives a document ID; raw FCM tokens can exceed Firestore's ID rules.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return sharederrors.Wrap(sharederrors.KindStorage, op, err)
}
