package session

import (
	"context"
	"errors"
	"fmt"
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

func (r *firestoreRepository) collection(userID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(userID).Collection("wellness_sessions")
}

func (r *firestoreRepository) Create(ctx context.Context, s Session) error {
	_, err := r.collection(s.UserID).Doc(s.ID).Create(ctx, sessionToMap(s))
	if status.Code(err) == codes.AlreadyExists {
		return ErrConflict
	}
	if err != nil {
		return sharederrors.Wrap(sharederrors.KindStorage, "create session", err)
	}
	return nil
}

func (r *firestoreRepository) GetByID(ctx context.Context, userID, sessionID string) (Session, error) {
	doc, err := r.collection(userID).Doc(sessionID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, sharederrors.Wrap(sharederrors.KindStorage, "get session", err)
	}
	return snapshotToSession(doc, userID)
}

func (r *firestoreRepository) Complete(ctx context.Context, userID, sessionID string, c Completion) (Session, error) {
	ref := r.collection(userID).Doc(sessionID)
	var out Session
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		s, err := snapshotToSession(doc, userID)
		if err != nil {
			return err
		}
		if s.Status != StatusStarted {
			return ErrAlreadyCompleted
		}
		applyCompletion(&s, c)
		out = s
		return tx.Set(ref, sessionToMap(s))
	})
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyCompleted):
		return Session{}, err
	default:
		return Session{}, sharederrors.Wrap(sharederrors.KindStorage, "complete session", err)
	}
}

func (r *firestoreRepository) List(ctx context.Context, userID string, kind Kind, limit int) ([]Session, error) {
	query := r.collection(userID).Query
	if kind != "" {
		query = query.Where("kind", "==", string(kind))
	}
	query = query.OrderBy("started_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.query(ctx, userID, query)
}

func (r *firestoreRepository) CompletedTimes(ctx context.Context, userID string) ([]time.Time, error) {
	iter := r.collection(userID).
		Where("status", "==", string(StatusCompleted)).
		Select("completed_at").
		Documents(ctx)
	defer iter.Stop()

	times := make([]time.Time, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, sharederrors.Wrap(sharederrors.KindStorage, "list completed sessions", err)
		}
		var snapshot struct {
			CompletedAt *time.Time `firestore:"completed_at"`
		}
		if err := doc.DataTo(&snapshot); err != nil {
			continue
		}
		if snapshot.CompletedAt != nil {
			times = append(times, *snapshot.CompletedAt)
		}
	}
	return times, nil
}

func (r *firestoreRepository) ListRated(ctx context.Context, userID string, kind Kind) ([]Session, error) {
	query := r.collection(userID).
		Where("kind", "==", string(kind)).
		Where("status", "==", string(StatusCompleted)).
		OrderBy("started_at", firestore.Asc)
	sessions, err := r.query(ctx, userID, query)
	if err != nil {
		return nil, err
	}
	rated := sessions[:0]
	for _, s := range sessions {
		if s.StressBefore != nil && s.StressAfter != nil {
			rated = append(rated, s)
		}
	}
	return rated, nil
}

func (r *firestoreRepository) query(ctx context.Context, userID string, query firestore.Query) ([]Session, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	sessions := make([]Session, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, sharederrors.Wrap(sharederrors.KindStorage, "list sessions", err)
		}
		s, err := snapshotToSession(doc, userID)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func sessionToMap(s Session) map[string]any {
	data := map[string]any{
		"user_id":          s.UserID,
		"kind":             string(s.Kind),
		"technique":        s.Technique,
		"content_id":       s.ContentID,
		"mood_before":      s.MoodBefore,
		"mood_after":       s.MoodAfter,
		"status":           string(s.Status),
		"duration_seconds": s.DurationSeconds,
		"started_at":       s.StartedAt,
		"completed_at":     nil,
		"stress_before":    nil,
		"stress_after":     nil,
		"created_at":       s.CreatedAt,
		"updated_at":       s.UpdatedAt,
	}
	if s.CompletedAt != nil {
		data["completed_at"] = *s.CompletedAt
	}
	if s.StressBefore != nil {
		data["stress_before"] = *s.StressBefore
	}
	if s.StressAfter != nil {
		data["stress_after"] = *s.StressAfter
	}
	return data
}

func snapshotToSession(doc *firestore.DocumentSnapshot, userID string) (Session, error) {
	var payload struct {
		Kind            string     `firestore:"kind"`
		Technique       string     `firestore:"technique"`
		ContentID       string     `firestore:"content_id"`
		StressBefore    *int       `firestore:"stress_before"`
		StressAfter     *int       `firestore:"stress_after"`
		MoodBefore      string     `firestore:"mood_before"`
		MoodAfter       string     `firestore:"mood_after"`
		Status          string     `firestore:"status"`
		DurationSeconds int        `firestore:"duration_seconds"`
		StartedAt       time.Time  `firestore:"started_at"`
		CompletedAt     *time.Time `firestore:"completed_at"`
		CreatedAt       time.Time  `firestore:"created_at"`
		UpdatedAt       time.Time  `firestore:"updated_at"`
	}
	if err := doc.DataTo(&payload); err != nil {
		return Session{}, sharederrors.Wrap(sharederrors.KindStorage, fmt.Sprintf("decode session %s", doc.Ref.ID), err)
	}
	return Session{
		ID:              doc.Ref.ID,
		UserID:          userID,
		Kind:            Kind(payload.Kind),
		Technique:       payload.Technique,
		ContentID:       payload.ContentID,
		StressBefore:    payload.StressBefore,
		StressAfter:     payload.StressAfter,
		MoodBefore:      payload.MoodBefore,
		MoodAfter:       payload.MoodAfter,
		Status:          Status(payload.Status),
		DurationSeconds: payload.DurationSeconds,
		StartedAt:       payload.StartedAt,
		CompletedAt:     payload.CompletedAt,
		CreatedAt:       payload.CreatedAt,
		UpdatedAt:       payload.UpdatedAt,
	}, nil
}
