package achievement

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

const (
	definitionsCollection = "achievement_definitions"
	progressCollection    = "achievement_progress"
)

type firestoreRepository struct {
	client *firestore.Client
	clock  Clock
}

// NewFirestoreRepository creates a Firestore backed repository. A nil clock
// falls back to the system clock.
func NewFirestoreRepository(client *firestore.Client, clock Clock) Repository {
	return newFirestoreRepository(client, clock)
}

func newFirestoreRepository(client *firestore.Client, clock Clock) *firestoreRepository {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &firestoreRepository{client: client, clock: clock}
}

func (r *firestoreRepository) now() time.Time {
	return r.clock.Now().UTC()
}

type definitionDoc struct {
	Name        string      `firestore:"name"`
	Description string      `firestore:"description"`
	Category    string      `firestore:"category"`
	Criteria    criteriaDoc `firestore:"criteria"`
	Icon        string      `firestore:"icon"`
	Points      int         `firestore:"points"`
	CreatedAt   time.Time   `firestore:"created_at"`
	UpdatedAt   time.Time   `firestore:"updated_at"`
}

type criteriaDoc struct {
	Type        string `firestore:"type"`
	Target      int    `firestore:"target"`
	SessionKind string `firestore:"session_kind"`
}

type progressDoc struct {
	UserID        string     `firestore:"user_id"`
	AchievementID string     `firestore:"achievement_id"`
	Progress      int        `firestore:"progress"`
	Completed     bool       `firestore:"completed"`
	CompletedAt   *time.Time `firestore:"completed_at"`
	PointsAwarded int        `firestore:"points_awarded"`
	LastEventID   string     `firestore:"last_event_id"`
	Version       int64      `firestore:"version"`
	CreatedAt     time.Time  `firestore:"created_at"`
	UpdatedAt     time.Time  `firestore:"updated_at"`
}

func (r *firestoreRepository) definitions() *firestore.CollectionRef {
	return r.client.Collection(definitionsCollection)
}

func (r *firestoreRepository) progress() *firestore.CollectionRef {
	return r.client.Collection(progressCollection)
}

func (r *firestoreRepository) CreateDefinition(ctx context.Context, def Definition) error {
	_, err := r.definitions().Doc(def.ID).Create(ctx, definitionToMap(def))
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyExists
	}
	return storageError("create definition", err)
}

func (r *firestoreRepository) GetDefinition(ctx context.Context, id string) (Definition, error) {
	doc, err := r.definitions().Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Definition{}, ErrNotFound
	}
	if err != nil {
		return Definition{}, storageError("get definition", err)
	}
	return snapshotToDefinition(doc)
}

func (r *firestoreRepository) ListDefinitions(ctx context.Context) ([]Definition, error) {
	return r.queryDefinitions(ctx, r.definitions().Query)
}

func (r *firestoreRepository) UpdateDefinition(ctx context.Context, def Definition) error {
	_, err := r.definitions().Doc(def.ID).Set(ctx, definitionToMap(def))
	return storageError("update definition", err)
}

func (r *firestoreRepository) DeleteDefinition(ctx context.Context, id string) error {
	ref := r.definitions().Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); status.Code(err) == codes.NotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		iter := tx.Documents(r.progress().Where("achievement_id", "==", id).Limit(1))
		defer iter.Stop()
		if _, err := iter.Next(); err == nil {
			return ErrInUse
		} else if err != iterator.Done {
			return err
		}

		return tx.Delete(ref)
	})
	return storageError("delete definition", err)
}

func (r *firestoreRepository) FindApplicable(ctx context.Context, kind ActivityKind) ([]Definition, error) {
	types := criteriaTypesFor(kind)
	if len(types) == 0 {
		return []Definition{}, nil
	}
	values := make([]string, 0, len(types))
	for _, t := range types {
		values = append(values, string(t))
	}
	return r.queryDefinitions(ctx, r.definitions().Where("criteria.type", "in", values))
}

func (r *firestoreRepository) queryDefinitions(ctx context.Context, query firestore.Query) ([]Definition, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	defs := []Definition{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("list definitions", err)
		}
		def, err := snapshotToDefinition(doc)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	sortDefinitions(defs)
	return defs, nil
}

func (r *firestoreRepository) GetOrCreateProgress(ctx context.Context, userID, achievementID string) (Progress, error) {
	ref := r.progress().Doc(ProgressID(userID, achievementID))
	var out Progress
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err == nil {
			out, err = snapshotToProgress(doc)
			return err
		}
		if status.Code(err) != codes.NotFound {
			return err
		}

		out = newProgress(userID, achievementID, r.now())
		return tx.Create(ref, progressToMap(out))
	})
	if err != nil {
		return Progress{}, storageError("get or create progress", err)
	}
	return out, nil
}

func (r *firestoreRepository) SaveProgress(ctx context.Context, record Progress) (Progress, bool, error) {
	ref := r.progress().Doc(ProgressID(record.UserID, record.AchievementID))

	var (
		saved        Progress
		transitioned bool
	)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrProgressNotFound
		}
		if err != nil {
			return err
		}
		stored, err := snapshotToProgress(doc)
		if err != nil {
			return err
		}
		if stored.Version != record.Version {
			return ErrConflict
		}

		saved, transitioned = mergeProgress(stored, record, r.now())
		return tx.Set(ref, progressToMap(saved))
	})
	if status.Code(err) == codes.Aborted {
		return Progress{}, false, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err != nil {
		return Progress{}, false, storageError("save progress", err)
	}
	return saved, transitioned, nil
}

func (r *firestoreRepository) ListByUser(ctx context.Context, userID string) ([]Progress, error) {
	return r.queryProgress(ctx, r.progress().Where("user_id", "==", userID))
}

func (r *firestoreRepository) ListCompletedByUser(ctx context.Context, userID string) ([]Progress, error) {
	return r.queryProgress(ctx, r.progress().
		Where("user_id", "==", userID).
		Where("completed", "==", true))
}

func (r *firestoreRepository) ListInProgressByUser(ctx context.Context, userID string) ([]Progress, error) {
	return r.queryProgress(ctx, r.progress().
		Where("user_id", "==", userID).
		Where("completed", "==", false))
}

func (r *firestoreRepository) ListRecentlyCompleted(ctx context.Context, userID string, limit int) ([]Progress, error) {
	query := r.progress().
		Where("user_id", "==", userID).
		Where("completed", "==", true).
		OrderBy("completed_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.queryProgress(ctx, query)
}

func (r *firestoreRepository) queryProgress(ctx context.Context, query firestore.Query) ([]Progress, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	out := []Progress{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, storageError("list progress", err)
		}
		p, err := snapshotToProgress(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func definitionToMap(def Definition) map[string]any {
	return map[string]any{
		"name":        def.Name,
		"description": def.Description,
		"category":    string(def.Category),
		"criteria": map[string]any{
			"type":         string(def.Criteria.Type),
			"target":       def.Criteria.Target,
			"session_kind": def.Criteria.SessionKind,
		},
		"icon":       def.Icon,
		"points":     def.Points,
		"created_at": def.CreatedAt,
		"updated_at": def.UpdatedAt,
	}
}

func snapshotToDefinition(doc *firestore.DocumentSnapshot) (Definition, error) {
	var payload definitionDoc
	if err := doc.DataTo(&payload); err != nil {
		return Definition{}, storageError("decode definition", err)
	}
	return Definition{
		ID:          doc.Ref.ID,
		Name:        payload.Name,
		Description: payload.Description,
		Category:    Category(payload.Category),
		Criteria: Criteria{
			Type:        CriteriaType(payload.Criteria.Type),
			Target:      payload.Criteria.Target,
			SessionKind: payload.Criteria.SessionKind,
		},
		Icon:      payload.Icon,
		Points:    payload.Points,
		CreatedAt: payload.CreatedAt,
		UpdatedAt: payload.UpdatedAt,
	}, nil
}

func progressToMap(p Progress) map[string]any {
	data := map[string]any{
		"user_id":        p.UserID,
		"achievement_id": p.AchievementID,
		"progress":       p.Progress,
		"completed":      p.Completed,
		"completed_at":   nil,
		"points_awarded": p.PointsAwarded,
		"last_event_id":  p.LastEventID,
		"version":        p.Version,
		"created_at":     p.CreatedAt,
		"updated_at":     p.UpdatedAt,
	}
	if p.CompletedAt != nil {
		data["completed_at"] = *p.CompletedAt
	}
	return data
}

func snapshotToProgress(doc *firestore.DocumentSnapshot) (Progress, error) {
	var payload progressDoc
	if err := doc.DataTo(&payload); err != nil {
		return Progress{}, storageError("decode progress", err)
	}
	return Progress{
		ID:            doc.Ref.ID,
		UserID:        payload.UserID,
		AchievementID: payload.AchievementID,
		Progress:      payload.Progress,
		Completed:     payload.Completed,
		CompletedAt:   payload.CompletedAt,
		PointsAwarded: payload.PointsAwarded,
		LastEventID:   payload.LastEventID,
		Version:       payload.Version,
		CreatedAt:     payload.CreatedAt,
		UpdatedAt:     payload.UpdatedAt,
	}, nil
}

// storageError classifies raw datastore failures, leaving domain errors untouched.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *sharederrors.Error
	if errors.As(err, &classified) {
		return err
	}
	return sharederrors.Wrap(sharederrors.KindStorage, op, err)
}
