package social

import (
	"context"
	"errors"
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

func (r *firestoreRepository) requests() *firestore.CollectionRef {
	return r.client.Collection("friend_requests")
}

func (r *firestoreRepository) friends(userID string) *firestore.CollectionRef {
	return r.client.Collection("users").Doc(userID).Collection("friends")
}

func (r *firestoreRepository) CreateRequest(ctx context.Context, req FriendRequest) error {
	_, err := r.requests().Doc(req.ID).Create(ctx, map[string]any{
		"from_user_id": req.FromUserID,
		"to_user_id":   req.ToUserID,
		"status":       string(req.Status),
		"created_at":   req.CreatedAt,
		"responded_at": nil,
	})
	if status.Code(err) == codes.AlreadyExists {
		return ErrDuplicate
	}
	if err != nil {
		return sharederrors.Wrap(sharederrors.KindStorage, "create friend request", err)
	}
	return nil
}

func (r *firestoreRepository) Accept(ctx context.Context, requestID, userID string, at time.Time) (FriendRequest, error) {
	ref := r.requests().Doc(requestID)
	var out FriendRequest
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		req, err := snapshotToRequest(doc)
		if err != nil {
			return err
		}
		if req.ToUserID != userID {
			return ErrNotAddressee
		}
		if req.Status != StatusPending {
			return ErrNotPending
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: string(StatusAccepted)},
			{Path: "responded_at", Value: at},
		}); err != nil {
			return err
		}
		if err := tx.Set(r.friends(req.FromUserID).Doc(req.ToUserID), map[string]any{"since": at}); err != nil {
			return err
		}
		if err := tx.Set(r.friends(req.ToUserID).Doc(req.FromUserID), map[string]any{"since": at}); err != nil {
			return err
		}

		req.Status = StatusAccepted
		req.RespondedAt = &at
		out = req
		return nil
	})
	if err != nil {
		var classified *sharederrors.Error
		if errors.As(err, &classified) {
			return FriendRequest{}, err
		}
		return FriendRequest{}, sharederrors.Wrap(sharederrors.KindStorage, "accept friend request", err)
	}
	return out, nil
}

func (r *firestoreRepository) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	iter := r.friends(userID).OrderBy("since", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	out := make([]Friend, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, sharederrors.Wrap(sharederrors.KindStorage, "list friends", err)
		}
		var snapshot struct {
			Since time.Time `firestore:"since"`
		}
		if err := doc.DataTo(&snapshot); err != nil {
			continue
		}
		out = append(out, Friend{UserID: userID, FriendID: doc.Ref.ID, Since: snapshot.Since})
	}
	return out, nil
}

func (r *firestoreRepository) ListPending(ctx context.Context, userID string) ([]FriendRequest, error) {
	iter := r.requests().
		Where("to_user_id", "==", userID).
		Where("status", "==", string(StatusPending)).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	out := make([]FriendRequest, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, sharederrors.Wrap(sharederrors.KindStorage, "list friend requests", err)
		}
		req, err := snapshotToRequest(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func snapshotToRequest(doc *firestore.DocumentSnapshot) (FriendRequest, error) {
	var payload struct {
		FromUserID  string     `firestore:"from_user_id"`
		ToUserID    string     `firestore:"to_user_id"`
		Status      string     `firestore:"status"`
		CreatedAt   time.Time  `firestore:"created_at"`
		RespondedAt *time.Time `firestore:"responded_at"`
	}
	if err := doc.DataTo(&payload); err != nil {
		return FriendRequest{}, sharederrors.Wrap(sharederrors.KindStorage, "decode friend request", err)
	}
	return FriendRequest{
		ID:          doc.Ref.ID,
		FromUserID:  payload.FromUserID,
		ToUserID:    payload.ToUserID,
		Status:      RequestStatus(payload.Status),
		CreatedAt:   payload.CreatedAt,
		RespondedAt: payload.RespondedAt,
	}, nil
}
