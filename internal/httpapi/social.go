package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusnest/wellness-service/shared-libs/dto"
	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

type friendRequestRequest struct {
	ToUserID string `json:"to_user_id"`
}

func (h *handler) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req friendRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	created, err := h.Social.SendRequest(ctx, userID, req.ToUserID)
	if err != nil {
		h.respondError(w, r, "failed to send friend request", err, userID)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	pending, err := h.Social.ListPending(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to list friend requests", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(pending))
}

func (h *handler) acceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	result, err := h.Social.Accept(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, "failed to accept friend request", err, userID)
		return
	}
	for i, def := range result.NewlyCompleted {
		result.NewlyCompleted[i] = h.withIcon(ctx, def)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) listFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	friends, err := h.Social.ListFriends(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to list friends", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(friends))
}
