package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusnest/wellness-service/internal/cachestats"
	"github.com/focusnest/wellness-service/internal/notification"
	"github.com/focusnest/wellness-service/shared-libs/dto"
	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	items, err := h.Notifications.List(ctx, userID, limit)
	if err != nil {
		h.respondError(w, r, "failed to list notifications", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(items))
}

func (h *handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	count, err := h.Notifications.UnreadCount(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to count notifications", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := h.Notifications.MarkRead(ctx, userID, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, "failed to mark notification read", err, userID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	changed, err := h.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to mark notifications read", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": changed})
}

func (h *handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req registerDeviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	token := notification.DeviceToken{Token: req.Token, Platform: req.Platform}
	if err := h.Notifications.RegisterDevice(ctx, userID, token); err != nil {
		h.respondError(w, r, "failed to register device", err, userID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) recordCacheStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var report cachestats.UsageReport
	if err := decodeJSON(w, r, &report); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := h.CacheStats.Record(ctx, userID, report); err != nil {
		h.respondError(w, r, "failed to record cache stats", err, userID)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) getCacheStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	summary, err := h.CacheStats.Summary(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to load cache stats", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
