package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/internal/cachestats"
	"github.com/focusnest/wellness-service/internal/effectiveness"
	"github.com/focusnest/wellness-service/internal/media"
	"github.com/focusnest/wellness-service/internal/notification"
	"github.com/focusnest/wellness-service/internal/session"
	"github.com/focusnest/wellness-service/internal/social"
	sharedauth "github.com/focusnest/wellness-service/shared-libs/auth"
	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

const (
	serviceTimeout   = 10 * time.Second
	maxBodyBytes     = 64 * 1024
	defaultPageLimit = 20
)

// Services bundles what the routes call into. Icons may be nil.
type Services struct {
	Achievements  *achievement.Service
	Sessions      *session.Service
	Effectiveness *effectiveness.Service
	Social        *social.Service
	Notifications *notification.Service
	CacheStats    *cachestats.Service
	Icons         *media.Resolver
}

type handler struct {
	Services
	logger *slog.Logger
}

// RegisterRoutes mounts the versioned API on r. Callers install the auth
// middleware; admin routes are additionally limited to adminIDs.
func RegisterRoutes(r chi.Router, svc Services, adminIDs []string, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{Services: svc, logger: logger}

	r.Route("/v1/achievements", func(r chi.Router) {
		r.Get("/", h.listDefinitions)
		r.Get("/me", h.listProgress)
		r.Get("/me/completed", h.listCompleted)
		r.Get("/me/in-progress", h.listInProgress)
		r.Get("/me/recent", h.listRecent)
		r.Get("/me/summary", h.getSummary)
	})
	r.Get("/v1/points/me", h.getPoints)

	r.Route("/v1/admin/achievements", func(r chi.Router) {
		r.Use(sharedauth.RequireAdmin(adminIDs))
		r.Post("/", h.createDefinition)
		r.Put("/{id}", h.updateDefinition)
		r.Delete("/{id}", h.deleteDefinition)
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.startSession)
		r.Get("/", h.listSessions)
		r.Get("/{id}", h.getSession)
		r.Post("/{id}/complete", h.completeSession)
	})
	r.Get("/v1/streaks/me", h.getStreak)
	r.Get("/v1/effectiveness/{module}", h.getEffectiveness)

	r.Route("/v1/friends", func(r chi.Router) {
		r.Get("/", h.listFriends)
		r.Post("/requests", h.sendFriendRequest)
		r.Get("/requests", h.listFriendRequests)
		r.Post("/requests/{id}/accept", h.acceptFriendRequest)
	})

	r.Route("/v1/notifications", func(r chi.Router) {
		r.Get("/", h.listNotifications)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
		r.Post("/devices", h.registerDevice)
	})

	r.Post("/v1/cache-stats", h.recordCacheStats)
	r.Get("/v1/cache-stats/me", h.getCacheStats)
}

// requireUser writes 401 and returns false when the request is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user, ok := sharedauth.UserFromContext(r.Context())
	if !ok || user.UserID == "" {
		sharederrors.Write(w, r, http.StatusUnauthorized, "missing user ID")
		return "", false
	}
	return user.UserID, true
}

func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), serviceTimeout)
}

// respondError maps err to its status. Server-side failures are logged and
// answered with message instead of the raw error.
func (h *handler) respondError(w http.ResponseWriter, r *http.Request, message string, err error, userID string) {
	status := sharederrors.StatusFor(err)
	if status >= http.StatusInternalServerError {
		logRequestError(r.Context(), h.logger, message, err, userID)
		sharederrors.Write(w, r, status, message)
		return
	}
	sharederrors.Write(w, r, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	attrs := []any{
		slog.String("userId", userID),
		slog.Any("error", err),
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		attrs = append(attrs, slog.String("requestId", reqID))
	}
	logger.Error(message, attrs...)
}
