package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusnest/wellness-service/internal/effectiveness"
	"github.com/focusnest/wellness-service/internal/session"
	"github.com/focusnest/wellness-service/shared-libs/dto"
	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

type startSessionRequest struct {
	Kind         string `json:"kind"`
	Technique    string `json:"technique"`
	ContentID    string `json:"content_id"`
	StressBefore *int   `json:"stress_before"`
	MoodBefore   string `json:"mood_before"`
}

type completeSessionRequest struct {
	DurationSeconds int    `json:"duration_seconds"`
	StressAfter     *int   `json:"stress_after"`
	MoodAfter       string `json:"mood_after"`
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	sess, err := h.Sessions.Start(ctx, session.StartInput{
		UserID:       userID,
		Kind:         session.Kind(req.Kind),
		Technique:    req.Technique,
		ContentID:    req.ContentID,
		StressBefore: req.StressBefore,
		MoodBefore:   req.MoodBefore,
	})
	if err != nil {
		h.respondError(w, r, "failed to start session", err, userID)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	kind, err := session.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	items, err := h.Sessions.List(ctx, userID, kind, limit)
	if err != nil {
		h.respondError(w, r, "failed to list sessions", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(items))
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	sess, err := h.Sessions.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, "failed to load session", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *handler) completeSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req completeSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	result, err := h.Sessions.Complete(ctx, session.CompleteInput{
		UserID:          userID,
		SessionID:       chi.URLParam(r, "id"),
		DurationSeconds: req.DurationSeconds,
		StressAfter:     req.StressAfter,
		MoodAfter:       req.MoodAfter,
	})
	if err != nil {
		h.respondError(w, r, "failed to complete session", err, userID)
		return
	}
	for i, def := range result.NewlyCompleted {
		result.NewlyCompleted[i] = h.withIcon(ctx, def)
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) getStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	info, err := h.Sessions.Streak(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to load streak", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) getEffectiveness(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	module, err := effectiveness.ParseModule(chi.URLParam(r, "module"))
	if err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	report, err := h.Effectiveness.ComputeEffectiveness(ctx, userID, module)
	if err != nil {
		h.respondError(w, r, "failed to compute effectiveness", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
