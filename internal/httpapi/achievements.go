package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/shared-libs/dto"
	sharederrors "github.com/focusnest/wellness-service/shared-libs/errors"
)

func (h *handler) listDefinitions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	defs, err := h.Achievements.ListDefinitions(ctx)
	if err != nil {
		h.respondError(w, r, "failed to list achievements", err, "")
		return
	}
	for i := range defs {
		defs[i] = h.withIcon(ctx, defs[i])
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(defs))
}

func (h *handler) listProgress(w http.ResponseWriter, r *http.Request) {
	filter := achievement.ProgressFilter(r.URL.Query().Get("filter"))
	h.writeProgress(w, r, filter)
}

func (h *handler) listCompleted(w http.ResponseWriter, r *http.Request) {
	h.writeProgress(w, r, achievement.FilterCompleted)
}

func (h *handler) listInProgress(w http.ResponseWriter, r *http.Request) {
	h.writeProgress(w, r, achievement.FilterInProgress)
}

func (h *handler) writeProgress(w http.ResponseWriter, r *http.Request, filter achievement.ProgressFilter) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	views, err := h.Achievements.ListProgress(ctx, userID, filter)
	if err != nil {
		h.respondError(w, r, "failed to list progress", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(h.withIcons(ctx, views)))
}

func (h *handler) listRecent(w http.ResponseWriter, r *http.Request) {
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

	views, err := h.Achievements.RecentlyCompleted(ctx, userID, limit)
	if err != nil {
		h.respondError(w, r, "failed to list recent achievements", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewListResponse(h.withIcons(ctx, views)))
}

func (h *handler) getSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	summary, err := h.Achievements.GetSummary(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to load achievement summary", err, userID)
		return
	}
	summary.Recent = h.withIcons(ctx, summary.Recent)
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) getPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	points, err := h.Achievements.GetUserPoints(ctx, userID)
	if err != nil {
		h.respondError(w, r, "failed to load points", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "points": points})
}

func (h *handler) createDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input achievement.DefinitionInput
	if err := decodeJSON(w, r, &input); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	def, err := h.Achievements.CreateDefinition(ctx, input)
	if err != nil {
		h.respondError(w, r, "failed to create achievement", err, userID)
		return
	}
	writeJSON(w, http.StatusCreated, h.withIcon(ctx, def))
}

func (h *handler) updateDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var input achievement.DefinitionInput
	if err := decodeJSON(w, r, &input); err != nil {
		sharederrors.Write(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	def, err := h.Achievements.UpdateDefinition(ctx, chi.URLParam(r, "id"), input)
	if err != nil {
		h.respondError(w, r, "failed to update achievement", err, userID)
		return
	}
	writeJSON(w, http.StatusOK, h.withIcon(ctx, def))
}

func (h *handler) deleteDefinition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := h.Achievements.DeleteDefinition(ctx, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, "failed to delete achievement", err, userID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) withIcon(ctx context.Context, def achievement.Definition) achievement.Definition {
	def.Icon = h.Icons.Resolve(ctx, def.Icon)
	return def
}

func (h *handler) withIcons(ctx context.Context, views []achievement.ProgressView) []achievement.ProgressView {
	for i := range views {
		views[i].Achievement = h.withIcon(ctx, views[i].Achievement)
	}
	return views
}
