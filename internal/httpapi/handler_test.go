package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusnest/wellness-service/internal/achievement"
	"github.com/focusnest/wellness-service/internal/cachestats"
	"github.com/focusnest/wellness-service/internal/effectiveness"
	"github.com/focusnest/wellness-service/internal/media"
	"github.com/focusnest/wellness-service/internal/notification"
	"github.com/focusnest/wellness-service/internal/session"
	"github.com/focusnest/wellness-service/internal/social"
	sharedauth "github.com/focusnest/wellness-service/shared-libs/auth"
	"github.com/focusnest/wellness-service/shared-libs/logging"
)

const adminID = "admin-1"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	logger := logging.Discard()

	achRepo := achievement.NewMemoryRepository()
	achievements, err := achievement.NewService(achRepo, achievement.NewSystemClock(), achievement.NewUUIDGenerator(), logger)
	require.NoError(t, err)
	_, err = achievements.SeedDefaults(ctx)
	require.NoError(t, err)

	notifications, err := notification.NewService(notification.NewMemoryRepository(), achRepo, notification.NewSystemClock(), notification.NewUUIDGenerator(), logger)
	require.NoError(t, err)
	processor, err := achievement.NewProcessor(achRepo, achievement.NewSystemClock(), logger, achievement.WithNotifier(notifications))
	require.NoError(t, err)

	sessions, err := session.NewService(session.NewMemoryRepository(), processor, session.NewSystemClock(), session.NewUUIDGenerator(), time.UTC, logger)
	require.NoError(t, err)
	effect, err := effectiveness.NewService(sessions)
	require.NoError(t, err)
	friends, err := social.NewService(social.NewMemoryRepository(), processor, social.NewSystemClock(), logger)
	require.NoError(t, err)
	stats, err := cachestats.NewService(cachestats.NewMemoryStore())
	require.NoError(t, err)

	verifier, err := sharedauth.NewVerifier(sharedauth.Config{Mode: sharedauth.ModeNoop})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(sharedauth.Middleware(verifier))
		RegisterRoutes(r, Services{
			Achievements:  achievements,
			Sessions:      sessions,
			Effectiveness: effect,
			Social:        friends,
			Notifications: notifications,
			CacheStats:    stats,
			Icons:         media.NewResolver(nil, 0, logger),
		}, []string{adminID}, logger)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type listBody[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func TestRequiresAuthentication(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/achievements", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
}

func TestSessionCompletionAwardsAchievements(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/achievements", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	defs := decode[listBody[achievement.Definition]](t, rec)
	assert.Equal(t, 10, defs.Total)

	rec = do(t, h, http.MethodPost, "/v1/sessions", "user-1", map[string]any{
		"kind":          "breathing",
		"technique":     "box",
		"stress_before": 7,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[session.Session](t, rec)

	completePath := "/v1/sessions/" + started.ID + "/complete"
	rec = do(t, h, http.MethodPost, completePath, "user-1", map[string]any{
		"duration_seconds": 300,
		"stress_after":     3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[session.CompletionResult](t, rec)
	assert.Equal(t, 1, result.Streak)
	require.Len(t, result.NewlyCompleted, 1)
	assert.Equal(t, "first_session", result.NewlyCompleted[0].ID)
	assert.Equal(t, 10, result.PointsAwarded)

	rec = do(t, h, http.MethodPost, completePath, "user-1", map[string]any{"duration_seconds": 300})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/points/me", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[map[string]any](t, rec)
	assert.EqualValues(t, 10, points["points"])

	rec = do(t, h, http.MethodGet, "/v1/achievements/me/summary", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[achievement.Summary](t, rec)
	assert.Equal(t, 1, summary.CompletedCount)
	assert.Equal(t, 10, summary.TotalDefinitions)
	require.Len(t, summary.Recent, 1)
	assert.Equal(t, "icons/first_session.png", summary.Recent[0].Achievement.Icon)

	rec = do(t, h, http.MethodGet, "/v1/achievements/me/completed", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listBody[achievement.ProgressView]](t, rec).Total)

	rec = do(t, h, http.MethodGet, "/v1/achievements/me", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decode[listBody[achievement.ProgressView]](t, rec).Total)

	rec = do(t, h, http.MethodGet, "/v1/streaks/me", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[session.StreakInfo](t, rec).Current)

	rec = do(t, h, http.MethodGet, "/v1/effectiveness/breathing", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[effectiveness.Report](t, rec)
	assert.Equal(t, 1, report.TotalSessions)
	assert.Equal(t, 4.0, report.AverageStressReduction)
	assert.Equal(t, "box", report.MostEffective)

	rec = do(t, h, http.MethodGet, "/v1/effectiveness/yoga", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/notifications/unread-count", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["unread"])

	rec = do(t, h, http.MethodPost, "/v1/notifications/read-all", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[map[string]int](t, rec)["updated"])
}

func TestSessionValidationAndLookup(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/sessions", "user-1", map[string]any{"kind": "karaoke"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/sessions", "user-1", map[string]any{"kind": "pmr", "unknown": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/sessions/missing", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/sessions?kind=nope", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/achievements/me/recent?limit=-1", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newTestServer(t)
	input := map[string]any{
		"id":            "minutes_5",
		"name":          "Five Minutes",
		"category":      "duration",
		"criteria_type": "TOTAL_MINUTES",
		"target":        5,
		"points":        5,
	}

	rec := do(t, h, http.MethodPost, "/v1/admin/achievements", "user-1", input)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/admin/achievements", adminID, input)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/admin/achievements", adminID, input)
	assert.Equal(t, http.StatusConflict, rec.Code)

	input["criteria_type"] = "PAGES_READ"
	rec = do(t, h, http.MethodPut, "/v1/admin/achievements/minutes_5", adminID, input)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	input["criteria_type"] = "TOTAL_MINUTES"
	input["target"] = 6
	rec = do(t, h, http.MethodPut, "/v1/admin/achievements/minutes_5", adminID, input)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 6, decode[achievement.Definition](t, rec).Criteria.Target)

	rec = do(t, h, http.MethodDelete, "/v1/admin/achievements/minutes_5", adminID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodDelete, "/v1/admin/achievements/minutes_5", adminID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendFlow(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/friends/requests", "alice", map[string]string{"to_user_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/friends/requests", "alice", map[string]string{"to_user_id": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	req := decode[social.FriendRequest](t, rec)

	rec = do(t, h, http.MethodPost, "/v1/friends/requests", "bob", map[string]string{"to_user_id": "alice"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/friends/requests", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listBody[social.FriendRequest]](t, rec).Total)

	rec = do(t, h, http.MethodPost, "/v1/friends/requests/"+req.ID+"/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/friends/requests/"+req.ID+"/accept", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decode[social.AcceptResult](t, rec)
	assert.Equal(t, 1, accepted.FriendCount)
	require.Len(t, accepted.NewlyCompleted, 1)
	assert.Equal(t, "first_friend", accepted.NewlyCompleted[0].ID)

	rec = do(t, h, http.MethodGet, "/v1/friends", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[listBody[social.Friend]](t, rec).Total)
}

func TestNotificationsAndCacheStats(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/notifications/devices", "user-1", map[string]string{"token": "tok", "platform": "ios"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/notifications/devices", "user-1", map[string]string{"token": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/notifications/missing/read", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/notifications", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/cache-stats", "user-1", map[string]any{"cache": "audio", "hits": 3, "misses": 1, "size_bytes": 2048})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/cache-stats", "user-1", map[string]any{"cache": "audio", "hits": -3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/cache-stats/me", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[cachestats.Summary](t, rec)
	require.Len(t, summary.Caches, 1)
	assert.Equal(t, 0.75, summary.Caches[0].HitRatio)
	assert.EqualValues(t, 2048, summary.Totals.SizeBytes)
}
