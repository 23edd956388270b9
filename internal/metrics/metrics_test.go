package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/focusnest/wellness-service/internal/achievement"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/sessions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/v1/admin", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	for _, path := range []string{"/v1/sessions/a", "/v1/sessions/b", "/v1/admin"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/v1/sessions/{id}", http.MethodGet, "404")); got != 2 {
		t.Fatalf("expected 2 requests for pattern, got %v", got)
	}
	if got := testutil.ToFloat64(m.authRejections.WithLabelValues("403_forbidden")); got != 1 {
		t.Fatalf("expected 1 forbidden rejection, got %v", got)
	}
}

func TestRecorderCounters(t *testing.T) {
	m := New()
	var rec achievement.Recorder = m
	rec.AchievementCompleted("streak_3")
	rec.AchievementCompleted("streak_3")
	rec.ProcessingFailed(achievement.ActivitySessionCompleted)

	if got := testutil.ToFloat64(m.achievementsTotal.WithLabelValues("streak_3")); got != 2 {
		t.Fatalf("expected 2 completions, got %v", got)
	}
	if got := testutil.ToFloat64(m.processingFailures.WithLabelValues("session_completed")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
}

func TestHandlerRequiresBasicAuth(t *testing.T) {
	m := New()
	m.AchievementCompleted("first_session")
	h := m.Handler("ops", "secret")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `achievements_completed_total{achievement_id="first_session"} 1`) {
		t.Fatalf("completion counter missing from exposition")
	}

	disabled := m.Handler("", "")
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("", "")
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected endpoint disabled without credentials, got %d", rec.Code)
	}
}
