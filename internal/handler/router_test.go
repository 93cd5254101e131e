package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/tripplanner/internal/metrics"
	"github.com/hitoshi/tripplanner/internal/middleware"
	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/worker/watch"
)

// --- モック定義 ---

type mockSessionProvider struct {
	session model.Session
}

func (m *mockSessionProvider) Session() model.Session { return m.session }

type mockWarningsProvider struct {
	snapshot watch.Snapshot
}

func (m *mockWarningsProvider) Last() watch.Snapshot { return m.snapshot }

type mockToggler struct {
	toggleFn func(ctx context.Context, itineraryID int64, enabled bool) error
}

func (m *mockToggler) ToggleTravelWarnings(ctx context.Context, itineraryID int64, enabled bool) error {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, itineraryID, enabled)
	}
	return nil
}

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	if deps.Session == nil {
		deps.Session = &mockSessionProvider{}
	}
	return NewRouter(deps)
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("リクエストIDが付与されていない")
	}
}

func TestRouter_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	collector.RecordTokenRefresh(true)

	router := newTestRouter(t, &RouterDeps{Gatherer: reg})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tripplanner_") {
		t.Errorf("メトリクスが出力されていない: %s", w.Body.String())
	}
}

func TestRouter_MetricsDisabledWithoutGatherer(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestRouter_Session_OmitsToken(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{Session: &mockSessionProvider{session: model.Session{
		User:        &model.Identity{UID: "u1", Email: "a@example.com", EmailVerified: true},
		IDToken:     "secret-token",
		Initialized: true,
	}}})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "secret-token") {
		t.Error("レスポンスにトークンを含めてはいけない")
	}

	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Authenticated || !resp.Initialized || resp.Email != "a@example.com" || !resp.EmailVerified {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_Session_SignedOut(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{Session: &mockSessionProvider{session: model.Session{Initialized: true}}})

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Authenticated || resp.Email != "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_Warnings(t *testing.T) {
	checked := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	router := newTestRouter(t, &RouterDeps{Warnings: &mockWarningsProvider{snapshot: watch.Snapshot{
		Email:     "a@example.com",
		Warnings:  []model.UserWarning{{TripID: 1, CountryCode: "FR"}},
		NewCount:  1,
		CheckedAt: checked,
	}}})

	req := httptest.NewRequest(http.MethodGet, "/api/warnings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp watch.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].CountryCode != "FR" || resp.NewCount != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRouter_Warnings_NoWatcher(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	req := httptest.NewRequest(http.MethodGet, "/api/warnings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"warnings":[]`) {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestRouter_ToggleTravelWarnings_RateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:            rate.Limit(0.001),
		Burst:           1,
		CleanupInterval: time.Minute,
	})
	defer limiter.Stop()

	router := newTestRouter(t, &RouterDeps{RateLimiter: limiter, Itineraries: &mockToggler{}})

	send := func() int {
		req := httptest.NewRequest(http.MethodPut, "/api/itineraries/7/travel-warnings", strings.NewReader(`{"enabled":true}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("1回目 status = %d, want 200", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("2回目 status = %d, want 429", code)
	}
}
