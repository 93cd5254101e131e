package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/tripplanner/internal/model"
)

func toggleRequest(t *testing.T, router http.Handler, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, "/api/itineraries/"+id+"/travel-warnings", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestItineraryHandler_ToggleTravelWarnings_Success(t *testing.T) {
	var gotID int64
	var gotEnabled bool
	toggler := &mockToggler{toggleFn: func(ctx context.Context, itineraryID int64, enabled bool) error {
		gotID, gotEnabled = itineraryID, enabled
		return nil
	}}
	router := newTestRouter(t, &RouterDeps{Itineraries: toggler})

	w := toggleRequest(t, router, "7", `{"enabled":false}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotID != 7 || gotEnabled {
		t.Errorf("toggle called with (%d, %v), want (7, false)", gotID, gotEnabled)
	}
	var resp travelWarningsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ItineraryID != 7 || resp.Enabled {
		t.Errorf("resp = %+v", resp)
	}
}

func TestItineraryHandler_ToggleTravelWarnings_BadRequests(t *testing.T) {
	called := false
	toggler := &mockToggler{toggleFn: func(ctx context.Context, itineraryID int64, enabled bool) error {
		called = true
		return nil
	}}
	router := newTestRouter(t, &RouterDeps{Itineraries: toggler})

	tests := []struct {
		name string
		id   string
		body string
	}{
		{"数値でないID", "abc", `{"enabled":true}`},
		{"0のID", "0", `{"enabled":true}`},
		{"不正なJSON", "7", `{enabled`},
		{"enabledなし", "7", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := toggleRequest(t, router, tt.id, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if called {
		t.Error("不正なリクエストでは切り替えを呼ばない")
	}
}

func TestItineraryHandler_ToggleTravelWarnings_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"未サインイン", model.ErrNotAuthenticated, http.StatusUnauthorized},
		{"404", &model.StatusError{StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"下流の500", &model.StatusError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"通信エラー", errors.New("connection refused"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toggler := &mockToggler{toggleFn: func(ctx context.Context, itineraryID int64, enabled bool) error {
				return tt.err
			}}
			router := newTestRouter(t, &RouterDeps{Itineraries: toggler})

			w := toggleRequest(t, router, "7", `{"enabled":true}`)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestItineraryHandler_ToggleTravelWarnings_Unavailable(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	w := toggleRequest(t, router, "7", `{"enabled":true}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
