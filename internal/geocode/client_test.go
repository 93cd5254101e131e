package geocode

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recordingCollector は成功・失敗の回数を記録する。
type recordingCollector struct {
	mu      sync.Mutex
	success int
	failure int
}

func (r *recordingCollector) RecordAPIRequest(string, int, time.Duration) {}
func (r *recordingCollector) RecordAPIFailure(string)                     {}
func (r *recordingCollector) RecordTokenRefresh(bool)                     {}
func (r *recordingCollector) RecordSessionTerminated()                    {}
func (r *recordingCollector) RecordTripsSynced(int, int, int)             {}
func (r *recordingCollector) RecordNewWarnings(int)                       {}

func (r *recordingCollector) RecordGeocodeLookup(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.success++
	} else {
		r.failure++
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, cfg Config) (*Client, *recordingCollector) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	collector := &recordingCollector{}
	cfg.Endpoint = server.URL
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = 1000
	}
	return NewClient(server.Client(), newTestLogger(&buf), collector, cfg), collector
}

func TestClient_Reverse_ReturnsUpperCasedCountry(t *testing.T) {
	c, collector := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("path = %s, want /reverse", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("zoom") != "3" || q.Get("addressdetails") != "1" {
			t.Errorf("query = %v", q)
		}
		if q.Get("lat") != "48.85" || q.Get("lon") != "2.35" {
			t.Errorf("coordinates = %s,%s", q.Get("lat"), q.Get("lon"))
		}
		if q.Get("email") != "ops@example.com" {
			t.Errorf("email = %q, want ops@example.com", q.Get("email"))
		}
		if ua := r.Header.Get("User-Agent"); ua != "TripPlanner/Test" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(`{"address":{"country":"France","country_code":"fr"}}`))
	}, Config{UserAgent: "TripPlanner/Test", Email: "ops@example.com"})

	country, err := c.Reverse(context.Background(), 48.85, 2.35)
	if err != nil {
		t.Fatalf("Reverse がエラーを返した: %v", err)
	}
	if country == nil || country.Code != "FR" || country.Name != "France" {
		t.Errorf("country = %+v, want FR/France", country)
	}
	if collector.success != 1 {
		t.Errorf("success = %d, want 1", collector.success)
	}
}

func TestClient_Reverse_MissingAddressReturnsNil(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"住所なし", `{"error":"Unable to geocode"}`},
		{"国コードなし", `{"address":{"country":"Atlantis"}}`},
		{"国名なし", `{"address":{"country_code":"xx"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, collector := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, Config{})

			country, err := c.Reverse(context.Background(), 0.1, 0.1)
			if country != nil || err != nil {
				t.Errorf("Reverse = %+v, %v, want nil, nil", country, err)
			}
			if collector.failure != 1 {
				t.Errorf("failure = %d, want 1", collector.failure)
			}
		})
	}
}

func TestClient_Reverse_ErrorStatusReturnsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, Config{})

	country, err := c.Reverse(context.Background(), 48.85, 2.35)
	if country != nil || err != nil {
		t.Errorf("Reverse = %+v, %v, want nil, nil", country, err)
	}
}

func TestClient_Reverse_MalformedJSONReturnsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{`))
	}, Config{})

	if _, err := c.Reverse(context.Background(), 48.85, 2.35); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestClient_Search(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLabel string
		wantNil   bool
	}{
		{
			name:      "nameを優先",
			body:      `[{"name":"Eiffel Tower","display_name":"Eiffel Tower, Avenue Anatole France, Paris, France","lat":"48.8582","lon":"2.2945"}]`,
			wantLabel: "Eiffel Tower",
		},
		{
			name:      "表示名の先頭2要素",
			body:      `[{"name":"","display_name":"12, Rue de Rivoli, Paris, France","lat":"48.8","lon":"2.3"}]`,
			wantLabel: "12, Rue de Rivoli",
		},
		{
			name:      "クエリにフォールバック",
			body:      `[{"lat":"1","lon":"2"}]`,
			wantLabel: "somewhere",
		},
		{
			name:    "一致なし",
			body:    `[]`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if r.URL.Path != "/search" || q.Get("format") != "jsonv2" || q.Get("limit") != "1" || q.Get("q") != "somewhere" {
					t.Errorf("request = %s?%s", r.URL.Path, r.URL.RawQuery)
				}
				w.Write([]byte(tt.body))
			}, Config{})

			place, err := c.Search(context.Background(), "somewhere")
			if err != nil {
				t.Fatalf("Search がエラーを返した: %v", err)
			}
			if tt.wantNil {
				if place != nil {
					t.Errorf("place = %+v, want nil", place)
				}
				return
			}
			if place == nil || place.ShortLabel != tt.wantLabel {
				t.Errorf("place = %+v, want label %q", place, tt.wantLabel)
			}
		})
	}
}

func TestClient_Search_ParsesCoordinates(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"Louvre","display_name":"Louvre, Paris","lat":"48.8606","lon":"2.3376"}]`))
	}, Config{})

	place, err := c.Search(context.Background(), "louvre")
	if err != nil || place == nil {
		t.Fatalf("Search = %v, %v", place, err)
	}
	if place.Lat != 48.8606 || place.Lng != 2.3376 || place.Display != "Louvre, Paris" {
		t.Errorf("place = %+v", place)
	}
}

func TestClient_Search_BlankQuerySkipsRequest(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, Config{})

	place, err := c.Search(context.Background(), "   ")
	if place != nil || err != nil || called {
		t.Errorf("Search(blank) = %v, %v, called=%v", place, err, called)
	}
}

func TestClient_RateLimitHonorsContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}, Config{RatePerSecond: 0.001})

	// 1回目はバーストで即時実行される
	if _, err := c.Search(context.Background(), "first"); err != nil {
		t.Fatalf("first Search: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Search(ctx, "second"); err == nil {
		t.Fatal("レート制限で待機中にコンテキストが切れた場合はエラーを返す")
	}
}
