package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/", server.Client())
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://api.example.com/", nil)
	if c.BaseURL() != "http://api.example.com" {
		t.Errorf("BaseURL = %q, want %q", c.BaseURL(), "http://api.example.com")
	}
	if c.httpClient != http.DefaultClient {
		t.Error("nilの場合はhttp.DefaultClientを使うべき")
	}
}

func TestClient_NonSuccessStatus_ReturnsStatusError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   model.ErrorKind
	}{
		{"not found", http.StatusNotFound, model.ErrorKindNotFound},
		{"bad request", http.StatusBadRequest, model.ErrorKindBadRequest},
		{"unauthorized", http.StatusUnauthorized, model.ErrorKindUnauthorized},
		{"server error", http.StatusInternalServerError, model.ErrorKindUnhandled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"boom"}`))
			})

			_, err := NewBackendAPI(c).ListItineraries(context.Background())

			var statusErr *model.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *model.StatusError, got %T (%v)", err, err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
			}
			if statusErr.Method != http.MethodGet {
				t.Errorf("Method = %q, want GET", statusErr.Method)
			}
			if !strings.Contains(statusErr.Body, "boom") {
				t.Errorf("Body = %q, want to contain boom", statusErr.Body)
			}
			if got := model.ClassifyError(err); got != tt.kind {
				t.Errorf("ClassifyError = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestClient_TransportError_IsUnhandled(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", &http.Client{Timeout: time.Second})

	_, err := NewBackendAPI(c).ListItineraries(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if model.ClassifyError(err) != model.ErrorKindUnhandled {
		t.Errorf("ClassifyError = %v, want unhandled", model.ClassifyError(err))
	}
}

func TestClient_EmptyBody_LeavesOutputZero(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	got, err := NewBackendAPI(c).ListItineraries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestClient_MalformedJSON_ReturnsError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{`))
	})

	if _, err := NewBackendAPI(c).ListItineraries(context.Background()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestBackendAPI_CreateItinerary_SendsJSONWithoutID(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/itinerary/create" {
			t.Errorf("request = %s %s, want POST /itinerary/create", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if _, ok := body["id"]; ok {
			t.Error("id はサーバー採番のため送信しない")
		}
		if body["title"] != "Paris trip" {
			t.Errorf("title = %v, want Paris trip", body["title"])
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := NewBackendAPI(c).CreateItinerary(context.Background(), model.Itinerary{ID: 9, Title: "Paris trip", Destination: "France"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackendAPI_CreateLocation_SendsMultipart(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/location/itinerary/7" {
			t.Errorf("path = %s, want /location/itinerary/7", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart: %v", err)
		}
		if got := r.FormValue("name"); got != "Louvre" {
			t.Errorf("name = %q, want Louvre", got)
		}
		if got := r.FormValue("fromDate"); got != "2025-06-01" {
			t.Errorf("fromDate = %q, want 2025-06-01", got)
		}
		if _, ok := r.MultipartForm.Value["toDate"]; ok {
			t.Error("未指定のtoDateは送信しない")
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 2 {
			t.Fatalf("files = %d, want 2", len(files))
		}
		f, _ := files[0].Open()
		data, _ := io.ReadAll(f)
		f.Close()
		if string(data) != "img-1" {
			t.Errorf("file content = %q, want img-1", data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":11,"itineraryId":7,"name":"Louvre","imageUrls":["https://cdn/a.jpg"]}`))
	})

	loc, err := NewBackendAPI(c).CreateLocation(context.Background(), model.NewLocation{
		ItineraryID: 7,
		Name:        "Louvre",
		FromDate:    &from,
		Files: []model.UploadFile{
			{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte("img-1")},
			{Name: "b.png", Data: []byte("img-2")},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.ID != 11 || len(loc.ImageURLs) != 1 {
		t.Errorf("location = %+v", loc)
	}
}

func TestBackendAPI_UploadLocationImages_ReturnsURLs(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/location/3/images" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"imageUrls":["https://cdn/x.jpg","https://cdn/y.jpg"]}`))
	})

	urls, err := NewBackendAPI(c).UploadLocationImages(context.Background(), 3, []model.UploadFile{{Name: "x.jpg", Data: []byte("x")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 2 || urls[1] != "https://cdn/y.jpg" {
		t.Errorf("urls = %v", urls)
	}
}

func TestBackendAPI_DeleteLocationImage_SendsQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		if got := r.URL.Query().Get("imageUrl"); got != "https://cdn/x.jpg?v=1" {
			t.Errorf("imageUrl = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := NewBackendAPI(c).DeleteLocationImage(context.Background(), 3, "https://cdn/x.jpg?v=1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWeatherAPI_FetchForecast_SendsCoordinates(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodPost || r.URL.Path != "/api/weather/forecast/coordinates" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if q.Get("lat") != "48.85" || q.Get("lon") != "2.35" || q.Get("location") != "Paris" {
			t.Errorf("query = %v", q)
		}
		w.WriteHeader(http.StatusCreated)
	})

	err := NewWeatherAPI(c).FetchForecast(context.Background(), model.Coordinates{Latitude: 48.85, Longitude: 2.35, Location: "Paris"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWeatherAPI_ForecastsByLocation_EscapesPath(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/weather/forecast/New%20York" {
			t.Errorf("path = %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`[{"location":"New York","dailyForecasts":[{"date":"2025-06-01","temperatureMax":25.5}]}]`))
	})

	got, err := NewWeatherAPI(c).ForecastsByLocation(context.Background(), "New York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Daily[0].TemperatureMax != 25.5 {
		t.Errorf("forecasts = %+v", got)
	}
}

func TestWarningsAPI_SetTripNotifications_UsesPatch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/warnings/trips/5/notifications" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if r.URL.Query().Get("enabled") != "false" {
			t.Errorf("enabled = %q, want false", r.URL.Query().Get("enabled"))
		}
		w.Write([]byte(`{"id":5,"email":"a@example.com","countryCode":"FR","notificationsEnabled":false}`))
	})

	trip, err := NewWarningsAPI(c).SetTripNotifications(context.Background(), 5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.ID != 5 || trip.NotificationsEnabled {
		t.Errorf("trip = %+v", trip)
	}
}

func TestWarningsAPI_BatchWarnings_SendsCodes(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var codes []string
		if err := json.NewDecoder(r.Body).Decode(&codes); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if len(codes) != 2 || codes[0] != "FR" {
			t.Errorf("codes = %v", codes)
		}
		w.Write([]byte(`[{"contentId":"c1","countryCode":"FR","lastModified":1700000000}]`))
	})

	got, err := NewWarningsAPI(c).BatchWarnings(context.Background(), []string{"FR", "JP"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].LastModified != "1700000000" {
		t.Errorf("warnings = %+v", got)
	}
}

func TestRecommendationAPI_RecordItineraryEvent_SendsEmptyNames(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graph/itineraries" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"locationNames":[]`) {
			t.Errorf("body = %s, want empty locationNames array", body)
		}
		if !strings.Contains(string(body), `"eventType":"CREATED"`) {
			t.Errorf("body = %s, want CREATED event", body)
		}
	})

	err := NewRecommendationAPI(c).RecordItineraryEvent(context.Background(), model.ItineraryEvent{
		ItineraryID: 1,
		Title:       "Trip",
		EventType:   model.ItineraryEventCreated,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
