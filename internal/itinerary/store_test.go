package itinerary

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/repository"
	"github.com/hitoshi/tripplanner/internal/storage"
	"github.com/hitoshi/tripplanner/internal/tripsync"
)

type mockAPI struct {
	listFn   func(ctx context.Context) ([]model.Itinerary, error)
	createFn func(ctx context.Context, it model.Itinerary) error
}

func (m *mockAPI) ListItineraries(ctx context.Context) ([]model.Itinerary, error) {
	return m.listFn(ctx)
}

func (m *mockAPI) CreateItinerary(ctx context.Context, it model.Itinerary) error {
	return m.createFn(ctx, it)
}

type mockLocations struct {
	listFn func(ctx context.Context, itineraryID int64) ([]model.Location, error)
}

func (m *mockLocations) ListForItinerary(ctx context.Context, itineraryID int64) ([]model.Location, error) {
	return m.listFn(ctx, itineraryID)
}

type mockEvents struct {
	events []model.ItineraryEvent
	err    error
}

func (m *mockEvents) RecordItineraryEvent(ctx context.Context, event model.ItineraryEvent) error {
	m.events = append(m.events, event)
	return m.err
}

type mockSyncer struct {
	enableFn  func(ctx context.Context, itineraryID int64) (tripsync.Result, error)
	disableFn func(ctx context.Context, itineraryID int64) (int, error)
	syncCalls []int64
	syncErr   error
}

func (m *mockSyncer) Enable(ctx context.Context, itineraryID int64) (tripsync.Result, error) {
	return m.enableFn(ctx, itineraryID)
}

func (m *mockSyncer) SyncLocations(ctx context.Context, itineraryID int64, locations []model.Location, notify bool) (tripsync.Result, error) {
	m.syncCalls = append(m.syncCalls, itineraryID)
	return tripsync.Result{Created: len(locations)}, m.syncErr
}

func (m *mockSyncer) Disable(ctx context.Context, itineraryID int64) (int, error) {
	return m.disableFn(ctx, itineraryID)
}

func noLocations() *mockLocations {
	return &mockLocations{listFn: func(ctx context.Context, itineraryID int64) ([]model.Location, error) {
		return []model.Location{}, nil
	}}
}

func okSyncer() *mockSyncer {
	return &mockSyncer{
		enableFn:  func(ctx context.Context, itineraryID int64) (tripsync.Result, error) { return tripsync.Result{}, nil },
		disableFn: func(ctx context.Context, itineraryID int64) (int, error) { return 0, nil },
	}
}

func TestStore_LoadItineraries_ReplacesList(t *testing.T) {
	api := &mockAPI{listFn: func(ctx context.Context) ([]model.Itinerary, error) {
		return []model.Itinerary{{ID: 1, Title: "Summer"}, {ID: 2, Title: "Winter"}}, nil
	}}
	s := NewStore(context.Background(), api, noLocations(), nil, okSyncer(), repository.NewMemoryKVRepo(), Options{})

	got, err := s.LoadItineraries(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	snap := s.Snapshot()
	if snap.Loading || snap.Error != "" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestStore_LoadItineraries_NotFoundIsEmpty(t *testing.T) {
	calls := 0
	api := &mockAPI{listFn: func(ctx context.Context) ([]model.Itinerary, error) {
		calls++
		if calls == 1 {
			return []model.Itinerary{{ID: 1}}, nil
		}
		return nil, &model.StatusError{StatusCode: http.StatusNotFound}
	}}
	s := NewStore(context.Background(), api, noLocations(), nil, okSyncer(), repository.NewMemoryKVRepo(), Options{})
	_, _ = s.LoadItineraries(context.Background())

	got, err := s.LoadItineraries(context.Background())
	if err != nil {
		t.Fatalf("404 はエラーにしない: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got = %v, want empty non-nil", got)
	}
	if len(s.Itineraries()) != 0 {
		t.Error("404 ではストアを空にする")
	}
}

func TestStore_LoadItineraries_ErrorKeepsList(t *testing.T) {
	calls := 0
	api := &mockAPI{listFn: func(ctx context.Context) ([]model.Itinerary, error) {
		calls++
		if calls == 1 {
			return []model.Itinerary{{ID: 1}}, nil
		}
		return nil, &model.StatusError{StatusCode: http.StatusInternalServerError}
	}}
	s := NewStore(context.Background(), api, noLocations(), nil, okSyncer(), repository.NewMemoryKVRepo(), Options{})
	_, _ = s.LoadItineraries(context.Background())

	if _, err := s.LoadItineraries(context.Background()); err == nil {
		t.Fatal("500 はエラーを返す")
	}
	snap := s.Snapshot()
	if len(snap.Itineraries) != 1 {
		t.Errorf("エラー時は一覧を保持する, len = %d", len(snap.Itineraries))
	}
	if snap.Error == "" {
		t.Error("エラーが記録されていない")
	}
}

func TestStore_AddItinerary_RecordsEventAndSyncs(t *testing.T) {
	var stored []model.Itinerary
	api := &mockAPI{
		listFn: func(ctx context.Context) ([]model.Itinerary, error) { return stored, nil },
		createFn: func(ctx context.Context, it model.Itinerary) error {
			if it.ID != 0 {
				t.Errorf("作成時にIDを送らない, got %d", it.ID)
			}
			it.ID = 42
			stored = append(stored, it)
			return nil
		},
	}
	locations := &mockLocations{listFn: func(ctx context.Context, itineraryID int64) ([]model.Location, error) {
		return []model.Location{{ID: 1, Name: "Paris", Latitude: 48.85, Longitude: 2.35}, {ID: 2}}, nil
	}}
	events := &mockEvents{}
	syncer := okSyncer()
	s := NewStore(context.Background(), api, locations, events, syncer, repository.NewMemoryKVRepo(), Options{TravelWarnings: true})

	created, err := s.AddItinerary(context.Background(), model.Itinerary{
		Title: "Europe", Destination: "France", StartDate: "2025-07-01", ShortDescription: "short",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil || created.ID != 42 {
		t.Fatalf("created = %+v", created)
	}
	if len(events.events) != 1 {
		t.Fatalf("events = %d, want 1", len(events.events))
	}
	ev := events.events[0]
	if ev.ItineraryID != 42 || ev.Description != "short" || len(ev.LocationNames) != 1 || ev.LocationNames[0] != "Paris" {
		t.Errorf("event = %+v", ev)
	}
	if len(syncer.syncCalls) != 1 || syncer.syncCalls[0] != 42 {
		t.Errorf("sync calls = %v", syncer.syncCalls)
	}
	if sel := s.Snapshot().Selected; sel == nil || sel.ID != 42 {
		t.Errorf("作成した旅程が選択されていない: %+v", sel)
	}
}

func TestStore_AddItinerary_BestEffortFailuresDoNotFail(t *testing.T) {
	var stored []model.Itinerary
	api := &mockAPI{
		listFn: func(ctx context.Context) ([]model.Itinerary, error) { return stored, nil },
		createFn: func(ctx context.Context, it model.Itinerary) error {
			it.ID = 5
			stored = append(stored, it)
			return nil
		},
	}
	locations := &mockLocations{listFn: func(ctx context.Context, itineraryID int64) ([]model.Location, error) {
		return []model.Location{{ID: 1, Name: "Rome"}}, nil
	}}
	events := &mockEvents{err: errors.New("graph down")}
	syncer := okSyncer()
	syncer.syncErr = errors.New("sync failed")
	s := NewStore(context.Background(), api, locations, events, syncer, repository.NewMemoryKVRepo(), Options{TravelWarnings: true})

	created, err := s.AddItinerary(context.Background(), model.Itinerary{Title: "Italy", Destination: "Rome"})
	if err != nil {
		t.Fatalf("付随処理の失敗で作成を失敗にしない: %v", err)
	}
	if created == nil || created.ID != 5 {
		t.Errorf("created = %+v", created)
	}
}

func TestStore_AddItinerary_SkipsSyncWhenFeatureDisabled(t *testing.T) {
	var stored []model.Itinerary
	api := &mockAPI{
		listFn: func(ctx context.Context) ([]model.Itinerary, error) { return stored, nil },
		createFn: func(ctx context.Context, it model.Itinerary) error {
			it.ID = 9
			stored = append(stored, it)
			return nil
		},
	}
	locations := &mockLocations{listFn: func(ctx context.Context, itineraryID int64) ([]model.Location, error) {
		return []model.Location{{ID: 1, Name: "Rome"}}, nil
	}}
	syncer := okSyncer()
	s := NewStore(context.Background(), api, locations, nil, syncer, repository.NewMemoryKVRepo(), Options{})

	if _, err := s.AddItinerary(context.Background(), model.Itinerary{Title: "Italy"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(syncer.syncCalls) != 0 {
		t.Errorf("機能無効時は同期しない, calls = %v", syncer.syncCalls)
	}
}

func TestStore_AddItinerary_CreateErrorPropagates(t *testing.T) {
	api := &mockAPI{
		createFn: func(ctx context.Context, it model.Itinerary) error {
			return &model.StatusError{StatusCode: http.StatusBadRequest}
		},
	}
	s := NewStore(context.Background(), api, noLocations(), nil, okSyncer(), repository.NewMemoryKVRepo(), Options{})

	if _, err := s.AddItinerary(context.Background(), model.Itinerary{Title: "x"}); !errors.Is(err, model.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
	if s.Snapshot().Error == "" {
		t.Error("エラーが記録されていない")
	}
}

func TestStore_ToggleTravelWarnings_PersistsPreference(t *testing.T) {
	repo := repository.NewMemoryKVRepo()
	syncer := okSyncer()
	s := NewStore(context.Background(), &mockAPI{}, noLocations(), nil, syncer, repo, Options{TravelWarnings: true})

	if err := s.ToggleTravelWarnings(context.Background(), 7, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.IsTravelWarningsEnabled(7) {
		t.Error("有効化後は true を返す")
	}

	raw, ok, err := repo.Get(context.Background(), storage.TravelWarningsPrefsKey)
	if err != nil || !ok {
		t.Fatalf("preference not saved: ok=%v err=%v", ok, err)
	}
	if raw != `{"7":true}` {
		t.Errorf("saved = %s", raw)
	}

	// 別のストアでも保存済みの設定を読み込む
	reloaded := NewStore(context.Background(), &mockAPI{}, noLocations(), nil, syncer, repo, Options{})
	if !reloaded.IsTravelWarningsEnabled(7) {
		t.Error("保存済みの設定が読み込まれていない")
	}

	if err := s.ToggleTravelWarnings(context.Background(), 7, false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if s.IsTravelWarningsEnabled(7) {
		t.Error("無効化後は false を返す")
	}
}

func TestStore_ToggleTravelWarnings_SyncErrorKeepsPreference(t *testing.T) {
	syncer := okSyncer()
	syncer.enableFn = func(ctx context.Context, itineraryID int64) (tripsync.Result, error) {
		return tripsync.Result{}, model.ErrNotAuthenticated
	}
	s := NewStore(context.Background(), &mockAPI{}, noLocations(), nil, syncer, repository.NewMemoryKVRepo(), Options{TravelWarnings: true})

	err := s.ToggleTravelWarnings(context.Background(), 3, true)
	if !errors.Is(err, model.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if s.IsTravelWarningsEnabled(3) {
		t.Error("同期失敗時は設定を変更しない")
	}
}

func TestPreferences_LoadIgnoresMalformedValue(t *testing.T) {
	repo := repository.NewMemoryKVRepo()
	if err := repo.Set(context.Background(), storage.TravelWarningsPrefsKey, "{broken"); err != nil {
		t.Fatal(err)
	}
	p := NewPreferences(repo)
	p.Load(context.Background())

	if p.Enabled(1) {
		t.Error("壊れた値は無視する")
	}
}
