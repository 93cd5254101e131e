// Package itinerary は旅程のクライアント側ストアを提供する。
// 旅程ごとの渡航警告の有効/無効はローカルストレージに保存する。
package itinerary

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/recommendation"
	"github.com/hitoshi/tripplanner/internal/repository"
	"github.com/hitoshi/tripplanner/internal/tripsync"
)

// API は旅程ストアが利用するバックエンドAPI。
type API interface {
	ListItineraries(ctx context.Context) ([]model.Itinerary, error)
	CreateItinerary(ctx context.Context, it model.Itinerary) error
}

// LocationLister は旅程の訪問地を取得する。
type LocationLister interface {
	ListForItinerary(ctx context.Context, itineraryID int64) ([]model.Location, error)
}

// EventRecorder はレコメンドグラフにイベントを記録する。
type EventRecorder interface {
	RecordItineraryEvent(ctx context.Context, event model.ItineraryEvent) error
}

// TripSyncer は旅程の訪問地を旅行として同期する。
type TripSyncer interface {
	Enable(ctx context.Context, itineraryID int64) (tripsync.Result, error)
	SyncLocations(ctx context.Context, itineraryID int64, locations []model.Location, notify bool) (tripsync.Result, error)
	Disable(ctx context.Context, itineraryID int64) (int, error)
}

// Options は機能フラグ。
type Options struct {
	TravelWarnings bool
}

// State は旅程ストアのスナップショット。
type State struct {
	Itineraries []model.Itinerary
	Selected    *model.Itinerary
	Loading     bool
	Error       string
}

// Store は旅程の一覧と渡航警告の設定を保持する。
type Store struct {
	api       API
	locations LocationLister
	events    EventRecorder
	syncer    TripSyncer
	prefs     *Preferences
	options   Options

	mu          sync.Mutex
	itineraries []model.Itinerary
	selected    *model.Itinerary
	loading     bool
	err         string
}

// NewStore はStoreを生成し、保存済みの渡航警告設定を読み込む。
// eventsがnilの場合はイベントを記録しない。
func NewStore(ctx context.Context, api API, locations LocationLister, events EventRecorder, syncer TripSyncer, repo repository.KeyValueRepository, options Options) *Store {
	s := &Store{
		api:       api,
		locations: locations,
		events:    events,
		syncer:    syncer,
		prefs:     NewPreferences(repo),
		options:   options,
	}
	s.prefs.Load(ctx)
	return s
}

// LoadItineraries は旅程一覧を取得してストアを置き換え、渡航警告設定を再読み込みする。
// 404は空の一覧として扱い、その他のエラーでは既存の一覧を保持する。
func (s *Store) LoadItineraries(ctx context.Context) ([]model.Itinerary, error) {
	s.begin()

	itineraries, err := s.api.ListItineraries(ctx)
	if err != nil {
		if model.IsNotFound(err) {
			s.mu.Lock()
			s.itineraries = []model.Itinerary{}
			s.mu.Unlock()
			s.finish(nil)
			s.prefs.Load(ctx)
			return []model.Itinerary{}, nil
		}
		s.finish(err)
		slog.Error("failed to load itineraries", slog.String("error", err.Error()))
		return nil, err
	}
	if itineraries == nil {
		itineraries = []model.Itinerary{}
	}

	s.mu.Lock()
	s.itineraries = itineraries
	s.mu.Unlock()
	s.finish(nil)

	s.prefs.Load(ctx)
	return slices.Clone(itineraries), nil
}

// AddItinerary は旅程を作成し、一覧を再取得して作成された旅程を返す。
// 作成後のレコメンドイベント記録と訪問地の同期はベストエフォートで行い、
// 失敗しても作成自体は成功として扱う。
func (s *Store) AddItinerary(ctx context.Context, it model.Itinerary) (*model.Itinerary, error) {
	if err := s.api.CreateItinerary(ctx, it); err != nil {
		s.setError(err)
		slog.Error("failed to create itinerary", slog.String("error", err.Error()))
		return nil, err
	}

	itineraries, err := s.LoadItineraries(ctx)
	if err != nil {
		return nil, err
	}

	// サーバー採番のIDはタイトル・目的地・開始日で特定する
	i := slices.IndexFunc(itineraries, func(c model.Itinerary) bool {
		return c.Title == it.Title && c.Destination == it.Destination && c.StartDate == it.StartDate
	})
	if i < 0 || itineraries[i].ID == 0 {
		slog.Warn("created itinerary not found after reload", slog.String("title", it.Title))
		return nil, nil
	}
	created := itineraries[i]

	s.mu.Lock()
	selected := created
	s.selected = &selected
	s.mu.Unlock()

	locations, err := s.locations.ListForItinerary(ctx, created.ID)
	if err != nil {
		slog.Warn("failed to load locations for new itinerary",
			slog.Int64("itinerary_id", created.ID),
			slog.String("error", err.Error()),
		)
		locations = nil
	}

	if s.events != nil {
		if err := s.events.RecordItineraryEvent(ctx, recommendation.CreatedEvent(created, locations)); err != nil {
			slog.Warn("failed to record itinerary event",
				slog.Int64("itinerary_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.options.TravelWarnings && len(locations) > 0 {
		if _, err := s.syncer.SyncLocations(ctx, created.ID, locations, true); err != nil {
			slog.Warn("failed to sync itinerary locations",
				slog.Int64("itinerary_id", created.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("itinerary created", slog.Int64("itinerary_id", created.ID))
	return &created, nil
}

// ToggleTravelWarnings は旅程の渡航警告を有効/無効にする。
// 有効化では訪問地を旅行として同期し、無効化では旅程から生成した旅行を削除する。
// 同期が成功した場合のみ設定を保存する。訪問地が無い場合も有効化の設定は保存する。
func (s *Store) ToggleTravelWarnings(ctx context.Context, itineraryID int64, enabled bool) error {
	if enabled {
		if _, err := s.syncer.Enable(ctx, itineraryID); err != nil {
			s.setError(err)
			slog.Error("failed to enable travel warnings",
				slog.Int64("itinerary_id", itineraryID),
				slog.String("error", err.Error()),
			)
			return err
		}
	} else {
		if _, err := s.syncer.Disable(ctx, itineraryID); err != nil {
			s.setError(err)
			slog.Error("failed to disable travel warnings",
				slog.Int64("itinerary_id", itineraryID),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	s.prefs.Set(itineraryID, enabled)
	return s.prefs.Save(ctx)
}

// IsTravelWarningsEnabled は旅程の渡航警告が有効かを返す。
func (s *Store) IsTravelWarningsEnabled(itineraryID int64) bool {
	return s.prefs.Enabled(itineraryID)
}

// Select は一覧から旅程を選択する。見つからない場合はfalseを返す。
func (s *Store) Select(itineraryID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, it := range s.itineraries {
		if it.ID == itineraryID {
			selected := it
			s.selected = &selected
			return true
		}
	}
	return false
}

// Itineraries は現在の一覧のコピーを返す。
func (s *Store) Itineraries() []model.Itinerary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.itineraries)
}

// Snapshot はストアのスナップショットを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Itineraries: slices.Clone(s.itineraries),
		Loading:     s.loading,
		Error:       s.err,
	}
	if s.selected != nil {
		selected := *s.selected
		st.Selected = &selected
	}
	return st
}

func (s *Store) setError(err error) {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) finish(err error) {
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
}
