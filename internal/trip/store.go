// Package trip は渡航警告サービスに登録した旅行（購読）のクライアント側ストアを提供する。
package trip

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
)

// API は旅行ストアが利用する渡航警告サービスのAPI。
type API interface {
	CreateTrip(ctx context.Context, trip model.Trip) (*model.Trip, error)
	TripsByEmail(ctx context.Context, email string) ([]model.Trip, error)
	GetTrip(ctx context.Context, id int64) (*model.Trip, error)
	UpdateTrip(ctx context.Context, id int64, trip model.Trip) (*model.Trip, error)
	DeleteTrip(ctx context.Context, id int64) error
	SetTripNotifications(ctx context.Context, id int64, enabled bool) (*model.Trip, error)
	WarningsForUser(ctx context.Context, email string) ([]model.UserWarning, error)
}

// State は旅行ストアのスナップショット。
type State struct {
	Trips        []model.Trip
	Current      *model.Trip
	UserWarnings []model.UserWarning
	Loading      bool
	Error        string
}

// Store はユーザーの旅行一覧と該当する渡航警告を保持する。
type Store struct {
	api API

	mu           sync.Mutex
	trips        []model.Trip
	current      *model.Trip
	userWarnings []model.UserWarning
	loading      bool
	err          string
}

// NewStore はStoreを生成する。
func NewStore(api API) *Store {
	return &Store{api: api}
}

// Create は旅行を登録し、未知のIDであれば一覧に加える。
func (s *Store) Create(ctx context.Context, trip model.Trip) (*model.Trip, error) {
	s.begin()

	created, err := s.api.CreateTrip(ctx, trip)
	if err != nil {
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.upsertLocked(*created)
	s.mu.Unlock()
	s.finish(nil)

	slog.Info("trip created",
		slog.Int64("trip_id", created.ID),
		slog.String("country_code", created.CountryCode),
	)
	return created, nil
}

// ListForUser はユーザーの旅行一覧を取得してストアを置き換える。
// 404は空の一覧として扱い、その他のエラーでは既存の一覧を保持する。
func (s *Store) ListForUser(ctx context.Context, email string) ([]model.Trip, error) {
	s.begin()

	trips, err := s.api.TripsByEmail(ctx, email)
	if err != nil {
		if model.IsNotFound(err) {
			s.mu.Lock()
			s.trips = []model.Trip{}
			s.mu.Unlock()
			s.finish(nil)
			return []model.Trip{}, nil
		}
		s.finish(err)
		return nil, err
	}
	if trips == nil {
		trips = []model.Trip{}
	}

	s.mu.Lock()
	s.trips = trips
	s.mu.Unlock()
	s.finish(nil)
	return slices.Clone(trips), nil
}

// Get は旅行を取得し、一覧に反映して選択状態にする。404の場合はnilを返す。
func (s *Store) Get(ctx context.Context, id int64) (*model.Trip, error) {
	s.begin()

	trip, err := s.api.GetTrip(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			return nil, nil
		}
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.upsertLocked(*trip)
	current := *trip
	s.current = &current
	s.mu.Unlock()
	s.finish(nil)
	return trip, nil
}

// Update は旅行を更新し、一覧と選択中の旅行に反映する。
func (s *Store) Update(ctx context.Context, id int64, trip model.Trip) (*model.Trip, error) {
	s.begin()

	updated, err := s.api.UpdateTrip(ctx, id, trip)
	if err != nil {
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(id, *updated)
	s.mu.Unlock()
	s.finish(nil)
	return updated, nil
}

// Delete は旅行を削除する。404の場合はfalseを返す。
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.begin()

	if err := s.api.DeleteTrip(ctx, id); err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			return false, nil
		}
		s.finish(err)
		return false, err
	}

	s.mu.Lock()
	s.trips = slices.DeleteFunc(s.trips, func(t model.Trip) bool { return t.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.finish(nil)
	return true, nil
}

// ToggleNotifications は旅行の通知設定を変更する。
func (s *Store) ToggleNotifications(ctx context.Context, id int64, enabled bool) (*model.Trip, error) {
	s.begin()

	updated, err := s.api.SetTripNotifications(ctx, id, enabled)
	if err != nil {
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(id, *updated)
	s.mu.Unlock()
	s.finish(nil)
	return updated, nil
}

// FetchUserWarnings はユーザーの旅行に該当する渡航警告を取得する。404の場合は空を返す。
func (s *Store) FetchUserWarnings(ctx context.Context, email string) ([]model.UserWarning, error) {
	s.begin()

	warnings, err := s.api.WarningsForUser(ctx, email)
	if err != nil {
		if model.IsNotFound(err) {
			s.mu.Lock()
			s.userWarnings = []model.UserWarning{}
			s.mu.Unlock()
			s.finish(nil)
			return []model.UserWarning{}, nil
		}
		s.finish(err)
		return nil, err
	}
	if warnings == nil {
		warnings = []model.UserWarning{}
	}

	s.mu.Lock()
	s.userWarnings = warnings
	s.mu.Unlock()
	s.finish(nil)
	return slices.Clone(warnings), nil
}

// ClearCurrent は選択状態を解除する。
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// ClearAll は全ての状態を初期化する。
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips = nil
	s.current = nil
	s.userWarnings = nil
	s.err = ""
}

// Trips は現在の一覧のコピーを返す。
func (s *Store) Trips() []model.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trips)
}

// UserWarnings は最後に取得した渡航警告のコピーを返す。
func (s *Store) UserWarnings() []model.UserWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.userWarnings)
}

// Snapshot はストアのスナップショットを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Trips:        slices.Clone(s.trips),
		UserWarnings: slices.Clone(s.userWarnings),
		Loading:      s.loading,
		Error:        s.err,
	}
	if s.current != nil {
		current := *s.current
		st.Current = &current
	}
	return st
}

func (s *Store) upsertLocked(trip model.Trip) {
	for i := range s.trips {
		if s.trips[i].ID == trip.ID {
			s.trips[i] = trip
			return
		}
	}
	s.trips = append(s.trips, trip)
}

func (s *Store) replaceLocked(id int64, trip model.Trip) {
	for i := range s.trips {
		if s.trips[i].ID == id {
			s.trips[i] = trip
		}
	}
	if s.current != nil && s.current.ID == id {
		current := trip
		s.current = &current
	}
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
