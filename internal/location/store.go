// Package location は旅程に含まれる訪問地のクライアント側ストアを提供する。
package location

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
)

// API は訪問地ストアが利用するバックエンドAPI。
type API interface {
	ListLocations(ctx context.Context, itineraryID int64) ([]model.Location, error)
	CreateLocation(ctx context.Context, in model.NewLocation) (*model.Location, error)
	GetLocation(ctx context.Context, id int64) (*model.Location, error)
	DeleteLocation(ctx context.Context, id int64) error
	UploadLocationImages(ctx context.Context, id int64, files []model.UploadFile) ([]string, error)
	DeleteLocationImage(ctx context.Context, id int64, imageURL string) error
}

// State は訪問地ストアのスナップショット。
type State struct {
	Locations []model.Location
	Current   *model.Location
	Loading   bool
	Error     string
}

// Store は訪問地の一覧と選択中の訪問地を保持する。
// プロセスで1つ生成し、参照で共有する。
type Store struct {
	api API

	mu        sync.Mutex
	locations []model.Location
	current   *model.Location
	loading   bool
	err       string
}

// NewStore はStoreを生成する。
func NewStore(api API) *Store {
	return &Store{api: api}
}

// ListForItinerary は旅程の訪問地一覧を取得してストアを置き換える。
// 404は空の一覧として扱い、その他のエラーでは既存の一覧を保持する。
func (s *Store) ListForItinerary(ctx context.Context, itineraryID int64) ([]model.Location, error) {
	s.begin()

	locations, err := s.api.ListLocations(ctx, itineraryID)
	if err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			s.mu.Lock()
			s.locations = []model.Location{}
			s.mu.Unlock()
			return []model.Location{}, nil
		}
		s.finish(err)
		slog.Error("failed to list locations",
			slog.Int64("itinerary_id", itineraryID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if locations == nil {
		locations = []model.Location{}
	}

	s.mu.Lock()
	s.locations = locations
	s.mu.Unlock()
	s.finish(nil)
	return slices.Clone(locations), nil
}

// AddToItinerary は訪問地を追加し、一覧の末尾に加えて選択状態にする。
// 400/404の場合はnilを返す。
func (s *Store) AddToItinerary(ctx context.Context, in model.NewLocation) (*model.Location, error) {
	s.begin()

	loc, err := s.api.CreateLocation(ctx, in)
	if err != nil {
		if model.IsNotFoundOrBadRequest(err) {
			s.finish(nil)
			return nil, nil
		}
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.locations = append(s.locations, *loc)
	current := *loc
	s.current = &current
	s.mu.Unlock()
	s.finish(nil)

	slog.Info("location added",
		slog.Int64("itinerary_id", in.ItineraryID),
		slog.Int64("location_id", loc.ID),
	)
	return loc, nil
}

// Get は訪問地を取得して選択状態にする。404の場合はnilを返す。
func (s *Store) Get(ctx context.Context, id int64) (*model.Location, error) {
	s.begin()

	loc, err := s.api.GetLocation(ctx, id)
	if err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			return nil, nil
		}
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	current := *loc
	s.current = &current
	s.mu.Unlock()
	s.finish(nil)
	return loc, nil
}

// Delete は訪問地を削除する。404の場合はfalseを返す。
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.begin()

	if err := s.api.DeleteLocation(ctx, id); err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			return false, nil
		}
		s.finish(err)
		return false, err
	}

	s.mu.Lock()
	s.locations = slices.DeleteFunc(s.locations, func(l model.Location) bool { return l.ID == id })
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	s.mu.Unlock()
	s.finish(nil)
	return true, nil
}

// UploadImages は訪問地に画像を追加し、追加された画像URLを返す。
// 400/404の場合はnilを返す。
func (s *Store) UploadImages(ctx context.Context, id int64, files []model.UploadFile) ([]string, error) {
	s.begin()

	urls, err := s.api.UploadLocationImages(ctx, id, files)
	if err != nil {
		if model.IsNotFoundOrBadRequest(err) {
			s.finish(nil)
			return nil, nil
		}
		s.finish(err)
		return nil, err
	}

	s.mu.Lock()
	s.updateLocked(id, func(l *model.Location) {
		l.ImageURLs = append(slices.Clone(l.ImageURLs), urls...)
	})
	s.mu.Unlock()
	s.finish(nil)
	return urls, nil
}

// DeleteImage は訪問地から画像を削除する。404の場合はfalseを返す。
func (s *Store) DeleteImage(ctx context.Context, id int64, imageURL string) (bool, error) {
	s.begin()

	if err := s.api.DeleteLocationImage(ctx, id, imageURL); err != nil {
		if model.IsNotFound(err) {
			s.finish(nil)
			return false, nil
		}
		s.finish(err)
		return false, err
	}

	s.mu.Lock()
	s.updateLocked(id, func(l *model.Location) {
		l.ImageURLs = slices.DeleteFunc(slices.Clone(l.ImageURLs), func(u string) bool { return u == imageURL })
	})
	s.mu.Unlock()
	s.finish(nil)
	return true, nil
}

// Clear は一覧・選択状態・エラーを初期化する。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = nil
	s.current = nil
	s.err = ""
}

// Locations は現在の一覧のコピーを返す。
func (s *Store) Locations() []model.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.locations)
}

// Snapshot はストアのスナップショットを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Locations: slices.Clone(s.locations),
		Loading:   s.loading,
		Error:     s.err,
	}
	if s.current != nil {
		current := *s.current
		st.Current = &current
	}
	return st
}

// updateLocked は一覧と選択中の訪問地の両方に変更を適用する。
func (s *Store) updateLocked(id int64, fn func(*model.Location)) {
	for i := range s.locations {
		if s.locations[i].ID == id {
			fn(&s.locations[i])
		}
	}
	if s.current != nil && s.current.ID == id {
		fn(s.current)
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

// WithCoordinates は座標を持つ訪問地のみを返す。
func WithCoordinates(locations []model.Location) []model.Location {
	var out []model.Location
	for _, l := range locations {
		if l.HasCoordinates() {
			out = append(out, l)
		}
	}
	return out
}
