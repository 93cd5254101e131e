// Package weather は地点ごとの天気予報のクライアント側ストアを提供する。
package weather

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/tripplanner/internal/model"
)

// API は天気予報ストアが利用する天気予報サービスのAPI。
type API interface {
	FetchForecast(ctx context.Context, c model.Coordinates) error
	ForecastsByCoordinates(ctx context.Context, lat, lon float64) ([]model.WeatherForecast, error)
	ForecastsByLocation(ctx context.Context, location string) ([]model.WeatherForecast, error)
	ListForecasts(ctx context.Context) ([]model.WeatherForecast, error)
	DeleteForecast(ctx context.Context, location string) error
}

// State は天気予報ストアのスナップショット。
type State struct {
	Forecasts []model.WeatherForecast
	Current   *model.WeatherForecast
}

// Store は取得済みの予報を地点名ごとに保持する。
type Store struct {
	api API

	mu        sync.Mutex
	forecasts []model.WeatherForecast
	current   *model.WeatherForecast
}

// NewStore はStoreを生成する。
func NewStore(api API) *Store {
	return &Store{api: api}
}

// FetchAndStore は外部の気象APIから予報を取得させ、保存された予報を返す。
// 既存の予報は更新される。400/404の場合はnilを返す。
func (s *Store) FetchAndStore(ctx context.Context, c model.Coordinates) (*model.WeatherForecast, error) {
	if err := s.api.FetchForecast(ctx, c); err != nil {
		if model.IsNotFoundOrBadRequest(err) {
			slog.Warn("weather forecast unavailable",
				slog.String("location", c.Location),
				slog.String("error", err.Error()),
			)
			return nil, nil
		}
		return nil, err
	}

	forecast, err := s.GetByCoordinates(ctx, c.Latitude, c.Longitude)
	if err != nil {
		if model.IsNotFoundOrBadRequest(err) {
			return nil, nil
		}
		return nil, err
	}
	if forecast == nil {
		return nil, nil
	}

	s.mu.Lock()
	s.upsertLocked(c.Location, *forecast)
	s.mu.Unlock()
	return forecast, nil
}

// GetByCoordinates は座標の保存済み予報を返す。404の場合はnilを返す。
func (s *Store) GetByCoordinates(ctx context.Context, lat, lon float64) (*model.WeatherForecast, error) {
	forecasts, err := s.api.ForecastsByCoordinates(ctx, lat, lon)
	return s.selectFirst(forecasts, err)
}

// GetByLocationName は地点名の保存済み予報を返す。404の場合はnilを返す。
func (s *Store) GetByLocationName(ctx context.Context, location string) (*model.WeatherForecast, error) {
	forecasts, err := s.api.ForecastsByLocation(ctx, location)
	return s.selectFirst(forecasts, err)
}

// GetOrFetch は保存済みの予報を優先し、無ければ外部から取得する。
func (s *Store) GetOrFetch(ctx context.Context, c model.Coordinates) (*model.WeatherForecast, error) {
	forecast, err := s.GetByLocationName(ctx, c.Location)
	if err != nil {
		return nil, err
	}
	if forecast == nil {
		return s.FetchAndStore(ctx, c)
	}

	s.mu.Lock()
	s.upsertLocked(c.Location, *forecast)
	s.mu.Unlock()
	return forecast, nil
}

// Refresh は外部から予報を再取得する。
func (s *Store) Refresh(ctx context.Context, c model.Coordinates) (*model.WeatherForecast, error) {
	return s.FetchAndStore(ctx, c)
}

// ListAll は保存済みの全予報を取得する。失敗した場合は空を返し、状態は変更しない。
func (s *Store) ListAll(ctx context.Context) []model.WeatherForecast {
	forecasts, err := s.api.ListForecasts(ctx)
	if err != nil {
		slog.Warn("failed to list weather forecasts", slog.String("error", err.Error()))
		return []model.WeatherForecast{}
	}
	if forecasts == nil {
		forecasts = []model.WeatherForecast{}
	}

	s.mu.Lock()
	s.forecasts = forecasts
	s.mu.Unlock()
	return slices.Clone(forecasts)
}

// Delete は地点名の予報を削除する。404の場合はfalseを返す。
func (s *Store) Delete(ctx context.Context, location string) (bool, error) {
	if err := s.api.DeleteForecast(ctx, location); err != nil {
		if model.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	s.mu.Lock()
	s.forecasts = slices.DeleteFunc(s.forecasts, func(f model.WeatherForecast) bool {
		return f.Location == location
	})
	if s.current != nil && s.current.Location == location {
		s.current = nil
	}
	s.mu.Unlock()
	return true, nil
}

// Clear は全ての状態を初期化する。
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts = nil
	s.current = nil
}

// Forecasts は現在の一覧のコピーを返す。
func (s *Store) Forecasts() []model.WeatherForecast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.forecasts)
}

// Snapshot はストアのスナップショットを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{Forecasts: slices.Clone(s.forecasts)}
	if s.current != nil {
		current := *s.current
		st.Current = &current
	}
	return st
}

// selectFirst は配列で返る予報の先頭を選択状態にして返す。
func (s *Store) selectFirst(forecasts []model.WeatherForecast, err error) (*model.WeatherForecast, error) {
	if err != nil {
		if model.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(forecasts) == 0 {
		return nil, nil
	}

	forecast := forecasts[0]
	s.mu.Lock()
	current := forecast
	s.current = &current
	s.mu.Unlock()
	return &forecast, nil
}

// upsertLocked は要求した地点名で一覧を更新し、選択状態にする。
func (s *Store) upsertLocked(location string, forecast model.WeatherForecast) {
	if i := slices.IndexFunc(s.forecasts, func(f model.WeatherForecast) bool {
		return f.Location == location
	}); i >= 0 {
		s.forecasts[i] = forecast
	} else {
		s.forecasts = append(s.forecasts, forecast)
	}
	current := forecast
	s.current = &current
}

// ByLocation は地点名が一致する予報を返す。
func ByLocation(forecasts []model.WeatherForecast, location string) (model.WeatherForecast, bool) {
	for _, f := range forecasts {
		if f.Location == location {
			return f, true
		}
	}
	return model.WeatherForecast{}, false
}
