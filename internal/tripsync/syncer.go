// Package tripsync は旅程の訪問地を渡航警告サービスの旅行として同期する。
// 旅程ストアと旅行ストアをまたぐ処理を1か所にまとめる。
package tripsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/tripplanner/internal/geocode"
	"github.com/hitoshi/tripplanner/internal/metrics"
	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/trip"
)

// TripStore は同期先の旅行ストア。
type TripStore interface {
	ListForUser(ctx context.Context, email string) ([]model.Trip, error)
	Trips() []model.Trip
	Create(ctx context.Context, t model.Trip) (*model.Trip, error)
	Update(ctx context.Context, id int64, t model.Trip) (*model.Trip, error)
	Delete(ctx context.Context, id int64) (bool, error)
	FetchUserWarnings(ctx context.Context, email string) ([]model.UserWarning, error)
}

// LocationLister は旅程の訪問地を取得する。
type LocationLister interface {
	ListForItinerary(ctx context.Context, itineraryID int64) ([]model.Location, error)
}

// Geocoder は座標から国を特定する。
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*geocode.Country, error)
}

// IdentitySource はサインイン中のユーザーのメールアドレスを返す。
type IdentitySource interface {
	Email() string
}

// Result は同期結果の件数。
type Result struct {
	Created int
	Updated int
	Skipped int
}

// Syncer は旅程と旅行の同期を行う。
type Syncer struct {
	trips     TripStore
	locations LocationLister
	geocoder  Geocoder
	identity  IdentitySource
	metrics   metrics.MetricsCollector
}

// NewSyncer はSyncerを生成する。
func NewSyncer(trips TripStore, locations LocationLister, geocoder Geocoder, identity IdentitySource, collector metrics.MetricsCollector) *Syncer {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Syncer{
		trips:     trips,
		locations: locations,
		geocoder:  geocoder,
		identity:  identity,
		metrics:   collector,
	}
}

// Enable は旅程の訪問地を取得して旅行として同期する。
// 訪問地が無い場合は何もしない。
func (s *Syncer) Enable(ctx context.Context, itineraryID int64) (Result, error) {
	locations, err := s.locations.ListForItinerary(ctx, itineraryID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load locations for itinerary %d: %w", itineraryID, err)
	}
	if len(locations) == 0 {
		slog.Warn("no locations found for itinerary", slog.Int64("itinerary_id", itineraryID))
		return Result{}, nil
	}
	return s.SyncLocations(ctx, itineraryID, locations, true)
}

// SyncLocations は訪問地ごとに旅行を作成または更新する。
// 処理は配列の順に1件ずつ行う。座標の無い訪問地と国を特定できない訪問地はスキップする。
// 国・開始日・終了日が一致する旅行が既にあれば更新し、無ければ作成する。
// 最後にユーザーの渡航警告を1回だけ再取得する。
func (s *Syncer) SyncLocations(ctx context.Context, itineraryID int64, locations []model.Location, notify bool) (Result, error) {
	email := s.identity.Email()
	if email == "" {
		return Result{}, model.ErrNotAuthenticated
	}

	// 別プロセスで作成した旅行も照合対象にする
	if _, err := s.trips.ListForUser(ctx, email); err != nil {
		return Result{}, fmt.Errorf("failed to load trips: %w", err)
	}

	var result Result
	for _, loc := range locations {
		if !loc.HasCoordinates() {
			result.Skipped++
			continue
		}

		country, err := s.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
		if err != nil || country == nil {
			attrs := []any{
				slog.Int64("itinerary_id", itineraryID),
				slog.Int64("location_id", loc.ID),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			slog.Warn("skipping location without resolvable country", attrs...)
			result.Skipped++
			continue
		}

		data := model.Trip{
			Email:                email,
			CountryCode:          country.Code,
			CountryName:          country.Name,
			StartDate:            loc.FromDate,
			EndDate:              loc.ToDate,
			TripName:             trip.NameForLocation(loc.Name, itineraryID),
			NotificationsEnabled: notify,
		}

		if existing, ok := trip.FindByKey(s.trips.Trips(), data.Key()); ok && existing.ID != 0 {
			if _, err := s.trips.Update(ctx, existing.ID, data); err != nil {
				s.metrics.RecordTripsSynced(result.Created, result.Updated, result.Skipped)
				return result, fmt.Errorf("failed to update trip %d: %w", existing.ID, err)
			}
			result.Updated++
			continue
		}

		if _, err := s.trips.Create(ctx, data); err != nil {
			s.metrics.RecordTripsSynced(result.Created, result.Updated, result.Skipped)
			return result, fmt.Errorf("failed to create trip for %s: %w", country.Code, err)
		}
		result.Created++
	}

	s.metrics.RecordTripsSynced(result.Created, result.Updated, result.Skipped)

	if _, err := s.trips.FetchUserWarnings(ctx, email); err != nil {
		return result, fmt.Errorf("failed to refresh user warnings: %w", err)
	}

	slog.Info("itinerary locations synced",
		slog.Int64("itinerary_id", itineraryID),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
	)
	return result, nil
}

// Disable は旅程から生成した旅行を全て削除し、削除件数を返す。
func (s *Syncer) Disable(ctx context.Context, itineraryID int64) (int, error) {
	if email := s.identity.Email(); email != "" {
		if _, err := s.trips.ListForUser(ctx, email); err != nil {
			return 0, fmt.Errorf("failed to load trips: %w", err)
		}
	}

	deleted := 0
	for _, t := range trip.ForItinerary(s.trips.Trips(), itineraryID) {
		if t.ID == 0 {
			continue
		}
		ok, err := s.trips.Delete(ctx, t.ID)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete trip %d: %w", t.ID, err)
		}
		if ok {
			deleted++
		}
	}

	slog.Info("itinerary trips removed",
		slog.Int64("itinerary_id", itineraryID),
		slog.Int("deleted", deleted),
	)
	return deleted, nil
}
