package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/tripplanner/internal/model"
)

// WarningsAPI は渡航警告サービス（渡航警告・ユーザーの旅行）のクライアント。
type WarningsAPI struct {
	client *Client
}

// NewWarningsAPI はWarningsAPIを生成する。
func NewWarningsAPI(client *Client) *WarningsAPI {
	return &WarningsAPI{client: client}
}

// ListWarnings は渡航警告の一覧を取得する。
func (a *WarningsAPI) ListWarnings(ctx context.Context, activeOnly bool) ([]model.Warning, error) {
	query := url.Values{"activeOnly": {strconv.FormatBool(activeOnly)}}
	var out []model.Warning
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/travel-warnings", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WarningByCountry は国コードの渡航警告を取得する。
func (a *WarningsAPI) WarningByCountry(ctx context.Context, countryCode string) (*model.Warning, error) {
	var out model.Warning
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/travel-warnings/country/"+url.PathEscape(countryCode), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetailedWarning はカテゴリ別本文付きの渡航警告を取得する。
func (a *WarningsAPI) DetailedWarning(ctx context.Context, countryCode string) (*model.DetailedWarning, error) {
	var out model.DetailedWarning
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/travel-warnings/country/"+url.PathEscape(countryCode)+"/detail", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WarningByContentID はコンテンツIDの渡航警告を取得する。
func (a *WarningsAPI) WarningByContentID(ctx context.Context, contentID string) (*model.Warning, error) {
	var out model.Warning
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/travel-warnings/"+url.PathEscape(contentID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BatchWarnings は複数国の渡航警告をまとめて取得する。
func (a *WarningsAPI) BatchWarnings(ctx context.Context, countryCodes []string) ([]model.Warning, error) {
	if countryCodes == nil {
		countryCodes = []string{}
	}
	var out []model.Warning
	if err := a.client.doJSON(ctx, http.MethodPost, "/warnings/travel-warnings/batch", nil, countryCodes, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshWarnings はサービス側の渡航警告データを更新させる。
func (a *WarningsAPI) RefreshWarnings(ctx context.Context) error {
	return a.client.doJSON(ctx, http.MethodPost, "/warnings/travel-warnings/refresh", nil, nil, nil)
}

// CreateTrip は旅行を登録する。
func (a *WarningsAPI) CreateTrip(ctx context.Context, trip model.Trip) (*model.Trip, error) {
	trip.ID = 0
	var out model.Trip
	if err := a.client.doJSON(ctx, http.MethodPost, "/warnings/trips", nil, trip, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TripsByEmail はユーザーの旅行一覧を取得する。
func (a *WarningsAPI) TripsByEmail(ctx context.Context, email string) ([]model.Trip, error) {
	var out []model.Trip
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/trips/user/"+url.PathEscape(email), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WarningsForUser はユーザーの旅行に該当する渡航警告を取得する。
func (a *WarningsAPI) WarningsForUser(ctx context.Context, email string) ([]model.UserWarning, error) {
	var out []model.UserWarning
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/trips/user/"+url.PathEscape(email)+"/warnings", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTrip は旅行を取得する。
func (a *WarningsAPI) GetTrip(ctx context.Context, id int64) (*model.Trip, error) {
	var out model.Trip
	if err := a.client.doJSON(ctx, http.MethodGet, "/warnings/trips/"+pathID(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTrip は旅行を更新する。
func (a *WarningsAPI) UpdateTrip(ctx context.Context, id int64, trip model.Trip) (*model.Trip, error) {
	trip.ID = 0
	var out model.Trip
	if err := a.client.doJSON(ctx, http.MethodPut, "/warnings/trips/"+pathID(id), nil, trip, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTrip は旅行を削除する。
func (a *WarningsAPI) DeleteTrip(ctx context.Context, id int64) error {
	return a.client.doJSON(ctx, http.MethodDelete, "/warnings/trips/"+pathID(id), nil, nil, nil)
}

// SetTripNotifications は旅行の通知設定を変更する。
func (a *WarningsAPI) SetTripNotifications(ctx context.Context, id int64, enabled bool) (*model.Trip, error) {
	query := url.Values{"enabled": {strconv.FormatBool(enabled)}}
	var out model.Trip
	if err := a.client.doJSON(ctx, http.MethodPatch, "/warnings/trips/"+pathID(id)+"/notifications", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
