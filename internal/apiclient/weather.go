package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/tripplanner/internal/model"
)

// WeatherAPI は天気予報サービスのクライアント。
type WeatherAPI struct {
	client *Client
}

// NewWeatherAPI はWeatherAPIを生成する。
func NewWeatherAPI(client *Client) *WeatherAPI {
	return &WeatherAPI{client: client}
}

func coordinateQuery(lat, lon float64) url.Values {
	return url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
}

// FetchForecast は外部の気象APIから予報を取得してサービスに保存させる。
// 既存の予報がある場合は更新される。
func (a *WeatherAPI) FetchForecast(ctx context.Context, c model.Coordinates) error {
	query := coordinateQuery(c.Latitude, c.Longitude)
	if c.Location != "" {
		query.Set("location", c.Location)
	}
	return a.client.doJSON(ctx, http.MethodPost, "/api/weather/forecast/coordinates", query, nil, nil)
}

// ForecastsByCoordinates は座標の保存済み予報を取得する。
func (a *WeatherAPI) ForecastsByCoordinates(ctx context.Context, lat, lon float64) ([]model.WeatherForecast, error) {
	var out []model.WeatherForecast
	if err := a.client.doJSON(ctx, http.MethodGet, "/api/weather/forecast/coordinates", coordinateQuery(lat, lon), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ForecastsByLocation は地点名の保存済み予報を取得する。
func (a *WeatherAPI) ForecastsByLocation(ctx context.Context, location string) ([]model.WeatherForecast, error) {
	var out []model.WeatherForecast
	if err := a.client.doJSON(ctx, http.MethodGet, "/api/weather/forecast/"+url.PathEscape(location), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForecasts は保存済みの全予報を取得する。
func (a *WeatherAPI) ListForecasts(ctx context.Context) ([]model.WeatherForecast, error) {
	var out []model.WeatherForecast
	if err := a.client.doJSON(ctx, http.MethodGet, "/api/weather/forecasts", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteForecast は地点名の予報を削除する。
func (a *WeatherAPI) DeleteForecast(ctx context.Context, location string) error {
	return a.client.doJSON(ctx, http.MethodDelete, "/api/weather/forecast/"+url.PathEscape(location), nil, nil, nil)
}
