// Package geocode はNominatim（OpenStreetMap）による住所検索と逆ジオコーディングを提供する。
// Nominatimの利用規約に従い、識別用のUser-Agentを送信し、リクエスト間隔を制限する。
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/tripplanner/internal/metrics"
)

const (
	// DefaultEndpoint はNominatimの公開エンドポイント。
	DefaultEndpoint = "https://nominatim.openstreetmap.org"
	// DefaultUserAgent は識別用のUser-Agent。
	DefaultUserAgent = "TripPlanner/1.0"
	// countryZoom は国単位で逆ジオコーディングするズームレベル。
	countryZoom = "3"
)

// Config はClientの設定。
type Config struct {
	Endpoint  string
	UserAgent string
	// Email は連絡先としてクエリに付与するメールアドレス（任意）。
	Email string
	// RatePerSecond は1秒あたりの最大リクエスト数。0以下の場合は1。
	RatePerSecond float64
}

// Country は逆ジオコーディングで得た国。
type Country struct {
	Code string // ISO 3166-1 alpha-2（大文字）
	Name string
}

// Place は住所検索の結果。
type Place struct {
	Display    string
	ShortLabel string
	Lat        float64
	Lng        float64
}

// Client はNominatim APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	limiter    *rate.Limiter
	endpoint   string
	userAgent  string
	email      string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}

	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		userAgent:  cfg.UserAgent,
		email:      cfg.Email,
	}
}

// reverseResponse は/reverseのレスポンス。
type reverseResponse struct {
	Address struct {
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// Reverse は座標から国を特定する。
// 国を特定できない場合やNominatimがエラーステータスを返した場合はnilを返す。
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (*Country, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", countryZoom)
	q.Set("addressdetails", "1")

	var result reverseResponse
	found, err := c.get(ctx, "/reverse", q, &result)
	if err != nil || !found {
		c.metrics.RecordGeocodeLookup(false)
		return nil, err
	}

	if result.Address.CountryCode == "" || result.Address.Country == "" {
		c.logger.Warn("逆ジオコーディングで国を特定できませんでした",
			slog.Float64("lat", lat),
			slog.Float64("lon", lon),
		)
		c.metrics.RecordGeocodeLookup(false)
		return nil, nil
	}

	c.metrics.RecordGeocodeLookup(true)
	return &Country{
		Code: strings.ToUpper(result.Address.CountryCode),
		Name: result.Address.Country,
	}, nil
}

// searchResult は/searchのレスポンス要素。
type searchResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search は住所・地名から最も一致する地点を返す。
// 空のクエリや一致なしの場合はnilを返す。
func (c *Client) Search(ctx context.Context, query string) (*Place, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	var results []searchResult
	found, err := c.get(ctx, "/search", q, &results)
	if err != nil || !found || len(results) == 0 {
		c.metrics.RecordGeocodeLookup(false)
		return nil, err
	}

	first := results[0]
	lat, _ := strconv.ParseFloat(first.Lat, 64)
	lng, _ := strconv.ParseFloat(first.Lon, 64)

	c.metrics.RecordGeocodeLookup(true)
	return &Place{
		Display:    first.DisplayName,
		ShortLabel: shortLabel(first, query),
		Lat:        lat,
		Lng:        lng,
	}, nil
}

// shortLabel は名前、表示名の先頭2要素、クエリの順で短い表示名を決める。
func shortLabel(r searchResult, query string) string {
	if r.Name != "" {
		return r.Name
	}
	if r.DisplayName != "" {
		parts := strings.Split(r.DisplayName, ",")
		if len(parts) > 2 {
			parts = parts[:2]
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if label := strings.Join(parts, ", "); label != "" {
			return label
		}
	}
	return query
}

// get はレート制限に従ってGETリクエストを送信し、レスポンスをoutにデコードする。
// 200以外のステータスは見つからなかったものとしてfalseを返す。
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, err
	}

	if c.email != "" {
		q.Set("email", c.email)
	}
	reqURL := c.endpoint + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Nominatim APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false, err
	}
	defer resp.Body.Close()

	c.logger.Debug("Nominatim APIを呼び出しました",
		slog.String("path", path),
		slog.Int("http_status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Nominatim APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("Nominatim APIのレスポンスのパースに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return true, nil
}
