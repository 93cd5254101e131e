package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/tripplanner/internal/apiclient"
	"github.com/hitoshi/tripplanner/internal/auth"
	"github.com/hitoshi/tripplanner/internal/config"
	"github.com/hitoshi/tripplanner/internal/database"
	"github.com/hitoshi/tripplanner/internal/geocode"
	"github.com/hitoshi/tripplanner/internal/itinerary"
	"github.com/hitoshi/tripplanner/internal/location"
	"github.com/hitoshi/tripplanner/internal/metrics"
	"github.com/hitoshi/tripplanner/internal/middleware"
	"github.com/hitoshi/tripplanner/internal/recommendation"
	"github.com/hitoshi/tripplanner/internal/repository"
	"github.com/hitoshi/tripplanner/internal/security"
	"github.com/hitoshi/tripplanner/internal/storage"
	"github.com/hitoshi/tripplanner/internal/trip"
	"github.com/hitoshi/tripplanner/internal/tripsync"
	"github.com/hitoshi/tripplanner/internal/user"
	"github.com/hitoshi/tripplanner/internal/warning"
	"github.com/hitoshi/tripplanner/internal/weather"
	"github.com/hitoshi/tripplanner/internal/worker/watch"
)

const (
	// storageNamespace はPostgreSQL/Redisで他のアプリケーションとキーを分ける名前空間。
	storageNamespace = "tripplanner"
	// authInitTimeout はIdPの初回状態通知を待つ上限。
	authInitTimeout = 10 * time.Second
)

// container はコマンドが使う依存関係をまとめたもの。
type container struct {
	cfg *config.Config

	repo      repository.KeyValueRepository
	registry  *prometheus.Registry
	collector *metrics.Collector

	auth            *auth.Service
	users           *user.Service
	itineraries     *itinerary.Store
	locations       *location.Store
	trips           *trip.Store
	warnings        *warning.Store
	weather         *weather.Store
	geocoder        *geocode.Client
	syncer          *tripsync.Syncer
	recommendations *recommendation.Service
	watcher         *watch.Watcher
	sanitizer       warning.Sanitizer

	closers []func()
}

// newContainer は設定に従って全依存関係をワイヤリングし、保存済みの認証状態を復元する。
// redirectOutはセッション終了時のログイン誘導の出力先。
func newContainer(ctx context.Context, cfg *config.Config, redirectOut io.Writer) (*container, error) {
	c := &container{cfg: cfg}

	// 1. ストレージ
	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.repo = repo
	c.closers = append(c.closers, closeRepo)

	// 2. メトリクス
	c.registry = prometheus.NewRegistry()
	c.collector = metrics.NewCollector(c.registry)

	logger := slog.Default()

	// 3. 認証（IdPへの通信には認証トランスポートを挟まない）
	idpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: middleware.Chain(nil,
			middleware.WithRequestIDHeader(),
			middleware.WithLogging(logger),
			middleware.WithMetrics(c.collector),
		),
	}
	provider := auth.NewIdentityToolkitProvider(auth.IdentityToolkitConfig{
		APIKey:             cfg.FirebaseAPIKey,
		TenantID:           cfg.FirebaseTenantID,
		IdentityToolkitURL: cfg.IdentityToolkitURL,
		SecureTokenURL:     cfg.SecureTokenURL,
		SessionMaxAge:      time.Duration(cfg.SessionMaxAge) * time.Second,
		HTTPClient:         idpClient,
	}, storage.NewTTLStore(repo))

	images := security.NewImageFetcher(security.NewSSRFGuard(), cfg.HTTPTimeout)
	c.auth = auth.NewService(provider, images, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	c.closers = append(c.closers, c.auth.Close)

	initCtx, cancel := context.WithTimeout(ctx, authInitTimeout)
	defer cancel()
	if err := c.auth.Initialize(initCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	// 4. 下流サービスのクライアント
	redirector := newLoginRedirector(redirectOut, cfg.LoginURL)
	apiHTTP := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: middleware.Chain(nil,
			middleware.WithAuth(c.auth, redirector, c.collector),
			middleware.WithRequestIDHeader(),
			middleware.WithLogging(logger),
			middleware.WithMetrics(c.collector),
		),
	}
	backend := apiclient.NewBackendAPI(apiclient.NewClient(cfg.APIBaseURL, apiHTTP))
	weatherAPI := apiclient.NewWeatherAPI(apiclient.NewClient(cfg.WeatherAPIURL, apiHTTP))
	warningsAPI := apiclient.NewWarningsAPI(apiclient.NewClient(cfg.WarningsAPIURL, apiHTTP))
	recommendationAPI := apiclient.NewRecommendationAPI(apiclient.NewClient(cfg.RecommendationAPIURL, apiHTTP))

	// 5. ジオコーダー
	geoHTTP := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: middleware.Chain(nil,
			middleware.WithLogging(logger),
			middleware.WithMetrics(c.collector),
		),
	}
	c.geocoder = geocode.NewClient(geoHTTP, logger, c.collector, geocode.Config{
		Endpoint:      cfg.GeocoderURL,
		UserAgent:     cfg.GeocoderUserAgent,
		Email:         cfg.GeocoderEmail,
		RatePerSecond: cfg.GeocoderRate,
	})

	// 6. ストア
	c.users = user.NewService(backend)
	c.locations = location.NewStore(backend)
	c.trips = trip.NewStore(warningsAPI)
	c.sanitizer = security.NewContentSanitizer()
	c.warnings = warning.NewStore(warningsAPI, c.sanitizer)
	c.weather = weather.NewStore(weatherAPI)
	c.recommendations = recommendation.NewService(recommendationAPI, cfg.Features.Recommendations)
	c.syncer = tripsync.NewSyncer(c.trips, c.locations, c.geocoder, c.auth, c.collector)
	c.itineraries = itinerary.NewStore(ctx, backend, c.locations, c.recommendations, c.syncer, repo,
		itinerary.Options{TravelWarnings: cfg.Features.TravelWarnings})
	c.watcher = watch.NewWatcher(c.trips, c.auth, c.collector, logger)

	return c, nil
}

// Close は保持しているリソースを逆順に解放する。
func (c *container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// openRepository は設定されたバックエンドの永続ストレージを開く。
func openRepository(ctx context.Context, cfg *config.Config) (repository.KeyValueRepository, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return repository.NewMemoryKVRepo(), func() {}, nil

	case config.StoragePostgres:
		db, err := database.OpenAndPing(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return repository.NewPostgresKVRepo(db, storageNamespace), closeDB(db), nil

	case config.StorageRedis:
		client, err := repository.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return repository.NewRedisKVRepo(client, storageNamespace+":"), closeRedis(client), nil

	default:
		return repository.NewFileKVRepo(cfg.StoragePath), func() {}, nil
	}
}

func closeDB(db *sql.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close database", slog.String("error", err.Error()))
		}
	}
}

func closeRedis(client *redis.Client) func() {
	return func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
}

// newLoginRedirector はセッション終了時にログインの入口を案内するLoginRedirectorを返す。
func newLoginRedirector(w io.Writer, loginURL string) middleware.LoginRedirector {
	return middleware.LoginRedirectorFunc(func(ctx context.Context) {
		slog.Info("redirecting to login", slog.String("login_url", loginURL))
		fmt.Fprintf(w, "セッションが終了しました。再度ログインしてください: %s\n", loginURL)
	})
}
