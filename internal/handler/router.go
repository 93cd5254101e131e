package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/tripplanner/internal/metrics"
	"github.com/hitoshi/tripplanner/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter

	// メトリクス（nilの場合は/metricsを公開しない）
	Gatherer prometheus.Gatherer

	// セッション
	Session SessionProvider

	// 渡航警告の監視結果
	Warnings WarningsProvider

	// 旅程
	Itineraries TravelWarningsToggler
}

// NewRouter は監視用サーバーのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders
//
// 変更系のルートにはさらにRateLimitを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	statusHandler := NewStatusHandler(deps.Session, deps.Warnings)
	itineraryHandler := NewItineraryHandler(deps.Itineraries)

	r.Get("/health", statusHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", statusHandler.Session)
		r.Get("/warnings", statusHandler.Warnings)

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}
			r.Put("/itineraries/{id}/travel-warnings", itineraryHandler.ToggleTravelWarnings)
		})
	})

	return r
}
