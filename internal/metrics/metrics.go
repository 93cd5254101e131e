// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// HTTPトランスポートやサービス層から利用する。
type MetricsCollector interface {
	RecordAPIRequest(host string, statusCode int, duration time.Duration)
	RecordAPIFailure(host string)
	RecordTokenRefresh(success bool)
	RecordSessionTerminated()
	RecordGeocodeLookup(success bool)
	RecordTripsSynced(created, updated, skipped int)
	RecordNewWarnings(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiRequests       *prometheus.CounterVec
	apiFailures       *prometheus.CounterVec
	apiLatency        prometheus.Histogram
	tokenRefresh      *prometheus.CounterVec
	sessionTerminated prometheus.Counter
	geocodeLookups    *prometheus.CounterVec
	tripsSynced       *prometheus.CounterVec
	newWarnings       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_api_requests_total",
			Help: "下流サービスへのリクエスト数（ホスト・ステータスコード別）",
		}, []string{"host", "status_code"}),
		apiFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_api_failures_total",
			Help: "レスポンスを受け取れなかったリクエスト数",
		}, []string{"host"}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripplanner_api_latency_seconds",
			Help:    "下流サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_token_refresh_total",
			Help: "401応答によるトークン更新の回数",
		}, []string{"result"}),
		sessionTerminated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplanner_session_terminated_total",
			Help: "認証失敗により終了したセッション数",
		}),
		geocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_geocode_lookups_total",
			Help: "ジオコーディングの呼び出し数",
		}, []string{"result"}),
		tripsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripplanner_trips_synced_total",
			Help: "旅程の訪問地から同期した旅行の数",
		}, []string{"action"}),
		newWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripplanner_new_warnings_total",
			Help: "新たに検出した渡航警告の数",
		}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiFailures,
		c.apiLatency,
		c.tokenRefresh,
		c.sessionTerminated,
		c.geocodeLookups,
		c.tripsSynced,
		c.newWarnings,
	)

	return c
}

// RecordAPIRequest はレスポンスを受け取ったリクエストを記録する。
func (c *Collector) RecordAPIRequest(host string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.Observe(duration.Seconds())
}

// RecordAPIFailure は通信エラーで失敗したリクエストを記録する。
func (c *Collector) RecordAPIFailure(host string) {
	c.apiFailures.WithLabelValues(host).Inc()
}

// RecordTokenRefresh はトークン更新の結果を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	c.tokenRefresh.WithLabelValues(resultLabel(success)).Inc()
}

// RecordSessionTerminated はセッション終了を記録する。
func (c *Collector) RecordSessionTerminated() {
	c.sessionTerminated.Inc()
}

// RecordGeocodeLookup はジオコーディングの結果を記録する。
func (c *Collector) RecordGeocodeLookup(success bool) {
	c.geocodeLookups.WithLabelValues(resultLabel(success)).Inc()
}

// RecordTripsSynced は同期結果を記録する。
func (c *Collector) RecordTripsSynced(created, updated, skipped int) {
	c.tripsSynced.WithLabelValues("created").Add(float64(created))
	c.tripsSynced.WithLabelValues("updated").Add(float64(updated))
	c.tripsSynced.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordNewWarnings は新規の渡航警告数を記録する。
func (c *Collector) RecordNewWarnings(count int) {
	c.newWarnings.Add(float64(count))
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordAPIRequest(string, int, time.Duration) {}
func (NopCollector) RecordAPIFailure(string)                     {}
func (NopCollector) RecordTokenRefresh(bool)                     {}
func (NopCollector) RecordSessionTerminated()                    {}
func (NopCollector) RecordGeocodeLookup(bool)                    {}
func (NopCollector) RecordTripsSynced(int, int, int)             {}
func (NopCollector) RecordNewWarnings(int)                       {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
