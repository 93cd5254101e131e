package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/tripplanner/internal/metrics"
)

// WithLogging は下流サービス呼び出しをJSON構造化ログに出力するラッパーを返す。
// ログにはmethod、url、status、duration_ms、request_id（ある場合）を含む。
func WithLogging(logger *slog.Logger) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			durationMs := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", req.Method),
				slog.String("url", req.URL.Redacted()),
				slog.Float64("duration_ms", durationMs),
			}
			if id, ok := RequestIDFromContext(req.Context()); ok {
				args = append(args, slog.String("request_id", id))
			} else if id := req.Header.Get(RequestIDHeader); id != "" {
				args = append(args, slog.String("request_id", id))
			}

			if err != nil {
				args = append(args, slog.String("error", err.Error()))
				logger.Log(req.Context(), slog.LevelError, "api_request_failed", args...)
				return nil, err
			}

			args = append(args, slog.Int("status", resp.StatusCode))

			// ステータスコードに応じてログレベルを変更
			level := slog.LevelDebug
			if resp.StatusCode >= 500 {
				level = slog.LevelError
			} else if resp.StatusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(req.Context(), level, "api_request", args...)
			return resp, nil
		})
	}
}

// WithMetrics は下流サービス呼び出しのステータスとレイテンシを記録するラッパーを返す。
func WithMetrics(collector metrics.MetricsCollector) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(req)
			if err != nil {
				collector.RecordAPIFailure(req.URL.Host)
				return nil, err
			}
			collector.RecordAPIRequest(req.URL.Host, resp.StatusCode, time.Since(start))
			return resp, nil
		})
	}
}
