// Package middleware は下流サービス呼び出し用のHTTPトランスポートと、
// 常駐サーバー用のHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
)

// RoundTripperFunc は関数をhttp.RoundTripperとして扱うためのアダプタ。
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip はhttp.RoundTripperを実装する。
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain はbaseをwrappersで順に包んだトランスポートを返す。
// 先頭のwrapperが最も外側になる。baseがnilの場合はhttp.DefaultTransportを使う。
func Chain(base http.RoundTripper, wrappers ...func(http.RoundTripper) http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(wrappers) - 1; i >= 0; i-- {
		rt = wrappers[i](rt)
	}
	return rt
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// requestIDContextKey はコンテキストにリクエストIDを格納するためのキー。
var requestIDContextKey = contextKey("request_id")

// WithRequestID はリクエストIDを格納したコンテキストを返す。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

// RequestIDFromContext はコンテキストからリクエストIDを取得する。
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	return id, ok && id != ""
}
