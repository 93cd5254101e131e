package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを伝搬するヘッダー名。
const RequestIDHeader = "X-Request-ID"

// RequestIDTransport は下流サービスへのリクエストにリクエストIDを付与する。
// コンテキストにIDがあればそれを使い、なければ新たに採番する。
type RequestIDTransport struct {
	base http.RoundTripper
}

// WithRequestIDHeader はChainで使うためのラッパーを返す。
func WithRequestIDHeader() func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return &RequestIDTransport{base: next}
	}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) != "" {
		return t.base.RoundTrip(req)
	}

	id, ok := RequestIDFromContext(req.Context())
	if !ok {
		id = uuid.NewString()
	}

	out := req.Clone(WithRequestID(req.Context(), id))
	out.Header.Set(RequestIDHeader, id)
	return t.base.RoundTrip(out)
}

// NewRequestIDMiddleware は受信リクエストにリクエストIDを割り当てるミドルウェアを返す。
// クライアントが送ったIDがあればそれを引き継ぐ。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
		})
	}
}
