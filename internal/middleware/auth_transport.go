package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/tripplanner/internal/metrics"
)

// SessionManager はAuthTransportが必要とするセッション操作。
// auth.Serviceの部分集合として定義する。
type SessionManager interface {
	IDToken() string
	RefreshToken(ctx context.Context) error
	Logout(ctx context.Context) error
}

// LoginRedirector はセッション終了後にログイン画面への誘導を行う。
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context)
}

// LoginRedirectorFunc は関数をLoginRedirectorとして扱うためのアダプタ。
type LoginRedirectorFunc func(ctx context.Context)

// RedirectToLogin はLoginRedirectorを実装する。
func (f LoginRedirectorFunc) RedirectToLogin(ctx context.Context) {
	f(ctx)
}

// AuthTransport はリクエストにBearerトークンを付与し、
// 401応答時にトークンを1回だけ更新して再送するトランスポート。
type AuthTransport struct {
	base     http.RoundTripper
	session  SessionManager
	redirect LoginRedirector
	metrics  metrics.MetricsCollector
}

// NewAuthTransport はAuthTransportを生成する。
// redirectとcollectorはnilでもよい。
func NewAuthTransport(base http.RoundTripper, session SessionManager, redirect LoginRedirector, collector metrics.MetricsCollector) *AuthTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthTransport{
		base:     base,
		session:  session,
		redirect: redirect,
		metrics:  collector,
	}
}

// WithAuth はChainで使うためのラッパーを返す。
func WithAuth(session SessionManager, redirect LoginRedirector, collector metrics.MetricsCollector) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		return NewAuthTransport(next, session, redirect, collector)
	}
}

// RoundTrip はhttp.RoundTripperを実装する。
// 再送は元のリクエストにつき最大1回で、再送後の401はそのまま呼び出し元に返す。
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	first, err := t.send(req)
	if err != nil {
		return nil, err
	}
	if first.StatusCode != http.StatusUnauthorized {
		return first, nil
	}

	ctx := req.Context()

	// 本文を再送できないリクエストは更新・再送しない
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		slog.Warn("unauthorized response for non-replayable request",
			slog.String("method", req.Method),
			slog.String("url", req.URL.Redacted()),
		)
		return first, nil
	}

	// 1. トークンを1回だけ更新
	if err := t.session.RefreshToken(ctx); err != nil {
		t.metrics.RecordTokenRefresh(false)
		slog.Warn("token refresh after 401 failed, terminating session",
			slog.String("url", req.URL.Redacted()),
			slog.String("error", err.Error()),
		)
		t.terminate(ctx)
		return first, nil
	}
	t.metrics.RecordTokenRefresh(true)

	retry, err := cloneForRetry(req)
	if err != nil {
		return first, nil
	}
	drainAndClose(first.Body)

	// 2. 新しいトークンで1回だけ再送
	second, err := t.send(retry)
	if err != nil {
		return nil, err
	}
	if second.StatusCode == http.StatusUnauthorized {
		slog.Warn("retried request still unauthorized, terminating session",
			slog.String("url", req.URL.Redacted()),
		)
		t.terminate(ctx)
	}
	return second, nil
}

// send はトークンを付与してリクエストを送信する。
// RoundTripperの規約に従い、元のリクエストは変更しない。
func (t *AuthTransport) send(req *http.Request) (*http.Response, error) {
	token := t.session.IDToken()
	if token == "" {
		return t.base.RoundTrip(req)
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(authed)
}

// terminate はセッションを終了し、ログイン画面へ誘導する。
func (t *AuthTransport) terminate(ctx context.Context) {
	t.metrics.RecordSessionTerminated()
	if err := t.session.Logout(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("logout after authentication failure failed", slog.String("error", err.Error()))
	}
	if t.redirect != nil {
		t.redirect.RedirectToLogin(ctx)
	}
}

// cloneForRetry は再送用にリクエストを複製し、本文を巻き戻す。
func cloneForRetry(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	body.Close()
}
