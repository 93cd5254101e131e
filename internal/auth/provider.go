// Package auth は外部IdPとのセッション管理、トークン保持を提供する。
package auth

import (
	"context"

	"github.com/hitoshi/tripplanner/internal/model"
)

// Provider は外部IdPのクライアントインターフェース。
// 将来的に別のIdPに差し替えるための抽象化。
type Provider interface {
	// SignUp はアカウントを作成しサインインする。
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)
	// SignIn はメールアドレスとパスワードで認証する。
	SignIn(ctx context.Context, email, password string) (*model.Identity, error)
	// SignOut はIdPセッションを破棄する。
	SignOut(ctx context.Context) error
	// UpdateProfile は表示名を更新する。
	UpdateProfile(ctx context.Context, displayName string) error
	// Reload はIdPからアカウント情報を再取得する。
	Reload(ctx context.Context) (*model.Identity, error)
	// IDToken はIDトークンを返す。forceRefreshがtrueの場合はキャッシュを使わない。
	IDToken(ctx context.Context, forceRefresh bool) (string, error)
	// SendEmailVerification は確認メールを送信する。
	SendEmailVerification(ctx context.Context) error
	// CurrentUser はサインイン中のユーザーを返す。未サインインの場合はnil。
	CurrentUser() *model.Identity
	// OnAuthStateChanged は認証状態の変化を購読する。
	// 登録直後に現在の状態で1回、以後サインイン/サインアウトのたびに呼ばれる。
	OnAuthStateChanged(fn func(*model.Identity)) (unsubscribe func())
}

// ImageFetcher はプロフィール画像を取得する。
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
