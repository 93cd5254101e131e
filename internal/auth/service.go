package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/storage"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）。0以下の場合は期限監視を行わない
}

// Service はクライアント側のセッション状態を管理する。
// IdPからの状態通知とユーザー操作の両方でセッションを更新する。
type Service struct {
	provider Provider
	images   ImageFetcher
	expiry   *storage.ExpiryTimer
	config   ServiceConfig
	now      func() time.Time

	mu           sync.RWMutex
	session      model.Session
	profileImage []byte

	listenOnce  sync.Once
	ready       chan struct{}
	readyOnce   sync.Once
	unsubscribe func()

	refreshGroup singleflight.Group
}

// NewService はServiceを生成する。imagesがnilの場合はプロフィール画像を取得しない。
func NewService(provider Provider, images ImageFetcher, config ServiceConfig) *Service {
	return &Service{
		provider: provider,
		images:   images,
		expiry:   storage.NewExpiryTimer(),
		config:   config,
		now:      time.Now,
		ready:    make(chan struct{}),
	}
}

// Initialize はIdPの状態通知の購読を開始し、最初の通知を受け取るまで待機する。
// 購読はプロセスで1回だけ登録され、2回目以降の呼び出しは待機のみ行う。
func (s *Service) Initialize(ctx context.Context) error {
	s.listenOnce.Do(func() {
		s.unsubscribe = s.provider.OnAuthStateChanged(s.handleAuthStateChanged)
	})

	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close は状態通知の購読と期限監視を停止する。
func (s *Service) Close() {
	s.expiry.Cancel()
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// handleAuthStateChanged はIdPからの状態通知を処理する。
// トークン取得に失敗した場合は未サインインとして扱う。
func (s *Service) handleAuthStateChanged(user *model.Identity) {
	if user != nil {
		token, err := s.provider.IDToken(context.Background(), false)

		s.mu.Lock()
		if err != nil {
			s.session.User = nil
			s.session.IDToken = ""
			s.session.Error = model.UserMessage(asAuthError(err))
			slog.Warn("failed to fetch id token on auth state change",
				slog.String("uid", user.UID),
				slog.String("error", err.Error()),
			)
		} else {
			s.session.User = user
			s.session.IDToken = token
		}
		s.session.Initialized = true
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.session.User = nil
		s.session.IDToken = ""
		s.profileImage = nil
		s.session.Initialized = true
		s.mu.Unlock()
	}

	s.readyOnce.Do(func() { close(s.ready) })
}

// Register はアカウントを作成し、表示名を設定してセッションを開始する。
func (s *Service) Register(ctx context.Context, email, password, displayName string) error {
	s.beginOperation()

	err := s.register(ctx, email, password, displayName)
	s.endOperation(err)
	if err != nil {
		return asAuthError(err)
	}

	slog.Info("user registered", slog.String("email", email))
	return nil
}

func (s *Service) register(ctx context.Context, email, password, displayName string) error {
	if _, err := s.provider.SignUp(ctx, email, password); err != nil {
		return err
	}
	if displayName != "" {
		if err := s.provider.UpdateProfile(ctx, displayName); err != nil {
			return err
		}
	}
	user, err := s.provider.Reload(ctx)
	if err != nil {
		return err
	}
	token, err := s.provider.IDToken(ctx, false)
	if err != nil {
		return err
	}

	s.setSignedIn(user, token)
	s.afterSignIn(ctx, user)
	return nil
}

// Login はメールアドレスとパスワードでサインインする。
func (s *Service) Login(ctx context.Context, email, password string) error {
	s.beginOperation()

	err := s.login(ctx, email, password)
	s.endOperation(err)
	if err != nil {
		return asAuthError(err)
	}

	slog.Info("user logged in", slog.String("email", email))
	return nil
}

func (s *Service) login(ctx context.Context, email, password string) error {
	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	token, err := s.provider.IDToken(ctx, false)
	if err != nil {
		return err
	}

	s.setSignedIn(user, token)
	s.afterSignIn(ctx, user)
	return nil
}

// Logout はIdPセッションを破棄し、ユーザー・トークン・プロフィール画像をクリアする。
// IdP側の破棄に失敗してもローカルの状態はクリアする。
func (s *Service) Logout(ctx context.Context) error {
	s.expiry.Cancel()

	err := s.provider.SignOut(ctx)

	s.mu.Lock()
	s.session.User = nil
	s.session.IDToken = ""
	s.profileImage = nil
	s.mu.Unlock()

	if err != nil {
		slog.Warn("failed to sign out from identity provider", slog.String("error", err.Error()))
		return asAuthError(err)
	}

	slog.Info("user logged out")
	return nil
}

// RefreshToken はキャッシュを使わずにトークンを更新する。
// 未サインインの場合は何もしない。同時に呼ばれた場合は1回の更新を共有する。
func (s *Service) RefreshToken(ctx context.Context) error {
	s.mu.RLock()
	signedIn := s.session.User != nil
	s.mu.RUnlock()
	if !signedIn {
		return nil
	}

	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		token, err := s.provider.IDToken(ctx, true)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		// 更新中にサインアウトされた場合はトークンを戻さない
		if s.session.User != nil {
			s.session.IDToken = token
		}
		s.mu.Unlock()
		return token, nil
	})
	if err != nil {
		slog.Warn("failed to refresh id token", slog.String("error", err.Error()))
		return asAuthError(err)
	}
	return nil
}

// SendVerificationEmail は確認メールを送信する。
// 未サインインの場合はエラー、確認済みの場合は何もしない。
func (s *Service) SendVerificationEmail(ctx context.Context) error {
	s.mu.RLock()
	user := s.session.User
	s.mu.RUnlock()

	if user == nil {
		return model.NewAuthError(model.AuthErrorNoCurrentUser, "", nil)
	}
	if user.EmailVerified {
		return nil
	}

	if err := s.provider.SendEmailVerification(ctx); err != nil {
		return asAuthError(err)
	}

	slog.Info("verification email sent", slog.String("email", user.Email))
	return nil
}

// ReloadUser はIdPからアカウント情報を再取得する。
// 未サインインの場合は何もしない。
func (s *Service) ReloadUser(ctx context.Context) error {
	s.mu.RLock()
	signedIn := s.session.User != nil
	s.mu.RUnlock()
	if !signedIn {
		return nil
	}

	user, err := s.provider.Reload(ctx)
	if err != nil {
		return asAuthError(err)
	}

	s.mu.Lock()
	if s.session.User != nil {
		s.session.User = user
	}
	s.mu.Unlock()
	return nil
}

// Session は現在のセッションのスナップショットを返す。
func (s *Service) Session() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.session
	snap.User = cloneIdentity(s.session.User)
	return snap
}

// IDToken は現在のIDトークンを返す。未サインインの場合は空文字列。
func (s *Service) IDToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IDToken
}

// IsAuthenticated はサインイン済みかを返す。
func (s *Service) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Authenticated()
}

// Email はサインイン中のユーザーのメールアドレスを返す。
func (s *Service) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.User == nil {
		return ""
	}
	return s.session.User.Email
}

// ProfileImage はサインイン時に取得したプロフィール画像を返す。
func (s *Service) ProfileImage() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profileImage
}

func (s *Service) beginOperation() {
	s.mu.Lock()
	s.session.Loading = true
	s.session.Error = ""
	s.mu.Unlock()
}

// endOperation は処理中フラグを戻し、失敗時はUI向けメッセージを記録する。
func (s *Service) endOperation(err error) {
	s.mu.Lock()
	s.session.Loading = false
	if err != nil {
		s.session.Error = model.UserMessage(asAuthError(err))
	}
	s.mu.Unlock()
}

func (s *Service) setSignedIn(user *model.Identity, token string) {
	s.mu.Lock()
	s.session.User = user
	s.session.IDToken = token
	s.mu.Unlock()
}

// afterSignIn はセッション期限の監視とプロフィール画像の取得を行う。
func (s *Service) afterSignIn(ctx context.Context, user *model.Identity) {
	if s.config.SessionMaxAge > 0 {
		exp := s.now().Add(time.Duration(s.config.SessionMaxAge) * time.Second)
		s.expiry.Schedule(exp, s.expireSession)
	}

	s.fetchProfileImage(ctx, user)
}

// expireSession はセッション期限到達時に強制ログアウトする。
func (s *Service) expireSession() {
	slog.Info("session expired, logging out")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Logout(ctx)
}

// fetchProfileImage はプロフィール画像を取得する。失敗はログのみ。
func (s *Service) fetchProfileImage(ctx context.Context, user *model.Identity) {
	if s.images == nil || user == nil || user.PhotoURL == "" {
		return
	}

	data, err := s.images.FetchImage(ctx, user.PhotoURL)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("failed to fetch profile image",
				slog.String("uid", user.UID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	s.mu.Lock()
	if s.session.User != nil && s.session.User.UID == user.UID {
		s.profileImage = data
	}
	s.mu.Unlock()
}
