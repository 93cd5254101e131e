package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/storage"
)

const (
	defaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	defaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// IdentityToolkitConfig はIdentity Toolkitプロバイダーの設定。
type IdentityToolkitConfig struct {
	APIKey   string
	TenantID string

	// テスト用にオーバーライド可能なURL
	IdentityToolkitURL string
	SecureTokenURL     string

	// SessionMaxAge は永続化した認証レコードの有効期間。
	SessionMaxAge time.Duration
	HTTPClient    *http.Client
}

// storedAuth は永続ストレージに保存する認証レコード。
type storedAuth struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         *model.Identity `json:"user"`
	Exp          int64           `json:"exp"`
}

// IdentityToolkitProvider はIdentity Toolkit REST APIによる認証を提供する。
// IDトークン・リフレッシュトークンを保持するトークンストアを兼ねる。
type IdentityToolkitProvider struct {
	config IdentityToolkitConfig
	client *http.Client
	store  *storage.TTLStore
	now    func() time.Time

	mu           sync.Mutex
	user         *model.Identity
	idToken      string
	refreshToken string
	tokenExp     time.Time

	listenerMu  sync.Mutex
	listeners   map[int]func(*model.Identity)
	nextID      int
	restoreOnce sync.Once
}

// NewIdentityToolkitProvider はIdentityToolkitProviderを生成する。
// storeがnilの場合は認証状態を永続化しない。
func NewIdentityToolkitProvider(config IdentityToolkitConfig, store *storage.TTLStore) *IdentityToolkitProvider {
	if config.IdentityToolkitURL == "" {
		config.IdentityToolkitURL = defaultIdentityToolkitURL
	}
	if config.SecureTokenURL == "" {
		config.SecureTokenURL = defaultSecureTokenURL
	}
	config.IdentityToolkitURL = strings.TrimRight(config.IdentityToolkitURL, "/")
	config.SecureTokenURL = strings.TrimRight(config.SecureTokenURL, "/")
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 24 * time.Hour
	}

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &IdentityToolkitProvider{
		config:    config,
		client:    client,
		store:     store,
		now:       time.Now,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// identityToolkitError はIdentity Toolkitのエラーレスポンス。
type identityToolkitError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// authResponse はsignUp / signInWithPasswordのレスポンス。
type authResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

// lookupResponse はaccounts:lookupのレスポンス。
type lookupResponse struct {
	Users []struct {
		LocalID       string `json:"localId"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		DisplayName   string `json:"displayName"`
		PhotoURL      string `json:"photoUrl"`
		TenantID      string `json:"tenantId"`
	} `json:"users"`
}

// refreshResponse はsecuretokenのトークン更新レスポンス。
type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// SignUp はアカウントを作成しサインインする。
func (p *IdentityToolkitProvider) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	return p.authenticate(ctx, "accounts:signUp", email, password)
}

// SignIn はメールアドレスとパスワードで認証する。
func (p *IdentityToolkitProvider) SignIn(ctx context.Context, email, password string) (*model.Identity, error) {
	return p.authenticate(ctx, "accounts:signInWithPassword", email, password)
}

func (p *IdentityToolkitProvider) authenticate(ctx context.Context, endpoint, email, password string) (*model.Identity, error) {
	body := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	if p.config.TenantID != "" {
		body["tenantId"] = p.config.TenantID
	}

	var resp authResponse
	if err := p.postIdentityToolkit(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		return nil, model.NewAuthError(model.AuthErrorUnknown, "", fmt.Errorf("empty id token in %s response", endpoint))
	}

	user, err := p.lookup(ctx, resp.IDToken)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.user = user
	p.setTokensLocked(resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	p.mu.Unlock()

	p.persist(ctx)
	p.notify(user)

	return cloneIdentity(user), nil
}

// SignOut はトークンと永続化した認証レコードを破棄する。
func (p *IdentityToolkitProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.user = nil
	p.idToken = ""
	p.refreshToken = ""
	p.tokenExp = time.Time{}
	p.mu.Unlock()

	var err error
	if p.store != nil {
		err = p.store.Remove(ctx, storage.AuthKey)
	}

	p.notify(nil)
	return err
}

// UpdateProfile は表示名を更新する。
func (p *IdentityToolkitProvider) UpdateProfile(ctx context.Context, displayName string) error {
	token, err := p.IDToken(ctx, false)
	if err != nil {
		return err
	}

	var resp struct {
		DisplayName  string `json:"displayName"`
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    string `json:"expiresIn"`
	}
	body := map[string]any{
		"idToken":           token,
		"displayName":       displayName,
		"returnSecureToken": true,
	}
	if err := p.postIdentityToolkit(ctx, "accounts:update", body, &resp); err != nil {
		return err
	}

	p.mu.Lock()
	if p.user != nil {
		p.user.DisplayName = resp.DisplayName
	}
	if resp.IDToken != "" {
		p.setTokensLocked(resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	}
	p.mu.Unlock()

	p.persist(ctx)
	return nil
}

// Reload はIdPからアカウント情報を再取得する。
func (p *IdentityToolkitProvider) Reload(ctx context.Context) (*model.Identity, error) {
	token, err := p.IDToken(ctx, false)
	if err != nil {
		return nil, err
	}

	user, err := p.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.user == nil {
		// 取得中にサインアウトされた
		p.mu.Unlock()
		return nil, model.NewAuthError(model.AuthErrorNoCurrentUser, "", nil)
	}
	p.user = user
	p.mu.Unlock()

	p.persist(ctx)
	return cloneIdentity(user), nil
}

// IDToken はIDトークンを返す。
// キャッシュしたトークンが期限切れ間近、またはforceRefreshの場合はリフレッシュトークンで更新する。
func (p *IdentityToolkitProvider) IDToken(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if p.user == nil || p.refreshToken == "" {
		p.mu.Unlock()
		return "", model.NewAuthError(model.AuthErrorNoCurrentUser, "", nil)
	}
	if !forceRefresh && p.idToken != "" && !needsRefresh(p.tokenExp, p.now()) {
		token := p.idToken
		p.mu.Unlock()
		return token, nil
	}
	refreshToken := p.refreshToken
	p.mu.Unlock()

	resp, err := p.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return "", model.NewAuthError(model.AuthErrorNoCurrentUser, "", nil)
	}
	p.setTokensLocked(resp.IDToken, resp.RefreshToken, resp.ExpiresIn)
	token := p.idToken
	p.mu.Unlock()

	p.persist(ctx)
	slog.Debug("id token refreshed")
	return token, nil
}

// SendEmailVerification は確認メールを送信する。
func (p *IdentityToolkitProvider) SendEmailVerification(ctx context.Context) error {
	token, err := p.IDToken(ctx, false)
	if err != nil {
		return err
	}

	body := map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     token,
	}
	if p.config.TenantID != "" {
		body["tenantId"] = p.config.TenantID
	}
	return p.postIdentityToolkit(ctx, "accounts:sendOobCode", body, nil)
}

// CurrentUser はサインイン中のユーザーを返す。
func (p *IdentityToolkitProvider) CurrentUser() *model.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return cloneIdentity(p.user)
}

// OnAuthStateChanged は認証状態の変化を購読する。
// 初回の通知は永続化した認証レコードの復元後に非同期で行う。
func (p *IdentityToolkitProvider) OnAuthStateChanged(fn func(*model.Identity)) func() {
	p.listenerMu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.listenerMu.Unlock()

	go func() {
		p.restoreOnce.Do(func() { p.restore(context.Background()) })

		p.listenerMu.Lock()
		_, active := p.listeners[id]
		p.listenerMu.Unlock()
		if active {
			fn(p.CurrentUser())
		}
	}()

	return func() {
		p.listenerMu.Lock()
		delete(p.listeners, id)
		p.listenerMu.Unlock()
	}
}

// restore は永続ストレージから認証レコードを読み込む。
// 期限切れ・破損したレコードは未サインインとして扱う。
func (p *IdentityToolkitProvider) restore(ctx context.Context) {
	if p.store == nil {
		return
	}

	var rec storedAuth
	ok, err := p.store.GetWithExpiry(ctx, storage.AuthKey, &rec)
	if err != nil {
		slog.Warn("failed to restore auth state", slog.String("error", err.Error()))
		return
	}
	if !ok || rec.User == nil || rec.RefreshToken == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// 復元前にサインインが完了していれば上書きしない
	if p.user != nil {
		return
	}
	p.user = rec.User
	p.idToken = rec.Token
	p.refreshToken = rec.RefreshToken
	if exp, ok := tokenExpiry(rec.Token); ok {
		p.tokenExp = exp
	} else {
		p.tokenExp = time.Time{}
	}

	slog.Info("auth state restored", slog.String("uid", rec.User.UID))
}

// persist は現在の認証状態を永続ストレージに保存する。
func (p *IdentityToolkitProvider) persist(ctx context.Context) {
	if p.store == nil {
		return
	}

	p.mu.Lock()
	if p.user == nil {
		p.mu.Unlock()
		return
	}
	rec := storedAuth{
		Token:        p.idToken,
		RefreshToken: p.refreshToken,
		User:         cloneIdentity(p.user),
		Exp:          p.now().Add(p.config.SessionMaxAge).UnixMilli(),
	}
	p.mu.Unlock()

	if err := p.store.SetWithExpiry(ctx, storage.AuthKey, rec, p.config.SessionMaxAge); err != nil {
		slog.Warn("failed to persist auth state", slog.String("error", err.Error()))
	}
}

func (p *IdentityToolkitProvider) notify(user *model.Identity) {
	p.listenerMu.Lock()
	fns := make([]func(*model.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.listenerMu.Unlock()

	for _, fn := range fns {
		fn(cloneIdentity(user))
	}
}

// setTokensLocked はトークンを更新する。p.muを保持して呼ぶこと。
func (p *IdentityToolkitProvider) setTokensLocked(idToken, refreshToken, expiresIn string) {
	p.idToken = idToken
	if refreshToken != "" {
		p.refreshToken = refreshToken
	}
	if exp, ok := tokenExpiry(idToken); ok {
		p.tokenExp = exp
		return
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		p.tokenExp = p.now().Add(time.Duration(secs) * time.Second)
		return
	}
	p.tokenExp = time.Time{}
}

// lookup はIDトークンに対応するアカウント情報を取得する。
func (p *IdentityToolkitProvider) lookup(ctx context.Context, idToken string) (*model.Identity, error) {
	var resp lookupResponse
	if err := p.postIdentityToolkit(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, MapProviderError("USER_NOT_FOUND", fmt.Errorf("empty users in lookup response"))
	}

	u := resp.Users[0]
	return &model.Identity{
		UID:           u.LocalID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		PhotoURL:      u.PhotoURL,
		TenantID:      u.TenantID,
	}, nil
}

// exchangeRefreshToken はリフレッシュトークンで新しいIDトークンを取得する。
func (p *IdentityToolkitProvider) exchangeRefreshToken(ctx context.Context, refreshToken string) (*refreshResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	endpoint := p.config.SecureTokenURL + "/token?" + url.Values{"key": {p.config.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := p.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.IDToken == "" {
		return nil, model.NewAuthError(model.AuthErrorUnknown, "", fmt.Errorf("empty id token in refresh response"))
	}
	return &resp, nil
}

// postIdentityToolkit はIdentity ToolkitのエンドポイントにJSONをPOSTする。
func (p *IdentityToolkitProvider) postIdentityToolkit(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", endpoint, err)
	}

	u := p.config.IdentityToolkitURL + "/" + endpoint + "?" + url.Values{"key": {p.config.APIKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req, out)
}

// do はリクエストを送信し、エラーレスポンスをAuthErrorに変換する。
func (p *IdentityToolkitProvider) do(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return mapTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr identityToolkitError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return MapProviderError(apiErr.Error.Message,
				fmt.Errorf("identity provider returned status %d: %s", resp.StatusCode, apiErr.Error.Message))
		}
		return model.NewAuthError(model.AuthErrorUnknown, strconv.Itoa(resp.StatusCode),
			fmt.Errorf("identity provider returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewAuthError(model.AuthErrorUnknown, "", fmt.Errorf("failed to parse identity provider response: %w", err))
	}
	return nil
}

func cloneIdentity(u *model.Identity) *model.Identity {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// compile-time interface check
var _ Provider = (*IdentityToolkitProvider)(nil)
