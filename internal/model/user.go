// Package model はドメインモデルを定義する。
package model

// Identity は外部IdPが管理するユーザーレコードを表す。
// セッションは読み取り専用の参照として保持する。
type Identity struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName,omitempty"`
	PhotoURL      string `json:"photoUrl,omitempty"`
	TenantID      string `json:"tenantId,omitempty"`
}

// Session はクライアント側の認証状態のスナップショット。
// IDTokenが空でないのはUserが非nilの場合に限る。
type Session struct {
	User        *Identity
	IDToken     string
	Loading     bool
	Error       string
	Initialized bool
}

// Authenticated はサインイン済みかを返す。
func (s Session) Authenticated() bool {
	return s.User != nil && s.IDToken != ""
}

// BackendUser はバックエンドのユーザー登録APIで扱うユーザー。
type BackendUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
