// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthErrorKind はIdPエラーを正規化した種別を表す。
// UIはこの種別に対応する固定メッセージを表示する。
type AuthErrorKind int

const (
	// AuthErrorUnknown は分類できないIdPエラー。
	AuthErrorUnknown AuthErrorKind = iota
	// AuthErrorInvalidCredential はメールアドレスまたはパスワードの誤り。
	AuthErrorInvalidCredential
	// AuthErrorInvalidEmail はメールアドレス形式の誤り。
	AuthErrorInvalidEmail
	// AuthErrorEmailInUse は登録済みメールアドレス。
	AuthErrorEmailInUse
	// AuthErrorWeakPassword は強度不足のパスワード。
	AuthErrorWeakPassword
	// AuthErrorTooManyRequests はIdP側のレート制限。
	AuthErrorTooManyRequests
	// AuthErrorUserDisabled は無効化されたアカウント。
	AuthErrorUserDisabled
	// AuthErrorNetwork はIdPへの通信失敗。
	AuthErrorNetwork
	// AuthErrorExpiredActionCode は期限切れの確認リンク。
	AuthErrorExpiredActionCode
	// AuthErrorInvalidActionCode は無効な確認リンク。
	AuthErrorInvalidActionCode
	// AuthErrorNoCurrentUser はサインインが必要な操作をサインアウト状態で呼んだ場合。
	AuthErrorNoCurrentUser
)

var authErrorKindNames = map[AuthErrorKind]string{
	AuthErrorUnknown:           "unknown",
	AuthErrorInvalidCredential: "invalid-credential",
	AuthErrorInvalidEmail:      "invalid-email",
	AuthErrorEmailInUse:        "email-already-in-use",
	AuthErrorWeakPassword:      "weak-password",
	AuthErrorTooManyRequests:   "too-many-requests",
	AuthErrorUserDisabled:      "user-disabled",
	AuthErrorNetwork:           "network-request-failed",
	AuthErrorExpiredActionCode: "expired-action-code",
	AuthErrorInvalidActionCode: "invalid-action-code",
	AuthErrorNoCurrentUser:     "no-current-user",
}

// String は種別のコード表現を返す。
func (k AuthErrorKind) String() string {
	if name, ok := authErrorKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// authErrorMessages はUI向けの固定メッセージテーブル。
var authErrorMessages = map[AuthErrorKind]string{
	AuthErrorInvalidCredential: "Invalid email or password",
	AuthErrorInvalidEmail:      "Invalid email address",
	AuthErrorEmailInUse:        "This email is already registered",
	AuthErrorWeakPassword:      "Password is too weak. Please use at least 6 characters",
	AuthErrorTooManyRequests:   "Too many failed attempts. Please try again later",
	AuthErrorUserDisabled:      "This account has been disabled",
	AuthErrorNetwork:           "Network error. Please check your connection",
	AuthErrorExpiredActionCode: "This verification link has expired",
	AuthErrorInvalidActionCode: "This verification link is invalid",
	AuthErrorNoCurrentUser:     "No user is currently signed in",
}

const defaultUnknownMessage = "An unknown error occurred. Please try again."

// AuthError はIdP操作の失敗を表す。
// Codeにはプロバイダーが返した生のエラーコードを保持する。
type AuthError struct {
	Kind    AuthErrorKind
	Code    string
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap は元のエラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError は種別に対応するメッセージを持つAuthErrorを生成する。
func NewAuthError(kind AuthErrorKind, code string, err error) *AuthError {
	return &AuthError{
		Kind:    kind,
		Code:    code,
		Message: AuthErrorMessage(kind, code),
		Err:     err,
	}
}

// AuthErrorMessage は種別に対応するUI向けメッセージを返す。
// 未知の種別の場合はプロバイダーのコードを含むメッセージを返す。
func AuthErrorMessage(kind AuthErrorKind, code string) string {
	if msg, ok := authErrorMessages[kind]; ok {
		return msg
	}
	if code != "" {
		return "An error occurred: " + code
	}
	return defaultUnknownMessage
}

// UserMessage は任意のエラーからUI向けメッセージを返す。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return defaultUnknownMessage
}

// 下流サービスのHTTPステータスに対応するセンチネルエラー。
var (
	ErrNotFound     = errors.New("resource not found")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotAuthenticated はサインイン中のユーザーが必要な操作で未認証だった場合のエラー。
	ErrNotAuthenticated = errors.New("user not authenticated")
)

// StatusError は下流サービスが2xx以外を返したことを表す。
// errors.Isで ErrNotFound / ErrBadRequest / ErrUnauthorized と照合できる。
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.StatusCode)
}

// Is はステータスコードに対応するセンチネルと一致するかを返す。
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// ErrorKind はストア境界でのエラー分類。
type ErrorKind int

const (
	// ErrorKindNone はエラーなし。
	ErrorKindNone ErrorKind = iota
	// ErrorKindNotFound は404。
	ErrorKindNotFound
	// ErrorKindBadRequest は400。
	ErrorKindBadRequest
	// ErrorKindUnauthorized は401（リトライ後も失敗したもの）。
	ErrorKindUnauthorized
	// ErrorKindUnhandled はその他のステータスまたは通信エラー。
	ErrorKindUnhandled
)

// ClassifyError はエラーをストア境界の分類に変換する。
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.Is(err, ErrNotFound):
		return ErrorKindNotFound
	case errors.Is(err, ErrBadRequest):
		return ErrorKindBadRequest
	case errors.Is(err, ErrUnauthorized):
		return ErrorKindUnauthorized
	default:
		return ErrorKindUnhandled
	}
}

// IsNotFound はエラーが404由来かを返す。
func IsNotFound(err error) bool {
	return ClassifyError(err) == ErrorKindNotFound
}

// IsNotFoundOrBadRequest はエラーが404または400由来かを返す。
func IsNotFoundOrBadRequest(err error) bool {
	kind := ClassifyError(err)
	return kind == ErrorKindNotFound || kind == ErrorKindBadRequest
}
