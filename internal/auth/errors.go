package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/hitoshi/tripplanner/internal/model"
)

// providerErrorKinds はIdentity Toolkitのエラーコードと種別の対応表。
var providerErrorKinds = map[string]model.AuthErrorKind{
	"EMAIL_EXISTS":                model.AuthErrorEmailInUse,
	"INVALID_PASSWORD":            model.AuthErrorInvalidCredential,
	"INVALID_LOGIN_CREDENTIALS":   model.AuthErrorInvalidCredential,
	"EMAIL_NOT_FOUND":             model.AuthErrorInvalidCredential,
	"USER_NOT_FOUND":              model.AuthErrorInvalidCredential,
	"WEAK_PASSWORD":               model.AuthErrorWeakPassword,
	"INVALID_EMAIL":               model.AuthErrorInvalidEmail,
	"MISSING_EMAIL":               model.AuthErrorInvalidEmail,
	"TOO_MANY_ATTEMPTS_TRY_LATER": model.AuthErrorTooManyRequests,
	"USER_DISABLED":               model.AuthErrorUserDisabled,
	"EXPIRED_OOB_CODE":            model.AuthErrorExpiredActionCode,
	"INVALID_OOB_CODE":            model.AuthErrorInvalidActionCode,
}

// MapProviderError はIdPのエラーコードをAuthErrorに変換する。
// "WEAK_PASSWORD : Password should be ..." のような詳細付きコードは先頭部分で判定する。
func MapProviderError(code string, err error) *model.AuthError {
	code = strings.TrimSpace(code)
	base := code
	if i := strings.Index(base, " : "); i >= 0 {
		base = base[:i]
	}

	if kind, ok := providerErrorKinds[base]; ok {
		return model.NewAuthError(kind, base, err)
	}
	return model.NewAuthError(model.AuthErrorUnknown, base, err)
}

// mapTransportError はIdPへのリクエスト送信失敗をAuthErrorに変換する。
// コンテキストのキャンセルは通信エラーとして扱わない。
func mapTransportError(err error) *model.AuthError {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.NewAuthError(model.AuthErrorUnknown, "", err)
	}
	return model.NewAuthError(model.AuthErrorNetwork, model.AuthErrorNetwork.String(), err)
}

// asAuthError は任意のエラーをAuthErrorに正規化する。
func asAuthError(err error) *model.AuthError {
	if err == nil {
		return nil
	}
	var authErr *model.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	return model.NewAuthError(model.AuthErrorUnknown, "", err)
}
