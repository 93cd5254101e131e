package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenRefreshMargin は有効期限前にトークンを更新する猶予。
const tokenRefreshMargin = 5 * time.Minute

// tokenExpiry はIDトークン（JWT）のexpクレームを返す。
// 署名はIdP側で検証されるため、ここでは検証しない。
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// needsRefresh はトークンが期限切れ間近かを返す。
func needsRefresh(exp, now time.Time) bool {
	if exp.IsZero() {
		return true
	}
	return !now.Add(tokenRefreshMargin).Before(exp)
}
