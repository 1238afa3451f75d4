package session

import (
	"net/http"
	"time"
)

const CookieName = "token"

// SetCookie hands a token from Issue to the browser as an HttpOnly,
// SameSite=Lax cookie. MaxAge is measured on the issuer's clock so it matches
// the token's own expiry. secure should be on in production.
func (i *Issuer) SetCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	maxAge := int(expiresAt.Sub(i.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie overwrites the token with an empty, already expired value.
// The token itself stays valid until its expiry; there is no revocation.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
