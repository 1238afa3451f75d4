package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	stateTTL      = 10 * time.Minute
	stateAudience = "oauth-state"

	pkceCookieName = "oauth_pkce"
	pkceCookiePath = "/api/v1/auth/google"
)

var errInvalidState = errors.New("invalid oauth state")

// generateState returns a signed, short-lived state parameter and the nonce
// it carries. The nonce must be consumed exactly once on callback.
func (h *AuthHandler) generateState() (state string, nonce string, err error) {
	nonce = uuid.NewString()
	now := h.now()
	claims := jwt.RegisteredClaims{
		ID:        nonce,
		Audience:  jwt.ClaimStrings{stateAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
	}
	state, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.stateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state: %w", err)
	}
	return state, nonce, nil
}

// decodeState verifies the state's signature, audience and expiry and
// returns its nonce.
func (h *AuthHandler) decodeState(state string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		return h.stateKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidState, err)
	}
	if claims.ID == "" {
		return "", fmt.Errorf("%w: missing nonce", errInvalidState)
	}
	return claims.ID, nil
}

func (h *AuthHandler) setPKCECookie(w http.ResponseWriter, verifier string) {
	http.SetCookie(w, &http.Cookie{
		Name:     pkceCookieName,
		Value:    verifier,
		Path:     pkceCookiePath,
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// takePKCEVerifier reads the verifier and expires its cookie.
func (h *AuthHandler) takePKCEVerifier(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(pkceCookieName)
	http.SetCookie(w, &http.Cookie{
		Name:     pkceCookieName,
		Value:    "",
		Path:     pkceCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		return ""
	}
	return c.Value
}
