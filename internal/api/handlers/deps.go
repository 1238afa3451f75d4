package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rohits-web03/collab/internal/identity"
	"github.com/rohits-web03/collab/internal/models"
)

//go:generate mockgen -source=deps.go -destination=mocks/mock_deps.go -package=mocks

// IdentityProvider runs the external OAuth handshake and returns the profile
// it vouches for.
type IdentityProvider interface {
	AuthCodeURL(state, codeChallenge string) string
	Exchange(ctx context.Context, code, codeVerifier string) (identity.ExternalProfile, error)
}

// AvatarStore keeps uploaded profile pictures and returns their public URL.
type AvatarStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// SessionIssuer mints session tokens and hands them to the browser.
// *session.Issuer is the production implementation.
type SessionIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
	SetCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool)
}
