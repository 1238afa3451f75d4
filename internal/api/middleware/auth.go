package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rohits-web03/collab/internal/metrics"
	"github.com/rohits-web03/collab/internal/models"
	"github.com/rohits-web03/collab/internal/repositories"
	"github.com/rohits-web03/collab/internal/session"
	"github.com/rohits-web03/collab/internal/utils"
)

type contextKey string

const userKey contextKey = "user"

// ErrUnauthenticated means the request carries no usable session: no token,
// a token that fails verification, or a subject that no longer exists.
var ErrUnauthenticated = errors.New("unauthenticated")

type TokenVerifier interface {
	Verify(token string) (session.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Gate verifies the session token on protected requests and hydrates the
// acting user from the store.
type Gate struct {
	verifier TokenVerifier
	users    UserFinder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewGate(verifier TokenVerifier, users UserFinder, logger *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{verifier: verifier, users: users, logger: logger, metrics: m}
}

// Authenticate resolves the user behind the request's session token. Errors
// other than ErrUnauthenticated are store failures.
func (g *Gate) Authenticate(r *http.Request) (*models.User, error) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	user, err := g.users.FindByID(r.Context(), claims.SubjectID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: subject %s no longer exists", ErrUnauthenticated, claims.SubjectID)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RequireAuth rejects unauthenticated API requests with a JSON 401.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		user, err := g.Authenticate(r)
		if errors.Is(err, ErrUnauthenticated) {
			g.metrics.IncSessionRejected()
			g.logger.DebugContext(r.Context(), "unauthorized request", "path", r.URL.Path, "error", err)
			utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
				Success: false,
				Message: "Unauthorized",
			})
			return
		}
		if err != nil {
			g.logger.ErrorContext(r.Context(), "session lookup failed", "error", err)
			utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
				Success: false,
				Message: "Database error",
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// tokenFromRequest prefers the session cookie and falls back to a bearer
// Authorization header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
