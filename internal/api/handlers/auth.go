package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohits-web03/collab/internal/api/middleware"
	"github.com/rohits-web03/collab/internal/identity"
	"github.com/rohits-web03/collab/internal/metrics"
	"github.com/rohits-web03/collab/internal/models"
	"github.com/rohits-web03/collab/internal/repositories"
	"github.com/rohits-web03/collab/internal/session"
	"github.com/rohits-web03/collab/internal/utils"
)

type AuthHandlerConfig struct {
	Engine  *identity.Engine
	Issuer  SessionIssuer
	Gate    *middleware.Gate
	Google  IdentityProvider
	Nonces  repositories.NonceStore
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// StateKey signs OAuth state parameters.
	StateKey      string
	FrontendURL   string
	SecureCookies bool
	Now           func() time.Time
}

type AuthHandler struct {
	engine        *identity.Engine
	issuer        SessionIssuer
	gate          *middleware.Gate
	google        IdentityProvider
	nonces        repositories.NonceStore
	metrics       *metrics.Metrics
	logger        *slog.Logger
	stateKey      []byte
	frontendURL   string
	secureCookies bool
	now           func() time.Time
}

func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &AuthHandler{
		engine:        cfg.Engine,
		issuer:        cfg.Issuer,
		gate:          cfg.Gate,
		google:        cfg.Google,
		nonces:        cfg.Nonces,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		stateKey:      []byte(cfg.StateKey),
		frontendURL:   strings.TrimRight(cfg.FrontendURL, "/"),
		secureCookies: cfg.SecureCookies,
		now:           now,
	}
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login godoc
// @Summary Log in with email and password
// @Description Sets the session cookie. Accounts created with Google are rejected with a hint.
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body loginInput true "Credentials"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Invalid input or account uses Google"
// @Failure 401 {object} utils.Payload "Invalid email or password"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	if err := utils.DecodeJSON(w, r, &input); err != nil || input.Email == "" || input.Password == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	res, err := h.engine.LocalLogin(r.Context(), input.Email, input.Password)
	if err != nil {
		h.observeFailure(models.AuthMethodLocal, err)
		var wrong *identity.WrongMethodError
		switch {
		case errors.As(err, &wrong):
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: wrong.Hint,
			})
		case errors.Is(err, identity.ErrInvalidCredentials):
			utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
				Success: false,
				Message: "Invalid email or password",
			})
		default:
			h.logger.ErrorContext(r.Context(), "local login failed", "error", err)
			utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
				Success: false,
				Message: "Database error",
			})
		}
		return
	}

	if !h.startSession(w, r, res.User) {
		return
	}
	h.metrics.ObserveAttempt(string(models.AuthMethodLocal), metrics.OutcomeAccepted)

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged in successfully",
		Data:    res.User,
	})
}

// Logout godoc
// @Summary Log out
// @Description Overwrites the session cookie with an expired empty value.
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w, h.secureCookies)
	w.Header().Set("Cache-Control", "no-cache")

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Logged out successfully",
	})
}

// Status godoc
// @Summary Report whether the caller has a valid session
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.Payload
// @Router /api/v1/auth/status [get]
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	user, err := h.gate.Authenticate(r)
	if err != nil && !errors.Is(err, middleware.ErrUnauthenticated) {
		h.logger.ErrorContext(r.Context(), "session status lookup failed", "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database error",
		})
		return
	}

	data := map[string]any{"authenticated": user != nil}
	if user != nil {
		data["user"] = user
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Session status",
		Data:    data,
	})
}

// GoogleLogin godoc
// @Summary Start Google sign-in
// @Description Redirects to Google's consent screen with a signed state and a PKCE challenge.
// @Tags Auth
// @Success 307
// @Failure 503 {object} utils.Payload "Google sign-in is not configured"
// @Router /api/v1/auth/google [get]
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.googleUnavailable(w)
		return
	}

	state, nonce, err := h.generateState()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate oauth state", "error", err)
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}
	if err := h.nonces.Remember(r.Context(), nonce, stateTTL); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to store oauth nonce", "error", err)
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}

	verifier, err := utils.NewCodeVerifier()
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to generate pkce verifier", "error", err)
		http.Error(w, "Failed to generate OAuth state", http.StatusInternalServerError)
		return
	}
	h.setPKCECookie(w, verifier)

	http.Redirect(w, r, h.google.AuthCodeURL(state, utils.S256Challenge(verifier)), http.StatusTemporaryRedirect)
}

// GoogleCallback godoc
// @Summary Finish Google sign-in
// @Description New accounts are sent to /signup?google=true, returning ones to /me, rejected ones to /login?error=...
// @Tags Auth
// @Param state query string true "Signed state"
// @Param code query string true "Authorization code"
// @Success 307
// @Router /api/v1/auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.googleUnavailable(w)
		return
	}
	ctx := r.Context()
	verifier := h.takePKCEVerifier(w, r)

	if providerErr := r.FormValue("error"); providerErr != "" {
		h.logger.InfoContext(ctx, "google sign-in cancelled", "error", providerErr)
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}

	nonce, err := h.decodeState(r.FormValue("state"))
	if err != nil {
		h.logger.WarnContext(ctx, "rejected oauth state", "error", err)
		h.redirectLoginError(w, r, "Invalid OAuth state")
		return
	}
	fresh, err := h.nonces.Consume(ctx, nonce)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to consume oauth nonce", "error", err)
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}
	if !fresh {
		h.logger.WarnContext(ctx, "oauth state replayed or expired", "nonce", nonce)
		h.redirectLoginError(w, r, "Invalid OAuth state")
		return
	}

	code := r.FormValue("code")
	if code == "" || verifier == "" {
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}

	profile, err := h.google.Exchange(ctx, code, verifier)
	if err != nil {
		h.logger.ErrorContext(ctx, "google exchange failed", "error", err)
		h.metrics.ObserveAttempt(string(models.AuthMethodGoogle), metrics.OutcomeError)
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}

	res, err := h.engine.OAuthCallback(ctx, profile)
	if err != nil {
		h.observeFailure(models.AuthMethodGoogle, err)
		var wrong *identity.WrongMethodError
		if errors.As(err, &wrong) {
			h.redirectLoginError(w, r, wrong.Hint)
			return
		}
		h.logger.ErrorContext(ctx, "google reconciliation failed", "error", err)
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}

	token, expiresAt, err := h.issuer.Issue(res.User)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue session", "user_id", res.User.ID, "error", err)
		h.redirectLoginError(w, r, "Google authentication failed")
		return
	}
	h.issuer.SetCookie(w, token, expiresAt, h.secureCookies)
	h.metrics.ObserveAttempt(string(models.AuthMethodGoogle), metrics.OutcomeAccepted)

	if res.IsNewAccount {
		h.metrics.IncIdentityCreated(string(models.AuthMethodGoogle))
		http.Redirect(w, r, h.frontendURL+"/signup?google=true", http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, h.frontendURL+"/me", http.StatusTemporaryRedirect)
}

// startSession issues the token and sets the cookie. It writes the error
// response itself and reports false when it could not.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue session", "user_id", user.ID, "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Failed to create token",
		})
		return false
	}
	h.issuer.SetCookie(w, token, expiresAt, h.secureCookies)
	return true
}

func (h *AuthHandler) observeFailure(method models.AuthMethod, err error) {
	outcome := metrics.OutcomeError
	switch {
	case errors.Is(err, identity.ErrWrongMethod):
		outcome = metrics.OutcomeWrongMethod
	case errors.Is(err, identity.ErrInvalidCredentials):
		outcome = metrics.OutcomeRejected
	}
	h.metrics.ObserveAttempt(string(method), outcome)
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(msg), http.StatusTemporaryRedirect)
}

func (h *AuthHandler) googleUnavailable(w http.ResponseWriter) {
	utils.JSONResponse(w, http.StatusServiceUnavailable, utils.Payload{
		Success: false,
		Message: "Google sign-in is not configured",
	})
}
