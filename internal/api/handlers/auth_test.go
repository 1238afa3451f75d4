package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"github.com/rohits-web03/collab/internal/api/handlers"
	"github.com/rohits-web03/collab/internal/api/handlers/mocks"
	"github.com/rohits-web03/collab/internal/identity"
	"github.com/rohits-web03/collab/internal/session"
	"github.com/rohits-web03/collab/internal/utils"
)

func (s *HandlersSuite) TestLogin() {
	user := s.createLocal("alice", "alice@example.com", "wonderland")

	s.Run("success sets session cookie", func() {
		rec := s.postJSON("/api/v1/auth/login", map[string]string{"email": "Alice@Example.com", "password": "wonderland"})

		s.Equal(http.StatusOK, rec.Code)
		s.Equal("Logged in successfully", s.decode(rec).Message)
		c := s.cookie(rec, session.CookieName)
		s.Require().NotNil(c)
		s.True(c.HttpOnly)
		s.Equal(http.SameSiteLaxMode, c.SameSite)

		claims, err := s.issuer.Verify(c.Value)
		s.Require().NoError(err)
		s.Equal(user.ID, claims.SubjectID)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.AuthAttempts.WithLabelValues("local", "accepted")))
	})

	s.Run("wrong password", func() {
		rec := s.postJSON("/api/v1/auth/login", map[string]string{"email": "alice@example.com", "password": "nope"})

		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("Invalid email or password", s.decode(rec).Message)
		s.Nil(s.cookie(rec, session.CookieName))
	})

	s.Run("unknown email", func() {
		rec := s.postJSON("/api/v1/auth/login", map[string]string{"email": "who@example.com", "password": "wonderland"})

		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("Invalid email or password", s.decode(rec).Message)
	})

	s.Run("malformed body", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		rec := s.do(req)

		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Invalid input", s.decode(rec).Message)
	})
}

func (s *HandlersSuite) TestLogin_GoogleAccountGetsHint() {
	s.createGoogle("gmail@example.com", "Gmail User")

	rec := s.postJSON("/api/v1/auth/login", map[string]string{"email": "gmail@example.com", "password": "anything"})

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("You signed up with Google OAuth; please log in with Google.", s.decode(rec).Message)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AuthAttempts.WithLabelValues("local", "wrong_method")))
}

func (s *HandlersSuite) TestLogout() {
	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("no-cache", rec.Header().Get("Cache-Control"))
	c := s.cookie(rec, session.CookieName)
	s.Require().NotNil(c)
	s.Empty(c.Value)
	s.Less(c.MaxAge, 0)
}

func (s *HandlersSuite) TestStatus() {
	user := s.createLocal("statususer", "status@example.com", "pw")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil))
	s.Equal(http.StatusOK, rec.Code)
	data := s.decode(rec).Data.(map[string]any)
	s.Equal(false, data["authenticated"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/status", nil)
	req.AddCookie(s.sessionCookie(user))
	rec = s.do(req)
	data = s.decode(rec).Data.(map[string]any)
	s.Equal(true, data["authenticated"])
	s.Equal("statususer", data["user"].(map[string]any)["username"])
}

// startGoogle runs the login redirect and returns the state and PKCE cookie
// the browser would carry back to the callback.
func (s *HandlersSuite) startGoogle() (string, *http.Cookie) {
	var state, challenge string
	s.google.EXPECT().AuthCodeURL(gomock.Any(), gomock.Any()).DoAndReturn(func(st, ch string) string {
		state, challenge = st, ch
		return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(st)
	})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/google", nil))

	s.Require().Equal(http.StatusTemporaryRedirect, rec.Code)
	s.Contains(rec.Header().Get("Location"), "https://accounts.google.com/")
	pkce := s.cookie(rec, "oauth_pkce")
	s.Require().NotNil(pkce)
	s.True(pkce.HttpOnly)
	s.Equal(utils.S256Challenge(pkce.Value), challenge)
	s.Require().NotEmpty(state)
	return state, pkce
}

func (s *HandlersSuite) callback(state, code string, pkce *http.Cookie) *httptest.ResponseRecorder {
	q := url.Values{"state": {state}, "code": {code}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?"+q.Encode(), nil)
	if pkce != nil {
		req.AddCookie(&http.Cookie{Name: pkce.Name, Value: pkce.Value})
	}
	return s.do(req)
}

func loginErrorLocation(msg string) string {
	return frontendURL + "/login?error=" + url.QueryEscape(msg)
}

func (s *HandlersSuite) TestGoogleCallback_NewAccount() {
	state, pkce := s.startGoogle()
	s.google.EXPECT().Exchange(gomock.Any(), "auth-code", pkce.Value).
		Return(identity.ExternalProfile{Email: "Newbie@Gmail.com", DisplayName: "New Bie"}, nil)

	rec := s.callback(state, "auth-code", pkce)

	s.Equal(http.StatusTemporaryRedirect, rec.Code)
	s.Equal(frontendURL+"/signup?google=true", rec.Header().Get("Location"))
	c := s.cookie(rec, session.CookieName)
	s.Require().NotNil(c)

	created, err := s.repo.FindByEmail(s.ctx, "newbie@gmail.com")
	s.Require().NoError(err)
	s.Equal("newbie", created.Username)
	claims, err := s.issuer.Verify(c.Value)
	s.Require().NoError(err)
	s.Equal(created.ID, claims.SubjectID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IdentitiesCreated.WithLabelValues("google")))
}

func (s *HandlersSuite) TestGoogleCallback_ReturningAccount() {
	existing := s.createGoogle("back@gmail.com", "Back User")
	state, pkce := s.startGoogle()
	s.google.EXPECT().Exchange(gomock.Any(), "code", pkce.Value).
		Return(identity.ExternalProfile{Email: "back@gmail.com", DisplayName: "Back User"}, nil)

	rec := s.callback(state, "code", pkce)

	s.Equal(frontendURL+"/me", rec.Header().Get("Location"))
	c := s.cookie(rec, session.CookieName)
	s.Require().NotNil(c)
	claims, err := s.issuer.Verify(c.Value)
	s.Require().NoError(err)
	s.Equal(existing.ID, claims.SubjectID)
}

func (s *HandlersSuite) TestGoogleCallback_LocalAccountIsRejected() {
	s.createLocal("localonly", "local@example.com", "pw")
	state, pkce := s.startGoogle()
	s.google.EXPECT().Exchange(gomock.Any(), "code", pkce.Value).
		Return(identity.ExternalProfile{Email: "local@example.com", DisplayName: "Local Only"}, nil)

	rec := s.callback(state, "code", pkce)

	s.Equal(loginErrorLocation("You have registered with email and password; please log in with those."), rec.Header().Get("Location"))
	s.Nil(s.cookie(rec, session.CookieName))
}

func (s *HandlersSuite) TestGoogleCallback_StateIsSingleUse() {
	state, pkce := s.startGoogle()
	s.google.EXPECT().Exchange(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(identity.ExternalProfile{Email: "once@gmail.com", DisplayName: "Once"}, nil).
		Times(1)

	first := s.callback(state, "code", pkce)
	s.Equal(frontendURL+"/signup?google=true", first.Header().Get("Location"))

	replay := s.callback(state, "code", pkce)
	s.Equal(loginErrorLocation("Invalid OAuth state"), replay.Header().Get("Location"))
}

func (s *HandlersSuite) TestGoogleCallback_Rejections() {
	s.Run("forged state", func() {
		_, pkce := s.startGoogle()
		rec := s.callback("not-a-signed-state", "code", pkce)
		s.Equal(loginErrorLocation("Invalid OAuth state"), rec.Header().Get("Location"))
	})

	s.Run("missing pkce cookie", func() {
		state, _ := s.startGoogle()
		rec := s.callback(state, "code", nil)
		s.Equal(loginErrorLocation("Google authentication failed"), rec.Header().Get("Location"))
	})

	s.Run("exchange fails", func() {
		state, pkce := s.startGoogle()
		s.google.EXPECT().Exchange(gomock.Any(), "code", pkce.Value).
			Return(identity.ExternalProfile{}, errors.New("invalid_grant"))

		rec := s.callback(state, "code", pkce)
		s.Equal(loginErrorLocation("Google authentication failed"), rec.Header().Get("Location"))
	})

	s.Run("user denied consent", func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?error=access_denied", nil)
		rec := s.do(req)
		s.Equal(loginErrorLocation("Google authentication failed"), rec.Header().Get("Location"))
	})
}

func (s *HandlersSuite) TestGoogleCallback_SessionFailureRedirects() {
	sessions := mocks.NewMockSessionIssuer(s.ctrl)
	sessions.EXPECT().Issue(gomock.Any()).Return("", time.Time{}, errors.New("signing failed"))
	sessions.EXPECT().SetCookie(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	s.sessions = sessions
	s.router = s.buildRouter(s.google, s.avatars)

	state, pkce := s.startGoogle()
	s.google.EXPECT().Exchange(gomock.Any(), "code", pkce.Value).
		Return(identity.ExternalProfile{Email: "nosession@gmail.com", DisplayName: "No Session"}, nil)

	rec := s.callback(state, "code", pkce)

	s.Equal(http.StatusTemporaryRedirect, rec.Code)
	s.Equal(loginErrorLocation("Google authentication failed"), rec.Header().Get("Location"))
	s.Nil(s.cookie(rec, session.CookieName))
}

func (s *HandlersSuite) TestLogin_WithoutMetrics() {
	s.createLocal("nometrics", "nometrics@example.com", "pw")
	auth := handlers.NewAuthHandler(handlers.AuthHandlerConfig{
		Engine: s.engine,
		Issuer: s.issuer,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for password, want := range map[string]int{"pw": http.StatusOK, "wrong": http.StatusUnauthorized} {
		raw, err := json.Marshal(map[string]string{"email": "nometrics@example.com", "password": password})
		s.Require().NoError(err)
		rec := httptest.NewRecorder()
		s.NotPanics(func() {
			auth.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(raw)))
		})
		s.Equal(want, rec.Code, password)
	}
}

func (s *HandlersSuite) TestGoogle_NotConfigured() {
	s.router = s.buildRouter(nil, s.avatars)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/google", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/auth/google/callback?code=x&state=y", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *HandlersSuite) TestGoogleLogin_NonceIsRemembered() {
	state, _ := s.startGoogle()

	// The nonce is outstanding until the callback consumes it.
	ok, err := s.nonces.Consume(context.Background(), nonceOf(s, state))
	s.Require().NoError(err)
	s.True(ok)
}

func nonceOf(s *HandlersSuite, state string) string {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(state, &claims)
	s.Require().NoError(err)
	s.Require().NotEmpty(claims.ID)
	return claims.ID
}
