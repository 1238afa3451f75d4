package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"github.com/rohits-web03/collab/internal/session"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func (s *HandlersSuite) multipartSignup(fields map[string][]string, fileName string, file []byte) *httptest.ResponseRecorder {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			s.Require().NoError(w.WriteField(name, v))
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("profilePic", fileName)
		s.Require().NoError(err)
		_, err = part.Write(file)
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/signup", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req)
}

func (s *HandlersSuite) TestSignup_JSON() {
	rec := s.postJSON("/api/v1/users/signup", map[string]any{
		"name":     "Jane Doe",
		"username": "JaneDoe",
		"email":    "Jane@Example.com",
		"password": "s3cret",
		"domains":  []string{"web", "web", " ml "},
		"skills":   []string{"go"},
		"bio":      "hello",
	})

	s.Equal(http.StatusCreated, rec.Code)
	s.NotContains(rec.Body.String(), "password")
	payload := s.decode(rec)
	s.Equal("User created successfully", payload.Message)
	data := payload.Data.(map[string]any)
	s.Equal("janedoe", data["username"])
	s.Equal("jane@example.com", data["email"])
	s.Equal("local", data["authMethod"])
	s.Equal([]any{"web", "ml"}, data["domains"])

	c := s.cookie(rec, session.CookieName)
	s.Require().NotNil(c)
	_, err := s.issuer.Verify(c.Value)
	s.NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.IdentitiesCreated.WithLabelValues("local")))
}

func (s *HandlersSuite) TestSignup_Conflicts() {
	s.createLocal("existing", "existing@example.com", "pw")
	s.createGoogle("gmail@example.com", "Gmail Person")

	s.Run("email taken", func() {
		rec := s.postJSON("/api/v1/users/signup", map[string]any{
			"username": "fresh", "email": "EXISTING@example.com", "password": "pw",
		})
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("Email is already in use.", s.decode(rec).Message)
	})

	s.Run("username taken", func() {
		rec := s.postJSON("/api/v1/users/signup", map[string]any{
			"username": "Existing", "email": "fresh@example.com", "password": "pw",
		})
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal("Username is already taken.", s.decode(rec).Message)
	})

	s.Run("email owned by google", func() {
		rec := s.postJSON("/api/v1/users/signup", map[string]any{
			"username": "another", "email": "gmail@example.com", "password": "pw",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("You are already registered with Google OAuth; please log in with Google.", s.decode(rec).Message)
	})
}

func (s *HandlersSuite) TestSignup_InvalidInput() {
	s.Run("missing password", func() {
		rec := s.postJSON("/api/v1/users/signup", map[string]any{"username": "u", "email": "u@example.com"})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("password is required", s.decode(rec).Message)
	})

	s.Run("unknown field", func() {
		rec := s.postJSON("/api/v1/users/signup", map[string]any{
			"username": "u", "email": "u@example.com", "password": "pw", "authMethod": "google",
		})
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Invalid input", s.decode(rec).Message)
	})
}

func (s *HandlersSuite) TestSignup_MultipartWithAvatar() {
	s.avatars.EXPECT().
		Upload(gomock.Any(), gomock.Any(), "image/png", gomock.Any()).
		DoAndReturn(func(_ context.Context, key, _ string, body io.Reader) (string, error) {
			s.True(strings.HasPrefix(key, "user_profiles/"))
			s.True(strings.HasSuffix(key, ".png"))
			raw, err := io.ReadAll(body)
			s.Require().NoError(err)
			s.Equal(pngHeader, raw)
			return "https://cdn.example.com/" + key, nil
		})

	rec := s.multipartSignup(map[string][]string{
		"name":     {"Pic Person"},
		"username": {"picperson"},
		"email":    {"pic@example.com"},
		"password": {"pw"},
		"skills":   {"go, sql", "go"},
	}, "Me.PNG", pngHeader)

	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	stored, err := s.repo.FindByUsername(s.ctx, "picperson")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(stored.ProfilePic, "https://cdn.example.com/user_profiles/"))
	s.Equal([]string{"go", "sql"}, stored.Skills)
}

func (s *HandlersSuite) TestSignup_RefusedBeforeAvatarUpload() {
	s.createLocal("existing", "existing@example.com", "pw")
	s.createGoogle("gmail@example.com", "Gmail Person")
	s.avatars.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	tests := []struct {
		name    string
		fields  map[string][]string
		status  int
		message string
	}{
		{
			name:    "email taken",
			fields:  map[string][]string{"username": {"fresh"}, "email": {"existing@example.com"}, "password": {"pw"}},
			status:  http.StatusConflict,
			message: "Email is already in use.",
		},
		{
			name:    "username taken",
			fields:  map[string][]string{"username": {"EXISTING"}, "email": {"fresh@example.com"}, "password": {"pw"}},
			status:  http.StatusConflict,
			message: "Username is already taken.",
		},
		{
			name:    "email owned by google",
			fields:  map[string][]string{"username": {"fresh"}, "email": {"gmail@example.com"}, "password": {"pw"}},
			status:  http.StatusBadRequest,
			message: "You are already registered with Google OAuth; please log in with Google.",
		},
		{
			name:    "missing password",
			fields:  map[string][]string{"username": {"fresh"}, "email": {"fresh@example.com"}},
			status:  http.StatusBadRequest,
			message: "password is required",
		},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rec := s.multipartSignup(tt.fields, "me.png", pngHeader)
			s.Equal(tt.status, rec.Code)
			s.Equal(tt.message, s.decode(rec).Message)
		})
	}
}

func (s *HandlersSuite) TestSignup_AvatarRejections() {
	fields := map[string][]string{
		"username": {"avataruser"},
		"email":    {"avatar@example.com"},
		"password": {"pw"},
	}

	s.Run("not an image", func() {
		s.avatars.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		rec := s.multipartSignup(fields, "notes.txt", []byte("just some text"))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal("Profile picture must be an image", s.decode(rec).Message)
	})

	s.Run("upload fails", func() {
		s.avatars.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return("", errors.New("bucket unreachable"))
		rec := s.multipartSignup(fields, "me.png", pngHeader)
		s.Equal(http.StatusInternalServerError, rec.Code)
	})

	s.Run("no blob store configured", func() {
		s.router = s.buildRouter(s.google, nil)
		rec := s.multipartSignup(fields, "me.png", pngHeader)
		s.Equal(http.StatusServiceUnavailable, rec.Code)
	})

	_, err := s.repo.FindByEmail(s.ctx, "avatar@example.com")
	s.Error(err)
}

func (s *HandlersSuite) TestCheckEmail() {
	s.createLocal("checked", "checked@example.com", "pw")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/check-email?email=free@example.com", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, s.decode(rec).Data.(map[string]any)["available"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/check-email?email=Checked@example.com", nil))
	s.Equal(false, s.decode(rec).Data.(map[string]any)["available"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/check-email", nil))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlersSuite) TestCheckUsername() {
	s.createLocal("claimed", "claimed@example.com", "pw")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/check-username?username=CLAIMED", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(false, s.decode(rec).Data.(map[string]any)["available"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/check-username?username=unclaimed", nil))
	s.Equal(true, s.decode(rec).Data.(map[string]any)["available"])
}

func (s *HandlersSuite) TestMe() {
	user := s.createLocal("meuser", "me@example.com", "pw")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(s.sessionCookie(user))
	rec = s.do(req)
	s.Equal(http.StatusOK, rec.Code)
	data := s.decode(rec).Data.(map[string]any)
	s.Equal("meuser", data["username"])
	s.Equal("me@example.com", data["email"])
}

func (s *HandlersSuite) TestProfile() {
	s.createLocal("public", "public@example.com", "pw")

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/Public", nil))
	s.Equal(http.StatusOK, rec.Code)
	data := s.decode(rec).Data.(map[string]any)
	s.Equal("public", data["username"])
	s.NotContains(data, "email")
	s.Equal([]any{"go"}, data["skills"])

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/nobody", nil))
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("User not found", s.decode(rec).Message)
}
