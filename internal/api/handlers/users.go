package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rohits-web03/collab/internal/api/middleware"
	"github.com/rohits-web03/collab/internal/identity"
	"github.com/rohits-web03/collab/internal/metrics"
	"github.com/rohits-web03/collab/internal/models"
	"github.com/rohits-web03/collab/internal/repositories"
	"github.com/rohits-web03/collab/internal/utils"
)

const (
	maxSignupForm = 6 << 20
	maxAvatarSize = 5 << 20
	avatarFolder  = "user_profiles"
)

type ProfileFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type UsersHandler struct {
	engine        *identity.Engine
	issuer        SessionIssuer
	profiles      ProfileFinder
	avatars       AvatarStore
	metrics       *metrics.Metrics
	logger        *slog.Logger
	secureCookies bool
}

// NewUsersHandler wires the user endpoints. avatars may be nil, in which case
// signups that carry a picture are refused.
func NewUsersHandler(engine *identity.Engine, issuer SessionIssuer, profiles ProfileFinder, avatars AvatarStore, m *metrics.Metrics, logger *slog.Logger, secureCookies bool) *UsersHandler {
	return &UsersHandler{
		engine:        engine,
		issuer:        issuer,
		profiles:      profiles,
		avatars:       avatars,
		metrics:       m,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

type signupJSON struct {
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Domains  []string `json:"domains"`
	Skills   []string `json:"skills"`
	Bio      string   `json:"bio"`
}

// Signup godoc
// @Summary Create a local account
// @Description Accepts multipart/form-data (with an optional profilePic file) or JSON. Sets the session cookie.
// @Tags Users
// @Accept multipart/form-data,json
// @Produce json
// @Param profilePic formData file false "Avatar image"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Invalid input or email registered with Google"
// @Failure 409 {object} utils.Payload "Email or username already taken"
// @Router /api/v1/users/signup [post]
func (h *UsersHandler) Signup(w http.ResponseWriter, r *http.Request) {
	input, avatar, err := h.parseSignup(w, r)
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	// Refuse before anything reaches the blob store.
	if err := h.engine.CheckSignup(r.Context(), input); err != nil {
		h.writeSignupError(w, r, err)
		return
	}

	if avatar != nil {
		url, status, msg := h.uploadAvatar(r.Context(), avatar)
		if status != 0 {
			utils.JSONResponse(w, status, utils.Payload{Success: false, Message: msg})
			return
		}
		input.ProfilePic = url
	}

	res, err := h.engine.Signup(r.Context(), input)
	if err != nil {
		h.writeSignupError(w, r, err)
		return
	}
	h.metrics.IncIdentityCreated(string(models.AuthMethodLocal))

	token, expiresAt, err := h.issuer.Issue(res.User)
	if err != nil {
		// The account exists; the client can still log in normally.
		h.logger.ErrorContext(r.Context(), "failed to issue session after signup", "user_id", res.User.ID, "error", err)
	} else {
		h.issuer.SetCookie(w, token, expiresAt, h.secureCookies)
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "User created successfully",
		Data:    res.User,
	})
}

type avatarUpload struct {
	data        []byte
	contentType string
	ext         string
}

func (h *UsersHandler) parseSignup(w http.ResponseWriter, r *http.Request) (identity.SignupInput, *avatarUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var body signupJSON
		if err := utils.DecodeJSON(w, r, &body); err != nil {
			return identity.SignupInput{}, nil, err
		}
		return identity.SignupInput{
			Name:     strings.TrimSpace(body.Name),
			Username: body.Username,
			Email:    body.Email,
			Password: body.Password,
			Domains:  body.Domains,
			Skills:   body.Skills,
			Bio:      strings.TrimSpace(body.Bio),
		}, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSignupForm)
	if err := r.ParseMultipartForm(maxSignupForm); err != nil {
		return identity.SignupInput{}, nil, err
	}
	input := identity.SignupInput{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Domains:  utils.SplitList(r.MultipartForm.Value["domains"]),
		Skills:   utils.SplitList(r.MultipartForm.Value["skills"]),
		Bio:      strings.TrimSpace(r.FormValue("bio")),
	}

	file, header, err := r.FormFile("profilePic")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil, nil
	}
	if err != nil {
		return identity.SignupInput{}, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarSize+1))
	if err != nil {
		return identity.SignupInput{}, nil, err
	}
	if len(data) > maxAvatarSize {
		return identity.SignupInput{}, nil, errors.New("avatar too large")
	}
	return input, &avatarUpload{
		data:        data,
		contentType: http.DetectContentType(data),
		ext:         strings.ToLower(path.Ext(header.Filename)),
	}, nil
}

// uploadAvatar returns the public URL, or a non-zero status and message.
func (h *UsersHandler) uploadAvatar(ctx context.Context, avatar *avatarUpload) (string, int, string) {
	if !strings.HasPrefix(avatar.contentType, "image/") {
		return "", http.StatusBadRequest, "Profile picture must be an image"
	}
	if h.avatars == nil {
		return "", http.StatusServiceUnavailable, "Profile picture uploads are not available"
	}
	key := path.Join(avatarFolder, uuid.NewString()+avatar.ext)
	url, err := h.avatars.Upload(ctx, key, avatar.contentType, bytes.NewReader(avatar.data))
	if err != nil {
		h.logger.ErrorContext(ctx, "avatar upload failed", "key", key, "error", err)
		return "", http.StatusInternalServerError, "Failed to upload profile picture"
	}
	return url, 0, ""
}

func (h *UsersHandler) writeSignupError(w http.ResponseWriter, r *http.Request, err error) {
	var wrong *identity.WrongMethodError
	switch {
	case errors.Is(err, identity.ErrInvalidInput):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: strings.TrimPrefix(err.Error(), identity.ErrInvalidInput.Error()+": "),
		})
	case errors.As(err, &wrong):
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: wrong.Hint,
		})
	case errors.Is(err, repositories.ErrDuplicateEmail):
		utils.JSONResponse(w, http.StatusConflict, utils.Payload{
			Success: false,
			Message: "Email is already in use.",
		})
	case errors.Is(err, repositories.ErrDuplicateUsername):
		utils.JSONResponse(w, http.StatusConflict, utils.Payload{
			Success: false,
			Message: "Username is already taken.",
		})
	default:
		h.logger.ErrorContext(r.Context(), "signup failed", "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database insert failed",
		})
	}
}

// CheckEmail godoc
// @Summary Check whether an email can be used to sign up
// @Tags Users
// @Produce json
// @Param email query string true "Email"
// @Success 200 {object} utils.Payload
// @Router /api/v1/users/check-email [get]
func (h *UsersHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if strings.TrimSpace(email) == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Email is required",
		})
		return
	}

	status, err := h.engine.CheckEmail(r.Context(), email)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "email check failed", "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database query failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: status.Message,
		Data:    map[string]any{"available": status.Available},
	})
}

// CheckUsername godoc
// @Summary Check whether a username is free
// @Tags Users
// @Produce json
// @Param username query string true "Username"
// @Success 200 {object} utils.Payload
// @Router /api/v1/users/check-username [get]
func (h *UsersHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if strings.TrimSpace(username) == "" {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Username is required",
		})
		return
	}

	available, err := h.engine.UsernameAvailable(r.Context(), username)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "username check failed", "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database query failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Data:    map[string]any{"available": available},
	})
}

// Me godoc
// @Summary Current user
// @Tags Users
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Router /api/v1/users/me [get]
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		utils.JSONResponse(w, http.StatusUnauthorized, utils.Payload{
			Success: false,
			Message: "Unauthorized",
		})
		return
	}
	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Data:    user,
	})
}

// Profile godoc
// @Summary Public profile by username
// @Tags Users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/users/{username} [get]
func (h *UsersHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.profiles.FindByUsername(r.Context(), r.PathValue("username"))
	if errors.Is(err, repositories.ErrNotFound) {
		utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
			Success: false,
			Message: "User not found",
		})
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "profile lookup failed", "error", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Database query failed",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Data:    user.Public(),
	})
}
