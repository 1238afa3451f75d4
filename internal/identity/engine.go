// Package identity decides whether an authentication attempt is accepted,
// rejected, or creates a new account.
//
// Every identity is bound to exactly one method (local password or Google)
// at creation. An attempt with the other method is rejected with a
// WrongMethodError; accounts are never merged across methods.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rohits-web03/collab/internal/models"
	"github.com/rohits-web03/collab/internal/repositories"
	"github.com/rohits-web03/collab/internal/utils"
)

const DefaultMaxUsernameAttempts = 5

// CredentialStore is the persistence the engine needs. Create must enforce
// email and username uniqueness atomically and report violations as
// repositories.ErrDuplicateEmail / repositories.ErrDuplicateUsername.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	HashPassword(password string) (string, error)
	VerifyPassword(user *models.User, password string) bool
}

// Result is an accepted attempt. IsNewAccount means the identity was created
// by this attempt and still needs its profile completed.
type Result struct {
	User         *models.User
	IsNewAccount bool
}

// ExternalProfile is what the identity provider vouches for. The email is
// trusted as verified.
type ExternalProfile struct {
	Email       string
	DisplayName string
	AvatarURL   string
}

type SignupInput struct {
	Name       string
	Username   string
	Email      string
	Password   string
	Domains    []string
	Skills     []string
	Bio        string
	ProfilePic string
}

type Engine struct {
	store               CredentialStore
	now                 func() time.Time
	suffix              func() string
	maxUsernameAttempts int
	logger              *slog.Logger

	// decoyHash is checked against when the email is unknown so a miss
	// costs the same bcrypt work as a wrong password.
	decoyOnce sync.Once
	decoyHash string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithMaxUsernameAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxUsernameAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(store CredentialStore, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		now:                 time.Now,
		suffix:              randomSuffix,
		maxUsernameAttempts: DefaultMaxUsernameAttempts,
		logger:              slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LocalLogin authenticates an email and password pair.
func (e *Engine) LocalLogin(ctx context.Context, email, password string) (Result, error) {
	user, err := e.lookupEmail(ctx, email)
	if err != nil {
		return Result{}, err
	}
	if user == nil {
		e.burnPasswordCheck(password)
		return Result{}, ErrInvalidCredentials
	}

	switch decide(user.AuthMethod, models.AuthMethodLocal) {
	case outcomeVerifyPassword:
		if !e.store.VerifyPassword(user, password) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{User: user}, nil
	default:
		return Result{}, wrongMethod(user.AuthMethod)
	}
}

func (e *Engine) burnPasswordCheck(password string) {
	e.decoyOnce.Do(func() {
		hash, err := e.store.HashPassword("decoy-" + randomSuffix())
		if err != nil {
			e.logger.Error("failed to prepare decoy password hash", "error", err)
			return
		}
		e.decoyHash = hash
	})
	if e.decoyHash == "" {
		return
	}
	e.store.VerifyPassword(&models.User{AuthMethod: models.AuthMethodLocal, Password: e.decoyHash}, password)
}

// OAuthCallback reconciles a verified Google profile. An unseen email creates
// a new Google identity with a generated username.
func (e *Engine) OAuthCallback(ctx context.Context, profile ExternalProfile) (Result, error) {
	email := repositories.NormalizeEmail(profile.Email)
	if email == "" {
		return Result{}, fmt.Errorf("%w: external profile has no email", ErrInvalidInput)
	}

	res, found, err := e.resolveExternal(ctx, email)
	if err != nil || found {
		return res, err
	}

	user, err := e.createExternal(ctx, email, profile)
	if errors.Is(err, repositories.ErrDuplicateEmail) {
		// Lost a race for this email; the winner decides the outcome.
		e.logger.InfoContext(ctx, "concurrent creation for email, re-reconciling", "email", email)
		res, found, err = e.resolveExternal(ctx, email)
		if err != nil {
			return Result{}, err
		}
		if !found {
			return Result{}, fmt.Errorf("identity for %s missing after duplicate insert", email)
		}
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	e.logger.InfoContext(ctx, "created google identity", "user_id", user.ID, "username", user.Username)
	return Result{User: user, IsNewAccount: true}, nil
}

func (e *Engine) resolveExternal(ctx context.Context, email string) (Result, bool, error) {
	user, err := e.lookupEmail(ctx, email)
	if err != nil || user == nil {
		return Result{}, false, err
	}
	if decide(user.AuthMethod, models.AuthMethodGoogle) != outcomeAccept {
		return Result{}, true, wrongMethod(user.AuthMethod)
	}
	return Result{User: user}, true, nil
}

func (e *Engine) createExternal(ctx context.Context, email string, profile ExternalProfile) (*models.User, error) {
	// Never shown to anyone and never verifiable: VerifyPassword refuses
	// non-local identities. It only fills the non-null column.
	secret, err := utils.GenerateSecureToken(16)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:       profile.DisplayName,
		Email:      email,
		Password:   secret,
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RoleUser,
		Domains:    []string{},
		Skills:     []string{},
		ProfilePic: profile.AvatarURL,
	}
	if err := e.createWithUsername(ctx, user, profile.DisplayName); err != nil {
		return nil, err
	}
	return user, nil
}

// CheckSignup runs the validation and lookups Signup performs without
// creating anything, so callers can refuse a signup before side effects such
// as storing an avatar. A nil result is advisory: Signup can still lose a race.
func (e *Engine) CheckSignup(ctx context.Context, in SignupInput) error {
	_, _, err := e.checkSignup(ctx, in)
	return err
}

// checkSignup returns the normalized email and username.
func (e *Engine) checkSignup(ctx context.Context, in SignupInput) (string, string, error) {
	email := repositories.NormalizeEmail(in.Email)
	username := repositories.NormalizeUsername(in.Username)
	switch {
	case email == "":
		return "", "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	case username == "":
		return "", "", fmt.Errorf("%w: username is required", ErrInvalidInput)
	case in.Password == "":
		return "", "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	existing, err := e.lookupEmail(ctx, email)
	if err != nil {
		return "", "", err
	}
	if existing != nil {
		if existing.AuthMethod == models.AuthMethodGoogle {
			return "", "", &WrongMethodError{Registered: models.AuthMethodGoogle, Hint: hintSignupWithGoogle}
		}
		return "", "", repositories.ErrDuplicateEmail
	}

	available, err := e.UsernameAvailable(ctx, username)
	if err != nil {
		return "", "", err
	}
	if !available {
		return "", "", repositories.ErrDuplicateUsername
	}
	return email, username, nil
}

// Signup creates a local identity. The lookups only pick a friendlier
// error; the store's unique indexes decide concurrent signups.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (Result, error) {
	email, username, err := e.checkSignup(ctx, in)
	if err != nil {
		return Result{}, err
	}

	hash, err := e.store.HashPassword(in.Password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:       in.Name,
		Username:   username,
		Email:      email,
		Password:   hash,
		AuthMethod: models.AuthMethodLocal,
		Role:       models.RoleUser,
		Domains:    utils.DedupeAndTrim(in.Domains),
		Skills:     utils.DedupeAndTrim(in.Skills),
		Bio:        in.Bio,
		ProfilePic: in.ProfilePic,
	}
	if err := e.store.Create(ctx, user); err != nil {
		return Result{}, err
	}

	e.logger.InfoContext(ctx, "created local identity", "user_id", user.ID, "username", user.Username)
	return Result{User: user, IsNewAccount: true}, nil
}

// EmailStatus is an advisory availability probe for the signup form.
type EmailStatus struct {
	Available  bool
	Registered models.AuthMethod
	Message    string
}

func (e *Engine) CheckEmail(ctx context.Context, email string) (EmailStatus, error) {
	user, err := e.lookupEmail(ctx, email)
	if err != nil {
		return EmailStatus{}, err
	}
	if user == nil {
		return EmailStatus{Available: true}, nil
	}
	if user.AuthMethod == models.AuthMethodGoogle {
		return EmailStatus{Registered: user.AuthMethod, Message: hintSignupWithGoogle}, nil
	}
	return EmailStatus{Registered: user.AuthMethod, Message: "Email is already registered; please log in."}, nil
}

// UsernameAvailable is advisory only; Create remains the arbiter.
func (e *Engine) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	_, err := e.store.FindByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// lookupEmail returns a nil user and nil error when the email is unknown.
func (e *Engine) lookupEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := e.store.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
