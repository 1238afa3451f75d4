package identity

import (
	"errors"

	"github.com/rohits-web03/collab/internal/models"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWrongMethod        = errors.New("wrong authentication method")
	ErrAllocationFailed   = errors.New("could not allocate a username")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	hintUseGoogle        = "You signed up with Google OAuth; please log in with Google."
	hintUsePassword      = "You have registered with email and password; please log in with those."
	hintSignupWithGoogle = "You are already registered with Google OAuth; please log in with Google."
)

// WrongMethodError rejects an attempt made with a different method than the
// one the identity was created with. Hint is safe to show to the user.
type WrongMethodError struct {
	Registered models.AuthMethod
	Hint       string
}

func (e *WrongMethodError) Error() string { return e.Hint }

func (e *WrongMethodError) Is(target error) bool { return target == ErrWrongMethod }

func wrongMethod(registered models.AuthMethod) *WrongMethodError {
	hint := hintUsePassword
	if registered == models.AuthMethodGoogle {
		hint = hintUseGoogle
	}
	return &WrongMethodError{Registered: registered, Hint: hint}
}
