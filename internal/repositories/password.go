package repositories

import (
	"errors"

	"github.com/rohits-web03/collab/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password is required")

// HashPassword hashes a plaintext password with the repository's bcrypt cost.
func (r *UserRepository) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), r.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword compares plaintext against a local identity's stored hash.
// Identities created through Google never verify, whatever the input.
func (r *UserRepository) VerifyPassword(user *models.User, password string) bool {
	if user == nil || user.AuthMethod != models.AuthMethodLocal {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}
