package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rohits-web03/collab/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserRepository is the credential store. Email and username uniqueness is
// enforced by the table's unique indexes, never by a lookup before insert.
type UserRepository struct {
	db         *gorm.DB
	bcryptCost int
}

type UserRepositoryOption func(*UserRepository)

// WithBcryptCost overrides bcrypt.DefaultCost. Out of range values are ignored.
func WithBcryptCost(cost int) UserRepositoryOption {
	return func(r *UserRepository) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			r.bcryptCost = cost
		}
	}
}

func NewUserRepository(db *gorm.DB, opts ...UserRepositoryOption) *UserRepository {
	r := &UserRepository{db: db, bcryptCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeEmail is applied on every write and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername is applied on every write and lookup.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", NormalizeEmail(email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", NormalizeUsername(username))
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	switch {
	case err == nil:
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("query user: %w", err)
	}
}

// Create inserts a new identity. A unique-index violation comes back as
// ErrDuplicateEmail or ErrDuplicateUsername.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if !user.AuthMethod.IsValid() {
		return fmt.Errorf("create user: invalid auth method %q", user.AuthMethod)
	}
	user.Email = NormalizeEmail(user.Email)
	user.Username = NormalizeUsername(user.Username)

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if dup := uniqueViolation(err); dup != nil {
			// The hook may have assigned an ID to a row that was never written.
			user.ID = uuid.Nil
			return dup
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
