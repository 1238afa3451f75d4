package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthMethod is the provider an identity was created with. It is set once at
// creation and never changes.
type AuthMethod string

const (
	AuthMethodLocal  AuthMethod = "local"
	AuthMethodGoogle AuthMethod = "google"
)

func (m AuthMethod) String() string { return string(m) }

// IsValid reports whether m is a known method.
func (m AuthMethod) IsValid() bool {
	switch m {
	case AuthMethodLocal, AuthMethodGoogle:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name       string     `json:"name"`
	Username   string     `json:"username" gorm:"uniqueIndex;not null"`
	Email      string     `json:"email" gorm:"uniqueIndex;not null"`
	Password   string     `json:"-" gorm:"not null"`
	AuthMethod AuthMethod `json:"authMethod" gorm:"type:varchar(16);not null;<-:create"`
	Role       Role       `json:"role" gorm:"type:varchar(16);not null"`
	Domains    []string   `json:"domains" gorm:"serializer:json"`
	Skills     []string   `json:"skills" gorm:"serializer:json"`
	Bio        string     `json:"bio"`
	ProfilePic string     `json:"profilePic"`
	CreatedAt  time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// BeforeCreate assigns the ID in Go so the schema does not depend on a
// database-side uuid extension.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// PublicProfile is the subset of a user that is safe to show to anyone.
type PublicProfile struct {
	Name       string   `json:"name"`
	Username   string   `json:"username"`
	Domains    []string `json:"domains"`
	Skills     []string `json:"skills"`
	Bio        string   `json:"bio"`
	ProfilePic string   `json:"profilePic"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		Name:       u.Name,
		Username:   u.Username,
		Domains:    u.Domains,
		Skills:     u.Skills,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
	}
}
