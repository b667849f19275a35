package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}

// User is the stored account. Password holds the bcrypt hash; neither it nor
// RefreshToken is ever serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Image        *string   `json:"image"`
	IsActive     bool      `json:"isActive"`
	RefreshToken *string   `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy with the password hash and refresh token removed.
func (u User) Sanitized() User {
	u.Password = ""
	u.RefreshToken = nil
	return u
}

// NewUser is the input for creating a user; Password must already be hashed.
type NewUser struct {
	Email        string
	PasswordHash string
	Name         string
	Role         string
}

// ProfileUpdate is a partial update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// Identity is the caller decoded from an access token.
type Identity struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
