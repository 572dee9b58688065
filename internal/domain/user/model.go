package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Roles        []string   `db:"roles" json:"roles"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Specialty    *string    `db:"specialty" json:"specialty,omitempty"`
	TOTPSecret   *string    `db:"totp_secret" json:"-"`
	TOTPEnabled  bool       `db:"totp_enabled" json:"totp_enabled"`
	SearchName   string     `db:"search_name" json:"-"`
	LegacyID     *string    `db:"legacy_id" json:"legacy_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeUsername is the canonical form usernames are stored and matched in.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type CreateInput struct {
	Username  string   `json:"username" validate:"required,min=3,max=64"`
	Password  string   `json:"password" validate:"required,min=8"`
	Roles     []string `json:"roles" validate:"required,min=1,dive,role"`
	FirstName string   `json:"first_name" validate:"required"`
	LastName  string   `json:"last_name" validate:"required"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Phone     *string  `json:"phone"`
	Specialty *string  `json:"specialty"`
}

// UpdateInput replaces the profile. Roles is ignored unless the caller is an admin.
type UpdateInput struct {
	FirstName string   `json:"first_name" validate:"required"`
	LastName  string   `json:"last_name" validate:"required"`
	Email     *string  `json:"email" validate:"omitempty,email"`
	Phone     *string  `json:"phone"`
	Specialty *string  `json:"specialty"`
	Roles     []string `json:"roles" validate:"omitempty,dive,role"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	TOTPCode string `json:"totp_code"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type TOTPCodeInput struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}
