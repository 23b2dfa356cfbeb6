package model

import "time"

// Roles carried in the JWT "role" claim.
const (
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
)

// User represents a row in the `users` table. Users own documents; signers
// are not users and authenticate with their access token instead.
//
// Fields:
//  ID           – primary key (UUID).
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hash.
//  Name         – display name used in audit actor labels.
//  Role         – OWNER or ADMIN.
//  IsActive     – inactive users cannot log in.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         string    // users.name
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// Label is the actor label used in certificates.
func (u User) Label() string { return u.Name + " (" + u.Email + ")" }

// RefreshToken models a row in the `refresh_tokens` table. Only the SHA-256
// digest of the raw token is stored.
type RefreshToken struct {
	ID        string     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
