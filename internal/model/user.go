package model

import "time"

// Role is the access level stored in the users.role column.  There is no
// separate roles table; the enum values are written as-is.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleEditor Role = "EDITOR"
	RoleUser   Role = "USER"
)

// Valid reports whether r is one of the known role values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleUser:
		return true
	}
	return false
}

// User represents an application user record as stored in the `users` table.
// The json tags are omitted because these structs are used internally by the
// repository layer; handlers define separate response types.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – email address, unique among non-deleted rows.
//	PasswordHash – bcrypt hashed password; empty string for OAuth-only accounts,
//	               which can never authenticate via password.
//	RefreshToken – SHA-256 hex digest of the latest issued refresh token, or nil
//	               when the user is logged out.  Only one refresh token is valid
//	               per user at any time.
//	Role         – access level (ADMIN, EDITOR or USER).
//	IsActive     – whether the account has been verified or OAuth-activated.
//	IsDeleted    – soft-delete flag; deleted rows release their email for reuse.
//	DeletedAt    – when the soft delete happened (nullable).
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email
	PasswordHash string     // users.password
	RefreshToken *string    // users.refresh_token (nullable)
	Role         Role       // users.role
	IsActive     bool       // users.is_active
	IsDeleted    bool       // users.is_deleted
	DeletedAt    *time.Time // users.deleted_at (nullable)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    time.Time  // users.updated_at
}
