// Package repository implements the credential store over database/sql.
// This file defines error values reused across repositories.  These
// sentinels let handlers distinguish failure scenarios without string
// matching: ErrNotFound becomes 404 (or 401 when the lookup was
// identity-related, to avoid leaking account existence) and ErrEmailExists
// becomes 409.  Ownership violations never surface as their own error:
// repositories scope queries by owner and report ErrNotFound.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist or is soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an email is already taken by a
// non-deleted user.  Soft-deleted users release their email for reuse.
var ErrEmailExists = errors.New("email already exists")
