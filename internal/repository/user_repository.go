package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/utils"
)

const userColumns = "id,email,password,refresh_token,role,is_active,is_deleted,deleted_at,created_at,updated_at"

// UserRepo persists user accounts in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user and returns its ID.  Email uniqueness is scoped to
// non-deleted rows: a soft-deleted user's email may be reused.  MySQL has no
// partial unique index, so the check runs as a query in the insert path; the
// small window between check and insert is an accepted last-write race.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.Role, active bool, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email=? AND is_deleted=0 LIMIT 1", email).Scan(&existing)
	if err == nil {
		return 0, ErrEmailExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// OAuth-only accounts carry an empty password sentinel and skip hashing.
	hash := ""
	if password != "" {
		hash, err = utils.HashPassword(password, cost)
		if err != nil {
			return 0, err
		}
	}

	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password, role, is_active) VALUES (?,?,?,?)",
		email, hash, string(role), active)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a non-deleted user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? AND is_deleted=0 LIMIT 1", email))
}

// GetByID fetches a non-deleted user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND is_deleted=0 LIMIT 1", id))
}

// List returns all non-deleted users ordered by creation time.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE is_deleted=0 ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// UpdateEmail changes a user's email after re-checking uniqueness among
// non-deleted rows.
func (r *UserRepo) UpdateEmail(ctx context.Context, id uint64, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var existing uint64
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email=? AND is_deleted=0 AND id<>? LIMIT 1", email, id).Scan(&existing)
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return r.exec(ctx, "UPDATE users SET email=?, updated_at=NOW() WHERE id=? AND is_deleted=0", email, id)
}

// UpdateRole changes a user's role.
func (r *UserRepo) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	return r.exec(ctx, "UPDATE users SET role=?, updated_at=NOW() WHERE id=? AND is_deleted=0", string(role), id)
}

// SetActive toggles the account's activation flag.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.exec(ctx, "UPDATE users SET is_active=?, updated_at=NOW() WHERE id=? AND is_deleted=0", active, id)
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	return r.exec(ctx, "UPDATE users SET password=?, updated_at=NOW() WHERE id=? AND is_deleted=0", hash, id)
}

// SetRefreshHash overwrites the stored refresh token hash.  Only the latest
// issued refresh token per user is valid; overwriting invalidates every
// previously issued one.
func (r *UserRepo) SetRefreshHash(ctx context.Context, id uint64, tokenHash string) error {
	return r.exec(ctx, "UPDATE users SET refresh_token=?, updated_at=NOW() WHERE id=? AND is_deleted=0", tokenHash, id)
}

// ClearRefreshHash removes the stored refresh token hash on logout.  A
// stolen refresh token then fails the server-side hash comparison even
// while its signature is still unexpired.
func (r *UserRepo) ClearRefreshHash(ctx context.Context, id uint64) error {
	return r.exec(ctx, "UPDATE users SET refresh_token=NULL, updated_at=NOW() WHERE id=?", id)
}

// SoftDelete marks the user deleted and clears its session.  The row stays
// in place but its email becomes reusable.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	return r.exec(ctx,
		"UPDATE users SET is_deleted=1, deleted_at=NOW(), refresh_token=NULL, updated_at=NOW() WHERE id=? AND is_deleted=0", id)
}

// HardDelete physically removes the user row.  user_details rows go with it
// via the FK cascade.
func (r *UserRepo) HardDelete(ctx context.Context, id uint64) error {
	return r.exec(ctx, "DELETE FROM users WHERE id=?", id)
}

// exec runs a statement and maps zero affected rows to ErrNotFound.
func (r *UserRepo) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface{ Scan(dest ...interface{}) error }

func (r *UserRepo) scanOne(row *sql.Row) (model.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func scanUser(s rowScanner) (model.User, error) {
	var (
		u         model.User
		refresh   sql.NullString
		deletedAt sql.NullTime
	)
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &refresh, &u.Role,
		&u.IsActive, &u.IsDeleted, &deletedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	if refresh.Valid {
		u.RefreshToken = &refresh.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		u.DeletedAt = &t
	}
	return u, nil
}
