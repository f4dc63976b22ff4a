package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
)

const detailsColumns = "id,user_id,first_name,last_name,address_line1,address_line2,city,state,postal_code,country,phone,is_default,created_at,updated_at"

// UserDetailsRepo persists profile/address rows in the 'user_details' table.
// The store keeps at most one default row per user: writes that set
// is_default run inside a transaction that first unsets the previous default.
type UserDetailsRepo struct{ DB *sql.DB }

func NewUserDetailsRepo(db *sql.DB) *UserDetailsRepo { return &UserDetailsRepo{DB: db} }

// Create inserts a details row for the user and returns its ID.  When the
// row is marked default, the user's previous default is unset in the same
// transaction so two defaults never coexist.
func (r *UserDetailsRepo) Create(ctx context.Context, d model.UserDetails) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if d.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE user_details SET is_default=0, updated_at=NOW() WHERE user_id=? AND is_default=1",
			d.UserID); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_details
		 (user_id, first_name, last_name, address_line1, address_line2, city, state, postal_code, country, phone, is_default)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		d.UserID, d.FirstName, d.LastName, d.AddressLine1, d.AddressLine2,
		d.City, d.State, d.PostalCode, d.Country, d.Phone, d.IsDefault)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListByUser returns all details rows belonging to a user, default first.
func (r *UserDetailsRepo) ListByUser(ctx context.Context, userID uint64) ([]model.UserDetails, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+detailsColumns+" FROM user_details WHERE user_id=? ORDER BY is_default DESC, created_at",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserDetails
	for rows.Next() {
		var d model.UserDetails
		if err := scanDetails(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetByID fetches one details row.  Ownership is not checked here; callers
// compare UserID against the session principal.
func (r *UserDetailsRepo) GetByID(ctx context.Context, id uint64) (model.UserDetails, error) {
	var d model.UserDetails
	err := scanDetails(r.DB.QueryRowContext(ctx,
		"SELECT "+detailsColumns+" FROM user_details WHERE id=? LIMIT 1", id), &d)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserDetails{}, ErrNotFound
	}
	return d, err
}

// Update rewrites a details row owned by userID.  Like Create, promoting a
// row to default demotes the previous default transactionally.
func (r *UserDetailsRepo) Update(ctx context.Context, userID uint64, d model.UserDetails) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if d.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE user_details SET is_default=0, updated_at=NOW() WHERE user_id=? AND is_default=1 AND id<>?",
			userID, d.ID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE user_details SET
		 first_name=?, last_name=?, address_line1=?, address_line2=?, city=?, state=?,
		 postal_code=?, country=?, phone=?, is_default=?, updated_at=NOW()
		 WHERE id=? AND user_id=?`,
		d.FirstName, d.LastName, d.AddressLine1, d.AddressLine2, d.City, d.State,
		d.PostalCode, d.Country, d.Phone, d.IsDefault, d.ID, userID)
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
	return tx.Commit()
}

// Delete removes a details row owned by userID.
func (r *UserDetailsRepo) Delete(ctx context.Context, userID, id uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM user_details WHERE id=? AND user_id=?", id, userID)
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

func scanDetails(s rowScanner, d *model.UserDetails) error {
	return s.Scan(&d.ID, &d.UserID, &d.FirstName, &d.LastName,
		&d.AddressLine1, &d.AddressLine2, &d.City, &d.State,
		&d.PostalCode, &d.Country, &d.Phone, &d.IsDefault,
		&d.CreatedAt, &d.UpdatedAt)
}
