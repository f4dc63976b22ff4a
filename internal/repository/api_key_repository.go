package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
)

const apiKeyColumns = "id,name,description,key_hash,client_name,permissions,is_active,expires_at,last_used_at,user_id,created_at,updated_at"

// APIKeyRepo persists service credentials in the 'api_keys' table.  Only the
// deterministic hash of each secret is stored; lookups run as indexed
// equality matches on key_hash.
type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

// Create inserts a key record with the given hash and returns the stored row.
func (r *APIKeyRepo) Create(ctx context.Context, k model.APIKey) (model.APIKey, error) {
	if k.ID == "" {
		k.ID = uuid.NewString()
	}
	perms, err := json.Marshal(k.Permissions)
	if err != nil {
		return model.APIKey{}, err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO api_keys
		 (id, name, description, key_hash, client_name, permissions, is_active, expires_at, user_id)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		k.ID, k.Name, k.Description, k.KeyHash, k.ClientName, string(perms),
		true, nullableTime(k.ExpiresAt), k.UserID)
	if err != nil {
		return model.APIKey{}, err
	}
	return r.GetByID(ctx, k.ID)
}

// GetByID fetches one key row regardless of owner.  Handlers enforce
// ownership and answer ErrNotFound to non-owners so key ids cannot be
// enumerated.
func (r *APIKeyRepo) GetByID(ctx context.Context, id string) (model.APIKey, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE id=? LIMIT 1", id))
}

// GetByHash fetches an active key row by its secret's hash.  Expiry is
// checked by the caller against its own clock so the decision does not
// depend on database time.
func (r *APIKeyRepo) GetByHash(ctx context.Context, keyHash string) (model.APIKey, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash=? AND is_active=1 LIMIT 1", keyHash))
}

// ListByUser returns all keys issued by a user, newest first.  The stored
// hash is included; handlers strip it before responding.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID uint64) ([]model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id=? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ReplaceHash swaps in a freshly generated secret's hash.  The previous
// secret stops validating the moment this statement commits.
func (r *APIKeyRepo) ReplaceHash(ctx context.Context, id, keyHash string) error {
	return r.exec(ctx,
		"UPDATE api_keys SET key_hash=?, is_active=1, updated_at=NOW() WHERE id=?", keyHash, id)
}

// Deactivate soft-disables a key; GetByHash stops matching it immediately,
// even before any expires_at.
func (r *APIKeyRepo) Deactivate(ctx context.Context, id string) error {
	return r.exec(ctx,
		"UPDATE api_keys SET is_active=0, updated_at=NOW() WHERE id=? AND is_active=1", id)
}

// Delete hard-removes a key row.
func (r *APIKeyRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "DELETE FROM api_keys WHERE id=?", id)
}

// TouchLastUsed stamps last_used_at.  Guards call this fire-and-forget; an
// error here never blocks the request.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at=NOW() WHERE id=?", id)
	return err
}

func (r *APIKeyRepo) exec(ctx context.Context, query string, args ...interface{}) error {
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

func (r *APIKeyRepo) scanOne(row *sql.Row) (model.APIKey, error) {
	k, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.APIKey{}, ErrNotFound
	}
	return k, err
}

func scanAPIKey(s rowScanner) (model.APIKey, error) {
	var (
		k         model.APIKey
		perms     sql.NullString
		expiresAt sql.NullTime
		lastUsed  sql.NullTime
	)
	err := s.Scan(&k.ID, &k.Name, &k.Description, &k.KeyHash, &k.ClientName,
		&perms, &k.IsActive, &expiresAt, &lastUsed, &k.UserID,
		&k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return model.APIKey{}, err
	}
	if perms.Valid && perms.String != "" {
		if err := json.Unmarshal([]byte(perms.String), &k.Permissions); err != nil {
			return model.APIKey{}, err
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		k.ExpiresAt = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time.UTC()
		k.LastUsedAt = &t
	}
	return k, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
