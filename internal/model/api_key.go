package model

import "time"

// APIKey is a long-lived service-to-service credential as stored in the
// `api_keys` table.  The secret itself is never stored; only its
// deterministic HMAC-SHA256 digest, so presented keys can be matched by an
// indexed equality lookup.  The plaintext secret is returned exactly once at
// creation (and regeneration) time.
//
// Fields:
//
//	ID          – uuid primary key.
//	Name        – friendly name chosen by the owner.
//	Description – optional human-readable description.
//	KeyHash     – HMAC-SHA256 hex digest of the secret.
//	ClientName  – name of the calling service this key was issued for.
//	Permissions – ordered list of scope strings, stored as a JSON array.
//	IsActive    – whether the key currently validates; deactivation is
//	              reversible, unlike deletion.
//	ExpiresAt   – optional expiry; nil means the key never expires.
//	LastUsedAt  – last successful validation time (best effort).
//	UserID      – issuing user, the only principal allowed to mutate the key.
//	CreatedAt   – timestamp of creation.
//	UpdatedAt   – timestamp of last update.
type APIKey struct {
	ID          string     // api_keys.id
	Name        string     // api_keys.name
	Description string     // api_keys.description
	KeyHash     string     // api_keys.key_hash
	ClientName  string     // api_keys.client_name
	Permissions []string   // api_keys.permissions (JSON)
	IsActive    bool       // api_keys.is_active
	ExpiresAt   *time.Time // api_keys.expires_at (nullable)
	LastUsedAt  *time.Time // api_keys.last_used_at (nullable)
	UserID      uint64     // api_keys.user_id
	CreatedAt   time.Time  // api_keys.created_at
	UpdatedAt   time.Time  // api_keys.updated_at
}

// Expired reports whether the key's expiry has passed at the given time.
// Keys without an expiry never expire.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
