package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// APIKeyPrefix marks plaintext API key secrets so they are recognizable in
// config files and easy to scrub from logs.
const APIKeyPrefix = "fsk_"

// NewAPIKeySecret returns a high-entropy plaintext API key secret.  The
// secret is shown to the caller exactly once; only its hash is persisted.
func NewAPIKeySecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}

// HashAPIKey returns the HMAC-SHA256 hex digest of a presented key, keyed
// with a server-side secret.  Unlike password hashing this is deterministic:
// API keys are matched by an indexed equality lookup across many rows, not
// verified against one known row.  Keying the hash means a database dump
// alone is not enough to brute-force key material offline.
func HashAPIKey(serverSecret, presented string) string {
	mac := hmac.New(sha256.New, []byte(serverSecret))
	mac.Write([]byte(presented))
	return hex.EncodeToString(mac.Sum(nil))
}
