package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/sha256" // SHA-256 hashing for refresh tokens
	"encoding/hex"  // hex encoding of digests
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
)

// Token errors surfaced by ParseToken.  Callers map all of them to an
// unauthenticated response; the distinction exists for logging and tests.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and travel either in the Authentication
// cookie (web clients) or the Authorization header (mobile clients).
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived signed token used to obtain new access
// tokens.  The Raw field is returned to the client; only a SHA-256 hash of it
// is stored on the user row, so issuing a new refresh token invalidates every
// previously issued one.
type RefreshToken struct {
	Raw string    // raw signed token returned to the client
	Exp time.Time // UTC expiration time
}

// Claims is the decoded payload of an access or refresh token.
type Claims struct {
	UserID uint64
	Role   model.Role
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The JWT carries
// the subject (sub), role, expiration (exp) and issued-at (iat) claims.
func NewAccessToken(secret string, userID uint64, role model.Role, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(userID, 10),
		"role": string(role),
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs an HS256 JWT refresh token.  Refresh
// tokens are signed with their own secret so an access token can never be
// presented as a refresh token or vice versa.  The signature alone does not
// make a refresh token valid: the server additionally compares its SHA-256
// hash against the one stored for the user, which is what makes logout and
// rotation effective before the signature expires.
func NewRefreshToken(secret string, userID uint64, ttlDays int) (RefreshToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(userID, 10),
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseToken verifies an HS256 token against the given secret and extracts
// its claims.  Tokens signed with any other algorithm family are rejected.
func ParseToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	switch sub := mc["sub"].(type) {
	case string:
		n, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return Claims{}, ErrMissingClaim
		}
		c.UserID = n
	case float64:
		// Numeric subjects issued by older builds decode as float64.
		c.UserID = uint64(sub)
	default:
		return Claims{}, ErrMissingClaim
	}
	if r, ok := mc["role"].(string); ok {
		c.Role = model.Role(r)
	}
	return c, nil
}

// HashRefreshRaw returns the SHA-256 hash of the raw refresh token as a hex
// string.  Storing only the hash prevents attackers from using stolen
// database rows to refresh sessions.  SHA-256 (not bcrypt) is deliberate:
// the row is located via the token's own subject claim, so no salted
// per-row verification is needed, and signed tokens exceed bcrypt's input
// limit anyway.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
