// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Queue name for auth domain events.  Downstream consumers (transactional
// email, Telegram alerting) subscribe here; none of them live in this
// service.
const AuthEventsQueue = "auth.events"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventUserLogin      = "user.login"
	EventAPIKeyCreated  = "apikey.created"
	EventAPIKeyRevoked  = "apikey.revoked"
)

// Event is published when something security-relevant happens to an
// account.  It carries enough information for downstream consumers to
// notify or alert without querying the primary database.  Secrets and
// token material never appear in events.
type Event struct {
	Type   string    `json:"type"`
	UserID uint64    `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	At     time.Time `json:"at"`
	Meta   string    `json:"meta,omitempty"` // e.g. the api key id for key events
}
