package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/config"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/middleware"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/queue"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/utils"
)

// APIKeyHandler bundles dependencies for the key management endpoints.
// Every route here runs behind the session guard; the owner of the session
// is the only principal allowed to see or mutate its keys.  All lookups of
// keys owned by someone else answer 404 so key ids cannot be enumerated.
type APIKeyHandler struct {
	Cfg    config.Config
	Keys   *repository.APIKeyRepo
	Events EventPublisher
	Log    *logrus.Logger
}

func NewAPIKeyHandler(cfg config.Config, keys *repository.APIKeyRepo, events EventPublisher, log *logrus.Logger) *APIKeyHandler {
	return &APIKeyHandler{Cfg: cfg, Keys: keys, Events: events, Log: log}
}

// ----- DTOs -----

type createKeyReq struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ClientName  string     `json:"client_name"`
	Permissions []string   `json:"permissions"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// keyPart is the owner-facing view of a key.  The stored hash never leaves
// the server; the plaintext secret appears only in createKeyResp.
type keyPart struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ClientName  string     `json:"client_name"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"is_active"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type createKeyResp struct {
	Key keyPart `json:"key"`
	// Plaintext secret, shown exactly once.  It is never retrievable again.
	Secret string `json:"secret"`
}

// Create issues a new key for the caller.  The secret is generated
// server-side, stored only as its deterministic hash, and returned once.
func (h *APIKeyHandler) Create(c echo.Context) error {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createKeyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}

	secret, err := utils.NewAPIKeySecret()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "secret generation failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Keys.Create(ctx, model.APIKey{
		Name:        req.Name,
		Description: req.Description,
		KeyHash:     utils.HashAPIKey(h.Cfg.APIKeyHMACSecret, secret),
		ClientName:  req.ClientName,
		Permissions: req.Permissions,
		ExpiresAt:   req.ExpiresAt,
		UserID:      caller.ID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}

	h.publish(queue.Event{Type: queue.EventAPIKeyCreated, UserID: caller.ID, Meta: rec.ID})
	return c.JSON(http.StatusCreated, createKeyResp{Key: toKeyPart(rec), Secret: secret})
}

// List returns the caller's keys, newest first.
func (h *APIKeyHandler) List(c echo.Context) error {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	recs, err := h.Keys.ListByUser(ctx, caller.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]keyPart, 0, len(recs))
	for _, k := range recs {
		out = append(out, toKeyPart(k))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one of the caller's keys.
func (h *APIKeyHandler) Get(c echo.Context) error {
	rec, _, errResp := h.ownedKey(c)
	if errResp != nil {
		return errResp(c)
	}
	return c.JSON(http.StatusOK, toKeyPart(rec))
}

// Regenerate swaps in a new secret for an existing key.  The old secret
// stops validating immediately; the new one is shown once.
func (h *APIKeyHandler) Regenerate(c echo.Context) error {
	rec, _, errResp := h.ownedKey(c)
	if errResp != nil {
		return errResp(c)
	}

	secret, err := utils.NewAPIKeySecret()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "secret generation failed"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Keys.ReplaceHash(ctx, rec.ID, utils.HashAPIKey(h.Cfg.APIKeyHMACSecret, secret)); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "regenerate failed"})
	}
	rec, err = h.Keys.GetByID(ctx, rec.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, createKeyResp{Key: toKeyPart(rec), Secret: secret})
}

// Deactivate disables a key without deleting it.  Validation fails for the
// key immediately, ahead of any expires_at.
func (h *APIKeyHandler) Deactivate(c echo.Context) error {
	rec, caller, errResp := h.ownedKey(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Keys.Deactivate(ctx, rec.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "deactivate failed"})
	}
	h.publish(queue.Event{Type: queue.EventAPIKeyRevoked, UserID: caller.ID, Meta: rec.ID})
	return c.NoContent(http.StatusNoContent)
}

// Delete hard-removes a key.
func (h *APIKeyHandler) Delete(c echo.Context) error {
	rec, caller, errResp := h.ownedKey(c)
	if errResp != nil {
		return errResp(c)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Keys.Delete(ctx, rec.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete failed"})
	}
	h.publish(queue.Event{Type: queue.EventAPIKeyRevoked, UserID: caller.ID, Meta: rec.ID})
	return c.NoContent(http.StatusNoContent)
}

// ownedKey loads the key named by :id and confirms the session principal
// owns it.  Missing keys and keys owned by others yield the same 404.
func (h *APIKeyHandler) ownedKey(c echo.Context) (model.APIKey, *model.User, func(echo.Context) error) {
	caller := middleware.CurrentUser(c)
	if caller == nil {
		return model.APIKey{}, nil, func(c echo.Context) error {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
	}
	id := c.Param("id")
	if id == "" {
		return model.APIKey{}, nil, func(c echo.Context) error {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	rec, err := h.Keys.GetByID(ctx, id)
	if err != nil || rec.UserID != caller.ID {
		return model.APIKey{}, nil, func(c echo.Context) error {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
	}
	return rec, caller, nil
}

func (h *APIKeyHandler) publish(e queue.Event) {
	if h.Events == nil {
		return
	}
	e.At = time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
		defer cancel()
		if err := h.Events.Publish(ctx, e); err != nil && h.Log != nil {
			h.Log.WithError(err).WithField("event", e.Type).Warn("publish event failed")
		}
	}()
}

func toKeyPart(k model.APIKey) keyPart {
	return keyPart{
		ID:          k.ID,
		Name:        k.Name,
		Description: k.Description,
		ClientName:  k.ClientName,
		Permissions: k.Permissions,
		IsActive:    k.IsActive,
		ExpiresAt:   k.ExpiresAt,
		LastUsedAt:  k.LastUsedAt,
		CreatedAt:   k.CreatedAt,
	}
}
