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

// dbTimeout bounds every persistence call made from a handler.
const dbTimeout = 5 * time.Second

// EventPublisher pushes auth domain events to the broker.  Publishing is
// best effort; handlers ignore the returned error beyond what the publisher
// itself logs.
type EventPublisher interface {
	Publish(ctx context.Context, e queue.Event) error
}

// AuthHandler bundles dependencies for the session endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Events EventPublisher
	Log    *logrus.Logger
}

func NewAuthHandler(cfg config.Config, users *repository.UserRepo, events EventPublisher, log *logrus.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Events: events, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64     `json:"id"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
	IsActive bool       `json:"is_active"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates an email/password account.  New accounts start inactive
// until verified or OAuth-activated, and always with the USER role; roles
// are only granted later by an admin.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleUser, false, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	h.publish(queue.Event{Type: queue.EventUserRegistered, UserID: uid, Email: req.Email})

	return c.JSON(http.StatusCreated, echo.Map{
		"user": userPart{ID: uid, Email: req.Email, Role: model.RoleUser},
	})
}

// Login verifies credentials and issues a fresh token pair.  Lookup misses
// and password mismatches answer the same vague 401 so the response does
// not reveal whether the email exists.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account not active"})
	}

	resp, err := h.issueSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}

	h.publish(queue.Event{Type: queue.EventUserLogin, UserID: u.ID, Email: u.Email})
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the session.  The presented refresh token must carry a
// valid signature AND match the hash stored for the user; signature-only
// verification would keep logged-out tokens alive until expiry.  Every
// failure mode answers the same vague 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	raw := strings.TrimSpace(req.RefreshToken)

	claims, err := utils.ParseToken(h.Cfg.RefreshSecret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if u.RefreshToken == nil || *u.RefreshToken != utils.HashRefreshRaw(raw) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}

	resp, err := h.issueSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout clears the stored refresh hash and expires the auth cookie.  The
// route runs behind the session guard, so the principal is always present.
func (h *AuthHandler) Logout(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if err := h.Users.ClearRefreshHash(ctx, u.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	h.clearAuthCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me returns the session principal.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	if u == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, Role: u.Role, IsActive: u.IsActive})
}

// issueSession mints an access/refresh pair, stores the refresh hash
// (overwriting any previous one, so a user has a single active session) and
// sets the auth cookie for web clients.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshSecret, u.ID, h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Users.SetRefreshHash(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw)); err != nil {
		return authResp{}, err
	}

	h.setAuthCookie(c, access)

	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role, IsActive: u.IsActive},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

func (h *AuthHandler) setAuthCookie(c echo.Context, access utils.AccessToken) {
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.CookieName,
		Value:    access.Token,
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		Expires:  access.Exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearAuthCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// publish sends an event without tying its lifetime to the request.
func (h *AuthHandler) publish(e queue.Event) {
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
