package handler

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/config"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/middleware"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/utils"
)

func testCfg() config.Config {
	return config.Config{
		JWTSecret:      "access-test-secret",
		RefreshSecret:  "refresh-test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		CookieName:     "Authentication",
	}
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAuthHandler(testCfg(), repository.NewUserRepo(db), nil, nil), mock
}

func mockUserRow(u model.User) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "email", "password", "refresh_token", "role",
		"is_active", "is_deleted", "deleted_at", "created_at", "updated_at",
	})
	var refresh interface{}
	if u.RefreshToken != nil {
		refresh = *u.RefreshToken
	}
	now := time.Now().UTC()
	rows.AddRow(u.ID, u.Email, u.PasswordHash, refresh, string(u.Role),
		u.IsActive, u.IsDeleted, nil, now, now)
	return rows
}

// doJSON runs a handler against a synthetic request and returns the recorder.
func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string, seed *model.User) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if seed != nil {
		middleware.SetCurrentUser(c, seed)
	}
	require.NoError(t, h(c))
	return rec
}

func TestRegister(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectQuery(`SELECT id FROM users WHERE email=\?`).
		WithArgs("new@x.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("new@x.com", sqlmock.AnyArg(), "USER", false).
		WillReturnResult(sqlmock.NewResult(9, 1))

	rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
		`{"email":"New@X.com","password":"hunter22"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var body struct {
		User userPart `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, uint64(9), body.User.ID)
	assert.Equal(t, model.RoleUser, body.User.Role)
	assert.False(t, body.User.IsActive)
}

func TestRegisterConflict(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectQuery(`SELECT id FROM users WHERE email=\?`).
		WithArgs("taken@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	rec := doJSON(t, h.Register, http.MethodPost, "/v1/auth/register",
		`{"email":"taken@x.com","password":"hunter22"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin(t *testing.T) {
	h, mock := newAuthHandler(t)

	hash, err := utils.HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
		WithArgs("a@x.com").
		WillReturnRows(mockUserRow(model.User{
			ID: 5, Email: "a@x.com", PasswordHash: hash,
			Role: model.RoleUser, IsActive: true,
		}))
	mock.ExpectExec(`UPDATE users SET refresh_token=\?`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
		`{"email":"a@x.com","password":"hunter22"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(5), resp.User.ID)

	// Both tokens verify under their own secret and not the other's.
	cl, err := utils.ParseToken(testCfg().JWTSecret, resp.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), cl.UserID)
	_, err = utils.ParseToken(testCfg().JWTSecret, resp.Refresh.Token)
	assert.Error(t, err)
	_, err = utils.ParseToken(testCfg().RefreshSecret, resp.Refresh.Token)
	assert.NoError(t, err)

	// Web clients get the access token as an HttpOnly cookie too.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "Authentication", cookies[0].Name)
	assert.Equal(t, resp.Access.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLoginRejections(t *testing.T) {
	hash, err := utils.HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("unknown email", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
			WillReturnError(sql.ErrNoRows)
		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"ghost@x.com","password":"hunter22"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid credentials")
	})

	t.Run("wrong password", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
			WillReturnRows(mockUserRow(model.User{
				ID: 5, Email: "a@x.com", PasswordHash: hash,
				Role: model.RoleUser, IsActive: true,
			}))
		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"a@x.com","password":"wrong"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		// Same body as the unknown-email case.
		assert.Contains(t, rec.Body.String(), "invalid credentials")
	})

	t.Run("inactive account", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
			WillReturnRows(mockUserRow(model.User{
				ID: 5, Email: "a@x.com", PasswordHash: hash,
				Role: model.RoleUser, IsActive: false,
			}))
		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"a@x.com","password":"hunter22"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "account not active")
	})

	t.Run("oauth-only account", func(t *testing.T) {
		// Empty password sentinel never verifies, even against "".
		h, mock := newAuthHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE email=\?`).
			WillReturnRows(mockUserRow(model.User{
				ID: 5, Email: "a@x.com", PasswordHash: "",
				Role: model.RoleUser, IsActive: true,
			}))
		rec := doJSON(t, h.Login, http.MethodPost, "/v1/auth/login",
			`{"email":"a@x.com","password":"anything"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRefreshRotation(t *testing.T) {
	h, mock := newAuthHandler(t)

	refresh, err := utils.NewRefreshToken(testCfg().RefreshSecret, 5, 7)
	require.NoError(t, err)
	stored := utils.HashRefreshRaw(refresh.Raw)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
		WithArgs(5).
		WillReturnRows(mockUserRow(model.User{
			ID: 5, Email: "a@x.com", RefreshToken: &stored,
			Role: model.RoleUser, IsActive: true,
		}))
	mock.ExpectExec(`UPDATE users SET refresh_token=\?`).
		WithArgs(sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh",
		`{"refresh_token":"`+refresh.Raw+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, err = utils.ParseToken(testCfg().RefreshSecret, resp.Refresh.Token)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRejections(t *testing.T) {
	t.Run("garbage token", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh",
			`{"refresh_token":"not.a.jwt"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		h, _ := newAuthHandler(t)
		rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh", `{}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("after logout", func(t *testing.T) {
		// Valid signature but no stored hash: the token was revoked.
		h, mock := newAuthHandler(t)
		refresh, err := utils.NewRefreshToken(testCfg().RefreshSecret, 5, 7)
		require.NoError(t, err)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
			WillReturnRows(mockUserRow(model.User{
				ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true,
			}))
		rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh",
			`{"refresh_token":"`+refresh.Raw+`"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("superseded by newer login", func(t *testing.T) {
		h, mock := newAuthHandler(t)
		old, err := utils.NewRefreshToken(testCfg().RefreshSecret, 5, 7)
		require.NoError(t, err)
		otherHash := utils.HashRefreshRaw("a-different-raw-token")
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
			WillReturnRows(mockUserRow(model.User{
				ID: 5, Email: "a@x.com", RefreshToken: &otherHash,
				Role: model.RoleUser, IsActive: true,
			}))
		rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh",
			`{"refresh_token":"`+old.Raw+`"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("access token wrong secret", func(t *testing.T) {
		// An access token presented as a refresh token fails signature
		// verification because the secrets differ.
		h, _ := newAuthHandler(t)
		access, err := utils.NewAccessToken(testCfg().JWTSecret, 5, model.RoleUser, 15)
		require.NoError(t, err)
		rec := doJSON(t, h.Refresh, http.MethodPost, "/v1/auth/refresh",
			`{"refresh_token":"`+access.Token+`"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	h, mock := newAuthHandler(t)

	mock.ExpectExec(`UPDATE users SET refresh_token=NULL`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true}
	rec := doJSON(t, h.Logout, http.MethodPost, "/v1/auth/logout", "", u)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "Authentication", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestMe(t *testing.T) {
	h, _ := newAuthHandler(t)

	u := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleEditor, IsActive: true}
	rec := doJSON(t, h.Me, http.MethodGet, "/v1/me", "", u)
	require.Equal(t, http.StatusOK, rec.Code)

	var got userPart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, model.RoleEditor, got.Role)
}
