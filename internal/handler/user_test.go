package handler

import (
	"database/sql"
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

	"github.com/BrianYam/lil-frankenstack-sub001/internal/middleware"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/utils"
)

func newUserHandler(t *testing.T) (*UserHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserHandler(testCfg(), repository.NewUserRepo(db), repository.NewUserDetailsRepo(db)), mock
}

func mockDetailsRow(d model.UserDetails) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "user_id", "first_name", "last_name", "address_line1", "address_line2",
		"city", "state", "postal_code", "country", "phone", "is_default",
		"created_at", "updated_at",
	}).AddRow(d.ID, d.UserID, d.FirstName, d.LastName, d.AddressLine1, d.AddressLine2,
		d.City, d.State, d.PostalCode, d.Country, d.Phone, d.IsDefault, now, now)
}

// doUserReq runs a user handler as the given principal against /users/:id.
func doUserReq(t *testing.T, h echo.HandlerFunc, method, body, id string, caller *model.User) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, "/v1/users", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	if caller != nil {
		middleware.SetCurrentUser(c, caller)
	}
	require.NoError(t, h(c))
	return rec
}

func TestUserGetAccess(t *testing.T) {
	owner := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true}
	admin := &model.User{ID: 1, Email: "root@x.com", Role: model.RoleAdmin, IsActive: true}

	t.Run("owner reads self", func(t *testing.T) {
		h, mock := newUserHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
			WithArgs(5).
			WillReturnRows(mockUserRow(*owner))
		rec := doUserReq(t, h.Get, http.MethodGet, "", "5", owner)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		h, mock := newUserHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM users WHERE id=\?`).
			WithArgs(5).
			WillReturnRows(mockUserRow(*owner))
		rec := doUserReq(t, h.Get, http.MethodGet, "", "5", admin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-owner gets 404 not 403", func(t *testing.T) {
		// No DB hit at all: the id is rejected before the query.
		h, _ := newUserHandler(t)
		rec := doUserReq(t, h.Get, http.MethodGet, "", "6", owner)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUserUpdateRoleChangeIsAdminOnly(t *testing.T) {
	owner := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true}

	t.Run("owner cannot grant roles to self", func(t *testing.T) {
		h, _ := newUserHandler(t)
		rec := doUserReq(t, h.Update, http.MethodPatch, `{"role":"ADMIN"}`, "5", owner)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("owner cannot self-activate", func(t *testing.T) {
		h, _ := newUserHandler(t)
		rec := doUserReq(t, h.Update, http.MethodPatch, `{"is_active":true}`, "5", owner)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin grants role", func(t *testing.T) {
		h, mock := newUserHandler(t)
		admin := &model.User{ID: 1, Role: model.RoleAdmin, IsActive: true}
		mock.ExpectExec(`UPDATE users SET role=\?`).
			WithArgs("EDITOR", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		rec := doUserReq(t, h.Update, http.MethodPatch, `{"role":"editor"}`, "5", admin)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		h, _ := newUserHandler(t)
		admin := &model.User{ID: 1, Role: model.RoleAdmin, IsActive: true}
		rec := doUserReq(t, h.Update, http.MethodPatch, `{"role":"OVERLORD"}`, "5", admin)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestUserUpdateEmail(t *testing.T) {
	h, mock := newUserHandler(t)
	owner := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true}

	mock.ExpectQuery(`SELECT id FROM users WHERE email=\? AND is_deleted=0 AND id<>\?`).
		WithArgs("b@x.com", 5).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`UPDATE users SET email=\?`).
		WithArgs("b@x.com", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rec := doUserReq(t, h.Update, http.MethodPatch, `{"email":" B@X.com "}`, "5", owner)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePassword(t *testing.T) {
	hash, err := utils.HashPassword("old-pass", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		h, mock := newUserHandler(t)
		caller := &model.User{ID: 5, PasswordHash: hash, Role: model.RoleUser, IsActive: true}
		mock.ExpectExec(`UPDATE users SET password=\?`).
			WithArgs(sqlmock.AnyArg(), 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		rec := doUserReq(t, h.ChangePassword, http.MethodPost,
			`{"current_password":"old-pass","new_password":"new-pass"}`, "", caller)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("wrong current password", func(t *testing.T) {
		h, _ := newUserHandler(t)
		caller := &model.User{ID: 5, PasswordHash: hash, Role: model.RoleUser, IsActive: true}
		rec := doUserReq(t, h.ChangePassword, http.MethodPost,
			`{"current_password":"nope","new_password":"new-pass"}`, "", caller)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("oauth-only account has no password", func(t *testing.T) {
		h, _ := newUserHandler(t)
		caller := &model.User{ID: 5, PasswordHash: "", Role: model.RoleUser, IsActive: true}
		rec := doUserReq(t, h.ChangePassword, http.MethodPost,
			`{"current_password":"","new_password":"new-pass"}`, "", caller)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserDelete(t *testing.T) {
	owner := &model.User{ID: 5, Email: "a@x.com", Role: model.RoleUser, IsActive: true}

	t.Run("owner deletes self", func(t *testing.T) {
		h, mock := newUserHandler(t)
		mock.ExpectExec(`UPDATE users SET is_deleted=1`).
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		rec := doUserReq(t, h.Delete, http.MethodDelete, "", "5", owner)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("non-owner gets 404", func(t *testing.T) {
		h, _ := newUserHandler(t)
		rec := doUserReq(t, h.Delete, http.MethodDelete, "", "6", owner)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDetailsOwnership(t *testing.T) {
	caller := &model.User{ID: 7, Email: "a@x.com", Role: model.RoleUser, IsActive: true}

	t.Run("foreign row answers 404", func(t *testing.T) {
		h, mock := newUserHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM user_details WHERE id=\?`).
			WithArgs(21).
			WillReturnRows(mockDetailsRow(model.UserDetails{ID: 21, UserID: 8, FirstName: "Eve"}))
		rec := doUserReq(t, h.GetDetails, http.MethodGet, "", "21", caller)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("own row returned", func(t *testing.T) {
		h, mock := newUserHandler(t)
		mock.ExpectQuery(`SELECT .+ FROM user_details WHERE id=\?`).
			WithArgs(21).
			WillReturnRows(mockDetailsRow(model.UserDetails{ID: 21, UserID: 7, FirstName: "Ada"}))
		rec := doUserReq(t, h.GetDetails, http.MethodGet, "", "21", caller)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Ada")
	})
}
