package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/utils"
)

const hmacSecret = "apikey-hmac-test-secret"

// stubKeys satisfies KeyStore with an in-memory map keyed by hash.
type stubKeys struct {
	byHash  map[string]model.APIKey
	touched chan string
}

func (s *stubKeys) GetByHash(_ context.Context, keyHash string) (model.APIKey, error) {
	k, ok := s.byHash[keyHash]
	if !ok {
		return model.APIKey{}, repository.ErrNotFound
	}
	return k, nil
}

func (s *stubKeys) TouchLastUsed(_ context.Context, id string) error {
	if s.touched != nil {
		s.touched <- id
	}
	return nil
}

func TestStaticAPIKey(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	guard := StaticAPIKey("pre-shared", "/open/google")
	e.GET("/closed", ok, guard)
	e.GET("/open/google", ok, guard)

	tests := []struct {
		name   string
		path   string
		key    string
		status int
	}{
		{name: "valid key", path: "/closed", key: "pre-shared", status: http.StatusOK},
		{name: "wrong key", path: "/closed", key: "guessed", status: http.StatusUnauthorized},
		{name: "missing key", path: "/closed", key: "", status: http.StatusUnauthorized},
		{name: "bypass path needs no key", path: "/open/google", key: "", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestDynamicAPIKey(t *testing.T) {
	secret := "fsk_live_key"
	expiredSecret := "fsk_expired_key"
	past := time.Now().UTC().Add(-time.Hour)

	keys := &stubKeys{
		byHash: map[string]model.APIKey{
			utils.HashAPIKey(hmacSecret, secret): {
				ID: "key-1", ClientName: "reporting", IsActive: true,
			},
			utils.HashAPIKey(hmacSecret, expiredSecret): {
				ID: "key-2", IsActive: true, ExpiresAt: &past,
			},
		},
		touched: make(chan string, 1),
	}

	e := echo.New()
	e.GET("/svc", func(c echo.Context) error {
		k := CurrentAPIKey(c)
		require.NotNil(t, k)
		return c.JSON(http.StatusOK, echo.Map{"id": k.ID})
	}, DynamicAPIKey(hmacSecret, keys, nil))

	t.Run("valid key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/svc", nil)
		req.Header.Set(APIKeyHeader, secret)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		select {
		case id := <-keys.touched:
			assert.Equal(t, "key-1", id)
		case <-time.After(2 * time.Second):
			t.Fatal("last_used_at was never touched")
		}
	})

	t.Run("expired key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/svc", nil)
		req.Header.Set(APIKeyHeader, expiredSecret)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/svc", nil)
		req.Header.Set(APIKeyHeader, "fsk_not_a_key")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/svc", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

// A route can require both a service key and a user session; the first
// failing guard short-circuits.
func TestGuardComposition(t *testing.T) {
	secret := "fsk_compose"
	keys := &stubKeys{byHash: map[string]model.APIKey{
		utils.HashAPIKey(hmacSecret, secret): {ID: "key-3", IsActive: true},
	}}
	users := &stubUsers{users: map[uint64]model.User{7: activeUser(7)}}

	e := echo.New()
	e.GET("/both", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	},
		DynamicAPIKey(hmacSecret, keys, nil),
		SessionAuth(SessionConfig{Secret: sessionSecret, CookieName: "Authentication"}, users),
	)

	at, err := utils.NewAccessToken(sessionSecret, 7, model.RoleUser, 5)
	require.NoError(t, err)

	t.Run("key without session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/both", nil)
		req.Header.Set(APIKeyHeader, secret)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session without key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/both", nil)
		req.AddCookie(&http.Cookie{Name: "Authentication", Value: at.Token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("both credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/both", nil)
		req.Header.Set(APIKeyHeader, secret)
		req.AddCookie(&http.Cookie{Name: "Authentication", Value: at.Token})
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
