package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/oauth2"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/model"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/queue"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
)

// Google OAuth endpoints, spelled out so the provider stays an opaque
// collaborator behind plain oauth2.Config.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// googleUserinfoURL is a package variable so tests can point it at a stub
// server.
var googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

const oauthStateCookie = "oauth_state"

// googleProfile is the subset of the userinfo response the service uses.
type googleProfile struct {
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (h *AuthHandler) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.Cfg.GoogleClientID,
		ClientSecret: h.Cfg.GoogleClientSecret,
		RedirectURL:  h.Cfg.GoogleRedirectURL,
		Scopes:       []string{"email", "profile"},
		Endpoint:     googleEndpoint,
	}
}

// Google starts the OAuth login flow.  The account chooser is forced on
// every initiation so a cached provider session is never silently reused.
// A random state value is set in a short-lived cookie and verified on the
// callback.
func (h *AuthHandler) Google(c echo.Context) error {
	if h.Cfg.GoogleClientID == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "oauth not configured"})
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "state generation failed"})
	}
	state := hex.EncodeToString(buf)

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	url := h.oauthConfig().AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
	return c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback finishes the OAuth flow: it checks the state, exchanges
// the code for a token, fetches the profile and resolves or creates the
// user by the profile email.  OAuth accounts are activated immediately and
// store an empty password sentinel, so they can never log in via password.
// A profile without a verified email still proceeds with whatever email the
// provider returned.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.Cfg.GoogleClientID == "" {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "oauth not configured"})
	}

	stateCookie, err := c.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || c.QueryParam("state") != stateCookie.Value {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "state mismatch"})
	}
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tok, err := h.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "code exchange failed"})
	}

	profile, err := fetchGoogleProfile(ctx, h.oauthConfig(), tok)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "profile fetch failed"})
	}

	u, err := h.resolveOAuthUser(ctx, profile.Email)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "resolve user failed"})
	}

	resp, err := h.issueSession(ctx, c, u)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue session failed"})
	}

	h.publish(queue.Event{Type: queue.EventUserLogin, UserID: u.ID, Email: u.Email})
	return c.JSON(http.StatusOK, resp)
}

// resolveOAuthUser finds the user owning the profile email or creates one.
// Repeat logins with the same email resolve the same row.
func (h *AuthHandler) resolveOAuthUser(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := h.Users.GetByEmail(ctx, email)
	if err == nil {
		if !u.IsActive {
			if err := h.Users.SetActive(ctx, u.ID, true); err != nil {
				return model.User{}, err
			}
			u.IsActive = true
		}
		return u, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	uid, err := h.Users.Create(ctx, email, "", model.RoleUser, true, h.Cfg.BcryptCost)
	if err != nil {
		return model.User{}, err
	}
	h.publish(queue.Event{Type: queue.EventUserRegistered, UserID: uid, Email: email})
	return h.Users.GetByID(ctx, uid)
}

func fetchGoogleProfile(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (googleProfile, error) {
	client := conf.Client(ctx, tok)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return googleProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return googleProfile{}, errors.New("userinfo request failed")
	}
	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return googleProfile{}, err
	}
	return p, nil
}
