// Package account serves the provider login flow, the logged-in check and the
// provider token of the caller.
package account

import (
	"context"
	"net/http"
	"time"

	"github.com/Vasu1712/listenparty-backend/internal/api"
	"github.com/Vasu1712/listenparty-backend/internal/auth"
	"github.com/Vasu1712/listenparty-backend/internal/errs"
	"github.com/Vasu1712/listenparty-backend/internal/middleware"
	"github.com/Vasu1712/listenparty-backend/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stateCookie = "oauth_state"

// Tokens reads and stores the provider token of a user.
type Tokens interface {
	AccessToken(ctx context.Context, username string) (string, error)
	Save(ctx context.Context, username string, tok *models.Token) error
}

// Provider is the music provider's authorization code flow.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*models.Token, error)
	Profile(ctx context.Context, tok *models.Token) (*models.User, error)
}

type Users interface {
	UpsertUser(ctx context.Context, u *models.User) error
}

type Issuer interface {
	Issue(username string) (string, error)
}

type AccountHandler struct {
	Tokens     Tokens
	Provider   Provider
	Users      Users
	Sessions   Issuer
	SessionTTL time.Duration
	// AfterLogin is where the browser lands after login and logout.
	AfterLogin   string
	SecureCookie bool
	Log          *zap.Logger
}

// Login handles GET /api/login and sends the browser to the provider.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.Provider.AuthCodeURL(state), http.StatusFound)
}

// Auth handles GET /api/auth, the provider's redirect back to us. The user
// is created or refreshed, its provider token stored and a session cookie
// set.
func (h *AccountHandler) Auth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		h.Log.Info("login refused by provider", zap.String("reason", reason))
		http.Error(w, "Login was not granted", http.StatusUnauthorized)
		return
	}
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		http.Error(w, "Login state mismatch, try again", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tok, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		h.Log.Error("exchange code", zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	u, err := h.Provider.Profile(ctx, tok)
	if err != nil {
		h.Log.Error("provider profile", zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	if err := h.Users.UpsertUser(ctx, u); err != nil {
		h.Log.Error("upsert user", zap.String("user", u.Username), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	if err := h.Tokens.Save(ctx, u.Username, tok); err != nil {
		h.Log.Error("save provider token", zap.String("user", u.Username), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}
	session, err := h.Sessions.Issue(u.Username)
	if err != nil {
		h.Log.Error("issue session", zap.String("user", u.Username), zap.Error(err))
		api.Error(w, errs.Upstream(err))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/auth", MaxAge: -1})
	h.setSession(w, session, int(h.SessionTTL.Seconds()))
	h.Log.Info("user logged in", zap.String("user", u.Username))
	http.Redirect(w, r, h.AfterLogin, http.StatusFound)
}

// Logout handles GET /api/logout.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setSession(w, "", -1)
	http.Redirect(w, r, h.AfterLogin, http.StatusFound)
}

func (h *AccountHandler) setSession(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoggedIn handles GET /api/logged-in.
func (h *AccountHandler) LoggedIn(w http.ResponseWriter, r *http.Request) {
	_, ok := middleware.Username(r.Context())
	api.JSON(w, http.StatusOK, map[string]bool{"loggedIn": ok})
}

// AccessToken handles GET /api/access_token. The web player needs the
// provider token of the logged in user.
func (h *AccountHandler) AccessToken(w http.ResponseWriter, r *http.Request) {
	username, ok := middleware.Username(r.Context())
	if !ok {
		http.Error(w, "Login required", http.StatusUnauthorized)
		return
	}
	token, err := h.Tokens.AccessToken(r.Context(), username)
	if err != nil {
		h.Log.Warn("access token", zap.String("user", username), zap.Error(err))
		api.Error(w, err)
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"access_token": token})
}
