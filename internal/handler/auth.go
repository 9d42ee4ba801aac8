package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/colefenn/tally/internal/auth"
	"github.com/colefenn/tally/internal/middleware"
	"github.com/colefenn/tally/internal/store"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

type AuthHandler struct {
	userStore    *store.UserStore
	homeStore    *store.HomeStore
	sessionStore *store.SessionStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, hs *store.HomeStore, ss *store.SessionStore, rl *middleware.RateLimiter, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		homeStore:    hs,
		sessionStore: ss,
		rateLimiter:  rl,
		logger:       logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	HomeName string `json:"home_name"`
}

// Register creates a user, their first home, the membership joining the
// two, and a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	req.HomeName = strings.TrimSpace(req.HomeName)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "valid email is required")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if req.HomeName == "" {
		writeError(w, http.StatusBadRequest, "home_name is required")
		return
	}

	existing, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("check email", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	user, err := h.userStore.Create(req.Email, req.Name, string(hash))
	if err != nil {
		h.logger.Error("create user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	home, err := h.homeStore.Create(req.HomeName, 0)
	if err != nil {
		h.logger.Error("create home", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if _, err := h.homeStore.AddMember(home.ID, user.ID); err != nil {
		h.logger.Error("add member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	sess, err := h.sessionStore.Create(user.ID, home.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	setSessionCookie(w, sess.Token, sess.ExpiresAt)

	writeJSON(w, http.StatusCreated, map[string]any{
		"user": user,
		"home": home,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	HomeID   *int64 `json:"home_id"`
}

// Login verifies credentials and opens a session bound to one of the
// user's homes: the requested one, or their first home if unspecified.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(middleware.RealIP(r), loginRateLimit, loginRateWindow) {
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.userStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("get user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	hash, err := h.userStore.PasswordHash(user.ID)
	if err != nil {
		h.logger.Error("get password hash", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	var homeID int64
	if req.HomeID != nil {
		membership, err := h.homeStore.GetMembership(*req.HomeID, user.ID)
		if err != nil {
			h.logger.Error("get membership", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to log in")
			return
		}
		if membership == nil {
			writeError(w, http.StatusForbidden, "not a member of that home")
			return
		}
		homeID = *req.HomeID
	} else {
		homes, err := h.homeStore.ListHomesForUser(user.ID)
		if err != nil {
			h.logger.Error("list homes", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to log in")
			return
		}
		if len(homes) == 0 {
			writeError(w, http.StatusForbidden, "no home membership")
			return
		}
		homeID = homes[0].ID
	}

	sess, err := h.sessionStore.Create(user.ID, homeID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to log in")
		return
	}
	setSessionCookie(w, sess.Token, sess.ExpiresAt)

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"home_id": homeID,
	})
}

// Logout deletes the session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessionStore.Delete(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	setSessionCookie(w, "", time.Unix(0, 0))
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user and their active home.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	home, err := h.homeStore.GetByID(ac.HomeID)
	if err != nil || home == nil {
		writeError(w, http.StatusInternalServerError, "failed to load home")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": user,
		"home": home,
	})
}

func setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
