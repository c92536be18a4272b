package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/entitlement"
	"github.com/hashboard/hashboard/internal/middleware"
	"github.com/hashboard/hashboard/internal/store"
)

type AuthHandler struct {
	accounts *store.AccountStore
	sessions *store.SessionStore
	verifier *auth.Verifier
	tokens   *auth.TokenAuthority
	logger   *slog.Logger
}

func NewAuthHandler(
	accounts *store.AccountStore,
	sessions *store.SessionStore,
	verifier *auth.Verifier,
	tokens *auth.TokenAuthority,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		sessions: sessions,
		verifier: verifier,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username and email are required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	account, err := h.accounts.Create(req.Username, req.Email, hash, req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAccount) {
			writeError(w, http.StatusConflict, "username or email already registered")
			return
		}
		h.logger.Error("create account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"username": account.Username,
		"email":    account.Email,
	})
}

// Login verifies credentials and establishes a session. With remember=true a
// signed remember token is also issued.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Remember bool   `json:"remember"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, ok := h.verifier.Authenticate(req.Username, req.Password)
	if !ok {
		// Same response for unknown username and wrong password.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := h.sessions.Create(account.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	middleware.SetSessionCookie(w, r, sess.Token)

	resp := map[string]any{
		"username":    account.Username,
		"entitlement": entitlement.Resolve(account, time.Now().UTC()),
	}
	if req.Remember && h.tokens != nil {
		token, err := h.tokens.CreateRememberToken(account.Username)
		if err != nil {
			h.logger.Error("create remember token", "error", err)
		} else {
			http.SetCookie(w, &http.Cookie{
				Name:     middleware.RememberCookieName,
				Value:    token,
				Path:     "/",
				MaxAge:   int(auth.RememberTokenTTL.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   r.TLS != nil,
			})
			resp["remember_token"] = token
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout destroys the session and clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if sess, err := h.sessions.GetByToken(cookie.Value); err == nil && sess != nil {
			h.sessions.Delete(sess.ID)
		}
	}

	for _, name := range []string{middleware.SessionCookieName, middleware.RememberCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
		})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Session returns the entitlement snapshot for the current session,
// re-resolved by the auth middleware on this request.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username":    ac.Username,
		"entitlement": ac.Entitlement,
	})
}
