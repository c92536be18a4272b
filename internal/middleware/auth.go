package middleware

import (
	"net/http"
	"time"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/entitlement"
	"github.com/hashboard/hashboard/internal/model"
	"github.com/hashboard/hashboard/internal/store"
)

const (
	// SessionCookieName holds the server-side session token.
	SessionCookieName = "hashboard_session"
	// RememberCookieName holds the signed remember token.
	RememberCookieName = "hashboard_remember"
)

// RequireAuth validates the session cookie, re-resolves the account's
// entitlement for this request, and populates auth.Context. Entitlement is
// never carried over from a previous request: an account whose paid period
// lapsed between requests loses premium access immediately.
//
// When no live session exists but a valid remember token is presented, a
// fresh session is minted and set on the response.
func RequireAuth(sessions *store.SessionStore, accounts *store.AccountStore, tokens *auth.TokenAuthority) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := currentSession(r, sessions)
			if sess == nil {
				sess = resumeFromRememberToken(w, r, sessions, accounts, tokens)
			}
			if sess == nil {
				unauthorized(w)
				return
			}

			account, err := accounts.GetByID(sess.AccountID)
			if err != nil || account == nil {
				unauthorized(w)
				return
			}

			ac := auth.Context{
				AccountID:   account.ID,
				Username:    account.Username,
				SessionID:   sess.ID,
				Entitlement: entitlement.Resolve(account, time.Now().UTC()),
			}
			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentSession(r *http.Request, sessions *store.SessionStore) *model.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := sessions.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return nil
	}
	return sess
}

// resumeFromRememberToken re-establishes a session from a signed remember
// token, if one is present, valid, and still backed by a live account.
func resumeFromRememberToken(w http.ResponseWriter, r *http.Request, sessions *store.SessionStore, accounts *store.AccountStore, tokens *auth.TokenAuthority) *model.Session {
	if tokens == nil {
		return nil
	}
	cookie, err := r.Cookie(RememberCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	username, err := tokens.VerifyRememberToken(cookie.Value)
	if err != nil {
		return nil
	}
	account, err := accounts.GetByUsername(username)
	if err != nil || account == nil {
		return nil
	}
	sess, err := sessions.Create(account.ID)
	if err != nil {
		return nil
	}
	SetSessionCookie(w, r, sess.Token)
	return sess
}

// SetSessionCookie sets the session cookie the way every login path does.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
