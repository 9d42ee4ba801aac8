package middleware

import (
	"net/http"

	"github.com/colefenn/tally/internal/auth"
	"github.com/colefenn/tally/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "tally_session"

// RequireAuth validates the session cookie, verifies the session's user is
// still a member of the session's home, and populates the AuthContext. This
// is the point where "acting user is a member of home X" is established;
// everything behind it can trust the context.
func RequireAuth(sessionStore *store.SessionStore, homeStore *store.HomeStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			membership, err := homeStore.GetMembership(sess.HomeID, sess.UserID)
			if err != nil || membership == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ac := auth.AuthContext{
				UserID:    sess.UserID,
				HomeID:    sess.HomeID,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
