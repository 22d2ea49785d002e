package middleware

import (
	"context"
	"net/http"

	"github.com/mmeshcher/soapyfy/internal/session"
)

// SessionReader читает состояние сессии.
type SessionReader interface {
	Session(ctx context.Context, sid string) (*session.State, error)
}

// RequireAdmin пропускает запрос только при активной сессии администратора.
func RequireAdmin(sessions SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, ok := SessionIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			st, err := sessions.Session(r.Context(), sid)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
				return
			}
			if st.Admin == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
