package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/soapyfy/internal/model"
	"github.com/mmeshcher/soapyfy/internal/session"
)

func TestSessionMiddleware_IssuesCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret", false)

	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid, ok := SessionIDFromContext(r.Context())
		if !ok {
			t.Fatalf("session id not in context")
		}
		got = sid
	})

	w := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, strings.HasPrefix(cookies[0].Value, got+"."))
}

func TestSessionMiddleware_ReusesValidCookie(t *testing.T) {
	m := NewSessionMiddleware("test-secret", false)
	sid := session.NewID()

	rec := httptest.NewRecorder()
	m.SetSessionCookie(rec, sid)
	cookie := rec.Result().Cookies()[0]

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ := SessionIDFromContext(r.Context())
		if got != sid {
			t.Fatalf("session id = %q, want %q", got, sid)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(w, r)

	assert.Empty(t, w.Result().Cookies())
}

func TestSessionMiddleware_RejectsForgedCookie(t *testing.T) {
	issuer := NewSessionMiddleware("other-secret", false)
	m := NewSessionMiddleware("test-secret", false)
	sid := session.NewID()

	rec := httptest.NewRecorder()
	issuer.SetSessionCookie(rec, sid)

	tests := []struct {
		name  string
		value string
	}{
		{name: "foreign signature", value: rec.Result().Cookies()[0].Value},
		{name: "no signature", value: sid},
		{name: "not a uuid", value: "42.deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = SessionIDFromContext(r.Context())
			})

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.AddCookie(&http.Cookie{Name: CookieName, Value: tt.value})
			w := httptest.NewRecorder()
			m.Middleware(next).ServeHTTP(w, r)

			assert.NotEqual(t, sid, got)
			assert.NotEmpty(t, got)
			assert.Len(t, w.Result().Cookies(), 1)
		})
	}
}

type stubSessions struct {
	st  *session.State
	err error
}

func (s stubSessions) Session(context.Context, string) (*session.State, error) {
	return s.st, s.err
}

func TestRequireAdmin(t *testing.T) {
	admin := session.NewState()
	admin.Admin = &model.AdminUser{ID: "admin-1", Username: "admin", Role: model.RoleAdmin}

	tests := []struct {
		name     string
		sessions stubSessions
		withSID  bool
		want     int
	}{
		{name: "admin", sessions: stubSessions{st: admin}, withSID: true, want: http.StatusOK},
		{name: "customer", sessions: stubSessions{st: session.NewState()}, withSID: true, want: http.StatusUnauthorized},
		{name: "no session", sessions: stubSessions{st: admin}, want: http.StatusUnauthorized},
		{name: "store down", sessions: stubSessions{err: errors.New("redis down")}, withSID: true, want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			r := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
			if tt.withSID {
				r = r.WithContext(WithSessionID(r.Context(), session.NewID()))
			}
			w := httptest.NewRecorder()
			RequireAdmin(tt.sessions)(next).ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCookieExpiry(t *testing.T) {
	m := NewSessionMiddleware("", true)

	rec := httptest.NewRecorder()
	m.SetSessionCookie(rec, session.NewID())
	c := rec.Result().Cookies()[0]

	assert.True(t, c.Secure)
	assert.True(t, c.Expires.After(time.Now().Add(24*time.Hour)))
}
