// Package middleware содержит HTTP middleware витрины soapyfy.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/soapyfy/internal/session"
)

type contextKey string

const sessionIDKey contextKey = "sessionID"

const (
	// CookieName имя cookie сессии.
	CookieName = "soapyfy_session"
	cookieTTL  = 30 * 24 * time.Hour
)

// SessionMiddleware выдаёт и проверяет подписанный cookie сессии.
type SessionMiddleware struct {
	secretKey []byte
	secure    bool
}

// NewSessionMiddleware создаёт middleware с указанным секретным ключом.
// Пустой ключ заменяется случайным, и сессии не переживают перезапуск.
func NewSessionMiddleware(secret string, secure bool) *SessionMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("soapyfy-default-secret")
		}
	}

	return &SessionMiddleware{
		secretKey: key,
		secure:    secure,
	}
}

// Middleware кладёт идентификатор сессии в контекст запроса. Если cookie нет
// или подпись неверна, открывается новая сессия.
func (m *SessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if cookie, err := r.Cookie(CookieName); err == nil {
			sid, _ = m.parseCookie(cookie.Value)
		}
		if sid == "" {
			sid = session.NewID()
			m.SetSessionCookie(w, sid)
		}

		ctx := WithSessionID(r.Context(), sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie устанавливает cookie для указанной сессии.
func (m *SessionMiddleware) SetSessionCookie(w http.ResponseWriter, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(sid),
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *SessionMiddleware) sign(sid string) string {
	mac := hmac.New(sha256.New, m.secretKey)
	mac.Write([]byte(sid))
	return sid + "." + hex.EncodeToString(mac.Sum(nil))
}

func (m *SessionMiddleware) parseCookie(value string) (string, bool) {
	sid, signature, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(sid); err != nil {
		return "", false
	}

	_, expected, _ := strings.Cut(m.sign(sid), ".")
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return "", false
	}
	return sid, true
}

// WithSessionID возвращает контекст с идентификатором сессии.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

// SessionIDFromContext извлекает идентификатор сессии из контекста запроса.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(sessionIDKey).(string)
	return sid, ok && sid != ""
}
