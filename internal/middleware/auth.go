// Package middleware содержит HTTP middleware реферального сервиса.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const ambassadorIDKey contextKey = "ambassadorID"

// CookieName задаёт имя cookie сессии амбассадора.
const CookieName = "ambassador_session"

const authCookieTTL = 30 * 24 * time.Hour

// AuthMiddleware проверяет сессию амбассадора по подписанному cookie.
type AuthMiddleware struct {
	secretKey []byte
	secure    bool
}

// NewAuthMiddleware создаёт AuthMiddleware с указанным секретом. Без секрета
// генерируется случайный ключ, и сессии не переживают перезапуск.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// WithSecureCookie включает флаг Secure для cookie сессии.
func (a *AuthMiddleware) WithSecureCookie(secure bool) *AuthMiddleware {
	a.secure = secure
	return a
}

// Middleware проверяет cookie сессии и кладёт идентификатор амбассадора в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		id, ok := a.parseCookie(cookie.Value)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), ambassadorIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie сессии для амбассадора.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, ambassadorID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    a.sign(ambassadorID),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie удаляет cookie сессии.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Идентификатор кодируется в base64url: в нём может встретиться точка-разделитель.
func (a *AuthMiddleware) sign(id string) string {
	encoded := base64.RawURLEncoding.EncodeToString([]byte(id))
	return encoded + "." + a.signature(encoded)
}

func (a *AuthMiddleware) signature(encoded string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(value string) (string, bool) {
	encoded, signature, found := strings.Cut(value, ".")
	if !found || encoded == "" {
		return "", false
	}

	if !hmac.Equal([]byte(signature), []byte(a.signature(encoded))) {
		return "", false
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// GetAmbassadorIDFromContext извлекает идентификатор амбассадора из контекста запроса.
func GetAmbassadorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ambassadorIDKey).(string)
	return id, ok && id != ""
}

// WithAmbassadorID кладёт идентификатор амбассадора в контекст. Используется в тестах обработчиков.
func WithAmbassadorID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ambassadorIDKey, id)
}
