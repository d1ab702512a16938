package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const apiKeyHeader = "x-api-key"

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Success: false, Error: msg})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func keysEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// PartnerAuth проверяет общий секрет партнёра из заголовка Authorization: Bearer
// или x-api-key. Ненастроенный секрет считается ошибкой конфигурации сервера (500),
// а не ошибкой клиента (401).
func PartnerAuth(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return requireKey(secret, logger, "partner", func(r *http.Request) string {
		if token := bearerToken(r); token != "" {
			return token
		}
		return strings.TrimSpace(r.Header.Get(apiKeyHeader))
	})
}

// AdminAuth проверяет ключ администратора из заголовка Authorization: Bearer.
func AdminAuth(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	return requireKey(key, logger, "admin", bearerToken)
}

func requireKey(secret string, logger *zap.Logger, realm string, extract func(*http.Request) string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				logger.Error("api key is not configured",
					zap.String("fault", "configuration"),
					zap.String("realm", realm),
					zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "server configuration error")
				return
			}

			got := extract(r)
			if got == "" || !keysEqual(got, secret) {
				logger.Warn("rejected credential",
					zap.String("fault", "client"),
					zap.String("realm", realm),
					zap.String("remote", r.RemoteAddr),
					zap.Bool("present", got != ""))
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
