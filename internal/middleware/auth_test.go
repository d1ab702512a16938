package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sessionCookie(t *testing.T, m *AuthMiddleware, id string) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	m.SetAuthCookie(w, id)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("no cookies set by SetAuthCookie")
	}
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")

	for _, id := range []string{"uid-42", "firebase.uid.with.dots", "ÉLOÏSE"} {
		t.Run(id, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				got, ok := GetAmbassadorIDFromContext(r.Context())
				if !ok {
					t.Fatalf("ambassador id not in context")
				}
				if got != id {
					t.Fatalf("ambassador id from context = %q, want %q", got, id)
				}
			})

			r := httptest.NewRequest(http.MethodGet, "/api/ambassador/me", nil)
			r.AddCookie(sessionCookie(t, m, id))

			m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

			if !nextCalled {
				t.Fatalf("next handler was not called")
			}
		})
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	forged := sessionCookie(t, other, "uid-42")
	tampered := sessionCookie(t, m, "uid-42")
	encoded, sig, _ := strings.Cut(tampered.Value, ".")
	tampered.Value = encoded + "x." + sig

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "without cookie"},
		{name: "signed with another key", cookie: forged},
		{name: "tampered id", cookie: tampered},
		{name: "no separator", cookie: &http.Cookie{Name: CookieName, Value: "garbage"}},
		{name: "empty id", cookie: &http.Cookie{Name: CookieName, Value: "." + m.signature("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/api/ambassador/me", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}

			m.Middleware(next).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()
			if res.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestClearAuthCookie(t *testing.T) {
	m := NewAuthMiddleware("").WithSecureCookie(true)

	w := httptest.NewRecorder()
	m.ClearAuthCookie(w)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge >= 0 || cookies[0].Value != "" || !cookies[0].Secure {
		t.Fatalf("unexpected cookie: %+v", cookies[0])
	}
}
