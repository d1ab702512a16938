package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestPartnerAuth(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		headers    map[string]string
		wantStatus int
	}{
		{name: "bearer token", secret: "s3cret", headers: map[string]string{"Authorization": "Bearer s3cret"}, wantStatus: http.StatusOK},
		{name: "lowercase bearer", secret: "s3cret", headers: map[string]string{"Authorization": "bearer s3cret"}, wantStatus: http.StatusOK},
		{name: "api key header", secret: "s3cret", headers: map[string]string{"x-api-key": "s3cret"}, wantStatus: http.StatusOK},
		{name: "wrong key", secret: "s3cret", headers: map[string]string{"x-api-key": "s3cret2"}, wantStatus: http.StatusUnauthorized},
		{name: "prefix of key", secret: "s3cret", headers: map[string]string{"Authorization": "Bearer s3c"}, wantStatus: http.StatusUnauthorized},
		{name: "missing credential", secret: "s3cret", wantStatus: http.StatusUnauthorized},
		{name: "unconfigured secret", secret: "", headers: map[string]string{"x-api-key": ""}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/webhooks/referrals", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			PartnerAuth(tt.secret, nil)(http.HandlerFunc(okHandler)).ServeHTTP(w, r)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tt.wantStatus, res.StatusCode)

			if tt.wantStatus != http.StatusOK {
				var body errorBody
				require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
				assert.False(t, body.Success)
				assert.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestPartnerAuth_ConfigurationFaultIsLoggedSeparately(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/referrals", nil)
	PartnerAuth("", logger)(http.HandlerFunc(okHandler)).ServeHTTP(httptest.NewRecorder(), r)

	r = httptest.NewRequest(http.MethodPost, "/api/webhooks/referrals", nil)
	r.Header.Set("x-api-key", "bad")
	PartnerAuth("good", logger)(http.HandlerFunc(okHandler)).ServeHTTP(httptest.NewRecorder(), r)

	configFaults := logs.FilterField(zap.String("fault", "configuration")).All()
	require.Len(t, configFaults, 1)
	assert.Equal(t, zap.ErrorLevel, configFaults[0].Level)

	clientFaults := logs.FilterField(zap.String("fault", "client")).All()
	require.Len(t, clientFaults, 1)
	assert.Equal(t, zap.WarnLevel, clientFaults[0].Level)
}

func TestAdminAuth(t *testing.T) {
	h := AdminAuth("admin-key", zap.NewNop())(http.HandlerFunc(okHandler))

	r := httptest.NewRequest(http.MethodGet, "/api/admin/payouts", nil)
	r.Header.Set("x-api-key", "admin-key")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "admin key is accepted only as bearer token")

	r = httptest.NewRequest(http.MethodGet, "/api/admin/payouts", nil)
	r.Header.Set("Authorization", "Bearer admin-key")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}
