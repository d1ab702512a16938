package partner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/handler"
	"github.com/mmeshcher/ambassador-ledger/internal/middleware"
	"github.com/mmeshcher/ambassador-ledger/internal/repository"
	"github.com/mmeshcher/ambassador-ledger/internal/service"
)

func TestSendEvent_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/webhooks/referrals" {
			t.Fatalf("path = %s, want /api/webhooks/referrals", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "secret" {
			t.Fatalf("x-api-key = %q", r.Header.Get("x-api-key"))
		}

		var evt map[string]any
		if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if evt["code"] != "JEANX7K2" || evt["event"] != "activation" || evt["amount"] != "3200" {
			t.Fatalf("unexpected event: %v", evt)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"message":"Paiement traité","ambassadorId":"uid-1","monoyiAwarded":4}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL+"/", "secret")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	amount := decimal.NewFromInt(3200)
	res, err := client.SendEvent(ctx, Event{Code: "JEANX7K2", Event: "activation", ClientID: "biz-42", Amount: &amount})
	if err != nil {
		t.Fatalf("SendEvent error: %v", err)
	}
	if res.MonoyiAwarded == nil || *res.MonoyiAwarded != 4 {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestSendEvent_TooManyRequests(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "secret")

	_, err := client.SendEvent(context.Background(), Event{Code: "JEANX7K2", Event: "signup", ClientID: "biz-1"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusTooManyRequests {
		t.Fatalf("status code = %d, want %d", statusErr.Code, http.StatusTooManyRequests)
	}
	if statusErr.RetryAfter < 5*time.Second {
		t.Fatalf("retryAfter = %v, want at least 5s", statusErr.RetryAfter)
	}
}

func TestSendEvent_ErrorMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"missing required fields: code"}`))
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "secret").SendEvent(context.Background(), Event{})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if statusErr.Message != "missing required fields: code" {
		t.Fatalf("message = %q", statusErr.Message)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	_, err := NewClient("", "").SendEvent(context.Background(), Event{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}
}

func newLedgerServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()

	svc := service.NewService(repository.NewMemoryRepository(), service.Config{
		ReferralBaseURL: "https://ttrgestion.com/?ref=",
		MinPayout:       5,
	}, zap.NewNop())
	h := handler.NewHandler(svc, zap.NewNop(), middleware.NewAuthMiddleware("secret"),
		handler.Keys{Partner: "partner-key", Admin: "admin-key"})

	ts := httptest.NewServer(h.SetupRouter())
	t.Cleanup(ts.Close)
	return ts, svc
}

func TestClient_AgainstLedger(t *testing.T) {
	ts, svc := newLedgerServer(t)
	ctx := context.Background()

	a, err := svc.RegisterAmbassador(ctx, "uid-1", "Jean Dupont", "jean@example.com")
	require.NoError(t, err)

	client := NewClient(ts.URL, "partner-key")

	verify, err := client.VerifyCode(ctx, a.ReferralCode)
	require.NoError(t, err)
	assert.True(t, verify.Valid)
	assert.Equal(t, "Jean Dupont", verify.AmbassadorName)

	verify, err = client.VerifyCode(ctx, "ZZZZ9999")
	require.NoError(t, err)
	assert.False(t, verify.Valid)

	_, err = client.SendEvent(ctx, Event{Code: a.ReferralCode, Event: "signup", ClientID: "biz-1"})
	require.NoError(t, err)

	amount := decimal.RequireFromString("1700.99")
	res, err := client.SendEvent(ctx, Event{Code: a.ReferralCode, Event: "activation", ClientID: "biz-1", Amount: &amount, EventID: "tx-1"})
	require.NoError(t, err)
	require.NotNil(t, res.MonoyiAwarded)
	assert.Equal(t, int64(2), *res.MonoyiAwarded)

	res, err = client.SendEvent(ctx, Event{Code: a.ReferralCode, Event: "activation", ClientID: "biz-1", Amount: &amount, EventID: "tx-1"})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	got, err := svc.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Balance)

	_, err = NewClient(ts.URL, "wrong").SendEvent(ctx, Event{Code: a.ReferralCode, Event: "signup", ClientID: "biz-2"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
}
