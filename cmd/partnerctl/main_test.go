package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_Commands(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/promo/verify":
			_, _ = w.Write([]byte(`{"valid":true,"referralCode":"JEANX7K2","ambassadorName":"Jean"}`))
		case "/api/webhooks/referrals":
			_, _ = w.Write([]byte(`{"success":true,"message":"Paiement traité","ambassadorId":"uid-1","monoyiAwarded":4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "verify", args: []string{"verify", "JEANX7K2"}, want: "JEANX7K2: valid (Jean)\n"},
		{name: "activate", args: []string{"activate", "JEANX7K2", "biz-1", "3200"}, want: "uid-1: Paiement traité\nmonoyi awarded: 4\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(append([]string{"-a", ts.URL, "-k", "key"}, tt.args...), &out, zap.NewNop().Sugar())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.String())
		})
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := [][]string{
		{},
		{"verify"},
		{"activate", "JEANX7K2", "biz-1", "lots"},
		{"refund"},
	}

	for _, args := range tests {
		var out bytes.Buffer
		err := run(append([]string{"-a", "localhost:1"}, args...), &out, zap.NewNop().Sugar())
		assert.Error(t, err, "args %v", args)
	}
}
