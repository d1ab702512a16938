package promocode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ambassador-ledger/internal/validation"
)

type stubChecker struct {
	taken map[string]bool
	// takeAll помечает занятым любой кандидат.
	takeAll bool
	err     error
	calls   int
}

func (s *stubChecker) PromoCodeExists(ctx context.Context, code string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.takeAll || s.taken[code], nil
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain name", in: "Jean Dupont", want: "JEAN"},
		{name: "diacritics stripped", in: "Éloïse", want: "ELOI"},
		{name: "short name kept", in: "Bo", want: "BO"},
		{name: "digits and symbols ignored", in: "a1-b2 c", want: "ABC"},
		{name: "single letter falls back", in: "X", want: FallbackPrefix},
		{name: "no latin letters", in: "123 ---", want: FallbackPrefix},
		{name: "empty", in: "", want: FallbackPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Prefix(tt.in))
		})
	}
}

func TestGenerate_FirstCandidateFree(t *testing.T) {
	checker := &stubChecker{}
	g := NewGenerator(checker, nil)

	code := g.Generate(context.Background(), "Jean Dupont", "uid-1")

	assert.True(t, strings.HasPrefix(code, "JEAN"), "code %q", code)
	assert.Len(t, code, 8)
	assert.True(t, validation.IsValidPromoCode(code), "code %q", code)
	assert.Equal(t, 1, checker.calls)
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	checker := &stubChecker{taken: map[string]bool{"JEANAAAA": true, "JEANBBBB": true}}
	g := NewGenerator(checker, nil)

	suffixes := []string{"AAAA", "BBBB", "CCCC"}
	g.random = func(n int) string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	code := g.Generate(context.Background(), "Jean", "uid-1")
	assert.Equal(t, "JEANCCCC", code)
	assert.Equal(t, 3, checker.calls)
}

func TestGenerate_TimestampFallback(t *testing.T) {
	checker := &stubChecker{}
	g := NewGenerator(checker, nil)
	g.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }

	calls := 0
	g.random = func(n int) string {
		calls++
		return strings.Repeat("Z", n)
	}
	checker.taken = map[string]bool{"JEANZZZZ": true}

	code := g.Generate(context.Background(), "Jean", "uid-1")

	require.True(t, strings.HasPrefix(code, FallbackPrefix), "code %q", code)
	assert.Len(t, code, 8)
	assert.True(t, validation.IsValidPromoCode(code), "code %q", code)
	assert.Equal(t, randomAttempts+1, calls)
}

func TestGenerate_IdentifierFallback(t *testing.T) {
	checker := &stubChecker{takeAll: true}
	g := NewGenerator(checker, nil)

	code := g.Generate(context.Background(), "Jean", "ab-c1d2e3f4")

	assert.Equal(t, FallbackPrefix+idDigest("ab-c1d2e3f4"), code)
	assert.Len(t, code, 8)
	assert.True(t, validation.IsValidPromoCode(code), "code %q", code)
	assert.Equal(t, randomAttempts+clockAttempts, checker.calls)
}

func TestGenerate_IdentifierFallbackDistinguishesSharedPrefix(t *testing.T) {
	checker := &stubChecker{takeAll: true}
	g := NewGenerator(checker, nil)

	seen := make(map[string]string)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("firebase-uid-%04d", i)
		code := g.Generate(context.Background(), "Jean", id)

		require.True(t, validation.IsValidPromoCode(code), "code %q", code)
		prev, dup := seen[code]
		require.False(t, dup, "ids %q and %q share code %q", prev, id, code)
		seen[code] = id
	}

	assert.Equal(t, g.Generate(context.Background(), "Jean", "firebase-uid-0001"),
		g.Generate(context.Background(), "Jean", "firebase-uid-0001"))
}

func TestIDDigest(t *testing.T) {
	for _, id := range []string{"", "x", "x1", "uid12345", strings.Repeat("z", 200)} {
		d := idDigest(id)
		assert.Len(t, d, digestLen, "id %q", id)
		assert.True(t, validation.IsValidPromoCode(FallbackPrefix+d), "id %q digest %q", id, d)
	}
}

func TestGenerate_LookupErrorsDegradeWithoutFailing(t *testing.T) {
	checker := &stubChecker{err: errors.New("connection refused")}
	g := NewGenerator(checker, nil)

	code := g.Generate(context.Background(), "Jean", "uid12345")

	assert.Equal(t, FallbackPrefix+idDigest("uid12345"), code)
}

func TestReferralLink(t *testing.T) {
	assert.Equal(t, "https://ttrgestion.com/?ref=JEANX7K2", ReferralLink("https://ttrgestion.com/?ref=", "JEANX7K2"))
	assert.Equal(t, "", ReferralLink("https://ttrgestion.com/?ref=", ""))
}

func TestRandomStringAlphabet(t *testing.T) {
	s := randomString(64)
	require.Len(t, s, 64)
	for _, r := range s {
		assert.Contains(t, alphabet, string(r))
	}
}
