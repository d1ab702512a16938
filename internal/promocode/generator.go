// Package promocode генерирует человекочитаемые промокоды амбассадоров.
package promocode

import (
	"context"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// FallbackPrefix подставляется, если в имени меньше двух латинских букв.
	FallbackPrefix = "AMB"

	alphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	prefixLen      = 4
	suffixLen      = 4
	randomAttempts = 10
	clockAttempts  = 5
	digestLen      = 5
)

// Checker проверяет, занят ли промокод.
type Checker interface {
	PromoCodeExists(ctx context.Context, code string) (bool, error)
}

// Generator подбирает свободный промокод в три ступени: имя + случайный суффикс,
// метка времени, дайджест идентификатора амбассадора.
type Generator struct {
	checker Checker
	logger  *zap.Logger
	random  func(n int) string
	now     func() time.Time
}

// NewGenerator создаёт генератор промокодов.
func NewGenerator(checker Checker, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		checker: checker,
		logger:  logger,
		random:  randomString,
		now:     time.Now,
	}
}

// Generate возвращает промокод для амбассадора. Функция не возвращает ошибок:
// при коллизиях качество кода деградирует, но код выдаётся всегда.
func (g *Generator) Generate(ctx context.Context, name, ambassadorID string) string {
	prefix := Prefix(name)

	for i := 0; i < randomAttempts; i++ {
		candidate := prefix + g.random(suffixLen)
		if g.isFree(ctx, candidate) {
			return candidate
		}
		g.logger.Debug("promo code collision", zap.String("candidate", candidate), zap.Int("attempt", i+1))
	}

	for i := 0; i < clockAttempts; i++ {
		candidate := FallbackPrefix + clockTail(g.now()) + g.random(2)
		if g.isFree(ctx, candidate) {
			g.logger.Warn("promo code timestamp fallback used", zap.String("code", candidate))
			return candidate
		}
	}

	code := FallbackPrefix + idDigest(ambassadorID)
	g.logger.Error("promo code identifier fallback used",
		zap.String("code", code), zap.String("ambassadorID", ambassadorID))
	return code
}

func (g *Generator) isFree(ctx context.Context, code string) bool {
	exists, err := g.checker.PromoCodeExists(ctx, code)
	if err != nil {
		// Ошибку хранилища считаем коллизией и переходим к следующей попытке.
		g.logger.Warn("promo code lookup failed", zap.String("candidate", code), zap.Error(err))
		return false
	}
	return !exists
}

// idDigest сворачивает весь идентификатор в digestLen символов base-36.
// Разные идентификаторы с общим началом дают разные коды.
func idDigest(id string) string {
	s := strings.ToUpper(strconv.FormatUint(xxhash.Sum64String(id), 36))
	if len(s) < digestLen {
		s = strings.Repeat("0", digestLen-len(s)) + s
	}
	return s[len(s)-digestLen:]
}

// Prefix строит префикс промокода из отображаемого имени: без диакритики,
// только латинские буквы, верхний регистр, не длиннее четырёх символов.
func Prefix(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	clean, _, err := transform.String(t, name)
	if err != nil {
		clean = name
	}

	var b strings.Builder
	for _, r := range clean {
		if b.Len() == prefixLen {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(unicode.ToUpper(r))
		}
	}

	if b.Len() < 2 {
		return FallbackPrefix
	}
	return b.String()
}

// ReferralLink строит реферальную ссылку из промокода.
func ReferralLink(base, code string) string {
	if code == "" {
		return ""
	}
	return base + code
}

func clockTail(now time.Time) string {
	s := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	if len(s) > 3 {
		s = s[len(s)-3:]
	}
	return s
}

func randomString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
