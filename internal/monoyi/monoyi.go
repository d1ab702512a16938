// Package monoyi содержит правила конвертации партнёрской валюты в Monoyi.
package monoyi

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Rate задаёт курс: 1 Monoyi = 800 FCFA.
const Rate = 800

var (
	rate      = decimal.NewFromInt(Rate)
	maxMonoyi = decimal.NewFromInt(math.MaxInt64)
)

// ErrInvalidAmount возвращается для отрицательной, нечисловой или слишком большой суммы.
var ErrInvalidAmount = errors.New("invalid amount")

// FromAmount переводит сумму в FCFA в Monoyi с округлением вниз.
// Дробный остаток не начисляется. Результат, не помещающийся в int64, отклоняется.
func FromAmount(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	q := amount.Div(rate).Floor()
	if q.GreaterThan(maxMonoyi) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidAmount, amount.String())
	}
	return q.IntPart(), nil
}

// ToCurrency переводит Monoyi обратно в FCFA.
func ToCurrency(m int64) int64 {
	return m * Rate
}

// ParseAmount разбирает сумму из JSON-значения: числа, json.Number или строки.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, fmt.Errorf("%w: missing", ErrInvalidAmount)
	case float64:
		return decimal.NewFromFloat(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case fmt.Stringer:
		return parseString(t.String())
	case string:
		return parseString(t)
	default:
		return decimal.Zero, fmt.Errorf("%w: unsupported type %T", ErrInvalidAmount, v)
	}
}

func parseString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}
