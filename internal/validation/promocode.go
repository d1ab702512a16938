// Package validation содержит функции валидации входных данных.
package validation

import "strings"

const (
	// PromoCodeMinLen задаёт минимальную длину промокода.
	PromoCodeMinLen = 4
	// PromoCodeMaxLen задаёт максимальную длину промокода.
	PromoCodeMaxLen = 8
)

// NormalizePromoCode приводит промокод к каноническому виду: без пробелов, в верхнем регистре.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidPromoCode проверяет, что промокод состоит из 4–8 символов [A-Z0-9].
func IsValidPromoCode(code string) bool {
	if len(code) < PromoCodeMinLen || len(code) > PromoCodeMaxLen {
		return false
	}

	for i := 0; i < len(code); i++ {
		ch := code[i]
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return false
		}
	}

	return true
}

// IsValidClientID проверяет внешний идентификатор клиента.
func IsValidClientID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= 256 && !strings.Contains(id, "/")
}
