// Package ingest приводит входящие события партнёрской системы к каноническому виду.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/monoyi"
	"github.com/mmeshcher/ambassador-ledger/internal/validation"
)

// ErrUnknownEvent возвращается для события, которое не является ни регистрацией, ни активацией.
var ErrUnknownEvent = errors.New("unknown event type")

// FieldsError перечисляет отсутствующие обязательные поля.
type FieldsError struct {
	Fields []string
}

func (e *FieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// Синонимы полей в порядке приоритета.
var (
	codeKeys       = []string{"code", "promoCode", "ambassadorId", "referralCode"}
	eventKeys      = []string{"event", "eventType", "status"}
	clientKeys     = []string{"clientId", "businessId", "clientEmail"}
	amountKeys     = []string{"amount", "commissionAmount"}
	clientNameKeys = []string{"clientName", "name"}
	eventIDKeys    = []string{"eventId", "transactionId", "idempotencyKey"}
)

var eventKinds = map[string]model.EventKind{
	"signup":               model.EventSignup,
	"client_signup":        model.EventSignup,
	"inscrit":              model.EventSignup,
	"activation":           model.EventActivation,
	"subscription_payment": model.EventActivation,
	"actif":                model.EventActivation,
}

// ParseKind сопоставляет партнёрское название события каноническому типу без учёта регистра.
func ParseKind(s string) (model.EventKind, error) {
	kind, ok := eventKinds[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
	return kind, nil
}

// Normalize разбирает тело запроса партнёра в model.ReferralEvent.
// Для активации сумма обязательна и должна быть неотрицательным числом.
func Normalize(payload map[string]any) (model.ReferralEvent, error) {
	var evt model.ReferralEvent

	code := firstString(payload, codeKeys...)
	rawEvent := firstString(payload, eventKeys...)
	clientID := firstString(payload, clientKeys...)

	var missing []string
	if code == "" {
		missing = append(missing, "code")
	}
	if rawEvent == "" {
		missing = append(missing, "event")
	}
	if clientID == "" {
		missing = append(missing, "clientId")
	}
	if len(missing) > 0 {
		return evt, &FieldsError{Fields: missing}
	}

	kind, err := ParseKind(rawEvent)
	if err != nil {
		return evt, err
	}

	evt = model.ReferralEvent{
		PromoCode:   validation.NormalizePromoCode(code),
		ClientID:    clientID,
		Kind:        kind,
		ClientName:  firstString(payload, clientNameKeys...),
		ClientEmail: stringValue(payload["clientEmail"]),
		EventID:     firstString(payload, eventIDKeys...),
		Amount:      decimal.Zero,
	}

	if kind != model.EventActivation {
		return evt, nil
	}

	raw, ok := firstValue(payload, amountKeys...)
	if !ok {
		return evt, &FieldsError{Fields: []string{"amount"}}
	}
	amount, err := monoyi.ParseAmount(raw)
	if err != nil {
		return evt, err
	}
	if amount.IsNegative() {
		return evt, fmt.Errorf("%w: %s", monoyi.ErrInvalidAmount, amount.String())
	}
	evt.Amount = amount
	return evt, nil
}

func firstValue(payload map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := payload[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringValue(payload[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return ""
	}
}
