// Package model содержит доменные сущности реферального реестра амбассадоров.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationStatus описывает статус проверки профиля амбассадора.
type VerificationStatus string

const (
	VerificationNotVerified VerificationStatus = "not_verified"
	VerificationPending     VerificationStatus = "pending"
	VerificationVerified    VerificationStatus = "verified"
	VerificationRejected    VerificationStatus = "rejected"
)

// Valid сообщает, является ли статус одним из допустимых значений.
func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationNotVerified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Ambassador представляет зарегистрированного амбассадора и его баланс в Monoyi.
type Ambassador struct {
	ID                 string
	Name               string
	Email              string
	ReferralCode       string
	ReferralLink       string
	Balance            int64
	VerificationStatus VerificationStatus
	Country            string
	PayoutMethod       string
	ReferredBy         string
	Suspended          bool
	CreatedAt          time.Time
}

// ReferredClient описывает клиента, приведённого амбассадором.
// Клиент уникален в паре (AmbassadorID, ClientID).
type ReferredClient struct {
	AmbassadorID     string
	ClientID         string
	Name             string
	Email            string
	ReferralDate     time.Time
	IsActive         bool
	CommissionEarned int64
}

// PayoutStatus описывает статус заявки на вывод средств.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
	PayoutFailed    PayoutStatus = "failed"
)

// Valid сообщает, является ли статус одним из допустимых значений.
func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutPending, PayoutCompleted, PayoutFailed:
		return true
	}
	return false
}

// Payout methods.
const (
	PayoutMethodMobileMoney = "Mobile Money"
	PayoutMethodVisa        = "Visa"
)

// PayoutRequest описывает заявку амбассадора на вывод Monoyi.
type PayoutRequest struct {
	ID             string
	AmbassadorID   string
	Amount         int64
	Method         string
	Status         PayoutStatus
	Reason         string
	RequestDate    time.Time
	CompletionDate *time.Time
}

// Notification описывает уведомление, адресованное амбассадору.
type Notification struct {
	ID           string
	AmbassadorID string
	Title        string
	Message      string
	Link         string
	Date         time.Time
	IsRead       bool
}

// EventKind описывает тип реферального события от партнёра.
type EventKind string

const (
	EventSignup     EventKind = "signup"
	EventActivation EventKind = "activation"
)

// ReferralEvent содержит каноническое событие партнёрской системы после нормализации полей.
type ReferralEvent struct {
	PromoCode   string
	ClientID    string
	Kind        EventKind
	Amount      decimal.Decimal
	ClientName  string
	ClientEmail string
	// EventID не обязателен; если задан, повторная доставка активации отклоняется.
	EventID string
}

// EventResult описывает итог обработки реферального события.
type EventResult struct {
	AmbassadorID  string
	MonoyiAwarded int64
	Duplicate     bool
}

// ActivationInput содержит данные для атомарного начисления комиссии.
type ActivationInput struct {
	AmbassadorID string
	ClientID     string
	ClientName   string
	ClientEmail  string
	Monoyi       int64
	EventID      string
	Notification Notification
}

// SignupInput содержит данные для регистрации приведённого клиента.
type SignupInput struct {
	AmbassadorID string
	ClientID     string
	ClientName   string
	ClientEmail  string
	Notification Notification
}

// ProfileUpdate содержит поля, заполняемые при завершении регистрации.
type ProfileUpdate struct {
	Country      string
	PayoutMethod string
	ReferredBy   string
}

// Summary содержит сводку для панели амбассадора.
type Summary struct {
	Ambassador    Ambassador
	ActiveClients int
	TotalClients  int
	LifetimeEarn  int64
	Level         int
	LevelName     string
}
