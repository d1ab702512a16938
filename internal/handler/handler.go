// Package handler содержит HTTP-обработчики API реферального сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/ingest"
	"github.com/mmeshcher/ambassador-ledger/internal/middleware"
	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/monoyi"
	"github.com/mmeshcher/ambassador-ledger/internal/repository"
	"github.com/mmeshcher/ambassador-ledger/internal/service"
)

const maxBodyBytes = 1 << 20

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	RegisterAmbassador(ctx context.Context, id, name, email string) (*model.Ambassador, error)
	Login(ctx context.Context, id, email string) (*model.Ambassador, error)
	Summary(ctx context.Context, id string) (*model.Summary, error)
	UpdateProfile(ctx context.Context, id string, p model.ProfileUpdate) error
	GetClients(ctx context.Context, ambassadorID string) ([]model.ReferredClient, error)

	RequestPayout(ctx context.Context, ambassadorID string, amount int64) (*model.PayoutRequest, error)
	GetPayouts(ctx context.Context, ambassadorID string) ([]model.PayoutRequest, error)

	GetNotifications(ctx context.Context, ambassadorID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, ambassadorID, id string) error

	RecordReferralEvent(ctx context.Context, evt model.ReferralEvent) (model.EventResult, error)
	VerifyPromoCode(ctx context.Context, code string) (*model.Ambassador, error)

	ListAmbassadors(ctx context.Context) ([]model.Ambassador, error)
	ListPayouts(ctx context.Context, status model.PayoutStatus) ([]model.PayoutRequest, error)
	AssignPromoCode(ctx context.Context, id string) (*model.Ambassador, error)
	UpdatePromoCode(ctx context.Context, id, code string) (*model.Ambassador, error)
	ManualCredit(ctx context.Context, ambassadorID, clientID string, amount decimal.Decimal) (int64, error)
	SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error
	SetSuspended(ctx context.Context, id string, suspended bool) error
	ApprovePayout(ctx context.Context, ambassadorID, payoutID string) (*model.PayoutRequest, error)
	RejectPayout(ctx context.Context, ambassadorID, payoutID, reason string) (*model.PayoutRequest, error)
	SendNotification(ctx context.Context, ambassadorID string, n model.Notification) error
	BroadcastNotification(ctx context.Context, n model.Notification) (int, error)
}

// Keys содержит общие секреты партнёра и администратора.
type Keys struct {
	Partner string
	Admin   string
}

// Handler реализует HTTP-обработчики API реферального сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	keys           Keys
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, keys Keys) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		keys:           keys,
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type okResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// decodeJSON читает тело запроса не больше maxBodyBytes; числа сохраняются как json.Number.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// errorStatus сопоставляет ошибку бизнес-логики HTTP-статусу.
func errorStatus(err error) int {
	var fieldsErr *ingest.FieldsError
	switch {
	case errors.As(err, &fieldsErr),
		errors.Is(err, ingest.ErrUnknownEvent),
		errors.Is(err, monoyi.ErrInvalidAmount),
		errors.Is(err, repository.ErrBalanceOverflow),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidPromoCode),
		errors.Is(err, service.ErrPayoutTooSmall),
		errors.Is(err, service.ErrCommissionTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotVerified),
		errors.Is(err, service.ErrSuspended):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrAmbassadorNotFound),
		errors.Is(err, repository.ErrPayoutNotFound),
		errors.Is(err, repository.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, repository.ErrPayoutNotPending),
		errors.Is(err, repository.ErrPromoCodeTaken),
		errors.Is(err, repository.ErrAmbassadorExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail пишет ответ об ошибке. Текст ошибки хранилища в ответ не попадает, только в журнал.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		writeError(w, status, "internal server error")
		return
	}
	h.logger.Debug(msg, append(fields, zap.Error(err), zap.Int("status", status))...)
	writeError(w, status, err.Error())
}

func currentAmbassador(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.GetAmbassadorIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

// Healthz проверяет доступность хранилища.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "ok"})
}

type ambassadorResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	ReferralCode       string `json:"referralCode"`
	ReferralLink       string `json:"referralLink"`
	Balance            int64  `json:"balance"`
	BalanceFCFA        int64  `json:"balanceFcfa"`
	VerificationStatus string `json:"verificationStatus"`
	Country            string `json:"country,omitempty"`
	PayoutMethod       string `json:"payoutMethod,omitempty"`
	ReferredBy         string `json:"referredBy,omitempty"`
	Suspended          bool   `json:"suspended"`
	CreatedAt          string `json:"createdAt"`
}

func toAmbassadorResponse(a model.Ambassador) ambassadorResponse {
	return ambassadorResponse{
		ID:                 a.ID,
		Name:               a.Name,
		Email:              a.Email,
		ReferralCode:       a.ReferralCode,
		ReferralLink:       a.ReferralLink,
		Balance:            a.Balance,
		BalanceFCFA:        monoyi.ToCurrency(a.Balance),
		VerificationStatus: string(a.VerificationStatus),
		Country:            a.Country,
		PayoutMethod:       a.PayoutMethod,
		ReferredBy:         a.ReferredBy,
		Suspended:          a.Suspended,
		CreatedAt:          a.CreatedAt.Format(time.RFC3339),
	}
}

type clientResponse struct {
	ClientID         string `json:"clientId"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	ReferralDate     string `json:"referralDate"`
	IsActive         bool   `json:"isActive"`
	CommissionEarned int64  `json:"commissionEarned"`
}

type payoutResponse struct {
	ID             string  `json:"id"`
	AmbassadorID   string  `json:"ambassadorId"`
	Amount         int64   `json:"amount"`
	Method         string  `json:"method"`
	Status         string  `json:"status"`
	Reason         string  `json:"reason,omitempty"`
	RequestDate    string  `json:"requestDate"`
	CompletionDate *string `json:"completionDate,omitempty"`
}

func toPayoutResponse(p model.PayoutRequest) payoutResponse {
	resp := payoutResponse{
		ID:           p.ID,
		AmbassadorID: p.AmbassadorID,
		Amount:       p.Amount,
		Method:       p.Method,
		Status:       string(p.Status),
		Reason:       p.Reason,
		RequestDate:  p.RequestDate.Format(time.RFC3339),
	}
	if p.CompletionDate != nil {
		s := p.CompletionDate.Format(time.RFC3339)
		resp.CompletionDate = &s
	}
	return resp
}

func toPayoutsResponse(list []model.PayoutRequest) []payoutResponse {
	resp := make([]payoutResponse, 0, len(list))
	for _, p := range list {
		resp = append(resp, toPayoutResponse(p))
	}
	return resp
}

type notificationResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
	Date    string `json:"date"`
	IsRead  bool   `json:"isRead"`
}
