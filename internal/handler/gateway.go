package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/ingest"
	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/repository"
	"github.com/mmeshcher/ambassador-ledger/internal/service"
)

type referralEventResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	AmbassadorID  string `json:"ambassadorId"`
	MonoyiAwarded *int64 `json:"monoyiAwarded,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

// GatewayInfo отвечает на GET запросом-подсказкой.
func (h *Handler) GatewayInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Referral webhook is active. Use POST."})
}

// ReferralEvent принимает событие партнёрской системы и применяет его к реестру.
func (h *Handler) ReferralEvent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	evt, err := ingest.Normalize(payload)
	if err != nil {
		h.fail(w, err, "referral event rejected")
		return
	}

	res, err := h.service.RecordReferralEvent(r.Context(), evt)
	if err != nil {
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			writeError(w, http.StatusNotFound, "promo code not found")
			return
		}
		h.fail(w, err, "record referral event error",
			zap.String("code", evt.PromoCode),
			zap.String("clientID", evt.ClientID),
			zap.String("kind", string(evt.Kind)))
		return
	}

	resp := referralEventResponse{
		Success:      true,
		AmbassadorID: res.AmbassadorID,
	}
	switch evt.Kind {
	case model.EventSignup:
		resp.Message = "Inscription enregistrée"
	case model.EventActivation:
		resp.Message = "Paiement traité"
		awarded := res.MonoyiAwarded
		resp.MonoyiAwarded = &awarded
		resp.Duplicate = res.Duplicate
	}
	writeJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	Code         string `json:"code"`
	PromoCode    string `json:"promoCode"`
	AmbassadorID string `json:"ambassadorId"`
}

type verifyResponse struct {
	Success        bool   `json:"success"`
	Valid          bool   `json:"valid"`
	IsValid        bool   `json:"isValid"`
	ReferralCode   string `json:"referralCode,omitempty"`
	AmbassadorName string `json:"ambassadorName,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// VerifyInfo отвечает на GET запросом-подсказкой.
func (h *Handler) VerifyInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Promo verification is online. Use POST."})
}

// VerifyPromo проверяет промокод для партнёра перед применением.
func (h *Handler) VerifyPromo(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, verifyResponse{Error: "Code promo requis."})
		return
	}

	code := req.Code
	if code == "" {
		code = req.PromoCode
	}
	if code == "" {
		code = req.AmbassadorID
	}

	a, err := h.service.VerifyPromoCode(r.Context(), code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyResponse{
			Success:        true,
			Valid:          true,
			IsValid:        true,
			ReferralCode:   a.ReferralCode,
			AmbassadorName: a.Name,
			Message:        "Code promo valide.",
		})
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, verifyResponse{Error: "Code promo requis."})
	case errors.Is(err, repository.ErrAmbassadorNotFound):
		writeJSON(w, http.StatusNotFound, verifyResponse{Error: "Code promo invalide."})
	default:
		h.logger.Error("verify promo code error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, verifyResponse{Error: "internal server error"})
	}
}
