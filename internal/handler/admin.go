package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/monoyi"
)

// AdminListAmbassadors возвращает всех амбассадоров.
func (h *Handler) AdminListAmbassadors(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListAmbassadors(r.Context())
	if err != nil {
		h.fail(w, err, "list ambassadors error")
		return
	}

	resp := make([]ambassadorResponse, 0, len(list))
	for _, a := range list {
		resp = append(resp, toAmbassadorResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminListPayouts возвращает заявки на вывод с необязательным фильтром ?status=.
func (h *Handler) AdminListPayouts(w http.ResponseWriter, r *http.Request) {
	status := model.PayoutStatus(r.URL.Query().Get("status"))

	list, err := h.service.ListPayouts(r.Context(), status)
	if err != nil {
		h.fail(w, err, "list payouts error", zap.String("status", string(status)))
		return
	}
	writeJSON(w, http.StatusOK, toPayoutsResponse(list))
}

// AdminAssignPromoCode генерирует и назначает новый промокод.
func (h *Handler) AdminAssignPromoCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	a, err := h.service.AssignPromoCode(r.Context(), id)
	if err != nil {
		h.fail(w, err, "assign promo code error", zap.String("ambassadorID", id))
		return
	}
	writeJSON(w, http.StatusOK, toAmbassadorResponse(*a))
}

type promoCodeRequest struct {
	Code string `json:"code"`
}

// AdminUpdatePromoCode назначает заданный промокод.
func (h *Handler) AdminUpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	var req promoCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.UpdatePromoCode(r.Context(), id, req.Code)
	if err != nil {
		h.fail(w, err, "update promo code error", zap.String("ambassadorID", id), zap.String("code", req.Code))
		return
	}
	writeJSON(w, http.StatusOK, toAmbassadorResponse(*a))
}

type creditRequest struct {
	ClientID string `json:"clientId"`
	Amount   any    `json:"amount"`
}

type creditResponse struct {
	Success       bool  `json:"success"`
	MonoyiAwarded int64 `json:"monoyiAwarded"`
}

// AdminManualCredit начисляет комиссию вручную по идентификатору клиента.
func (h *Handler) AdminManualCredit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	var req creditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := monoyi.ParseAmount(req.Amount)
	if err != nil {
		h.fail(w, err, "manual credit rejected", zap.String("ambassadorID", id))
		return
	}

	earned, err := h.service.ManualCredit(r.Context(), id, req.ClientID, amount)
	if err != nil {
		h.fail(w, err, "manual credit error", zap.String("ambassadorID", id), zap.String("clientID", req.ClientID))
		return
	}
	writeJSON(w, http.StatusOK, creditResponse{Success: true, MonoyiAwarded: earned})
}

type verificationRequest struct {
	Status string `json:"status"`
}

// AdminSetVerification меняет статус проверки профиля.
func (h *Handler) AdminSetVerification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	var req verificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetVerificationStatus(r.Context(), id, model.VerificationStatus(req.Status)); err != nil {
		h.fail(w, err, "set verification status error", zap.String("ambassadorID", id))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

type suspensionRequest struct {
	Suspended bool `json:"suspended"`
}

// AdminSetSuspension приостанавливает или восстанавливает амбассадора.
func (h *Handler) AdminSetSuspension(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	var req suspensionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetSuspended(r.Context(), id, req.Suspended); err != nil {
		h.fail(w, err, "set suspension error", zap.String("ambassadorID", id))
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// AdminApprovePayout одобряет заявку и списывает сумму с баланса.
func (h *Handler) AdminApprovePayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")
	payoutID := chi.URLParam(r, "payoutID")

	p, err := h.service.ApprovePayout(r.Context(), id, payoutID)
	if err != nil {
		h.fail(w, err, "approve payout error", zap.String("ambassadorID", id), zap.String("payoutID", payoutID))
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(*p))
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// AdminRejectPayout отклоняет заявку без изменения баланса.
func (h *Handler) AdminRejectPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")
	payoutID := chi.URLParam(r, "payoutID")

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	p, err := h.service.RejectPayout(r.Context(), id, payoutID, req.Reason)
	if err != nil {
		h.fail(w, err, "reject payout error", zap.String("ambassadorID", id), zap.String("payoutID", payoutID))
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(*p))
}

type notificationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func (n notificationRequest) toModel() model.Notification {
	return model.Notification{Title: n.Title, Message: n.Message, Link: n.Link}
}

type broadcastResponse struct {
	Success    bool `json:"success"`
	Recipients int  `json:"recipients"`
}

// AdminBroadcast отправляет уведомление всем амбассадорам.
func (h *Handler) AdminBroadcast(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, err := h.service.BroadcastNotification(r.Context(), req.toModel())
	if err != nil {
		h.fail(w, err, "broadcast notification error")
		return
	}
	writeJSON(w, http.StatusOK, broadcastResponse{Success: true, Recipients: count})
}

// AdminNotify отправляет уведомление одному амбассадору.
func (h *Handler) AdminNotify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ambassadorID")

	var req notificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SendNotification(r.Context(), id, req.toModel()); err != nil {
		h.fail(w, err, "send notification error", zap.String("ambassadorID", id))
		return
	}
	writeJSON(w, http.StatusCreated, okResponse{Success: true})
}
