package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

type registerRequest struct {
	UID   string `json:"uid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Register создаёт амбассадора с промокодом и открывает сессию.
// Идентификатор выдаётся внешним провайдером идентификации.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.service.RegisterAmbassador(r.Context(), req.UID, req.Name, req.Email)
	if err != nil {
		h.fail(w, err, "register ambassador error", zap.String("uid", req.UID))
		return
	}

	h.authMiddleware.SetAuthCookie(w, a.ID)
	writeJSON(w, http.StatusCreated, toAmbassadorResponse(*a))
}

type loginRequest struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Login открывает сессию амбассадора.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "uid and email are required")
		return
	}

	a, err := h.service.Login(r.Context(), req.UID, req.Email)
	if err != nil {
		h.fail(w, err, "login ambassador error", zap.String("uid", req.UID))
		return
	}

	h.authMiddleware.SetAuthCookie(w, a.ID)
	writeJSON(w, http.StatusOK, toAmbassadorResponse(*a))
}

// Logout закрывает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type summaryResponse struct {
	ambassadorResponse
	ActiveClients       int    `json:"activeClients"`
	TotalClients        int    `json:"totalClients"`
	LifetimeEarn        int64  `json:"lifetimeEarnings"`
	Level               int    `json:"level"`
	LevelName           string `json:"levelName"`
	ClientsForNextLevel int    `json:"clientsForNextLevel"`
}

// Me возвращает профиль, баланс и уровень текущего амбассадора.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	s, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get summary error", zap.String("ambassadorID", id))
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		ambassadorResponse:  toAmbassadorResponse(s.Ambassador),
		ActiveClients:       s.ActiveClients,
		TotalClients:        s.TotalClients,
		LifetimeEarn:        s.LifetimeEarn,
		Level:               s.Level,
		LevelName:           s.LevelName,
		ClientsForNextLevel: model.ClientsForNextLevel(s.ActiveClients),
	})
}

type profileRequest struct {
	Country      string `json:"country"`
	PayoutMethod string `json:"payoutMethod"`
	ReferredBy   string `json:"referredBy"`
}

// UpdateProfile завершает регистрацию амбассадора.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.UpdateProfile(r.Context(), id, model.ProfileUpdate{
		Country:      req.Country,
		PayoutMethod: req.PayoutMethod,
		ReferredBy:   req.ReferredBy,
	})
	if err != nil {
		h.fail(w, err, "update profile error", zap.String("ambassadorID", id))
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Success: true, Message: "Profil mis à jour"})
}

// Clients возвращает приведённых клиентов текущего амбассадора.
func (h *Handler) Clients(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	clients, err := h.service.GetClients(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get clients error", zap.String("ambassadorID", id))
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, clientResponse{
			ClientID:         c.ClientID,
			Name:             c.Name,
			Email:            c.Email,
			ReferralDate:     c.ReferralDate.Format(time.RFC3339),
			IsActive:         c.IsActive,
			CommissionEarned: c.CommissionEarned,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Payouts возвращает историю заявок на вывод текущего амбассадора.
func (h *Handler) Payouts(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	payouts, err := h.service.GetPayouts(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get payouts error", zap.String("ambassadorID", id))
		return
	}
	writeJSON(w, http.StatusOK, toPayoutsResponse(payouts))
}

type payoutRequest struct {
	Amount int64 `json:"amount"`
}

// RequestPayout создаёт заявку на вывод Monoyi.
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	var req payoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a whole number of Monoyi")
		return
	}

	p, err := h.service.RequestPayout(r.Context(), id, req.Amount)
	if err != nil {
		h.fail(w, err, "request payout error", zap.String("ambassadorID", id), zap.Int64("amount", req.Amount))
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutResponse(*p))
}

// Notifications возвращает уведомления текущего амбассадора.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	list, err := h.service.GetNotifications(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get notifications error", zap.String("ambassadorID", id))
		return
	}

	resp := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, notificationResponse{
			ID:      n.ID,
			Title:   n.Title,
			Message: n.Message,
			Link:    n.Link,
			Date:    n.Date.Format(time.RFC3339),
			IsRead:  n.IsRead,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := currentAmbassador(w, r)
	if !ok {
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := h.service.MarkNotificationRead(r.Context(), id, notificationID); err != nil {
		h.fail(w, err, "mark notification read error",
			zap.String("ambassadorID", id), zap.String("notificationID", notificationID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
