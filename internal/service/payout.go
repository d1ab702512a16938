package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/metrics"
	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

const (
	titlePayoutRequested = "Demande de retrait reçue"
	titlePayoutSettled   = "Votre demande de retrait a été traitée"
	linkPayouts          = "/dashboard/payouts"
)

// RequestPayout создаёт заявку на вывод. Сумма не списывается до одобрения.
func (s *Service) RequestPayout(ctx context.Context, ambassadorID string, amount int64) (*model.PayoutRequest, error) {
	if amount < s.minPayout {
		return nil, fmt.Errorf("%w: minimum is %d", ErrPayoutTooSmall, s.minPayout)
	}

	a, err := s.repo.GetAmbassador(ctx, ambassadorID)
	if err != nil {
		return nil, err
	}
	if a.Suspended {
		return nil, ErrSuspended
	}
	if a.VerificationStatus != model.VerificationVerified {
		return nil, ErrNotVerified
	}

	method := a.PayoutMethod
	if method == "" {
		method = model.PayoutMethodMobileMoney
	}

	p, err := s.repo.CreatePayout(ctx, model.PayoutRequest{
		AmbassadorID: ambassadorID,
		Amount:       amount,
		Method:       method,
		RequestDate:  s.now(),
	}, model.Notification{
		Title:   titlePayoutRequested,
		Message: fmt.Sprintf("Votre demande de retrait de %d MYI est en cours de traitement.", amount),
		Link:    linkPayouts,
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(model.PayoutPending)).Inc()
	s.logger.Info("payout requested",
		zap.String("ambassadorID", ambassadorID), zap.String("payoutID", p.ID), zap.Int64("amount", amount))
	return p, nil
}

// ApprovePayout одобряет заявку: проверка статуса и баланса, списание и смена статуса
// выполняются одной транзакцией, поэтому повторное одобрение не списывает дважды.
func (s *Service) ApprovePayout(ctx context.Context, ambassadorID, payoutID string) (*model.PayoutRequest, error) {
	p, err := s.repo.ApprovePayout(ctx, ambassadorID, payoutID, s.now(), model.Notification{
		Title:   titlePayoutSettled,
		Message: "Votre retrait a été effectué avec succès.",
		Link:    linkPayouts,
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(model.PayoutCompleted)).Inc()
	metrics.MonoyiPaidOutTotal.Add(float64(p.Amount))
	s.logger.Info("payout approved",
		zap.String("ambassadorID", ambassadorID), zap.String("payoutID", payoutID), zap.Int64("amount", p.Amount))
	return p, nil
}

// RejectPayout отклоняет заявку; баланс не меняется.
func (s *Service) RejectPayout(ctx context.Context, ambassadorID, payoutID, reason string) (*model.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)

	message := "Votre demande de retrait a été refusée."
	if reason != "" {
		message += " Motif : " + reason
	}

	p, err := s.repo.RejectPayout(ctx, ambassadorID, payoutID, reason, s.now(), model.Notification{
		Title:   titlePayoutSettled,
		Message: message,
		Link:    linkPayouts,
	})
	if err != nil {
		return nil, err
	}

	metrics.PayoutsTotal.WithLabelValues(string(model.PayoutFailed)).Inc()
	s.logger.Info("payout rejected",
		zap.String("ambassadorID", ambassadorID), zap.String("payoutID", payoutID), zap.String("reason", reason))
	return p, nil
}

// GetPayouts возвращает историю заявок амбассадора.
func (s *Service) GetPayouts(ctx context.Context, ambassadorID string) ([]model.PayoutRequest, error) {
	return s.repo.GetPayouts(ctx, ambassadorID)
}

// ListPayouts возвращает заявки всех амбассадоров с фильтром по статусу.
func (s *Service) ListPayouts(ctx context.Context, status model.PayoutStatus) ([]model.PayoutRequest, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: payout status %q", ErrInvalidInput, status)
	}
	return s.repo.ListPayouts(ctx, status)
}
