package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/metrics"
	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/monoyi"
	"github.com/mmeshcher/ambassador-ledger/internal/validation"
)

const (
	titleNewClient  = "Nouveau client !"
	titleCommission = "Commission reçue !"
	linkClients     = "/dashboard/clients"
	linkEarnings    = "/dashboard/earnings"
)

// RecordReferralEvent применяет событие партнёра к реестру.
// Регистрация идемпотентна по ClientID; активация начисляет floor(amount/800) Monoyi
// одной транзакцией и отклоняется как дубликат только при повторном EventID.
func (s *Service) RecordReferralEvent(ctx context.Context, evt model.ReferralEvent) (model.EventResult, error) {
	res, err := s.recordReferralEvent(ctx, evt)

	outcome := metrics.OutcomeApplied
	switch {
	case err != nil:
		outcome = metrics.OutcomeFailed
	case res.Duplicate:
		outcome = metrics.OutcomeDuplicate
	}
	metrics.ReferralEventsTotal.WithLabelValues(string(evt.Kind), outcome).Inc()

	return res, err
}

func (s *Service) recordReferralEvent(ctx context.Context, evt model.ReferralEvent) (model.EventResult, error) {
	var res model.EventResult

	if !validation.IsValidClientID(evt.ClientID) {
		return res, fmt.Errorf("%w: client id %q", ErrInvalidInput, evt.ClientID)
	}

	// Сумма проверяется до обращения к хранилищу.
	var earned int64
	if evt.Kind == model.EventActivation {
		var err error
		earned, err = monoyi.FromAmount(evt.Amount)
		if err != nil {
			return res, err
		}
	}

	a, err := s.repo.GetAmbassadorByCode(ctx, validation.NormalizePromoCode(evt.PromoCode))
	if err != nil {
		return res, err
	}
	res.AmbassadorID = a.ID

	clientLabel := evt.ClientName
	if clientLabel == "" {
		clientLabel = evt.ClientID
	}

	switch evt.Kind {
	case model.EventSignup:
		created, err := s.repo.RecordSignup(ctx, model.SignupInput{
			AmbassadorID: a.ID,
			ClientID:     evt.ClientID,
			ClientName:   evt.ClientName,
			ClientEmail:  evt.ClientEmail,
			Notification: model.Notification{
				Title:   titleNewClient,
				Message: fmt.Sprintf("%s s'est inscrit avec votre code.", clientLabel),
				Link:    linkClients,
			},
		})
		if err != nil {
			return res, fmt.Errorf("record signup: %w", err)
		}
		s.logger.Info("referral signup recorded",
			zap.String("ambassadorID", a.ID), zap.String("clientID", evt.ClientID), zap.Bool("created", created))
		return res, nil

	case model.EventActivation:
		in := model.ActivationInput{
			AmbassadorID: a.ID,
			ClientID:     evt.ClientID,
			ClientName:   evt.ClientName,
			ClientEmail:  evt.ClientEmail,
			Monoyi:       earned,
			EventID:      evt.EventID,
		}
		if earned > 0 {
			in.Notification = commissionNotification(earned, evt.Amount, clientLabel)
		}

		duplicate, err := s.repo.RecordActivation(ctx, in)
		if err != nil {
			return res, fmt.Errorf("record activation: %w", err)
		}
		if duplicate {
			res.Duplicate = true
			s.logger.Info("duplicate activation ignored",
				zap.String("ambassadorID", a.ID), zap.String("eventID", evt.EventID))
			return res, nil
		}

		res.MonoyiAwarded = earned
		metrics.MonoyiCreditedTotal.Add(float64(earned))
		s.logger.Info("referral activation credited",
			zap.String("ambassadorID", a.ID),
			zap.String("clientID", evt.ClientID),
			zap.String("amount", evt.Amount.String()),
			zap.Int64("monoyi", earned))
		return res, nil

	default:
		return res, fmt.Errorf("%w: event kind %q", ErrInvalidInput, evt.Kind)
	}
}

// ManualCredit начисляет комиссию вручную (действие администратора) с той же
// транзакционной дисциплиной, что и активация.
func (s *Service) ManualCredit(ctx context.Context, ambassadorID, clientID string, amount decimal.Decimal) (int64, error) {
	if !validation.IsValidClientID(clientID) {
		return 0, fmt.Errorf("%w: client id %q", ErrInvalidInput, clientID)
	}
	earned, err := monoyi.FromAmount(amount)
	if err != nil {
		return 0, err
	}
	if earned <= 0 {
		return 0, ErrCommissionTooSmall
	}

	_, err = s.repo.RecordActivation(ctx, model.ActivationInput{
		AmbassadorID: ambassadorID,
		ClientID:     clientID,
		Monoyi:       earned,
		Notification: commissionNotification(earned, amount, clientID),
	})
	if err != nil {
		return 0, fmt.Errorf("manual credit: %w", err)
	}

	metrics.MonoyiCreditedTotal.Add(float64(earned))
	s.logger.Info("manual credit applied",
		zap.String("ambassadorID", ambassadorID), zap.String("clientID", clientID), zap.Int64("monoyi", earned))
	return earned, nil
}

func commissionNotification(earned int64, amount decimal.Decimal, client string) model.Notification {
	return model.Notification{
		Title:   titleCommission,
		Message: fmt.Sprintf("Vous avez gagné %d Monoyi (%s FCFA par %s).", earned, amount.String(), client),
		Link:    linkEarnings,
	}
}
