package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

func cleanNotification(n model.Notification) (model.Notification, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	n.Link = strings.TrimSpace(n.Link)
	if n.Title == "" || n.Message == "" {
		return n, fmt.Errorf("%w: title and message are required", ErrInvalidInput)
	}
	return n, nil
}

// SendNotification отправляет уведомление одному амбассадору.
func (s *Service) SendNotification(ctx context.Context, ambassadorID string, n model.Notification) error {
	n, err := cleanNotification(n)
	if err != nil {
		return err
	}
	n.AmbassadorID = ambassadorID
	n.Date = s.now()
	return s.repo.AddNotification(ctx, n)
}

// BroadcastNotification отправляет уведомление всем амбассадорам и возвращает число получателей.
func (s *Service) BroadcastNotification(ctx context.Context, n model.Notification) (int, error) {
	n, err := cleanNotification(n)
	if err != nil {
		return 0, err
	}
	n.Date = s.now()

	count, err := s.repo.BroadcastNotification(ctx, n)
	if err != nil {
		return 0, err
	}
	s.logger.Info("notification broadcast", zap.String("title", n.Title), zap.Int("recipients", count))
	return count, nil
}

// GetNotifications возвращает уведомления амбассадора.
func (s *Service) GetNotifications(ctx context.Context, ambassadorID string) ([]model.Notification, error) {
	return s.repo.GetNotifications(ctx, ambassadorID)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, ambassadorID, id string) error {
	return s.repo.MarkNotificationRead(ctx, ambassadorID, id)
}
