// Package service реализует бизнес-логику реферального реестра амбассадоров.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
	"github.com/mmeshcher/ambassador-ledger/internal/promocode"
	"github.com/mmeshcher/ambassador-ledger/internal/repository"
	"github.com/mmeshcher/ambassador-ledger/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error

	CreateAmbassador(ctx context.Context, a model.Ambassador) error
	GetAmbassador(ctx context.Context, id string) (*model.Ambassador, error)
	GetAmbassadorByCode(ctx context.Context, code string) (*model.Ambassador, error)
	PromoCodeExists(ctx context.Context, code string) (bool, error)
	SetPromoCode(ctx context.Context, id, code, link string) error
	UpdateProfile(ctx context.Context, id string, p model.ProfileUpdate) error
	SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error
	SetSuspended(ctx context.Context, id string, suspended bool) error
	ListAmbassadors(ctx context.Context) ([]model.Ambassador, error)

	RecordSignup(ctx context.Context, in model.SignupInput) (bool, error)
	RecordActivation(ctx context.Context, in model.ActivationInput) (bool, error)
	GetClients(ctx context.Context, ambassadorID string) ([]model.ReferredClient, error)
	ClientStats(ctx context.Context, ambassadorID string) (total, active int, lifetime int64, err error)

	CreatePayout(ctx context.Context, p model.PayoutRequest, n model.Notification) (*model.PayoutRequest, error)
	GetPayouts(ctx context.Context, ambassadorID string) ([]model.PayoutRequest, error)
	ListPayouts(ctx context.Context, status model.PayoutStatus) ([]model.PayoutRequest, error)
	ApprovePayout(ctx context.Context, ambassadorID, payoutID string, now time.Time, n model.Notification) (*model.PayoutRequest, error)
	RejectPayout(ctx context.Context, ambassadorID, payoutID, reason string, now time.Time, n model.Notification) (*model.PayoutRequest, error)

	AddNotification(ctx context.Context, n model.Notification) error
	BroadcastNotification(ctx context.Context, n model.Notification) (int, error)
	GetNotifications(ctx context.Context, ambassadorID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, ambassadorID, id string) error
}

var (
	// ErrInvalidInput возвращается для пустых или некорректных обязательных полей.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidPromoCode возвращается для промокода вне формата 4–8 символов [A-Z0-9].
	ErrInvalidPromoCode = errors.New("invalid promo code")
	// ErrInvalidCredentials возвращается, если идентификатор и email не совпадают.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSuspended возвращается для приостановленного амбассадора.
	ErrSuspended = errors.New("ambassador is suspended")
	// ErrNotVerified возвращается при запросе выплаты без подтверждённого профиля.
	ErrNotVerified = errors.New("ambassador is not verified")
	// ErrPayoutTooSmall возвращается, если сумма меньше минимальной.
	ErrPayoutTooSmall = errors.New("payout amount below minimum")
	// ErrCommissionTooSmall возвращается, если ручное начисление даёт ноль Monoyi.
	ErrCommissionTooSmall = errors.New("commission too small to earn monoyi")
)

const codeWriteAttempts = 3

// Config содержит параметры сервиса, не относящиеся к хранилищу.
type Config struct {
	ReferralBaseURL string
	MinPayout       int64
}

// Service содержит бизнес-логику реферального реестра.
type Service struct {
	repo         Repository
	generator    *promocode.Generator
	logger       *zap.Logger
	referralBase string
	minPayout    int64
	now          func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		generator:    promocode.NewGenerator(repo, logger.Named("promocode")),
		logger:       logger,
		referralBase: cfg.ReferralBaseURL,
		minPayout:    cfg.MinPayout,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// RegisterAmbassador создаёт амбассадора и сразу назначает ему промокод.
func (s *Service) RegisterAmbassador(ctx context.Context, id, name, email string) (*model.Ambassador, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if id == "" || name == "" || email == "" {
		return nil, fmt.Errorf("%w: uid, name and email are required", ErrInvalidInput)
	}

	a := model.Ambassador{
		ID:                 id,
		Name:               name,
		Email:              email,
		VerificationStatus: model.VerificationNotVerified,
		CreatedAt:          s.now(),
	}

	var err error
	for i := 0; i < codeWriteAttempts; i++ {
		a.ReferralCode = s.generator.Generate(ctx, name, id)
		a.ReferralLink = promocode.ReferralLink(s.referralBase, a.ReferralCode)

		err = s.repo.CreateAmbassador(ctx, a)
		if !errors.Is(err, repository.ErrPromoCodeTaken) {
			break
		}
		s.logger.Warn("promo code taken at write time, regenerating",
			zap.String("code", a.ReferralCode), zap.Int("attempt", i+1))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("ambassador registered", zap.String("ambassadorID", id), zap.String("code", a.ReferralCode))
	return &a, nil
}

// Login проверяет, что пара идентификатор/email принадлежит амбассадору.
func (s *Service) Login(ctx context.Context, id, email string) (*model.Ambassador, error) {
	a, err := s.repo.GetAmbassador(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, repository.ErrAmbassadorNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !strings.EqualFold(a.Email, strings.TrimSpace(email)) {
		return nil, ErrInvalidCredentials
	}
	if a.Suspended {
		return nil, ErrSuspended
	}
	return a, nil
}

// GetAmbassador возвращает амбассадора по идентификатору.
func (s *Service) GetAmbassador(ctx context.Context, id string) (*model.Ambassador, error) {
	return s.repo.GetAmbassador(ctx, id)
}

// ListAmbassadors возвращает всех амбассадоров.
func (s *Service) ListAmbassadors(ctx context.Context) ([]model.Ambassador, error) {
	return s.repo.ListAmbassadors(ctx)
}

// Summary возвращает данные панели амбассадора; уровень вычисляется при чтении.
func (s *Service) Summary(ctx context.Context, id string) (*model.Summary, error) {
	a, err := s.repo.GetAmbassador(ctx, id)
	if err != nil {
		return nil, err
	}
	total, active, lifetime, err := s.repo.ClientStats(ctx, id)
	if err != nil {
		return nil, err
	}

	level := model.LevelFor(active)
	return &model.Summary{
		Ambassador:    *a,
		ActiveClients: active,
		TotalClients:  total,
		LifetimeEarn:  lifetime,
		Level:         level,
		LevelName:     model.LevelName(level),
	}, nil
}

// UpdateProfile сохраняет страну, способ выплаты и пригласившего амбассадора.
func (s *Service) UpdateProfile(ctx context.Context, id string, p model.ProfileUpdate) error {
	p.Country = strings.TrimSpace(p.Country)
	p.PayoutMethod = strings.TrimSpace(p.PayoutMethod)
	p.ReferredBy = validation.NormalizePromoCode(p.ReferredBy)

	if p.Country == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidInput)
	}
	switch p.PayoutMethod {
	case model.PayoutMethodMobileMoney, model.PayoutMethodVisa:
	default:
		return fmt.Errorf("%w: unsupported payout method %q", ErrInvalidInput, p.PayoutMethod)
	}
	return s.repo.UpdateProfile(ctx, id, p)
}

// SetVerificationStatus меняет статус проверки профиля (действие администратора).
func (s *Service) SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: verification status %q", ErrInvalidInput, status)
	}
	return s.repo.SetVerificationStatus(ctx, id, status)
}

// SetSuspended приостанавливает или восстанавливает амбассадора (действие администратора).
func (s *Service) SetSuspended(ctx context.Context, id string, suspended bool) error {
	return s.repo.SetSuspended(ctx, id, suspended)
}

// AssignPromoCode генерирует и назначает новый промокод (действие администратора).
func (s *Service) AssignPromoCode(ctx context.Context, id string) (*model.Ambassador, error) {
	a, err := s.repo.GetAmbassador(ctx, id)
	if err != nil {
		return nil, err
	}

	for i := 0; i < codeWriteAttempts; i++ {
		code := s.generator.Generate(ctx, a.Name, a.ID)
		link := promocode.ReferralLink(s.referralBase, code)

		err = s.repo.SetPromoCode(ctx, id, code, link)
		if err == nil {
			a.ReferralCode, a.ReferralLink = code, link
			s.logger.Info("promo code assigned", zap.String("ambassadorID", id), zap.String("code", code))
			return a, nil
		}
		if !errors.Is(err, repository.ErrPromoCodeTaken) {
			return nil, err
		}
		s.logger.Warn("promo code taken at write time, regenerating",
			zap.String("code", code), zap.Int("attempt", i+1))
	}
	return nil, err
}

// UpdatePromoCode назначает амбассадору заданный администратором промокод.
// Ссылка всегда пересчитывается из нового кода.
func (s *Service) UpdatePromoCode(ctx context.Context, id, code string) (*model.Ambassador, error) {
	code = validation.NormalizePromoCode(code)
	if !validation.IsValidPromoCode(code) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPromoCode, code)
	}

	a, err := s.repo.GetAmbassador(ctx, id)
	if err != nil {
		return nil, err
	}

	link := promocode.ReferralLink(s.referralBase, code)
	if err := s.repo.SetPromoCode(ctx, id, code, link); err != nil {
		return nil, err
	}

	s.logger.Info("promo code reassigned",
		zap.String("ambassadorID", id), zap.String("from", a.ReferralCode), zap.String("to", code))
	a.ReferralCode, a.ReferralLink = code, link
	return a, nil
}

// VerifyPromoCode проверяет промокод для партнёра и возвращает его владельца.
func (s *Service) VerifyPromoCode(ctx context.Context, code string) (*model.Ambassador, error) {
	code = validation.NormalizePromoCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if !validation.IsValidPromoCode(code) {
		return nil, fmt.Errorf("%w: code %s", repository.ErrAmbassadorNotFound, code)
	}
	return s.repo.GetAmbassadorByCode(ctx, code)
}

// GetClients возвращает приведённых клиентов амбассадора.
func (s *Service) GetClients(ctx context.Context, ambassadorID string) ([]model.ReferredClient, error) {
	return s.repo.GetClients(ctx, ambassadorID)
}
