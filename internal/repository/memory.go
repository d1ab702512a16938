package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

// MemoryRepository хранит реестр в памяти для запуска без DATABASE_URI и для тестов.
// Все изменения готовятся на копиях и применяются целиком под одной блокировкой,
// поэтому частично применённого состояния не бывает.
type MemoryRepository struct {
	mu sync.Mutex

	ambassadors   map[string]*model.Ambassador
	codes         map[string]string
	clients       map[string]map[string]*model.ReferredClient
	payouts       map[string]*model.PayoutRequest
	notifications map[string][]model.Notification
	events        map[string]struct{}

	// commitHook вызывается перед применением изменений; ошибка отменяет транзакцию.
	commitHook func() error
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		ambassadors:   make(map[string]*model.Ambassador),
		codes:         make(map[string]string),
		clients:       make(map[string]map[string]*model.ReferredClient),
		payouts:       make(map[string]*model.PayoutRequest),
		notifications: make(map[string][]model.Notification),
		events:        make(map[string]struct{}),
	}
}

// SetCommitHook задаёт функцию, вызываемую перед фиксацией каждой транзакции.
// Используется в тестах для имитации сбоя между чтением и фиксацией.
func (m *MemoryRepository) SetCommitHook(hook func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitHook = hook
}

func (m *MemoryRepository) commit() error {
	if m.commitHook == nil {
		return nil
	}
	if err := m.commitHook(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close закрывает хранилище (для памяти ничего не делает).
func (m *MemoryRepository) Close() error { return nil }

// Ping всегда успешен.
func (m *MemoryRepository) Ping(ctx context.Context) error { return ctx.Err() }

// CreateAmbassador создаёт запись амбассадора.
func (m *MemoryRepository) CreateAmbassador(ctx context.Context, a model.Ambassador) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ambassadors[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrAmbassadorExists, a.ID)
	}
	if a.ReferralCode != "" {
		if _, ok := m.codes[a.ReferralCode]; ok {
			return fmt.Errorf("%w: %s", ErrPromoCodeTaken, a.ReferralCode)
		}
	}
	if err := m.commit(); err != nil {
		return err
	}

	stored := a
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	if stored.VerificationStatus == "" {
		stored.VerificationStatus = model.VerificationNotVerified
	}
	m.ambassadors[a.ID] = &stored
	if a.ReferralCode != "" {
		m.codes[a.ReferralCode] = a.ID
	}
	return nil
}

// GetAmbassador возвращает амбассадора по идентификатору.
func (m *MemoryRepository) GetAmbassador(ctx context.Context, id string) (*model.Ambassador, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[id]
	if !ok {
		return nil, ErrAmbassadorNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAmbassadorByCode возвращает амбассадора по промокоду.
func (m *MemoryRepository) GetAmbassadorByCode(ctx context.Context, code string) (*model.Ambassador, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", ErrAmbassadorNotFound, code)
	}
	cp := *m.ambassadors[id]
	return &cp, nil
}

// PromoCodeExists сообщает, занят ли промокод.
func (m *MemoryRepository) PromoCodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.codes[code]
	return ok, nil
}

// SetPromoCode назначает амбассадору промокод и ссылку.
func (m *MemoryRepository) SetPromoCode(ctx context.Context, id, code, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[id]
	if !ok {
		return ErrAmbassadorNotFound
	}
	if owner, ok := m.codes[code]; ok && owner != id {
		return fmt.Errorf("%w: %s", ErrPromoCodeTaken, code)
	}
	if err := m.commit(); err != nil {
		return err
	}

	if a.ReferralCode != "" {
		delete(m.codes, a.ReferralCode)
	}
	a.ReferralCode = code
	a.ReferralLink = link
	m.codes[code] = id
	return nil
}

// UpdateProfile сохраняет данные завершения регистрации.
func (m *MemoryRepository) UpdateProfile(ctx context.Context, id string, p model.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[id]
	if !ok {
		return ErrAmbassadorNotFound
	}
	a.Country = p.Country
	a.PayoutMethod = p.PayoutMethod
	if p.ReferredBy != "" {
		a.ReferredBy = p.ReferredBy
	}
	return nil
}

// SetVerificationStatus меняет статус проверки профиля.
func (m *MemoryRepository) SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[id]
	if !ok {
		return ErrAmbassadorNotFound
	}
	a.VerificationStatus = status
	return nil
}

// SetSuspended меняет флаг приостановки амбассадора.
func (m *MemoryRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[id]
	if !ok {
		return ErrAmbassadorNotFound
	}
	a.Suspended = suspended
	return nil
}

// ListAmbassadors возвращает всех амбассадоров, новые первыми.
func (m *MemoryRepository) ListAmbassadors(ctx context.Context) ([]model.Ambassador, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]model.Ambassador, 0, len(m.ambassadors))
	for _, a := range m.ambassadors {
		res = append(res, *a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// RecordSignup регистрирует клиента, не сбрасывая существующую запись.
func (m *MemoryRepository) RecordSignup(ctx context.Context, in model.SignupInput) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ambassadors[in.AmbassadorID]; !ok {
		return false, ErrAmbassadorNotFound
	}

	existing := m.clients[in.AmbassadorID][in.ClientID]
	var next model.ReferredClient
	if existing != nil {
		next = *existing
		fillContact(&next, in.ClientName, in.ClientEmail)
	} else {
		next = model.ReferredClient{
			AmbassadorID: in.AmbassadorID,
			ClientID:     in.ClientID,
			Name:         in.ClientName,
			Email:        in.ClientEmail,
			ReferralDate: time.Now().UTC(),
		}
	}

	if err := m.commit(); err != nil {
		return false, err
	}

	m.putClient(next)
	if existing == nil {
		m.addNotification(in.AmbassadorID, in.Notification)
	}
	return existing == nil, nil
}

// RecordActivation атомарно активирует клиента и начисляет Monoyi.
func (m *MemoryRepository) RecordActivation(ctx context.Context, in model.ActivationInput) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[in.AmbassadorID]
	if !ok {
		return false, ErrAmbassadorNotFound
	}
	if in.EventID != "" {
		if _, seen := m.events[in.EventID]; seen {
			return true, nil
		}
	}

	existing := m.clients[in.AmbassadorID][in.ClientID]
	if in.Monoyi < 0 || a.Balance > math.MaxInt64-in.Monoyi ||
		(existing != nil && existing.CommissionEarned > math.MaxInt64-in.Monoyi) {
		return false, ErrBalanceOverflow
	}

	var next model.ReferredClient
	if existing != nil {
		next = *existing
		fillContact(&next, in.ClientName, in.ClientEmail)
		next.IsActive = true
		next.CommissionEarned += in.Monoyi
	} else {
		next = model.ReferredClient{
			AmbassadorID:     in.AmbassadorID,
			ClientID:         in.ClientID,
			Name:             in.ClientName,
			Email:            in.ClientEmail,
			ReferralDate:     time.Now().UTC(),
			IsActive:         true,
			CommissionEarned: in.Monoyi,
		}
	}
	balance := a.Balance + in.Monoyi

	if err := m.commit(); err != nil {
		return false, err
	}

	m.putClient(next)
	a.Balance = balance
	if in.EventID != "" {
		m.events[in.EventID] = struct{}{}
	}
	m.addNotification(in.AmbassadorID, in.Notification)
	return false, nil
}

func fillContact(c *model.ReferredClient, name, email string) {
	if c.Name == "" {
		c.Name = name
	}
	if c.Email == "" {
		c.Email = email
	}
}

func (m *MemoryRepository) putClient(c model.ReferredClient) {
	byClient := m.clients[c.AmbassadorID]
	if byClient == nil {
		byClient = make(map[string]*model.ReferredClient)
		m.clients[c.AmbassadorID] = byClient
	}
	byClient[c.ClientID] = &c
}

// GetClients возвращает приведённых клиентов амбассадора, новые первыми.
func (m *MemoryRepository) GetClients(ctx context.Context, ambassadorID string) ([]model.ReferredClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]model.ReferredClient, 0, len(m.clients[ambassadorID]))
	for _, c := range m.clients[ambassadorID] {
		res = append(res, *c)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].ReferralDate.Equal(res[j].ReferralDate) {
			return res[i].ClientID < res[j].ClientID
		}
		return res[i].ReferralDate.After(res[j].ReferralDate)
	})
	return res, nil
}

// ClientStats возвращает число клиентов, число активных и сумму комиссий.
func (m *MemoryRepository) ClientStats(ctx context.Context, ambassadorID string) (total, active int, lifetime int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients[ambassadorID] {
		total++
		if c.IsActive {
			active++
		}
		lifetime += c.CommissionEarned
	}
	return total, active, lifetime, nil
}

// CreatePayout создаёт заявку на вывод, если сумма не превышает баланс.
func (m *MemoryRepository) CreatePayout(ctx context.Context, p model.PayoutRequest, n model.Notification) (*model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[p.AmbassadorID]
	if !ok {
		return nil, ErrAmbassadorNotFound
	}
	if p.Amount > a.Balance {
		return nil, ErrInsufficientBalance
	}
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	p.Status = model.PayoutPending
	if p.RequestDate.IsZero() {
		p.RequestDate = time.Now().UTC()
	}

	if err := m.commit(); err != nil {
		return nil, err
	}

	stored := p
	m.payouts[p.ID] = &stored
	m.addNotification(p.AmbassadorID, n)

	cp := stored
	return &cp, nil
}

// GetPayouts возвращает заявки амбассадора, новые первыми.
func (m *MemoryRepository) GetPayouts(ctx context.Context, ambassadorID string) ([]model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterPayouts(func(p *model.PayoutRequest) bool { return p.AmbassadorID == ambassadorID }), nil
}

// ListPayouts возвращает заявки всех амбассадоров; пустой статус означает все статусы.
func (m *MemoryRepository) ListPayouts(ctx context.Context, status model.PayoutStatus) ([]model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.filterPayouts(func(p *model.PayoutRequest) bool { return status == "" || p.Status == status }), nil
}

func (m *MemoryRepository) filterPayouts(keep func(*model.PayoutRequest) bool) []model.PayoutRequest {
	var res []model.PayoutRequest
	for _, p := range m.payouts {
		if keep(p) {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].RequestDate.Equal(res[j].RequestDate) {
			return res[i].ID > res[j].ID
		}
		return res[i].RequestDate.After(res[j].RequestDate)
	})
	return res
}

// ApprovePayout одобряет заявку и списывает сумму с баланса.
func (m *MemoryRepository) ApprovePayout(ctx context.Context, ambassadorID, payoutID string, now time.Time, n model.Notification) (*model.PayoutRequest, error) {
	return m.settlePayout(ambassadorID, payoutID, now, model.PayoutCompleted, "", n)
}

// RejectPayout отклоняет заявку без изменения баланса.
func (m *MemoryRepository) RejectPayout(ctx context.Context, ambassadorID, payoutID, reason string, now time.Time, n model.Notification) (*model.PayoutRequest, error) {
	return m.settlePayout(ambassadorID, payoutID, now, model.PayoutFailed, reason, n)
}

func (m *MemoryRepository) settlePayout(ambassadorID, payoutID string, now time.Time, status model.PayoutStatus, reason string, n model.Notification) (*model.PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.ambassadors[ambassadorID]
	if !ok {
		return nil, ErrAmbassadorNotFound
	}
	p, ok := m.payouts[payoutID]
	if !ok || p.AmbassadorID != ambassadorID {
		return nil, ErrPayoutNotFound
	}
	if p.Status != model.PayoutPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrPayoutNotPending, p.ID, p.Status)
	}

	balance := a.Balance
	if status == model.PayoutCompleted {
		if balance < p.Amount {
			return nil, ErrInsufficientBalance
		}
		balance -= p.Amount
	}

	if err := m.commit(); err != nil {
		return nil, err
	}

	a.Balance = balance
	completed := now
	p.Status = status
	p.CompletionDate = &completed
	p.Reason = reason
	m.addNotification(ambassadorID, n)

	cp := *p
	return &cp, nil
}

func (m *MemoryRepository) addNotification(ambassadorID string, n model.Notification) {
	if n.Title == "" {
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}
	n.AmbassadorID = ambassadorID
	m.notifications[ambassadorID] = append(m.notifications[ambassadorID], n)
}

// AddNotification сохраняет уведомление одному амбассадору.
func (m *MemoryRepository) AddNotification(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ambassadors[n.AmbassadorID]; !ok {
		return ErrAmbassadorNotFound
	}
	m.addNotification(n.AmbassadorID, n)
	return nil
}

// BroadcastNotification рассылает уведомление всем амбассадорам.
func (m *MemoryRepository) BroadcastNotification(ctx context.Context, n model.Notification) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.ambassadors {
		cp := n
		cp.ID = ""
		m.addNotification(id, cp)
	}
	return len(m.ambassadors), nil
}

// GetNotifications возвращает уведомления амбассадора, новые первыми.
func (m *MemoryRepository) GetNotifications(ctx context.Context, ambassadorID string) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.notifications[ambassadorID]
	res := make([]model.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		res = append(res, list[i])
	}
	return res, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (m *MemoryRepository) MarkNotificationRead(ctx context.Context, ambassadorID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.notifications[ambassadorID]
	for i := range list {
		if list[i].ID == id {
			list[i].IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}
