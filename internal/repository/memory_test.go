package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

func newMemoryWithAmbassador(t *testing.T, id, code string) *MemoryRepository {
	t.Helper()

	repo := NewMemoryRepository()
	err := repo.CreateAmbassador(context.Background(), model.Ambassador{
		ID:           id,
		Name:         "Jean Dupont",
		Email:        id + "@example.com",
		ReferralCode: code,
	})
	require.NoError(t, err)
	return repo
}

func TestMemory_CreateAmbassadorUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	err := repo.CreateAmbassador(ctx, model.Ambassador{ID: "uid-1", ReferralCode: "OTHER123"})
	assert.ErrorIs(t, err, ErrAmbassadorExists)

	err = repo.CreateAmbassador(ctx, model.Ambassador{ID: "uid-2", ReferralCode: "JEANX7K2"})
	assert.ErrorIs(t, err, ErrPromoCodeTaken)

	exists, err := repo.PromoCodeExists(ctx, "JEANX7K2")
	require.NoError(t, err)
	assert.True(t, exists)

	a, err := repo.GetAmbassadorByCode(ctx, "JEANX7K2")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", a.ID)
	assert.Equal(t, model.VerificationNotVerified, a.VerificationStatus)
}

func TestMemory_SetPromoCodeReleasesOldCode(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	require.NoError(t, repo.SetPromoCode(ctx, "uid-1", "JEAN2026", "https://ttrgestion.com/?ref=JEAN2026"))

	exists, err := repo.PromoCodeExists(ctx, "JEANX7K2")
	require.NoError(t, err)
	assert.False(t, exists)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "JEAN2026", a.ReferralCode)
	assert.Equal(t, "https://ttrgestion.com/?ref=JEAN2026", a.ReferralLink)

	require.NoError(t, repo.CreateAmbassador(ctx, model.Ambassador{ID: "uid-2", ReferralCode: "JEANX7K2"}))
	err = repo.SetPromoCode(ctx, "uid-1", "JEANX7K2", "")
	assert.ErrorIs(t, err, ErrPromoCodeTaken)
}

func TestMemory_SignupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	in := model.SignupInput{
		AmbassadorID: "uid-1",
		ClientID:     "c-1",
		ClientName:   "Boutique Awa",
		Notification: model.Notification{Title: "Nouveau client !", Message: "Boutique Awa"},
	}

	created, err := repo.RecordSignup(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)

	in.ClientEmail = "awa@example.com"
	created, err = repo.RecordSignup(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)

	clients, err := repo.GetClients(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.False(t, clients[0].IsActive)
	assert.Zero(t, clients[0].CommissionEarned)
	assert.Equal(t, "awa@example.com", clients[0].Email)

	notes, err := repo.GetNotifications(ctx, "uid-1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestMemory_SignupAfterActivationKeepsState(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 5})
	require.NoError(t, err)

	_, err = repo.RecordSignup(ctx, model.SignupInput{AmbassadorID: "uid-1", ClientID: "c-1"})
	require.NoError(t, err)

	clients, err := repo.GetClients(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.True(t, clients[0].IsActive)
	assert.Equal(t, int64(5), clients[0].CommissionEarned)
}

func TestMemory_ActivationEventDedupe(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	in := model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 4, EventID: "evt-1"}

	dup, err := repo.RecordActivation(ctx, in)
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = repo.RecordActivation(ctx, in)
	require.NoError(t, err)
	assert.True(t, dup)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.Balance)
}

func TestMemory_ActivationOverflowRejected(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: math.MaxInt64})
	require.NoError(t, err)

	_, err = repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-2", Monoyi: 1, EventID: "evt-1"})
	assert.ErrorIs(t, err, ErrBalanceOverflow)

	_, err = repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-3", Monoyi: -1})
	assert.ErrorIs(t, err, ErrBalanceOverflow)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), a.Balance)

	clients, err := repo.GetClients(ctx, "uid-1")
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	// Отклонённое событие не помечается обработанным.
	_, seen := repo.events["evt-1"]
	assert.False(t, seen)
}

func TestMemory_ActivationUnknownAmbassador(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.RecordActivation(context.Background(), model.ActivationInput{AmbassadorID: "ghost", ClientID: "c-1", Monoyi: 1})
	assert.ErrorIs(t, err, ErrAmbassadorNotFound)
}

func TestMemory_FailedCommitLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	repo.SetCommitHook(func() error { return errors.New("disk full") })

	_, err := repo.RecordActivation(ctx, model.ActivationInput{
		AmbassadorID: "uid-1",
		ClientID:     "c-1",
		Monoyi:       4,
		EventID:      "evt-1",
		Notification: model.Notification{Title: "Commission reçue !"},
	})
	require.Error(t, err)

	repo.SetCommitHook(nil)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Zero(t, a.Balance)

	clients, err := repo.GetClients(ctx, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, clients)

	notes, err := repo.GetNotifications(ctx, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	// После сбоя то же событие должно пройти.
	dup, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 4, EventID: "evt-1"})
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestMemory_ConcurrentActivationsConserveBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 3})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3*workers), a.Balance)

	_, active, lifetime, err := repo.ClientStats(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, active)
	assert.Equal(t, a.Balance, lifetime)
}

func TestMemory_PayoutLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 10})
	require.NoError(t, err)

	_, err = repo.CreatePayout(ctx, model.PayoutRequest{AmbassadorID: "uid-1", Amount: 11}, model.Notification{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	p, err := repo.CreatePayout(ctx, model.PayoutRequest{AmbassadorID: "uid-1", Amount: 6, Method: model.PayoutMethodMobileMoney}, model.Notification{})
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	assert.Equal(t, model.PayoutPending, p.Status)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	approved, err := repo.ApprovePayout(ctx, "uid-1", p.ID, now, model.Notification{Title: "Votre demande de retrait a été traitée"})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutCompleted, approved.Status)
	require.NotNil(t, approved.CompletionDate)
	assert.True(t, approved.CompletionDate.Equal(now))

	_, err = repo.ApprovePayout(ctx, "uid-1", p.ID, now, model.Notification{})
	assert.ErrorIs(t, err, ErrPayoutNotPending)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.Balance)

	pending, err := repo.ListPayouts(ctx, model.PayoutPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := repo.ListPayouts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemory_ApproveRechecksBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 10})
	require.NoError(t, err)

	first, err := repo.CreatePayout(ctx, model.PayoutRequest{AmbassadorID: "uid-1", Amount: 8}, model.Notification{})
	require.NoError(t, err)
	second, err := repo.CreatePayout(ctx, model.PayoutRequest{AmbassadorID: "uid-1", Amount: 8}, model.Notification{})
	require.NoError(t, err)

	_, err = repo.ApprovePayout(ctx, "uid-1", first.ID, time.Now(), model.Notification{})
	require.NoError(t, err)

	_, err = repo.ApprovePayout(ctx, "uid-1", second.ID, time.Now(), model.Notification{})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Balance)
}

func TestMemory_RejectKeepsBalance(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")

	_, err := repo.RecordActivation(ctx, model.ActivationInput{AmbassadorID: "uid-1", ClientID: "c-1", Monoyi: 10})
	require.NoError(t, err)
	p, err := repo.CreatePayout(ctx, model.PayoutRequest{AmbassadorID: "uid-1", Amount: 5}, model.Notification{})
	require.NoError(t, err)

	rejected, err := repo.RejectPayout(ctx, "uid-1", p.ID, "numéro invalide", time.Now(), model.Notification{})
	require.NoError(t, err)
	assert.Equal(t, model.PayoutFailed, rejected.Status)
	assert.Equal(t, "numéro invalide", rejected.Reason)

	a, err := repo.GetAmbassador(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), a.Balance)

	_, err = repo.ApprovePayout(ctx, "uid-2", p.ID, time.Now(), model.Notification{})
	assert.ErrorIs(t, err, ErrAmbassadorNotFound)
}

func TestMemory_Notifications(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryWithAmbassador(t, "uid-1", "JEANX7K2")
	require.NoError(t, repo.CreateAmbassador(ctx, model.Ambassador{ID: "uid-2", ReferralCode: "AWA12345"}))

	n, err := repo.BroadcastNotification(ctx, model.Notification{Title: "Maintenance", Message: "Ce soir"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, repo.AddNotification(ctx, model.Notification{AmbassadorID: "uid-1", Title: "Bravo", Message: "Niveau 2"}))
	assert.ErrorIs(t, repo.AddNotification(ctx, model.Notification{AmbassadorID: "ghost", Title: "x"}), ErrAmbassadorNotFound)

	notes, err := repo.GetNotifications(ctx, "uid-1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "Bravo", notes[0].Title)

	require.NoError(t, repo.MarkNotificationRead(ctx, "uid-1", notes[1].ID))
	assert.ErrorIs(t, repo.MarkNotificationRead(ctx, "uid-2", notes[1].ID), ErrNotificationNotFound)

	notes, err = repo.GetNotifications(ctx, "uid-1")
	require.NoError(t, err)
	assert.True(t, notes[1].IsRead)
	assert.False(t, notes[0].IsRead)
}
