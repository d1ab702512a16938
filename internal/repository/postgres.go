// Package repository содержит реализацию реферального реестра поверх PostgreSQL
// и хранилище в памяти для запуска без базы данных.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/ambassador-ledger/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const referralCodeConstraint = "ambassadors_referral_code_key"

// PostgresRepository предоставляет доступ к реестру в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет транзакцию при конфликте сериализации, взаимной блокировке
// или обрыве соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность базы данных.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

const ambassadorColumns = `id, name, email, COALESCE(referral_code, ''), referral_link, balance,
	verification_status, country, payout_method, referred_by, suspended, created_at`

func scanAmbassador(row scanner) (*model.Ambassador, error) {
	var (
		a      model.Ambassador
		status string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.ReferralCode, &a.ReferralLink, &a.Balance,
		&status, &a.Country, &a.PayoutMethod, &a.ReferredBy, &a.Suspended, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.VerificationStatus = model.VerificationStatus(status)
	return &a, nil
}

// CreateAmbassador создаёт запись амбассадора вместе с промокодом.
// Уникальность промокода обеспечивается индексом, а не предварительной проверкой.
func (r *PostgresRepository) CreateAmbassador(ctx context.Context, a model.Ambassador) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ambassadors (id, name, email, referral_code, referral_link, verification_status, created_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`,
		a.ID, a.Name, a.Email, a.ReferralCode, a.ReferralLink, string(a.VerificationStatus), a.CreatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == referralCodeConstraint {
				return fmt.Errorf("%w: %s", ErrPromoCodeTaken, a.ReferralCode)
			}
			return fmt.Errorf("%w: %s", ErrAmbassadorExists, a.ID)
		}
		return fmt.Errorf("create ambassador: %w", err)
	}
	return nil
}

// GetAmbassador возвращает амбассадора по идентификатору.
func (r *PostgresRepository) GetAmbassador(ctx context.Context, id string) (*model.Ambassador, error) {
	a, err := scanAmbassador(r.pool.QueryRow(ctx,
		`SELECT `+ambassadorColumns+` FROM ambassadors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("get ambassador: %w", err)
	}
	return a, nil
}

// GetAmbassadorByCode возвращает амбассадора по промокоду.
func (r *PostgresRepository) GetAmbassadorByCode(ctx context.Context, code string) (*model.Ambassador, error) {
	a, err := scanAmbassador(r.pool.QueryRow(ctx,
		`SELECT `+ambassadorColumns+` FROM ambassadors WHERE referral_code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrAmbassadorNotFound, code)
		}
		return nil, fmt.Errorf("get ambassador by code: %w", err)
	}
	return a, nil
}

// PromoCodeExists сообщает, занят ли промокод.
func (r *PostgresRepository) PromoCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ambassadors WHERE referral_code = $1)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check promo code: %w", err)
	}
	return exists, nil
}

// SetPromoCode назначает амбассадору промокод и производную от него ссылку.
func (r *PostgresRepository) SetPromoCode(ctx context.Context, id, code, link string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ambassadors SET referral_code = $2, referral_link = $3 WHERE id = $1`,
		id, code, link,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return fmt.Errorf("%w: %s", ErrPromoCodeTaken, code)
		}
		return fmt.Errorf("set promo code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAmbassadorNotFound
	}
	return nil
}

// UpdateProfile сохраняет данные, указанные при завершении регистрации.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, p model.ProfileUpdate) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ambassadors
		 SET country = $2, payout_method = $3, referred_by = COALESCE(NULLIF($4, ''), referred_by)
		 WHERE id = $1`,
		id, p.Country, p.PayoutMethod, p.ReferredBy,
	)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAmbassadorNotFound
	}
	return nil
}

// SetVerificationStatus меняет статус проверки профиля.
func (r *PostgresRepository) SetVerificationStatus(ctx context.Context, id string, status model.VerificationStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ambassadors SET verification_status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("set verification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAmbassadorNotFound
	}
	return nil
}

// SetSuspended меняет флаг приостановки амбассадора.
func (r *PostgresRepository) SetSuspended(ctx context.Context, id string, suspended bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE ambassadors SET suspended = $2 WHERE id = $1`, id, suspended)
	if err != nil {
		return fmt.Errorf("set suspended: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAmbassadorNotFound
	}
	return nil
}

// ListAmbassadors возвращает всех амбассадоров, новые первыми.
func (r *PostgresRepository) ListAmbassadors(ctx context.Context) ([]model.Ambassador, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+ambassadorColumns+` FROM ambassadors ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select ambassadors: %w", err)
	}
	defer rows.Close()

	var res []model.Ambassador
	for rows.Next() {
		a, err := scanAmbassador(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ambassador: %w", err)
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// RecordSignup регистрирует клиента, не сбрасывая уже существующую запись.
// Возвращает true, если запись создана впервые.
func (r *PostgresRepository) RecordSignup(ctx context.Context, in model.SignupInput) (bool, error) {
	var created bool
	err := r.withRetry(ctx, func() error {
		var err error
		created, err = r.recordSignup(ctx, in)
		return err
	})
	return created, err
}

func (r *PostgresRepository) recordSignup(ctx context.Context, in model.SignupInput) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var created bool
	err = tx.QueryRow(ctx,
		`INSERT INTO referred_clients (ambassador_id, client_id, name, email, is_active, commission_earned)
		 VALUES ($1, $2, $3, $4, FALSE, 0)
		 ON CONFLICT (ambassador_id, client_id) DO UPDATE SET
		     name = CASE WHEN referred_clients.name = '' THEN EXCLUDED.name ELSE referred_clients.name END,
		     email = CASE WHEN referred_clients.email = '' THEN EXCLUDED.email ELSE referred_clients.email END
		 RETURNING (xmax = 0)`,
		in.AmbassadorID, in.ClientID, in.ClientName, in.ClientEmail,
	).Scan(&created)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return false, ErrAmbassadorNotFound
		}
		return false, fmt.Errorf("upsert referred client: %w", err)
	}

	if created {
		n := in.Notification
		n.AmbassadorID = in.AmbassadorID
		if err := insertNotificationTx(ctx, tx, n); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

func isOutOfRange(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.NumericValueOutOfRange
}

// RecordActivation атомарно активирует клиента, увеличивает его комиссию и баланс
// амбассадора и пишет уведомление. Возвращает true, если событие с таким EventID
// уже было обработано; в этом случае состояние не меняется.
func (r *PostgresRepository) RecordActivation(ctx context.Context, in model.ActivationInput) (bool, error) {
	var duplicate bool
	err := r.withRetry(ctx, func() error {
		var err error
		duplicate, err = r.recordActivation(ctx, in)
		return err
	})
	return duplicate, err
}

func (r *PostgresRepository) recordActivation(ctx context.Context, in model.ActivationInput) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Строка амбассадора блокируется первой, чтобы конкурирующие начисления
	// и выплаты одного амбассадора выстраивались в одном порядке.
	tag, err := tx.Exec(ctx,
		`UPDATE ambassadors SET balance = balance + $2 WHERE id = $1`,
		in.AmbassadorID, in.Monoyi,
	)
	if err != nil {
		if isOutOfRange(err) {
			return false, ErrBalanceOverflow
		}
		return false, fmt.Errorf("increment balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, ErrAmbassadorNotFound
	}

	if in.EventID != "" {
		tag, err := tx.Exec(ctx,
			`INSERT INTO processed_events (event_id, ambassador_id, client_id, monoyi)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (event_id) DO NOTHING`,
			in.EventID, in.AmbassadorID, in.ClientID, in.Monoyi,
		)
		if err != nil {
			return false, fmt.Errorf("record event id: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return true, nil
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO referred_clients (ambassador_id, client_id, name, email, is_active, commission_earned)
		 VALUES ($1, $2, $3, $4, TRUE, $5)
		 ON CONFLICT (ambassador_id, client_id) DO UPDATE SET
		     is_active = TRUE,
		     commission_earned = referred_clients.commission_earned + EXCLUDED.commission_earned,
		     name = CASE WHEN referred_clients.name = '' THEN EXCLUDED.name ELSE referred_clients.name END,
		     email = CASE WHEN referred_clients.email = '' THEN EXCLUDED.email ELSE referred_clients.email END`,
		in.AmbassadorID, in.ClientID, in.ClientName, in.ClientEmail, in.Monoyi,
	)
	if err != nil {
		if isOutOfRange(err) {
			return false, ErrBalanceOverflow
		}
		return false, fmt.Errorf("upsert referred client: %w", err)
	}

	n := in.Notification
	n.AmbassadorID = in.AmbassadorID
	if err := insertNotificationTx(ctx, tx, n); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return false, nil
}

// GetClients возвращает приведённых клиентов амбассадора, новые первыми.
func (r *PostgresRepository) GetClients(ctx context.Context, ambassadorID string) ([]model.ReferredClient, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ambassador_id, client_id, name, email, referral_date, is_active, commission_earned
		 FROM referred_clients
		 WHERE ambassador_id = $1
		 ORDER BY referral_date DESC`,
		ambassadorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select clients: %w", err)
	}
	defer rows.Close()

	var res []model.ReferredClient
	for rows.Next() {
		var c model.ReferredClient
		if err := rows.Scan(&c.AmbassadorID, &c.ClientID, &c.Name, &c.Email,
			&c.ReferralDate, &c.IsActive, &c.CommissionEarned); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ClientStats возвращает число клиентов, число активных и сумму заработанных комиссий.
func (r *PostgresRepository) ClientStats(ctx context.Context, ambassadorID string) (total, active int, lifetime int64, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active), COALESCE(SUM(commission_earned), 0)
		 FROM referred_clients
		 WHERE ambassador_id = $1`,
		ambassadorID,
	).Scan(&total, &active, &lifetime)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("client stats: %w", err)
	}
	return total, active, lifetime, nil
}

const payoutColumns = `id, ambassador_id, amount, method, status, reason, request_date, completion_date`

func scanPayout(row scanner) (*model.PayoutRequest, error) {
	var (
		p      model.PayoutRequest
		status string
	)
	if err := row.Scan(&p.ID, &p.AmbassadorID, &p.Amount, &p.Method, &status, &p.Reason,
		&p.RequestDate, &p.CompletionDate); err != nil {
		return nil, err
	}
	p.Status = model.PayoutStatus(status)
	return &p, nil
}

// CreatePayout создаёт заявку на вывод. Сумма сверяется с балансом под блокировкой
// строки амбассадора; сам баланс не уменьшается до одобрения.
func (r *PostgresRepository) CreatePayout(ctx context.Context, p model.PayoutRequest, n model.Notification) (*model.PayoutRequest, error) {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM ambassadors WHERE id = $1 FOR UPDATE`, p.AmbassadorID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("lock ambassador for update: %w", err)
	}

	if p.Amount > balance {
		return nil, ErrInsufficientBalance
	}

	created, err := scanPayout(tx.QueryRow(ctx,
		`INSERT INTO payouts (id, ambassador_id, amount, method, status, request_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+payoutColumns,
		p.ID, p.AmbassadorID, p.Amount, p.Method, string(model.PayoutPending), p.RequestDate,
	))
	if err != nil {
		return nil, fmt.Errorf("insert payout: %w", err)
	}

	n.AmbassadorID = p.AmbassadorID
	if err := insertNotificationTx(ctx, tx, n); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// GetPayouts возвращает историю заявок амбассадора.
func (r *PostgresRepository) GetPayouts(ctx context.Context, ambassadorID string) ([]model.PayoutRequest, error) {
	return r.queryPayouts(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE ambassador_id = $1 ORDER BY request_date DESC`,
		ambassadorID,
	)
}

// ListPayouts возвращает заявки всех амбассадоров; пустой статус означает все статусы.
func (r *PostgresRepository) ListPayouts(ctx context.Context, status model.PayoutStatus) ([]model.PayoutRequest, error) {
	if status == "" {
		return r.queryPayouts(ctx, `SELECT `+payoutColumns+` FROM payouts ORDER BY request_date DESC`)
	}
	return r.queryPayouts(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE status = $1 ORDER BY request_date DESC`,
		string(status),
	)
}

func (r *PostgresRepository) queryPayouts(ctx context.Context, query string, args ...any) ([]model.PayoutRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select payouts: %w", err)
	}
	defer rows.Close()

	var res []model.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ApprovePayout одобряет заявку: проверка статуса и баланса, списание и смена статуса
// выполняются в одной транзакции.
func (r *PostgresRepository) ApprovePayout(ctx context.Context, ambassadorID, payoutID string, now time.Time, n model.Notification) (*model.PayoutRequest, error) {
	var res *model.PayoutRequest
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.settlePayout(ctx, ambassadorID, payoutID, now, model.PayoutCompleted, "", n)
		return err
	})
	return res, err
}

// RejectPayout отклоняет заявку без изменения баланса.
func (r *PostgresRepository) RejectPayout(ctx context.Context, ambassadorID, payoutID, reason string, now time.Time, n model.Notification) (*model.PayoutRequest, error) {
	var res *model.PayoutRequest
	err := r.withRetry(ctx, func() error {
		var err error
		res, err = r.settlePayout(ctx, ambassadorID, payoutID, now, model.PayoutFailed, reason, n)
		return err
	})
	return res, err
}

func (r *PostgresRepository) settlePayout(
	ctx context.Context,
	ambassadorID, payoutID string,
	now time.Time,
	status model.PayoutStatus,
	reason string,
	n model.Notification,
) (*model.PayoutRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM ambassadors WHERE id = $1 FOR UPDATE`, ambassadorID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAmbassadorNotFound
		}
		return nil, fmt.Errorf("lock ambassador for update: %w", err)
	}

	p, err := scanPayout(tx.QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payouts WHERE id = $1 AND ambassador_id = $2 FOR UPDATE`,
		payoutID, ambassadorID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("lock payout for update: %w", err)
	}

	if p.Status != model.PayoutPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrPayoutNotPending, p.ID, p.Status)
	}

	if status == model.PayoutCompleted {
		if balance < p.Amount {
			return nil, ErrInsufficientBalance
		}
		if _, err := tx.Exec(ctx,
			`UPDATE ambassadors SET balance = balance - $2 WHERE id = $1`,
			ambassadorID, p.Amount,
		); err != nil {
			return nil, fmt.Errorf("debit balance: %w", err)
		}
	}

	settled, err := scanPayout(tx.QueryRow(ctx,
		`UPDATE payouts SET status = $2, completion_date = $3, reason = $4
		 WHERE id = $1
		 RETURNING `+payoutColumns,
		payoutID, string(status), now, reason,
	))
	if err != nil {
		return nil, fmt.Errorf("update payout: %w", err)
	}

	n.AmbassadorID = ambassadorID
	if err := insertNotificationTx(ctx, tx, n); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return settled, nil
}

func insertNotificationTx(ctx context.Context, tx pgx.Tx, n model.Notification) error {
	if n.Title == "" {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO notifications (id, ambassador_id, title, message, link, created_at, is_read)
		 VALUES ($1, $2, $3, $4, $5, $6, FALSE)`,
		n.ID, n.AmbassadorID, n.Title, n.Message, n.Link, n.Date,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// AddNotification сохраняет уведомление одному амбассадору.
func (r *PostgresRepository) AddNotification(ctx context.Context, n model.Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertNotificationTx(ctx, tx, n); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return ErrAmbassadorNotFound
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// BroadcastNotification рассылает уведомление всем амбассадорам одним запросом
// и возвращает число получателей.
func (r *PostgresRepository) BroadcastNotification(ctx context.Context, n model.Notification) (int, error) {
	if n.Date.IsZero() {
		n.Date = time.Now().UTC()
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, ambassador_id, title, message, link, created_at, is_read)
		 SELECT gen_random_uuid(), id, $1, $2, $3, $4, FALSE FROM ambassadors`,
		n.Title, n.Message, n.Link, n.Date,
	)
	if err != nil {
		return 0, fmt.Errorf("broadcast notification: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// GetNotifications возвращает уведомления амбассадора, новые первыми.
func (r *PostgresRepository) GetNotifications(ctx context.Context, ambassadorID string) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, ambassador_id, title, message, link, created_at, is_read
		 FROM notifications
		 WHERE ambassador_id = $1
		 ORDER BY created_at DESC
		 LIMIT 100`,
		ambassadorID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.AmbassadorID, &n.Title, &n.Message, &n.Link, &n.Date, &n.IsRead); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, ambassadorID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotificationNotFound
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND ambassador_id = $2`,
		id, ambassadorID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
