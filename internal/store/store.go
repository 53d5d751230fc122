package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"photoledger/internal/models"
	"photoledger/internal/services"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx so the balance and
// withdrawal reads can run inside or outside the ledger lock.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) CreatePhotographer(ctx context.Context, p *models.Photographer) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO photographers (photographer_id, display_name, commission_bps, created_at)
		VALUES ($1,$2,$3,$4)
	`, p.PhotographerID, p.DisplayName, p.CommissionBps, p.CreatedAt)
	return err
}

func (s *Store) GetPhotographer(ctx context.Context, photographerID string) (*models.Photographer, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT photographer_id, display_name, commission_bps, created_at
		FROM photographers WHERE photographer_id=$1
	`, photographerID)

	var p models.Photographer
	err := row.Scan(&p.PhotographerID, &p.DisplayName, &p.CommissionBps, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrPhotographerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPhotographerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT photographer_id FROM photographers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, order *models.Order, items []*models.OrderItem) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			order_id, buyer_id, subtotal, tax, discount, total,
			status, provider_ref, completed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.OrderID,
		order.BuyerID,
		order.Subtotal,
		order.Tax,
		order.Discount,
		order.Total,
		order.Status,
		order.ProviderRef,
		order.CompletedAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (
				item_id, order_id, photo_id, photographer_id, license, price,
				photographer_amount, platform_fee, commission_bps, available_at,
				paid, paid_at, payout_id, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		`,
			it.ItemID,
			it.OrderID,
			it.PhotoID,
			it.PhotographerID,
			it.License,
			it.Price,
			it.PhotographerAmount,
			it.PlatformFee,
			it.CommissionBps,
			it.AvailableAt,
			it.Paid,
			it.PaidAt,
			it.PayoutID,
			it.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT order_id, buyer_id, subtotal, tax, discount, total,
			status, provider_ref, completed_at, created_at, updated_at
		FROM orders WHERE order_id=$1
	`, orderID)

	var order models.Order
	var providerRef sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&order.OrderID,
		&order.BuyerID,
		&order.Subtotal,
		&order.Tax,
		&order.Discount,
		&order.Total,
		&order.Status,
		&providerRef,
		&completedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if providerRef.Valid {
		order.ProviderRef = &providerRef.String
	}
	if completedAt.Valid {
		order.CompletedAt = &completedAt.Time
	}
	return &order, nil
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT item_id, order_id, photo_id, photographer_id, license, price,
			photographer_amount, platform_fee, commission_bps, available_at,
			paid, paid_at, payout_id, created_at
		FROM order_items WHERE order_id=$1
		ORDER BY created_at, item_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		var photographerAmount, platformFee sql.NullInt64
		var commissionBps sql.NullInt32
		var availableAt, paidAt sql.NullTime
		var payoutID sql.NullString
		if err := rows.Scan(
			&it.ItemID,
			&it.OrderID,
			&it.PhotoID,
			&it.PhotographerID,
			&it.License,
			&it.Price,
			&photographerAmount,
			&platformFee,
			&commissionBps,
			&availableAt,
			&it.Paid,
			&paidAt,
			&payoutID,
			&it.CreatedAt,
		); err != nil {
			return nil, err
		}
		if photographerAmount.Valid {
			it.PhotographerAmount = &photographerAmount.Int64
		}
		if platformFee.Valid {
			it.PlatformFee = &platformFee.Int64
		}
		if commissionBps.Valid {
			it.CommissionBps = &commissionBps.Int32
		}
		if availableAt.Valid {
			it.AvailableAt = &availableAt.Time
		}
		if paidAt.Valid {
			it.PaidAt = &paidAt.Time
		}
		if payoutID.Valid {
			it.PayoutID = &payoutID.String
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (s *Store) CompleteOrder(ctx context.Context, ev *models.PaymentEvent, completedAt time.Time, splits []models.ItemSplit) (bool, int64, error) {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO payment_events (provider_tx_id, order_id, status, received_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (provider_tx_id) DO NOTHING
	`, ev.ProviderTxID, ev.OrderID, ev.Status, ev.ReceivedAt)
	if err != nil {
		return false, 0, err
	}
	if tag.RowsAffected() == 0 {
		return false, 0, nil
	}

	res, err := tx.Exec(ctx, `
		UPDATE orders
		SET status=$2, provider_ref=$3, completed_at=$4, updated_at=now()
		WHERE order_id=$1 AND status='pending'
	`, ev.OrderID, models.OrderCompleted, ev.ProviderTxID, completedAt)
	if err != nil {
		return false, 0, err
	}
	if res.RowsAffected() == 0 {
		// rollback keeps the event unrecorded so a legitimate retry
		// against a then-pending order is not masked
		return true, 0, nil
	}

	for _, sp := range splits {
		_, err = tx.Exec(ctx, `
			UPDATE order_items
			SET photographer_amount=$2, platform_fee=$3, commission_bps=$4, available_at=$5
			WHERE item_id=$1
		`, sp.ItemID, sp.PhotographerAmount, sp.PlatformFee, sp.CommissionBps, sp.AvailableAt)
		if err != nil {
			return false, 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return true, res.RowsAffected(), nil
}

func (s *Store) SetOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=$3
		WHERE order_id=$1 AND status='pending'
	`, orderID, status, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

const balanceQuery = `
WITH credits AS (
	SELECT oi.photographer_amount AS amount, oi.available_at, oi.paid
	FROM order_items oi
	JOIN orders o ON o.order_id = oi.order_id
	WHERE oi.photographer_id = $1 AND o.status = 'completed'
	UNION ALL
	SELECT co.amount, co.available_at, co.paid
	FROM carryovers co
	WHERE co.photographer_id = $1
)
SELECT
	COALESCE(SUM(amount) FILTER (WHERE NOT paid AND available_at <= $2), 0),
	COALESCE(SUM(amount) FILTER (WHERE NOT paid AND available_at > $2), 0),
	(SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE photographer_id = $1 AND status IN ('pending','approved')),
	(SELECT COALESCE(SUM(amount), 0) FROM withdrawals
		WHERE photographer_id = $1 AND status = 'completed'),
	(SELECT COALESCE(SUM(oi.photographer_amount), 0) FROM order_items oi
		JOIN orders o ON o.order_id = oi.order_id
		WHERE oi.photographer_id = $1 AND o.status = 'completed')
FROM credits
`

func (s *Store) Balances(ctx context.Context, photographerID string, now time.Time) (models.BalanceSummary, error) {
	return queryBalances(ctx, s.Pool, photographerID, now)
}

func queryBalances(ctx context.Context, q rowQuerier, photographerID string, now time.Time) (models.BalanceSummary, error) {
	var matured int64
	var bal models.BalanceSummary
	row := q.QueryRow(ctx, balanceQuery, photographerID, now)
	if err := row.Scan(&matured, &bal.Pending, &bal.Reserved, &bal.Withdrawn, &bal.Lifetime); err != nil {
		return models.BalanceSummary{}, err
	}
	bal.Available = matured - bal.Reserved
	return bal, nil
}

func (s *Store) GetWithdrawal(ctx context.Context, withdrawalID string) (*models.Withdrawal, error) {
	return queryWithdrawal(ctx, s.Pool, withdrawalID)
}

const withdrawalColumns = `
	withdrawal_id, photographer_id, amount, status, method, details,
	reject_reason, admin_ref, processed_at, created_at, updated_at
`

func queryWithdrawal(ctx context.Context, q rowQuerier, withdrawalID string) (*models.Withdrawal, error) {
	row := q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE withdrawal_id=$1`, withdrawalID)
	w, err := scanWithdrawal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, services.ErrWithdrawalNotFound
	}
	return w, err
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	var details []byte
	var rejectReason, adminRef sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&w.WithdrawalID,
		&w.PhotographerID,
		&w.Amount,
		&w.Status,
		&w.Method,
		&details,
		&rejectReason,
		&adminRef,
		&processedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &w.Details); err != nil {
			return nil, fmt.Errorf("decode withdrawal details: %w", err)
		}
	}
	if rejectReason.Valid {
		w.RejectReason = &rejectReason.String
	}
	if adminRef.Valid {
		w.AdminRef = &adminRef.String
	}
	if processedAt.Valid {
		w.ProcessedAt = &processedAt.Time
	}
	return &w, nil
}

func (s *Store) ListWithdrawals(ctx context.Context, photographerID string) ([]*models.Withdrawal, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+withdrawalColumns+`
		FROM withdrawals WHERE photographer_id=$1
		ORDER BY created_at DESC, withdrawal_id
	`, photographerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

const (
	lockAttempts = 3
	lockDelay    = 50 * time.Millisecond
	lockMaxDelay = 500 * time.Millisecond
)

func (s *Store) WithLedgerLock(ctx context.Context, photographerID string, fn func(services.LedgerTx) error) error {
	err := retry.Do(
		func() error {
			return s.runLocked(ctx, photographerID, fn)
		},
		retry.Attempts(lockAttempts),
		retry.Delay(lockDelay),
		retry.MaxDelay(lockMaxDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isSerializationError),
	)
	if isSerializationError(err) {
		return services.ErrConflict
	}
	return err
}

func (s *Store) runLocked(ctx context.Context, photographerID string, fn func(services.LedgerTx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM photographers WHERE photographer_id=$1 FOR UPDATE`, photographerID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return services.ErrPhotographerNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(&ledgerTx{ctx: ctx, tx: tx, photographerID: photographerID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

type ledgerTx struct {
	ctx            context.Context
	tx             pgx.Tx
	photographerID string
}

func (l *ledgerTx) Balances(now time.Time) (models.BalanceSummary, error) {
	return queryBalances(l.ctx, l.tx, l.photographerID, now)
}

func (l *ledgerTx) GetWithdrawal(withdrawalID string) (*models.Withdrawal, error) {
	return queryWithdrawal(l.ctx, l.tx, withdrawalID)
}

func (l *ledgerTx) InsertWithdrawal(w *models.Withdrawal) error {
	details, err := marshalDetails(w.Details)
	if err != nil {
		return err
	}
	_, err = l.tx.Exec(l.ctx, `
		INSERT INTO withdrawals (
			withdrawal_id, photographer_id, amount, status, method, details,
			reject_reason, admin_ref, processed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		w.WithdrawalID,
		w.PhotographerID,
		w.Amount,
		w.Status,
		w.Method,
		details,
		w.RejectReason,
		w.AdminRef,
		w.ProcessedAt,
		w.CreatedAt,
		w.UpdatedAt,
	)
	return err
}

func (l *ledgerTx) UpdateWithdrawal(w *models.Withdrawal) error {
	res, err := l.tx.Exec(l.ctx, `
		UPDATE withdrawals
		SET status=$2, reject_reason=$3, admin_ref=$4, processed_at=$5, updated_at=$6
		WHERE withdrawal_id=$1
	`, w.WithdrawalID, w.Status, w.RejectReason, w.AdminRef, w.ProcessedAt, w.UpdatedAt)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return services.ErrWithdrawalNotFound
	}
	return nil
}

func (l *ledgerTx) DeleteWithdrawal(withdrawalID string) error {
	res, err := l.tx.Exec(l.ctx, `DELETE FROM withdrawals WHERE withdrawal_id=$1`, withdrawalID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return services.ErrWithdrawalNotFound
	}
	return nil
}

func (l *ledgerTx) ListUnpaidCredits(now time.Time) ([]models.CreditEntry, error) {
	rows, err := l.tx.Query(l.ctx, `
		SELECT kind, id, amount, available_at FROM (
			SELECT 'sale' AS kind, oi.item_id AS id, oi.photographer_amount AS amount,
				oi.available_at, oi.created_at
			FROM order_items oi
			JOIN orders o ON o.order_id = oi.order_id
			WHERE oi.photographer_id=$1 AND o.status='completed'
				AND NOT oi.paid AND oi.available_at <= $2
			UNION ALL
			SELECT 'carryover', co.carryover_id, co.amount, co.available_at, co.created_at
			FROM carryovers co
			WHERE co.photographer_id=$1 AND NOT co.paid AND co.available_at <= $2
		) c
		ORDER BY available_at, created_at, id
	`, l.photographerID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CreditEntry
	for rows.Next() {
		var e models.CreditEntry
		if err := rows.Scan(&e.Kind, &e.ID, &e.Amount, &e.AvailableAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *ledgerTx) MarkCreditsPaid(entries []models.CreditEntry, payoutID string, at time.Time) error {
	var saleIDs, carryoverIDs []string
	for _, e := range entries {
		switch e.Kind {
		case models.CreditSale:
			saleIDs = append(saleIDs, e.ID)
		case models.CreditCarryover:
			carryoverIDs = append(carryoverIDs, e.ID)
		}
	}
	if len(saleIDs) > 0 {
		_, err := l.tx.Exec(l.ctx, `
			UPDATE order_items SET paid=TRUE, paid_at=$2, payout_id=$3
			WHERE item_id = ANY($1)
		`, saleIDs, at, payoutID)
		if err != nil {
			return err
		}
	}
	if len(carryoverIDs) > 0 {
		_, err := l.tx.Exec(l.ctx, `
			UPDATE carryovers SET paid=TRUE, paid_at=$2, payout_id=$3
			WHERE carryover_id = ANY($1)
		`, carryoverIDs, at, payoutID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (l *ledgerTx) InsertCarryover(c *models.Carryover) error {
	_, err := l.tx.Exec(l.ctx, `
		INSERT INTO carryovers (
			carryover_id, photographer_id, source_payout_id, amount,
			available_at, paid, paid_at, payout_id, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		c.CarryoverID,
		c.PhotographerID,
		c.SourcePayoutID,
		c.Amount,
		c.AvailableAt,
		c.Paid,
		c.PaidAt,
		c.PayoutID,
		c.CreatedAt,
	)
	return err
}

func marshalDetails(details map[string]string) ([]byte, error) {
	if details == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(details)
}
