package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PartnerService records deliveries against partner accounts and drives
// their validation lifecycle. Only validated deliveries reduce a partner
// balance; pending and rejected rows are inert until revalidated.
type PartnerService struct {
	pool *pgxpool.Pool
}

func NewPartnerService(pool *pgxpool.Pool) *PartnerService {
	return &PartnerService{pool: pool}
}

// AddDelivery records a delivery in pending status. The partner balance is
// refreshed in the same transaction, which is a no-op for the balance until
// the delivery is validated but keeps the write path uniform.
func (s *PartnerService) AddDelivery(ctx context.Context, accountID int64, amount decimal.Decimal, deliveryDate time.Time) (PartnerDelivery, error) {
	if !amount.IsPositive() {
		return PartnerDelivery{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return PartnerDelivery{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return PartnerDelivery{}, err
	}
	if account.Category != CategoryPartner {
		return PartnerDelivery{}, fmt.Errorf("account %d is %s: %w", accountID, account.Category, ErrUnsupportedCategory)
	}

	var d PartnerDelivery
	err = tx.QueryRow(ctx, `
		INSERT INTO partner_deliveries (account_id, amount, status, delivery_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`, accountID, amount, string(DeliveryPending), deliveryDate).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return PartnerDelivery{}, fmt.Errorf("failed to insert delivery: %w", err)
	}
	d.AccountID = accountID
	d.Amount = amount
	d.Status = DeliveryPending
	d.DeliveryDate = deliveryDate

	if _, err := refreshBalance(ctx, tx, account); err != nil {
		return PartnerDelivery{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PartnerDelivery{}, fmt.Errorf("failed to commit delivery: %w", err)
	}
	return d, nil
}

// SetDeliveryValidation moves a delivery to the given status and recomputes
// the partner balance under the account lock.
func (s *PartnerService) SetDeliveryValidation(ctx context.Context, deliveryID int64, status DeliveryStatus) (Account, error) {
	switch status {
	case DeliveryPending, DeliveryValidated, DeliveryRejected:
	default:
		return Account{}, fmt.Errorf("status %q: %w", status, ErrInvalidStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var accountID int64
	err = tx.QueryRow(ctx, "SELECT account_id FROM partner_deliveries WHERE id = $1", deliveryID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrDeliveryNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to fetch delivery %d: %w", deliveryID, err)
	}

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE partner_deliveries SET status = $1 WHERE id = $2",
		string(status), deliveryID); err != nil {
		return Account{}, fmt.Errorf("failed to update delivery %d: %w", deliveryID, err)
	}

	account, err = refreshBalance(ctx, tx, account)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("failed to commit validation: %w", err)
	}
	return account, nil
}

// ListDeliveries returns a partner account's deliveries, newest first.
func (s *PartnerService) ListDeliveries(ctx context.Context, accountID int64) ([]PartnerDelivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, amount, status, delivery_date, created_at
		FROM partner_deliveries
		WHERE account_id = $1
		ORDER BY delivery_date DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []PartnerDelivery
	for rows.Next() {
		var d PartnerDelivery
		var status string
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Amount, &status, &d.DeliveryDate, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		d.Status = DeliveryStatus(status)
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
