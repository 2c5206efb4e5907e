package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the view and
// refresh helpers run equally inside a mutation transaction or standalone.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// loadLedgerView aggregates the authoritative transaction tables for one
// account. Every figure is a full recomputation — nothing is read back from
// the cached columns.
func loadLedgerView(ctx context.Context, q querier, accountID int64, category AccountCategory) (LedgerView, error) {
	var v LedgerView

	err := q.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(amount) FROM credit_entries   WHERE account_id = $1), 0),
			COALESCE((SELECT SUM(amount) FROM expense_entries  WHERE account_id = $1), 0),
			COALESCE((SELECT SUM(amount) FROM transfer_entries WHERE destination_account_id = $1), 0),
			COALESCE((SELECT SUM(amount) FROM transfer_entries WHERE source_account_id = $1), 0)
	`, accountID).Scan(&v.Credits, &v.Expenses, &v.TransfersIn, &v.TransfersOut)
	if err != nil {
		return v, fmt.Errorf("failed to aggregate ledger for account %d: %w", accountID, err)
	}

	switch category {
	case CategorySnapshot:
		// Latest recorded value; on exact date ties the later insertion wins.
		err = q.QueryRow(ctx, `
			SELECT amount FROM credit_entries
			WHERE account_id = $1
			ORDER BY entry_date DESC, created_at DESC, id DESC
			LIMIT 1
		`, accountID).Scan(&v.LatestSnapshot)
		if errors.Is(err, pgx.ErrNoRows) {
			v.LatestSnapshot = decimal.Zero
		} else if err != nil {
			return v, fmt.Errorf("failed to read latest snapshot for account %d: %w", accountID, err)
		}
	case CategoryPartner:
		err = q.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM partner_deliveries
			WHERE account_id = $1 AND status = $2
		`, accountID, string(DeliveryValidated)).Scan(&v.ValidatedDeliveries)
		if err != nil {
			return v, fmt.Errorf("failed to aggregate deliveries for account %d: %w", accountID, err)
		}
	case CategoryReceivablePool:
		err = q.QueryRow(ctx, `
			SELECT COALESCE(SUM(rc.initial_credit), 0)
			     + COALESCE(SUM(CASE WHEN ro.kind = 'advance'   THEN ro.amount ELSE 0 END), 0)
			     - COALESCE(SUM(CASE WHEN ro.kind = 'repayment' THEN ro.amount ELSE 0 END), 0)
			FROM receivable_clients rc
			LEFT JOIN receivable_operations ro ON ro.client_id = rc.id
			WHERE rc.account_id = $1 AND rc.active
		`, accountID).Scan(&v.ReceivableBalance)
		if err != nil {
			return v, fmt.Errorf("failed to aggregate receivables for account %d: %w", accountID, err)
		}
	}

	return v, nil
}

// lockAccount reads an account row under FOR UPDATE, serializing all
// concurrent mutations against it for the rest of the transaction.
func lockAccount(ctx context.Context, q querier, accountID int64) (Account, error) {
	return fetchAccount(ctx, q, accountID, true)
}

func getAccount(ctx context.Context, q querier, accountID int64) (Account, error) {
	return fetchAccount(ctx, q, accountID, false)
}

func fetchAccount(ctx context.Context, q querier, accountID int64, lock bool) (Account, error) {
	sql := `
		SELECT id, name, category, current_balance, total_credited, total_spent,
		       transfer_in_total, transfer_out_total, active, created_at
		FROM accounts WHERE id = $1`
	if lock {
		sql += " FOR UPDATE"
	}

	var a Account
	var rawCategory string
	err := q.QueryRow(ctx, sql, accountID).Scan(
		&a.ID, &a.Name, &rawCategory, &a.CurrentBalance, &a.TotalCredited, &a.TotalSpent,
		&a.TransferInTotal, &a.TransferOutTotal, &a.Active, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to fetch account %d: %w", accountID, err)
	}
	a.Category, err = ParseCategory(rawCategory)
	if err != nil {
		return Account{}, fmt.Errorf("account %d: %w", accountID, err)
	}
	return a, nil
}

// refreshBalance recomputes current_balance, total_credited and total_spent
// for an account from its ledger view and overwrites the cached columns.
// Returns the updated account.
func refreshBalance(ctx context.Context, q querier, account Account) (Account, error) {
	v, err := loadLedgerView(ctx, q, account.ID, account.Category)
	if err != nil {
		return Account{}, err
	}
	balance, err := ComputeBalance(account.Category, v)
	if err != nil {
		return Account{}, fmt.Errorf("account %d: %w", account.ID, err)
	}

	if _, err := q.Exec(ctx, `
		UPDATE accounts
		SET current_balance = $1, total_credited = $2, total_spent = $3
		WHERE id = $4
	`, balance, v.Credits, v.Expenses, account.ID); err != nil {
		return Account{}, fmt.Errorf("failed to write balance for account %d: %w", account.ID, err)
	}

	account.CurrentBalance = balance
	account.TotalCredited = v.Credits
	account.TotalSpent = v.Expenses
	return account, nil
}

// refreshTransferTotals recomputes transfer_in_total and transfer_out_total
// as full aggregates over the transfer table. Recomputation, not
// incrementing: a retried or partially failed mutation can never
// double-apply a delta that was never stored.
func refreshTransferTotals(ctx context.Context, q querier, accountID int64) error {
	_, err := q.Exec(ctx, `
		UPDATE accounts SET
			transfer_in_total  = COALESCE((SELECT SUM(amount) FROM transfer_entries WHERE destination_account_id = $1), 0),
			transfer_out_total = COALESCE((SELECT SUM(amount) FROM transfer_entries WHERE source_account_id = $1), 0)
		WHERE id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to refresh transfer totals for account %d: %w", accountID, err)
	}
	return nil
}
