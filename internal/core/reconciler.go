package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Reconciler is the defensive second line behind the write-time balance
// maintenance: it recomputes every ledger-style account's balance from the
// authoritative tables and corrects any cached column that drifted. It is
// idempotent — a second pass right after a first reports zero corrections.
type Reconciler struct {
	pool *pgxpool.Pool
}

func NewReconciler(pool *pgxpool.Pool) *Reconciler {
	return &Reconciler{pool: pool}
}

// ReconcileReport summarizes one full pass.
type ReconcileReport struct {
	AccountsChecked   int `json:"accounts_checked"`
	AccountsCorrected int `json:"accounts_corrected"`
}

// ReconcileAll walks all active ledger-style accounts. Each account is
// corrected in its own short transaction so a long pass never holds locks
// across accounts and a failure on one account does not abandon the rest.
func (r *Reconciler) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM accounts
		WHERE active AND category = ANY($1)
		ORDER BY id
	`, []string{
		string(CategoryLedger), string(CategoryAdjustment),
		string(CategoryDeposit), string(CategorySupplier),
	})
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("failed to list ledger-style accounts: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return ReconcileReport{}, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ReconcileReport{}, err
	}

	var report ReconcileReport
	for _, id := range ids {
		corrected, err := r.reconcileOne(ctx, id)
		if err != nil {
			return report, fmt.Errorf("reconciliation of account %d: %w", id, err)
		}
		report.AccountsChecked++
		if corrected {
			report.AccountsCorrected++
		}
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, accountID int64) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return false, err
	}

	v, err := loadLedgerView(ctx, tx, accountID, account.Category)
	if err != nil {
		return false, err
	}
	balance, err := ComputeBalance(account.Category, v)
	if err != nil {
		return false, err
	}

	drifted := !account.CurrentBalance.Equal(balance) ||
		!account.TotalCredited.Equal(v.Credits) ||
		!account.TotalSpent.Equal(v.Expenses) ||
		!account.TransferInTotal.Equal(v.TransfersIn) ||
		!account.TransferOutTotal.Equal(v.TransfersOut)
	if !drifted {
		return false, tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE accounts
		SET current_balance = $1, total_credited = $2, total_spent = $3,
		    transfer_in_total = $4, transfer_out_total = $5
		WHERE id = $6
	`, balance, v.Credits, v.Expenses, v.TransfersIn, v.TransfersOut, accountID); err != nil {
		return false, fmt.Errorf("failed to correct account %d: %w", accountID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit correction: %w", err)
	}
	return true, nil
}
