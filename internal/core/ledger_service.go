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

// LedgerService owns every write path into the transaction tables. Each
// mutation runs as one database transaction covering the ledger row change,
// the affected accounts' balance recomputation and, for transfers, both
// endpoints' transfer totals. Account rows are locked FOR UPDATE first, so
// two concurrent mutations on the same account serialize and each
// recomputation reads a ledger state consistent with its own write.
type LedgerService struct {
	pool     *pgxpool.Pool
	settings Settings

	// afterMutation runs once per committed mutation that touched a
	// ledger-style account, dispatched off the request path. It is the
	// single post-mutation hook through which the reconciler is invoked;
	// its failure never surfaces to the caller because the mutation's own
	// transaction already established the balance invariant.
	afterMutation func(ctx context.Context)
}

func NewLedgerService(pool *pgxpool.Pool, settings Settings) *LedgerService {
	return &LedgerService{pool: pool, settings: settings}
}

// SetAfterMutation installs the post-commit hook. Pass nil to disable.
func (s *LedgerService) SetAfterMutation(hook func(ctx context.Context)) {
	s.afterMutation = hook
}

// TransferResult carries both updated endpoints of a transfer mutation.
type TransferResult struct {
	Source      Account `json:"source"`
	Destination Account `json:"destination"`
}

// AddCredit appends a credit entry and returns the account with its
// recomputed balance.
func (s *LedgerService) AddCredit(ctx context.Context, accountID int64, amount decimal.Decimal, actor, note string, entryDate time.Time) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return Account{}, err
	}
	if !account.Active {
		return Account{}, ErrAccountInactive
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO credit_entries (account_id, amount, actor, note, entry_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, accountID, amount, actor, note, entryDate); err != nil {
		return Account{}, fmt.Errorf("failed to insert credit: %w", err)
	}

	account, err = refreshBalance(ctx, tx, account)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("failed to commit credit: %w", err)
	}

	s.reconcileAfter(ctx, account.Category)
	return account, nil
}

// AddExpense appends an expense entry. When budget validation is enabled
// and the account is not snapshot-category, an expense that would drive the
// balance negative is rejected with ErrBudgetInsufficient. The check runs
// under the account row lock: a concurrent expense cannot sneak past it on
// a stale balance.
func (s *LedgerService) AddExpense(ctx context.Context, accountID int64, amount decimal.Decimal, entryDate time.Time, description, supplier, category string) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return Account{}, err
	}
	if !account.Active {
		return Account{}, ErrAccountInactive
	}

	// Snapshot accounts are exempt: their balance is a recorded reading,
	// not a budget, and they may go negative by design.
	if s.settings.ExpenseBudgetValidation && account.Category != CategorySnapshot {
		v, err := loadLedgerView(ctx, tx, accountID, account.Category)
		if err != nil {
			return Account{}, err
		}
		balance, err := ComputeBalance(account.Category, v)
		if err != nil {
			return Account{}, fmt.Errorf("account %d: %w", accountID, err)
		}
		if balance.Sub(amount).IsNegative() {
			return Account{}, fmt.Errorf("expense of %s against balance %s: %w",
				amount.StringFixed(2), balance.StringFixed(2), ErrBudgetInsufficient)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO expense_entries (account_id, amount, entry_date, description, supplier, category, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, accountID, amount, entryDate, description, supplier, category); err != nil {
		return Account{}, fmt.Errorf("failed to insert expense: %w", err)
	}

	account, err = refreshBalance(ctx, tx, account)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("failed to commit expense: %w", err)
	}

	s.reconcileAfter(ctx, account.Category)
	return account, nil
}

// AddTransfer moves an amount between two distinct accounts. Both endpoint
// rows are locked in id order to avoid deadlocks with a concurrent transfer
// running the other way.
func (s *LedgerService) AddTransfer(ctx context.Context, sourceID, destinationID int64, amount decimal.Decimal) (TransferResult, error) {
	if !amount.IsPositive() {
		return TransferResult{}, ErrInvalidAmount
	}
	if sourceID == destinationID {
		return TransferResult{}, ErrSameAccount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TransferResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	accounts := make(map[int64]Account, 2)
	for _, id := range orderedIDs(sourceID, destinationID) {
		a, err := lockAccount(ctx, tx, id)
		if err != nil {
			return TransferResult{}, err
		}
		if !a.Active {
			return TransferResult{}, fmt.Errorf("account %d: %w", id, ErrAccountInactive)
		}
		accounts[id] = a
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO transfer_entries (source_account_id, destination_account_id, amount, created_at)
		VALUES ($1, $2, $3, NOW())
	`, sourceID, destinationID, amount); err != nil {
		return TransferResult{}, fmt.Errorf("failed to insert transfer: %w", err)
	}

	result, err := s.refreshTransferEndpoints(ctx, tx, accounts[sourceID], accounts[destinationID])
	if err != nil {
		return TransferResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, fmt.Errorf("failed to commit transfer: %w", err)
	}

	s.reconcileAfter(ctx, result.Source.Category, result.Destination.Category)
	return result, nil
}

// DeleteTransaction removes a ledger row and reverses its effect. Deleting
// a transfer reverses both sides atomically. Returns every account whose
// balance was recomputed.
func (s *LedgerService) DeleteTransaction(ctx context.Context, kind TransactionKind, id int64) ([]Account, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var updated []Account
	switch kind {
	case KindCredit, KindExpense:
		table := "credit_entries"
		if kind == KindExpense {
			table = "expense_entries"
		}
		var accountID int64
		err := tx.QueryRow(ctx, "SELECT account_id FROM "+table+" WHERE id = $1", id).Scan(&accountID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s %d: %w", kind, id, err)
		}

		account, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to delete %s %d: %w", kind, id, err)
		}
		account, err = refreshBalance(ctx, tx, account)
		if err != nil {
			return nil, err
		}
		updated = append(updated, account)

	case KindTransfer:
		var sourceID, destinationID int64
		err := tx.QueryRow(ctx,
			"SELECT source_account_id, destination_account_id FROM transfer_entries WHERE id = $1", id,
		).Scan(&sourceID, &destinationID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch transfer %d: %w", id, err)
		}

		accounts := make(map[int64]Account, 2)
		for _, aid := range orderedIDs(sourceID, destinationID) {
			a, err := lockAccount(ctx, tx, aid)
			if err != nil {
				return nil, err
			}
			accounts[aid] = a
		}
		if _, err := tx.Exec(ctx, "DELETE FROM transfer_entries WHERE id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to delete transfer %d: %w", id, err)
		}
		result, err := s.refreshTransferEndpoints(ctx, tx, accounts[sourceID], accounts[destinationID])
		if err != nil {
			return nil, err
		}
		updated = append(updated, result.Source, result.Destination)

	default:
		return nil, fmt.Errorf("transaction kind %q: %w", kind, ErrTransactionNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}

	categories := make([]AccountCategory, 0, len(updated))
	for _, a := range updated {
		categories = append(categories, a.Category)
	}
	s.reconcileAfter(ctx, categories...)
	return updated, nil
}

// refreshTransferEndpoints recomputes transfer totals and balances for both
// sides of a transfer mutation inside the caller's transaction.
func (s *LedgerService) refreshTransferEndpoints(ctx context.Context, tx pgx.Tx, source, destination Account) (TransferResult, error) {
	for _, a := range []Account{source, destination} {
		if err := refreshTransferTotals(ctx, tx, a.ID); err != nil {
			return TransferResult{}, err
		}
		if _, err := refreshBalance(ctx, tx, a); err != nil {
			return TransferResult{}, err
		}
	}
	// Re-read so the returned rows carry the rewritten totals.
	src, err := getAccount(ctx, tx, source.ID)
	if err != nil {
		return TransferResult{}, err
	}
	dst, err := getAccount(ctx, tx, destination.ID)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{Source: src, Destination: dst}, nil
}

// reconcileAfter fires the post-mutation hook when any touched account is
// ledger-style. The hook runs on its own goroutine with a detached context:
// it starts after commit, so it cannot undo the mutation, and a full
// reconciliation pass never adds latency to the mutation's caller.
func (s *LedgerService) reconcileAfter(ctx context.Context, categories ...AccountCategory) {
	if s.afterMutation == nil {
		return
	}
	for _, c := range categories {
		if c.LedgerStyle() {
			go s.afterMutation(context.WithoutCancel(ctx))
			return
		}
	}
}

func orderedIDs(a, b int64) []int64 {
	if a <= b {
		return []int64{a, b}
	}
	return []int64{b, a}
}
