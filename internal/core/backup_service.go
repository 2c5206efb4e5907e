package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradebooks/internal/ids"
)

// BackupService captures point-in-time snapshots of an account and all its
// ledger rows, and runs the two destructive admin operations behind them.
// The snapshot insert happens inside the destructive transaction, before
// any row is touched: a delete or empty can never commit without its
// backup record.
type BackupService struct {
	pool *pgxpool.Pool
}

func NewBackupService(pool *pgxpool.Pool) *BackupService {
	return &BackupService{pool: pool}
}

// DestructiveResult reports the outcome of DeleteAccount or EmptyAccount.
// AlreadyGone is set when a repeated call finds nothing left to destroy.
type DestructiveResult struct {
	AccountName string `json:"account_name"`
	BackupID    string `json:"backup_id"`
	AlreadyGone bool   `json:"already_gone"`
}

// backupPayload is the immutable snapshot body stored as jsonb.
type backupPayload struct {
	Account    Account               `json:"account"`
	Credits    []CreditEntry         `json:"credits"`
	Expenses   []ExpenseEntry        `json:"expenses"`
	Transfers  []TransferEntry       `json:"transfers"`
	Clients    []ReceivableClient    `json:"clients"`
	Operations []ReceivableOperation `json:"operations"`
	Deliveries []PartnerDelivery     `json:"deliveries"`
}

// Backup captures a standalone snapshot of the account and returns its id.
func (s *BackupService) Backup(ctx context.Context, accountID int64) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return "", err
	}
	backupID, err := s.captureBackup(ctx, tx, account, "backup", "", "")
	if err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit backup: %w", err)
	}
	return backupID, nil
}

// DeleteAccount removes the account and every row referencing it, after
// writing a backup snapshot in the same transaction. Transfers shared with
// other accounts are deleted too, and each counterparty's totals and
// balance are recomputed before commit. Repeat calls return AlreadyGone.
func (s *BackupService) DeleteAccount(ctx context.Context, accountID int64, actor, reason string) (DestructiveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DestructiveResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return DestructiveResult{AlreadyGone: true}, nil
	}
	if err != nil {
		return DestructiveResult{}, err
	}

	backupID, err := s.captureBackup(ctx, tx, account, "delete", actor, reason)
	if err != nil {
		return DestructiveResult{}, err
	}

	counterparties, err := s.clearLedgerRows(ctx, tx, accountID)
	if err != nil {
		return DestructiveResult{}, err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM accounts WHERE id = $1", accountID); err != nil {
		return DestructiveResult{}, fmt.Errorf("failed to delete account %d: %w", accountID, err)
	}
	if err := s.refreshCounterparties(ctx, tx, counterparties); err != nil {
		return DestructiveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DestructiveResult{}, fmt.Errorf("failed to commit delete: %w", err)
	}
	return DestructiveResult{AccountName: account.Name, BackupID: backupID}, nil
}

// EmptyAccount clears the account's ledger and resets its cached columns to
// zero, keeping the account row. The audit snapshot is retained exactly as
// for a delete.
func (s *BackupService) EmptyAccount(ctx context.Context, accountID int64, actor, reason string) (DestructiveResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DestructiveResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return DestructiveResult{AlreadyGone: true}, nil
	}
	if err != nil {
		return DestructiveResult{}, err
	}

	backupID, err := s.captureBackup(ctx, tx, account, "empty", actor, reason)
	if err != nil {
		return DestructiveResult{}, err
	}

	counterparties, err := s.clearLedgerRows(ctx, tx, accountID)
	if err != nil {
		return DestructiveResult{}, err
	}
	if err := refreshTransferTotals(ctx, tx, accountID); err != nil {
		return DestructiveResult{}, err
	}
	if _, err := refreshBalance(ctx, tx, account); err != nil {
		return DestructiveResult{}, err
	}
	if err := s.refreshCounterparties(ctx, tx, counterparties); err != nil {
		return DestructiveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return DestructiveResult{}, fmt.Errorf("failed to commit empty: %w", err)
	}
	return DestructiveResult{AccountName: account.Name, BackupID: backupID}, nil
}

// Restore re-inserts a backed-up account and its ledger rows with their
// original ids. Fails if the account id is occupied again.
func (s *BackupService) Restore(ctx context.Context, backupID string) error {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT payload FROM account_backups WHERE id = $1", backupID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to fetch backup %s: %w", backupID, err)
	}

	var p backupPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("failed to decode backup %s: %w", backupID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := p.Account
	if _, err := tx.Exec(ctx, `
		INSERT INTO accounts (id, name, category, current_balance, total_credited, total_spent,
		                      transfer_in_total, transfer_out_total, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.Name, string(a.Category), a.CurrentBalance, a.TotalCredited, a.TotalSpent,
		a.TransferInTotal, a.TransferOutTotal, a.Active, a.CreatedAt); err != nil {
		return fmt.Errorf("failed to restore account %d: %w", a.ID, err)
	}

	for _, c := range p.Credits {
		if _, err := tx.Exec(ctx, `
			INSERT INTO credit_entries (id, account_id, amount, actor, note, entry_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.AccountID, c.Amount, c.Actor, c.Note, c.EntryDate, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore credit %d: %w", c.ID, err)
		}
	}
	for _, e := range p.Expenses {
		if _, err := tx.Exec(ctx, `
			INSERT INTO expense_entries (id, account_id, amount, entry_date, description, supplier, category, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.ID, e.AccountID, e.Amount, e.EntryDate, e.Description, e.Supplier, e.Category, e.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore expense %d: %w", e.ID, err)
		}
	}
	for _, t := range p.Transfers {
		// The counterpart account may still hold this transfer if only one
		// side was deleted; skip rows that survived.
		if _, err := tx.Exec(ctx, `
			INSERT INTO transfer_entries (id, source_account_id, destination_account_id, amount, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, t.ID, t.SourceAccountID, t.DestinationAccountID, t.Amount, t.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore transfer %d: %w", t.ID, err)
		}
	}
	for _, c := range p.Clients {
		if _, err := tx.Exec(ctx, `
			INSERT INTO receivable_clients (id, account_id, name, phone, initial_credit, active, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, c.ID, c.AccountID, c.Name, c.Phone, c.InitialCredit, c.Active, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore client %d: %w", c.ID, err)
		}
	}
	for _, o := range p.Operations {
		if _, err := tx.Exec(ctx, `
			INSERT INTO receivable_operations (id, client_id, kind, amount, op_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, o.ID, o.ClientID, string(o.Kind), o.Amount, o.OpDate, o.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore operation %d: %w", o.ID, err)
		}
	}
	for _, d := range p.Deliveries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO partner_deliveries (id, account_id, amount, status, delivery_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, d.ID, d.AccountID, d.Amount, string(d.Status), d.DeliveryDate, d.CreatedAt); err != nil {
			return fmt.Errorf("failed to restore delivery %d: %w", d.ID, err)
		}
	}

	for _, seq := range []struct{ table, column string }{
		{"accounts", "id"}, {"credit_entries", "id"}, {"expense_entries", "id"},
		{"transfer_entries", "id"}, {"receivable_clients", "id"},
		{"receivable_operations", "id"}, {"partner_deliveries", "id"},
	} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE((SELECT MAX(%s) FROM %s), 1))",
			seq.table, seq.column, seq.column, seq.table)); err != nil {
			return fmt.Errorf("failed to advance %s sequence: %w", seq.table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit restore: %w", err)
	}
	return nil
}

// captureBackup collects every row related to the account and writes the
// snapshot inside the caller's transaction. Any failure here maps to
// ErrBackupFailed so the destructive caller aborts.
func (s *BackupService) captureBackup(ctx context.Context, tx pgx.Tx, account Account, operation, actor, reason string) (string, error) {
	p := backupPayload{Account: account}

	var err error
	if p.Credits, err = collectCredits(ctx, tx, account.ID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if p.Expenses, err = collectExpenses(ctx, tx, account.ID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if p.Transfers, err = collectTransfers(ctx, tx, account.ID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if p.Clients, p.Operations, err = collectReceivables(ctx, tx, account.ID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	if p.Deliveries, err = collectDeliveries(ctx, tx, account.ID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}

	backupID := ids.New()
	if _, err := tx.Exec(ctx, `
		INSERT INTO account_backups (id, account_id, account_name, actor, reason, operation, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, backupID, account.ID, account.Name, actor, reason, operation, raw); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	return backupID, nil
}

// clearLedgerRows deletes everything referencing the account and returns
// the ids of accounts that shared a transfer with it.
func (s *BackupService) clearLedgerRows(ctx context.Context, tx pgx.Tx, accountID int64) ([]int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT DISTINCT CASE WHEN source_account_id = $1 THEN destination_account_id ELSE source_account_id END
		FROM transfer_entries
		WHERE source_account_id = $1 OR destination_account_id = $1
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find transfer counterparties: %w", err)
	}
	var counterparties []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		counterparties = append(counterparties, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statements := []string{
		`DELETE FROM receivable_operations WHERE client_id IN (SELECT id FROM receivable_clients WHERE account_id = $1)`,
		`DELETE FROM receivable_clients WHERE account_id = $1`,
		`DELETE FROM partner_deliveries WHERE account_id = $1`,
		`DELETE FROM transfer_entries WHERE source_account_id = $1 OR destination_account_id = $1`,
		`DELETE FROM credit_entries WHERE account_id = $1`,
		`DELETE FROM expense_entries WHERE account_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, accountID); err != nil {
			return nil, fmt.Errorf("failed to clear ledger rows: %w", err)
		}
	}
	return counterparties, nil
}

func (s *BackupService) refreshCounterparties(ctx context.Context, tx pgx.Tx, counterparties []int64) error {
	// Lock in ascending id order, the same order the transfer write path
	// uses, so a concurrent delete and transfer cannot deadlock.
	slices.Sort(counterparties)
	for _, id := range counterparties {
		account, err := lockAccount(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := refreshTransferTotals(ctx, tx, id); err != nil {
			return err
		}
		if _, err := refreshBalance(ctx, tx, account); err != nil {
			return err
		}
	}
	return nil
}

func collectCredits(ctx context.Context, tx pgx.Tx, accountID int64) ([]CreditEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, account_id, amount, actor, note, entry_date, created_at
		FROM credit_entries WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditEntry
	for rows.Next() {
		var c CreditEntry
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Amount, &c.Actor, &c.Note, &c.EntryDate, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func collectExpenses(ctx context.Context, tx pgx.Tx, accountID int64) ([]ExpenseEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, account_id, amount, entry_date, description, supplier, category, created_at
		FROM expense_entries WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseEntry
	for rows.Next() {
		var e ExpenseEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.EntryDate, &e.Description, &e.Supplier, &e.Category, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func collectTransfers(ctx context.Context, tx pgx.Tx, accountID int64) ([]TransferEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, source_account_id, destination_account_id, amount, created_at
		FROM transfer_entries
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransferEntry
	for rows.Next() {
		var t TransferEntry
		if err := rows.Scan(&t.ID, &t.SourceAccountID, &t.DestinationAccountID, &t.Amount, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func collectReceivables(ctx context.Context, tx pgx.Tx, accountID int64) ([]ReceivableClient, []ReceivableOperation, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, account_id, name, phone, initial_credit, active, created_at
		FROM receivable_clients WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, nil, err
	}
	var clients []ReceivableClient
	for rows.Next() {
		var c ReceivableClient
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Phone, &c.InitialCredit, &c.Active, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, nil, err
		}
		clients = append(clients, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	opRows, err := tx.Query(ctx, `
		SELECT ro.id, ro.client_id, ro.kind, ro.amount, ro.op_date, ro.created_at
		FROM receivable_operations ro
		JOIN receivable_clients rc ON rc.id = ro.client_id
		WHERE rc.account_id = $1
		ORDER BY ro.id
	`, accountID)
	if err != nil {
		return nil, nil, err
	}
	defer opRows.Close()

	var operations []ReceivableOperation
	for opRows.Next() {
		var o ReceivableOperation
		var kind string
		if err := opRows.Scan(&o.ID, &o.ClientID, &kind, &o.Amount, &o.OpDate, &o.CreatedAt); err != nil {
			return nil, nil, err
		}
		o.Kind = OperationKind(kind)
		operations = append(operations, o)
	}
	return clients, operations, opRows.Err()
}

func collectDeliveries(ctx context.Context, tx pgx.Tx, accountID int64) ([]PartnerDelivery, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, account_id, amount, status, delivery_date, created_at
		FROM partner_deliveries WHERE account_id = $1 ORDER BY id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PartnerDelivery
	for rows.Next() {
		var d PartnerDelivery
		var status string
		if err := rows.Scan(&d.ID, &d.AccountID, &d.Amount, &status, &d.DeliveryDate, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Status = DeliveryStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}
