package core_test

import (
	"context"
	"errors"
	"testing"

	"tradebooks/internal/core"
)

func TestBackup_DeleteAccountWritesSnapshotFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Doomed", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("75000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddExpense(ctx, account.ID, d("25000"), today(), "supplies", "", ""); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	result, err := backups.DeleteAccount(ctx, account.ID, "admin", "closing shop")
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if result.AlreadyGone {
		t.Fatal("first delete must not report already gone")
	}
	if result.BackupID == "" {
		t.Fatal("expected a backup id")
	}
	if result.AccountName != "Doomed" {
		t.Errorf("expected account name Doomed, got %s", result.AccountName)
	}

	// The account and its ledger rows are gone; the snapshot survives.
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts WHERE id = $1", account.ID).Scan(&count); err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if count != 0 {
		t.Error("account row should be deleted")
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM credit_entries WHERE account_id = $1", account.ID).Scan(&count); err != nil {
		t.Fatalf("count credits: %v", err)
	}
	if count != 0 {
		t.Error("credit entries should be deleted")
	}
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM account_backups WHERE account_id = $1 AND operation = 'delete'", account.ID).Scan(&count); err != nil {
		t.Fatalf("count backups: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one delete snapshot, got %d", count)
	}

	// Repeat call reports success without destroying anything new.
	again, err := backups.DeleteAccount(ctx, account.ID, "admin", "retry")
	if err != nil {
		t.Fatalf("repeat DeleteAccount: %v", err)
	}
	if !again.AlreadyGone {
		t.Error("repeat delete must report already gone")
	}
}

func TestBackup_DeleteRefreshesTransferCounterparty(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	a := mustAccount(t, pool, "Goes Away", core.CategoryLedger)
	b := mustAccount(t, pool, "Stays Behind", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, a.ID, d("40000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, a.ID, b.ID, d("15000")); err != nil {
		t.Fatalf("AddTransfer: %v", err)
	}

	if _, err := backups.DeleteAccount(ctx, a.ID, "admin", "cleanup"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	// The shared transfer is gone, so B's totals and balance return to zero.
	remaining, err := core.NewAccountService(pool).GetAccount(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !remaining.TransferInTotal.IsZero() || !remaining.CurrentBalance.IsZero() {
		t.Errorf("counterparty not refreshed: in=%s balance=%s",
			remaining.TransferInTotal, remaining.CurrentBalance)
	}
}

func TestBackup_DeleteRefreshesAllCounterparties(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	accounts := core.NewAccountService(pool)

	// Create the hub last so its counterparties carry lower ids than it:
	// the refresh pass must still lock them in ascending order and reach
	// every one of them.
	first := mustAccount(t, pool, "Counterparty One", core.CategoryLedger)
	second := mustAccount(t, pool, "Counterparty Two", core.CategoryLedger)
	hub := mustAccount(t, pool, "Hub", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, hub.ID, d("50000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, hub.ID, second.ID, d("12000")); err != nil {
		t.Fatalf("AddTransfer to second: %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, hub.ID, first.ID, d("7000")); err != nil {
		t.Fatalf("AddTransfer to first: %v", err)
	}

	if _, err := backups.DeleteAccount(ctx, hub.ID, "admin", "hub removal"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	for _, id := range []int64{first.ID, second.ID} {
		a, err := accounts.GetAccount(ctx, id)
		if err != nil {
			t.Fatalf("GetAccount(%d): %v", id, err)
		}
		if !a.TransferInTotal.IsZero() || !a.CurrentBalance.IsZero() {
			t.Errorf("account %d not refreshed: in=%s balance=%s",
				id, a.TransferInTotal, a.CurrentBalance)
		}
	}
}

func TestBackup_EmptyAccountKeepsRow(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Wiped Clean", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("60000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	result, err := backups.EmptyAccount(ctx, account.ID, "admin", "fresh start")
	if err != nil {
		t.Fatalf("EmptyAccount: %v", err)
	}
	if result.BackupID == "" {
		t.Fatal("expected a backup id")
	}

	a, err := core.NewAccountService(pool).GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount after empty: %v", err)
	}
	if !a.CurrentBalance.IsZero() || !a.TotalCredited.IsZero() || !a.TotalSpent.IsZero() {
		t.Errorf("expected zeroed columns, got balance=%s credited=%s spent=%s",
			a.CurrentBalance, a.TotalCredited, a.TotalSpent)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM credit_entries WHERE account_id = $1", account.ID).Scan(&count); err != nil {
		t.Fatalf("count credits: %v", err)
	}
	if count != 0 {
		t.Error("ledger rows should be cleared")
	}
}

func TestBackup_RestoreRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Round Trip", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("90000"), "tester", "seed", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddExpense(ctx, account.ID, d("40000"), today(), "supplies", "store", "ops"); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	result, err := backups.DeleteAccount(ctx, account.ID, "admin", "mistake incoming")
	if err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	if err := backups.Restore(ctx, result.BackupID); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := core.NewAccountService(pool).GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount after restore: %v", err)
	}
	if !restored.CurrentBalance.Equal(d("50000")) {
		t.Errorf("restored balance: expected 50000, got %s", restored.CurrentBalance)
	}
	if restored.Name != "Round Trip" {
		t.Errorf("restored name: expected Round Trip, got %s", restored.Name)
	}

	var credits, expenses int
	pool.QueryRow(ctx, "SELECT COUNT(*) FROM credit_entries WHERE account_id = $1", account.ID).Scan(&credits)
	pool.QueryRow(ctx, "SELECT COUNT(*) FROM expense_entries WHERE account_id = $1", account.ID).Scan(&expenses)
	if credits != 1 || expenses != 1 {
		t.Errorf("restored rows: expected 1 credit and 1 expense, got %d/%d", credits, expenses)
	}

	// New mutations keep working after a restore with preserved ids.
	if _, err := ledger.AddCredit(ctx, account.ID, d("1000"), "tester", "post-restore", today()); err != nil {
		t.Fatalf("AddCredit after restore: %v", err)
	}
}

func TestBackup_RestoreUnknownID(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	backups := core.NewBackupService(pool)
	if err := backups.Restore(context.Background(), "01JUNKJUNKJUNKJUNKJUNKJUNK"); !errors.Is(err, core.ErrBackupNotFound) {
		t.Errorf("expected ErrBackupNotFound, got %v", err)
	}
}

func TestBackup_StandaloneSnapshot(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	backups := core.NewBackupService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Archived", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("500"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	backupID, err := backups.Backup(ctx, account.ID)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if backupID == "" {
		t.Fatal("expected a backup id")
	}

	// A plain backup destroys nothing.
	a, err := core.NewAccountService(pool).GetAccount(ctx, account.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if !a.CurrentBalance.Equal(d("500")) {
		t.Errorf("backup must not touch the account, balance=%s", a.CurrentBalance)
	}
}
