package core_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"tradebooks/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live book.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE receivable_operations, receivable_clients, partner_deliveries,
		               transfer_entries, credit_entries, expense_entries,
		               stock_snapshots, cash_levels, account_backups, accounts CASCADE
	`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}

	return pool
}

func testSettings() core.Settings {
	return core.Settings{
		FixedMonthlyCharges:     decimal.Zero,
		ExpenseBudgetValidation: true,
		Currency:                "XOF",
	}
}

func mustAccount(t *testing.T, pool *pgxpool.Pool, name string, category core.AccountCategory) core.Account {
	t.Helper()
	a, err := core.NewAccountService(pool).CreateAccount(context.Background(), name, category)
	if err != nil {
		t.Fatalf("CreateAccount(%s): %v", name, err)
	}
	return a
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func TestLedger_CreditAndExpense(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Main Till", core.CategoryLedger)

	a, err := ledger.AddCredit(ctx, account.ID, d("100000"), "tester", "opening", today())
	if err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if !a.CurrentBalance.Equal(d("100000")) {
		t.Errorf("expected balance 100000, got %s", a.CurrentBalance)
	}
	if !a.TotalCredited.Equal(d("100000")) {
		t.Errorf("expected total_credited 100000, got %s", a.TotalCredited)
	}

	a, err = ledger.AddExpense(ctx, account.ID, d("30000"), today(), "fuel", "station", "transport")
	if err != nil {
		t.Fatalf("AddExpense: %v", err)
	}
	if !a.CurrentBalance.Equal(d("70000")) {
		t.Errorf("expected balance 70000, got %s", a.CurrentBalance)
	}
	if !a.TotalSpent.Equal(d("30000")) {
		t.Errorf("expected total_spent 30000, got %s", a.TotalSpent)
	}
}

func TestLedger_InvalidAmounts(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Till", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("0"), "", "", today()); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.AddCredit(ctx, account.ID, d("-50"), "", "", today()); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.AddExpense(ctx, account.ID, d("-1"), today(), "", "", ""); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("negative expense: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := ledger.AddCredit(ctx, 999999, d("100"), "", "", today()); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("missing account: expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedger_TransferCoherence(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	a := mustAccount(t, pool, "Account A", core.CategoryLedger)
	b := mustAccount(t, pool, "Account B", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, a.ID, d("100000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	// Two same-direction rows must aggregate into one outgoing total.
	if _, err := ledger.AddTransfer(ctx, a.ID, b.ID, d("10000")); err != nil {
		t.Fatalf("AddTransfer A->B 10000: %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, a.ID, b.ID, d("8000")); err != nil {
		t.Fatalf("AddTransfer A->B 8000: %v", err)
	}
	result, err := ledger.AddTransfer(ctx, b.ID, a.ID, d("5000"))
	if err != nil {
		t.Fatalf("AddTransfer B->A: %v", err)
	}

	// B sourced the second transfer, A received it.
	gotB, gotA := result.Source, result.Destination

	if !gotA.TransferOutTotal.Equal(d("18000")) || !gotA.TransferInTotal.Equal(d("5000")) {
		t.Errorf("A totals: out=%s in=%s, want out=18000 in=5000", gotA.TransferOutTotal, gotA.TransferInTotal)
	}
	if !gotB.TransferInTotal.Equal(d("18000")) || !gotB.TransferOutTotal.Equal(d("5000")) {
		t.Errorf("B totals: in=%s out=%s, want in=18000 out=5000", gotB.TransferInTotal, gotB.TransferOutTotal)
	}

	// Each side's out must mirror the other's in exactly.
	if !gotA.TransferOutTotal.Equal(gotB.TransferInTotal) || !gotB.TransferOutTotal.Equal(gotA.TransferInTotal) {
		t.Errorf("transfer totals out of mirror: A(out=%s,in=%s) B(out=%s,in=%s)",
			gotA.TransferOutTotal, gotA.TransferInTotal, gotB.TransferOutTotal, gotB.TransferInTotal)
	}

	if !gotA.CurrentBalance.Equal(d("87000")) {
		t.Errorf("A balance: expected 87000, got %s", gotA.CurrentBalance)
	}
	if !gotB.CurrentBalance.Equal(d("13000")) {
		t.Errorf("B balance: expected 13000, got %s", gotB.CurrentBalance)
	}
}

func TestLedger_TransferRejections(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	a := mustAccount(t, pool, "Solo", core.CategoryLedger)

	if _, err := ledger.AddTransfer(ctx, a.ID, a.ID, d("100")); !errors.Is(err, core.ErrSameAccount) {
		t.Errorf("self transfer: expected ErrSameAccount, got %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, a.ID, 999999, d("100")); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("missing destination: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, a.ID, a.ID+1, d("0")); !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("zero transfer: expected ErrInvalidAmount, got %v", err)
	}
}

func TestLedger_DeleteTransactionReversesEffect(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	a := mustAccount(t, pool, "Delete A", core.CategoryLedger)
	b := mustAccount(t, pool, "Delete B", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, a.ID, d("50000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	var creditID int64
	if err := pool.QueryRow(ctx,
		"SELECT id FROM credit_entries WHERE account_id = $1", a.ID).Scan(&creditID); err != nil {
		t.Fatalf("fetch credit id: %v", err)
	}

	// Insert then delete must land back on the starting balance.
	updated, err := ledger.DeleteTransaction(ctx, core.KindCredit, creditID)
	if err != nil {
		t.Fatalf("DeleteTransaction(credit): %v", err)
	}
	if len(updated) != 1 || !updated[0].CurrentBalance.IsZero() {
		t.Errorf("expected zero balance after deleting the only credit, got %+v", updated)
	}

	// Transfer deletion reverses both endpoints atomically.
	if _, err := ledger.AddCredit(ctx, a.ID, d("20000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddTransfer(ctx, a.ID, b.ID, d("8000")); err != nil {
		t.Fatalf("AddTransfer: %v", err)
	}
	var transferID int64
	if err := pool.QueryRow(ctx,
		"SELECT id FROM transfer_entries WHERE source_account_id = $1", a.ID).Scan(&transferID); err != nil {
		t.Fatalf("fetch transfer id: %v", err)
	}
	updated, err = ledger.DeleteTransaction(ctx, core.KindTransfer, transferID)
	if err != nil {
		t.Fatalf("DeleteTransaction(transfer): %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected both endpoints updated, got %d", len(updated))
	}
	for _, acc := range updated {
		switch acc.ID {
		case a.ID:
			if !acc.CurrentBalance.Equal(d("20000")) {
				t.Errorf("A after reversal: expected 20000, got %s", acc.CurrentBalance)
			}
		case b.ID:
			if !acc.CurrentBalance.IsZero() {
				t.Errorf("B after reversal: expected 0, got %s", acc.CurrentBalance)
			}
		}
		if !acc.TransferInTotal.IsZero() || !acc.TransferOutTotal.IsZero() {
			t.Errorf("account %d: expected zero transfer totals, got in=%s out=%s",
				acc.ID, acc.TransferInTotal, acc.TransferOutTotal)
		}
	}

	if _, err := ledger.DeleteTransaction(ctx, core.KindTransfer, transferID); !errors.Is(err, core.ErrTransactionNotFound) {
		t.Errorf("double delete: expected ErrTransactionNotFound, got %v", err)
	}
}

func TestLedger_BudgetValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Budgeted", core.CategoryLedger)

	if _, err := ledger.AddCredit(ctx, account.ID, d("100000"), "tester", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}

	// 150000 against a 100000 balance must be rejected with no row written.
	_, err := ledger.AddExpense(ctx, account.ID, d("150000"), today(), "overdraft attempt", "", "")
	if !errors.Is(err, core.ErrBudgetInsufficient) {
		t.Fatalf("expected ErrBudgetInsufficient, got %v", err)
	}
	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM expense_entries WHERE account_id = $1", account.ID).Scan(&count); err != nil {
		t.Fatalf("count expenses: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected expense must not persist, found %d rows", count)
	}

	// Spending the full balance exactly is allowed.
	a, err := ledger.AddExpense(ctx, account.ID, d("100000"), today(), "spend all", "", "")
	if err != nil {
		t.Fatalf("full-balance expense: %v", err)
	}
	if !a.CurrentBalance.IsZero() {
		t.Errorf("expected zero balance, got %s", a.CurrentBalance)
	}
}

func TestLedger_BudgetValidation_SnapshotExempt(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Register Reading", core.CategorySnapshot)

	// Snapshot accounts bypass the budget check entirely.
	if _, err := ledger.AddExpense(ctx, account.ID, d("999999"), today(), "register correction", "", ""); err != nil {
		t.Fatalf("snapshot expense: %v", err)
	}
}

func TestLedger_BudgetValidation_Disabled(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	settings := testSettings()
	settings.ExpenseBudgetValidation = false
	ledger := core.NewLedgerService(pool, settings)
	account := mustAccount(t, pool, "Free Spender", core.CategoryLedger)

	a, err := ledger.AddExpense(ctx, account.ID, d("5000"), today(), "negative ok", "", "")
	if err != nil {
		t.Fatalf("expense with validation off: %v", err)
	}
	if !a.CurrentBalance.Equal(d("-5000")) {
		t.Errorf("expected -5000, got %s", a.CurrentBalance)
	}
}

func TestLedger_SnapshotLatestReadingWins(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Drawer Reading", core.CategorySnapshot)

	jan10 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	jan15 := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	if _, err := ledger.AddCredit(ctx, account.ID, d("2500000"), "tester", "reading", jan10); err != nil {
		t.Fatalf("AddCredit jan10: %v", err)
	}
	a, err := ledger.AddCredit(ctx, account.ID, d("1800000"), "tester", "reading", jan15)
	if err != nil {
		t.Fatalf("AddCredit jan15: %v", err)
	}
	if !a.CurrentBalance.Equal(d("1800000")) {
		t.Errorf("expected latest reading 1800000, got %s", a.CurrentBalance)
	}

	// A back-dated entry must not displace the newer reading.
	jan5 := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	a, err = ledger.AddCredit(ctx, account.ID, d("9999999"), "tester", "late entry", jan5)
	if err != nil {
		t.Fatalf("AddCredit jan5: %v", err)
	}
	if !a.CurrentBalance.Equal(d("1800000")) {
		t.Errorf("back-dated entry displaced the latest reading: got %s", a.CurrentBalance)
	}
}

func TestLedger_InactiveAccountRejected(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Retired", core.CategoryLedger)

	if _, err := pool.Exec(ctx, "UPDATE accounts SET active = FALSE WHERE id = $1", account.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := ledger.AddCredit(ctx, account.ID, d("100"), "", "", today()); !errors.Is(err, core.ErrAccountInactive) {
		t.Errorf("credit on inactive: expected ErrAccountInactive, got %v", err)
	}
	if _, err := ledger.AddExpense(ctx, account.ID, d("100"), today(), "", "", ""); !errors.Is(err, core.ErrAccountInactive) {
		t.Errorf("expense on inactive: expected ErrAccountInactive, got %v", err)
	}
}

func TestLedger_PostMutationHookFires(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())

	fired := make(chan struct{}, 2)
	ledger.SetAfterMutation(func(ctx context.Context) { fired <- struct{}{} })

	ledgerAcc := mustAccount(t, pool, "Hooked", core.CategoryLedger)
	partnerAcc := mustAccount(t, pool, "Partner Side", core.CategoryPartner)

	if _, err := ledger.AddCredit(ctx, ledgerAcc.ID, d("1000"), "", "", today()); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Error("expected hook after ledger-style mutation")
	}

	// Mutations touching no ledger-style account leave the hook idle.
	if _, err := ledger.AddCredit(ctx, partnerAcc.ID, d("1000"), "", "", today()); err != nil {
		t.Fatalf("AddCredit partner: %v", err)
	}
	select {
	case <-fired:
		t.Error("hook must not fire for partner-only mutation")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestLedger_PostMutationHookOffRequestPath(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Unblocked", core.CategoryLedger)

	// The hook stalls until released. If it ran on the request path,
	// AddCredit could never return before the release below.
	release := make(chan struct{})
	done := make(chan struct{})
	ledger.SetAfterMutation(func(ctx context.Context) {
		<-release
		close(done)
	})

	a, err := ledger.AddCredit(ctx, account.ID, d("1000"), "tester", "", today())
	if err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if !a.CurrentBalance.Equal(d("1000")) {
		t.Errorf("expected balance 1000, got %s", a.CurrentBalance)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Error("hook never ran after the mutation returned")
	}
}
