package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tradebooks/internal/core"
)

func TestAccount_CreateAndGet(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewAccountService(pool)

	a, err := svc.CreateAccount(ctx, "Registry Test", core.CategoryLedger)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if a.ID == 0 {
		t.Error("expected account id to be set")
	}
	if !a.CurrentBalance.IsZero() || !a.TotalCredited.IsZero() {
		t.Error("new account must start with zeroed columns")
	}
	if !a.Active {
		t.Error("new account must be active")
	}

	got, err := svc.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if got.Name != "Registry Test" || got.Category != core.CategoryLedger {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if _, err := svc.GetAccount(ctx, 999999); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccount_CreateRejectsUnknownCategory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewAccountService(pool)
	if _, err := svc.CreateAccount(context.Background(), "Bad", core.AccountCategory("crypto")); !errors.Is(err, core.ErrUnsupportedCategory) {
		t.Errorf("expected ErrUnsupportedCategory, got %v", err)
	}
}

func TestAccount_Statement(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewAccountService(pool)
	ledger := core.NewLedgerService(pool, testSettings())
	account := mustAccount(t, pool, "Statement Acc", core.CategoryLedger)

	jan5 := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	jan10 := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	if _, err := ledger.AddCredit(ctx, account.ID, d("50000"), "tester", "opening", jan5); err != nil {
		t.Fatalf("AddCredit: %v", err)
	}
	if _, err := ledger.AddExpense(ctx, account.ID, d("20000"), jan10, "rent", "", ""); err != nil {
		t.Fatalf("AddExpense: %v", err)
	}

	lines, err := svc.GetStatement(ctx, account.ID, "", "")
	if err != nil {
		t.Fatalf("GetStatement: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Kind != core.KindCredit || !lines[0].RunningBalance.Equal(d("50000")) {
		t.Errorf("line 0: %+v", lines[0])
	}
	if lines[1].Kind != core.KindExpense || !lines[1].Amount.Equal(d("-20000")) ||
		!lines[1].RunningBalance.Equal(d("30000")) {
		t.Errorf("line 1: %+v", lines[1])
	}

	// Date bounds filter lines out of range.
	bounded, err := svc.GetStatement(ctx, account.ID, "2025-01-08", "2025-01-31")
	if err != nil {
		t.Fatalf("bounded GetStatement: %v", err)
	}
	if len(bounded) != 1 || bounded[0].Kind != core.KindExpense {
		t.Errorf("expected only the expense in range, got %+v", bounded)
	}

	if _, err := svc.GetStatement(ctx, 999999, "", ""); !errors.Is(err, core.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccount_ListOrdersActiveFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc := core.NewAccountService(pool)

	active := mustAccount(t, pool, "A Active", core.CategoryLedger)
	retired := mustAccount(t, pool, "A Retired", core.CategoryLedger)
	if _, err := pool.Exec(ctx, "UPDATE accounts SET active = FALSE WHERE id = $1", retired.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	accounts, err := svc.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("ListAccounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].ID != active.ID {
		t.Errorf("expected active account first, got %+v", accounts[0])
	}
}
