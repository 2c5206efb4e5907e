package app

import (
	"context"

	"tradebooks/internal/core"
)

// ApplicationService is the single interface all adapters (web, CLI) call.
// It decouples presentation from business logic: implementations contain no
// fmt.Println and no display logic of any kind. The request layer is
// trusted to have authenticated and authorized the caller already.
type ApplicationService interface {
	// CreateAccount registers a new account in one of the closed categories.
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResult, error)

	// GetAccount returns one account with its cached derived columns.
	GetAccount(ctx context.Context, accountID int64) (*AccountResult, error)

	// ListAccounts returns all accounts, active first.
	ListAccounts(ctx context.Context) (*AccountListResult, error)

	// GetStatement returns the account's movements in chronological order
	// with a running balance. fromDate/toDate are optional bounds.
	GetStatement(ctx context.Context, accountID int64, fromDate, toDate string) (*StatementResult, error)

	// AddCredit appends a credit entry and returns the updated account.
	AddCredit(ctx context.Context, req AddCreditRequest) (*AccountResult, error)

	// AddExpense appends an expense entry, enforcing budget validation for
	// non-exempt categories, and returns the updated account.
	AddExpense(ctx context.Context, req AddExpenseRequest) (*AccountResult, error)

	// AddTransfer moves an amount between two accounts and returns both
	// updated endpoints.
	AddTransfer(ctx context.Context, req AddTransferRequest) (*core.TransferResult, error)

	// DeleteTransaction removes a ledger row and reverses its effect,
	// returning every account whose balance was recomputed.
	DeleteTransaction(ctx context.Context, kind string, id int64) (*AccountsResult, error)

	// CreateReceivableClient registers a client under a receivable-pool
	// account.
	CreateReceivableClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error)

	// AddReceivableOperation records an advance or repayment and returns
	// the updated pool account.
	AddReceivableOperation(ctx context.Context, req AddOperationRequest) (*AccountResult, error)

	// ListReceivableClients returns a pool account's active clients.
	ListReceivableClients(ctx context.Context, accountID int64) (*ClientListResult, error)

	// AddPartnerDelivery records a pending delivery against a partner
	// account.
	AddPartnerDelivery(ctx context.Context, req AddDeliveryRequest) (*DeliveryResult, error)

	// SetDeliveryValidation transitions a delivery's validation status and
	// returns the partner account with its recomputed balance.
	SetDeliveryValidation(ctx context.Context, deliveryID int64, status string) (*AccountResult, error)

	// ListPartnerDeliveries returns a partner account's deliveries.
	ListPartnerDeliveries(ctx context.Context, accountID int64) (*DeliveryListResult, error)

	// ComputePL computes the profit/loss figures for the month containing
	// the cutoff date ("2006-01-02"; empty means today).
	ComputePL(ctx context.Context, cutoff string) (*core.PLResult, error)

	// AvailableCash sums balances over the cash-eligible categories.
	AvailableCash(ctx context.Context) (*CashResult, error)

	// ReconcileAll recomputes every ledger-style account's balance from the
	// authoritative ledger and corrects drifted caches.
	ReconcileAll(ctx context.Context) (*core.ReconcileReport, error)

	// BackupAccount captures a standalone snapshot of the account.
	BackupAccount(ctx context.Context, accountID int64) (*BackupResult, error)

	// RestoreBackup re-inserts a backed-up account and its ledger rows.
	RestoreBackup(ctx context.Context, backupID string) error

	// DeleteAccount removes an account after writing its backup snapshot.
	// Repeated calls after success report the account as already gone.
	DeleteAccount(ctx context.Context, req DestructiveRequest) (*core.DestructiveResult, error)

	// EmptyAccount clears an account's ledger and zeroes its balance after
	// writing a backup snapshot.
	EmptyAccount(ctx context.Context, req DestructiveRequest) (*core.DestructiveResult, error)
}
