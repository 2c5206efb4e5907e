package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"tradebooks/internal/audit"
	"tradebooks/internal/core"
	"tradebooks/internal/obs"
)

type appService struct {
	pool        *pgxpool.Pool
	accounts    *core.AccountService
	ledger      *core.LedgerService
	receivables *core.ReceivableService
	partners    *core.PartnerService
	reconciler  *core.Reconciler
	plEngine    *core.PLEngine
	cash        *core.CashAggregator
	backups     *core.BackupService
	settings    core.Settings
}

// NewAppService wires the core services together and installs the single
// post-mutation reconciliation hook on the ledger service. Reconciliation
// failures are logged, never returned: the triggering mutation's own
// transaction already established the balance invariant.
func NewAppService(pool *pgxpool.Pool, settings core.Settings) ApplicationService {
	s := &appService{
		pool:        pool,
		accounts:    core.NewAccountService(pool),
		ledger:      core.NewLedgerService(pool, settings),
		receivables: core.NewReceivableService(pool),
		partners:    core.NewPartnerService(pool),
		reconciler:  core.NewReconciler(pool),
		plEngine:    core.NewPLEngine(pool, settings),
		cash:        core.NewCashAggregator(pool),
		backups:     core.NewBackupService(pool),
		settings:    settings,
	}
	s.ledger.SetAfterMutation(s.reconcilePostMutation)
	return s
}

// reconcilePostMutation is the defensive second line behind every committed
// ledger mutation on a ledger-style account.
func (s *appService) reconcilePostMutation(ctx context.Context) {
	report, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		obs.ReconciliationRuns.WithLabelValues("error").Inc()
		obs.Event("error", "post-mutation reconciliation failed", map[string]any{"error": err.Error()})
		return
	}
	obs.ReconciliationRuns.WithLabelValues("ok").Inc()
	if report.AccountsCorrected > 0 {
		obs.ReconciliationCorrections.Add(float64(report.AccountsCorrected))
		obs.Event("warn", "reconciliation corrected drifted balances", map[string]any{
			"accounts_checked":   report.AccountsChecked,
			"accounts_corrected": report.AccountsCorrected,
		})
	}
}

func (s *appService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*AccountResult, error) {
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return nil, fmt.Errorf("category %q: %w", req.Category, err)
	}
	account, err := s.accounts.CreateAccount(ctx, req.Name, category)
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: account}, nil
}

func (s *appService) GetAccount(ctx context.Context, accountID int64) (*AccountResult, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: account}, nil
}

func (s *appService) ListAccounts(ctx context.Context) (*AccountListResult, error) {
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	return &AccountListResult{Accounts: accounts}, nil
}

func (s *appService) GetStatement(ctx context.Context, accountID int64, fromDate, toDate string) (*StatementResult, error) {
	lines, err := s.accounts.GetStatement(ctx, accountID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	return &StatementResult{AccountID: accountID, Lines: lines}, nil
}

func (s *appService) AddCredit(ctx context.Context, req AddCreditRequest) (*AccountResult, error) {
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.AddCredit(ctx, req.AccountID, req.Amount, req.Actor, req.Note, entryDate)
	if err != nil {
		return nil, err
	}
	obs.MutationsTotal.WithLabelValues("credit").Inc()
	return &AccountResult{Account: account}, nil
}

func (s *appService) AddExpense(ctx context.Context, req AddExpenseRequest) (*AccountResult, error) {
	entryDate, err := parseDate(req.EntryDate)
	if err != nil {
		return nil, err
	}
	account, err := s.ledger.AddExpense(ctx, req.AccountID, req.Amount, entryDate,
		req.Description, req.Supplier, req.Category)
	if err != nil {
		return nil, err
	}
	obs.MutationsTotal.WithLabelValues("expense").Inc()
	return &AccountResult{Account: account}, nil
}

func (s *appService) AddTransfer(ctx context.Context, req AddTransferRequest) (*core.TransferResult, error) {
	result, err := s.ledger.AddTransfer(ctx, req.SourceAccountID, req.DestinationAccountID, req.Amount)
	if err != nil {
		return nil, err
	}
	obs.MutationsTotal.WithLabelValues("transfer").Inc()
	return &result, nil
}

func (s *appService) DeleteTransaction(ctx context.Context, kind string, id int64) (*AccountsResult, error) {
	accounts, err := s.ledger.DeleteTransaction(ctx, core.TransactionKind(kind), id)
	if err != nil {
		return nil, err
	}
	obs.MutationsTotal.WithLabelValues("delete").Inc()
	return &AccountsResult{Accounts: accounts}, nil
}

func (s *appService) CreateReceivableClient(ctx context.Context, req CreateClientRequest) (*ClientResult, error) {
	client, err := s.receivables.CreateClient(ctx, req.AccountID, req.Name, req.Phone, req.InitialCredit)
	if err != nil {
		return nil, err
	}
	return &ClientResult{Client: client}, nil
}

func (s *appService) AddReceivableOperation(ctx context.Context, req AddOperationRequest) (*AccountResult, error) {
	opDate, err := parseDate(req.OpDate)
	if err != nil {
		return nil, err
	}
	account, err := s.receivables.AddOperation(ctx, req.ClientID, core.OperationKind(req.Kind), req.Amount, opDate)
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: account}, nil
}

func (s *appService) ListReceivableClients(ctx context.Context, accountID int64) (*ClientListResult, error) {
	clients, err := s.receivables.ListClients(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &ClientListResult{Clients: clients}, nil
}

func (s *appService) AddPartnerDelivery(ctx context.Context, req AddDeliveryRequest) (*DeliveryResult, error) {
	deliveryDate, err := parseDate(req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	delivery, err := s.partners.AddDelivery(ctx, req.AccountID, req.Amount, deliveryDate)
	if err != nil {
		return nil, err
	}
	return &DeliveryResult{Delivery: delivery}, nil
}

func (s *appService) SetDeliveryValidation(ctx context.Context, deliveryID int64, status string) (*AccountResult, error) {
	account, err := s.partners.SetDeliveryValidation(ctx, deliveryID, core.DeliveryStatus(status))
	if err != nil {
		return nil, err
	}
	return &AccountResult{Account: account}, nil
}

func (s *appService) ListPartnerDeliveries(ctx context.Context, accountID int64) (*DeliveryListResult, error) {
	deliveries, err := s.partners.ListDeliveries(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &DeliveryListResult{Deliveries: deliveries}, nil
}

func (s *appService) ComputePL(ctx context.Context, cutoff string) (*core.PLResult, error) {
	cutoffDate, err := parseDate(cutoff)
	if err != nil {
		return nil, err
	}
	return s.plEngine.ComputePL(ctx, cutoffDate)
}

func (s *appService) AvailableCash(ctx context.Context) (*CashResult, error) {
	amount, err := s.cash.AvailableCash(ctx)
	if err != nil {
		return nil, err
	}
	return &CashResult{Amount: amount, Currency: s.settings.Currency}, nil
}

func (s *appService) ReconcileAll(ctx context.Context) (*core.ReconcileReport, error) {
	report, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		obs.ReconciliationRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	obs.ReconciliationRuns.WithLabelValues("ok").Inc()
	if report.AccountsCorrected > 0 {
		obs.ReconciliationCorrections.Add(float64(report.AccountsCorrected))
	}
	return &report, nil
}

func (s *appService) BackupAccount(ctx context.Context, accountID int64) (*BackupResult, error) {
	backupID, err := s.backups.Backup(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &BackupResult{BackupID: backupID}, nil
}

func (s *appService) RestoreBackup(ctx context.Context, backupID string) error {
	if err := s.backups.Restore(ctx, backupID); err != nil {
		return err
	}
	_ = audit.LogEvent(ctx, "account.restore", map[string]any{"backup_id": backupID})
	return nil
}

func (s *appService) DeleteAccount(ctx context.Context, req DestructiveRequest) (*core.DestructiveResult, error) {
	result, err := s.backups.DeleteAccount(ctx, req.AccountID, req.Actor, req.Reason)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyGone {
		_ = audit.LogEvent(ctx, "account.delete", map[string]any{
			"account_id":   req.AccountID,
			"account_name": result.AccountName,
			"backup_id":    result.BackupID,
			"actor":        req.Actor,
			"reason":       req.Reason,
		})
	}
	return &result, nil
}

func (s *appService) EmptyAccount(ctx context.Context, req DestructiveRequest) (*core.DestructiveResult, error) {
	result, err := s.backups.EmptyAccount(ctx, req.AccountID, req.Actor, req.Reason)
	if err != nil {
		return nil, err
	}
	if !result.AlreadyGone {
		_ = audit.LogEvent(ctx, "account.empty", map[string]any{
			"account_id":   req.AccountID,
			"account_name": result.AccountName,
			"backup_id":    result.BackupID,
			"actor":        req.Actor,
			"reason":       req.Reason,
		})
	}
	return &result, nil
}

// parseDate parses a "2006-01-02" request date; empty means today.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
