package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// AccountService is the registry: account creation, lookup and read-side
// listings. All derived columns it returns are maintained by LedgerService;
// this service never writes them.
type AccountService struct {
	pool *pgxpool.Pool
}

func NewAccountService(pool *pgxpool.Pool) *AccountService {
	return &AccountService{pool: pool}
}

// CreateAccount registers a new account with zeroed derived columns. The
// name is unique across the book.
func (s *AccountService) CreateAccount(ctx context.Context, name string, category AccountCategory) (Account, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return Account{}, err
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (name, category, current_balance, total_credited, total_spent,
		                      transfer_in_total, transfer_out_total, active, created_at)
		VALUES ($1, $2, 0, 0, 0, 0, 0, TRUE, NOW())
		RETURNING id
	`, name, string(category)).Scan(&id)
	if err != nil {
		return Account{}, fmt.Errorf("failed to create account %q: %w", name, err)
	}
	return getAccount(ctx, s.pool, id)
}

func (s *AccountService) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	return getAccount(ctx, s.pool, accountID)
}

// GetBalance returns the cached balance column. It reads committed data
// only; LedgerService guarantees the cache matches the ledger at every
// commit point.
func (s *AccountService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	a, err := getAccount(ctx, s.pool, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.CurrentBalance, nil
}

// ListAccounts returns all accounts, active first, then by name.
func (s *AccountService) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, current_balance, total_credited, total_spent,
		       transfer_in_total, transfer_out_total, active, created_at
		FROM accounts
		ORDER BY active DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		var rawCategory string
		if err := rows.Scan(&a.ID, &a.Name, &rawCategory, &a.CurrentBalance, &a.TotalCredited,
			&a.TotalSpent, &a.TransferInTotal, &a.TransferOutTotal, &a.Active, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if a.Category, err = ParseCategory(rawCategory); err != nil {
			return nil, fmt.Errorf("account %d: %w", a.ID, err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// StatementLine is one movement in a chronological account statement.
// Amount is signed from the account's point of view; RunningBalance is the
// cumulative position after this line.
type StatementLine struct {
	EntryDate      string          `json:"entry_date"`
	Kind           TransactionKind `json:"kind"`
	Label          string          `json:"label"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// GetStatement returns the account's movements in chronological order with
// a running balance. fromDate and toDate are optional "2006-01-02" bounds;
// empty means unbounded.
func (s *AccountService) GetStatement(ctx context.Context, accountID int64, fromDate, toDate string) ([]StatementLine, error) {
	if _, err := getAccount(ctx, s.pool, accountID); err != nil {
		return nil, err
	}

	q := `
		SELECT entry_date::text, kind, label, amount FROM (
			SELECT entry_date, 'credit'::text AS kind, note AS label, amount, created_at, id
			FROM credit_entries WHERE account_id = $1
			UNION ALL
			SELECT entry_date, 'expense', description, -amount, created_at, id
			FROM expense_entries WHERE account_id = $1
			UNION ALL
			SELECT created_at::date, 'transfer', 'transfer in', amount, created_at, id
			FROM transfer_entries WHERE destination_account_id = $1
			UNION ALL
			SELECT created_at::date, 'transfer', 'transfer out', -amount, created_at, id
			FROM transfer_entries WHERE source_account_id = $1
		) m`

	args := []any{accountID}
	if fromDate != "" {
		args = append(args, fromDate)
		q += fmt.Sprintf(" WHERE m.entry_date >= $%d::date", len(args))
	}
	if toDate != "" {
		args = append(args, toDate)
		connector := " WHERE"
		if fromDate != "" {
			connector = " AND"
		}
		q += fmt.Sprintf("%s m.entry_date <= $%d::date", connector, len(args))
	}
	q += " ORDER BY m.entry_date ASC, m.created_at ASC, m.id ASC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statement: %w", err)
	}
	defer rows.Close()

	var lines []StatementLine
	running := decimal.Zero
	for rows.Next() {
		var sl StatementLine
		var kind string
		if err := rows.Scan(&sl.EntryDate, &kind, &sl.Label, &sl.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan statement line: %w", err)
		}
		sl.Kind = TransactionKind(kind)
		running = running.Add(sl.Amount)
		sl.RunningBalance = running
		lines = append(lines, sl)
	}
	return lines, rows.Err()
}
