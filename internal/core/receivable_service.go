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

// ReceivableService manages clients attached to a receivable-pool account
// and their advance/repayment operations. Every operation recomputes the
// pool account's balance in the same transaction.
type ReceivableService struct {
	pool *pgxpool.Pool
}

func NewReceivableService(pool *pgxpool.Pool) *ReceivableService {
	return &ReceivableService{pool: pool}
}

// CreateClient registers a client under a receivable-pool account. The
// initial credit immediately enters the pool balance.
func (s *ReceivableService) CreateClient(ctx context.Context, accountID int64, name, phone string, initialCredit decimal.Decimal) (ReceivableClient, error) {
	if initialCredit.IsNegative() {
		return ReceivableClient{}, ErrInvalidAmount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ReceivableClient{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return ReceivableClient{}, err
	}
	if account.Category != CategoryReceivablePool {
		return ReceivableClient{}, fmt.Errorf("account %d is %s: %w", accountID, account.Category, ErrUnsupportedCategory)
	}

	var client ReceivableClient
	err = tx.QueryRow(ctx, `
		INSERT INTO receivable_clients (account_id, name, phone, initial_credit, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		RETURNING id, created_at
	`, accountID, name, phone, initialCredit).Scan(&client.ID, &client.CreatedAt)
	if err != nil {
		return ReceivableClient{}, fmt.Errorf("failed to create client %q: %w", name, err)
	}
	client.AccountID = accountID
	client.Name = name
	client.Phone = phone
	client.InitialCredit = initialCredit
	client.Active = true

	if _, err := refreshBalance(ctx, tx, account); err != nil {
		return ReceivableClient{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return ReceivableClient{}, fmt.Errorf("failed to commit client creation: %w", err)
	}
	return client, nil
}

// AddOperation records an advance or repayment for a client and refreshes
// the pool account balance.
func (s *ReceivableService) AddOperation(ctx context.Context, clientID int64, kind OperationKind, amount decimal.Decimal, opDate time.Time) (Account, error) {
	if !amount.IsPositive() {
		return Account{}, ErrInvalidAmount
	}
	if kind != OperationAdvance && kind != OperationRepayment {
		return Account{}, fmt.Errorf("kind %q: %w", kind, ErrInvalidOperation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Account{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var accountID int64
	err = tx.QueryRow(ctx, "SELECT account_id FROM receivable_clients WHERE id = $1 AND active", clientID).Scan(&accountID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrClientNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("failed to fetch client %d: %w", clientID, err)
	}

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return Account{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO receivable_operations (client_id, kind, amount, op_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, clientID, string(kind), amount, opDate); err != nil {
		return Account{}, fmt.Errorf("failed to insert %s: %w", kind, err)
	}

	account, err = refreshBalance(ctx, tx, account)
	if err != nil {
		return Account{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Account{}, fmt.Errorf("failed to commit %s: %w", kind, err)
	}
	return account, nil
}

// ClientBalance returns one client's position:
// initial_credit + Σadvances − Σrepayments.
func (s *ReceivableService) ClientBalance(ctx context.Context, clientID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT rc.initial_credit
		     + COALESCE(SUM(CASE WHEN ro.kind = 'advance'   THEN ro.amount ELSE 0 END), 0)
		     - COALESCE(SUM(CASE WHEN ro.kind = 'repayment' THEN ro.amount ELSE 0 END), 0)
		FROM receivable_clients rc
		LEFT JOIN receivable_operations ro ON ro.client_id = rc.id
		WHERE rc.id = $1
		GROUP BY rc.id, rc.initial_credit
	`, clientID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrClientNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute client %d balance: %w", clientID, err)
	}
	return balance, nil
}

// ListClients returns the active clients of a receivable-pool account.
func (s *ReceivableService) ListClients(ctx context.Context, accountID int64) ([]ReceivableClient, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, name, phone, initial_credit, active, created_at
		FROM receivable_clients
		WHERE account_id = $1 AND active
		ORDER BY name
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []ReceivableClient
	for rows.Next() {
		var c ReceivableClient
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.Phone, &c.InitialCredit, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
