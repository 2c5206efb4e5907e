package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CashAggregator reports the liquid subset of the book: the sum of cached
// balances over active accounts whose category counts as available cash.
// Partner, deposit, receivable and supplier balances are committed or owed
// money, not cash on hand.
type CashAggregator struct {
	pool *pgxpool.Pool
}

func NewCashAggregator(pool *pgxpool.Pool) *CashAggregator {
	return &CashAggregator{pool: pool}
}

// AvailableCash sums balances over the cash-eligible categories.
// Classification happens in Go through the closed cashEligible match so a
// category outside the known set fails loudly instead of silently landing
// in either bucket.
func (s *CashAggregator) AvailableCash(ctx context.Context) (decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, category, current_balance FROM accounts WHERE active")
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var id int64
		var rawCategory string
		var balance decimal.Decimal
		if err := rows.Scan(&id, &rawCategory, &balance); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan account: %w", err)
		}
		eligible, err := cashEligible(AccountCategory(rawCategory))
		if err != nil {
			return decimal.Zero, fmt.Errorf("account %d category %q: %w", id, rawCategory, err)
		}
		if eligible {
			total = total.Add(balance)
		}
	}
	return total, rows.Err()
}
