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

// PLComponents are the period-scoped inputs to the profit/loss formulas.
// All figures cover the month containing the cutoff, up to the cutoff day.
type PLComponents struct {
	CashLevel         decimal.Decimal `json:"cash_level"`
	Receivables       decimal.Decimal `json:"receivables"`
	PointOfSaleStock  decimal.Decimal `json:"point_of_sale_stock"`
	CashBurn          decimal.Decimal `json:"cash_burn"`
	StockVariation    decimal.Decimal `json:"stock_variation"`
	PartnerDeliveries decimal.Decimal `json:"partner_deliveries"`
	ChargesProrated   decimal.Decimal `json:"charges_prorated"`
}

// PLResult is the three-stage profit/loss figure with its components.
// Amounts keep full precision; rounding to the currency's minor unit is a
// presentation concern.
type PLResult struct {
	PLBase     decimal.Decimal `json:"pl_base"`
	PLGross    decimal.Decimal `json:"pl_gross"`
	PLFinal    decimal.Decimal `json:"pl_final"`
	Cutoff     string          `json:"cutoff"`
	Components PLComponents    `json:"components"`
}

// computePLFigures applies the PL formulas to already-resolved components.
// Pure, so the arithmetic is testable without a database.
func computePLFigures(c PLComponents) PLResult {
	base := c.CashLevel.Add(c.Receivables).Add(c.PointOfSaleStock).Sub(c.CashBurn)
	gross := base.Add(c.StockVariation).Sub(c.PartnerDeliveries)
	final := gross.Sub(c.ChargesProrated)
	return PLResult{PLBase: base, PLGross: gross, PLFinal: final, Components: c}
}

// ResolveCashLevel picks the period's cash position at the cutoff: the
// entry with the greatest date at or before the cutoff whose amount is
// non-zero. Entries are observations of the same cash drawer over time;
// summing them would count the drawer once per observation.
func ResolveCashLevel(entries []CashLevelEntry, cutoff time.Time) decimal.Decimal {
	level := decimal.Zero
	var bestDate time.Time
	var bestID int64
	for _, e := range entries {
		if e.Amount.IsZero() || e.EntryDate.After(cutoff) {
			continue
		}
		if bestDate.IsZero() || e.EntryDate.After(bestDate) ||
			(e.EntryDate.Equal(bestDate) && e.ID > bestID) {
			bestDate = e.EntryDate
			bestID = e.ID
			level = e.Amount
		}
	}
	return level
}

// workingDaysInMonth counts Monday–Saturday days in the cutoff's month.
func workingDaysInMonth(cutoff time.Time) int {
	first := time.Date(cutoff.Year(), cutoff.Month(), 1, 0, 0, 0, 0, cutoff.Location())
	last := first.AddDate(0, 1, -1)
	return countWorkingDays(first, last)
}

// workingDaysElapsed counts Monday–Saturday days from the 1st of the month
// through the cutoff day inclusive.
func workingDaysElapsed(cutoff time.Time) int {
	first := time.Date(cutoff.Year(), cutoff.Month(), 1, 0, 0, 0, 0, cutoff.Location())
	return countWorkingDays(first, cutoff)
}

func countWorkingDays(from, to time.Time) int {
	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Sunday {
			n++
		}
	}
	return n
}

// PeriodKey formats the year-month key used by the cash-level series.
func PeriodKey(t time.Time) string {
	return t.Format("2006-01")
}

// PLEngine assembles period components from the ledger and the external
// stock/cash time series and applies the PL formulas. Read-only: it never
// writes, and it reads committed data only.
type PLEngine struct {
	pool     *pgxpool.Pool
	settings Settings
}

func NewPLEngine(pool *pgxpool.Pool, settings Settings) *PLEngine {
	return &PLEngine{pool: pool, settings: settings}
}

// ComputePL computes the profit/loss figures for the month containing the
// cutoff, scoped to activity up to and including the cutoff day.
func (e *PLEngine) ComputePL(ctx context.Context, cutoff time.Time) (*PLResult, error) {
	monthStart := time.Date(cutoff.Year(), cutoff.Month(), 1, 0, 0, 0, 0, time.UTC)

	var c PLComponents
	var err error

	if c.CashLevel, err = e.fetchCashLevel(ctx, cutoff); err != nil {
		return nil, err
	}
	if c.Receivables, err = e.fetchReceivables(ctx, monthStart, cutoff); err != nil {
		return nil, err
	}
	if c.PointOfSaleStock, err = e.latestStock(ctx, StockPointOfSale, cutoff); err != nil {
		return nil, err
	}
	if c.CashBurn, err = e.fetchCashBurn(ctx, monthStart, cutoff); err != nil {
		return nil, err
	}

	stockAtCutoff, err := e.latestStock(ctx, StockWarehouse, cutoff)
	if err != nil {
		return nil, err
	}
	stockAtMonthStart, err := e.latestStock(ctx, StockWarehouse, monthStart)
	if err != nil {
		return nil, err
	}
	c.StockVariation = stockAtCutoff.Sub(stockAtMonthStart)

	if c.PartnerDeliveries, err = e.fetchPartnerDeliveries(ctx, monthStart, cutoff); err != nil {
		return nil, err
	}

	elapsed := decimal.NewFromInt(int64(workingDaysElapsed(cutoff)))
	inMonth := decimal.NewFromInt(int64(workingDaysInMonth(cutoff)))
	c.ChargesProrated = e.settings.FixedMonthlyCharges.Mul(elapsed).Div(inMonth)

	result := computePLFigures(c)
	result.Cutoff = cutoff.Format("2006-01-02")
	return &result, nil
}

func (e *PLEngine) fetchCashLevel(ctx context.Context, cutoff time.Time) (decimal.Decimal, error) {
	rows, err := e.pool.Query(ctx, `
		SELECT id, entry_date, amount, period_key
		FROM cash_levels WHERE period_key = $1
	`, PeriodKey(cutoff))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query cash levels: %w", err)
	}
	defer rows.Close()

	var entries []CashLevelEntry
	for rows.Next() {
		var ce CashLevelEntry
		if err := rows.Scan(&ce.ID, &ce.EntryDate, &ce.Amount, &ce.PeriodKey); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan cash level: %w", err)
		}
		entries = append(entries, ce)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, err
	}
	return ResolveCashLevel(entries, cutoff), nil
}

// fetchReceivables nets the month's client operations: advances increase
// what is owed, repayments reduce it.
func (e *PLEngine) fetchReceivables(ctx context.Context, monthStart, cutoff time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'advance' THEN amount ELSE -amount END), 0)
		FROM receivable_operations
		WHERE op_date >= $1 AND op_date <= $2
	`, monthStart, cutoff).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate receivables: %w", err)
	}
	return total, nil
}

func (e *PLEngine) fetchCashBurn(ctx context.Context, monthStart, cutoff time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expense_entries
		WHERE entry_date >= $1 AND entry_date <= $2
	`, monthStart, cutoff).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate cash burn: %w", err)
	}
	return total, nil
}

func (e *PLEngine) fetchPartnerDeliveries(ctx context.Context, monthStart, cutoff time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := e.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM partner_deliveries
		WHERE status = $1 AND delivery_date >= $2 AND delivery_date <= $3
	`, string(DeliveryValidated), monthStart, cutoff).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate partner deliveries: %w", err)
	}
	return total, nil
}

// latestStock returns the most recent reading for a stock series at or
// before the given date, or zero when the series has no history yet.
func (e *PLEngine) latestStock(ctx context.Context, location StockLocation, at time.Time) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := e.pool.QueryRow(ctx, `
		SELECT amount FROM stock_snapshots
		WHERE location = $1 AND snapshot_date <= $2
		ORDER BY snapshot_date DESC, id DESC
		LIMIT 1
	`, string(location), at).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read %s stock: %w", location, err)
	}
	return amount, nil
}
