package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountCategory is the closed set of account kinds. The category decides
// which balance formula applies; there is no default formula for an unknown
// category — every dispatch site must fail on anything outside this set.
type AccountCategory string

const (
	CategoryLedger         AccountCategory = "ledger"
	CategorySnapshot       AccountCategory = "snapshot"
	CategoryPartner        AccountCategory = "partner"
	CategoryReceivablePool AccountCategory = "receivable_pool"
	CategoryDeposit        AccountCategory = "deposit"
	CategorySupplier       AccountCategory = "supplier"
	CategoryAdjustment     AccountCategory = "adjustment"
)

// ParseCategory validates a raw category string against the closed set.
func ParseCategory(s string) (AccountCategory, error) {
	switch c := AccountCategory(s); c {
	case CategoryLedger, CategorySnapshot, CategoryPartner, CategoryReceivablePool,
		CategoryDeposit, CategorySupplier, CategoryAdjustment:
		return c, nil
	}
	return "", ErrUnsupportedCategory
}

// LedgerStyle reports whether the account's balance is a running sum of its
// full credit/expense/transfer history (invariant 1 accounts). Deposit and
// supplier accounts follow the same formula; the category only changes
// reporting visibility.
func (c AccountCategory) LedgerStyle() bool {
	switch c {
	case CategoryLedger, CategoryAdjustment, CategoryDeposit, CategorySupplier:
		return true
	}
	return false
}

// Account is the registry row. All derived columns (CurrentBalance,
// TotalCredited, TotalSpent, TransferInTotal, TransferOutTotal) are caches
// over the transaction tables and are only ever written by the services in
// this package, never by callers.
type Account struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Category         AccountCategory `json:"category"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	TotalCredited    decimal.Decimal `json:"total_credited"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	TransferInTotal  decimal.Decimal `json:"transfer_in_total"`
	TransferOutTotal decimal.Decimal `json:"transfer_out_total"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
}

type CreditEntry struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Actor     string          `json:"actor"`
	Note      string          `json:"note"`
	EntryDate time.Time       `json:"entry_date"`
	CreatedAt time.Time       `json:"created_at"`
}

type ExpenseEntry struct {
	ID          int64           `json:"id"`
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	EntryDate   time.Time       `json:"entry_date"`
	Description string          `json:"description"`
	Supplier    string          `json:"supplier"`
	Category    string          `json:"category"`
	CreatedAt   time.Time       `json:"created_at"`
}

type TransferEntry struct {
	ID                   int64           `json:"id"`
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	CreatedAt            time.Time       `json:"created_at"`
}

// TransactionKind identifies which ledger table a DeleteTransaction call
// targets.
type TransactionKind string

const (
	KindCredit   TransactionKind = "credit"
	KindExpense  TransactionKind = "expense"
	KindTransfer TransactionKind = "transfer"
)

type ReceivableClient struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	InitialCredit decimal.Decimal `json:"initial_credit"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OperationKind distinguishes money going out to a client (advance) from
// money coming back (repayment).
type OperationKind string

const (
	OperationAdvance   OperationKind = "advance"
	OperationRepayment OperationKind = "repayment"
)

type ReceivableOperation struct {
	ID        int64           `json:"id"`
	ClientID  int64           `json:"client_id"`
	Kind      OperationKind   `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	OpDate    time.Time       `json:"op_date"`
	CreatedAt time.Time       `json:"created_at"`
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryValidated DeliveryStatus = "validated"
	DeliveryRejected  DeliveryStatus = "rejected"
)

type PartnerDelivery struct {
	ID           int64           `json:"id"`
	AccountID    int64           `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Status       DeliveryStatus  `json:"status"`
	DeliveryDate time.Time       `json:"delivery_date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StockLocation discriminates the two stock time series consumed by the PL
// engine: warehouse readings drive the month's stock variation, the
// point-of-sale reading enters the base figure directly.
type StockLocation string

const (
	StockWarehouse   StockLocation = "warehouse"
	StockPointOfSale StockLocation = "point_of_sale"
)

type StockSnapshot struct {
	ID           int64           `json:"id"`
	SnapshotDate time.Time       `json:"snapshot_date"`
	Amount       decimal.Decimal `json:"amount"`
	Location     StockLocation   `json:"location"`
}

// CashLevelEntry is one observed cash position. PeriodKey is the year-month
// ("2006-01") the entry belongs to. Entries are snapshots, never summed.
type CashLevelEntry struct {
	ID        int64           `json:"id"`
	EntryDate time.Time       `json:"entry_date"`
	Amount    decimal.Decimal `json:"amount"`
	PeriodKey string          `json:"period_key"`
}

// Settings are the business parameters read once at startup and passed
// explicitly into the services that need them. There is no ambient config
// lookup anywhere in this package.
type Settings struct {
	FixedMonthlyCharges     decimal.Decimal
	ExpenseBudgetValidation bool
	Currency                string
}
