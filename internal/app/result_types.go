package app

import (
	"github.com/shopspring/decimal"

	"tradebooks/internal/core"
)

// AccountResult wraps a single account after a mutation or lookup.
type AccountResult struct {
	Account core.Account `json:"account"`
}

// AccountsResult is returned by operations touching several accounts.
type AccountsResult struct {
	Accounts []core.Account `json:"accounts"`
}

// AccountListResult is returned by ListAccounts.
type AccountListResult struct {
	Accounts []core.Account `json:"accounts"`
}

// StatementResult is a chronological account statement.
type StatementResult struct {
	AccountID int64                `json:"account_id"`
	Lines     []core.StatementLine `json:"lines"`
}

// ClientResult is returned by CreateReceivableClient.
type ClientResult struct {
	Client core.ReceivableClient `json:"client"`
}

// ClientListResult is returned by ListReceivableClients.
type ClientListResult struct {
	Clients []core.ReceivableClient `json:"clients"`
}

// DeliveryResult is returned by AddPartnerDelivery.
type DeliveryResult struct {
	Delivery core.PartnerDelivery `json:"delivery"`
}

// DeliveryListResult is returned by ListPartnerDeliveries.
type DeliveryListResult struct {
	Deliveries []core.PartnerDelivery `json:"deliveries"`
}

// CashResult is the available-cash figure with its display currency.
type CashResult struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// BackupResult is returned by BackupAccount.
type BackupResult struct {
	BackupID string `json:"backup_id"`
}
