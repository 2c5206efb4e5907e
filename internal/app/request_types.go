package app

import "github.com/shopspring/decimal"

// Request payloads carry dates as "2006-01-02" strings; the facade parses
// them and defaults empty dates to today. Amounts are decimals end to end.

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

type AddCreditRequest struct {
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Actor     string          `json:"actor"`
	Note      string          `json:"note"`
	EntryDate string          `json:"entry_date"`
}

type AddExpenseRequest struct {
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	EntryDate   string          `json:"entry_date"`
	Description string          `json:"description"`
	Supplier    string          `json:"supplier"`
	Category    string          `json:"category"`
}

type AddTransferRequest struct {
	SourceAccountID      int64           `json:"source_account_id"`
	DestinationAccountID int64           `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
}

type CreateClientRequest struct {
	AccountID     int64           `json:"account_id"`
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	InitialCredit decimal.Decimal `json:"initial_credit"`
}

type AddOperationRequest struct {
	ClientID int64           `json:"client_id"`
	Kind     string          `json:"kind"`
	Amount   decimal.Decimal `json:"amount"`
	OpDate   string          `json:"op_date"`
}

type AddDeliveryRequest struct {
	AccountID    int64           `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	DeliveryDate string          `json:"delivery_date"`
}

type DestructiveRequest struct {
	AccountID int64  `json:"account_id"`
	Actor     string `json:"actor"`
	Reason    string `json:"reason"`
}
