package core

import "errors"

// Sentinel errors returned by the core services. Callers match with
// errors.Is; the web adapter maps each to an HTTP status and code.
var (
	// ErrInvalidAmount rejects non-positive or malformed amounts before any
	// ledger write. Entries with bad amounts never reach the tables, so the
	// balance calculator never has to defend against them.
	ErrInvalidAmount = errors.New("amount must be positive")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account is inactive")

	// ErrUnsupportedCategory indicates a category outside the closed set.
	// It is structural: the operation aborts, nothing is coerced to a
	// default formula.
	ErrUnsupportedCategory = errors.New("unsupported account category")

	// ErrUnclassifiedCategory is the cash-aggregation variant of the same
	// failure: an account category that matches neither the include nor the
	// exclude list of availableCash.
	ErrUnclassifiedCategory = errors.New("unclassified account category")

	// ErrBudgetInsufficient rejects an expense that would drive a
	// ledger-style account negative while budget validation is enabled.
	ErrBudgetInsufficient = errors.New("insufficient budget for expense")

	// ErrBackupFailed aborts a destructive account operation whose backup
	// snapshot could not be written. The destructive step never commits
	// without its backup.
	ErrBackupFailed = errors.New("backup could not be written")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSameAccount         = errors.New("transfer endpoints must be distinct")
	ErrClientNotFound      = errors.New("receivable client not found")
	ErrDeliveryNotFound    = errors.New("partner delivery not found")
	ErrBackupNotFound      = errors.New("backup not found")
	ErrInvalidOperation    = errors.New("unknown operation kind")
	ErrInvalidStatus       = errors.New("unknown delivery status")
)
