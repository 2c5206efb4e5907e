package core

import "github.com/shopspring/decimal"

// LedgerView is everything the balance formulas may consume, already
// aggregated from the authoritative transaction tables. Loading a view and
// computing a balance are deliberately separated: ComputeBalance is a pure
// function and is exercised directly by unit tests with hand-built views.
type LedgerView struct {
	Credits      decimal.Decimal
	Expenses     decimal.Decimal
	TransfersIn  decimal.Decimal
	TransfersOut decimal.Decimal

	// LatestSnapshot is the amount of the most recent credit entry by
	// (entry date, creation time, id), used only by snapshot accounts.
	LatestSnapshot decimal.Decimal

	// ValidatedDeliveries is the sum of validated partner deliveries.
	// Pending and rejected deliveries never appear here.
	ValidatedDeliveries decimal.Decimal

	// ReceivableBalance is Σ(initial_credit + advances − repayments) over
	// the account's active clients.
	ReceivableBalance decimal.Decimal
}

// ComputeBalance derives an account balance from its ledger view. Dispatch
// is a closed match over the category set; anything else returns
// ErrUnsupportedCategory so a data-model gap can never fall through to a
// wrong formula.
func ComputeBalance(category AccountCategory, v LedgerView) (decimal.Decimal, error) {
	switch category {
	case CategoryLedger, CategoryAdjustment, CategoryDeposit, CategorySupplier:
		return v.Credits.Sub(v.Expenses).Add(v.TransfersIn).Sub(v.TransfersOut), nil
	case CategorySnapshot:
		// Point-in-time state: the latest recorded value wins outright.
		return v.LatestSnapshot, nil
	case CategoryPartner:
		return v.Credits.Sub(v.ValidatedDeliveries), nil
	case CategoryReceivablePool:
		return v.ReceivableBalance, nil
	}
	return decimal.Zero, ErrUnsupportedCategory
}

// cashEligible classifies a category for availableCash. The match is
// exhaustive over the closed set: included and excluded categories are both
// named, and anything unrecognized fails with ErrUnclassifiedCategory
// rather than defaulting either way.
func cashEligible(category AccountCategory) (bool, error) {
	switch category {
	case CategoryLedger, CategorySnapshot, CategoryAdjustment:
		return true, nil
	case CategoryPartner, CategoryDeposit, CategoryReceivablePool, CategorySupplier:
		return false, nil
	}
	return false, ErrUnclassifiedCategory
}
