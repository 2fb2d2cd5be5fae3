package ledger

import "github.com/shopspring/decimal"

// DeriveStatus applies the status rule, in order:
// PAID when paid covers amount, PARTIAL when something was paid, DUE otherwise.
func DeriveStatus(amount, paid decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(amount):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusDue
	}
}

// SumPayments returns the total amount of payments.
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// ComputeBalance recomputes fee's balance from its ledger; payments of other fees are ignored.
// Remaining is not clamped: overpayment gives a negative remaining.
func ComputeBalance(fee Fee, payments []Payment) Balance {
	paid := decimal.Zero
	for _, p := range payments {
		if p.FeeID == fee.ID {
			paid = paid.Add(p.Amount)
		}
	}
	return Balance{
		FeeID:        fee.ID,
		Amount:       fee.Amount,
		PaidAmount:   paid,
		Remaining:    fee.Amount.Sub(paid),
		Status:       DeriveStatus(fee.Amount, paid),
		CachedStatus: fee.Status,
	}
}

// Aggregate totals fees and the payments belonging to them.
func Aggregate(fees []Fee, payments []Payment) Totals {
	owed := decimal.Zero
	ids := make(map[string]struct{}, len(fees))
	for _, f := range fees {
		owed = owed.Add(f.Amount)
		ids[f.ID] = struct{}{}
	}

	paid := decimal.Zero
	for _, p := range payments {
		if _, ok := ids[p.FeeID]; ok {
			paid = paid.Add(p.Amount)
		}
	}
	return Totals{
		TotalOwed:        owed,
		TotalPaid:        paid,
		TotalOutstanding: owed.Sub(paid),
		FeeCount:         len(fees),
	}
}
