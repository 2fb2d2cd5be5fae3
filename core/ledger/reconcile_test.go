package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		amount, paid string
		want         Status
	}{
		{amount: "100", paid: "0", want: StatusDue},
		{amount: "100", paid: "0.01", want: StatusPartial},
		{amount: "100", paid: "99.99", want: StatusPartial},
		{amount: "100", paid: "100", want: StatusPaid},
		{amount: "100", paid: "100.00", want: StatusPaid},
		{amount: "100", paid: "150", want: StatusPaid},
		{amount: "0.10", paid: "0.1", want: StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"/"+tt.paid, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(dec(tt.amount), dec(tt.paid)))
		})
	}
}

func TestDeriveStatus_monotonic(t *testing.T) {
	rank := map[Status]int{StatusDue: 0, StatusPartial: 1, StatusPaid: 2}
	amount := dec("100")
	paid := decimal.Zero
	prev := DeriveStatus(amount, paid)
	for _, p := range []string{"0.01", "10", "39.99", "50", "0.01", "25"} {
		paid = paid.Add(dec(p))
		status := DeriveStatus(amount, paid)
		assert.GreaterOrEqual(t, rank[status], rank[prev], "status went from %s to %s at %s paid", prev, status, paid)
		prev = status
	}
	assert.Equal(t, StatusPaid, prev)
}

func TestComputeBalance(t *testing.T) {
	fee := Fee{ID: "fee-1", Amount: dec("250.50"), Status: StatusDue}

	t.Run("no payments", func(t *testing.T) {
		bal := ComputeBalance(fee, nil)
		assert.Equal(t, "fee-1", bal.FeeID)
		assert.True(t, bal.PaidAmount.IsZero())
		assert.True(t, bal.Remaining.Equal(dec("250.50")))
		assert.Equal(t, StatusDue, bal.Status)
		assert.True(t, bal.InSync())
	})

	t.Run("other fees' payments are ignored", func(t *testing.T) {
		bal := ComputeBalance(fee, []Payment{
			{FeeID: "fee-1", Amount: dec("100.25")},
			{FeeID: "fee-2", Amount: dec("500")},
			{FeeID: "fee-1", Amount: dec("50")},
		})
		assert.True(t, bal.PaidAmount.Equal(dec("150.25")))
		assert.True(t, bal.Remaining.Equal(dec("100.25")))
		assert.Equal(t, StatusPartial, bal.Status)
		assert.Equal(t, StatusDue, bal.CachedStatus)
		assert.False(t, bal.InSync())
	})

	t.Run("overpaid", func(t *testing.T) {
		bal := ComputeBalance(fee, []Payment{{FeeID: "fee-1", Amount: dec("300")}})
		assert.True(t, bal.Remaining.Equal(dec("-49.50")))
		assert.Equal(t, StatusPaid, bal.Status)
	})

	t.Run("no float drift", func(t *testing.T) {
		f := Fee{ID: "fee-3", Amount: dec("0.30")}
		bal := ComputeBalance(f, []Payment{{FeeID: "fee-3", Amount: dec("0.10")}, {FeeID: "fee-3", Amount: dec("0.20")}})
		assert.True(t, bal.Remaining.IsZero())
		assert.Equal(t, StatusPaid, bal.Status)
	})
}

func TestAggregate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		totals := Aggregate(nil, nil)
		assert.Equal(t, 0, totals.FeeCount)
		assert.True(t, totals.TotalOwed.IsZero())
		assert.True(t, totals.TotalPaid.IsZero())
		assert.True(t, totals.TotalOutstanding.IsZero())
	})

	t.Run("only payments of the selected fees count", func(t *testing.T) {
		fees := []Fee{{ID: "a", Amount: dec("100")}, {ID: "b", Amount: dec("200.50")}}
		payments := []Payment{
			{FeeID: "a", Amount: dec("100")},
			{FeeID: "b", Amount: dec("20.25")},
			{FeeID: "c", Amount: dec("1000")},
		}
		totals := Aggregate(fees, payments)
		assert.Equal(t, 2, totals.FeeCount)
		assert.True(t, totals.TotalOwed.Equal(dec("300.50")))
		assert.True(t, totals.TotalPaid.Equal(dec("120.25")))
		assert.True(t, totals.TotalOutstanding.Equal(dec("180.25")))
	})

	t.Run("outstanding is not clamped", func(t *testing.T) {
		totals := Aggregate([]Fee{{ID: "a", Amount: dec("10")}}, []Payment{{FeeID: "a", Amount: dec("15")}})
		assert.True(t, totals.TotalOutstanding.Equal(dec("-5")))
	})
}

func TestSumPayments(t *testing.T) {
	assert.True(t, SumPayments(nil).IsZero())
	assert.True(t, SumPayments([]Payment{{Amount: dec("0.10")}, {Amount: dec("0.20")}}).Equal(dec("0.30")))
}
