package ledger_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/tests"
)

var ctx = context.Background()

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pay(t *testing.T, svc *ledger.Service, feeID, amount string) ledger.RecordedPayment {
	t.Helper()
	res, err := svc.RecordPayment(ctx, feeID, ledger.NewPayment{Amount: dec(amount), ReceivedBy: "Bursar"})
	require.NoError(t, err)
	return res
}

func TestService_CreateFee(t *testing.T) {
	env := testutil.NewEnv(t)
	std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.LedgerSvc.CreateFee(ctx, ledger.NewFee{StudentID: "lol", Period: "2026-T1", Amount: dec("10")})
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			period, amount string
			wantField      string
		}{
			{period: "2026-T1", amount: "0", wantField: "amount"},
			{period: "2026-T1", amount: "-1", wantField: "amount"},
			{period: "2026-T1", amount: "10.001", wantField: "amount"},
			{period: "2026-T1", amount: "1.0000000000000001", wantField: "amount"},
			{period: "2026-T1", amount: "123456789012345", wantField: "amount"},
			{period: "2026-T1", amount: "10000000000", wantField: "amount"},
			{period: strings.Repeat("T", 51), amount: "10", wantField: "period"},
		}
		for _, tt := range tests {
			_, err := env.LedgerSvc.CreateFee(ctx, ledger.NewFee{StudentID: std.ID, Period: tt.period, Amount: dec(tt.amount)})
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "%s %s: want a validation error; got %v", tt.period, tt.amount, err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		}

		fees, err := env.LedgerSvc.QueryFees(ctx, &ledger.FeeFilter{StudentID: std.ID}, nil)
		require.NoError(t, err)
		assert.Empty(t, fees)
	})

	t.Run("largest amount", func(t *testing.T) {
		fee, err := env.LedgerSvc.CreateFee(ctx, ledger.NewFee{StudentID: std.ID, Period: strings.Repeat("T", 50), Amount: dec(core.MaxAmount)})
		require.NoError(t, err)
		assert.True(t, fee.Amount.Equal(dec("9999999999.99")))
		require.NoError(t, env.LedgerSvc.DeleteFee(ctx, fee.ID))
	})

	t.Run("created DUE", func(t *testing.T) {
		fee, err := env.LedgerSvc.CreateFee(ctx, ledger.NewFee{
			StudentID: std.ID, Period: " 2026-T1 ", Amount: dec("1200"), DueDate: "2026-02-01",
		})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusDue, fee.Status)
		assert.Equal(t, "2026-T1", fee.Period)
		assert.Nil(t, fee.Description)
		require.NotNil(t, fee.DueDate)
		assert.True(t, fee.DueDate.Equal(testutil.Date("2026-02-01")))

		got, err := env.LedgerSvc.GetFee(ctx, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, fee.ID, got.ID)
		assert.Empty(t, got.Payments)
	})
}

func TestService_RecordPayment(t *testing.T) {
	env := testutil.NewEnv(t)
	std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
	fee := testutil.CreateFee(t, env.LedgerRepo, std.ID, "2026-T1", "100", ledger.StatusDue, nil)

	t.Run("unknown fee", func(t *testing.T) {
		_, err := env.LedgerSvc.RecordPayment(ctx, "lol", ledger.NewPayment{Amount: dec("10"), ReceivedBy: "Bursar"})
		assert.Equal(t, ledger.ErrFeeNotFound, errors.Cause(err))
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := env.LedgerSvc.RecordPayment(ctx, fee.ID, ledger.NewPayment{Amount: dec("10"), ReceivedBy: "Bursar", Date: "2026-13-01"})
		assert.IsType(t, &core.ValidationError{}, err)
	})

	// status follows the ledger: DUE -> PARTIAL -> PAID
	res := pay(t, env.LedgerSvc, fee.ID, "30")
	assert.Equal(t, ledger.StatusPartial, res.FeeStatus)
	assert.Equal(t, time.Now().UTC().Truncate(24*time.Hour), res.Payment.Date)

	t.Run("rejected amounts leave the ledger untouched", func(t *testing.T) {
		for _, amount := range []string{"0", "-5", "10.001", "1.0000000000000001", "10000000000"} {
			_, err := env.LedgerSvc.RecordPayment(ctx, fee.ID, ledger.NewPayment{Amount: dec(amount), ReceivedBy: "Bursar"})
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "amount %s: want a validation error; got %v", amount, err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, "amount", vErr.Fields[0].Field)
		}

		payments, err := env.LedgerSvc.QueryPayments(ctx, &ledger.PaymentFilter{FeeID: fee.ID})
		require.NoError(t, err)
		assert.Len(t, payments, 1)
		got, err := env.LedgerSvc.GetFee(ctx, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPartial, got.Status)
	})

	res = pay(t, env.LedgerSvc, fee.ID, "69.99")
	assert.Equal(t, ledger.StatusPartial, res.FeeStatus)

	res = pay(t, env.LedgerSvc, fee.ID, "0.01")
	assert.Equal(t, ledger.StatusPaid, res.FeeStatus)

	bal, err := env.LedgerSvc.Balance(ctx, fee.ID)
	require.NoError(t, err)
	assert.True(t, bal.PaidAmount.Equal(dec("100")))
	assert.True(t, bal.Remaining.IsZero())
	assert.True(t, bal.InSync())

	// no payment is lost or altered
	payments, err := env.LedgerSvc.QueryPayments(ctx, &ledger.PaymentFilter{FeeID: fee.ID})
	require.NoError(t, err)
	assert.Len(t, payments, 3)
	assert.True(t, ledger.SumPayments(payments).Equal(dec("100")))
}

func TestService_RecordPayment_concurrent(t *testing.T) {
	for _, allowOverpayment := range []bool{true, false} {
		conf := testutil.NewConfig()
		conf.Ledger.AllowOverpayment = allowOverpayment
		env := testutil.NewEnv(t, conf)
		std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
		fee := testutil.CreateFee(t, env.LedgerRepo, std.ID, "2026-T1", "100", ledger.StatusDue, nil)

		const workers = 15
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			ok, over int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.LedgerSvc.RecordPayment(ctx, fee.ID, ledger.NewPayment{Amount: dec("10"), ReceivedBy: "Bursar"})
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					ok++
				} else if vErr, isVErr := err.(*core.ValidationError); isVErr && vErr.Err == ledger.ErrOverpayment {
					over++
				}
			}()
		}
		wg.Wait()

		bal, err := env.LedgerSvc.Balance(ctx, fee.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, bal.Status)
		assert.True(t, bal.InSync(), "cached status %s; derived %s", bal.CachedStatus, bal.Status)

		if allowOverpayment {
			assert.Equal(t, workers, ok)
			assert.True(t, bal.PaidAmount.Equal(dec("150")))
		} else {
			assert.Equal(t, 10, ok)
			assert.Equal(t, workers-10, over)
			assert.True(t, bal.PaidAmount.Equal(dec("100")))
		}
	}
}

func TestService_receipts(t *testing.T) {
	withGuardian := func(t *testing.T, conf *core.Config) (*testutil.Env, ledger.Fee, ledger.Fee) {
		env := testutil.NewEnv(t, conf)
		amani := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "guardian@mail.test")
		baraka := testutil.CreateStudent(t, env.StudentRepo, "Baraka", "R-002", "Form 1", "")
		return env,
			testutil.CreateFee(t, env.LedgerRepo, amani.ID, "2026-T1", "100", ledger.StatusDue, nil),
			testutil.CreateFee(t, env.LedgerRepo, baraka.ID, "2026-T1", "100", ledger.StatusDue, nil)
	}

	t.Run("sent to the guardian", func(t *testing.T) {
		env, fee, noGuardianFee := withGuardian(t, testutil.NewConfig())
		pay(t, env.LedgerSvc, fee.ID, "25.5")
		pay(t, env.LedgerSvc, noGuardianFee.ID, "25")

		sent := env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "guardian@mail.test", sent[0].To[0].Address)
		assert.Equal(t, "Payment Receipt - 2026-T1", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "USD 25.50 for Amani (2026-T1)")
		assert.Contains(t, sent[0].TextContent, "Fee status: PARTIAL")
		assert.Contains(t, sent[0].TextContent, "Remaining balance: USD 74.50")
	})

	t.Run("disabled", func(t *testing.T) {
		conf := testutil.NewConfig()
		conf.Ledger.SendReceipts = false
		env, fee, _ := withGuardian(t, conf)
		pay(t, env.LedgerSvc, fee.ID, "25")
		assert.Empty(t, env.Mail.SentMessages())
	})

	t.Run("not sent when rejected", func(t *testing.T) {
		conf := testutil.NewConfig()
		conf.Ledger.AllowOverpayment = false
		env, fee, _ := withGuardian(t, conf)
		_, err := env.LedgerSvc.RecordPayment(ctx, fee.ID, ledger.NewPayment{Amount: dec("101"), ReceivedBy: "Bursar"})
		require.Error(t, err)
		assert.Empty(t, env.Mail.SentMessages())
	})
}

func TestService_DeleteFee(t *testing.T) {
	env := testutil.NewEnv(t)
	std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
	fee := testutil.CreateFee(t, env.LedgerRepo, std.ID, "2026-T1", "100", ledger.StatusDue, nil)
	other := testutil.CreateFee(t, env.LedgerRepo, std.ID, "2026-T2", "100", ledger.StatusDue, nil)
	pay(t, env.LedgerSvc, fee.ID, "10")
	pay(t, env.LedgerSvc, other.ID, "10")

	assert.Equal(t, ledger.ErrFeeNotFound, errors.Cause(env.LedgerSvc.DeleteFee(ctx, "lol")))
	require.NoError(t, env.LedgerSvc.DeleteFee(ctx, fee.ID))

	_, err := env.LedgerSvc.GetFee(ctx, fee.ID)
	assert.Equal(t, ledger.ErrFeeNotFound, errors.Cause(err))
	_, err = env.LedgerSvc.QueryPayments(ctx, &ledger.PaymentFilter{FeeID: fee.ID})
	assert.Equal(t, ledger.ErrFeeNotFound, errors.Cause(err))

	payments, err := env.LedgerSvc.QueryPayments(ctx, nil)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, other.ID, payments[0].FeeID)
}

func TestService_Reconcile(t *testing.T) {
	env := testutil.NewEnv(t)
	std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")

	// cached statuses out of sync with their ledgers
	paidAsDue := testutil.CreateFee(t, env.LedgerRepo, std.ID, "T1", "100", ledger.StatusDue, nil)
	testutil.CreatePayment(t, env.LedgerRepo, paidAsDue.ID, "100", testutil.Date("2026-01-10"))
	dueAsPaid := testutil.CreateFee(t, env.LedgerRepo, std.ID, "T2", "100", ledger.StatusPaid, nil)
	partialAsDue := testutil.CreateFee(t, env.LedgerRepo, std.ID, "T3", "100", ledger.StatusDue, nil)
	testutil.CreatePayment(t, env.LedgerRepo, partialAsDue.ID, "1", testutil.Date("2026-01-10"))
	inSync := testutil.CreateFee(t, env.LedgerRepo, std.ID, "T4", "100", ledger.StatusDue, nil)

	res, err := env.LedgerSvc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Checked)
	assert.Equal(t, 3, res.Corrected)
	assert.ElementsMatch(t, []string{paidAsDue.ID, dueAsPaid.ID, partialAsDue.ID}, res.CorrectedFeeIDs)

	for id, want := range map[string]ledger.Status{
		paidAsDue.ID:    ledger.StatusPaid,
		dueAsPaid.ID:    ledger.StatusDue,
		partialAsDue.ID: ledger.StatusPartial,
		inSync.ID:       ledger.StatusDue,
	} {
		bal, err := env.LedgerSvc.Balance(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, bal.CachedStatus)
		assert.True(t, bal.InSync())
	}

	// idempotent
	res, err = env.LedgerSvc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.ReconcileResult{Checked: 4, Corrected: 0, CorrectedFeeIDs: []string{}}, res)
}

func TestService_Reconcile_cancelled(t *testing.T) {
	env := testutil.NewEnv(t)
	std := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
	testutil.CreateFee(t, env.LedgerRepo, std.ID, "T1", "100", ledger.StatusPaid, nil)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err := env.LedgerSvc.Reconcile(cctx)
	assert.Equal(t, context.Canceled, err)
}

func TestService_Aggregate(t *testing.T) {
	env := testutil.NewEnv(t)
	amani := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
	baraka := testutil.CreateStudent(t, env.StudentRepo, "Baraka", "R-002", "Form 1", "")
	f1 := testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T1", "100", ledger.StatusDue, nil)
	f2 := testutil.CreateFee(t, env.LedgerRepo, baraka.ID, "T1", "50.50", ledger.StatusDue, nil)
	testutil.CreateFee(t, env.LedgerRepo, baraka.ID, "T2", "70", ledger.StatusDue, nil)
	pay(t, env.LedgerSvc, f1.ID, "100")
	pay(t, env.LedgerSvc, f2.ID, "20.25")

	tests := []struct {
		name                    string
		filter                  *ledger.FeeFilter
		owed, paid, outstanding string
		count                   int
	}{
		{name: "all", owed: "220.50", paid: "120.25", outstanding: "100.25", count: 3},
		{name: "student", filter: &ledger.FeeFilter{StudentID: baraka.ID}, owed: "120.50", paid: "20.25", outstanding: "100.25", count: 2},
		{name: "period", filter: &ledger.FeeFilter{Period: "T1"}, owed: "150.50", paid: "120.25", outstanding: "30.25", count: 2},
		{name: "status", filter: &ledger.FeeFilter{Statuses: []ledger.Status{ledger.StatusPaid}}, owed: "100", paid: "100", outstanding: "0", count: 1},
		{name: "no match", filter: &ledger.FeeFilter{Period: "T9"}, owed: "0", paid: "0", outstanding: "0", count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := env.LedgerSvc.Aggregate(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.count, totals.FeeCount)
			assert.True(t, totals.TotalOwed.Equal(dec(tt.owed)), "owed %s", totals.TotalOwed)
			assert.True(t, totals.TotalPaid.Equal(dec(tt.paid)), "paid %s", totals.TotalPaid)
			assert.True(t, totals.TotalOutstanding.Equal(dec(tt.outstanding)), "outstanding %s", totals.TotalOutstanding)
		})
	}

	t.Run("balances add up to the totals", func(t *testing.T) {
		totals, err := env.LedgerSvc.Aggregate(ctx, nil)
		require.NoError(t, err)
		fees, err := env.LedgerSvc.QueryFees(ctx, nil, nil)
		require.NoError(t, err)

		paid, outstanding := decimal.Zero, decimal.Zero
		for _, f := range fees {
			bal, err := env.LedgerSvc.Balance(ctx, f.ID)
			require.NoError(t, err)
			again, err := env.LedgerSvc.Balance(ctx, f.ID)
			require.NoError(t, err)
			assert.Equal(t, bal, again)

			paid = paid.Add(bal.PaidAmount)
			outstanding = outstanding.Add(bal.Remaining)
		}
		assert.True(t, totals.TotalPaid.Equal(paid), "paid %s; balances %s", totals.TotalPaid, paid)
		assert.True(t, totals.TotalOutstanding.Equal(outstanding), "outstanding %s; balances %s", totals.TotalOutstanding, outstanding)
	})

	sums, err := env.LedgerSvc.StudentSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, amani.ID, sums[0].StudentID)
	assert.True(t, sums[0].Outstanding.IsZero())
	assert.Equal(t, baraka.ID, sums[1].StudentID)
	assert.True(t, sums[1].Outstanding.Equal(dec("100.25")))
}

func TestService_SendOverdueReminders(t *testing.T) {
	env := testutil.NewEnv(t)
	amani := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "amani.guardian@mail.test")
	baraka := testutil.CreateStudent(t, env.StudentRepo, "Baraka", "R-002", "Form 1", "")

	overdue := testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T1", "100", ledger.StatusPartial, testutil.DatePtr("2026-01-15"))
	testutil.CreatePayment(t, env.LedgerRepo, overdue.ID, "40", testutil.Date("2026-01-10"))
	// paid but not reconciled yet
	stale := testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T2", "100", ledger.StatusDue, testutil.DatePtr("2026-01-20"))
	testutil.CreatePayment(t, env.LedgerRepo, stale.ID, "100", testutil.Date("2026-01-10"))
	testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T3", "100", ledger.StatusPaid, testutil.DatePtr("2026-01-20"))
	testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T4", "100", ledger.StatusDue, testutil.DatePtr("2026-06-01"))
	testutil.CreateFee(t, env.LedgerRepo, amani.ID, "T5", "100", ledger.StatusDue, nil)
	testutil.CreateFee(t, env.LedgerRepo, baraka.ID, "T1", "100", ledger.StatusDue, testutil.DatePtr("2026-01-15")) // no guardian

	n, err := env.LedgerSvc.SendOverdueReminders(ctx, testutil.Date("2026-03-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := env.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Overdue Fee - T1", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "was due on 2026-01-15")
	assert.Contains(t, sent[0].TextContent, "Outstanding balance: USD 60.00")
}
