package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
)

type ledgerRepository struct {
	db *DB
	tx bool // the db lock is held by Atomic
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) lock() func() {
	if repo.tx {
		return func() {}
	}
	repo.db.mu.Lock()
	return repo.db.mu.Unlock
}

func (repo *ledgerRepository) rlock() func() {
	if repo.tx {
		return func() {}
	}
	repo.db.mu.RLock()
	return repo.db.mu.RUnlock
}

// Atomic holds the db lock while fn runs and restores the fees and payments tables if fn fails.
func (repo *ledgerRepository) Atomic(ctx context.Context, fn func(repo ledger.Repository) error) error {
	if repo.tx {
		return fn(repo)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	fees := make(map[string]ledger.Fee, len(repo.db.fees))
	for k, v := range repo.db.fees {
		fees[k] = v
	}
	payments := make(map[string]ledger.Payment, len(repo.db.payments))
	for k, v := range repo.db.payments {
		payments[k] = v
	}

	if err := fn(&ledgerRepository{db: repo.db, tx: true}); err != nil {
		repo.db.fees = fees
		repo.db.payments = payments
		return err
	}
	return nil
}

func (repo *ledgerRepository) CreateFee(_ context.Context, fee ledger.Fee) (ledger.Fee, error) {
	defer repo.lock()()

	fee.Payments = nil
	repo.db.fees[fee.ID] = fee
	return fee, nil
}

func (repo *ledgerRepository) GetFee(_ context.Context, id string, _ bool) (ledger.Fee, error) {
	defer repo.rlock()()

	if fee, ok := repo.db.fees[id]; ok {
		return fee, nil
	}
	return ledger.Fee{}, ledger.ErrFeeNotFound
}

func (repo *ledgerRepository) QueryFees(_ context.Context, filter *ledger.FeeFilter, ordering []core.DBOrdering) ([]ledger.Fee, error) {
	defer repo.rlock()()

	fees := make([]ledger.Fee, 0, len(repo.db.fees))
	for _, fee := range repo.db.fees {
		if matchFee(fee, filter) {
			fees = append(fees, fee)
		}
	}

	fields := map[string]compareFunc{
		"period":     func(i, j int) int { return compareStrings(fees[i].Period, fees[j].Period) },
		"amount":     func(i, j int) int { return compareDecimals(fees[i].Amount, fees[j].Amount) },
		"status":     func(i, j int) int { return compareStrings(string(fees[i].Status), string(fees[j].Status)) },
		"due_date":   func(i, j int) int { return compareTimePtrs(fees[i].DueDate, fees[j].DueDate) },
		"created_at": func(i, j int) int { return compareTimes(fees[i].CreatedAt, fees[j].CreatedAt) },
		"id":         func(i, j int) int { return compareStrings(fees[i].ID, fees[j].ID) },
	}
	sort.SliceStable(fees, lessFunc(ordering, fields,
		core.DBOrdering{Field: "created_at"},
		core.DBOrdering{Field: "id", Ascending: true},
	))
	return fees, nil
}

func matchFee(fee ledger.Fee, filter *ledger.FeeFilter) bool {
	if filter == nil {
		return true
	}
	if filter.StudentID != "" && fee.StudentID != filter.StudentID {
		return false
	}
	if filter.Period != "" && fee.Period != filter.Period {
		return false
	}
	if len(filter.Statuses) > 0 {
		var ok bool
		for _, st := range filter.Statuses {
			if fee.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.DueBefore != nil && (fee.DueDate == nil || !fee.DueDate.Before(*filter.DueBefore)) {
		return false
	}
	return true
}

func (repo *ledgerRepository) UpdateFeeStatus(_ context.Context, id string, status ledger.Status) error {
	defer repo.lock()()

	fee, ok := repo.db.fees[id]
	if !ok {
		return ledger.ErrFeeNotFound
	}
	fee.Status = status
	fee.UpdatedAt = time.Now().UTC()
	repo.db.fees[id] = fee
	return nil
}

func (repo *ledgerRepository) DeleteFee(_ context.Context, id string) error {
	defer repo.lock()()

	if _, ok := repo.db.fees[id]; !ok {
		return ledger.ErrFeeNotFound
	}
	delete(repo.db.fees, id)
	for pid, p := range repo.db.payments {
		if p.FeeID == id {
			delete(repo.db.payments, pid)
		}
	}
	return nil
}

func (repo *ledgerRepository) CreatePayment(_ context.Context, payment ledger.Payment) (ledger.Payment, error) {
	defer repo.lock()()

	if _, ok := repo.db.fees[payment.FeeID]; !ok {
		return ledger.Payment{}, ledger.ErrFeeNotFound
	}
	repo.db.payments[payment.ID] = payment
	return payment, nil
}

func (repo *ledgerRepository) QueryPayments(_ context.Context, filter *ledger.PaymentFilter) ([]ledger.Payment, error) {
	defer repo.rlock()()
	return repo.db.queryPayments(filter), nil
}

func (repo *ledgerRepository) SumPayments(_ context.Context, feeID string) (decimal.Decimal, error) {
	defer repo.rlock()()
	return ledger.SumPayments(repo.db.queryPayments(&ledger.PaymentFilter{FeeID: feeID})), nil
}

// queryPayments expects the db lock to be held.
func (db *DB) queryPayments(filter *ledger.PaymentFilter) []ledger.Payment {
	payments := make([]ledger.Payment, 0)
	for _, p := range db.payments {
		if filter != nil && filter.FeeID != "" && p.FeeID != filter.FeeID {
			continue
		}
		payments = append(payments, p)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		if c := compareTimes(payments[i].Date, payments[j].Date); c != 0 {
			return c > 0
		}
		if c := compareTimes(payments[i].CreatedAt, payments[j].CreatedAt); c != 0 {
			return c > 0
		}
		return payments[i].ID < payments[j].ID
	})
	return payments
}
