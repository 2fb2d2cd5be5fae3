package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
)

type ledgerRepository struct {
	db *gorm.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *gorm.DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) Atomic(ctx context.Context, fn func(repo ledger.Repository) error) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerRepository{db: tx})
	})
}

func (repo *ledgerRepository) CreateFee(ctx context.Context, fee ledger.Fee) (ledger.Fee, error) {
	row := boilFee(fee)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.Fee{}, errors.Wrap(err, "inserting fee")
	}
	return unboilFee(row), nil
}

func (repo *ledgerRepository) GetFee(ctx context.Context, id string, forUpdate bool) (ledger.Fee, error) {
	if !validID(id) {
		return ledger.Fee{}, ledger.ErrFeeNotFound
	}
	q := repo.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row feeRow
	if err := q.First(&row, "id = ?", id).Error; err != nil {
		return ledger.Fee{}, trapNotFound(err, ledger.ErrFeeNotFound)
	}
	return unboilFee(row), nil
}

func (repo *ledgerRepository) QueryFees(ctx context.Context, filter *ledger.FeeFilter, ordering []core.DBOrdering) ([]ledger.Fee, error) {
	q := filterFees(repo.db.WithContext(ctx).Model(&feeRow{}), filter)
	q = applyOrdering(q, ordering, ledger.FeeOrderingFields,
		core.DBOrdering{Field: "created_at"},
		core.DBOrdering{Field: "id", Ascending: true},
	)

	var rows []feeRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "selecting fees")
	}
	fees := make([]ledger.Fee, 0, len(rows))
	for _, row := range rows {
		fees = append(fees, unboilFee(row))
	}
	return fees, nil
}

func filterFees(q *gorm.DB, filter *ledger.FeeFilter) *gorm.DB {
	if filter == nil {
		return q
	}
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return q.Where("1 = 0")
		}
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.Period != "" {
		q = q.Where("period = ?", filter.Period)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		q = q.Where("status IN ?", statuses)
	}
	if filter.DueBefore != nil {
		q = q.Where("due_date < ?", *filter.DueBefore)
	}
	return q
}

func (repo *ledgerRepository) UpdateFeeStatus(ctx context.Context, id string, status ledger.Status) error {
	if !validID(id) {
		return ledger.ErrFeeNotFound
	}
	res := repo.db.WithContext(ctx).Model(&feeRow{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "updating fee status")
	}
	if res.RowsAffected == 0 {
		return ledger.ErrFeeNotFound
	}
	return nil
}

// DeleteFee relies on the payments.fee_id foreign key to cascade.
func (repo *ledgerRepository) DeleteFee(ctx context.Context, id string) error {
	if !validID(id) {
		return ledger.ErrFeeNotFound
	}
	res := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&feeRow{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "deleting fee")
	}
	if res.RowsAffected == 0 {
		return ledger.ErrFeeNotFound
	}
	return nil
}

func (repo *ledgerRepository) CreatePayment(ctx context.Context, payment ledger.Payment) (ledger.Payment, error) {
	row := boilPayment(payment)
	if err := repo.db.WithContext(ctx).Create(&row).Error; err != nil {
		return ledger.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return unboilPayment(row), nil
}

func (repo *ledgerRepository) QueryPayments(ctx context.Context, filter *ledger.PaymentFilter) ([]ledger.Payment, error) {
	q := repo.db.WithContext(ctx).Model(&paymentRow{})
	if filter != nil && filter.FeeID != "" {
		if !validID(filter.FeeID) {
			return []ledger.Payment{}, nil
		}
		q = q.Where("fee_id = ?", filter.FeeID)
	}

	var rows []paymentRow
	if err := q.Order("date DESC").Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	payments := make([]ledger.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, unboilPayment(row))
	}
	return payments, nil
}

func (repo *ledgerRepository) SumPayments(ctx context.Context, feeID string) (decimal.Decimal, error) {
	if !validID(feeID) {
		return decimal.Zero, nil
	}
	var sum decimal.Decimal
	err := repo.db.WithContext(ctx).Model(&paymentRow{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("fee_id = ?", feeID).
		Row().Scan(&sum)
	return sum, errors.Wrap(err, "summing payments")
}
