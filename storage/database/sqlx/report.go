package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/ledger"
)

// reportRepository computes the ledger reports with plain SQL aggregates.
type reportRepository struct {
	db *sqlx.DB
}

var _ ledger.ReportRepository = (*reportRepository)(nil)

func NewReportRepository(db *sqlx.DB) ledger.ReportRepository {
	return &reportRepository{db: db}
}

// paid per fee; fees without payments get 0 through the LEFT JOIN.
const paidSubquery = `
	SELECT fee_id, SUM(amount) AS paid
	FROM payments
	GROUP BY fee_id`

type totalsRow struct {
	Owed     decimal.Decimal `db:"owed"`
	Paid     decimal.Decimal `db:"paid"`
	FeeCount int             `db:"fee_count"`
}

func (repo *reportRepository) Totals(ctx context.Context, filter *ledger.FeeFilter) (ledger.Totals, error) {
	where, args := feeConditions(filter)
	q := `
		SELECT COALESCE(SUM(f.amount), 0) AS owed,
		       COALESCE(SUM(p.paid), 0)   AS paid,
		       COUNT(f.id)                AS fee_count
		FROM fees f
		LEFT JOIN (` + paidSubquery + `) p ON p.fee_id = f.id` + where

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return ledger.Totals{}, errors.Wrap(err, "expanding totals query")
	}

	var row totalsRow
	if err = repo.db.GetContext(ctx, &row, repo.db.Rebind(q), args...); err != nil {
		return ledger.Totals{}, errors.Wrap(err, "selecting totals")
	}
	return ledger.Totals{
		TotalOwed:        row.Owed,
		TotalPaid:        row.Paid,
		TotalOutstanding: row.Owed.Sub(row.Paid),
		FeeCount:         row.FeeCount,
	}, nil
}

func feeConditions(filter *ledger.FeeFilter) (string, []interface{}) {
	if filter == nil || filter.IsEmpty() {
		return "", nil
	}

	var (
		conds []string
		args  []interface{}
	)
	if filter.StudentID != "" {
		conds = append(conds, "f.student_id::text = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Period != "" {
		conds = append(conds, "f.period = ?")
		args = append(args, filter.Period)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		conds = append(conds, "f.status IN (?)")
		args = append(args, statuses)
	}
	if filter.DueBefore != nil {
		conds = append(conds, "f.due_date < ?")
		args = append(args, *filter.DueBefore)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\n\t\tWHERE " + strings.Join(conds, " AND "), args
}

type summaryRow struct {
	StudentID string          `db:"student_id"`
	Name      string          `db:"name"`
	RollNo    string          `db:"roll_no"`
	ClassName string          `db:"class_name"`
	Owed      decimal.Decimal `db:"owed"`
	Paid      decimal.Decimal `db:"paid"`
}

func (repo *reportRepository) StudentSummaries(ctx context.Context) ([]ledger.StudentSummary, error) {
	q := `
		SELECT s.id::text                   AS student_id,
		       s.name, s.roll_no, s.class_name,
		       COALESCE(SUM(f.amount), 0)   AS owed,
		       COALESCE(SUM(p.paid), 0)     AS paid
		FROM students s
		LEFT JOIN fees f ON f.student_id = s.id
		LEFT JOIN (` + paidSubquery + `) p ON p.fee_id = f.id
		GROUP BY s.id, s.name, s.roll_no, s.class_name
		ORDER BY LOWER(s.name), s.id`

	var rows []summaryRow
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting student summaries")
	}

	summaries := make([]ledger.StudentSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ledger.StudentSummary{
			StudentID:   row.StudentID,
			Name:        row.Name,
			RollNo:      row.RollNo,
			ClassName:   row.ClassName,
			TotalFees:   row.Owed,
			PaidFees:    row.Paid,
			Outstanding: row.Owed.Sub(row.Paid),
		})
	}
	return summaries, nil
}
