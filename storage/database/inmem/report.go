package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/shule/core/ledger"
)

type reportRepository struct {
	db *DB
}

var _ ledger.ReportRepository = (*reportRepository)(nil)

func NewReportRepository(db *DB) ledger.ReportRepository {
	return &reportRepository{db: db}
}

func (repo *reportRepository) Totals(_ context.Context, filter *ledger.FeeFilter) (ledger.Totals, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fees := make([]ledger.Fee, 0, len(repo.db.fees))
	for _, fee := range repo.db.fees {
		if matchFee(fee, filter) {
			fees = append(fees, fee)
		}
	}
	return ledger.Aggregate(fees, repo.db.queryPayments(nil)), nil
}

func (repo *reportRepository) StudentSummaries(_ context.Context) ([]ledger.StudentSummary, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	payments := repo.db.queryPayments(nil)
	summaries := make([]ledger.StudentSummary, 0, len(repo.db.students))
	for _, std := range repo.db.students {
		fees := make([]ledger.Fee, 0)
		for _, fee := range repo.db.fees {
			if fee.StudentID == std.ID {
				fees = append(fees, fee)
			}
		}
		totals := ledger.Aggregate(fees, payments)
		summaries = append(summaries, ledger.StudentSummary{
			StudentID:   std.ID,
			Name:        std.Name,
			RollNo:      std.RollNo,
			ClassName:   std.ClassName,
			TotalFees:   totals.TotalOwed,
			PaidFees:    totals.TotalPaid,
			Outstanding: totals.TotalOutstanding,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if c := compareStrings(summaries[i].Name, summaries[j].Name); c != 0 {
			return c < 0
		}
		return summaries[i].StudentID < summaries[j].StudentID
	})
	return summaries, nil
}
