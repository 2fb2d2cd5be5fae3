package ledger

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

type (
	receiptData struct {
		Currency    string
		Amount      string
		StudentName string
		Period      string
		ReceivedBy  string
		Status      Status
		Remaining   string
	}

	overdueData struct {
		Currency    string
		StudentName string
		Period      string
		DueDate     string
		Remaining   string
	}
)

func guardianAddress(std student.Student) (mail.Address, bool) {
	if std.GuardianEmail == nil || *std.GuardianEmail == "" {
		return mail.Address{}, false
	}
	return mail.Address{Name: std.Name + "'s guardian", Address: *std.GuardianEmail}, true
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(core.MoneyPlaces)
}

// sendReceipt emails a payment receipt to the student's guardian. Failures are only logged.
func (svc *Service) sendReceipt(ctx context.Context, rp RecordedPayment, remaining decimal.Decimal) {
	if !svc.conf.SendReceipts {
		return
	}
	std, err := svc.students.GetStudent(ctx, rp.Fee.StudentID)
	if err != nil {
		svc.logger.Warn("payment receipt: getting student", errors.Wrap(err, "getting student"))
		return
	}
	to, ok := guardianAddress(std)
	if !ok {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Payment Receipt - " + rp.Fee.Period,
		TemplateName: "payment_receipt",
		TemplateData: receiptData{
			Currency:    svc.conf.Currency,
			Amount:      formatMoney(rp.Payment.Amount),
			StudentName: std.Name,
			Period:      rp.Fee.Period,
			ReceivedBy:  rp.Payment.ReceivedBy,
			Status:      rp.FeeStatus,
			Remaining:   formatMoney(remaining),
		},
	})
}

// SendOverdueReminders emails the guardian of every student with an unpaid fee due before asOf.
// It returns the number of reminders sent.
func (svc *Service) SendOverdueReminders(ctx context.Context, asOf time.Time) (int, error) {
	fees, err := svc.repo.QueryFees(ctx, &FeeFilter{
		Statuses:  []Status{StatusDue, StatusPartial},
		DueBefore: &asOf,
	}, []core.DBOrdering{{Field: "due_date", Ascending: true}})
	if err != nil {
		return 0, errors.Wrap(err, "querying overdue fees")
	}

	students := make(map[string]student.Student)
	messages := make([]*core.EmailMessage, 0, len(fees))
	for _, fee := range fees {
		bal, err := svc.Balance(ctx, fee.ID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		if bal.Status == StatusPaid { // stale cache, fixed by Reconcile
			continue
		}

		std, ok := students[fee.StudentID]
		if !ok {
			if std, err = svc.students.GetStudent(ctx, fee.StudentID); err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return 0, errors.Wrap(err, "getting student")
			}
			students[fee.StudentID] = std
		}
		to, ok := guardianAddress(std)
		if !ok {
			continue
		}

		var dueDate string
		if fee.DueDate != nil {
			dueDate = fee.DueDate.Format(dateLayout)
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{to},
			Subject:      "Overdue Fee - " + fee.Period,
			TemplateName: "fee_overdue",
			TemplateData: overdueData{
				Currency:    svc.conf.Currency,
				StudentName: std.Name,
				Period:      fee.Period,
				DueDate:     dueDate,
				Remaining:   formatMoney(bal.Remaining),
			},
		})
	}

	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	return len(messages), nil
}
