package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

const dateLayout = "2006-01-02"

// Status is the cached payment state of a Fee.
type Status string

const (
	StatusDue     Status = "DUE"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

var AllStatuses = []Status{StatusDue, StatusPartial, StatusPaid}

func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Fee is one billing obligation for one student and one period.
// Amount never changes once the fee is created; Status is derived from the fee's payments.
type Fee struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student_id"`
	Period      string          `json:"period"`
	Description *string         `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	DueDate     *time.Time      `json:"due_date"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
	Payments    []Payment       `json:"payments,omitempty"`
}

// Payment is one receipt recorded against a Fee. Payments are never updated nor deleted.
type Payment struct {
	ID         string          `json:"id"`
	FeeID      string          `json:"fee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	ReceivedBy string          `json:"received_by"`
	Method     *string         `json:"method"`
	Notes      *string         `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
}

// Balance is a fee's state recomputed from its payments.
// CachedStatus is the status stored on the fee, for comparison.
type Balance struct {
	FeeID        string          `json:"fee_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Remaining    decimal.Decimal `json:"remaining"`
	Status       Status          `json:"status"`
	CachedStatus Status          `json:"cached_status"`
}

func (b Balance) InSync() bool {
	return b.Status == b.CachedStatus
}

// Totals aggregates a set of fees. Values are not clamped and may be negative.
type Totals struct {
	TotalOwed        decimal.Decimal `json:"total_owed"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	FeeCount         int             `json:"fee_count"`
}

type StudentSummary struct {
	StudentID   string          `json:"student_id"`
	Name        string          `json:"name"`
	RollNo      string          `json:"roll_no"`
	ClassName   string          `json:"class_name"`
	TotalFees   decimal.Decimal `json:"total_fees"`
	PaidFees    decimal.Decimal `json:"paid_fees"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// RecordedPayment is the outcome of recording a payment.
type RecordedPayment struct {
	Payment   Payment `json:"payment"`
	FeeStatus Status  `json:"fee_status"`
	Fee       Fee     `json:"fee"`
}

type ReconcileResult struct {
	Checked         int      `json:"checked"`
	Corrected       int      `json:"corrected"`
	CorrectedFeeIDs []string `json:"corrected_fee_ids"`
}

// NewFee contains information needed to bill a student.
type NewFee struct {
	StudentID   string          `json:"student_id" validate:"required"`
	Period      string          `json:"period" validate:"required,notblank,max=50"`
	Description string          `json:"description" validate:"max=255"`
	Amount      decimal.Decimal `json:"amount" validate:"decgt=0,declte=9999999999.99,money"`
	DueDate     string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

func (nf *NewFee) Clean() {
	nf.StudentID = core.CleanString(nf.StudentID)
	nf.Period = core.CleanString(nf.Period)
	nf.Description = core.CleanString(nf.Description)
	nf.DueDate = core.CleanString(nf.DueDate)
}

// NewPayment contains information needed to record a payment. Date defaults to today.
type NewPayment struct {
	Amount     decimal.Decimal `json:"amount" validate:"decgt=0,declte=9999999999.99,money"`
	ReceivedBy string          `json:"received_by" validate:"required,notblank,max=128"`
	Date       string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Method     string          `json:"method" validate:"max=32"`
	Notes      string          `json:"notes" validate:"max=500"`
}

func (np *NewPayment) Clean() {
	np.ReceivedBy = core.CleanString(np.ReceivedBy)
	np.Date = core.CleanString(np.Date)
	np.Method = core.CleanString(np.Method)
	np.Notes = core.CleanString(np.Notes)
}

type FeeFilter struct {
	StudentID string
	Period    string
	Statuses  []Status
	DueBefore *time.Time
}

func (ff *FeeFilter) IsEmpty() bool {
	return ff == nil || (ff.StudentID == "" && ff.Period == "" && len(ff.Statuses) == 0 && ff.DueBefore == nil)
}

type PaymentFilter struct {
	FeeID string
}

// FeeOrderingFields are the fee fields accepted for ordering.
var FeeOrderingFields = []string{"period", "amount", "status", "due_date", "created_at"}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
