package ledger

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/student"
)

var (
	// errors
	ErrFeeNotFound = core.NewNotFoundError("fee not found")
	ErrOverpayment = errors.New("payment exceeds the remaining balance")
)

type (
	// Repository persists fees and their payments.
	// Every method runs inside the transaction when called on the Repository passed to an Atomic func.
	Repository interface {
		// Atomic runs fn in a single transaction; fn's error rolls it back.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		CreateFee(ctx context.Context, fee Fee) (Fee, error)
		// GetFee returns ErrFeeNotFound when the fee does not exist.
		// forUpdate holds a row lock on the fee until the transaction ends.
		GetFee(ctx context.Context, id string, forUpdate bool) (Fee, error)
		QueryFees(ctx context.Context, filter *FeeFilter, ordering []core.DBOrdering) ([]Fee, error)
		UpdateFeeStatus(ctx context.Context, id string, status Status) error
		// DeleteFee removes the fee and its payments.
		DeleteFee(ctx context.Context, id string) error

		CreatePayment(ctx context.Context, payment Payment) (Payment, error)
		// QueryPayments returns payments newest first.
		QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error)
		SumPayments(ctx context.Context, feeID string) (decimal.Decimal, error)
	}

	ReportRepository interface {
		Totals(ctx context.Context, filter *FeeFilter) (Totals, error)
		StudentSummaries(ctx context.Context) ([]StudentSummary, error)
	}

	// StudentGetter looks up the students fees are billed to.
	StudentGetter interface {
		GetStudent(ctx context.Context, id string) (student.Student, error)
	}

	Options struct {
		Repo       Repository
		Reports    ReportRepository
		Students   StudentGetter
		MailSvc    core.EmailService
		Validate   *validator.Validate
		Translator ut.Translator
		Logger     core.Logger
		Conf       *core.Config
	}

	Service struct {
		repo       Repository
		reports    ReportRepository
		students   StudentGetter
		mailSvc    core.EmailService
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
		conf       core.LedgerConfig
	}
)

func NewService(opts Options) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Repo, "Repo"),
		vala.IsNotNil(opts.Reports, "Reports"),
		vala.IsNotNil(opts.Students, "Students"),
		vala.IsNotNil(opts.MailSvc, "MailSvc"),
		vala.IsNotNil(opts.Validate, "Validate"),
		vala.IsNotNil(opts.Logger, "Logger"),
		vala.IsNotNil(opts.Conf, "Conf"),
	).CheckAndPanic()

	return &Service{
		repo:       opts.Repo,
		reports:    opts.Reports,
		students:   opts.Students,
		mailSvc:    opts.MailSvc,
		validate:   opts.Validate,
		translator: opts.Translator,
		logger:     opts.Logger,
		conf:       opts.Conf.Ledger,
	}
}

func (svc *Service) validateStruct(s interface{}) error {
	if err := svc.validate.Struct(s); err != nil {
		return core.TranslateValidationErrors(err, svc.translator)
	}
	return nil
}

// CreateFee bills a student. The fee starts DUE.
func (svc *Service) CreateFee(ctx context.Context, nf NewFee) (Fee, error) {
	nf.Clean()
	if err := svc.validateStruct(nf); err != nil {
		return Fee{}, err
	}
	dueDate, err := parseDate(nf.DueDate)
	if err != nil {
		return Fee{}, core.NewValidationError(err, core.FieldError{Field: "due_date", Error: "invalid date"})
	}
	if _, err := svc.students.GetStudent(ctx, nf.StudentID); err != nil {
		return Fee{}, errors.Wrap(err, "getting student")
	}

	now := time.Now().UTC()
	fee := Fee{
		ID:          uuid.NewString(),
		StudentID:   nf.StudentID,
		Period:      nf.Period,
		Description: core.NullString(nf.Description),
		Amount:      nf.Amount,
		Status:      StatusDue,
		DueDate:     dueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	fee, err = svc.repo.CreateFee(ctx, fee)
	return fee, errors.Wrap(err, "creating fee")
}

// RecordPayment appends a payment to the fee's ledger and refreshes the fee's status.
// The fee row stays locked from the read to the status write, so concurrent payments serialize.
func (svc *Service) RecordPayment(ctx context.Context, feeID string, np NewPayment) (RecordedPayment, error) {
	np.Clean()
	if err := svc.validateStruct(np); err != nil {
		return RecordedPayment{}, err
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if np.Date != "" {
		d, err := parseDate(np.Date)
		if err != nil {
			return RecordedPayment{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
		}
		date = *d
	}

	var (
		res       RecordedPayment
		remaining decimal.Decimal
	)
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		fee, err := repo.GetFee(ctx, feeID, true)
		if err != nil {
			return err
		}

		if !svc.conf.AllowOverpayment {
			paid, err := repo.SumPayments(ctx, fee.ID)
			if err != nil {
				return errors.Wrap(err, "summing payments")
			}
			if np.Amount.GreaterThan(fee.Amount.Sub(paid)) {
				return core.NewValidationError(ErrOverpayment, core.FieldError{Field: "amount", Error: ErrOverpayment.Error()})
			}
		}

		payment, err := repo.CreatePayment(ctx, Payment{
			ID:         uuid.NewString(),
			FeeID:      fee.ID,
			Amount:     np.Amount,
			Date:       date,
			ReceivedBy: np.ReceivedBy,
			Method:     core.NullString(np.Method),
			Notes:      core.NullString(np.Notes),
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			return errors.Wrap(err, "creating payment")
		}

		// recompute from the ledger, never increment
		paid, err := repo.SumPayments(ctx, fee.ID)
		if err != nil {
			return errors.Wrap(err, "summing payments")
		}
		if status := DeriveStatus(fee.Amount, paid); status != fee.Status {
			if err := repo.UpdateFeeStatus(ctx, fee.ID, status); err != nil {
				return errors.Wrap(err, "updating fee status")
			}
			fee.Status = status
			fee.UpdatedAt = time.Now().UTC()
		}

		res = RecordedPayment{
			Payment:   payment,
			FeeStatus: fee.Status,
			Fee:       fee,
		}
		remaining = fee.Amount.Sub(paid)
		return nil
	})
	if err != nil {
		return RecordedPayment{}, err
	}

	svc.sendReceipt(ctx, res, remaining)
	return res, nil
}

// Balance recomputes the fee's balance from its payments, regardless of the cached status.
func (svc *Service) Balance(ctx context.Context, feeID string) (Balance, error) {
	fee, err := svc.repo.GetFee(ctx, feeID, false)
	if err != nil {
		return Balance{}, err
	}
	payments, err := svc.repo.QueryPayments(ctx, &PaymentFilter{FeeID: fee.ID})
	if err != nil {
		return Balance{}, errors.Wrap(err, "querying payments")
	}
	return ComputeBalance(fee, payments), nil
}

// Aggregate totals the fees selected by filter.
func (svc *Service) Aggregate(ctx context.Context, filter *FeeFilter) (Totals, error) {
	totals, err := svc.reports.Totals(ctx, filter)
	return totals, errors.Wrap(err, "computing totals")
}

func (svc *Service) StudentSummaries(ctx context.Context) ([]StudentSummary, error) {
	sums, err := svc.reports.StudentSummaries(ctx)
	return sums, errors.Wrap(err, "computing student summaries")
}

// GetFee returns the fee with its payments, newest first.
func (svc *Service) GetFee(ctx context.Context, id string) (Fee, error) {
	fee, err := svc.repo.GetFee(ctx, id, false)
	if err != nil {
		return Fee{}, err
	}
	fee.Payments, err = svc.repo.QueryPayments(ctx, &PaymentFilter{FeeID: fee.ID})
	if err != nil {
		return Fee{}, errors.Wrap(err, "querying payments")
	}
	return fee, nil
}

func (svc *Service) QueryFees(ctx context.Context, filter *FeeFilter, ordering []core.DBOrdering) ([]Fee, error) {
	fees, err := svc.repo.QueryFees(ctx, filter, ordering)
	return fees, errors.Wrap(err, "querying fees")
}

// QueryPayments lists payments newest first. A fee filter on a missing fee gives ErrFeeNotFound.
func (svc *Service) QueryPayments(ctx context.Context, filter *PaymentFilter) ([]Payment, error) {
	if filter != nil && filter.FeeID != "" {
		if _, err := svc.repo.GetFee(ctx, filter.FeeID, false); err != nil {
			return nil, err
		}
	}
	payments, err := svc.repo.QueryPayments(ctx, filter)
	return payments, errors.Wrap(err, "querying payments")
}

// DeleteFee removes a fee and its payments.
func (svc *Service) DeleteFee(ctx context.Context, id string) error {
	return svc.repo.Atomic(ctx, func(repo Repository) error {
		if _, err := repo.GetFee(ctx, id, true); err != nil {
			return err
		}
		return errors.Wrap(repo.DeleteFee(ctx, id), "deleting fee")
	})
}

// Reconcile recomputes every fee's status from its ledger and rewrites the cached ones that diverge.
// Each fee is checked in its own transaction, under the same lock as RecordPayment.
func (svc *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	res := ReconcileResult{CorrectedFeeIDs: make([]string, 0)}

	fees, err := svc.repo.QueryFees(ctx, nil, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying fees")
	}
	for _, f := range fees {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var corrected bool
		err := svc.repo.Atomic(ctx, func(repo Repository) error {
			fee, err := repo.GetFee(ctx, f.ID, true)
			if err != nil {
				return err
			}
			paid, err := repo.SumPayments(ctx, fee.ID)
			if err != nil {
				return errors.Wrap(err, "summing payments")
			}
			if status := DeriveStatus(fee.Amount, paid); status != fee.Status {
				corrected = true
				return errors.Wrap(repo.UpdateFeeStatus(ctx, fee.ID, status), "updating fee status")
			}
			return nil
		})
		if err != nil {
			if core.IsNotFound(err) { // deleted meanwhile
				continue
			}
			return res, errors.Wrapf(err, "reconciling fee %s", f.ID)
		}

		res.Checked++
		if corrected {
			res.Corrected++
			res.CorrectedFeeIDs = append(res.CorrectedFeeIDs, f.ID)
		}
	}
	return res, nil
}
