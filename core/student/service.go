package student

import (
	"context"
	"errors"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("student not found")
	ErrRollNoExists = errors.New("a student with this roll number already exists")
)

type (
	Repository interface {
		CheckRollNoUniqueness(ctx context.Context, rollNo string) error
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Student.Name or Student.RollNo.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		CountStudents(ctx context.Context) (int, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()
	return &Service{repo: repo, validate: validate, translator: translator}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Student{}, core.TranslateValidationErrors(err, svc.translator)
	}
	if err := svc.repo.CheckRollNoUniqueness(ctx, ns.RollNo); err != nil {
		if err == ErrRollNoExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "roll_no", Error: err.Error()})
		}
		return Student{}, err
	}
	return svc.repo.CreateStudent(ctx, Student{
		ID:            uuid.NewString(),
		Name:          ns.Name,
		RollNo:        ns.RollNo,
		ClassName:     ns.ClassName,
		GuardianEmail: core.NullString(ns.GuardianEmail),
		CreatedAt:     time.Now().UTC(),
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) Count(ctx context.Context) (int, error) {
	return svc.repo.CountStudents(ctx)
}
