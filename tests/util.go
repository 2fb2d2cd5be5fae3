package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "Shule",
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromName:           "Shule",
		DefaultFromEmail:          "noreply@shule.test",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: core.ServerConfig{
			JWTExpirationDelta:        15 * time.Minute,
			JWTRefreshExpirationDelta: 7 * 24 * time.Hour,
			DisableReqLogs:            true,
		},
		Ledger: core.LedgerConfig{
			Currency:         "USD",
			AllowOverpayment: true,
			SendReceipts:     true,
		},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
}

// Env wires the services on an in-memory store.
type Env struct {
	Conf        *core.Config
	Logger      core.Logger
	DB          *inmemdb.DB
	Mail        *emailsvc.ServiceMock
	Validate    *validator.Validate
	Translator  ut.Translator
	UserRepo    user.Repository
	StudentRepo student.Repository
	LedgerRepo  ledger.Repository
	UserSvc     *user.Service
	StudentSvc  *student.Service
	LedgerSvc   *ledger.Service
}

func NewEnv(t *testing.T, conf ...*core.Config) *Env {
	t.Helper()

	c := NewConfig()
	if len(conf) > 0 {
		c = conf[0]
	}
	tmpls, err := core.NewEmailTemplates(c)
	if err != nil {
		t.Fatalf("NewEmailTemplates() failed: %v", err)
	}

	env := &Env{
		Conf:       c,
		Logger:     NewLogger(c),
		DB:         inmemdb.Open(),
		Translator: core.NewTranslator(),
	}
	env.Validate = core.NewValidator(env.Translator)
	env.Mail = emailsvc.NewServiceMock(c, tmpls, env.Logger)
	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.StudentRepo = inmemdb.NewStudentRepository(env.DB)
	env.LedgerRepo = inmemdb.NewLedgerRepository(env.DB)

	env.UserSvc = user.NewService(env.UserRepo, env.Mail, env.Validate, env.Translator, c)
	env.StudentSvc = student.NewService(env.StudentRepo, env.Validate, env.Translator)
	env.LedgerSvc = ledger.NewService(ledger.Options{
		Repo:       env.LedgerRepo,
		Reports:    inmemdb.NewReportRepository(env.DB),
		Students:   env.StudentRepo,
		MailSvc:    env.Mail,
		Validate:   env.Validate,
		Translator: env.Translator,
		Logger:     env.Logger,
		Conf:       c,
	})
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo student.Repository,
	name, rollNo, className, guardianEmail string,
	createdAt ...time.Time,
) student.Student {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	std, err := repo.CreateStudent(context.Background(), student.Student{
		ID:            uuid.NewString(),
		Name:          name,
		RollNo:        rollNo,
		ClassName:     className,
		GuardianEmail: core.NullString(guardianEmail),
		CreatedAt:     tstamp,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

// CreateFee stores a fee as-is, bypassing the service; status is whatever is given.
func CreateFee(
	t *testing.T,
	repo ledger.Repository,
	studentID, period, amount string,
	status ledger.Status,
	dueDate *time.Time,
	createdAt ...time.Time,
) ledger.Fee {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	fee, err := repo.CreateFee(context.Background(), ledger.Fee{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Period:    period,
		Amount:    decimal.RequireFromString(amount),
		Status:    status,
		DueDate:   dueDate,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	return fee
}

// CreatePayment appends a payment without touching the fee's status.
func CreatePayment(t *testing.T, repo ledger.Repository, feeID, amount string, date time.Time) ledger.Payment {
	t.Helper()

	p, err := repo.CreatePayment(context.Background(), ledger.Payment{
		ID:         uuid.NewString(),
		FeeID:      feeID,
		Amount:     decimal.RequireFromString(amount),
		Date:       date.UTC(),
		ReceivedBy: "Bursar",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreatePayment() failed: %v", err)
	}
	return p
}

func Date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func DatePtr(s string) *time.Time {
	d := Date(s)
	return &d
}
