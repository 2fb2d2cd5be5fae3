package gormrepos

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
)

type (
	userRow struct {
		ID           string `gorm:"primaryKey"`
		Name         string
		Email        string
		Role         string
		IsActive     bool
		PasswordHash []byte
		CreatedAt    time.Time
		UpdatedAt    time.Time
		LastLogin    null.Time
	}

	studentRow struct {
		ID            string `gorm:"primaryKey"`
		Name          string
		RollNo        string
		ClassName     string
		GuardianEmail null.String
		CreatedAt     time.Time
	}

	feeRow struct {
		ID          string `gorm:"primaryKey"`
		StudentID   string
		Period      string
		Description null.String
		Amount      decimal.Decimal `gorm:"type:numeric(12,2)"`
		Status      string
		DueDate     null.Time
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	paymentRow struct {
		ID         string `gorm:"primaryKey"`
		FeeID      string
		Amount     decimal.Decimal `gorm:"type:numeric(12,2)"`
		Date       time.Time
		ReceivedBy string
		Method     null.String
		Notes      null.String
		CreatedAt  time.Time
	}
)

func (userRow) TableName() string    { return "users" }
func (studentRow) TableName() string { return "students" }
func (feeRow) TableName() string     { return "fees" }
func (paymentRow) TableName() string { return "payments" }

func boilUser(usr user.User) userRow {
	row := userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Role:         usr.Role,
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin)
	}
	return row
}

func unboilUser(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func boilStudent(std student.Student) studentRow {
	return studentRow{
		ID:            std.ID,
		Name:          std.Name,
		RollNo:        std.RollNo,
		ClassName:     std.ClassName,
		GuardianEmail: null.StringFromPtr(std.GuardianEmail),
		CreatedAt:     std.CreatedAt,
	}
}

func unboilStudent(row studentRow) student.Student {
	return student.Student{
		ID:            row.ID,
		Name:          row.Name,
		RollNo:        row.RollNo,
		ClassName:     row.ClassName,
		GuardianEmail: row.GuardianEmail.Ptr(),
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func boilFee(fee ledger.Fee) feeRow {
	return feeRow{
		ID:          fee.ID,
		StudentID:   fee.StudentID,
		Period:      fee.Period,
		Description: null.StringFromPtr(fee.Description),
		Amount:      fee.Amount,
		Status:      string(fee.Status),
		DueDate:     null.TimeFromPtr(fee.DueDate),
		CreatedAt:   fee.CreatedAt,
		UpdatedAt:   fee.UpdatedAt,
	}
}

func unboilFee(row feeRow) ledger.Fee {
	fee := ledger.Fee{
		ID:          row.ID,
		StudentID:   row.StudentID,
		Period:      row.Period,
		Description: row.Description.Ptr(),
		Amount:      row.Amount,
		Status:      ledger.Status(row.Status),
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.DueDate.Valid {
		d := row.DueDate.Time.UTC()
		fee.DueDate = &d
	}
	return fee
}

func boilPayment(p ledger.Payment) paymentRow {
	return paymentRow{
		ID:         p.ID,
		FeeID:      p.FeeID,
		Amount:     p.Amount,
		Date:       p.Date,
		ReceivedBy: p.ReceivedBy,
		Method:     null.StringFromPtr(p.Method),
		Notes:      null.StringFromPtr(p.Notes),
		CreatedAt:  p.CreatedAt,
	}
}

func unboilPayment(row paymentRow) ledger.Payment {
	return ledger.Payment{
		ID:         row.ID,
		FeeID:      row.FeeID,
		Amount:     row.Amount,
		Date:       row.Date.UTC(),
		ReceivedBy: row.ReceivedBy,
		Method:     row.Method.Ptr(),
		Notes:      row.Notes.Ptr(),
		CreatedAt:  row.CreatedAt.UTC(),
	}
}

// validID reports whether id can be looked up; malformed IDs match no row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// trapNotFound replaces gorm.ErrRecordNotFound with notFoundErr.
func trapNotFound(err error, notFoundErr error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundErr
	}
	return err
}

// applyOrdering orders q by the allowed orderings then by fallback.
func applyOrdering(q *gorm.DB, orderings []core.DBOrdering, allowed []string, fallback ...core.DBOrdering) *gorm.DB {
	for _, ord := range append(append([]core.DBOrdering{}, orderings...), fallback...) {
		if !core.StringInSlice(ord.Field, allowed) && ord.Field != "id" {
			continue
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: ord.Field}, Desc: !ord.Ascending})
	}
	return q
}

func likePattern(s string) string {
	return "%" + s + "%"
}
