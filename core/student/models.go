package student

import (
	"time"

	"github.com/trezcool/shule/core"
)

type Student struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	RollNo        string    `json:"roll_no"`
	ClassName     string    `json:"class_name"`
	GuardianEmail *string   `json:"guardian_email"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// NewStudent contains information needed to register a Student.
type NewStudent struct {
	Name          string `json:"name" validate:"required,notblank,max=150"`
	RollNo        string `json:"roll_no" validate:"required,notblank,max=32"`
	ClassName     string `json:"class_name" validate:"required,notblank,max=50"`
	GuardianEmail string `json:"guardian_email" validate:"omitempty,email,max=254"`
}

func (ns *NewStudent) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.RollNo = core.CleanString(ns.RollNo)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
}

type QueryFilter struct {
	Search    string `query:"search"`
	ClassName string `query:"class_name"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassName = core.CleanString(qf.ClassName)
}

// OrderingFields are the student fields accepted for ordering.
var OrderingFields = []string{"name", "roll_no", "class_name", "created_at"}
