package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleAdmin      = "ADMIN"
	RoleAccountant = "ACCOUNTANT"
	RoleTeacher    = "TEACHER"
)

// Capability is an action a role may perform.
type Capability string

const (
	CapViewStudents   Capability = "students:view"
	CapManageStudents Capability = "students:manage"
	CapViewFees       Capability = "fees:view"
	CapCreateFees     Capability = "fees:create"
	CapDeleteFees     Capability = "fees:delete"
	CapRecordPayments Capability = "payments:record"
	CapReconcile      Capability = "fees:reconcile"
	CapViewReports    Capability = "reports:view"
	CapManageUsers    Capability = "users:manage"
)

var (
	AllRoles = []string{RoleAdmin, RoleAccountant, RoleTeacher}

	Roles = []Role{
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "Admin", Value: RoleAdmin},
	}

	rolePriorities = map[string]int{
		RoleAdmin:      30,
		RoleAccountant: 20,
		RoleTeacher:    10,
	}

	roleCapabilities = map[string][]Capability{
		RoleAdmin: {
			CapViewStudents, CapManageStudents,
			CapViewFees, CapCreateFees, CapDeleteFees, CapRecordPayments, CapReconcile,
			CapViewReports, CapManageUsers,
		},
		RoleAccountant: {CapViewStudents, CapViewFees, CapCreateFees, CapRecordPayments, CapViewReports},
		RoleTeacher:    {CapViewStudents, CapViewFees, CapViewReports},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

// RoleCan reports whether role grants capability.
func RoleCan(role string, capability Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Capabilities returns the capabilities granted by role.
func Capabilities(role string) []Capability {
	caps := make([]Capability, len(roleCapabilities[role]))
	copy(caps, roleCapabilities[role])
	return caps
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) Can(capability Capability) bool {
	return u.IsActive && RoleCan(u.Role, capability)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanGrant reports whether u may give role to another user.
func (u User) CanGrant(role string) bool {
	return RolePriority(role) <= RolePriority(u.Role)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string `json:"name" validate:"required,notblank,max=150"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Role            string `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string `json:"name" validate:"max=150"`
	Email           string `json:"email" validate:"omitempty,email,max=254"`
	Role            string `json:"role" validate:"omitempty,role"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Clean falls back to the original user's values for omitted fields.
func (uu *UpdateUser) Clean(origUsr User) {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if role := core.CleanString(uu.Role); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && len(qf.Roles) == 0 && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// OrderingFields are the user fields accepted for ordering.
var OrderingFields = []string{"name", "email", "role", "created_at", "last_login"}
