package inmemdb

import (
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
)

// DB is an in-memory store for tests and local runs.
// A single lock guards all tables.
type DB struct {
	mu       sync.RWMutex
	users    map[string]user.User
	students map[string]student.Student
	fees     map[string]ledger.Fee
	payments map[string]ledger.Payment
}

func Open() *DB {
	return &DB{
		users:    make(map[string]user.User),
		students: make(map[string]student.Student),
		fees:     make(map[string]ledger.Fee),
		payments: make(map[string]ledger.Payment),
	}
}

// Reset empties all tables.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]user.User)
	db.students = make(map[string]student.Student)
	db.fees = make(map[string]ledger.Fee)
	db.payments = make(map[string]ledger.Payment)
}

// compareFunc returns a negative number when a < b, 0 when equal, a positive number otherwise.
type compareFunc func(a, b int) int

// lessFunc builds a sort less func from orderings, falling back on fallback.
func lessFunc(orderings []core.DBOrdering, fields map[string]compareFunc, fallback ...core.DBOrdering) func(i, j int) bool {
	all := append(append([]core.DBOrdering{}, orderings...), fallback...)
	return func(i, j int) bool {
		for _, ord := range all {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := cmp(i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}
}

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareTimePtrs(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil: // NULLS LAST in ascending order
		return 1
	case b == nil:
		return -1
	}
	return compareTimes(*a, *b)
}

func compareDecimals(a, b decimal.Decimal) int {
	return a.Cmp(b)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
