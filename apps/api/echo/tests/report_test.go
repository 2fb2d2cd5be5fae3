package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/tests"
)

func Test_reportApi(t *testing.T) {
	app, env := setup(t)

	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher@shule.test", "", user.RoleTeacher, true)
	gone := testutil.CreateUser(t, env.UserRepo, "Gone", "gone@shule.test", "", user.RoleTeacher, false)
	token := getToken(t, env.Conf, teacher)

	amani := testutil.CreateStudent(t, env.StudentRepo, "Amani", "R-001", "Form 1", "")
	baraka := testutil.CreateStudent(t, env.StudentRepo, "baraka", "R-002", "Form 1", "")
	testutil.CreateStudent(t, env.StudentRepo, "Chausiku", "R-003", "Form 2", "")

	now := time.Now()
	f1 := testutil.CreateFee(t, env.LedgerRepo, amani.ID, "2026-T1", "100", ledger.StatusPaid, nil, now)
	f2 := testutil.CreateFee(t, env.LedgerRepo, amani.ID, "2026-T2", "200", ledger.StatusPartial, nil, now.Add(time.Hour))
	testutil.CreateFee(t, env.LedgerRepo, baraka.ID, "2026-T1", "100.50", ledger.StatusDue, nil, now.Add(2*time.Hour))
	testutil.CreatePayment(t, env.LedgerRepo, f1.ID, "100", testutil.Date("2026-01-10"))
	testutil.CreatePayment(t, env.LedgerRepo, f2.ID, "50.25", testutil.Date("2026-01-11"))

	runTests(t, app, []httpTest{
		{name: "Auth required", method: http.MethodGet, path: "/v1/reports", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user", method: http.MethodGet, path: "/v1/reports", token: getToken(t, env.Conf, gone),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "bad filter", method: http.MethodGet, path: "/v1/reports?type=fees&status=lol", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "unknown status lol"}),
		},
	})

	get := func(t *testing.T, path string, v interface{}) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, v)
	}

	t.Run("overview", func(t *testing.T) {
		for _, path := range []string{"/v1/reports", "/v1/reports?type=overview", "/v1/reports?type=lol"} {
			var rep echoapi.OverviewReport
			get(t, path, &rep)
			assert.Equal(t, "overview", rep.Type)
			assert.Equal(t, 3, rep.TotalStudents)
			assert.Equal(t, 3, rep.FeeCount)
			decEqual(t, "400.50", rep.TotalFees)
			decEqual(t, "150.25", rep.TotalPayments)
			decEqual(t, "250.25", rep.PendingFees)
		}
	})

	t.Run("fees", func(t *testing.T) {
		var rep echoapi.FeesReport
		get(t, "/v1/reports?type=fees&student_id="+amani.ID, &rep)
		assert.Equal(t, "fees", rep.Type)
		assert.Equal(t, 2, rep.Totals.FeeCount)
		decEqual(t, "300", rep.Totals.TotalOwed)
		decEqual(t, "150.25", rep.Totals.TotalPaid)
		decEqual(t, "149.75", rep.Totals.TotalOutstanding)
		require.Len(t, rep.Data, 2)
		assert.Equal(t, f2.ID, rep.Data[0].ID)
		assert.Equal(t, f1.ID, rep.Data[1].ID)

		// each fee comes with its payments
		require.Len(t, rep.Data[0].Payments, 1)
		assert.Equal(t, f2.ID, rep.Data[0].Payments[0].FeeID)
		decEqual(t, "50.25", rep.Data[0].Payments[0].Amount)
		require.Len(t, rep.Data[1].Payments, 1)
		decEqual(t, "100", rep.Data[1].Payments[0].Amount)

		rep = echoapi.FeesReport{}

		// filters by cached status
		get(t, "/v1/reports?type=fees&status=due", &rep)
		assert.Equal(t, 1, rep.Totals.FeeCount)
		decEqual(t, "0", rep.Totals.TotalPaid)
		require.Len(t, rep.Data, 1)
		assert.Equal(t, baraka.ID, rep.Data[0].StudentID)

		assert.Empty(t, rep.Data[0].Payments)

		// no match gives zero totals, not an error
		rep = echoapi.FeesReport{}
		get(t, "/v1/reports?type=fees&period=2030-T1", &rep)
		assert.Equal(t, 0, rep.Totals.FeeCount)
		decEqual(t, "0", rep.Totals.TotalOwed)
		assert.NotNil(t, rep.Data)
		assert.Empty(t, rep.Data)
	})

	t.Run("students", func(t *testing.T) {
		var rep echoapi.StudentsReport
		get(t, "/v1/reports?type=students", &rep)
		assert.Equal(t, "students", rep.Type)
		require.Len(t, rep.Data, 3)

		// ordered by name, case insensitive
		assert.Equal(t, []string{"Amani", "baraka", "Chausiku"}, []string{rep.Data[0].Name, rep.Data[1].Name, rep.Data[2].Name})

		decEqual(t, "300", rep.Data[0].TotalFees)
		decEqual(t, "150.25", rep.Data[0].PaidFees)
		decEqual(t, "149.75", rep.Data[0].Outstanding)
		decEqual(t, "100.50", rep.Data[1].TotalFees)
		decEqual(t, "0", rep.Data[1].PaidFees)
		decEqual(t, "0", rep.Data[2].TotalFees)
		decEqual(t, "0", rep.Data[2].Outstanding)
	})
}
