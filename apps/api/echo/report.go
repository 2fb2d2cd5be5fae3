package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
)

const (
	reportOverview = "overview"
	reportFees     = "fees"
	reportStudents = "students"
)

type reportApi struct {
	ledgerSvc  *ledger.Service
	studentSvc *student.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, ledgerSvc *ledger.Service, studentSvc *student.Service) {
	api := reportApi{ledgerSvc: ledgerSvc, studentSvc: studentSvc}
	g.GET("/reports", api.report, jwt, auth.requireCapability(user.CapViewReports))
}

type (
	OverviewReport struct {
		Type          string          `json:"type"`
		TotalStudents int             `json:"total_students"`
		TotalFees     decimal.Decimal `json:"total_fees"`
		TotalPayments decimal.Decimal `json:"total_payments"`
		PendingFees   decimal.Decimal `json:"pending_fees"`
		FeeCount      int             `json:"fee_count"`
	}

	FeesReport struct {
		Type   string        `json:"type"`
		Totals ledger.Totals `json:"totals"`
		Data   []ledger.Fee  `json:"data"`
	}

	StudentsReport struct {
		Type string                  `json:"type"`
		Data []ledger.StudentSummary `json:"data"`
	}
)

// report serves ?type=overview|fees|students; unknown types fall back to the overview.
func (api *reportApi) report(ctx echo.Context) error {
	switch ctx.QueryParam("type") {
	case reportFees:
		return api.fees(ctx)
	case reportStudents:
		return api.students(ctx)
	default:
		return api.overview(ctx)
	}
}

func (api *reportApi) overview(ctx echo.Context) error {
	totals, err := api.ledgerSvc.Aggregate(ctx.Request().Context(), nil)
	if err != nil {
		return errors.Wrap(err, "aggregating fees")
	}
	count, err := api.studentSvc.Count(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting students")
	}
	return ctx.JSON(http.StatusOK, OverviewReport{
		Type:          reportOverview,
		TotalStudents: count,
		TotalFees:     totals.TotalOwed,
		TotalPayments: totals.TotalPaid,
		PendingFees:   totals.TotalOutstanding,
		FeeCount:      totals.FeeCount,
	})
}

func (api *reportApi) fees(ctx echo.Context) error {
	filter, err := bindFeeFilter(ctx)
	if err != nil {
		return err
	}
	totals, err := api.ledgerSvc.Aggregate(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "aggregating fees")
	}
	fees, err := api.ledgerSvc.QueryFees(ctx.Request().Context(), filter, nil)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []ledger.Fee{}
	}

	// fees carry their payments, as on the fee detail endpoint
	payments, err := api.ledgerSvc.QueryPayments(ctx.Request().Context(), nil)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	byFee := make(map[string][]ledger.Payment)
	for _, p := range payments {
		byFee[p.FeeID] = append(byFee[p.FeeID], p)
	}
	for i := range fees {
		fees[i].Payments = byFee[fees[i].ID]
	}
	return ctx.JSON(http.StatusOK, FeesReport{Type: reportFees, Totals: totals, Data: fees})
}

func (api *reportApi) students(ctx echo.Context) error {
	summaries, err := api.ledgerSvc.StudentSummaries(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing student summaries")
	}
	if summaries == nil {
		summaries = []ledger.StudentSummary{}
	}
	return ctx.JSON(http.StatusOK, StudentsReport{Type: reportStudents, Data: summaries})
}
