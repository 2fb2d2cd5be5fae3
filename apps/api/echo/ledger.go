package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/ledger"
	"github.com/trezcool/shule/core/user"
)

type ledgerApi struct {
	svc *ledger.Service
}

func registerLedgerAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc *ledger.Service) {
	api := ledgerApi{svc: svc}
	view := auth.requireCapability(user.CapViewFees)

	fg := g.Group("/fees", jwt)
	fg.POST("", api.createFee, auth.requireCapability(user.CapCreateFees))
	fg.GET("", api.queryFees, view)
	fg.POST("/reconcile", api.reconcile, auth.requireCapability(user.CapReconcile))
	fg.GET("/:id", api.retrieveFee, view)
	fg.DELETE("/:id", api.destroyFee, auth.requireCapability(user.CapDeleteFees))
	fg.GET("/:id/balance", api.balance, view)
	fg.GET("/:id/payments", api.feePayments, view)
	fg.POST("/:id/payments", api.recordPayment, auth.requireCapability(user.CapRecordPayments))

	g.GET("/payments", api.queryPayments, jwt, view)
}

func (api *ledgerApi) createFee(ctx echo.Context) error {
	var data ledger.NewFee
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFee")
	}
	fee, err := api.svc.CreateFee(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating fee")
	}
	return ctx.JSON(http.StatusCreated, fee)
}

// bindFeeFilter reads student_id, period, status (repeatable) and due_before query params.
func bindFeeFilter(ctx echo.Context) (*ledger.FeeFilter, error) {
	filter := &ledger.FeeFilter{
		StudentID: core.CleanString(ctx.QueryParam("student_id")),
		Period:    core.CleanString(ctx.QueryParam("period")),
	}
	for _, s := range queryStrings(ctx, "status") {
		status := ledger.Status(strings.ToUpper(s))
		if !status.IsValid() {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "unknown status " + s})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	dueBefore, err := queryDate(ctx, "due_before")
	if err != nil {
		return nil, err
	}
	filter.DueBefore = dueBefore
	return filter, nil
}

func (api *ledgerApi) queryFees(ctx echo.Context) error {
	filter, err := bindFeeFilter(ctx)
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, ledger.FeeOrderingFields...)

	fees, err := api.svc.QueryFees(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []ledger.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *ledgerApi) retrieveFee(ctx echo.Context) error {
	fee, err := api.svc.GetFee(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee")
	}
	return ctx.JSON(http.StatusOK, fee)
}

func (api *ledgerApi) destroyFee(ctx echo.Context) error {
	if err := api.svc.DeleteFee(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting fee")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *ledgerApi) balance(ctx echo.Context) error {
	bal, err := api.svc.Balance(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}

func (api *ledgerApi) recordPayment(ctx echo.Context) error {
	var data ledger.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	res, err := api.svc.RecordPayment(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *ledgerApi) feePayments(ctx echo.Context) error {
	return api.listPayments(ctx, &ledger.PaymentFilter{FeeID: ctx.Param("id")})
}

func (api *ledgerApi) queryPayments(ctx echo.Context) error {
	return api.listPayments(ctx, &ledger.PaymentFilter{FeeID: core.CleanString(ctx.QueryParam("fee_id"))})
}

func (api *ledgerApi) listPayments(ctx echo.Context, filter *ledger.PaymentFilter) error {
	payments, err := api.svc.QueryPayments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []ledger.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *ledgerApi) reconcile(ctx echo.Context) error {
	res, err := api.svc.Reconcile(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "reconciling fees")
	}
	return ctx.JSON(http.StatusOK, res)
}
