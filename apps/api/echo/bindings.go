package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

const (
	orderingParam = "ordering"
	dateLayout    = "2006-01-02"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the "ordering" query param, e.g. "-created_at,name". Fields not in allowed are dropped.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// queryBool returns nil when param is absent or not a boolean.
func queryBool(ctx echo.Context, param string) *bool {
	raw := ctx.QueryParam(param)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func queryDate(ctx echo.Context, param string) (*time.Time, error) {
	raw := ctx.QueryParam(param)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: param, Error: param + " must be a YYYY-MM-DD date"})
	}
	return &t, nil
}

func queryStrings(ctx echo.Context, param string) []string {
	var vals []string
	for _, v := range ctx.QueryParams()[param] {
		if v = core.CleanString(v); v != "" {
			vals = append(vals, v)
		}
	}
	return vals
}
