package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// requireCapability lets the request through when the authenticated user's role grants capability.
// The role is read from the stored user, so role changes apply to tokens already issued.
func (a *authenticator) requireCapability(capability user.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.contextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			if !usr.Can(capability) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

// requireActive rejects tokens of deactivated users.
func (a *authenticator) requireActive(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := a.contextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		return next(ctx)
	}
}

// selfOrManagerMiddleware loads the user of the :id param into the context
// when it is the authenticated user or the latter can manage users.
func (a *authenticator) selfOrManagerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := a.contextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		if ctx.Param("id") == ctxUsr.ID || ctxUsr.Can(user.CapManageUsers) {
			usr, err := a.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err == nil {
				ctx.Set(objContextKey, usr)
				return next(ctx)
			}
			if errors.Cause(err) != user.ErrNotFound {
				return errors.Wrap(err, "finding user by ID")
			}
		}
		return errHttpNotFound
	}
}
