package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxdesk/filing-client/internal/api/middleware"
	"github.com/taxdesk/filing-client/internal/core/domain"
	"github.com/taxdesk/filing-client/internal/core/ports"
)

// ctxActor extracts the caller injected by the Auth middleware. A missing
// uid means the middleware did not run; reject with 401 before any service
// call.
func ctxActor(c echo.Context) (ports.Actor, error) {
	uid, _ := c.Get(middleware.KeyUID).(string)
	if uid == "" {
		return ports.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ := c.Get(middleware.KeyRole).(string)
	if role == "" {
		role = string(domain.RoleUser)
	}
	return ports.Actor{UID: uid, Role: domain.Role(role)}, nil
}

// ctxEmail returns the email claim, or "".
func ctxEmail(c echo.Context) string {
	email, _ := c.Get(middleware.KeyEmail).(string)
	return email
}

// bindValid binds the request body into req and validates it.
func bindValid(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
