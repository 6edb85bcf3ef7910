package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionHeader carries the client session used to order competing
// requests from the same user.
const SessionHeader = "X-Session-ID"

// Scope returns the last-call-wins scope for operation: the client session
// joined with the operation name. It returns "" when the request carries
// no session, leaving scoping to the caller.
func Scope(c echo.Context, operation string) string {
	sid := strings.TrimSpace(c.Request().Header.Get(SessionHeader))
	if sid == "" {
		return ""
	}
	return sid + "/" + operation
}
