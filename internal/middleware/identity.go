package middleware

import "github.com/labstack/echo/v4"

// Subject returns the token subject stored by JWTAuth, or "anonymous" on
// unauthenticated routes.  Admin handlers attach it to their log lines.
func Subject(c echo.Context) string {
	if s, ok := c.Get(CtxSubject).(string); ok && s != "" {
		return s
	}
	return "anonymous"
}
