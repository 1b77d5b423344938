package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/utils"
)

// RegisterAdmin registers the operator endpoints under /v1/admin.  Login is
// open (but rate limited by limit); everything else requires a valid JWT
// with the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	e.POST("/v1/admin/login", a.Login, limit)

	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)

	// ---- Engine ----
	g.POST("/batch", a.RunBatch)
	g.POST("/cancellations", a.Cancel)
	g.POST("/restores", a.Restore)

	// ---- Slots ----
	g.POST("/slots", a.AddSlots)
	g.POST("/slots/:id/confirm", a.ConfirmSlot)
	g.POST("/slots/:id/refill", a.RefillSlot)
	g.POST("/slots/:id/drop", a.DropSlot)

	// ---- Jobs ----
	g.POST("/reminders", a.Reminders)
	g.POST("/digest", a.Digest)
	g.POST("/cleanup", a.Cleanup)
	g.POST("/mail/flush", a.FlushMail)
}
