package handler // package handler holds the HTTP handlers of the API

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

var startedAt = time.Now()

// Health answers liveness probes with the process uptime.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
	})
}
