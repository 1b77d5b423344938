package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/service"
)

// PublicHandler serves the unauthenticated endpoints: the slot list and
// registration intake.
type PublicHandler struct {
	Engine *service.Engine
	Log    *slog.Logger
}

func NewPublicHandler(e *service.Engine, log *slog.Logger) *PublicHandler {
	return &PublicHandler{Engine: e, Log: log}
}

// ListSlots returns every bookable slot with its live counts.
func (h *PublicHandler) ListSlots(c echo.Context) error {
	slots, err := h.Engine.ListSlots(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// GetSlot returns one slot by id.
func (h *PublicHandler) GetSlot(c echo.Context) error {
	slot, err := h.Engine.GetSlot(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, slot)
}

// Register books the caller onto one or more slots.  The response is 201
// when at least one row was created and 200 when every slot was skipped.
func (h *PublicHandler) Register(c echo.Context) error {
	var req service.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	res, err := h.Engine.Register(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	status := http.StatusOK
	if len(res.Created) > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}
