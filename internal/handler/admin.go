package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/middleware"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/service"
	"github.com/iliyamo/slot-booking/internal/slotgen"
	"github.com/iliyamo/slot-booking/internal/utils"
)

// AdminAuth is the single operator account and the token settings.
type AdminAuth struct {
	Email        string
	PasswordHash string // bcrypt
	JWTSecret    string
	TTLMin       int
}

// AdminHandler serves the operator endpoints.  Every route except Login
// sits behind JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Engine *service.Engine
	Auth   AdminAuth
	Log    *slog.Logger
}

func NewAdminHandler(e *service.Engine, auth AdminAuth, log *slog.Logger) *AdminHandler {
	return &AdminHandler{Engine: e, Auth: auth, Log: log.With("component", "admin")}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type restoreReq struct {
	Email  string `json:"email"`
	SlotID string `json:"slot_id"`
}

type refillReq struct {
	FillPolicy service.FillPolicy `json:"fill_policy"`
}

// Login exchanges the operator credentials for an access token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	req.Email = model.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	if h.Auth.PasswordHash == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "admin login disabled"})
	}
	if req.Email != model.NormalizeEmail(h.Auth.Email) || !utils.VerifyPassword(h.Auth.PasswordHash, req.Password) {
		h.Log.WarnContext(c.Request().Context(), "admin login rejected", "email", req.Email, "ip", c.RealIP())
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	tok, err := utils.NewAccessToken(h.Auth.JWTSecret, req.Email, utils.RoleAdmin, h.Auth.TTLMin)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}

// Cancel removes a person's registrations and repairs their slots.
func (h *AdminHandler) Cancel(c echo.Context) error {
	var req service.CancelRequest
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	res, err := h.Engine.Cancel(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.InfoContext(c.Request().Context(), "cancellation", "by", middleware.Subject(c), "email", req.Email, "removed", res.RemovedCount)
	return c.JSON(http.StatusOK, res)
}

// Restore re-admits an archived registration.
func (h *AdminHandler) Restore(c echo.Context) error {
	var req restoreReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	res, err := h.Engine.RestoreFromArchiveIfEligible(c.Request().Context(), req.Email, req.SlotID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// RunBatch runs a batch pass now.  A pass with failed steps still answers
// 200; the failures are listed in the report.
func (h *AdminHandler) RunBatch(c echo.Context) error {
	rep, err := h.Engine.RunBatch(c.Request().Context())
	if err != nil && !errors.Is(err, service.ErrBatchIncomplete) {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// ConfirmSlot runs the confirmation decision for one slot.
func (h *AdminHandler) ConfirmSlot(c echo.Context) error {
	res, err := h.Engine.ConfirmIfCapacityReached(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if res.Status == service.ConfirmNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}
	return c.JSON(http.StatusOK, res)
}

// RefillSlot tops a slot up from its waitlist and the archive.
func (h *AdminHandler) RefillSlot(c echo.Context) error {
	var req refillReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	switch req.FillPolicy {
	case "":
		req.FillPolicy = service.FillTry
	case service.FillTry, service.FillKeepPartial, service.FillToPending, service.FillCancelAll:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown fill_policy"})
	}
	refilled, err := h.Engine.TryRefillSlot(c.Request().Context(), c.Param("id"), req.FillPolicy)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"slot_id": c.Param("id"), "refilled": refilled})
}

// DropSlot calls a slot off and tells its confirmed people.
func (h *AdminHandler) DropSlot(c echo.Context) error {
	if err := h.Engine.DropSlot(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.InfoContext(c.Request().Context(), "slot dropped", "by", middleware.Subject(c), "slot_id", c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// AddSlots creates slots from a datetime, date or range request.
func (h *AdminHandler) AddSlots(c echo.Context) error {
	var req slotgen.Request
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if strings.TrimSpace(req.Mode) == "" {
		req.Mode = slotgen.ModeDateTime
	}
	res, err := h.Engine.AddSlots(c.Request().Context(), req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	status := http.StatusOK
	if res.Added > 0 {
		status = http.StatusCreated
	}
	return c.JSON(status, res)
}

// Reminders sends tomorrow's reminders now.
func (h *AdminHandler) Reminders(c echo.Context) error {
	rep, err := h.Engine.SendReminders(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// Digest sends the administrator digest now.
func (h *AdminHandler) Digest(c echo.Context) error {
	sent, err := h.Engine.SendDailyAdminDigest(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sent": sent})
}

// Cleanup archives ledger rows older than a week.
func (h *AdminHandler) Cleanup(c echo.Context) error {
	n, err := h.Engine.DailyCleanup(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"archived": n})
}

// FlushMail delivers queued mail within today's quota.
func (h *AdminHandler) FlushMail(c echo.Context) error {
	rep, err := h.Engine.FlushMail(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}
