package hospital

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vitalflow/vitalflow/internal/domain/bed"
	"github.com/vitalflow/vitalflow/internal/domain/decision"
	"github.com/vitalflow/vitalflow/internal/domain/patient"
	"github.com/vitalflow/vitalflow/internal/domain/staff"
	"github.com/vitalflow/vitalflow/internal/platform/auth"
	"github.com/vitalflow/vitalflow/pkg/pagination"
)

// Handler exposes the core over HTTP. It stays thin: parse, delegate,
// translate errors.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	clinical.POST("/patients", h.AdmitPatient)
	clinical.GET("/patients", h.ListQueue)
	clinical.GET("/patients/:id", h.GetPatient)
	clinical.PATCH("/patients/:id/vitals", h.UpdateVitals)
	clinical.DELETE("/patients/:id", h.DischargePatient)

	physician := api.Group("", auth.RequireRole("physician"))
	physician.PATCH("/patients/:id/status", h.SetStatus)
	physician.POST("/approvals/:id/approve", h.ApproveDecision)
	physician.POST("/approvals/:id/reject", h.RejectDecision)

	ops := api.Group("", auth.RequireRole("physician", "nurse", "registrar"))
	ops.POST("/beds", h.AddBed)
	ops.GET("/beds", h.ListBeds)
	ops.POST("/staff", h.AddStaff)
	ops.GET("/staff", h.ListStaff)
	ops.POST("/staff/:id/punch-in", h.PunchIn)
	ops.POST("/staff/:id/punch-out", h.PunchOut)
	ops.GET("/approvals", h.ListApprovals)
	ops.POST("/agent/cycle", h.RunCycle)
	ops.GET("/audit", h.GetAuditLog)
	ops.GET("/stats", h.GetStats)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, patient.ErrNotFound),
		errors.Is(err, bed.ErrNotFound),
		errors.Is(err, staff.ErrNotFound),
		errors.Is(err, decision.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, decision.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, bed.ErrAlreadyOccupied),
		errors.Is(err, patient.ErrAlreadyAdmitted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) AdmitPatient(c echo.Context) error {
	var p patient.Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Admit(&p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	queue := h.svc.Queue()
	start, end := pg.Window(len(queue))
	return c.JSON(http.StatusOK, pagination.NewResponse(queue[start:end], len(queue), pg.Limit, pg.Offset))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateVitals(c echo.Context) error {
	var v patient.Vitals
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.UpdateVitals(c.Param("id"), v)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SetStatus(c echo.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	status, err := patient.ParseStatus(body.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetStatus(c.Param("id"), status); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": body.Status})
}

func (h *Handler) DischargePatient(c echo.Context) error {
	res, err := h.svc.Discharge(c.Param("id"), c.QueryParam("reason"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AddBed(c echo.Context) error {
	var b bed.Bed
	if err := c.Bind(&b); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddBed(&b); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Beds())
}

func (h *Handler) AddStaff(c echo.Context) error {
	var s staff.Staff
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddStaff(&s); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) ListStaff(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.StaffList())
}

func (h *Handler) PunchIn(c echo.Context) error {
	if err := h.svc.PunchIn(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) PunchOut(c echo.Context) error {
	if err := h.svc.PunchOut(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RunCycle(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.RunCycle())
}

func (h *Handler) ListApprovals(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.PendingApprovals())
}

func (h *Handler) ApproveDecision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decision id")
	}
	approver := auth.UserIDFromContext(c.Request().Context())
	if approver == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "approver identity required")
	}
	d, err := h.svc.Approve(id, approver)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) RejectDecision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid decision id")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	approver := auth.UserIDFromContext(c.Request().Context())
	if approver == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "approver identity required")
	}
	d, err := h.svc.Reject(id, approver, body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetAuditLog(c echo.Context) error {
	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, h.svc.AuditLog(pg.Limit))
}

func (h *Handler) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Stats())
}
