package bordereau

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/manataote/cabinet-medical-sub001/internal/platform/auth"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
	"github.com/manataote/cabinet-medical-sub001/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(g *echo.Group) {
	g.GET("/bordereaux", h.List, auth.RequireRole("praticien", "secretaire"))
	g.POST("/bordereaux", h.Build, auth.RequireRole("praticien", "secretaire"))
	g.GET("/bordereaux/:id", h.Get, auth.RequireRole("praticien", "secretaire"))
	g.POST("/bordereaux/:id/reaggregate", h.Reaggregate, auth.RequireRole("praticien", "secretaire"))
	g.POST("/bordereaux/:id/submit", h.Submit, auth.RequireRole("praticien"))
	g.DELETE("/bordereaux/:id", h.Delete, auth.RequireRole("praticien"))
}

type buildRequest struct {
	CabinetID  string      `json:"cabinet_id"`
	ClaimIDs   []uuid.UUID `json:"claim_ids"`
	InvoiceIDs []uuid.UUID `json:"invoice_ids"`
}

func httpError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "bordereau not found")
	case db.IsTimeout(err):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Build(c echo.Context) error {
	var req buildRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Build(c.Request().Context(), req.CabinetID, req.ClaimIDs, req.InvoiceIDs)
	if err != nil {
		if db.IsTimeout(err) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bordereau id")
	}
	out, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Reaggregate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bordereau id")
	}
	out, err := h.svc.Reaggregate(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bordereau id")
	}
	out, err := h.svc.Submit(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsTimeout(err) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bordereau id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
