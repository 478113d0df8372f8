package claim

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/manataote/cabinet-medical-sub001/internal/domain/tariff"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/auth"
	"github.com/manataote/cabinet-medical-sub001/internal/platform/db"
	"github.com/manataote/cabinet-medical-sub001/pkg/pagination"
)

// saveResponse pairs the saved claim with any input coercion warnings so
// the caller can tell a coerced zero amount from a deliberate one.
type saveResponse struct {
	Claim    *Claim           `json:"claim"`
	Warnings []tariff.Warning `json:"warnings,omitempty"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(g *echo.Group) {
	g.GET("/feuilles-de-soins", h.List, auth.RequireRole("praticien", "secretaire"))
	g.POST("/feuilles-de-soins", h.Create, auth.RequireRole("praticien", "secretaire"))
	g.GET("/feuilles-de-soins/:id", h.Get, auth.RequireRole("praticien", "secretaire"))
	g.PUT("/feuilles-de-soins/:id", h.Update, auth.RequireRole("praticien", "secretaire"))
	g.DELETE("/feuilles-de-soins/:id", h.Delete, auth.RequireRole("praticien"))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "claim not found")
	case db.IsTimeout(err):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in Claim
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, warnings, err := h.svc.Create(c.Request().Context(), &in)
	if err != nil {
		if db.IsTimeout(err) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, saveResponse{Claim: out, Warnings: warnings})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	out, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	var in Claim
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in.ID = id
	out, warnings, err := h.svc.Update(c.Request().Context(), &in)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsTimeout(err) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, saveResponse{Claim: out, Warnings: warnings})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid claim id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	var (
		items []*Claim
		total int
		err   error
	)
	if raw := c.QueryParam("patient_id"); raw != "" {
		patientID, perr := uuid.Parse(raw)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err = h.svc.ListByPatient(c.Request().Context(), patientID, p.Limit, p.Offset)
	} else {
		items, total, err = h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}
