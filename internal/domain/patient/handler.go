package patient

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
	g.GET("/patients", h.List, auth.RequireRole("praticien", "secretaire"))
	g.POST("/patients", h.Create, auth.RequireRole("praticien", "secretaire"))
	g.GET("/patients/:id", h.Get, auth.RequireRole("praticien", "secretaire"))
	g.PUT("/patients/:id", h.Update, auth.RequireRole("praticien", "secretaire"))
	g.POST("/patients/merge", h.Merge, auth.RequireRole("praticien"))
	g.GET("/patients/:id/notes", h.ListNotes, auth.RequireRole("praticien", "secretaire"))
	g.POST("/patients/:id/notes", h.AddNote, auth.RequireRole("praticien", "secretaire"))
}

func httpError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case db.IsTimeout(err):
		return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var in Patient
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Create(c.Request().Context(), &in)
	if err != nil {
		if db.IsTimeout(err) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
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
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var in Patient
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in.ID = id
	out, err := h.svc.Update(c.Request().Context(), &in)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || db.IsTimeout(err) {
			return httpError(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

type mergeRequest struct {
	PatientIDs []uuid.UUID `json:"patient_ids"`
	Composite  Composite   `json:"composite"`
}

func (h *Handler) Merge(c echo.Context) error {
	var req mergeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	out, err := h.svc.Merge(c.Request().Context(), req.PatientIDs, req.Composite)
	if err != nil {
		var partial *PartialMergeFailure
		if errors.As(err, &partial) {
			// The caller needs the partial state to decide on a retry.
			return echo.NewHTTPError(http.StatusConflict, partial.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	var (
		items []*Patient
		total int
		err   error
	)
	if q := c.QueryParam("q"); q != "" {
		items, total, err = h.svc.Search(c.Request().Context(), q, p.Limit, p.Offset)
	} else {
		items, total, err = h.svc.List(c.Request().Context(), p.Limit, p.Offset)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) AddNote(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var in Note
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	in.PatientID = patientID
	if in.Author == "" {
		if userID := auth.UserIDFromContext(c.Request().Context()); userID != "" {
			in.Author = userID
		}
	}
	out, err := h.svc.AddNote(c.Request().Context(), &in)
	if err != nil {
		if db.IsTimeout(err) {
			return echo.NewHTTPError(http.StatusGatewayTimeout, "storage timeout")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListNotes(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	notes, err := h.svc.ListNotes(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, notes)
}
