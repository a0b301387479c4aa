package anamnesis

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

type Handler struct {
	svc      *Service
	exporter *PDFExporter
}

func NewHandler(svc *Service, exporter *PDFExporter) *Handler {
	return &Handler{svc: svc, exporter: exporter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/anamnesis", h.Get)
	api.PUT("/patients/:id/anamnesis", h.Save)
	api.PUT("/patients/:id/anamnesis/sync", h.Sync)
	api.GET("/patients/:id/anamnesis/history", h.History)
	api.GET("/patients/:id/anamnesis/export.pdf", h.ExportPDF)
	api.POST("/patients/:id/anamnesis/validate", h.Validate)
}

type saveRequest struct {
	Sections map[string]json.RawMessage `json:"sections"`
}

type syncRequest struct {
	Sections        map[string]json.RawMessage `json:"sections"`
	ExpectedVersion string                     `json:"expected_version"`
}

func (h *Handler) Get(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	rec, err := h.svc.Get(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Save(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	rec, err := h.svc.Save(c.Request().Context(), caller, c.Param("id"), req.Sections)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Sync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	rec, err := h.svc.Sync(c.Request().Context(), caller, c.Param("id"), req.Sections, req.ExpectedVersion)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) History(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	page := pagination.FromContext(c)
	versions, total, err := h.svc.History(c.Request().Context(), caller, c.Param("id"), page)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(versions, total, page.Limit, page.Offset))
}

func (h *Handler) ExportPDF(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	rec, err := h.svc.Get(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return mapError(c, err)
	}
	pdf, err := h.exporter.Render(rec)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "PDF generation failed")
	}
	c.Response().Header().Set("Content-Disposition",
		`attachment; filename="anamnesis-`+rec.PatientID+`.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// Validate checks the document shape without touching storage or the
// access gate; an invalid document is a 200 with problems listed.
func (h *Handler) Validate(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, Validate(req.Sections))
}

func mapError(c echo.Context, err error) error {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, map[string]any{
			"error":            "version conflict",
			"expected_version": ce.ExpectedVersion,
			"current_version":  ce.CurrentVersion,
			"current":          ce.Current,
		})
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error":    "invalid document",
			"problems": ve.Problems,
		})
	}

	switch KindOf(err) {
	case KindUnauthenticated:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case KindEmailNotVerified:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case KindForbidden:
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case KindTransient:
		return echo.NewHTTPError(http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
