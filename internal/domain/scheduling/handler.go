package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/altamedica/platform-api/internal/platform/auth"
	"github.com/altamedica/platform-api/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Propose)
	api.GET("/appointments/:id", h.Get)
	api.POST("/appointments/:id/status", h.Transition)
	api.GET("/patients/:id/appointments", h.ListForPatient)
	api.GET("/doctors/:id/appointments", h.ListForDoctor)
}

func mapError(err error) error {
	var inv *ErrInvalid
	var bad *ErrBadTransition
	switch {
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOverlap):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &bad):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &inv):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) Propose(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	if err := h.svc.Propose(c.Request().Context(), caller, &a); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

type transitionRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	a, err := h.svc.Transition(c.Request().Context(), caller, id, req.Status)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListForPatient(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	page := pagination.FromContext(c)
	appts, total, err := h.svc.ListForPatient(c.Request().Context(), caller, c.Param("id"), page)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, page.Limit, page.Offset))
}

func (h *Handler) ListForDoctor(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	page := pagination.FromContext(c)
	appts, total, err := h.svc.ListForDoctor(c.Request().Context(), caller, c.Param("id"), page)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, page.Limit, page.Offset))
}
