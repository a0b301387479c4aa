package intake

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/altamedica/platform-api/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients/:id/intake", h.Start)
	api.GET("/intake/:id", h.Get)
	api.POST("/intake/:id/answer", h.Answer)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCompleted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmpty):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadGateway, "intake assistant unavailable")
	}
}

func (h *Handler) Start(c echo.Context) error {
	caller := auth.IdentityFromContext(c.Request().Context())
	session, err := h.svc.Start(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, session)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	session, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, session)
}

type answerRequest struct {
	Text string `json:"text"`
}

func (h *Handler) Answer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	caller := auth.IdentityFromContext(c.Request().Context())
	session, err := h.svc.Answer(c.Request().Context(), caller, id, req.Text)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, session)
}
