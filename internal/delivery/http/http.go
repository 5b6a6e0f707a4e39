package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/internal/events"
	"nexatrade/internal/service"
	"nexatrade/pkg/middleware"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type HttpAPIHandler struct {
	echo      *echo.Echo
	validator *goValidator.Validate
	service   *service.Service
	broker    *events.Broker
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, validator *goValidator.Validate, service *service.Service, broker *events.Broker) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		validator: validator,
		service:   service,
		broker:    broker,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	base := h.echo.Group("/api")
	base.Use(middleware.NewRateLimiterMiddleware())
	h.SetupJobs(base)
	h.SetupMarkets(base)
	h.SetupTrades(base)
	h.SetupSubscriptions(base)
	h.SetupWallets(base)
	h.SetupUsers(base)
}

// userID reads the authenticated user from the gateway-injected header.
// Zero when absent; handlers that require identity reject that themselves.
func userID(c echo.Context) uint {
	raw := c.Request().Header.Get("X-User-ID")
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// errorResponse maps the error taxonomy onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientFunds), errors.Is(err, apperr.ErrInsufficientMargin):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrStateConflict):
		code = http.StatusConflict
	case errors.Is(err, apperr.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, apperr.ErrExternalUnavailable):
		code = http.StatusServiceUnavailable
	}
	response := dto.NewBaseResponse(code, err.Error(), nil)
	return c.JSON(code, response)
}
