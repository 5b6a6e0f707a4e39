package http

import (
	"net/http"

	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupSubscriptions(base *echo.Group) {
	v1 := base.Group("/v1")
	{
		v1.GET("/packages", h.ListPackages)
		v1.GET("/subscriptions", h.ListSubscriptions)
		v1.POST("/subscriptions", h.Subscribe)
		v1.POST("/subscriptions/:id/toggle-auto-trading", h.ToggleAutoTrading)
		v1.GET("/subscriptions/:id/performance", h.SubscriptionPerformance)
	}
}

func (h *HttpAPIHandler) ListPackages(c echo.Context) error {
	packages, err := h.service.SubscriptionService.GetPackages(c.Request().Context(), model.GetTradingPackagesParam{
		IsActive: utils.ToPointer(true),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", packages))
}

func (h *HttpAPIHandler) ListSubscriptions(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	subs, err := h.service.SubscriptionService.GetSubscriptions(c.Request().Context(), model.GetSubscriptionsParam{
		UserID: &uid,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", subs))
}

func (h *HttpAPIHandler) Subscribe(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	req := new(dto.SubscribeRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	sub, err := h.service.SubscriptionService.Subscribe(c.Request().Context(), uid, *req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Subscription created", sub))
}

func (h *HttpAPIHandler) ToggleAutoTrading(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid subscription id"))
	}

	sub, err := h.service.SubscriptionService.ToggleAutoTrading(c.Request().Context(), uid, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Auto-trading toggled", sub))
}

func (h *HttpAPIHandler) SubscriptionPerformance(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid subscription id"))
	}

	perf, err := h.service.SubscriptionService.GetPerformance(c.Request().Context(), uid, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", perf))
}
