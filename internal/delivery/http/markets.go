package http

import (
	"net/http"

	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupMarkets(base *echo.Group) {
	v1 := base.Group("/v1/markets")
	{
		v1.GET("", h.ListMarkets)
	}
}

func (h *HttpAPIHandler) ListMarkets(c echo.Context) error {
	markets, err := h.service.TradingService.GetMarkets(c.Request().Context(), model.GetMarketsParam{
		IsActive: utils.ToPointer(true),
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", markets))
}
