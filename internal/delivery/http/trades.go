package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupTrades(base *echo.Group) {
	v1 := base.Group("/v1/trades")
	{
		v1.GET("", h.ListTrades)
		v1.GET("/stream", h.StreamProfitUpdates)
		v1.POST("", h.OpenTrade)
		v1.POST("/:id/close", h.CloseTrade)
		v1.POST("/:id/cancel", h.CancelTrade)
		v1.POST("/:id/profit", h.AdjustProfit)
	}
}

func (h *HttpAPIHandler) ListTrades(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	param := model.GetTradesParam{UserID: &uid}
	if status := c.QueryParam("status"); status != "" {
		param.Status = utils.ToPointer(model.TradeStatus(status))
	}
	trades, err := h.service.TradingService.GetTrades(c.Request().Context(), param)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", trades))
}

// StreamProfitUpdates pushes the caller's profit updates as server-sent
// events until the client disconnects.
func (h *HttpAPIHandler) StreamProfitUpdates(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	sub := h.broker.Subscribe(16)
	defer sub.Close()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if ev.UserID != uid {
				continue
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", payload); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

func (h *HttpAPIHandler) OpenTrade(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	req := new(dto.OpenTradeRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	trade, err := h.service.TradingService.OpenTrade(c.Request().Context(), uid, *req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Trade opened", trade))
}

func (h *HttpAPIHandler) CloseTrade(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid trade id"))
	}

	trade, err := h.service.TradingService.CloseTrade(c.Request().Context(), uid, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Trade closed", trade))
}

func (h *HttpAPIHandler) CancelTrade(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid trade id"))
	}

	trade, err := h.service.TradingService.CancelTrade(c.Request().Context(), uid, id)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Trade cancelled", trade))
}

// AdjustProfit is a staff-only override of a trade's realized profit.
func (h *HttpAPIHandler) AdjustProfit(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}
	staff, err := h.isStaff(c, uid)
	if err != nil {
		return errorResponse(c, err)
	}
	if !staff {
		return c.JSON(http.StatusForbidden, dto.NewBaseResponse(http.StatusForbidden, "staff only", nil))
	}

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid trade id"))
	}

	req := new(dto.AdjustProfitRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	trade, err := h.service.TradingService.AdjustManualProfit(c.Request().Context(), id, req.Profit)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Profit adjusted", trade))
}
