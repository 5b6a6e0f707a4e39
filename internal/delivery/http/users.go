package http

import (
	"net/http"

	"nexatrade/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupUsers(base *echo.Group) {
	v1 := base.Group("/v1/users")
	{
		v1.POST("", h.RegisterUser)
	}
}

func (h *HttpAPIHandler) RegisterUser(c echo.Context) error {
	req := new(dto.RegisterUserRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	user, err := h.service.UserService.Register(c.Request().Context(), req.Email)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "User registered", user))
}

func (h *HttpAPIHandler) isStaff(c echo.Context, uid uint) (bool, error) {
	return h.service.UserService.IsStaff(c.Request().Context(), uid)
}
