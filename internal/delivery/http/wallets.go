package http

import (
	"net/http"

	"nexatrade/internal/dto"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupWallets(base *echo.Group) {
	v1 := base.Group("/v1/wallets")
	{
		v1.GET("", h.WalletBalances)
		v1.POST("/provision", h.ProvisionWallets)
	}
}

func (h *HttpAPIHandler) WalletBalances(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	usd, cryptos, err := h.service.WalletService.GetBalances(c.Request().Context(), uid)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", map[string]interface{}{
		"usd_wallet":     usd,
		"crypto_wallets": cryptos,
	}))
}

// ProvisionWallets is invoked by the user directory at signup time.
func (h *HttpAPIHandler) ProvisionWallets(c echo.Context) error {
	uid := userID(c)
	if uid == 0 {
		return c.JSON(http.StatusUnauthorized, dto.NewBaseResponse(http.StatusUnauthorized, "missing identity", nil))
	}

	if err := h.service.WalletService.EnsureWallets(c.Request().Context(), uid); err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Wallets provisioned", nil))
}
