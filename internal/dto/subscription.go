package dto

import "github.com/shopspring/decimal"

type SubscribeRequest struct {
	PackageID        uint            `json:"package_id" validate:"required"`
	InvestmentAmount decimal.Decimal `json:"investment_amount" validate:"required"`
}

// SubscriptionPerformance is the aggregate view exposed on the performance endpoint.
type SubscriptionPerformance struct {
	TotalTrades         int             `json:"total_trades"`
	ProfitableTrades    int             `json:"profitable_trades"`
	WinRate             decimal.Decimal `json:"win_rate"`
	TotalProfitEarned   decimal.Decimal `json:"total_profit_earned"`
	ExpectedProfit      decimal.Decimal `json:"expected_profit"`
	ProfitProgress      decimal.Decimal `json:"profit_progress"`
	DaysRemaining       int             `json:"days_remaining"`
	IsAutoTradingActive bool            `json:"is_auto_trading_active"`
}
