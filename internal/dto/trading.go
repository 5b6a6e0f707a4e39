package dto

import "github.com/shopspring/decimal"

type OpenTradeRequest struct {
	MarketID   uint             `json:"market_id" validate:"required"`
	TradeType  string           `json:"trade_type" validate:"required,oneof=buy sell"`
	Amount     decimal.Decimal  `json:"amount" validate:"required"`
	Leverage   int              `json:"leverage" validate:"omitempty,min=1,max=100"`
	TakeProfit *decimal.Decimal `json:"take_profit"`
	StopLoss   *decimal.Decimal `json:"stop_loss"`
}

type AdjustProfitRequest struct {
	Profit decimal.Decimal `json:"profit" validate:"required"`
}
