package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "open"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

type ProfitMode string

const (
	ProfitModeAuto   ProfitMode = "auto"
	ProfitModeManual ProfitMode = "manual"
)

type Trade struct {
	ID                    uint             `gorm:"primaryKey" json:"id"`
	UserID                uint             `gorm:"not null" json:"user_id"`
	MarketID              uint             `gorm:"not null" json:"market_id"`
	TradeType             TradeType        `gorm:"type:varchar(4);not null" json:"trade_type"`
	Amount                decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"amount"`
	Price                 decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"price"`
	Leverage              int              `gorm:"not null" json:"leverage"`
	TakeProfit            *decimal.Decimal `gorm:"type:numeric(24,8)" json:"take_profit"`
	StopLoss              *decimal.Decimal `gorm:"type:numeric(24,8)" json:"stop_loss"`
	Status                TradeStatus      `gorm:"type:varchar(10);not null" json:"status"`
	ProfitCalculationMode ProfitMode       `gorm:"type:varchar(10);not null" json:"profit_calculation_mode"`
	ManualProfit          *decimal.Decimal `gorm:"type:numeric(24,8)" json:"manual_profit"`
	CurrentProfit         decimal.Decimal  `gorm:"type:numeric(24,8);not null" json:"current_profit"`
	CreatedAt             time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	ClosedAt              *time.Time       `json:"closed_at"`

	User   User   `gorm:"foreignKey:UserID;references:ID" json:"-"`
	Market Market `gorm:"foreignKey:MarketID;references:ID" json:"market"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// Notional is the unleveraged value of the trade.
func (t *Trade) Notional() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

// Margin is the collateral escrowed when the trade was opened.
func (t *Trade) Margin() decimal.Decimal {
	return t.Notional().Div(decimal.NewFromInt(int64(t.Leverage)))
}

type GetTradesParam struct {
	IDs        []uint       `json:"ids"`
	UserID     *uint        `json:"user_id"`
	Status     *TradeStatus `json:"status"`
	ProfitMode *ProfitMode  `json:"profit_mode"`
}
