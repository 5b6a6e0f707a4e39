package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TradingPackage struct {
	ID                       uint            `gorm:"primaryKey" json:"id"`
	Name                     string          `gorm:"type:varchar(100);not null" json:"name"`
	Description              string          `gorm:"type:text" json:"description"`
	MinInvestment            decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"min_investment"`
	MaxInvestment            decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"max_investment"`
	DurationDays             int             `gorm:"not null" json:"duration_days"`
	ProfitPercentage         decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"profit_percentage"`
	IsActive                 bool            `gorm:"not null" json:"is_active"`
	RiskLevel                string          `gorm:"type:varchar(50)" json:"risk_level"`
	Features                 datatypes.JSON  `gorm:"type:jsonb" json:"features"`
	MaxTradesPerDay          int             `gorm:"not null" json:"max_trades_per_day"`
	MinTradeAmountPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"min_trade_amount_percentage"`
	MaxTradeAmountPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"max_trade_amount_percentage"`
	TradeFrequencyHours      int             `gorm:"not null" json:"trade_frequency_hours"`
	CreatedAt                time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	// Preferred markets for auto-trading. Empty means all active markets.
	PreferredMarkets []Market `gorm:"many2many:trading_package_markets" json:"preferred_markets"`
}

func (TradingPackage) TableName() string {
	return "trading_packages"
}

// ExpectedProfit computes the target profit for an investment of the given size.
func (p *TradingPackage) ExpectedProfit(investment decimal.Decimal) decimal.Decimal {
	return investment.Mul(p.ProfitPercentage).Div(decimal.NewFromInt(100))
}

type GetTradingPackagesParam struct {
	IDs      []uint `json:"ids"`
	IsActive *bool  `json:"is_active"`
}
