package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Market struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"type:varchar(100);not null" json:"name"`
	BaseCurrencyID uint            `gorm:"not null" json:"base_currency_id"`
	QuoteCurrency  string          `gorm:"type:varchar(50);not null" json:"quote_currency"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
	CurrentPrice   decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"current_price"`
	MinTradeAmount decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"min_trade_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	BaseCurrency CryptoType `gorm:"foreignKey:BaseCurrencyID;references:ID" json:"base_currency"`
}

func (Market) TableName() string {
	return "markets"
}

type GetMarketsParam struct {
	IDs      []uint `json:"ids"`
	IsActive *bool  `json:"is_active"`
}
