package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

type PackageSubscription struct {
	ID                  uint               `gorm:"primaryKey" json:"id"`
	UserID              uint               `gorm:"not null" json:"user_id"`
	PackageID           uint               `gorm:"not null" json:"package_id"`
	InvestmentAmount    decimal.Decimal    `gorm:"type:numeric(24,8);not null" json:"investment_amount"`
	ExpectedProfit      decimal.Decimal    `gorm:"type:numeric(24,8);not null" json:"expected_profit"`
	Status              SubscriptionStatus `gorm:"type:varchar(10);not null" json:"status"`
	StartDate           time.Time          `gorm:"autoCreateTime" json:"start_date"`
	EndDate             time.Time          `gorm:"not null" json:"end_date"`
	TotalProfitEarned   decimal.Decimal    `gorm:"type:numeric(24,8);not null" json:"total_profit_earned"`
	LastTradeTime       *time.Time         `json:"last_trade_time"`
	IsAutoTradingActive bool               `gorm:"not null" json:"is_auto_trading_active"`
	CreatedAt           time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime" json:"updated_at"`

	User       User           `gorm:"foreignKey:UserID;references:ID" json:"-"`
	Package    TradingPackage `gorm:"foreignKey:PackageID;references:ID" json:"package"`
	AutoTrades []AutoTrade    `gorm:"foreignKey:SubscriptionID" json:"-"`
}

func (PackageSubscription) TableName() string {
	return "package_subscriptions"
}

func (s *PackageSubscription) IsActiveStatus() bool {
	return s.Status == SubscriptionStatusActive
}

func (s *PackageSubscription) Expired(now time.Time) bool {
	return now.After(s.EndDate)
}

func (s *PackageSubscription) ProfitTargetReached() bool {
	return s.TotalProfitEarned.GreaterThanOrEqual(s.ExpectedProfit)
}

// RemainingInvestment is the base from which new auto-trades are sized.
func (s *PackageSubscription) RemainingInvestment() decimal.Decimal {
	return s.InvestmentAmount.Sub(s.TotalProfitEarned)
}

// ProfitProgressPercentage reports achieved profit against the target, capped at 100.
func (s *PackageSubscription) ProfitProgressPercentage() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	if s.ExpectedProfit.IsZero() {
		return hundred
	}
	pct := s.TotalProfitEarned.Div(s.ExpectedProfit).Mul(hundred)
	if pct.GreaterThan(hundred) {
		return hundred
	}
	return pct
}

type GetSubscriptionsParam struct {
	IDs                 []uint              `json:"ids"`
	UserID              *uint               `json:"user_id"`
	Status              *SubscriptionStatus `json:"status"`
	IsAutoTradingActive *bool               `json:"is_auto_trading_active"`
	EndDateAfter        *time.Time          `json:"end_date_after"`
	EndDateBefore       *time.Time          `json:"end_date_before"`
}
