package model

import "time"

// AutoTrade links a scheduler-synthesized trade to its subscription.
type AutoTrade struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	SubscriptionID uint      `gorm:"not null" json:"subscription_id"`
	TradeID        uint      `gorm:"not null;uniqueIndex" json:"trade_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Subscription PackageSubscription `gorm:"foreignKey:SubscriptionID;references:ID" json:"-"`
	Trade        Trade               `gorm:"foreignKey:TradeID;references:ID" json:"trade"`
}

func (AutoTrade) TableName() string {
	return "auto_trades"
}

// TradeClosure is the durable closure schedule for an open auto-trade. A row
// survives process restarts and missed ticks; it is deleted only after the
// trade has been closed.
type TradeClosure struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TradeID        uint      `gorm:"not null;uniqueIndex" json:"trade_id"`
	SubscriptionID uint      `gorm:"not null" json:"subscription_id"`
	CloseAt        time.Time `gorm:"not null;index" json:"close_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`

	Trade        Trade               `gorm:"foreignKey:TradeID;references:ID" json:"-"`
	Subscription PackageSubscription `gorm:"foreignKey:SubscriptionID;references:ID" json:"-"`
}

func (TradeClosure) TableName() string {
	return "trade_closures"
}
