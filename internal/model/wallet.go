package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CryptoType struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Symbol        string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"symbol"`
	LogoURL       string    `gorm:"type:varchar(255)" json:"logo_url"`
	CoinpaprikaID string    `gorm:"type:varchar(100)" json:"coinpaprika_id"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CryptoType) TableName() string {
	return "crypto_types"
}

// USDWallet is the cash account that margin and settlements move through.
type USDWallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"balance"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User User `gorm:"foreignKey:UserID;references:ID" json:"-"`
}

func (USDWallet) TableName() string {
	return "usd_wallets"
}

type CryptoWallet struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index:idx_crypto_wallets_user_type,unique" json:"user_id"`
	CryptoTypeID  uint            `gorm:"not null;index:idx_crypto_wallets_user_type,unique" json:"crypto_type_id"`
	Balance       decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"balance"`
	WalletAddress string          `gorm:"type:varchar(100);not null" json:"wallet_address"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User       User       `gorm:"foreignKey:UserID;references:ID" json:"-"`
	CryptoType CryptoType `gorm:"foreignKey:CryptoTypeID;references:ID" json:"crypto_type"`
}

func (CryptoWallet) TableName() string {
	return "crypto_wallets"
}
