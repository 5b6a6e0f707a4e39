package repository

import (
	"context"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletRepository is the cash/crypto ledger. Debit and Credit are atomic
// per account: balance mutations are conditional single-row updates.
type WalletRepository interface {
	GetUSDWallet(ctx context.Context, userID uint, opts ...utils.DBOption) (*model.USDWallet, error)
	CreateUSDWallet(ctx context.Context, wallet *model.USDWallet, opts ...utils.DBOption) error
	// DebitUSD subtracts amount when the balance covers it. Returns false
	// otherwise, leaving the balance untouched.
	DebitUSD(ctx context.Context, userID uint, amount decimal.Decimal, opts ...utils.DBOption) (bool, error)
	CreditUSD(ctx context.Context, userID uint, amount decimal.Decimal, opts ...utils.DBOption) error

	GetCryptoWallets(ctx context.Context, userID uint, opts ...utils.DBOption) ([]model.CryptoWallet, error)
	CreateCryptoWallet(ctx context.Context, wallet *model.CryptoWallet, opts ...utils.DBOption) error
	GetActiveCryptoTypes(ctx context.Context, opts ...utils.DBOption) ([]model.CryptoType, error)
}

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{
		db: db,
	}
}

func (r *walletRepository) GetUSDWallet(ctx context.Context, userID uint, opts ...utils.DBOption) (*model.USDWallet, error) {
	var wallet model.USDWallet
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("user_id = ?", userID).First(&wallet)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &wallet, nil
}

func (r *walletRepository) CreateUSDWallet(ctx context.Context, wallet *model.USDWallet, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(wallet).Error
}

func (r *walletRepository) DebitUSD(ctx context.Context, userID uint, amount decimal.Decimal, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&model.USDWallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *walletRepository) CreditUSD(ctx context.Context, userID uint, amount decimal.Decimal, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.USDWallet{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

func (r *walletRepository) GetCryptoWallets(ctx context.Context, userID uint, opts ...utils.DBOption) ([]model.CryptoWallet, error) {
	var wallets []model.CryptoWallet
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Preload("CryptoType").Where("user_id = ?", userID).Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

func (r *walletRepository) CreateCryptoWallet(ctx context.Context, wallet *model.CryptoWallet, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(wallet).Error
}

func (r *walletRepository) GetActiveCryptoTypes(ctx context.Context, opts ...utils.DBOption) ([]model.CryptoType, error) {
	var types []model.CryptoType
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where("is_active = ?", true).Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}
