package repository

import (
	"context"
	"fmt"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SubscriptionRepository interface {
	Get(ctx context.Context, param model.GetSubscriptionsParam, opts ...utils.DBOption) ([]model.PackageSubscription, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.PackageSubscription, error)
	Create(ctx context.Context, sub *model.PackageSubscription, opts ...utils.DBOption) error
	Update(ctx context.Context, sub *model.PackageSubscription, opts ...utils.DBOption) error
	// AddProfit accumulates realized profit from a closed auto-trade.
	AddProfit(ctx context.Context, subscriptionID uint, delta decimal.Decimal, opts ...utils.DBOption) error
	SetLastTradeTime(ctx context.Context, subscriptionID uint, at time.Time, opts ...utils.DBOption) error
	SetAutoTrading(ctx context.Context, subscriptionID uint, active bool, opts ...utils.DBOption) error
	// TransitionToCompleted flips an active subscription to completed. The
	// single row affected is the settlement guard: only the winner credits
	// the ledger.
	TransitionToCompleted(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) (bool, error)

	CreateAutoTrade(ctx context.Context, autoTrade *model.AutoTrade, opts ...utils.DBOption) error
	GetAutoTrades(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) ([]model.AutoTrade, error)
	// CountAutoTradesSince counts trades synthesized for the subscription at
	// or after the given time. Run inside the opening transaction to keep the
	// daily cap honest under races.
	CountAutoTradesSince(ctx context.Context, subscriptionID uint, since time.Time, opts ...utils.DBOption) (int64, error)
	GetOpenAutoTrades(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) ([]model.AutoTrade, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{
		db: db,
	}
}

func (r *subscriptionRepository) Get(ctx context.Context, param model.GetSubscriptionsParam, opts ...utils.DBOption) ([]model.PackageSubscription, error) {
	var subs []model.PackageSubscription

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if param.UserID != nil {
		qFilter = append(qFilter, "user_id = ?")
		qFilterParam = append(qFilterParam, *param.UserID)
	}

	if param.Status != nil {
		qFilter = append(qFilter, "status = ?")
		qFilterParam = append(qFilterParam, *param.Status)
	}

	if param.IsAutoTradingActive != nil {
		qFilter = append(qFilter, "is_auto_trading_active = ?")
		qFilterParam = append(qFilterParam, *param.IsAutoTradingActive)
	}

	if param.EndDateAfter != nil {
		qFilter = append(qFilter, "end_date > ?")
		qFilterParam = append(qFilterParam, *param.EndDateAfter)
	}

	if param.EndDateBefore != nil {
		qFilter = append(qFilter, "end_date < ?")
		qFilterParam = append(qFilterParam, *param.EndDateBefore)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Preload("Package").Where(strings.Join(qFilter, " AND "), qFilterParam...).Find(&subs).Error; err != nil {
		return nil, err
	}

	return subs, nil
}

func (r *subscriptionRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.PackageSubscription, error) {
	var sub model.PackageSubscription
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Preload("Package").Preload("Package.PreferredMarkets").First(&sub, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &sub, nil
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *model.PackageSubscription, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(sub).Error
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *model.PackageSubscription, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Updates(sub).Error
}

func (r *subscriptionRepository) AddProfit(ctx context.Context, subscriptionID uint, delta decimal.Decimal, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.PackageSubscription{}).
		Where("id = ?", subscriptionID).
		Update("total_profit_earned", gorm.Expr("total_profit_earned + ?", delta)).Error
}

func (r *subscriptionRepository) SetLastTradeTime(ctx context.Context, subscriptionID uint, at time.Time, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.PackageSubscription{}).
		Where("id = ?", subscriptionID).
		Update("last_trade_time", at).Error
}

func (r *subscriptionRepository) SetAutoTrading(ctx context.Context, subscriptionID uint, active bool, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.PackageSubscription{}).
		Where("id = ?", subscriptionID).
		Update("is_auto_trading_active", active).Error
}

func (r *subscriptionRepository) TransitionToCompleted(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&model.PackageSubscription{}).
		Where("id = ? AND status = ?", subscriptionID, model.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":                 model.SubscriptionStatusCompleted,
			"is_auto_trading_active": false,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *subscriptionRepository) CreateAutoTrade(ctx context.Context, autoTrade *model.AutoTrade, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(autoTrade).Error
}

func (r *subscriptionRepository) GetAutoTrades(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) ([]model.AutoTrade, error) {
	var autoTrades []model.AutoTrade
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Preload("Trade").Preload("Trade.Market").
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").Find(&autoTrades).Error; err != nil {
		return nil, err
	}
	return autoTrades, nil
}

func (r *subscriptionRepository) CountAutoTradesSince(ctx context.Context, subscriptionID uint, since time.Time, opts ...utils.DBOption) (int64, error) {
	var count int64
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	err := db.Model(&model.AutoTrade{}).
		Where("subscription_id = ? AND created_at >= ?", subscriptionID, since).
		Count(&count).Error
	return count, err
}

func (r *subscriptionRepository) GetOpenAutoTrades(ctx context.Context, subscriptionID uint, opts ...utils.DBOption) ([]model.AutoTrade, error) {
	var autoTrades []model.AutoTrade
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	err := db.Joins("JOIN trades ON trades.id = auto_trades.trade_id").
		Preload("Trade").Preload("Trade.Market").
		Where("auto_trades.subscription_id = ? AND trades.status = ?", subscriptionID, model.TradeStatusOpen).
		Find(&autoTrades).Error
	if err != nil {
		return nil, err
	}
	return autoTrades, nil
}
